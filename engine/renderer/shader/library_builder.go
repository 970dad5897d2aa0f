package shader

import "github.com/Carmen-Shannon/oxy-voxel/engine/logger"

// LibraryBuilderOption is a functional option used to configure a Library during construction.
type LibraryBuilderOption func(*library)

// WithReader sets the reader used to look for on-disk shader overrides.
//
// Parameters:
//   - r: the source reader, typically an assets.Loader
//
// Returns:
//   - LibraryBuilderOption: a function that sets the reader
func WithReader(r SourceReader) LibraryBuilderOption {
	return func(l *library) {
		l.reader = r
	}
}

// WithDirectory sets the directory, relative to the reader's root, searched for "<name>.wgsl". Defaults to "shaders".
func WithDirectory(dir string) LibraryBuilderOption {
	return func(l *library) {
		l.dir = dir
	}
}

// WithLogger replaces the library logger.
func WithLogger(log *logger.Logger) LibraryBuilderOption {
	return func(l *library) {
		l.log = log
	}
}
