package assets

import "io/fs"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithRoot is an option builder that sets the asset root directory.
//
// Parameters:
//   - root: the asset directory; relative paths are made absolute against the working directory
//
// Returns:
//   - LoaderBuilderOption: a function that applies the root option to a loader
func WithRoot(root string) LoaderBuilderOption {
	return func(l *loader) {
		l.root = root
	}
}

// WithFS is an option builder that reads assets from fsys instead of the root directory.
// Resolve still reports paths under the root.
//
// Parameters:
//   - fsys: the filesystem to read from
//
// Returns:
//   - LoaderBuilderOption: a function that applies the filesystem option to a loader
func WithFS(fsys fs.FS) LoaderBuilderOption {
	return func(l *loader) {
		l.backend = newFSBackend(fsys)
	}
}
