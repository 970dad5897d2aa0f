package assets

import "io/fs"

// loaderBackend is the storage the Loader reads from. Names are already cleaned fs.FS paths.
type loaderBackend interface {
	// ReadFile reads a whole file.
	//
	// Parameters:
	//   - name: the cleaned path
	//
	// Returns:
	//   - []byte: the file contents
	//   - error: the underlying read error
	ReadFile(name string) ([]byte, error)
}

// fsBackend reads from any fs.FS: the asset directory on disk, an embed.FS, or a testing/fstest map.
type fsBackend struct {
	fsys fs.FS
}

var _ loaderBackend = &fsBackend{}

func newFSBackend(fsys fs.FS) *fsBackend {
	return &fsBackend{fsys: fsys}
}

func (b *fsBackend) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(b.fsys, name)
}
