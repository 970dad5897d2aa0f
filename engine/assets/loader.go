package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Carmen-Shannon/oxy-voxel/common"
)

// DefaultRoot is the asset directory name resolved against the working directory.
const DefaultRoot = "assets"

// ErrOutsideRoot is wrapped in a FileSystemError when a relative path escapes the asset root.
var ErrOutsideRoot = errors.New("path escapes the asset root")

// loader is the implementation of the Loader interface.
type loader struct {
	root    string
	backend loaderBackend
}

// Loader reads files from the asset tree by slash-separated path relative to the asset root.
// It is safe for concurrent use; startup loads run it from several goroutines at once.
type Loader interface {
	// Root returns the absolute asset root directory.
	//
	// Returns:
	//   - string: the asset root
	Root() string

	// Resolve returns the absolute filesystem path for a relative asset path.
	//
	// Parameters:
	//   - rel: slash-separated path relative to the root
	//
	// Returns:
	//   - string: the absolute path
	//   - error: *common.FileSystemError if rel is absolute or escapes the root
	Resolve(rel string) (string, error)

	// ReadBytes reads a whole asset.
	//
	// Parameters:
	//   - rel: slash-separated path relative to the root
	//
	// Returns:
	//   - []byte: the file contents
	//   - error: *common.FileSystemError if the file cannot be read
	ReadBytes(rel string) ([]byte, error)

	// ReadShader reads WGSL source text.
	//
	// Parameters:
	//   - rel: slash-separated path relative to the root
	//
	// Returns:
	//   - string: the shader source
	//   - error: *common.FileSystemError on read failure, *common.AssetLoadError for empty or non UTF-8 text
	ReadShader(rel string) (string, error)

	// ReadImage reads and decodes a PNG, JPEG, BMP or TIFF image into RGBA staging data.
	//
	// Parameters:
	//   - rel: slash-separated path relative to the root
	//
	// Returns:
	//   - common.TextureStagingData: the decoded pixels
	//   - error: *common.FileSystemError on read failure, *common.ImageDecodeError on decode failure
	ReadImage(rel string) (common.TextureStagingData, error)
}

var _ Loader = &loader{}

// NewLoader creates a Loader rooted at DefaultRoot under the working directory unless WithRoot or WithFS
// says otherwise.
//
// Parameters:
//   - options: functional options to configure the loader
//
// Returns:
//   - Loader: the new loader
//   - error: *common.FileSystemError if the working directory cannot be determined
func NewLoader(options ...LoaderBuilderOption) (Loader, error) {
	l := &loader{}
	for _, option := range options {
		option(l)
	}

	if l.root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, &common.FileSystemError{Path: DefaultRoot, Err: err}
		}
		l.root = filepath.Join(wd, DefaultRoot)
	}
	if !filepath.IsAbs(l.root) {
		abs, err := filepath.Abs(l.root)
		if err != nil {
			return nil, &common.FileSystemError{Path: l.root, Err: err}
		}
		l.root = abs
	}
	if l.backend == nil {
		l.backend = newFSBackend(os.DirFS(l.root))
	}
	return l, nil
}

func (l *loader) Root() string {
	return l.root
}

func (l *loader) Resolve(rel string) (string, error) {
	name, err := cleanRel(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(name)), nil
}

func (l *loader) ReadBytes(rel string) ([]byte, error) {
	name, err := cleanRel(rel)
	if err != nil {
		return nil, err
	}
	data, err := l.backend.ReadFile(name)
	if err != nil {
		return nil, &common.FileSystemError{Path: rel, Err: err}
	}
	return data, nil
}

func (l *loader) ReadShader(rel string) (string, error) {
	data, err := l.ReadBytes(rel)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", &common.AssetLoadError{Path: rel, Err: errors.New("empty shader source")}
	}
	if !utf8.Valid(data) {
		return "", &common.AssetLoadError{Path: rel, Err: errors.New("shader source is not valid UTF-8")}
	}
	return string(data), nil
}

func (l *loader) ReadImage(rel string) (common.TextureStagingData, error) {
	data, err := l.ReadBytes(rel)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	return common.DecodeImage(rel, data)
}

// cleanRel validates a relative asset path and returns its fs.FS form.
func cleanRel(rel string) (string, error) {
	rel = filepath.ToSlash(rel)
	if rel == "" || path.IsAbs(rel) || filepath.IsAbs(rel) {
		return "", &common.FileSystemError{Path: rel, Err: fmt.Errorf("%w: not a relative path", ErrOutsideRoot)}
	}
	name := path.Clean(rel)
	if name == ".." || strings.HasPrefix(name, "../") || !fs.ValidPath(name) {
		return "", &common.FileSystemError{Path: rel, Err: ErrOutsideRoot}
	}
	return name, nil
}
