package shader

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:embed wgsl/*.wgsl
var embedded embed.FS

// Built-in module names.
const (
	Scene  = "scene"
	Skybox = "skybox"
	Text   = "text"
	HDR    = "hdr"
	Blit   = "blit"

	// Equirect projects an equirectangular HDR map onto the six faces of a cube map.
	Equirect = "equirect"
	// Environment draws the projected cube map behind the scene.
	Environment = "environment"
)

// ErrUnknownShader is wrapped in an AssetLoadError for a module that is neither on disk nor built in.
var ErrUnknownShader = errors.New("unknown shader module")

// SourceReader reads WGSL source by path relative to an asset root. assets.Loader satisfies it.
type SourceReader interface {
	ReadShader(rel string) (string, error)
}

// Candidate is a re-read module whose stages parsed but whose source is not cached yet. A compute module
// sets Compute; every other module sets Vertex and Fragment.
type Candidate struct {
	Name     string
	Source   string
	Digest   uint64
	Vertex   Shader
	Fragment Shader
	Compute  Shader

	// Override is true when Source came from the reader rather than the built-in module.
	Override bool
}

// library is the implementation of the Library interface.
type library struct {
	mu *sync.Mutex

	reader SourceReader
	dir    string
	log    *logger.Logger

	sources cache.Cache[string]
	// digests holds the content digest of each committed source.
	digests map[string]uint64
	// overridden records modules whose current source came from the reader rather than the embedded copy.
	overridden map[string]bool
}

// Library resolves WGSL modules by name. Source is read from "<dir>/<name>.wgsl" through the configured
// SourceReader when present, and from the copy compiled into the binary otherwise. Each module is read at most
// once until Reload replaces it.
type Library interface {
	// Names returns the built-in module names, sorted.
	//
	// Returns:
	//   - []string: the embedded module names
	Names() []string

	// Source returns the WGSL text for a module, reading it on first use.
	//
	// Parameters:
	//   - name: the module name, e.g. "scene"
	//
	// Returns:
	//   - string: the WGSL source
	//   - error: *common.AssetLoadError or *common.FileSystemError if the module cannot be read
	Source(name string) (string, error)

	// Shader builds the given stage of a module.
	//
	// Parameters:
	//   - name: the module name
	//   - shaderType: the stage to build
	//
	// Returns:
	//   - Shader: the parsed stage
	//   - error: a read error, or *common.AssetLoadError if the stage has no entry point
	Shader(name string, shaderType ShaderType) (Shader, error)

	// Preload reads the named modules concurrently so the first frame does not wait on disk.
	// With no names, every built-in module is loaded.
	//
	// Parameters:
	//   - ctx: cancels outstanding reads
	//   - names: the modules to load
	//
	// Returns:
	//   - error: the first read failure
	Preload(ctx context.Context, names ...string) error

	// Reload re-reads a module, replacing the cached source only if its stages still parse.
	//
	// Parameters:
	//   - name: the module name
	//
	// Returns:
	//   - error: the read or parse failure; the previous source stays cached
	Reload(name string) error

	// Candidate re-reads and parses a module without replacing the cached source. Callers compile the stages
	// and Commit the candidate once the GPU has accepted them.
	//
	// Parameters:
	//   - name: the module name
	//
	// Returns:
	//   - Candidate: the parsed source and its stages
	//   - error: the read or parse failure
	Candidate(name string) (Candidate, error)

	// Commit makes a candidate the cached source of its module.
	//
	// Parameters:
	//   - c: a candidate returned by Candidate
	Commit(c Candidate)

	// Digest returns the content digest of the cached source of a module.
	//
	// Returns:
	//   - uint64: the digest
	//   - bool: false if the module has not been read yet
	Digest(name string) (uint64, bool)

	// ModuleForPath maps an asset-relative path under the library directory to its module name.
	//
	// Parameters:
	//   - rel: slash-separated path relative to the asset root
	//
	// Returns:
	//   - string: the module name
	//   - bool: false if rel is not a .wgsl file in the library directory
	ModuleForPath(rel string) (string, bool)

	// Overridden reports whether the cached source of a module came from disk.
	//
	// Parameters:
	//   - name: the module name
	//
	// Returns:
	//   - bool: true if the module was read through the SourceReader
	Overridden(name string) bool
}

var _ Library = &library{}

// NewLibrary creates a Library. Without WithReader only built-in modules are available.
//
// Parameters:
//   - options: functional options to configure the library
//
// Returns:
//   - Library: the new library
func NewLibrary(options ...LibraryBuilderOption) Library {
	l := &library{
		mu:         &sync.Mutex{},
		dir:        "shaders",
		log:        logger.Provide().Named("shaders"),
		overridden: make(map[string]bool),
		digests:    make(map[string]uint64),
	}
	for _, option := range options {
		option(l)
	}
	l.sources = cache.NewCache(cache.WithLabel[string]("shader source"))
	return l
}

func (l *library) Names() []string {
	entries, err := fs.ReadDir(embedded, "wgsl")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".wgsl"))
	}
	sort.Strings(names)
	return names
}

func (l *library) Source(name string) (string, error) {
	return l.sources.GetOrCreate(cache.NewCacheKey(name), func() (string, error) {
		src, override, err := l.read(name)
		if err != nil {
			return "", err
		}
		l.record(name, cache.Digest(src), override)
		return src, nil
	})
}

func (l *library) Shader(name string, shaderType ShaderType) (Shader, error) {
	src, err := l.Source(name)
	if err != nil {
		return nil, err
	}
	return NewShader(name, shaderType, src)
}

func (l *library) Preload(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = l.Names()
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := l.Source(name)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	l.log.Debug("shaders preloaded", zap.Int("modules", len(names)))
	return nil
}

func (l *library) Reload(name string) error {
	c, err := l.Candidate(name)
	if err != nil {
		return err
	}
	l.Commit(c)
	return nil
}

func (l *library) Candidate(name string) (Candidate, error) {
	src, override, err := l.read(name)
	if err != nil {
		return Candidate{}, err
	}
	c := Candidate{
		Name:     name,
		Source:   src,
		Digest:   cache.Digest(src),
		Override: override,
	}
	if compute, err := NewShader(name, ShaderTypeCompute, src); err == nil {
		c.Compute = compute
		return c, nil
	}
	if c.Vertex, err = NewShader(name, ShaderTypeVertex, src); err != nil {
		return Candidate{}, err
	}
	if c.Fragment, err = NewShader(name, ShaderTypeFragment, src); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

func (l *library) Commit(c Candidate) {
	l.sources.Insert(cache.NewCacheKey(c.Name), c.Source)
	l.record(c.Name, c.Digest, c.Override)
	l.log.Info("shader reloaded", zap.String("module", c.Name), zap.Bool("override", c.Override))
}

func (l *library) Digest(name string) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.digests[name]
	return d, ok
}

func (l *library) ModuleForPath(rel string) (string, bool) {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	dir, file := path.Split(rel)
	if path.Clean(dir) != path.Clean(l.dir) || path.Ext(file) != ".wgsl" {
		return "", false
	}
	return strings.TrimSuffix(file, ".wgsl"), true
}

func (l *library) Overridden(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overridden[name]
}

// read prefers the reader's copy and falls back to the embedded source when the file does not exist.
func (l *library) read(name string) (string, bool, error) {
	if l.reader != nil {
		src, err := l.reader.ReadShader(path.Join(l.dir, name+".wgsl"))
		if err == nil {
			return src, true, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", false, err
		}
	}
	data, err := embedded.ReadFile("wgsl/" + name + ".wgsl")
	if err != nil {
		return "", false, &common.AssetLoadError{Path: name, Err: ErrUnknownShader}
	}
	return string(data), false, nil
}

func (l *library) record(name string, digest uint64, override bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.digests[name] = digest
	l.overridden[name] = override
}
