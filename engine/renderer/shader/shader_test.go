package shader

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader struct {
	mu    sync.Mutex
	files map[string]string
	reads map[string]int
}

func newMapReader(files map[string]string) *mapReader {
	return &mapReader{files: files, reads: make(map[string]int)}
}

func (r *mapReader) ReadShader(rel string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads[rel]++
	src, ok := r.files[rel]
	if !ok {
		return "", &common.FileSystemError{Path: rel, Err: fs.ErrNotExist}
	}
	return src, nil
}

const tinyModule = `
// @vertex fn commented_out() {}
@group(1) @binding(2) var tex_sampler: sampler;
@group(0) @binding(1) var<storage, read> items: array<vec4<f32>>;
@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var tex: texture_2d<f32>;

@vertex
fn vert_entry(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0);
}

@fragment
fn frag_entry() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

func TestNewShaderParsesEntryPointsAndDeclarations(t *testing.T) {
	vs, err := NewShader("tiny", ShaderTypeVertex, tinyModule)
	require.NoError(t, err)
	assert.Equal(t, "vert_entry", vs.EntryPoint())
	assert.Equal(t, "tiny:vertex", vs.Key())

	frag, err := NewShader("tiny", ShaderTypeFragment, tinyModule)
	require.NoError(t, err)
	assert.Equal(t, "frag_entry", frag.EntryPoint())

	decls := vs.Declarations()
	require.Len(t, decls, 4)
	assert.Equal(t, Declaration{Group: 0, Binding: 0, AddressSpace: "uniform", Name: "camera", Type: "Camera"}, decls[0])
	assert.True(t, decls[1].IsStorage())
	assert.Equal(t, "storage, read", decls[1].AddressSpace)
	assert.True(t, decls[2].IsTexture())
	assert.True(t, decls[3].IsSampler())
}

func TestNewShaderWithoutEntryPoint(t *testing.T) {
	_, err := NewShader("broken", ShaderTypeFragment, "@vertex fn vs() {}")
	var loadErr *common.AssetLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "broken", loadErr.Path)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestBuiltInModulesParse(t *testing.T) {
	lib := NewLibrary()
	assert.Equal(t, []string{Blit, Environment, Equirect, HDR, Scene, Skybox, Text}, lib.Names())
	for _, name := range lib.Names() {
		stages := []ShaderType{ShaderTypeVertex, ShaderTypeFragment}
		if name == Equirect {
			stages = []ShaderType{ShaderTypeCompute}
		}
		for _, st := range stages {
			s, err := lib.Shader(name, st)
			require.NoError(t, err, name)
			assert.NotEmpty(t, s.EntryPoint())
		}
	}

	equirect, err := lib.Shader(Equirect, ShaderTypeCompute)
	require.NoError(t, err)
	assert.Equal(t, "compute_equirect_to_cubemap", equirect.EntryPoint())
	decls := equirect.Declarations()
	require.Len(t, decls, 2)
	assert.False(t, decls[0].IsStorageTexture())
	assert.True(t, decls[1].IsStorageTexture())

	env, err := lib.Shader(Environment, ShaderTypeFragment)
	require.NoError(t, err)
	assert.True(t, env.Declarations()[2].IsCubeTexture())

	scene, err := lib.Shader(Scene, ShaderTypeFragment)
	require.NoError(t, err)
	assert.Len(t, scene.Declarations(), 6)
}

func TestLibraryPrefersReaderAndReadsOnce(t *testing.T) {
	reader := newMapReader(map[string]string{"shaders/hdr.wgsl": tinyModule})
	lib := NewLibrary(WithReader(reader))

	for range 3 {
		src, err := lib.Source(HDR)
		require.NoError(t, err)
		assert.Equal(t, tinyModule, src)
	}
	assert.Equal(t, 1, reader.reads["shaders/hdr.wgsl"])
	assert.True(t, lib.Overridden(HDR))

	_, err := lib.Source(Blit)
	require.NoError(t, err)
	assert.False(t, lib.Overridden(Blit))
}

func TestLibraryUnknownModule(t *testing.T) {
	lib := NewLibrary(WithReader(newMapReader(nil)))
	_, err := lib.Source("nope")
	assert.ErrorIs(t, err, ErrUnknownShader)
}

func TestLibraryReaderFailureIsNotMaskedByFallback(t *testing.T) {
	failure := &common.FileSystemError{Path: "shaders/scene.wgsl", Err: errors.New("permission denied")}
	lib := NewLibrary(WithReader(readerFunc(func(string) (string, error) { return "", failure })))
	_, err := lib.Source(Scene)
	assert.ErrorIs(t, err, failure)
}

type readerFunc func(string) (string, error)

func (f readerFunc) ReadShader(rel string) (string, error) { return f(rel) }

func TestReloadKeepsPreviousSourceOnParseFailure(t *testing.T) {
	reader := newMapReader(map[string]string{"shaders/blit.wgsl": tinyModule})
	lib := NewLibrary(WithReader(reader))
	require.NoError(t, lib.Preload(context.Background(), Blit))

	reader.mu.Lock()
	reader.files["shaders/blit.wgsl"] = "@vertex fn only_vertex() {}"
	reader.mu.Unlock()
	require.Error(t, lib.Reload(Blit))
	src, err := lib.Source(Blit)
	require.NoError(t, err)
	assert.Equal(t, tinyModule, src)

	// Deleting the override falls back to the built-in module.
	reader.mu.Lock()
	delete(reader.files, "shaders/blit.wgsl")
	reader.mu.Unlock()
	require.NoError(t, lib.Reload(Blit))
	assert.False(t, lib.Overridden(Blit))
	s, err := lib.Shader(Blit, ShaderTypeVertex)
	require.NoError(t, err)
	assert.Equal(t, "vs_main", s.EntryPoint())
}

func TestCandidateLeavesLibraryUntilCommit(t *testing.T) {
	reader := newMapReader(map[string]string{})
	lib := NewLibrary(WithReader(reader))
	builtin, err := lib.Source(Blit)
	require.NoError(t, err)
	before, ok := lib.Digest(Blit)
	require.True(t, ok)
	assert.Equal(t, cache.Digest(builtin), before)

	reader.mu.Lock()
	reader.files["shaders/blit.wgsl"] = tinyModule
	reader.mu.Unlock()
	c, err := lib.Candidate(Blit)
	require.NoError(t, err)
	assert.True(t, c.Override)
	assert.Equal(t, cache.Digest(tinyModule), c.Digest)
	assert.Equal(t, "vert_entry", c.Vertex.EntryPoint())

	src, err := lib.Source(Blit)
	require.NoError(t, err)
	assert.Equal(t, builtin, src)
	assert.False(t, lib.Overridden(Blit))
	d, _ := lib.Digest(Blit)
	assert.Equal(t, before, d)

	lib.Commit(c)
	src, err = lib.Source(Blit)
	require.NoError(t, err)
	assert.Equal(t, tinyModule, src)
	assert.True(t, lib.Overridden(Blit))
	d, _ = lib.Digest(Blit)
	assert.Equal(t, c.Digest, d)
}

func TestCandidateOfComputeModule(t *testing.T) {
	lib := NewLibrary()
	c, err := lib.Candidate(Equirect)
	require.NoError(t, err)
	require.NotNil(t, c.Compute)
	assert.Nil(t, c.Vertex)
	assert.Nil(t, c.Fragment)
	assert.Equal(t, "equirect:compute", c.Compute.Key())
}

func TestPreloadAllAndCancelled(t *testing.T) {
	lib := NewLibrary()
	require.NoError(t, lib.Preload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewLibrary().Preload(ctx, Scene), context.Canceled)
}

func TestModuleForPath(t *testing.T) {
	lib := NewLibrary()
	name, ok := lib.ModuleForPath("shaders/scene.wgsl")
	assert.True(t, ok)
	assert.Equal(t, Scene, name)

	_, ok = lib.ModuleForPath("textures/scene.wgsl")
	assert.False(t, ok)
	_, ok = lib.ModuleForPath("shaders/scene.png")
	assert.False(t, ok)
}
