package renderer

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/camera"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noModels struct{}

func (noModels) Get(cache.CacheKey) (model.Model, bool) { return nil, false }

type recordingDrawer struct {
	frames []gpu.BindGroup
}

func (d *recordingDrawer) Draw(pass gpu.RenderPass, _ model.Lookup, frame gpu.BindGroup) {
	d.frames = append(d.frames, frame)
	pass.DrawIndexed(36, 2, 0)
}

type shaderFiles map[string]string

func (s shaderFiles) ReadShader(rel string) (string, error) {
	src, ok := s[rel]
	if !ok {
		return "", &common.FileSystemError{Path: rel, Err: fs.ErrNotExist}
	}
	return src, nil
}

func newTestGraph(t *testing.T, options ...GraphBuilderOption) (Graph, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	g := NewGraph(NewRenderer(backend), options...)
	require.NoError(t, g.Init())
	return g, backend
}

func TestInitRegistersFixedPipelines(t *testing.T) {
	g, backend := newTestGraph(t)

	assert.Equal(t, []string{SkyboxPipelineKey, TextPipelineKey, HDRPipelineKey, BlitPipelineKey, "scene"}, backend.compiled)
	assert.Len(t, backend.device.CreatedWithLabel("camera_uniform"), 1)
	assert.Equal(t, uint64(camera.GPUCameraUniformSize), backend.device.CreatedWithLabel("camera_uniform")[0].Size())
	assert.Len(t, backend.device.Samplers, 1)

	// A second Init is a no-op.
	require.NoError(t, g.Init())
	assert.Len(t, backend.compiled, 5)
}

func TestSceneKeyVariants(t *testing.T) {
	assert.Equal(t, "scene", SceneKey(material.DefaultRenderState))
	assert.Equal(t, "scene_nocull_blend_nodepthwrite", SceneKey(material.RenderState{Blend: true}))
}

func TestRenderBeforeResizeDrawsNothing(t *testing.T) {
	g, backend := newTestGraph(t)
	require.NoError(t, g.Render(FrameInputs{}))
	assert.Empty(t, backend.frames)
}

func TestRenderRecordsThreePassesInOrder(t *testing.T) {
	g, backend := newTestGraph(t)
	require.NoError(t, g.Resize(800, 600))

	drawer := &recordingDrawer{}
	require.NoError(t, g.Render(FrameInputs{
		Instances: drawer,
		Models:    noModels{},
		Overlay:   image.NewRGBA(image.Rect(0, 0, 64, 16)),
	}))

	require.Len(t, backend.frames, 1)
	frame := backend.frames[0]
	assert.True(t, frame.submitted)
	require.Len(t, frame.passes, 3)

	scene, hdr, blit := frame.passes[0], frame.passes[1], frame.passes[2]
	assert.Equal(t, "scene", scene.desc.Label)
	assert.Same(t, g.SceneTarget(), scene.desc.Target)
	assert.Same(t, g.HDRTarget(), hdr.desc.Target)
	assert.Nil(t, blit.desc.Target)
	for _, p := range frame.passes {
		assert.True(t, p.ended)
	}

	// Skybox, instanced draw, then the overlay on top.
	require.Len(t, scene.Draws, 3)
	assert.Equal(t, SkyboxPipelineKey, scene.Draws[0].Pipeline)
	assert.Equal(t, uint32(3), scene.Draws[0].Count)
	assert.Equal(t, "frame", scene.Draws[0].BindGroups[0])
	assert.True(t, scene.Draws[1].Indexed)
	assert.Equal(t, TextPipelineKey, scene.Draws[2].Pipeline)
	assert.Equal(t, "text_input", scene.Draws[2].BindGroups[0])
	require.Len(t, drawer.frames, 1)
	assert.Equal(t, "frame", drawer.frames[0].Label())

	require.Len(t, hdr.Draws, 1)
	assert.Equal(t, gputest.DrawCall{
		Pipeline:      HDRPipelineKey,
		VertexBuffers: map[uint32]gpu.Buffer{},
		BindGroups:    map[uint32]string{0: "hdr_input"},
		Count:         3,
		InstanceCount: 1,
	}, hdr.Draws[0])
	require.Len(t, blit.Draws, 1)
	assert.Equal(t, BlitPipelineKey, blit.Draws[0].Pipeline)
	assert.Equal(t, "blit_input", blit.Draws[0].BindGroups[0])

	// The HDR pass samples the resolved scene, the blit samples the HDR target.
	hdrInput := backend.bindGroupsLabeled("hdr_input")
	require.Len(t, hdrInput, 1)
	assert.True(t, hdrInput[0].References(g.SceneTarget().Sampled()))
	assert.Same(t, g.HDRTarget().Sampled(), backend.bindGroupsLabeled("blit_input")[0].Texture(0))

	assert.Equal(t, uint64(1), g.Stats().Submitted)
}

func TestRenderWritesUniforms(t *testing.T) {
	g, backend := newTestGraph(t)
	require.NoError(t, g.Resize(320, 240))

	cam := camera.NewCamera()
	require.NoError(t, g.Render(FrameInputs{Camera: cam.Uniform()}))

	var sizes []int
	for _, w := range backend.queue.Writes {
		if w.Buffer.Label() == "camera_uniform" || w.Buffer.Label() == "light_uniform" {
			sizes = append(sizes, w.Size)
		}
	}
	assert.Equal(t, []int{208, 32}, sizes)
}

func TestOverlayIsKeptBetweenUploads(t *testing.T) {
	g, backend := newTestGraph(t)
	require.NoError(t, g.Resize(320, 240))

	require.NoError(t, g.Render(FrameInputs{Overlay: image.NewRGBA(image.Rect(0, 0, 32, 8))}))
	require.NoError(t, g.Render(FrameInputs{}))
	assert.Len(t, backend.queue.TextureWrites, 1)
	assert.Equal(t, TextPipelineKey, backend.frames[1].passes[0].Draws[1].Pipeline)

	// A new size replaces the texture and its bind group.
	require.NoError(t, g.Render(FrameInputs{Overlay: image.NewRGBA(image.Rect(0, 0, 64, 8))}))
	assert.Len(t, backend.device.LiveTextures("text_overlay"), 1)
	assert.Len(t, backend.bindGroupsLabeled("text_input"), 2)
}

func TestOutdatedSurfaceReconfiguresNextFrame(t *testing.T) {
	g, backend := newTestGraph(t)
	require.NoError(t, g.Resize(800, 600))
	backend.acquire = []error{fmt.Errorf("acquire: %w", gpu.ErrSurfaceOutdated)}

	require.NoError(t, g.Render(FrameInputs{}))
	assert.Empty(t, backend.frames)
	assert.Equal(t, uint64(1), g.Stats().Outdated)
	assert.Len(t, backend.configured, 1)

	require.NoError(t, g.Render(FrameInputs{}))
	assert.Equal(t, [][2]uint32{{800, 600}, {800, 600}}, backend.configured)
	require.Len(t, backend.frames, 1)
	assert.True(t, backend.frames[0].submitted)
}

func TestOtherAcquireErrorsDropTheFrame(t *testing.T) {
	g, backend := newTestGraph(t)
	require.NoError(t, g.Resize(800, 600))
	backend.acquire = []error{errors.New("timeout")}

	require.NoError(t, g.Render(FrameInputs{}))
	assert.Equal(t, GraphStats{Dropped: 1}, g.Stats())
	assert.Len(t, backend.configured, 1)

	require.NoError(t, g.Render(FrameInputs{}))
	assert.Len(t, backend.configured, 1)
	assert.Equal(t, uint64(1), g.Stats().Submitted)
}

func TestResizeRecreatesTargetsAndSampledGroups(t *testing.T) {
	g, backend := newTestGraph(t)
	require.NoError(t, g.Resize(800, 600))
	require.NoError(t, g.Render(FrameInputs{}))
	oldScene := g.SceneTarget().Sampled()

	require.NoError(t, g.Resize(800, 600))
	assert.Len(t, backend.configured, 1)
	assert.Same(t, oldScene, g.SceneTarget().Sampled())

	require.NoError(t, g.Resize(1024, 768))
	require.NoError(t, g.Render(FrameInputs{}))
	assert.True(t, oldScene.(*gputest.Texture).Released)
	live := backend.device.LiveTextures("scene resolve")
	require.Len(t, live, 1)
	assert.Equal(t, uint32(1024), live[0].Width())
	assert.Len(t, backend.bindGroupsLabeled("hdr_input"), 2)
	assert.Len(t, backend.bindGroupsLabeled("blit_input"), 2)
	assert.Len(t, backend.bindGroupsLabeled("frame"), 1)
}

func TestPrepareMaterialsAttachesVariantPipelines(t *testing.T) {
	storage := material.NewStorage()
	stone, err := storage.Store(cache.NewCacheKey("stone"))
	require.NoError(t, err)
	leaves, err := storage.Store(cache.NewCacheKey("leaves"), material.WithRenderState(material.RenderState{DepthWrite: true}))
	require.NoError(t, err)

	g, backend := newTestGraph(t, WithMaterialStorage(storage))
	require.NoError(t, g.PrepareMaterials())

	assert.True(t, stone.Ready())
	assert.True(t, leaves.Ready())
	assert.Equal(t, "scene", stone.Pipeline().PipelineKey())
	assert.Equal(t, "scene_nocull", leaves.Pipeline().PipelineKey())
	assert.Equal(t, "stone", stone.BindGroup().Label())
	assert.Equal(t, 1, backend.compiledCount("scene_nocull"))

	// Both materials share the placeholder textures.
	assert.Len(t, backend.device.LiveTextures(FallbackDiffuseKey), 1)
	assert.Len(t, backend.device.LiveTextures(FallbackNormalKey), 1)

	// Prepared materials are left alone.
	require.NoError(t, g.PrepareMaterials())
	assert.Len(t, backend.bindGroupsLabeled("stone"), 1)
}

func TestMaterialGrowthRebindsFrameGroup(t *testing.T) {
	storage := material.NewStorage()
	g, backend := newTestGraph(t, WithMaterialStorage(storage))
	require.NoError(t, g.Resize(64, 64))

	require.NoError(t, g.Render(FrameInputs{}))
	first := backend.bindGroupsLabeled("frame")
	require.Len(t, first, 1)
	assert.Equal(t, "material_storage_fallback", first[0].Buffer(2).Label())

	_, err := storage.Store(cache.NewCacheKey("stone"))
	require.NoError(t, err)
	require.NoError(t, g.Render(FrameInputs{}))

	frames := backend.bindGroupsLabeled("frame")
	require.Len(t, frames, 2)
	assert.Same(t, storage.Buffer(), frames[1].Buffer(2))
}

func TestReloadShaderRebuildsDependentPipelines(t *testing.T) {
	files := shaderFiles{}
	lib := shader.NewLibrary(shader.WithReader(files))
	storage := material.NewStorage()
	stone, err := storage.Store(cache.NewCacheKey("stone"))
	require.NoError(t, err)

	g, backend := newTestGraph(t, WithShaderLibrary(lib), WithMaterialStorage(storage))
	require.NoError(t, g.PrepareMaterials())

	original, err := lib.Source(shader.Scene)
	require.NoError(t, err)
	files["shaders/scene.wgsl"] = "// tweaked\n" + original
	require.NoError(t, g.ReloadShader(shader.Scene))

	assert.Equal(t, 2, backend.compiledCount("scene"))
	assert.Equal(t, 1, backend.compiledCount(HDRPipelineKey))
	rebuilt, ok := stone.Pipeline().(pipeline.Pipeline)
	require.True(t, ok)
	assert.Contains(t, rebuilt.Shader(shader.ShaderTypeFragment).Source(), "// tweaked")
}

func TestReloadShaderKeepsPipelinesOnParseFailure(t *testing.T) {
	files := shaderFiles{}
	lib := shader.NewLibrary(shader.WithReader(files))
	g, backend := newTestGraph(t, WithShaderLibrary(lib))

	files["shaders/hdr.wgsl"] = "fn nothing() {}"
	require.Error(t, g.ReloadShader(shader.HDR))
	assert.Equal(t, 1, backend.compiledCount(HDRPipelineKey))
}

func TestReloadShaderCompileFailureKeepsLibrarySource(t *testing.T) {
	files := shaderFiles{}
	lib := shader.NewLibrary(shader.WithReader(files))
	storage := material.NewStorage()
	g, backend := newTestGraph(t, WithShaderLibrary(lib), WithMaterialStorage(storage))

	original, err := lib.Source(shader.Scene)
	require.NoError(t, err)
	digest, ok := lib.Digest(shader.Scene)
	require.True(t, ok)

	files["shaders/scene.wgsl"] = "// rejected by the device\n" + original
	backend.compileErr["scene"] = errors.New("validation failed")
	require.Error(t, g.ReloadShader(shader.Scene))

	src, err := lib.Source(shader.Scene)
	require.NoError(t, err)
	assert.Equal(t, original, src)
	after, _ := lib.Digest(shader.Scene)
	assert.Equal(t, digest, after)
	assert.False(t, lib.Overridden(shader.Scene))

	// A scene variant built afterwards still compiles from the accepted source.
	delete(backend.compileErr, "scene")
	_, err = storage.Store(cache.NewCacheKey("glass"), material.WithRenderState(material.RenderState{Blend: true}))
	require.NoError(t, err)
	require.NoError(t, g.PrepareMaterials())
	assert.Equal(t, 1, backend.compiledCount("scene_nocull_blend_nodepthwrite"))
}

func TestReloadShaderSkipsUnchangedSource(t *testing.T) {
	files := shaderFiles{}
	lib := shader.NewLibrary(shader.WithReader(files))
	g, backend := newTestGraph(t, WithShaderLibrary(lib))

	require.NoError(t, g.ReloadShader(shader.HDR))
	assert.Equal(t, 1, backend.compiledCount(HDRPipelineKey))

	original, err := lib.Source(shader.HDR)
	require.NoError(t, err)
	files["shaders/hdr.wgsl"] = original + "\n// edited\n"
	require.NoError(t, g.ReloadShader(shader.HDR))
	assert.Equal(t, 2, backend.compiledCount(HDRPipelineKey))
}

func TestRenderRequiresInit(t *testing.T) {
	g := NewGraph(NewRenderer(newFakeBackend()))
	assert.Error(t, g.Render(FrameInputs{}))
}
