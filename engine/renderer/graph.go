package renderer

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/camera"
	"github.com/Carmen-Shannon/oxy-voxel/engine/light"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
	"go.uber.org/zap"
)

// Bind group layouts shared by the graph's pipelines.
var (
	// FrameLayout is group 0 of the scene and skybox shaders: camera, light and the material storage buffer.
	FrameLayout = pipeline.BindGroupLayout{
		Key: "frame",
		Entries: []pipeline.Binding{
			{Binding: 0, Type: pipeline.BindingUniform, Visibility: pipeline.VisibilityVertex | pipeline.VisibilityFragment},
			{Binding: 1, Type: pipeline.BindingUniform, Visibility: pipeline.VisibilityVertex | pipeline.VisibilityFragment},
			{Binding: 2, Type: pipeline.BindingReadOnlyStorage, Visibility: pipeline.VisibilityVertex | pipeline.VisibilityFragment},
		},
	}

	// MaterialLayout is group 1 of the scene shader: diffuse map, normal map and their sampler.
	MaterialLayout = pipeline.BindGroupLayout{
		Key: "material",
		Entries: []pipeline.Binding{
			{Binding: 0, Type: pipeline.BindingTexture, Visibility: pipeline.VisibilityFragment},
			{Binding: 1, Type: pipeline.BindingTexture, Visibility: pipeline.VisibilityFragment},
			{Binding: 2, Type: pipeline.BindingSampler, Visibility: pipeline.VisibilityFragment},
		},
	}

	// SampledLayout is group 0 of the full-screen shaders: one input texture and its sampler.
	SampledLayout = pipeline.BindGroupLayout{
		Key: "sampled",
		Entries: []pipeline.Binding{
			{Binding: 0, Type: pipeline.BindingTexture, Visibility: pipeline.VisibilityFragment},
			{Binding: 1, Type: pipeline.BindingSampler, Visibility: pipeline.VisibilityFragment},
		},
	}
)

// Pipeline keys of the fixed passes.
const (
	SkyboxPipelineKey = "skybox"
	TextPipelineKey   = "text"
	HDRPipelineKey    = "hdr"
	BlitPipelineKey   = "blit"
)

// PassKind is one pass of the fixed frame order.
type PassKind int

const (
	// PassScene renders skybox, instances, terrain and the text overlay into the scene target.
	PassScene PassKind = iota
	// PassHDR tonemaps the scene target into the HDR target.
	PassHDR
	// PassBlit copies the HDR target into the swapchain image.
	PassBlit
)

func (k PassKind) String() string {
	switch k {
	case PassScene:
		return "scene"
	case PassHDR:
		return "hdr"
	case PassBlit:
		return "blit"
	default:
		return fmt.Sprintf("pass(%d)", int(k))
	}
}

// passOrder is executed front to back every frame.
var passOrder = [...]PassKind{PassScene, PassHDR, PassBlit}

// InstanceDrawer records the batched instanced draws. instancing.Buffers satisfies it.
type InstanceDrawer interface {
	Draw(pass gpu.RenderPass, models model.Lookup, frame gpu.BindGroup)
}

// TerrainDrawer records the resident chunk draws. terrain.Terrain satisfies it.
type TerrainDrawer interface {
	Draw(pass gpu.RenderPass, mat material.Material, frame gpu.BindGroup)
}

// FrameInputs is everything one frame of the graph reads.
type FrameInputs struct {
	Camera camera.GPUCameraUniform
	Light  light.GPULightUniform

	Instances InstanceDrawer
	Models    model.Lookup

	Terrain         TerrainDrawer
	TerrainMaterial material.Material

	// Overlay is a freshly rasterized text image to upload; nil keeps the last uploaded one.
	Overlay *image.RGBA
}

// GraphStats counts frame outcomes since creation.
type GraphStats struct {
	Submitted uint64
	Dropped   uint64
	Outdated  uint64
}

// SceneKey returns the pipeline key of the scene variant for a render state.
//
// Parameters:
//   - state: the material render state
//
// Returns:
//   - string: the pipeline key
func SceneKey(state material.RenderState) string {
	key := shader.Scene
	if !state.CullBack {
		key += "_nocull"
	}
	if state.Blend {
		key += "_blend"
	}
	if !state.DepthWrite {
		key += "_nodepthwrite"
	}
	return key
}

type graph struct {
	mu *sync.Mutex

	renderer  Renderer
	library   shader.Library
	textures  TextureCache
	materials material.Storage
	log       *logger.Logger

	clearColor [4]float64
	skybox     bool
	env        *environment

	initialized bool
	outdated    bool
	stats       GraphStats

	// pipelineModules maps each built pipeline key to the shader module it compiles.
	pipelineModules map[string]string
	sceneStates     map[string]material.RenderState

	scene FrameBuffer
	hdr   FrameBuffer

	cameraBuffer   gpu.Buffer
	lightBuffer    gpu.Buffer
	fallbackBuffer gpu.Buffer
	sampler        gpu.Sampler
	overlay        gpu.Texture

	frameGroup     bind_group_provider.BindGroupProvider
	hdrGroup       bind_group_provider.BindGroupProvider
	blitGroup      bind_group_provider.BindGroupProvider
	textGroup      bind_group_provider.BindGroupProvider
	materialGroups cache.Cache[bind_group_provider.BindGroupProvider]
}

// Graph is the fixed three-pass frame: scene into an offscreen color+depth target, tonemap into an HDR target,
// then a full-screen blit into the swapchain. It owns the pipelines, uniform buffers and bind groups the passes use.
type Graph interface {
	// Init registers every fixed pipeline and allocates the uniform buffers and sampler.
	//
	// Returns:
	//   - error: a shader, pipeline or allocation error; startup cannot continue
	Init() error

	// PrepareMaterials attaches a pipeline and bind group to every stored material that has none yet.
	//
	// Returns:
	//   - error: the first pipeline or bind group creation error
	PrepareMaterials() error

	// Resize reconfigures the surface and recreates the offscreen targets. A zero dimension or the current size
	// is a no-op.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: a surface or allocation error
	Resize(width, height uint32) error

	// Render records and submits one frame. An outdated swapchain schedules a reconfigure for the next frame;
	// any other acquisition error drops the frame. Neither is returned as an error.
	//
	// Parameters:
	//   - in: the frame inputs
	//
	// Returns:
	//   - error: an error staging frame resources
	Render(in FrameInputs) error

	// ReloadShader re-reads a shader module and rebuilds every pipeline compiled from it. On failure the running
	// pipelines are kept.
	//
	// Parameters:
	//   - name: the shader module
	//
	// Returns:
	//   - error: the read, parse or compile error
	ReloadShader(name string) error

	// Library returns the shader library.
	Library() shader.Library

	// Materials returns the material storage.
	Materials() material.Storage

	// Textures returns the texture cache.
	Textures() TextureCache

	// SceneTarget returns the scene framebuffer.
	SceneTarget() FrameBuffer

	// HDRTarget returns the HDR framebuffer.
	HDRTarget() FrameBuffer

	// Stats returns the frame outcome counters.
	Stats() GraphStats

	// Release frees every resource the graph allocated.
	Release()
}

var _ Graph = &graph{}

// NewGraph creates a Graph drawing through r.
//
// Parameters:
//   - r: the renderer
//   - options: functional options to configure the graph
//
// Returns:
//   - Graph: the graph, ready for Init
func NewGraph(r Renderer, options ...GraphBuilderOption) Graph {
	g := &graph{
		mu:              &sync.Mutex{},
		renderer:        r,
		log:             logger.Provide().Named("graph"),
		clearColor:      [4]float64{0.02, 0.02, 0.05, 1},
		skybox:          true,
		pipelineModules: make(map[string]string),
		sceneStates:     make(map[string]material.RenderState),
		materialGroups:  cache.NewCache(cache.WithLabel[bind_group_provider.BindGroupProvider]("material_bind_group")),
	}
	for _, option := range options {
		option(g)
	}
	if g.library == nil {
		g.library = shader.NewLibrary()
	}
	if g.materials == nil {
		g.materials = material.NewStorage()
	}
	if g.textures == nil {
		g.textures = NewTextureCache(r.Device(), r.Queue(), nil)
	}
	samples := uint32(r.SampleCount())
	g.scene = NewFrameBuffer(RenderTargetScene, gpu.TextureFormatRGBA16Float,
		WithDepth(), WithSampleCount(r.SampleCount()), WithFrameBufferLabel("scene"))
	g.hdr = NewFrameBuffer(RenderTargetHDR, gpu.TextureFormatRGBA16Float, WithFrameBufferLabel("hdr"))
	g.log = g.log.With(zap.Uint32("msaa", samples))
	return g
}

func (g *graph) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		return nil
	}

	g.sceneStates[SceneKey(material.DefaultRenderState)] = material.DefaultRenderState
	fixed := []string{SkyboxPipelineKey, TextPipelineKey, HDRPipelineKey, BlitPipelineKey, SceneKey(material.DefaultRenderState)}
	pipelines := make([]pipeline.Pipeline, 0, len(fixed))
	for _, key := range fixed {
		p, err := g.buildPipelineLocked(key)
		if err != nil {
			return err
		}
		pipelines = append(pipelines, p)
	}
	if err := g.renderer.RegisterPipelines(pipelines...); err != nil {
		return err
	}

	device := g.renderer.Device()
	var err error
	if g.cameraBuffer, err = device.CreateBuffer(gpu.BufferDescriptor{
		Label: "camera_uniform",
		Size:  camera.GPUCameraUniformSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	}); err != nil {
		return err
	}
	if g.lightBuffer, err = device.CreateBuffer(gpu.BufferDescriptor{
		Label: "light_uniform",
		Size:  light.GPULightUniformSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	}); err != nil {
		return err
	}
	// Storage bindings may not be empty, so a default block stands in until the first material is stored.
	if g.fallbackBuffer, err = device.CreateBuffer(gpu.BufferDescriptor{
		Label: "material_storage_fallback",
		Size:  material.MaterialDataSize,
		Usage: gpu.BufferUsageStorage | gpu.BufferUsageCopyDst,
	}); err != nil {
		return err
	}
	fallback := material.DefaultMaterialData()
	if err = g.renderer.Queue().WriteBuffer(g.fallbackBuffer, 0, fallback.Marshal()); err != nil {
		return err
	}
	if g.sampler, err = device.CreateSampler("linear_sampler", common.ClampedLinearSampler); err != nil {
		return err
	}
	g.initEnvironmentLocked()

	g.initialized = true
	g.log.Info("render graph initialized", zap.Strings("pipelines", g.renderer.PipelineKeys()))
	return nil
}

// buildPipelineLocked describes the pipeline for key with freshly read shaders. Caller must hold the mutex.
func (g *graph) buildPipelineLocked(key string) (pipeline.Pipeline, error) {
	module, opts, err := g.pipelineOptionsLocked(key)
	if err != nil {
		return nil, err
	}
	if key == EquirectPipelineKey {
		cs, err := g.library.Shader(module, shader.ShaderTypeCompute)
		if err != nil {
			return nil, err
		}
		g.pipelineModules[key] = module
		return pipeline.NewComputePipeline(key, append(opts, pipeline.WithComputeShader(cs))...), nil
	}
	vs, err := g.library.Shader(module, shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}
	fs, err := g.library.Shader(module, shader.ShaderTypeFragment)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithVertexShader(vs), pipeline.WithFragmentShader(fs))
	g.pipelineModules[key] = module
	return pipeline.NewPipeline(key, opts...), nil
}

// buildCandidateLocked builds the pipeline for key from shaders that are not yet in the library.
func (g *graph) buildCandidateLocked(key string, c shader.Candidate) (pipeline.Pipeline, error) {
	_, opts, err := g.pipelineOptionsLocked(key)
	if err != nil {
		return nil, err
	}
	if c.Compute != nil {
		return pipeline.NewComputePipeline(key, append(opts, pipeline.WithComputeShader(c.Compute))...), nil
	}
	opts = append(opts, pipeline.WithVertexShader(c.Vertex), pipeline.WithFragmentShader(c.Fragment))
	return pipeline.NewPipeline(key, opts...), nil
}

func (g *graph) pipelineOptionsLocked(key string) (string, []pipeline.PipelineBuilderOption, error) {
	samples := uint32(g.renderer.SampleCount())
	sceneTarget := []pipeline.PipelineBuilderOption{
		pipeline.WithColorFormat(gpu.TextureFormatRGBA16Float),
		pipeline.WithDepthFormat(gpu.TextureFormatDepth24Plus),
		pipeline.WithSampleCount(samples),
	}

	switch key {
	case SkyboxPipelineKey:
		return shader.Skybox, append(sceneTarget,
			pipeline.WithBindGroupLayouts(FrameLayout),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		), nil
	case TextPipelineKey:
		return shader.Text, append(sceneTarget,
			pipeline.WithBindGroupLayouts(SampledLayout),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
			pipeline.WithBlendEnabled(true),
			pipeline.WithBlendMode(pipeline.BlendModeAlpha),
		), nil
	case HDRPipelineKey:
		return shader.HDR, []pipeline.PipelineBuilderOption{
			pipeline.WithBindGroupLayouts(SampledLayout),
			pipeline.WithColorFormat(gpu.TextureFormatRGBA16Float),
		}, nil
	case BlitPipelineKey:
		return shader.Blit, []pipeline.PipelineBuilderOption{
			pipeline.WithBindGroupLayouts(SampledLayout),
			pipeline.WithColorFormat(gpu.TextureFormatSurface),
		}, nil
	case EquirectPipelineKey:
		return shader.Equirect, []pipeline.PipelineBuilderOption{
			pipeline.WithBindGroupLayouts(ProjectionLayout),
		}, nil
	case EnvironmentPipelineKey:
		return shader.Environment, append(sceneTarget,
			pipeline.WithBindGroupLayouts(FrameLayout, EnvironmentLayout),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		), nil
	}

	state, ok := g.sceneStates[key]
	if !ok {
		return "", nil, fmt.Errorf("pipeline %q: %w", key, common.ErrCacheMiss)
	}
	cull := pipeline.CullModeNone
	if state.CullBack {
		cull = pipeline.CullModeBack
	}
	return shader.Scene, append(sceneTarget,
		pipeline.WithVertexLayouts(pipeline.MeshLayout, pipeline.InstanceLayout),
		pipeline.WithBindGroupLayouts(FrameLayout, MaterialLayout),
		pipeline.WithCullMode(cull),
		pipeline.WithBlendEnabled(state.Blend),
		pipeline.WithDepthWriteEnabled(state.DepthWrite),
	), nil
}

// scenePipelineLocked returns the registered scene variant for state, building it on first use. Caller must hold the mutex.
func (g *graph) scenePipelineLocked(state material.RenderState) (pipeline.Pipeline, error) {
	key := SceneKey(state)
	g.sceneStates[key] = state
	if p, ok := g.renderer.Pipeline(key); ok {
		return p, nil
	}
	p, err := g.buildPipelineLocked(key)
	if err != nil {
		return nil, err
	}
	if err := g.renderer.RegisterPipelines(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (g *graph) PrepareMaterials() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, mat := range g.materials.Materials() {
		if mat.Ready() {
			continue
		}
		p, err := g.scenePipelineLocked(mat.State())
		if err != nil {
			return fmt.Errorf("material %s: %w", mat.Key(), err)
		}
		bg, err := g.materialGroups.GetOrCreate(mat.Key(), func() (bind_group_provider.BindGroupProvider, error) {
			return g.materialBindGroupLocked(mat)
		})
		if err != nil {
			return fmt.Errorf("material %s: %w", mat.Key(), err)
		}
		mat.SetPipeline(p)
		mat.SetBindGroup(bg)
	}
	return nil
}

func (g *graph) materialBindGroupLocked(mat material.Material) (bind_group_provider.BindGroupProvider, error) {
	diffuse := g.textures.Resolve(mat.DiffuseTexture(), TextureRoleDiffuse)
	normal := g.textures.Resolve(mat.NormalTexture(), TextureRoleNormal)
	if diffuse == nil || normal == nil {
		return nil, fmt.Errorf("material textures: %w", common.ErrCacheMiss)
	}
	return g.renderer.CreateBindGroup(MaterialLayout, mat.Key().String(),
		BindGroupEntry{Binding: 0, Texture: diffuse},
		BindGroupEntry{Binding: 1, Texture: normal},
		BindGroupEntry{Binding: 2, Sampler: g.sampler},
	)
}

func (g *graph) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if _, err := g.renderer.Resize(width, height); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resizeTargetsLocked(width, height)
}

// resizeTargetsLocked recreates the offscreen targets and drops the bind groups that sampled the old ones.
func (g *graph) resizeTargetsLocked(width, height uint32) error {
	device := g.renderer.Device()
	oldScene, oldHDR := g.scene.Sampled(), g.hdr.Sampled()
	if _, err := g.scene.Resize(device, width, height); err != nil {
		return err
	}
	if _, err := g.hdr.Resize(device, width, height); err != nil {
		return err
	}
	if g.hdrGroup != nil && oldScene != nil && g.hdrGroup.References(oldScene) {
		g.hdrGroup.Release()
		g.hdrGroup = nil
	}
	if g.blitGroup != nil && oldHDR != nil && g.blitGroup.References(oldHDR) {
		g.blitGroup.Release()
		g.blitGroup = nil
	}
	return nil
}

func (g *graph) Render(in FrameInputs) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return errors.New("render graph not initialized")
	}

	if g.outdated {
		g.outdated = false
		if err := g.renderer.Reconfigure(); err != nil {
			return err
		}
	}
	width, height := g.renderer.Size()
	if width == 0 || height == 0 {
		return nil
	}
	if w, h := g.scene.Size(); w != width || h != height {
		if err := g.resizeTargetsLocked(width, height); err != nil {
			return err
		}
	}

	if err := g.stageLocked(in); err != nil {
		return err
	}

	frame, err := g.renderer.BeginFrame()
	if errors.Is(err, gpu.ErrSurfaceOutdated) {
		g.outdated = true
		g.stats.Outdated++
		g.log.Debug("surface outdated, reconfiguring next frame")
		return nil
	}
	if err != nil {
		g.stats.Dropped++
		g.log.Warn("frame dropped", zap.Error(err))
		return nil
	}

	for _, kind := range passOrder {
		if err := g.recordLocked(frame, kind, in); err != nil {
			frame.Discard()
			g.stats.Dropped++
			g.log.Warn("frame dropped", zap.Stringer("pass", kind), zap.Error(err))
			return nil
		}
	}
	if err := frame.Submit(); err != nil {
		g.stats.Dropped++
		g.log.Warn("frame dropped", zap.Error(err))
		return nil
	}
	g.stats.Submitted++
	return nil
}

// stageLocked syncs the material storage, creates missing bind groups, then writes the uniforms and the overlay.
func (g *graph) stageLocked(in FrameInputs) error {
	queue := g.renderer.Queue()
	grew, err := g.materials.Sync(g.renderer.Device(), queue)
	if err != nil {
		return err
	}
	if grew && g.frameGroup != nil {
		g.frameGroup.Release()
		g.frameGroup = nil
	}
	if g.frameGroup == nil {
		storage := g.materials.Buffer()
		if storage == nil {
			storage = g.fallbackBuffer
		}
		if g.frameGroup, err = g.renderer.CreateBindGroup(FrameLayout, "frame",
			BindGroupEntry{Binding: 0, Buffer: g.cameraBuffer},
			BindGroupEntry{Binding: 1, Buffer: g.lightBuffer},
			BindGroupEntry{Binding: 2, Buffer: storage},
		); err != nil {
			return err
		}
	}

	cameraUniform, lightUniform := in.Camera, in.Light
	if err := bind_group_provider.WriteBuffers(queue, []bind_group_provider.BufferWrite{
		{Provider: g.frameGroup, Binding: 0, Data: cameraUniform.Marshal()},
		{Provider: g.frameGroup, Binding: 1, Data: lightUniform.Marshal()},
	}); err != nil {
		return err
	}

	if in.Overlay != nil {
		if err := g.uploadOverlayLocked(in.Overlay); err != nil {
			return err
		}
	}

	if g.hdrGroup == nil {
		if g.hdrGroup, err = g.sampledGroupLocked("hdr_input", g.scene.Sampled()); err != nil {
			return err
		}
	}
	if g.blitGroup == nil {
		if g.blitGroup, err = g.sampledGroupLocked("blit_input", g.hdr.Sampled()); err != nil {
			return err
		}
	}
	return nil
}

func (g *graph) uploadOverlayLocked(img *image.RGBA) error {
	data := common.RGBAStaging(img)
	if data.Width == 0 || data.Height == 0 {
		return nil
	}
	if g.overlay == nil || g.overlay.Width() != data.Width || g.overlay.Height() != data.Height {
		tex, err := g.renderer.Device().CreateTexture(gpu.TextureDescriptor{
			Label:       "text_overlay",
			Width:       data.Width,
			Height:      data.Height,
			Format:      gpu.TextureFormatRGBA8Unorm,
			Usage:       gpu.TextureUsageSampled | gpu.TextureUsageCopyDst,
			SampleCount: 1,
		})
		if err != nil {
			return err
		}
		if g.textGroup != nil {
			g.textGroup.Release()
			g.textGroup = nil
		}
		if g.overlay != nil {
			g.overlay.Release()
		}
		g.overlay = tex
	}
	if err := g.renderer.Queue().WriteTexture(g.overlay, data); err != nil {
		return err
	}
	if g.textGroup == nil {
		var err error
		if g.textGroup, err = g.sampledGroupLocked("text_input", g.overlay); err != nil {
			return err
		}
	}
	return nil
}

func (g *graph) sampledGroupLocked(label string, tex gpu.Texture) (bind_group_provider.BindGroupProvider, error) {
	if tex == nil {
		return nil, fmt.Errorf("%s: %w", label, common.ErrCacheMiss)
	}
	return g.renderer.CreateBindGroup(SampledLayout, label,
		BindGroupEntry{Binding: 0, Texture: tex},
		BindGroupEntry{Binding: 1, Sampler: g.sampler},
	)
}

// recordLocked records one pass. Missing pipelines skip their draw.
func (g *graph) recordLocked(frame Frame, kind PassKind, in FrameInputs) error {
	desc := PassDescriptor{Label: kind.String()}
	switch kind {
	case PassScene:
		desc.Target = g.scene
		desc.Clear = g.clearColor
	case PassHDR:
		desc.Target = g.hdr
		desc.Clear = [4]float64{0, 0, 0, 1}
	case PassBlit:
		desc.Clear = [4]float64{0, 0, 0, 1}
	}

	pass, err := frame.BeginPass(desc)
	if err != nil {
		return err
	}
	defer frame.EndPass(pass)

	switch kind {
	case PassScene:
		if g.skybox {
			g.skyLocked(pass)
		}
		if in.Instances != nil && in.Models != nil {
			in.Instances.Draw(pass, in.Models, g.frameGroup)
		}
		if in.Terrain != nil && in.TerrainMaterial != nil {
			in.Terrain.Draw(pass, in.TerrainMaterial, g.frameGroup)
		}
		if g.textGroup != nil {
			g.fullScreenLocked(pass, TextPipelineKey, g.textGroup)
		}
	case PassHDR:
		g.fullScreenLocked(pass, HDRPipelineKey, g.hdrGroup)
	case PassBlit:
		g.fullScreenLocked(pass, BlitPipelineKey, g.blitGroup)
	}
	return nil
}

// fullScreenLocked draws the oversized triangle: three vertices generated in the vertex shader, no buffers.
func (g *graph) fullScreenLocked(pass gpu.RenderPass, key string, group gpu.BindGroup) {
	p, ok := g.renderer.Pipeline(key)
	if !ok || group == nil {
		return
	}
	pass.SetPipeline(p)
	pass.SetBindGroup(0, group)
	pass.Draw(3, 1)
}

func (g *graph) ReloadShader(name string) error {
	c, err := g.library.Candidate(name)
	if err != nil {
		return err
	}
	if digest, ok := g.library.Digest(name); ok && digest == c.Digest {
		g.log.Debug("shader unchanged", zap.String("module", name))
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var built []pipeline.Pipeline
	for key, module := range g.pipelineModules {
		if module != name {
			continue
		}
		if _, registered := g.renderer.Pipeline(key); !registered {
			continue
		}
		p, err := g.buildCandidateLocked(key, c)
		if err != nil {
			return err
		}
		built = append(built, p)
	}
	// The library keeps the old source until every affected pipeline compiled.
	if err := g.renderer.ReplacePipelines(built...); err != nil {
		return err
	}
	g.library.Commit(c)

	rebuilt := make(map[string]pipeline.Pipeline, len(built))
	for _, p := range built {
		rebuilt[p.PipelineKey()] = p
	}
	if _, ok := rebuilt[EquirectPipelineKey]; ok && g.env.ready() {
		if err := g.projectEnvironmentLocked(); err != nil {
			return err
		}
	}
	for _, mat := range g.materials.Materials() {
		if p, ok := rebuilt[SceneKey(mat.State())]; ok && mat.Pipeline() != nil {
			mat.SetPipeline(p)
		}
	}
	g.log.Info("shader pipelines rebuilt", zap.String("module", name), zap.Int("pipelines", len(rebuilt)))
	return nil
}

func (g *graph) Library() shader.Library {
	return g.library
}

func (g *graph) Materials() material.Storage {
	return g.materials
}

func (g *graph) Textures() TextureCache {
	return g.textures
}

func (g *graph) SceneTarget() FrameBuffer {
	return g.scene
}

func (g *graph) HDRTarget() FrameBuffer {
	return g.hdr
}

func (g *graph) Stats() GraphStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

func (g *graph) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, bg := range []bind_group_provider.BindGroupProvider{g.frameGroup, g.hdrGroup, g.blitGroup, g.textGroup} {
		if bg != nil {
			bg.Release()
		}
	}
	g.frameGroup, g.hdrGroup, g.blitGroup, g.textGroup = nil, nil, nil, nil
	for _, key := range g.materialGroups.Keys() {
		if bg, ok := g.materialGroups.Remove(key); ok {
			bg.Release()
		}
	}
	for _, res := range []interface{ Release() }{g.cameraBuffer, g.lightBuffer, g.fallbackBuffer, g.sampler, g.overlay} {
		if res != nil {
			res.Release()
		}
	}
	if g.env != nil {
		g.env.release()
	}
	g.scene.Release()
	g.hdr.Release()
	g.textures.Release()
	g.initialized = false
}
