package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// Topology is the primitive assembly mode.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
)

// FrontFace is the winding order of front-facing triangles.
type FrontFace int

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

// WriteMask selects the color channels a pipeline writes.
type WriteMask uint32

const (
	WriteMaskRed WriteMask = 1 << iota
	WriteMaskGreen
	WriteMaskBlue
	WriteMaskAlpha
	WriteMaskAll = WriteMaskRed | WriteMaskGreen | WriteMaskBlue | WriteMaskAlpha
)

// BlendMode is the color blend equation used when blending is enabled.
type BlendMode int

const (
	// BlendModeAlpha is straight alpha: src*a + dst*(1-a).
	BlendModeAlpha BlendMode = iota
	// BlendModeAdditive adds the source to the destination.
	BlendModeAdditive
)

// StepMode is the rate at which a vertex buffer advances.
type StepMode int

const (
	StepModeVertex StepMode = iota
	StepModeInstance
)

// VertexBufferLayout describes one vertex buffer slot.
type VertexBufferLayout struct {
	Stride     uint64
	StepMode   StepMode
	Attributes []model.VertexAttribute
}

// MeshLayout is the slot 0 layout of model.Vertex.
var MeshLayout = VertexBufferLayout{Stride: model.VertexSize, StepMode: StepModeVertex, Attributes: model.VertexAttributes}

// InstanceLayout is the slot 1 layout of model.InstanceRecord.
var InstanceLayout = VertexBufferLayout{Stride: model.InstanceRecordSize, StepMode: StepModeInstance, Attributes: model.InstanceAttributes}

// PipelineType identifies whether a pipeline rasterizes or dispatches compute work.
type PipelineType int

const (
	// PipelineTypeRender is a vertex and fragment pipeline.
	PipelineTypeRender PipelineType = iota
	// PipelineTypeCompute is a pipeline with a single compute entry point.
	PipelineTypeCompute
)

// BindingType is the resource kind of one bind group entry.
type BindingType int

const (
	BindingUniform BindingType = iota
	BindingReadOnlyStorage
	BindingTexture
	BindingSampler
	// BindingUnfilterableTexture is a float texture read with textureLoad, e.g. rgba32float.
	BindingUnfilterableTexture
	// BindingCubeTexture is a sampled cube map.
	BindingCubeTexture
	// BindingStorageTexture is a write-only 2D array texture written by a compute shader.
	BindingStorageTexture
)

// Visibility is the set of shader stages a binding is visible to.
type Visibility uint32

const (
	VisibilityVertex Visibility = 1 << iota
	VisibilityFragment
	VisibilityCompute
)

// Binding is one entry in a bind group layout.
type Binding struct {
	Binding    uint32
	Type       BindingType
	Visibility Visibility
	// Format is the texel format of a BindingStorageTexture.
	Format gpu.TextureFormat
}

// BindGroupLayout is a bind group layout identified by Key. Backends build one GPU layout per key and reuse it
// across every pipeline that names it, so bind groups created against a key are compatible with all of them.
type BindGroupLayout struct {
	Key     string
	Entries []Binding
}

// Entry returns the layout entry at a binding index.
//
// Parameters:
//   - binding: the binding index
//
// Returns:
//   - Binding: the entry
//   - bool: false if the layout has no entry at binding
func (l BindGroupLayout) Entry(binding uint32) (Binding, bool) {
	for _, b := range l.Entries {
		if b.Binding == binding {
			return b, true
		}
	}
	return Binding{}, false
}

// pipeline is the implementation of the Pipeline interface.
// It holds the backend pipeline handle together with every setting needed to create it.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey  string
	pipelineType PipelineType

	// the following shader references are used for pipeline creation, they are required to be set before initializing a pipeline.

	vertexShader, fragmentShader, computeShader shader.Shader

	vertexLayouts    []VertexBufferLayout
	bindGroupLayouts []BindGroupLayout
	colorFormat      gpu.TextureFormat
	depthFormat      gpu.TextureFormat
	sampleCount      uint32

	// handle is the backend object, nil until the renderer registers the pipeline
	handle any

	// The following properties are used to configure the pipeline during creation and can be toggled/set with the builder options.

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            CullMode
	topology            Topology
	frontFace           FrontFace
	writeMask           WriteMask
	blendMode           BlendMode
}

// Pipeline defines the interface for a render pipeline: a vertex and fragment shader pair, the vertex buffer
// and bind group layouts they consume, the attachment formats they render into, and the fixed-function
// depth, blend, cull and topology state. A compute pipeline uses the same type with a single compute shader
// and only its bind group layouts.
type Pipeline interface {
	gpu.Pipeline

	// Type returns whether the pipeline is a render or a compute pipeline.
	//
	// Returns:
	//   - PipelineType: the pipeline type
	Type() PipelineType

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// VertexLayouts returns the vertex buffer layouts indexed by slot.
	//
	// Returns:
	//   - []VertexBufferLayout: the layouts; empty for full-screen passes
	VertexLayouts() []VertexBufferLayout

	// BindGroupLayouts returns the bind group layouts indexed by group.
	//
	// Returns:
	//   - []BindGroupLayout: the layouts
	BindGroupLayouts() []BindGroupLayout

	// ColorFormat returns the color attachment format.
	//
	// Returns:
	//   - gpu.TextureFormat: the format; TextureFormatSurface means the swapchain format
	ColorFormat() gpu.TextureFormat

	// DepthFormat returns the depth attachment format.
	//
	// Returns:
	//   - gpu.TextureFormat: the format; TextureFormatUndefined means the pipeline has no depth attachment
	DepthFormat() gpu.TextureFormat

	// SampleCount returns the MSAA sample count of the attachments.
	//
	// Returns:
	//   - uint32: the sample count, at least 1
	SampleCount() uint32

	// Pipeline returns the backend pipeline object, or nil before the pipeline has been registered.
	// Note: The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the backend pipeline object
	Pipeline() any

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// DepthBias returns the depth bias value configured for this pipeline.
	//
	// Returns:
	//   - int32: the depth bias value for this pipeline
	DepthBias() int32

	// DepthBiasSlopeScale returns the depth bias slope scale configured for this pipeline.
	//
	// Returns:
	//   - float32: the depth bias slope scale for this pipeline
	DepthBiasSlopeScale() float32

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - CullMode: the cull mode for this pipeline
	CullMode() CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - Topology: the primitive topology for this pipeline
	Topology() Topology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - FrontFace: the front face winding order for this pipeline
	FrontFace() FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - WriteMask: the color write mask for this pipeline
	WriteMask() WriteMask

	// BlendMode returns the blend equation used when blending is enabled.
	//
	// Returns:
	//   - BlendMode: the blend equation
	BlendMode() BlendMode

	// Validate checks that every resource the shaders declare is present in the bind group layouts with a
	// matching kind.
	//
	// Returns:
	//   - error: a description of the first mismatch, nil if the pipeline is consistent
	Validate() error

	// SetRenderPipeline sets the backend pipeline object.
	//
	// Parameters:
	//   - p: the backend pipeline
	SetRenderPipeline(p any)

	// SetComputePipeline sets the backend object of a compute pipeline.
	//
	// Parameters:
	//   - p: the backend compute pipeline
	SetComputePipeline(p any)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	return newPipeline(PipelineTypeRender, pipelineKey, opts...)
}

// NewComputePipeline creates a compute Pipeline. Only WithComputeShader and WithBindGroupLayouts affect it.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new compute Pipeline
func NewComputePipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	return newPipeline(PipelineTypeCompute, pipelineKey, opts...)
}

func newPipeline(pipelineType PipelineType, pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		colorFormat:       gpu.TextureFormatSurface,
		depthFormat:       gpu.TextureFormatUndefined,
		sampleCount:       1,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		blendEnabled:      false,
		cullMode:          CullModeNone,
		topology:          TopologyTriangleList,
		frontFace:         FrontFaceCCW,
		writeMask:         WriteMaskAll,
		blendMode:         BlendModeAlpha,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sampleCount == 0 {
		p.sampleCount = 1
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) VertexLayouts() []VertexBufferLayout {
	return p.vertexLayouts
}

func (p *pipeline) BindGroupLayouts() []BindGroupLayout {
	return p.bindGroupLayouts
}

func (p *pipeline) ColorFormat() gpu.TextureFormat {
	return p.colorFormat
}

func (p *pipeline) DepthFormat() gpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) SampleCount() uint32 {
	return p.sampleCount
}

func (p *pipeline) Pipeline() any {
	return p.handle
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() Topology {
	return p.topology
}

func (p *pipeline) FrontFace() FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() WriteMask {
	return p.writeMask
}

func (p *pipeline) BlendMode() BlendMode {
	return p.blendMode
}

func (p *pipeline) Validate() error {
	stages := []shader.Shader{p.vertexShader, p.fragmentShader}
	if p.pipelineType == PipelineTypeCompute {
		if p.computeShader == nil {
			return fmt.Errorf("pipeline %q: a compute shader is required", p.pipelineKey)
		}
		stages = []shader.Shader{p.computeShader}
	} else if p.vertexShader == nil || p.fragmentShader == nil {
		return fmt.Errorf("pipeline %q: vertex and fragment shaders are required", p.pipelineKey)
	}
	for _, s := range stages {
		for _, d := range s.Declarations() {
			if int(d.Group) >= len(p.bindGroupLayouts) {
				return fmt.Errorf("pipeline %q: %s declares %s in group %d, which has no layout", p.pipelineKey, s.Key(), d.Name, d.Group)
			}
			layout := p.bindGroupLayouts[d.Group]
			entry, ok := layout.Entry(d.Binding)
			if !ok {
				return fmt.Errorf("pipeline %q: %s declares %s at @group(%d) @binding(%d), missing from layout %q",
					p.pipelineKey, s.Key(), d.Name, d.Group, d.Binding, layout.Key)
			}
			if !entry.Type.matches(d) {
				return fmt.Errorf("pipeline %q: %s declares %s as %q, layout %q binds a different resource kind",
					p.pipelineKey, s.Key(), d.Name, d.Type, layout.Key)
			}
		}
	}
	return nil
}

func (p *pipeline) SetRenderPipeline(rp any) {
	p.handle = rp
}

func (p *pipeline) SetComputePipeline(cp any) {
	p.handle = cp
}

func (t BindingType) matches(d shader.Declaration) bool {
	switch t {
	case BindingUniform:
		return d.IsUniform()
	case BindingReadOnlyStorage:
		return d.IsStorage()
	case BindingTexture, BindingUnfilterableTexture:
		return d.IsTexture() && !d.IsStorageTexture() && !d.IsCubeTexture()
	case BindingCubeTexture:
		return d.IsCubeTexture()
	case BindingStorageTexture:
		return d.IsStorageTexture()
	case BindingSampler:
		return d.IsSampler()
	default:
		return false
	}
}
