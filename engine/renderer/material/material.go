package material

import (
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// RenderState is the fixed-function state a material asks of its pipeline.
type RenderState struct {
	// CullBack enables back-face culling. Terrain and closed meshes use it; foliage and quads do not.
	CullBack bool
	// Blend enables alpha blending.
	Blend bool
	// DepthWrite enables depth writes.
	DepthWrite bool
}

// DefaultRenderState is opaque, back-face culled, depth-writing.
var DefaultRenderState = RenderState{CullBack: true, DepthWrite: true}

// material is the implementation of the Material interface.
type material struct {
	key            cache.CacheKey
	index          uint32
	data           MaterialData
	diffuseTexture cache.CacheKey
	normalTexture  cache.CacheKey
	state          RenderState
	pipeline       gpu.Pipeline
	bindGroup      gpu.BindGroup
}

// Material defines the interface for a render material: lighting constants stored in the shared material buffer,
// texture references resolved through the texture cache, and the GPU pipeline and bind group used to draw with it.
//
// Surface properties are set at construction and are read-only through this interface. GPU references are mutable
// so the renderer can attach them once pipelines exist.
type Material interface {
	// Key retrieves the cache identity of the material.
	//
	// Returns:
	//   - cache.CacheKey: the material key
	Key() cache.CacheKey

	// Index retrieves the slot of this material in the material storage buffer.
	//
	// Returns:
	//   - uint32: the storage slot written into every instance record using this material
	Index() uint32

	// Data retrieves the lighting constants.
	//
	// Returns:
	//   - MaterialData: the material block
	Data() MaterialData

	// DiffuseTexture retrieves the texture cache key of the diffuse map, or the zero key when the white fallback
	// should be bound.
	//
	// Returns:
	//   - cache.CacheKey: the diffuse texture key
	DiffuseTexture() cache.CacheKey

	// NormalTexture retrieves the texture cache key of the normal map, or the zero key when the flat fallback
	// should be bound.
	//
	// Returns:
	//   - cache.CacheKey: the normal texture key
	NormalTexture() cache.CacheKey

	// State retrieves the fixed-function state requested by the material.
	//
	// Returns:
	//   - RenderState: the render state
	State() RenderState

	// Pipeline retrieves the render pipeline this material draws with, or nil if not yet attached.
	//
	// Returns:
	//   - gpu.Pipeline: the pipeline
	Pipeline() gpu.Pipeline

	// BindGroup retrieves the material bind group (textures and samplers), or nil if not yet attached.
	//
	// Returns:
	//   - gpu.BindGroup: the bind group
	BindGroup() gpu.BindGroup

	// SetPipeline attaches the render pipeline.
	//
	// Parameters:
	//   - p: the pipeline to draw with
	SetPipeline(p gpu.Pipeline)

	// SetBindGroup attaches the material bind group.
	//
	// Parameters:
	//   - bg: the bind group holding the material textures
	SetBindGroup(bg gpu.BindGroup)

	// Ready reports whether both the pipeline and the bind group are attached.
	//
	// Returns:
	//   - bool: true if the material can be drawn
	Ready() bool
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - key: the cache identity of the material
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(key cache.CacheKey, options ...MaterialBuilderOption) Material {
	m := &material{
		key:   key,
		data:  DefaultMaterialData(),
		state: DefaultRenderState,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Key() cache.CacheKey {
	return m.key
}

func (m *material) Index() uint32 {
	return m.index
}

func (m *material) Data() MaterialData {
	return m.data
}

func (m *material) DiffuseTexture() cache.CacheKey {
	return m.diffuseTexture
}

func (m *material) NormalTexture() cache.CacheKey {
	return m.normalTexture
}

func (m *material) State() RenderState {
	return m.state
}

func (m *material) Pipeline() gpu.Pipeline {
	return m.pipeline
}

func (m *material) BindGroup() gpu.BindGroup {
	return m.bindGroup
}

func (m *material) SetPipeline(p gpu.Pipeline) {
	m.pipeline = p
}

func (m *material) SetBindGroup(bg gpu.BindGroup) {
	m.bindGroup = bg
}

func (m *material) Ready() bool {
	return m.pipeline != nil && m.bindGroup != nil
}
