package material

import (
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithData is an option builder that sets the lighting constants of the material.
//
// Parameters:
//   - data: the ambient, diffuse, specular and shininess block
//
// Returns:
//   - MaterialBuilderOption: a function that applies the data option to a material
func WithData(data MaterialData) MaterialBuilderOption {
	return func(m *material) {
		m.data = data
	}
}

// WithDiffuseTexture is an option builder that sets the texture cache key of the diffuse map.
//
// Parameters:
//   - key: the texture key
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse texture option to a material
func WithDiffuseTexture(key cache.CacheKey) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseTexture = key
	}
}

// WithNormalTexture is an option builder that sets the texture cache key of the normal map.
//
// Parameters:
//   - key: the texture key
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal texture option to a material
func WithNormalTexture(key cache.CacheKey) MaterialBuilderOption {
	return func(m *material) {
		m.normalTexture = key
	}
}

// WithRenderState is an option builder that sets the fixed-function state of the material.
//
// Parameters:
//   - state: the cull, blend and depth-write state
//
// Returns:
//   - MaterialBuilderOption: a function that applies the render state option to a material
func WithRenderState(state RenderState) MaterialBuilderOption {
	return func(m *material) {
		m.state = state
	}
}

// WithPipeline is an option builder that attaches the render pipeline at construction.
func WithPipeline(p gpu.Pipeline) MaterialBuilderOption {
	return func(m *material) {
		m.pipeline = p
	}
}

// WithBindGroup is an option builder that attaches the material bind group at construction.
func WithBindGroup(bg gpu.BindGroup) MaterialBuilderOption {
	return func(m *material) {
		m.bindGroup = bg
	}
}

func withIndex(index uint32) MaterialBuilderOption {
	return func(m *material) {
		m.index = index
	}
}
