package model

import (
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
)

// Part pairs one mesh with the material it is drawn with.
type Part struct {
	Mesh     *Mesh
	Material material.Material
}

// model is the implementation of the Model interface.
type model struct {
	key    cache.CacheKey
	parts  []Part
	bounds AABB
}

// Model defines the interface for a GPU-ready renderable: a list of mesh/material parts and the model-space
// bounds enclosing all of them. Models are shared by pointer between every entity that references their key.
type Model interface {
	// Key retrieves the model identity.
	//
	// Returns:
	//   - cache.CacheKey: the model key
	Key() cache.CacheKey

	// Parts retrieves the mesh/material pairs in draw order.
	//
	// Returns:
	//   - []Part: the parts
	Parts() []Part

	// Bounds retrieves the model-space AABB enclosing every part.
	//
	// Returns:
	//   - AABB: the bounds
	Bounds() AABB

	// BoundingRadius returns the radius of the sphere enclosing Bounds, centered on the bounds midpoint.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied. When no bounds option is given the
// bounds are the union of the part mesh bounds.
//
// Parameters:
//   - key: the model identity
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(key cache.CacheKey, options ...ModelBuilderOption) Model {
	m := &model{key: key}
	for _, opt := range options {
		opt(m)
	}
	if m.bounds == (AABB{}) {
		m.bounds = unionBounds(m.parts)
	}
	return m
}

func (m *model) Key() cache.CacheKey {
	return m.key
}

func (m *model) Parts() []Part {
	return m.parts
}

func (m *model) Bounds() AABB {
	return m.bounds
}

func (m *model) BoundingRadius() float32 {
	return m.bounds.Radius()
}

func unionBounds(parts []Part) AABB {
	var out AABB
	first := true
	for _, p := range parts {
		if p.Mesh == nil {
			continue
		}
		b := p.Mesh.Bounds
		if first {
			out = b
			first = false
			continue
		}
		for i := 0; i < 3; i++ {
			out.Min[i] = min(out.Min[i], b.Min[i])
			out.Max[i] = max(out.Max[i], b.Max[i])
		}
	}
	return out
}
