package model

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box in model space.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Radius returns the radius of the sphere around Center enclosing the box.
func (b AABB) Radius() float32 {
	return b.Max.Sub(b.Min).Len() * 0.5
}

// MeshData is the canonical CPU-side geometry handed over by a geometry supplier: triangle-list vertices and
// 32-bit indices.
type MeshData struct {
	Vertices []Vertex
	Indices  []uint32
}

// Empty reports whether the mesh has nothing to draw.
func (m *MeshData) Empty() bool {
	return len(m.Vertices) == 0 || len(m.Indices) == 0
}

// Bounds computes the model-space AABB of the vertices. An empty mesh has a zero box.
//
// Returns:
//   - AABB: the bounding box
func (m *MeshData) Bounds() AABB {
	if len(m.Vertices) == 0 {
		return AABB{}
	}
	lo := mgl32.Vec3(m.Vertices[0].Position)
	hi := lo
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = math32.Min(lo[i], v.Position[i])
			hi[i] = math32.Max(hi[i], v.Position[i])
		}
	}
	return AABB{Min: lo, Max: hi}
}

// ComputeTangents accumulates per-triangle tangents from positions and texture coordinates into every vertex, then
// orthogonalizes them against the vertex normal. Vertices whose triangles have degenerate UVs get a tangent
// perpendicular to the normal.
func (m *MeshData) ComputeTangents() {
	acc := make([]mgl32.Vec3, len(m.Vertices))
	for t := 0; t+2 < len(m.Indices); t += 3 {
		i0, i1, i2 := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		if int(i0) >= len(m.Vertices) || int(i1) >= len(m.Vertices) || int(i2) >= len(m.Vertices) {
			continue
		}
		v0, v1, v2 := m.Vertices[i0], m.Vertices[i1], m.Vertices[i2]

		e1 := mgl32.Vec3(v1.Position).Sub(v0.Position)
		e2 := mgl32.Vec3(v2.Position).Sub(v0.Position)
		du1, dv1 := v1.TexCoord[0]-v0.TexCoord[0], v1.TexCoord[1]-v0.TexCoord[1]
		du2, dv2 := v2.TexCoord[0]-v0.TexCoord[0], v2.TexCoord[1]-v0.TexCoord[1]

		det := du1*dv2 - du2*dv1
		if math32.Abs(det) < 1e-8 {
			continue
		}
		r := 1 / det
		tangent := e1.Mul(dv2 * r).Sub(e2.Mul(dv1 * r))
		acc[i0] = acc[i0].Add(tangent)
		acc[i1] = acc[i1].Add(tangent)
		acc[i2] = acc[i2].Add(tangent)
	}

	for i := range m.Vertices {
		n := mgl32.Vec3(m.Vertices[i].Normal)
		t := acc[i].Sub(n.Mul(n.Dot(acc[i])))
		if t.Len() < 1e-6 {
			t = perpendicular(n)
		}
		m.Vertices[i].Tangent = t.Normalize()
	}
}

func perpendicular(n mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if math32.Abs(n.X()) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	p := n.Cross(axis)
	if p.Len() < 1e-6 {
		return axis
	}
	return p
}
