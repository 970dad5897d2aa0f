package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance from the plane to point p.
// Positive values lie on the side the normal points towards.
func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// FrustumFromMatrix extracts frustum planes from a view-projection matrix using the Gribb/Hartmann
// row combination method. The matrix is expected in OpenGL clip convention (z in [-1, 1]), which is
// what mgl32.Perspective produces. Apply the WebGPU depth correction only to the matrix sent to the GPU.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the combined Projection * View matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func FrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	var f Frustum

	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	f.Planes[FrustumLeft] = planeFromRow(r3.Add(r0))
	f.Planes[FrustumRight] = planeFromRow(r3.Sub(r0))
	f.Planes[FrustumBottom] = planeFromRow(r3.Add(r1))
	f.Planes[FrustumTop] = planeFromRow(r3.Sub(r1))
	f.Planes[FrustumNear] = planeFromRow(r3.Add(r2))
	f.Planes[FrustumFar] = planeFromRow(r3.Sub(r2))

	return f
}

// planeFromRow builds a normalized plane from a combined matrix row (a, b, c, d).
func planeFromRow(row mgl32.Vec4) Plane {
	p := Plane{
		Normal:   row.Vec3(),
		Distance: row.W(),
	}
	length := p.Normal.Len()
	if length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
	return p
}

// ContainsSphere reports whether a bounding sphere intersects or lies inside the frustum.
// The test is conservative: spheres near frustum corners may be reported visible, but a
// sphere that is actually visible is never rejected.
//
// Parameters:
//   - center: the sphere center in world space
//   - radius: the sphere radius
//
// Returns:
//   - bool: true if the signed distance to every plane is >= -radius
func (f Frustum) ContainsSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether a point lies inside (or on) all six planes.
func (f Frustum) ContainsPoint(point mgl32.Vec3) bool {
	return f.ContainsSphere(point, 0)
}

// ContainsAABB reports whether an axis-aligned box intersects the frustum.
// For each plane only the box corner furthest along the plane normal is tested.
//
// Parameters:
//   - min: the minimum corner of the box
//   - max: the maximum corner of the box
//
// Returns:
//   - bool: false only when the whole box lies outside at least one plane
func (f Frustum) ContainsAABB(min, max mgl32.Vec3) bool {
	for i := range f.Planes {
		p := f.Planes[i]
		positive := min
		for axis := 0; axis < 3; axis++ {
			if p.Normal[axis] >= 0 {
				positive[axis] = max[axis]
			}
		}
		if p.SignedDistance(positive) < 0 {
			return false
		}
	}
	return true
}
