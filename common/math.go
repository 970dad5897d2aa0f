package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DepthCorrection remaps OpenGL clip depth [-1, 1] to the WebGPU range [0, 1].
// Multiply it on the left of a projection built with mgl32.Perspective before uploading to the GPU.
var DepthCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// ComposeTRS builds the model matrix T(position) * R(rotation) * S(scale).
//
// Parameters:
//   - position: the translation component
//   - rotation: the rotation quaternion (normalized before use)
//   - scale: the per-axis scale
//
// Returns:
//   - mgl32.Mat4: the composed column-major model matrix
func ComposeTRS(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	t := mgl32.Translate3D(position.X(), position.Y(), position.Z())
	r := rotation.Normalize().Mat4()
	s := mgl32.Scale3D(scale.X(), scale.Y(), scale.Z())
	return t.Mul4(r).Mul4(s)
}

// NormalMatrix returns the inverse-transpose of a model matrix.
//
// Parameters:
//   - model: the model matrix
//
// Returns:
//   - mgl32.Mat4: the normal matrix
//   - bool: false when the model matrix is singular
func NormalMatrix(model mgl32.Mat4) (mgl32.Mat4, bool) {
	if math32.Abs(model.Det()) < 1e-12 {
		return mgl32.Mat4{}, false
	}
	return model.Inv().Transpose(), true
}

// Translation returns the translation column of an affine matrix.
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}

// OrDefault returns v unless it is the zero value, in which case fallback is returned. Descriptor fields the
// engine leaves unset resolve to the WebGPU defaults through it.
func OrDefault[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

// FloorDiv divides a by b rounding toward negative infinity.
func FloorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// EuclidMod returns the non-negative remainder of a divided by b.
func EuclidMod(a, b int32) int32 {
	m := a % b
	if m < 0 {
		if b < 0 {
			m -= b
		} else {
			m += b
		}
	}
	return m
}

// FloorToInt32 floors a float32 and converts it to int32.
func FloorToInt32(v float32) int32 {
	return int32(math32.Floor(v))
}

// AppendFloat32 appends a little-endian float32 to dst.
func AppendFloat32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

// AppendVec3 appends a vec3 followed by a float32 pad so the field keeps WGSL 16-byte alignment.
func AppendVec3(dst []byte, v mgl32.Vec3, pad float32) []byte {
	dst = AppendFloat32(dst, v[0])
	dst = AppendFloat32(dst, v[1])
	dst = AppendFloat32(dst, v[2])
	return AppendFloat32(dst, pad)
}

// AppendMat4 appends a column-major 4x4 matrix (64 bytes) to dst.
func AppendMat4(dst []byte, m mgl32.Mat4) []byte {
	for _, v := range m {
		dst = AppendFloat32(dst, v)
	}
	return dst
}
