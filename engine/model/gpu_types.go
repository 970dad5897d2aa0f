package model

import (
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/go-gl/mathgl/mgl32"
)

// AttributeFormat is the element format of one vertex attribute.
type AttributeFormat int

const (
	AttributeFloat32x2 AttributeFormat = iota
	AttributeFloat32x3
	AttributeFloat32x4
	AttributeUint32
)

// VertexAttribute describes one shader input within a vertex buffer.
type VertexAttribute struct {
	Location uint32
	Offset   uint64
	Format   AttributeFormat
}

// VertexSize is the byte stride of Vertex.
const VertexSize = 56

// Vertex is the GPU layout of a single mesh vertex.
// Size: 56 bytes, tightly packed, matching VertexAttributes.
type Vertex struct {
	Position [3]float32 // offset  0
	Color    [3]float32 // offset 12
	TexCoord [2]float32 // offset 24
	Normal   [3]float32 // offset 32
	Tangent  [3]float32 // offset 44
}

// VertexAttributes is the vertex buffer layout for slot 0, shader locations 0..4.
var VertexAttributes = []VertexAttribute{
	{Location: 0, Offset: 0, Format: AttributeFloat32x3},
	{Location: 1, Offset: 12, Format: AttributeFloat32x3},
	{Location: 2, Offset: 24, Format: AttributeFloat32x2},
	{Location: 3, Offset: 32, Format: AttributeFloat32x3},
	{Location: 4, Offset: 44, Format: AttributeFloat32x3},
}

// Size returns the size of the Vertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (v *Vertex) Size() int {
	return int(unsafe.Sizeof(*v))
}

// Marshal serializes the vertex into a 56-byte little-endian buffer.
//
// Returns:
//   - []byte: the serialized vertex
func (v *Vertex) Marshal() []byte {
	buf := make([]byte, 0, VertexSize)
	for _, arr := range [][]float32{v.Position[:], v.Color[:], v.TexCoord[:], v.Normal[:], v.Tangent[:]} {
		for _, f := range arr {
			buf = common.AppendFloat32(buf, f)
		}
	}
	return buf
}

// MarshalVertices serializes a vertex slice for a vertex buffer upload.
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, 0, len(vertices)*VertexSize)
	for i := range vertices {
		buf = append(buf, vertices[i].Marshal()...)
	}
	return buf
}

// MarshalIndices serializes uint32 indices for an index buffer upload.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, 0, len(indices)*4)
	for _, idx := range indices {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	return buf
}

// InstanceRecordSize is the byte stride of InstanceRecord.
const InstanceRecordSize = 144

// InstanceRecord is the packed per-instance data consumed by the instanced vertex shader from vertex slot 1.
// Size: 144 bytes.
type InstanceRecord struct {
	Model         [16]float32 // offset   0: model matrix, column-major
	Normal        [12]float32 // offset  64: normal matrix as three vec4 columns
	Color         [4]float32  // offset 112: rgb tint, w unused
	UVOffset      [2]float32  // offset 128
	MaterialIndex uint32      // offset 136: slot in the material storage buffer
	_             uint32      // offset 140
}

// InstanceAttributes is the vertex buffer layout for slot 1, shader locations 5..14.
var InstanceAttributes = []VertexAttribute{
	{Location: 5, Offset: 0, Format: AttributeFloat32x4},
	{Location: 6, Offset: 16, Format: AttributeFloat32x4},
	{Location: 7, Offset: 32, Format: AttributeFloat32x4},
	{Location: 8, Offset: 48, Format: AttributeFloat32x4},
	{Location: 9, Offset: 64, Format: AttributeFloat32x4},
	{Location: 10, Offset: 80, Format: AttributeFloat32x4},
	{Location: 11, Offset: 96, Format: AttributeFloat32x4},
	{Location: 12, Offset: 112, Format: AttributeFloat32x4},
	{Location: 13, Offset: 128, Format: AttributeFloat32x2},
	{Location: 14, Offset: 136, Format: AttributeUint32},
}

// NewInstanceRecord packs a model matrix, its normal matrix and a material slot with a white tint.
//
// Parameters:
//   - model: the model matrix
//   - normal: the inverse-transpose of model
//   - materialIndex: the material storage slot
//
// Returns:
//   - InstanceRecord: the packed record
func NewInstanceRecord(model, normal mgl32.Mat4, materialIndex uint32) InstanceRecord {
	r := InstanceRecord{
		Model:         model,
		Color:         [4]float32{1, 1, 1, 1},
		MaterialIndex: materialIndex,
	}
	for col := 0; col < 3; col++ {
		c := normal.Col(col)
		copy(r.Normal[col*4:col*4+4], c[:])
	}
	return r
}

// Size returns the size of the InstanceRecord struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (r *InstanceRecord) Size() int {
	return int(unsafe.Sizeof(*r))
}

// Translation returns the translation column of the packed model matrix.
func (r *InstanceRecord) Translation() mgl32.Vec3 {
	return mgl32.Vec3{r.Model[12], r.Model[13], r.Model[14]}
}

// AppendTo serializes the record onto dst.
func (r *InstanceRecord) AppendTo(dst []byte) []byte {
	for _, f := range r.Model {
		dst = common.AppendFloat32(dst, f)
	}
	for _, f := range r.Normal {
		dst = common.AppendFloat32(dst, f)
	}
	for _, f := range r.Color {
		dst = common.AppendFloat32(dst, f)
	}
	dst = common.AppendFloat32(dst, r.UVOffset[0])
	dst = common.AppendFloat32(dst, r.UVOffset[1])
	dst = binary.LittleEndian.AppendUint32(dst, r.MaterialIndex)
	return binary.LittleEndian.AppendUint32(dst, 0)
}

// MarshalInstances serializes records for an instance buffer upload.
func MarshalInstances(records []InstanceRecord) []byte {
	buf := make([]byte, 0, len(records)*InstanceRecordSize)
	for i := range records {
		buf = records[i].AppendTo(buf)
	}
	return buf
}
