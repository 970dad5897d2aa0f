package material

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// MaterialDataSize is the byte stride of one MaterialData entry in the material storage buffer.
const MaterialDataSize = 64

// MaterialData is the GPU-aligned lighting block for one material, stored in the shared material storage buffer
// and indexed per instance.
// Size: 64 bytes (three vec3<f32> padded to 16, then shininess padded to 16).
type MaterialData struct {
	Ambient   [3]float32 // offset  0
	_         float32
	Diffuse   [3]float32 // offset 16
	_         float32
	Specular  [3]float32 // offset 32
	_         float32
	Shininess float32 // offset 48
	_         [3]float32
}

// DefaultMaterialData is the plain white Phong material used when a supplier gives no lighting constants.
func DefaultMaterialData() MaterialData {
	return MaterialData{
		Ambient:   [3]float32{0.1, 0.1, 0.1},
		Diffuse:   [3]float32{1, 1, 1},
		Specular:  [3]float32{0.5, 0.5, 0.5},
		Shininess: 32,
	}
}

// Size returns the size of the MaterialData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (m *MaterialData) Size() int {
	return int(unsafe.Sizeof(*m))
}

// Marshal serializes the MaterialData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (m *MaterialData) Marshal() []byte {
	buf := make([]byte, MaterialDataSize)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(m.Ambient[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(m.Diffuse[i]))
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(m.Specular[i]))
	}
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(m.Shininess))
	return buf
}
