package light

import (
	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPULightUniformSize is the byte size of the WGSL LightUniform struct.
const GPULightUniformSize = 32

// GPULightUniform is the GPU-aligned representation of the scene light.
// Matches the LightUniform struct in the scene shader: two vec3<f32> fields, each padded to 16 bytes.
// The pad after the position is 1 for a point light and 0 for a directional light, so the shader
// can treat it as the w component of a homogeneous position.
type GPULightUniform struct {
	Position    mgl32.Vec3 // offset  0
	Directional bool       // encoded into the pad at offset 12
	Color       mgl32.Vec3 // offset 16, pad at 28
}

// Size returns the size of the uniform in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPULightUniform) Size() int {
	return GPULightUniformSize
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPULightUniform) Marshal() []byte {
	w := float32(1)
	if g.Directional {
		w = 0
	}
	buf := make([]byte, 0, GPULightUniformSize)
	buf = common.AppendVec3(buf, g.Position, w)
	return common.AppendVec3(buf, g.Color, 1)
}
