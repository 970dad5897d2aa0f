package camera

import (
	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUCameraUniformSize is the byte size of the WGSL CameraUniform struct.
const GPUCameraUniformSize = 208

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Matches the CameraUniform struct in the scene and skybox shaders.
type GPUCameraUniform struct {
	ViewProj     mgl32.Mat4 // offset   0: depth-corrected view-projection (mat4x4<f32>)
	InvProj      mgl32.Mat4 // offset  64: inverse projection
	InvView      mgl32.Mat4 // offset 128: inverse view
	ViewPosition mgl32.Vec3 // offset 192: world-space eye position, padded to 16 bytes
}

// Size returns the size of the uniform in bytes.
//
// Returns:
//   - int: the struct size in bytes (208)
func (g *GPUCameraUniform) Size() int {
	return GPUCameraUniformSize
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, 0, GPUCameraUniformSize)
	buf = common.AppendMat4(buf, g.ViewProj)
	buf = common.AppendMat4(buf, g.InvProj)
	buf = common.AppendMat4(buf, g.InvView)
	return common.AppendVec3(buf, g.ViewPosition, 0)
}
