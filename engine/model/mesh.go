package model

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// Mesh is uploaded, immutable geometry: a vertex buffer, a 32-bit index buffer and their element counts.
type Mesh struct {
	Key          cache.CacheKey
	VertexBuffer gpu.Buffer
	IndexBuffer  gpu.Buffer
	VertexCount  uint32
	IndexCount   uint32
	Bounds       AABB
}

// UploadMesh creates GPU buffers for data and queues their contents.
//
// Parameters:
//   - device: the device used for allocation
//   - queue: the queue used for the writes
//   - key: the mesh identity, used for buffer labels
//   - data: the geometry to upload
//
// Returns:
//   - *Mesh: the uploaded mesh
//   - error: an error if data is empty or a buffer could not be created or written
func UploadMesh(device gpu.Device, queue gpu.Queue, key cache.CacheKey, data MeshData) (*Mesh, error) {
	if data.Empty() {
		return nil, fmt.Errorf("mesh %s: no geometry", key)
	}

	vertexBytes := MarshalVertices(data.Vertices)
	vb, err := device.CreateBuffer(gpu.BufferDescriptor{
		Label: key.Join("vertices").String(),
		Size:  uint64(len(vertexBytes)),
		Usage: gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("mesh %s: create vertex buffer: %w", key, err)
	}

	indexBytes := MarshalIndices(data.Indices)
	ib, err := device.CreateBuffer(gpu.BufferDescriptor{
		Label: key.Join("indices").String(),
		Size:  uint64(len(indexBytes)),
		Usage: gpu.BufferUsageIndex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("mesh %s: create index buffer: %w", key, err)
	}

	if err := queue.WriteBuffer(vb, 0, vertexBytes); err != nil {
		vb.Release()
		ib.Release()
		return nil, fmt.Errorf("mesh %s: write vertices: %w", key, err)
	}
	if err := queue.WriteBuffer(ib, 0, indexBytes); err != nil {
		vb.Release()
		ib.Release()
		return nil, fmt.Errorf("mesh %s: write indices: %w", key, err)
	}

	return &Mesh{
		Key:          key,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		VertexCount:  uint32(len(data.Vertices)),
		IndexCount:   uint32(len(data.Indices)),
		Bounds:       data.Bounds(),
	}, nil
}

// Drawable reports whether both buffers exist and there are indices to draw.
func (m *Mesh) Drawable() bool {
	return m != nil && m.VertexBuffer != nil && m.IndexBuffer != nil && m.IndexCount > 0
}

// Release frees the GPU buffers.
func (m *Mesh) Release() {
	if m.VertexBuffer != nil {
		m.VertexBuffer.Release()
		m.VertexBuffer = nil
	}
	if m.IndexBuffer != nil {
		m.IndexBuffer.Release()
		m.IndexBuffer = nil
	}
}
