// Package gpu declares the narrow device, queue and render pass contract the engine core needs from the graphics
// backend. The wgpu implementation lives in the renderer package; keeping this package free of cgo lets the
// batching and terrain code be exercised with in-memory fakes.
package gpu

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-voxel/common"
)

// ErrSurfaceOutdated is reported when the swapchain no longer matches the window and must be reconfigured
// before another frame can be acquired.
var ErrSurfaceOutdated = errors.New("surface outdated")

// BufferUsage is a bit set describing how a buffer will be bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopyDst
	BufferUsageIndirect
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// Buffer is a GPU buffer handle.
type Buffer interface {
	// Label returns the debug label given at creation.
	Label() string
	// Size returns the allocated size in bytes.
	Size() uint64
	// Release frees the GPU allocation. The handle must not be used afterwards.
	Release()
}

// TextureFormat is the pixel format of a texture or render attachment.
type TextureFormat int

const (
	// TextureFormatUndefined marks an absent attachment, e.g. a pipeline without depth.
	TextureFormatUndefined TextureFormat = iota
	// TextureFormatSurface resolves to whatever format the swapchain was configured with.
	TextureFormatSurface
	TextureFormatRGBA8UnormSrgb
	TextureFormatRGBA8Unorm
	TextureFormatRGBA16Float
	TextureFormatDepth24Plus
	// TextureFormatRGBA32Float holds decoded HDR images. It is not filterable and is read with textureLoad.
	TextureFormatRGBA32Float
)

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatSurface:
		return "surface"
	case TextureFormatRGBA8UnormSrgb:
		return "rgba8unorm-srgb"
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	case TextureFormatRGBA16Float:
		return "rgba16float"
	case TextureFormatDepth24Plus:
		return "depth24plus"
	case TextureFormatRGBA32Float:
		return "rgba32float"
	default:
		return "undefined"
	}
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatDepth24Plus
}

// BytesPerTexel returns the size of one texel in an upload, or 0 for formats that are never uploaded.
func (f TextureFormat) BytesPerTexel() uint32 {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSrgb:
		return 4
	case TextureFormatRGBA16Float:
		return 8
	case TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// TextureUsage is a bit set describing how a texture will be used.
type TextureUsage uint32

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageRenderTarget
	TextureUsageCopyDst
	// TextureUsageStorage allows compute shaders to write the texture.
	TextureUsageStorage
)

// CubeFaces is the layer count of a cube map.
const CubeFaces = 6

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label       string
	Width       uint32
	Height      uint32
	Format      TextureFormat
	Usage       TextureUsage
	SampleCount uint32
	// Layers is the array layer count; zero means 1.
	Layers uint32
	// Cube makes the sampled view a cube map. Layers must be CubeFaces.
	Cube bool
}

// Texture is a GPU texture together with its default view. Storage textures with several layers also carry a
// 2D array view that compute shaders write through.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	// Layers returns the array layer count, 1 for plain 2D textures.
	Layers() uint32
	Format() TextureFormat
	// Release frees the texture and its view.
	Release()
}

// Sampler is a GPU sampler handle.
type Sampler interface {
	Label() string
	Release()
}

// Pipeline is an opaque render pipeline handle. pipeline.Pipeline satisfies it.
type Pipeline interface {
	PipelineKey() string
}

// BindGroup is an opaque bind group handle. bind_group_provider.BindGroupProvider satisfies it.
type BindGroup interface {
	Label() string
}

// Device creates GPU objects. Creation is synchronous.
type Device interface {
	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: the buffer label, size and usage
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if allocation failed
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// CreateTexture allocates a texture and its views.
	//
	// Parameters:
	//   - desc: the texture label, size, layers, format, usage and sample count
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: an error if allocation failed
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateSampler creates a sampler. Zero fields of data take the linear, repeat defaults.
	//
	// Parameters:
	//   - label: the debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - Sampler: the new sampler
	//   - error: an error if creation failed
	CreateSampler(label string, data common.SamplerStagingData) (Sampler, error)
}

// Queue orders writes and submissions. A write queued before a submit is visible to that submit's work.
type Queue interface {
	// WriteBuffer schedules data to be copied into buf at offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset in buf
	//   - data: the bytes to copy
	//
	// Returns:
	//   - error: an error if the write could not be queued
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// WriteTexture schedules pixels to be copied into the first layer of tex.
	//
	// Parameters:
	//   - tex: the destination texture; its size must match data
	//   - data: the pixels in the texture's format, BytesPerTexel bytes per texel, rows tightly packed
	//
	// Returns:
	//   - error: an error if the write could not be queued
	WriteTexture(tex Texture, data common.TextureStagingData) error
}

// RenderPass records draw commands into the current pass.
type RenderPass interface {
	SetPipeline(p Pipeline)
	SetBindGroup(index uint32, bg BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer)
	// DrawIndexed draws indexCount indices for instanceCount instances starting at firstInstance.
	DrawIndexed(indexCount, instanceCount, firstInstance uint32)
	// Draw draws vertexCount non-indexed vertices, used for full-screen triangles.
	Draw(vertexCount, instanceCount uint32)
}
