package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// RenderTargetKind names the role of an offscreen framebuffer.
type RenderTargetKind int

const (
	RenderTargetScene RenderTargetKind = iota
	RenderTargetHDR
	RenderTargetShadow
	RenderTargetBloom
	RenderTargetCustom
)

func (k RenderTargetKind) String() string {
	switch k {
	case RenderTargetScene:
		return "scene"
	case RenderTargetHDR:
		return "hdr"
	case RenderTargetShadow:
		return "shadow"
	case RenderTargetBloom:
		return "bloom"
	default:
		return "custom"
	}
}

type frameBuffer struct {
	mu *sync.Mutex

	kind    RenderTargetKind
	label   string
	format  gpu.TextureFormat
	depth   bool
	samples uint32

	width, height uint32

	color   gpu.Texture
	resolve gpu.Texture
	depthTx gpu.Texture
}

// FrameBuffer is an offscreen render target: a color attachment, an optional depth attachment and, when
// multisampled, a single-sample resolve texture that later passes sample from.
type FrameBuffer interface {
	// Kind returns the role of the framebuffer.
	//
	// Returns:
	//   - RenderTargetKind: the role
	Kind() RenderTargetKind

	// Label returns the debug label, used as the prefix of every texture label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Format returns the color format.
	//
	// Returns:
	//   - gpu.TextureFormat: the color format
	Format() gpu.TextureFormat

	// SampleCount returns the MSAA sample count of the color and depth attachments.
	//
	// Returns:
	//   - uint32: the sample count
	SampleCount() uint32

	// HasDepth reports whether the framebuffer has a depth attachment.
	//
	// Returns:
	//   - bool: true if a depth texture is allocated with the color texture
	HasDepth() bool

	// Size returns the current size in pixels. Both are zero before the first Resize.
	//
	// Returns:
	//   - uint32: the width
	//   - uint32: the height
	Size() (uint32, uint32)

	// Color returns the color attachment.
	//
	// Returns:
	//   - gpu.Texture: the color texture, nil before the first Resize
	Color() gpu.Texture

	// Resolve returns the resolve target of a multisampled framebuffer.
	//
	// Returns:
	//   - gpu.Texture: the resolve texture, nil without MSAA
	Resolve() gpu.Texture

	// Depth returns the depth attachment.
	//
	// Returns:
	//   - gpu.Texture: the depth texture, nil without depth
	Depth() gpu.Texture

	// Sampled returns the texture later passes read: the resolve target with MSAA, the color attachment otherwise.
	//
	// Returns:
	//   - gpu.Texture: the texture to sample
	Sampled() gpu.Texture

	// Resize reallocates every attachment at a new size, releasing the old textures. A zero dimension or an
	// unchanged size is a no-op.
	//
	// Parameters:
	//   - device: the device to allocate on
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - bool: true if the attachments were reallocated
	//   - error: an allocation error; the framebuffer is left without attachments
	Resize(device gpu.Device, width, height uint32) (bool, error)

	// Release frees every attachment.
	Release()
}

var _ FrameBuffer = &frameBuffer{}

// NewFrameBuffer creates a framebuffer description. No textures are allocated until Resize.
//
// Parameters:
//   - kind: the role of the framebuffer
//   - format: the color format
//   - options: functional options to configure depth and sampling
//
// Returns:
//   - FrameBuffer: the new framebuffer
func NewFrameBuffer(kind RenderTargetKind, format gpu.TextureFormat, options ...FrameBufferBuilderOption) FrameBuffer {
	fb := &frameBuffer{
		mu:      &sync.Mutex{},
		kind:    kind,
		label:   kind.String(),
		format:  format,
		samples: 1,
	}
	for _, option := range options {
		option(fb)
	}
	if fb.samples == 0 {
		fb.samples = 1
	}
	return fb
}

func (f *frameBuffer) Kind() RenderTargetKind {
	return f.kind
}

func (f *frameBuffer) Label() string {
	return f.label
}

func (f *frameBuffer) Format() gpu.TextureFormat {
	return f.format
}

func (f *frameBuffer) SampleCount() uint32 {
	return f.samples
}

func (f *frameBuffer) HasDepth() bool {
	return f.depth
}

func (f *frameBuffer) Size() (uint32, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

func (f *frameBuffer) Color() gpu.Texture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.color
}

func (f *frameBuffer) Resolve() gpu.Texture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolve
}

func (f *frameBuffer) Depth() gpu.Texture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depthTx
}

func (f *frameBuffer) Sampled() gpu.Texture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolve != nil {
		return f.resolve
	}
	return f.color
}

func (f *frameBuffer) Resize(device gpu.Device, width, height uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if width == 0 || height == 0 || (width == f.width && height == f.height && f.color != nil) {
		return false, nil
	}
	f.releaseLocked()

	multisampled := f.samples > 1
	colorUsage := gpu.TextureUsageRenderTarget
	if !multisampled {
		colorUsage |= gpu.TextureUsageSampled
	}

	var err error
	f.color, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:       f.label + " color",
		Width:       width,
		Height:      height,
		Format:      f.format,
		Usage:       colorUsage,
		SampleCount: f.samples,
	})
	if err != nil {
		return false, fmt.Errorf("framebuffer %s: %w", f.label, err)
	}

	if multisampled {
		f.resolve, err = device.CreateTexture(gpu.TextureDescriptor{
			Label:       f.label + " resolve",
			Width:       width,
			Height:      height,
			Format:      f.format,
			Usage:       gpu.TextureUsageRenderTarget | gpu.TextureUsageSampled,
			SampleCount: 1,
		})
		if err != nil {
			f.releaseLocked()
			return false, fmt.Errorf("framebuffer %s: %w", f.label, err)
		}
	}

	if f.depth {
		// Depth sample count must match the color attachment.
		f.depthTx, err = device.CreateTexture(gpu.TextureDescriptor{
			Label:       f.label + " depth",
			Width:       width,
			Height:      height,
			Format:      gpu.TextureFormatDepth24Plus,
			Usage:       gpu.TextureUsageRenderTarget,
			SampleCount: f.samples,
		})
		if err != nil {
			f.releaseLocked()
			return false, fmt.Errorf("framebuffer %s: %w", f.label, err)
		}
	}

	f.width, f.height = width, height
	return true, nil
}

func (f *frameBuffer) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseLocked()
}

// releaseLocked frees the attachments and zeroes the size. Caller must hold the mutex.
func (f *frameBuffer) releaseLocked() {
	for _, t := range []gpu.Texture{f.color, f.resolve, f.depthTx} {
		if t != nil {
			t.Release()
		}
	}
	f.color, f.resolve, f.depthTx = nil, nil, nil
	f.width, f.height = 0, 0
}
