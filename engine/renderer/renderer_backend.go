package renderer

import (
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA) of the scene target.
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA16x MSAASampleCount = 16
)

// BindGroupEntry is one resource bound into a bind group. Exactly one of Buffer, Texture or Sampler is set.
type BindGroupEntry struct {
	Binding uint32
	Buffer  gpu.Buffer
	Texture gpu.Texture
	Sampler gpu.Sampler
}

// PassDescriptor describes the attachments of one render pass.
type PassDescriptor struct {
	Label string
	// Target is the offscreen framebuffer to render into; nil renders into the acquired swapchain image.
	Target FrameBuffer
	// Clear is the RGBA clear color of the color attachment.
	Clear [4]float64
}

// Frame is one acquired swapchain image and the command stream recorded against it.
// Passes are recorded in the order they are begun; Submit executes them and presents the image.
type Frame interface {
	// BeginPass starts a render pass. The previous pass must have been ended.
	//
	// Parameters:
	//   - desc: the pass attachments
	//
	// Returns:
	//   - gpu.RenderPass: the pass to record draws into
	//   - error: an error if the pass could not be started
	BeginPass(desc PassDescriptor) (gpu.RenderPass, error)

	// EndPass finishes a pass returned by BeginPass.
	//
	// Parameters:
	//   - pass: the pass to end
	EndPass(pass gpu.RenderPass)

	// Submit finishes the command stream, submits it to the queue and presents the image.
	//
	// Returns:
	//   - error: an error if the command stream could not be finished
	Submit() error

	// Discard releases the frame without presenting it. Calling Discard after Submit is a no-op.
	Discard()
}

// Backend is the GPU API boundary of the renderer. The wgpu implementation is the only production backend;
// tests substitute an in-memory one.
type Backend interface {
	// Device returns the device used to allocate buffers, textures and samplers.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Queue returns the submission queue.
	//
	// Returns:
	//   - gpu.Queue: the queue
	Queue() gpu.Queue

	// ConfigureSurface (re)configures the swapchain for a framebuffer size.
	//
	// Parameters:
	//   - width: the framebuffer width in pixels
	//   - height: the framebuffer height in pixels
	//
	// Returns:
	//   - error: *common.GPUError if the surface reports no usable configuration
	ConfigureSurface(width, height uint32) error

	// SetPresentMode selects the present mode used by the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the present mode
	SetPresentMode(mode PresentMode)

	// RegisterPipeline compiles a pipeline's shaders and creates its backend object, storing it with
	// SetRenderPipeline.
	//
	// Parameters:
	//   - p: the pipeline to create
	//
	// Returns:
	//   - error: a shader compilation or pipeline creation error
	RegisterPipeline(p pipeline.Pipeline) error

	// RegisterComputePipeline compiles a compute pipeline's shader and creates its backend object, storing it with
	// SetComputePipeline.
	//
	// Parameters:
	//   - p: the compute pipeline to create
	//
	// Returns:
	//   - error: a shader compilation or pipeline creation error
	RegisterComputePipeline(p pipeline.Pipeline) error

	// DispatchCompute records one compute pass outside any frame and submits it to the queue.
	//
	// Parameters:
	//   - p: a compute pipeline created by RegisterComputePipeline
	//   - groups: the bind groups, bound at their slice index
	//   - workgroups: the workgroup counts in x, y and z
	//
	// Returns:
	//   - error: an error if the pipeline or a bind group has no backend object, or the pass failed
	DispatchCompute(p pipeline.Pipeline, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error

	// CreateBindGroup creates a bind group against a layout. Layouts are created once per key and shared.
	//
	// Parameters:
	//   - layout: the layout the entries satisfy
	//   - label: the debug label
	//   - entries: the bound resources
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group
	//   - error: an error if creation failed
	CreateBindGroup(layout pipeline.BindGroupLayout, label string, entries []BindGroupEntry) (bind_group_provider.BindGroupProvider, error)

	// BeginFrame acquires the next swapchain image.
	//
	// Returns:
	//   - Frame: the frame to record into
	//   - error: gpu.ErrSurfaceOutdated if the swapchain must be reconfigured; any other error drops the frame
	BeginFrame() (Frame, error)

	// Release frees the device and surface.
	Release()
}

// bindGroupOptions turns entries into provider options recording the bound resources.
func bindGroupOptions(layout pipeline.BindGroupLayout, entries []BindGroupEntry) []bind_group_provider.BindGroupProviderOption {
	opts := make([]bind_group_provider.BindGroupProviderOption, 0, len(entries)+1)
	opts = append(opts, bind_group_provider.WithLayoutKey(layout.Key))
	for _, e := range entries {
		switch {
		case e.Buffer != nil:
			opts = append(opts, bind_group_provider.WithBuffer(e.Binding, e.Buffer))
		case e.Texture != nil:
			opts = append(opts, bind_group_provider.WithTexture(e.Binding, e.Texture))
		case e.Sampler != nil:
			opts = append(opts, bind_group_provider.WithSampler(e.Binding, e.Sampler))
		}
	}
	return opts
}
