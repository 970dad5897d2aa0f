package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelines cache.Cache[pipeline.Pipeline]
	backend   Backend
	log       *logger.Logger

	width  uint32
	height uint32

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	msaa                 MSAASampleCount
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API over a Backend. The Renderer owns the pipeline cache, guaranteeing each pipeline key
// is compiled once, and tracks the surface size so a resize to the current size does not reconfigure the swapchain.
type Renderer interface {
	// Device returns the backend device.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Queue returns the backend submission queue.
	//
	// Returns:
	//   - gpu.Queue: the queue
	Queue() gpu.Queue

	// Pipeline retrieves the cached Pipeline associated with the given key.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key
	//   - bool: false if no pipeline is registered under key
	Pipeline(key string) (pipeline.Pipeline, bool)

	// PipelineKeys returns the registered pipeline keys in sorted order.
	//
	// Returns:
	//   - []string: the keys
	PipelineKeys() []string

	// RegisterPipelines creates the GPU pipeline objects via the backend, then caches them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: the first pipeline creation error
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ReplacePipelines compiles every pipeline first and swaps them into the cache only if all of them compiled.
	// On failure every previous pipeline stays cached.
	//
	// Parameters:
	//   - pipelines: the pipelines to compile
	//
	// Returns:
	//   - error: the first compilation error
	ReplacePipelines(pipelines ...pipeline.Pipeline) error

	// DispatchCompute runs a registered compute pipeline once, outside any frame.
	//
	// Parameters:
	//   - key: the compute pipeline key
	//   - groups: the bind groups, bound at their slice index
	//   - workgroups: the workgroup counts in x, y and z
	//
	// Returns:
	//   - error: an error if key is not a registered compute pipeline or the dispatch failed
	DispatchCompute(key string, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error

	// Resize configures the backend surface for a new size. A zero dimension or the current size is a no-op.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - bool: whether the surface was reconfigured
	//   - error: the surface configuration error
	Resize(width, height uint32) (bool, error)

	// Reconfigure configures the surface again at the current size, used after the swapchain reports outdated.
	//
	// Returns:
	//   - error: the surface configuration error
	Reconfigure() error

	// Size returns the configured surface size.
	//
	// Returns:
	//   - uint32: width in pixels
	//   - uint32: height in pixels
	Size() (uint32, uint32)

	// SampleCount returns the MSAA sample count scene targets are created with.
	//
	// Returns:
	//   - MSAASampleCount: the sample count
	SampleCount() MSAASampleCount

	// CreateBindGroup creates a bind group through the backend.
	//
	// Parameters:
	//   - layout: the layout the entries satisfy
	//   - label: the debug label
	//   - entries: the bound resources
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group
	//   - error: an error if creation failed
	CreateBindGroup(layout pipeline.BindGroupLayout, label string, entries ...BindGroupEntry) (bind_group_provider.BindGroupProvider, error)

	// BeginFrame acquires the next swapchain image.
	//
	// Returns:
	//   - Frame: the frame
	//   - error: gpu.ErrSurfaceOutdated or another acquisition error
	BeginFrame() (Frame, error)

	// Release frees the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer over an existing backend and applies the present mode option to it.
//
// Parameters:
//   - backend: the GPU backend
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(backend Backend, options ...RendererBuilderOption) Renderer {
	r := newRenderer(options...)
	r.backend = backend
	backend.SetPresentMode(r.presentMode)
	return r
}

// NewWGPURenderer creates the wgpu backend for a window surface and wraps it in a Renderer.
//
// Parameters:
//   - surfaceDescriptor: the platform surface of the window
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: *common.GPUError if the adapter or device could not be obtained
func NewWGPURenderer(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...RendererBuilderOption) (Renderer, error) {
	r := newRenderer(options...)
	backend, err := NewWGPUBackend(surfaceDescriptor, r.forceFallbackAdapter)
	if err != nil {
		return nil, err
	}
	r.backend = backend
	backend.SetPresentMode(r.presentMode)
	return r, nil
}

func newRenderer(options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		pipelines:   cache.NewCache(cache.WithLabel[pipeline.Pipeline]("pipelines")),
		log:         logger.Provide().Named("renderer"),
		presentMode: PresentModeVSync,
		msaa:        MSAA4x,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *renderer) Device() gpu.Device {
	return r.backend.Device()
}

func (r *renderer) Queue() gpu.Queue {
	return r.backend.Queue()
}

func (r *renderer) Pipeline(key string) (pipeline.Pipeline, bool) {
	return r.pipelines.Get(cache.NewCacheKey(key))
}

func (r *renderer) PipelineKeys() []string {
	keys := r.pipelines.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		_, err := r.pipelines.GetOrCreate(cache.NewCacheKey(p.PipelineKey()), func() (pipeline.Pipeline, error) {
			if err := r.compile(p); err != nil {
				return nil, err
			}
			r.log.Debug("pipeline registered", zap.String("pipeline", p.PipelineKey()))
			return p, nil
		})
		if err != nil {
			return fmt.Errorf("failed to register pipeline %s: %w", p.PipelineKey(), err)
		}
	}
	return nil
}

func (r *renderer) ReplacePipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		if err := r.compile(p); err != nil {
			return fmt.Errorf("failed to rebuild pipeline %s: %w", p.PipelineKey(), err)
		}
	}
	for _, p := range pipelines {
		r.pipelines.Insert(cache.NewCacheKey(p.PipelineKey()), p)
		r.log.Info("pipeline rebuilt", zap.String("pipeline", p.PipelineKey()))
	}
	return nil
}

func (r *renderer) DispatchCompute(key string, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error {
	p, ok := r.Pipeline(key)
	if !ok {
		return fmt.Errorf("dispatch %s: pipeline not registered", key)
	}
	if p.Type() != pipeline.PipelineTypeCompute {
		return fmt.Errorf("dispatch %s: not a compute pipeline", key)
	}
	return r.backend.DispatchCompute(p, groups, workgroups)
}

// compile creates the backend object of a pipeline according to its type.
func (r *renderer) compile(p pipeline.Pipeline) error {
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		return r.backend.RegisterComputePipeline(p)
	default:
		return r.backend.RegisterPipeline(p)
	}
}

func (r *renderer) Resize(width, height uint32) (bool, error) {
	if width == 0 || height == 0 {
		return false, nil
	}
	r.mu.Lock()
	if r.width == width && r.height == height {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return false, err
	}

	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	return true, nil
}

func (r *renderer) Reconfigure() error {
	w, h := r.Size()
	if w == 0 || h == 0 {
		return nil
	}
	return r.backend.ConfigureSurface(w, h)
}

func (r *renderer) Size() (uint32, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) SampleCount() MSAASampleCount {
	return r.msaa
}

func (r *renderer) CreateBindGroup(layout pipeline.BindGroupLayout, label string, entries ...BindGroupEntry) (bind_group_provider.BindGroupProvider, error) {
	return r.backend.CreateBindGroup(layout, label, entries)
}

func (r *renderer) BeginFrame() (Frame, error) {
	return r.backend.BeginFrame()
}

func (r *renderer) Release() {
	r.backend.Release()
}
