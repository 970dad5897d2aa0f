package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	gpuDevice *wgpuDevice
	gpuQueue  *wgpuQueue

	// bindGroupLayouts holds one GPU layout per pipeline.BindGroupLayout key, shared by every pipeline naming it.
	bindGroupLayouts map[string]*wgpu.BindGroupLayout

	// frame is the frame currently acquired, nil between Submit/Discard and the next BeginFrame.
	frame *wgpuFrame
}

var _ Backend = &wgpuRendererBackendImpl{}

// NewWGPUBackend creates the wgpu instance, surface, adapter and device for a window surface. The calling
// goroutine is locked to its OS thread: every later GPU call must come from it.
//
// Parameters:
//   - surfaceDescriptor: the platform surface of the window
//   - forceFallbackAdapter: request the software adapter
//
// Returns:
//   - Backend: the backend
//   - error: *common.GPUError if no adapter or device could be obtained
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (Backend, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:               &sync.Mutex{},
		instance:         wgpu.CreateInstance(nil),
		presentMode:      wgpu.PresentModeImmediate,
		bindGroupLayouts: make(map[string]*wgpu.BindGroupLayout),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.Release()
		return nil, &common.GPUError{Kind: common.GPUErrorAdapterNotFound, Err: err}
	}
	w.adapter = a

	// The scene pipeline binds two groups; the default limit of four is enough.
	limits := wgpu.DefaultLimits()

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		w.Release()
		return nil, &common.GPUError{Kind: common.GPUErrorDeviceRequestFailed, Err: err}
	}
	w.device = d
	w.queue = d.GetQueue()

	w.gpuDevice = &wgpuDevice{device: d, surfaceFormat: w.currentSurfaceFormat}
	w.gpuQueue = &wgpuQueue{mu: &sync.Mutex{}, queue: w.queue}
	return w, nil
}

func (b *wgpuRendererBackendImpl) Device() gpu.Device {
	return b.gpuDevice
}

func (b *wgpuRendererBackendImpl) Queue() gpu.Queue {
	return b.gpuQueue
}

func (b *wgpuRendererBackendImpl) currentSurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return &common.GPUError{Kind: common.GPUErrorSurfaceUnsupported, Err: errNoSurfaceFormat}
	}
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) RegisterPipeline(p pipeline.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: vertexShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertexShader.Source(),
		},
	})
	if err != nil {
		return fmt.Errorf("compile %s: %w", vertexShader.Key(), err)
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: fragmentShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: fragmentShader.Source(),
		},
	})
	if err != nil {
		return fmt.Errorf("compile %s: %w", fragmentShader.Key(), err)
	}
	defer fs.Release()

	bindGroupLayouts := make([]*wgpu.BindGroupLayout, 0, len(p.BindGroupLayouts()))
	for g, desc := range p.BindGroupLayouts() {
		layout, layoutErr := b.bindGroupLayoutLocked(desc)
		if layoutErr != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		bindGroupLayouts = append(bindGroupLayouts, layout)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	colorFormat := b.surfaceFormat
	if p.ColorFormat() != gpu.TextureFormatSurface {
		colorFormat = toWGPUTextureFormat(p.ColorFormat())
	}
	target := wgpu.ColorTargetState{
		Format:    colorFormat,
		WriteMask: toWGPUWriteMask(p.WriteMask()),
	}
	if p.BlendEnabled() {
		target.Blend = toWGPUBlendState(p.BlendMode())
	}

	var depthStencil *wgpu.DepthStencilState
	if p.DepthFormat() != gpu.TextureFormatUndefined {
		depthCompare := wgpu.CompareFunctionLessEqual
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:              toWGPUTextureFormat(p.DepthFormat()),
			DepthWriteEnabled:   p.DepthWriteEnabled(),
			DepthCompare:        depthCompare,
			DepthBias:           p.DepthBias(),
			DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    toWGPUVertexLayouts(p.VertexLayouts()),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  toWGPUTopology(p.Topology()),
			FrontFace: toWGPUFrontFace(p.FrontFace()),
			CullMode:  toWGPUCullMode(p.CullMode()),
		},
		Multisample: wgpu.MultisampleState{
			Count: p.SampleCount(),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return err
	}

	if old, ok := p.Pipeline().(*wgpu.RenderPipeline); ok && old != nil {
		old.Release()
	}
	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	computeShader := p.Shader(shader.ShaderTypeCompute)

	b.mu.Lock()
	defer b.mu.Unlock()

	cs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: computeShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: computeShader.Source(),
		},
	})
	if err != nil {
		return fmt.Errorf("compile %s: %w", computeShader.Key(), err)
	}
	defer cs.Release()

	bindGroupLayouts := make([]*wgpu.BindGroupLayout, 0, len(p.BindGroupLayouts()))
	for g, desc := range p.BindGroupLayouts() {
		layout, layoutErr := b.bindGroupLayoutLocked(desc)
		if layoutErr != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		bindGroupLayouts = append(bindGroupLayouts, layout)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	if old, ok := p.Pipeline().(*wgpu.ComputePipeline); ok && old != nil {
		old.Release()
	}
	p.SetComputePipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error {
	computePipeline, ok := p.Pipeline().(*wgpu.ComputePipeline)
	if !ok || computePipeline == nil {
		return fmt.Errorf("dispatch %s: no compute pipeline", p.PipelineKey())
	}
	bindGroups := make([]*wgpu.BindGroup, len(groups))
	for i, g := range groups {
		bg, ok := g.Handle().(*wgpu.BindGroup)
		if !ok || bg == nil {
			return fmt.Errorf("dispatch %s: bind group %d has no handle", p.PipelineKey(), i)
		}
		bindGroups[i] = bg
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: p.PipelineKey() + " Encoder"})
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: p.PipelineKey() + " Compute Pass"})
	pass.SetPipeline(computePipeline)
	for i, bg := range bindGroups {
		pass.SetBindGroup(uint32(i), bg, nil)
	}
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	endErr := pass.End()
	pass.Release()
	if endErr != nil {
		return fmt.Errorf("dispatch %s: %w", p.PipelineKey(), endErr)
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()

	b.gpuQueue.mu.Lock()
	b.queue.Submit(commandBuffer)
	b.gpuQueue.mu.Unlock()
	return nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(layout pipeline.BindGroupLayout, label string, entries []BindGroupEntry) (bind_group_provider.BindGroupProvider, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wgpuLayout, err := b.bindGroupLayoutLocked(layout)
	if err != nil {
		return nil, err
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: foreign buffer %T", label, e.Binding, e.Buffer)
			}
			bindGroupEntries = append(bindGroupEntries, wgpu.BindGroupEntry{
				Binding: e.Binding,
				Buffer:  buf.buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			})
		case e.Texture != nil:
			tex, ok := e.Texture.(*wgpuTexture)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: foreign texture %T", label, e.Binding, e.Texture)
			}
			view := tex.view
			if binding, ok := layout.Entry(e.Binding); ok && binding.Type == pipeline.BindingStorageTexture {
				if tex.storageView == nil {
					return nil, fmt.Errorf("bind group %q binding %d: texture %s has no storage view", label, e.Binding, tex.Label())
				}
				view = tex.storageView
			}
			bindGroupEntries = append(bindGroupEntries, wgpu.BindGroupEntry{
				Binding:     e.Binding,
				TextureView: view,
			})
		case e.Sampler != nil:
			samp, ok := e.Sampler.(*wgpuSampler)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: foreign sampler %T", label, e.Binding, e.Sampler)
			}
			bindGroupEntries = append(bindGroupEntries, wgpu.BindGroupEntry{
				Binding: e.Binding,
				Sampler: samp.sampler,
			})
		default:
			return nil, fmt.Errorf("bind group %q binding %d: no resource", label, e.Binding)
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label + " Bind Group",
		Layout:  wgpuLayout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return nil, err
	}
	opts := append(bindGroupOptions(layout, entries), bind_group_provider.WithHandle(bindGroup, bindGroup.Release))
	return bind_group_provider.NewBindGroupProvider(label, opts...), nil
}

// bindGroupLayoutLocked returns the shared GPU layout for a key, creating it on first use. Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) bindGroupLayoutLocked(desc pipeline.BindGroupLayout) (*wgpu.BindGroupLayout, error) {
	if layout, ok := b.bindGroupLayouts[desc.Key]; ok {
		return layout, nil
	}
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Key,
		Entries: toWGPUBindGroupLayoutEntries(desc),
	})
	if err != nil {
		return nil, err
	}
	b.bindGroupLayouts[desc.Key] = layout
	return layout, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() (Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If a previous frame's surface texture is still held, avoid acquiring another one:
	// wgpu-native rejects a second acquire with "Surface image is already acquired".
	if b.frame != nil {
		return nil, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, classifySurfaceError(err)
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}

	b.frame = &wgpuFrame{
		backend: b,
		encoder: encoder,
		surface: surfaceTexture,
		view:    view,
	}
	return b.frame, nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, layout := range b.bindGroupLayouts {
		layout.Release()
		delete(b.bindGroupLayouts, key)
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// wgpuFrame is one acquired swapchain image and its command encoder.
type wgpuFrame struct {
	backend *wgpuRendererBackendImpl
	encoder *wgpu.CommandEncoder
	surface *wgpu.Texture
	view    *wgpu.TextureView
	pass    *wgpu.RenderPassEncoder
}

var _ Frame = &wgpuFrame{}

func (f *wgpuFrame) BeginPass(desc PassDescriptor) (gpu.RenderPass, error) {
	if f.encoder == nil {
		return nil, errors.New("frame already finished")
	}
	if f.pass != nil {
		return nil, fmt.Errorf("begin %s: previous pass not ended", desc.Label)
	}

	clear := wgpu.Color{R: desc.Clear[0], G: desc.Clear[1], B: desc.Clear[2], A: desc.Clear[3]}
	passDesc := &wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       f.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
	}

	if desc.Target != nil {
		color, ok := desc.Target.Color().(*wgpuTexture)
		if !ok {
			return nil, fmt.Errorf("begin %s: framebuffer %s has no color attachment", desc.Label, desc.Target.Label())
		}
		attachment := &passDesc.ColorAttachments[0]
		attachment.View = color.view
		// When MSAA is enabled, the multisampled texture is the attachment and the resolve texture receives the
		// result; the multisampled data itself is not needed afterwards.
		if resolve, ok := desc.Target.Resolve().(*wgpuTexture); ok {
			attachment.ResolveTarget = resolve.view
			attachment.StoreOp = wgpu.StoreOpDiscard
		}
		if depth, ok := desc.Target.Depth().(*wgpuTexture); ok {
			passDesc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
				View:            depth.view,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpDiscard,
				DepthClearValue: 1.0,
			}
		}
	}

	f.pass = f.encoder.BeginRenderPass(passDesc)
	return &wgpuPass{pass: f.pass}, nil
}

func (f *wgpuFrame) EndPass(pass gpu.RenderPass) {
	p, ok := pass.(*wgpuPass)
	if !ok || f.pass == nil || p.pass != f.pass {
		return
	}
	f.pass.End()
	f.pass.Release()
	f.pass = nil
}

func (f *wgpuFrame) Submit() error {
	b := f.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame != f || f.encoder == nil {
		return nil
	}

	commandBuffer, err := f.encoder.Finish(nil)
	if err != nil {
		f.releaseLocked()
		return err
	}

	b.gpuQueue.mu.Lock()
	b.queue.Submit(commandBuffer)
	b.gpuQueue.mu.Unlock()
	commandBuffer.Release()

	b.surface.Present()
	f.releaseLocked()
	return nil
}

func (f *wgpuFrame) Discard() {
	b := f.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame != f {
		return
	}
	f.releaseLocked()
}

// releaseLocked frees the encoder and the surface references. Caller must hold the backend mutex.
func (f *wgpuFrame) releaseLocked() {
	if f.pass != nil {
		f.pass.End()
		f.pass.Release()
		f.pass = nil
	}
	if f.encoder != nil {
		f.encoder.Release()
		f.encoder = nil
	}
	if f.view != nil {
		f.view.Release()
		f.view = nil
	}
	if f.surface != nil {
		f.surface.Release()
		f.surface = nil
	}
	f.backend.frame = nil
}
