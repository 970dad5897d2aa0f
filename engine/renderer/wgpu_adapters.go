package renderer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// The types in this file wrap wgpu objects behind the cgo-free gpu interfaces.

type wgpuBuffer struct {
	label string
	size  uint64
	buf   *wgpu.Buffer
}

var _ gpu.Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64 { return b.size }
func (b *wgpuBuffer) Release() { b.buf.Release() }

type wgpuTexture struct {
	desc gpu.TextureDescriptor
	tex  *wgpu.Texture
	view *wgpu.TextureView
	// storageView is the 2D array view compute shaders write layered textures through, nil otherwise.
	storageView *wgpu.TextureView
}

var _ gpu.Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string { return t.desc.Label }
func (t *wgpuTexture) Width() uint32 { return t.desc.Width }
func (t *wgpuTexture) Height() uint32 { return t.desc.Height }
func (t *wgpuTexture) Layers() uint32 { return max(t.desc.Layers, 1) }
func (t *wgpuTexture) Format() gpu.TextureFormat { return t.desc.Format }

func (t *wgpuTexture) Release() {
	if t.storageView != nil {
		t.storageView.Release()
	}
	t.view.Release()
	t.tex.Release()
}

type wgpuSampler struct {
	label   string
	sampler *wgpu.Sampler
}

var _ gpu.Sampler = &wgpuSampler{}

func (s *wgpuSampler) Label() string { return s.label }
func (s *wgpuSampler) Release() { s.sampler.Release() }

// wgpuDevice allocates resources on a wgpu.Device. surfaceFormat resolves gpu.TextureFormatSurface.
type wgpuDevice struct {
	device        *wgpu.Device
	surfaceFormat func() wgpu.TextureFormat
}

var _ gpu.Device = &wgpuDevice{}

func (d *wgpuDevice) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: toWGPUBufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	return &wgpuBuffer{label: desc.Label, size: desc.Size, buf: buf}, nil
}

func (d *wgpuDevice) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: common.OrDefault(desc.Layers, 1),
		},
		MipLevelCount: 1,
		SampleCount:   common.OrDefault(desc.SampleCount, 1),
		Dimension:     wgpu.TextureDimension2D,
		Format:        d.format(desc.Format),
		Usage:         toWGPUTextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	var viewDesc *wgpu.TextureViewDescriptor
	if desc.Cube {
		viewDesc = &wgpu.TextureViewDescriptor{
			Label:           desc.Label + " cube view",
			Format:          d.format(desc.Format),
			Dimension:       wgpu.TextureViewDimensionCube,
			MipLevelCount:   1,
			ArrayLayerCount: gpu.CubeFaces,
			Aspect:          wgpu.TextureAspectAll,
		}
	}
	view, err := tex.CreateView(viewDesc)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("create view of %q: %w", desc.Label, err)
	}
	out := &wgpuTexture{desc: desc, tex: tex, view: view}
	if desc.Usage&gpu.TextureUsageStorage != 0 && desc.Layers > 1 {
		out.storageView, err = tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           desc.Label + " storage view",
			Format:          d.format(desc.Format),
			Dimension:       wgpu.TextureViewDimension2DArray,
			MipLevelCount:   1,
			ArrayLayerCount: desc.Layers,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			view.Release()
			tex.Release()
			return nil, fmt.Errorf("create storage view of %q: %w", desc.Label, err)
		}
	}
	return out, nil
}

func (d *wgpuDevice) CreateSampler(label string, data common.SamplerStagingData) (gpu.Sampler, error) {
	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  toWGPUAddressMode(data.AddressModeU),
		AddressModeV:  toWGPUAddressMode(data.AddressModeV),
		AddressModeW:  toWGPUAddressMode(data.AddressModeW),
		MagFilter:     toWGPUFilterMode(data.MagFilter),
		MinFilter:     toWGPUFilterMode(data.MinFilter),
		MipmapFilter:  toWGPUMipmapFilterMode(data.MipmapFilter),
		LodMinClamp:   data.LodMinClamp,
		LodMaxClamp:   common.OrDefault(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.OrDefault(data.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %q: %w", label, err)
	}
	return &wgpuSampler{label: label, sampler: samp}, nil
}

func (d *wgpuDevice) format(f gpu.TextureFormat) wgpu.TextureFormat {
	if f == gpu.TextureFormatSurface {
		return d.surfaceFormat()
	}
	return toWGPUTextureFormat(f)
}

type wgpuQueue struct {
	mu    *sync.Mutex
	queue *wgpu.Queue
}

var _ gpu.Queue = &wgpuQueue{}

func (q *wgpuQueue) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("write buffer: foreign buffer %T", buf)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write buffer %q: %d bytes at %d overflows %d", b.label, len(data), offset, b.size)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

func (q *wgpuQueue) WriteTexture(tex gpu.Texture, data common.TextureStagingData) error {
	t, ok := tex.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("write texture: foreign texture %T", tex)
	}
	texel := t.desc.Format.BytesPerTexel()
	if data.Width != t.desc.Width || data.Height != t.desc.Height || len(data.Pixels) != int(data.Width*data.Height*texel) {
		return fmt.Errorf("write texture %q: %dx%d upload does not fit %dx%d", t.desc.Label, data.Width, data.Height, t.desc.Width, t.desc.Height)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * texel,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// wgpuPass records draws into a wgpu.RenderPassEncoder.
type wgpuPass struct {
	pass *wgpu.RenderPassEncoder
}

var _ gpu.RenderPass = &wgpuPass{}

func (p *wgpuPass) SetPipeline(pl gpu.Pipeline) {
	rp, ok := pl.(pipeline.Pipeline)
	if !ok {
		return
	}
	if handle, ok := rp.Pipeline().(*wgpu.RenderPipeline); ok && handle != nil {
		p.pass.SetPipeline(handle)
	}
}

func (p *wgpuPass) SetBindGroup(index uint32, bg gpu.BindGroup) {
	provider, ok := bg.(bind_group_provider.BindGroupProvider)
	if !ok {
		return
	}
	if handle, ok := provider.Handle().(*wgpu.BindGroup); ok && handle != nil {
		p.pass.SetBindGroup(index, handle, nil)
	}
}

func (p *wgpuPass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	if b, ok := buf.(*wgpuBuffer); ok {
		p.pass.SetVertexBuffer(slot, b.buf, 0, wgpu.WholeSize)
	}
}

func (p *wgpuPass) SetIndexBuffer(buf gpu.Buffer) {
	if b, ok := buf.(*wgpuBuffer); ok {
		p.pass.SetIndexBuffer(b.buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
}

func (p *wgpuPass) DrawIndexed(indexCount, instanceCount, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, 0, 0, firstInstance)
}

func (p *wgpuPass) Draw(vertexCount, instanceCount uint32) {
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

// classifySurfaceError maps swapchain acquisition failures that a reconfigure fixes onto gpu.ErrSurfaceOutdated.
func classifySurfaceError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "outdated") || strings.Contains(msg, "lost") {
		return fmt.Errorf("%w: %w", gpu.ErrSurfaceOutdated, err)
	}
	return err
}

var errNoSurfaceFormat = errors.New("surface reports no formats")

func toWGPUBufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	for flag, usage := range map[gpu.BufferUsage]wgpu.BufferUsage{
		gpu.BufferUsageVertex:   wgpu.BufferUsageVertex,
		gpu.BufferUsageIndex:    wgpu.BufferUsageIndex,
		gpu.BufferUsageUniform:  wgpu.BufferUsageUniform,
		gpu.BufferUsageStorage:  wgpu.BufferUsageStorage,
		gpu.BufferUsageCopyDst:  wgpu.BufferUsageCopyDst,
		gpu.BufferUsageIndirect: wgpu.BufferUsageIndirect,
	} {
		if u&flag != 0 {
			out |= usage
		}
	}
	return out
}

func toWGPUTextureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&gpu.TextureUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.TextureUsageRenderTarget != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&gpu.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&gpu.TextureUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	return out
}

func toWGPUTextureFormat(f gpu.TextureFormat) wgpu.TextureFormat {
	switch f {
	case gpu.TextureFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case gpu.TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gpu.TextureFormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case gpu.TextureFormatDepth24Plus:
		return wgpu.TextureFormatDepth24Plus
	case gpu.TextureFormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	default:
		return wgpu.TextureFormatUndefined
	}
}

func toWGPUAddressMode(m common.AddressMode) wgpu.AddressMode {
	switch m {
	case common.AddressModeClampToEdge:
		return wgpu.AddressModeClampToEdge
	case common.AddressModeMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

func toWGPUFilterMode(m common.FilterMode) wgpu.FilterMode {
	if m == common.FilterModeNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func toWGPUMipmapFilterMode(m common.FilterMode) wgpu.MipmapFilterMode {
	if m == common.FilterModeNearest {
		return wgpu.MipmapFilterModeNearest
	}
	return wgpu.MipmapFilterModeLinear
}

func toWGPUVertexFormat(f model.AttributeFormat) wgpu.VertexFormat {
	switch f {
	case model.AttributeFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case model.AttributeFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case model.AttributeFloat32x4:
		return wgpu.VertexFormatFloat32x4
	default:
		return wgpu.VertexFormatUint32
	}
}

func toWGPUVertexLayouts(layouts []pipeline.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         toWGPUVertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			})
		}
		step := wgpu.VertexStepModeVertex
		if l.StepMode == pipeline.StepModeInstance {
			step = wgpu.VertexStepModeInstance
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: l.Stride,
			StepMode:    step,
			Attributes:  attrs,
		})
	}
	return out
}

func toWGPUBindGroupLayoutEntries(layout pipeline.BindGroupLayout) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(layout.Entries))
	for _, b := range layout.Entries {
		var visibility wgpu.ShaderStage
		if b.Visibility&pipeline.VisibilityVertex != 0 {
			visibility |= wgpu.ShaderStageVertex
		}
		if b.Visibility&pipeline.VisibilityFragment != 0 {
			visibility |= wgpu.ShaderStageFragment
		}
		if b.Visibility&pipeline.VisibilityCompute != 0 {
			visibility |= wgpu.ShaderStageCompute
		}
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    b.Binding,
			Visibility: visibility,
		}
		switch b.Type {
		case pipeline.BindingUniform:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case pipeline.BindingReadOnlyStorage:
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case pipeline.BindingTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case pipeline.BindingSampler:
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case pipeline.BindingUnfilterableTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case pipeline.BindingCubeTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimensionCube
		case pipeline.BindingStorageTexture:
			entry.StorageTexture = wgpu.StorageTextureBindingLayout{
				Access:        wgpu.StorageTextureAccessWriteOnly,
				Format:        toWGPUTextureFormat(b.Format),
				ViewDimension: wgpu.TextureViewDimension2DArray,
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func toWGPUCullMode(m pipeline.CullMode) wgpu.CullMode {
	switch m {
	case pipeline.CullModeFront:
		return wgpu.CullModeFront
	case pipeline.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func toWGPUTopology(t pipeline.Topology) wgpu.PrimitiveTopology {
	switch t {
	case pipeline.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case pipeline.TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func toWGPUFrontFace(f pipeline.FrontFace) wgpu.FrontFace {
	if f == pipeline.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func toWGPUWriteMask(m pipeline.WriteMask) wgpu.ColorWriteMask {
	var out wgpu.ColorWriteMask
	if m&pipeline.WriteMaskRed != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if m&pipeline.WriteMaskGreen != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if m&pipeline.WriteMaskBlue != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if m&pipeline.WriteMaskAlpha != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

func toWGPUBlendState(m pipeline.BlendMode) *wgpu.BlendState {
	if m == pipeline.BlendModeAdditive {
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	}
}
