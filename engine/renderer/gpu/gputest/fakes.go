// Package gputest provides in-memory gpu.Device, gpu.Queue and gpu.RenderPass fakes that record every call.
package gputest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// Buffer is a fake GPU buffer backed by a byte slice.
type Buffer struct {
	ID       int
	label    string
	Contents []byte
	Usage    gpu.BufferUsage
	Released bool
}

var _ gpu.Buffer = &Buffer{}

func (b *Buffer) Label() string {
	return b.label
}

func (b *Buffer) Size() uint64 {
	return uint64(len(b.Contents))
}

func (b *Buffer) Release() {
	b.Released = true
}

// Texture is a fake texture. Pixels holds the last upload.
type Texture struct {
	ID       int
	Desc     gpu.TextureDescriptor
	Pixels   []byte
	Released bool
}

var _ gpu.Texture = &Texture{}

func (t *Texture) Label() string { return t.Desc.Label }
func (t *Texture) Width() uint32 { return t.Desc.Width }
func (t *Texture) Height() uint32 { return t.Desc.Height }
func (t *Texture) Layers() uint32 { return max(t.Desc.Layers, 1) }
func (t *Texture) Format() gpu.TextureFormat { return t.Desc.Format }
func (t *Texture) Release() { t.Released = true }

// Sampler is a fake sampler.
type Sampler struct {
	Name     string
	Data     common.SamplerStagingData
	Released bool
}

var _ gpu.Sampler = &Sampler{}

func (s *Sampler) Label() string { return s.Name }
func (s *Sampler) Release() { s.Released = true }

// Device records buffer, texture and sampler creations.
type Device struct {
	mu       sync.Mutex
	Created  []*Buffer
	Textures []*Texture
	Samplers []*Sampler

	// FailNext makes the next Create call return an error.
	FailNext bool
}

var _ gpu.Device = &Device{}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailNext {
		d.FailNext = false
		return nil, fmt.Errorf("fake device: allocation of %q refused", desc.Label)
	}
	b := &Buffer{
		ID:       len(d.Created),
		label:    desc.Label,
		Contents: make([]byte, desc.Size),
		Usage:    desc.Usage,
	}
	d.Created = append(d.Created, b)
	return b, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailNext {
		d.FailNext = false
		return nil, fmt.Errorf("fake device: texture %q refused", desc.Label)
	}
	t := &Texture{ID: len(d.Textures), Desc: desc}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateSampler(label string, data common.SamplerStagingData) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailNext {
		d.FailNext = false
		return nil, fmt.Errorf("fake device: sampler %q refused", label)
	}
	s := &Sampler{Name: label, Data: data}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

// LiveTextures returns the textures created with label that have not been released.
func (d *Device) LiveTextures(label string) []*Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Texture
	for _, t := range d.Textures {
		if t.Desc.Label == label && !t.Released {
			out = append(out, t)
		}
	}
	return out
}

// CreatedWithLabel returns the buffers created with label, in creation order.
func (d *Device) CreatedWithLabel(label string) []*Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Buffer
	for _, b := range d.Created {
		if b.label == label {
			out = append(out, b)
		}
	}
	return out
}

// Write is one recorded queue write.
type Write struct {
	Buffer *Buffer
	Offset uint64
	Size   int
}

// Queue copies writes into the fake buffers and textures and records them.
type Queue struct {
	mu            sync.Mutex
	Writes        []Write
	TextureWrites []*Texture
}

var _ gpu.Queue = &Queue{}

func (q *Queue) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("fake queue: foreign buffer %T", buf)
	}
	if b.Released {
		return fmt.Errorf("fake queue: write to released buffer %q", b.label)
	}
	if offset+uint64(len(data)) > b.Size() {
		return fmt.Errorf("fake queue: write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.label, b.Size())
	}
	copy(b.Contents[offset:], data)
	q.Writes = append(q.Writes, Write{Buffer: b, Offset: offset, Size: len(data)})
	return nil
}

func (q *Queue) WriteTexture(tex gpu.Texture, data common.TextureStagingData) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("fake queue: foreign texture %T", tex)
	}
	if t.Released {
		return fmt.Errorf("fake queue: write to released texture %q", t.Desc.Label)
	}
	if data.Width != t.Desc.Width || data.Height != t.Desc.Height {
		return fmt.Errorf("fake queue: %dx%d upload into %dx%d texture %q", data.Width, data.Height, t.Desc.Width, t.Desc.Height, t.Desc.Label)
	}
	if len(data.Pixels) != int(data.Width*data.Height*t.Desc.Format.BytesPerTexel()) {
		return fmt.Errorf("fake queue: %d bytes for %dx%d texture %q", len(data.Pixels), data.Width, data.Height, t.Desc.Label)
	}
	t.Pixels = append(t.Pixels[:0], data.Pixels...)
	q.TextureWrites = append(q.TextureWrites, t)
	return nil
}

// Pipeline is a fake render pipeline.
type Pipeline struct {
	Key string
}

func (p *Pipeline) PipelineKey() string {
	return p.Key
}

// BindGroup is a fake bind group.
type BindGroup struct {
	Name string
}

func (b *BindGroup) Label() string {
	return b.Name
}

// DrawCall is one recorded draw.
type DrawCall struct {
	Pipeline      string
	VertexBuffers map[uint32]gpu.Buffer
	IndexBuffer   gpu.Buffer
	BindGroups    map[uint32]string
	Indexed       bool
	Count         uint32
	InstanceCount uint32
	FirstInstance uint32
}

// Pass records the bound state at every draw.
type Pass struct {
	Draws []DrawCall

	pipeline      string
	vertexBuffers map[uint32]gpu.Buffer
	indexBuffer   gpu.Buffer
	bindGroups    map[uint32]string
}

var _ gpu.RenderPass = &Pass{}

func (p *Pass) SetPipeline(pl gpu.Pipeline) {
	p.pipeline = pl.PipelineKey()
}

func (p *Pass) SetBindGroup(index uint32, bg gpu.BindGroup) {
	if p.bindGroups == nil {
		p.bindGroups = make(map[uint32]string)
	}
	p.bindGroups[index] = bg.Label()
}

func (p *Pass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	if p.vertexBuffers == nil {
		p.vertexBuffers = make(map[uint32]gpu.Buffer)
	}
	p.vertexBuffers[slot] = buf
}

func (p *Pass) SetIndexBuffer(buf gpu.Buffer) {
	p.indexBuffer = buf
}

func (p *Pass) DrawIndexed(indexCount, instanceCount, firstInstance uint32) {
	p.Draws = append(p.Draws, p.snapshot(true, indexCount, instanceCount, firstInstance))
}

func (p *Pass) Draw(vertexCount, instanceCount uint32) {
	p.Draws = append(p.Draws, p.snapshot(false, vertexCount, instanceCount, 0))
}

func (p *Pass) snapshot(indexed bool, count, instances, first uint32) DrawCall {
	vbs := make(map[uint32]gpu.Buffer, len(p.vertexBuffers))
	for k, v := range p.vertexBuffers {
		vbs[k] = v
	}
	bgs := make(map[uint32]string, len(p.bindGroups))
	for k, v := range p.bindGroups {
		bgs[k] = v
	}
	return DrawCall{
		Pipeline:      p.pipeline,
		VertexBuffers: vbs,
		IndexBuffer:   p.indexBuffer,
		BindGroups:    bgs,
		Indexed:       indexed,
		Count:         count,
		InstanceCount: instances,
		FirstInstance: first,
	}
}
