package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/pipeline"
)

// fakeBackend records every backend call against the gputest fakes.
type fakeBackend struct {
	device *gputest.Device
	queue  *gputest.Queue

	presentMode  PresentMode
	configured   [][2]uint32
	configureErr error

	compiled   []string
	compileErr map[string]error

	dispatches  []fakeDispatch
	dispatchErr error

	bindGroups []bind_group_provider.BindGroupProvider

	// acquire holds the results of successive BeginFrame calls; an empty queue always succeeds.
	acquire []error
	frames  []*fakeFrame

	released bool
}

var _ Backend = &fakeBackend{}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		device:     &gputest.Device{},
		queue:      &gputest.Queue{},
		compileErr: make(map[string]error),
	}
}

func (b *fakeBackend) Device() gpu.Device { return b.device }
func (b *fakeBackend) Queue() gpu.Queue { return b.queue }
func (b *fakeBackend) SetPresentMode(mode PresentMode) { b.presentMode = mode }
func (b *fakeBackend) Release() { b.released = true }

func (b *fakeBackend) ConfigureSurface(width, height uint32) error {
	if b.configureErr != nil {
		return b.configureErr
	}
	b.configured = append(b.configured, [2]uint32{width, height})
	return nil
}

func (b *fakeBackend) RegisterPipeline(p pipeline.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := b.compileErr[p.PipelineKey()]; err != nil {
		return err
	}
	b.compiled = append(b.compiled, p.PipelineKey())
	p.SetRenderPipeline(len(b.compiled))
	return nil
}

func (b *fakeBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Type() != pipeline.PipelineTypeCompute {
		return fmt.Errorf("%s is not a compute pipeline", p.PipelineKey())
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := b.compileErr[p.PipelineKey()]; err != nil {
		return err
	}
	b.compiled = append(b.compiled, p.PipelineKey())
	p.SetComputePipeline(len(b.compiled))
	return nil
}

func (b *fakeBackend) DispatchCompute(p pipeline.Pipeline, groups []bind_group_provider.BindGroupProvider, workgroups [3]uint32) error {
	if b.dispatchErr != nil {
		return b.dispatchErr
	}
	b.dispatches = append(b.dispatches, fakeDispatch{pipeline: p.PipelineKey(), groups: groups, workgroups: workgroups})
	return nil
}

func (b *fakeBackend) CreateBindGroup(layout pipeline.BindGroupLayout, label string, entries []BindGroupEntry) (bind_group_provider.BindGroupProvider, error) {
	bg := bind_group_provider.NewBindGroupProvider(label, bindGroupOptions(layout, entries)...)
	b.bindGroups = append(b.bindGroups, bg)
	return bg, nil
}

func (b *fakeBackend) BeginFrame() (Frame, error) {
	if len(b.acquire) > 0 {
		err := b.acquire[0]
		b.acquire = b.acquire[1:]
		if err != nil {
			return nil, err
		}
	}
	f := &fakeFrame{}
	b.frames = append(b.frames, f)
	return f, nil
}

func (b *fakeBackend) bindGroupsLabeled(label string) []bind_group_provider.BindGroupProvider {
	var out []bind_group_provider.BindGroupProvider
	for _, bg := range b.bindGroups {
		if bg.Label() == label {
			out = append(out, bg)
		}
	}
	return out
}

func (b *fakeBackend) compiledCount(key string) int {
	n := 0
	for _, k := range b.compiled {
		if k == key {
			n++
		}
	}
	return n
}

type fakeDispatch struct {
	pipeline   string
	groups     []bind_group_provider.BindGroupProvider
	workgroups [3]uint32
}

type fakePass struct {
	*gputest.Pass
	desc  PassDescriptor
	ended bool
}

type fakeFrame struct {
	passes    []*fakePass
	submitted bool
	discarded bool
}

var _ Frame = &fakeFrame{}

func (f *fakeFrame) BeginPass(desc PassDescriptor) (gpu.RenderPass, error) {
	p := &fakePass{Pass: &gputest.Pass{}, desc: desc}
	f.passes = append(f.passes, p)
	return p, nil
}

func (f *fakeFrame) EndPass(pass gpu.RenderPass) {
	if p, ok := pass.(*fakePass); ok {
		p.ended = true
	}
}

func (f *fakeFrame) Submit() error {
	f.submitted = true
	return nil
}

func (f *fakeFrame) Discard() {
	f.discarded = true
}
