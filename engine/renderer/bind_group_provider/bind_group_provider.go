package bind_group_provider

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label string
	// layoutKey names the pipeline.BindGroupLayout the group was created against.
	layoutKey string

	// The following fields are the resources the bind group references. They are owned elsewhere; the provider only records them.

	buffers  map[uint32]gpu.Buffer
	textures map[uint32]gpu.Texture
	samplers map[uint32]gpu.Sampler

	// handle is the backend bind group, nil for providers that have not been created on a device.
	handle any
	// release frees handle. It runs at most once.
	release func()
}

// BindGroupProvider is a bind group together with the resources bound into it. The renderer backend creates
// one per CreateBindGroup call and stores its native handle inside; render passes unwrap the handle when the
// group is bound. Callers keep providers in a cache and use References to find the ones a resize invalidated.
type BindGroupProvider interface {
	gpu.BindGroup

	// LayoutKey returns the key of the bind group layout this group was created against.
	//
	// Returns:
	//   - string: the layout key
	LayoutKey() string

	// Buffer returns the buffer bound at a binding, or nil if the binding holds no buffer.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Buffer: the buffer or nil
	Buffer(binding uint32) gpu.Buffer

	// Texture returns the texture bound at a binding, or nil if the binding holds no texture.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Texture: the texture or nil
	Texture(binding uint32) gpu.Texture

	// Sampler returns the sampler bound at a binding, or nil if the binding holds no sampler.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Sampler: the sampler or nil
	Sampler(binding uint32) gpu.Sampler

	// References reports whether any binding refers to tex.
	//
	// Parameters:
	//   - tex: the texture to look for
	//
	// Returns:
	//   - bool: true if the group samples tex
	References(tex gpu.Texture) bool

	// Handle returns the backend bind group object.
	// Note: The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the backend handle, nil before creation or after Release
	Handle() any

	// Release frees the backend bind group. The referenced resources are not released.
	Release()
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a BindGroupProvider.
//
// Parameters:
//   - label: the debug label
//   - options: functional options recording the layout, bound resources and backend handle
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:       &sync.Mutex{},
		label:    label,
		buffers:  make(map[uint32]gpu.Buffer),
		textures: make(map[uint32]gpu.Texture),
		samplers: make(map[uint32]gpu.Sampler),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) LayoutKey() string {
	return p.layoutKey
}

func (p *bindGroupProvider) Buffer(binding uint32) gpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Texture(binding uint32) gpu.Texture {
	return p.textures[binding]
}

func (p *bindGroupProvider) Sampler(binding uint32) gpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) References(tex gpu.Texture) bool {
	if tex == nil {
		return false
	}
	for _, t := range p.textures {
		if t == tex {
			return true
		}
	}
	return false
}

func (p *bindGroupProvider) Handle() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	release := p.release
	p.release = nil
	p.handle = nil
	p.mu.Unlock()
	if release != nil {
		release()
	}
}
