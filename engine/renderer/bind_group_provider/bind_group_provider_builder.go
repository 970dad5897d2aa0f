package bind_group_provider

import "github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithLayoutKey records the bind group layout the group was created against.
//
// Parameters:
//   - key: the layout key
//
// Returns:
//   - BindGroupProviderOption: a function that sets the layout key for this provider
func WithLayoutKey(key string) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.layoutKey = key
	}
}

// WithBuffer sets a buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding uint32, buf gpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithTexture sets a texture for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this texture
//   - tex: the texture to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the texture for the specified binding
func WithTexture(binding uint32, tex gpu.Texture) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textures[binding] = tex
	}
}

// WithSampler sets a sampler for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this sampler
//   - s: the sampler to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the sampler for the specified binding
func WithSampler(binding uint32, s gpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = s
	}
}

// WithHandle stores the backend bind group and the function that frees it.
//
// Parameters:
//   - handle: the backend object
//   - release: called once by Release; may be nil
//
// Returns:
//   - BindGroupProviderOption: a function that sets the handle for this provider
func WithHandle(handle any, release func()) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.handle = handle
		p.release = release
	}
}
