package renderer

// FrameBufferBuilderOption is a functional option applied to a framebuffer during construction via NewFrameBuffer.
type FrameBufferBuilderOption func(*frameBuffer)

// WithDepth allocates a Depth24Plus attachment alongside the color texture.
//
// Returns:
//   - FrameBufferBuilderOption: a function that enables the depth attachment
func WithDepth() FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.depth = true
	}
}

// WithSampleCount sets the MSAA sample count. Counts above 1 add a resolve texture.
//
// Parameters:
//   - count: the sample count
//
// Returns:
//   - FrameBufferBuilderOption: a function that sets the sample count
func WithSampleCount(count MSAASampleCount) FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.samples = uint32(count)
	}
}

// WithFrameBufferLabel overrides the label, which defaults to the kind name.
func WithFrameBufferLabel(label string) FrameBufferBuilderOption {
	return func(f *frameBuffer) {
		f.label = label
	}
}
