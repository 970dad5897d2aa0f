package instancing

import "github.com/Carmen-Shannon/oxy-voxel/engine/model"

// BuffersBuilderOption is a functional option for configuring Buffers via NewBuffers.
type BuffersBuilderOption func(*buffers)

// WithModels is an option builder that lets Update stamp each instance with the storage slot of its model's
// first material. Without it every instance uses slot 0.
//
// Parameters:
//   - models: the model lookup
//
// Returns:
//   - BuffersBuilderOption: a function that applies the models option
func WithModels(models model.Lookup) BuffersBuilderOption {
	return func(b *buffers) {
		b.models = models
	}
}
