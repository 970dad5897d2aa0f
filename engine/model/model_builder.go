package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithParts is an option builder that sets the mesh/material parts of the Model.
//
// Parameters:
//   - parts: the parts in draw order
//
// Returns:
//   - ModelBuilderOption: a function that applies the parts option to a model
func WithParts(parts ...Part) ModelBuilderOption {
	return func(m *model) {
		m.parts = parts
	}
}

// WithBounds is an option builder that overrides the computed model-space bounds.
// Use this when a conservative hand-tuned box is preferred over the union of the mesh bounds.
//
// Parameters:
//   - bounds: the bounds to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the bounds option to a model
func WithBounds(bounds AABB) ModelBuilderOption {
	return func(m *model) {
		m.bounds = bounds
	}
}
