package renderer

import (
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the scene target.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
// Higher values (MSAA8x, MSAA16x) are adapter-dependent and may not be supported
// by all hardware.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff, MSAA4x, MSAA8x, or MSAA16x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.msaa = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithLogger replaces the renderer's named logger.
func WithLogger(l *logger.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.log = l
	}
}

// ParseMSAA converts a sample count from configuration into an MSAASampleCount. Unsupported values
// fall back to MSAA4x.
//
// Parameters:
//   - samples: the configured sample count
//
// Returns:
//   - MSAASampleCount: the sample count
func ParseMSAA(samples int) MSAASampleCount {
	switch samples {
	case 1:
		return MSAAOff
	case 8:
		return MSAA8x
	case 16:
		return MSAA16x
	default:
		return MSAA4x
	}
}

// ParsePresentMode converts a configured present mode name. Anything but "uncapped" selects VSync.
//
// Parameters:
//   - s: the configured name
//
// Returns:
//   - PresentMode: the present mode
func ParsePresentMode(s string) PresentMode {
	if s == "uncapped" || s == "immediate" {
		return PresentModeUncapped
	}
	return PresentModeVSync
}
