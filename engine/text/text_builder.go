package text

import (
	"time"

	"golang.org/x/image/font"
)

// OverlayBuilderOption is a functional option for configuring an Overlay via NewOverlay.
type OverlayBuilderOption func(*overlay)

// WithInterval is an option builder that sets the minimum time between accepted refreshes.
//
// Parameters:
//   - interval: the refresh interval
//
// Returns:
//   - OverlayBuilderOption: a function that applies the interval option
func WithInterval(interval time.Duration) OverlayBuilderOption {
	return func(o *overlay) {
		o.interval = interval
	}
}

// WithFace is an option builder that replaces the default basicfont face.
func WithFace(face font.Face) OverlayBuilderOption {
	return func(o *overlay) {
		if face != nil {
			o.face = face
		}
	}
}
