package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - position: the light position
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(position mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = position
	}
}

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing; a zero vector is kept as is.
//
// Parameters:
//   - direction: the light direction
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(direction mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		if direction.Len() == 0 {
			l.direction = direction
			return
		}
		l.direction = direction.Normalize()
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - color: color as (r, g, b)
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(color mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = color
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithEnabled is an option builder that sets whether the light is active for rendering.
//
// Parameters:
//   - enabled: true to enable the light
//
// Returns:
//   - LightBuilderOption: a function that applies the enabled option to a lightImpl
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

// WithOrbit is an option builder that makes the light circle center on the XZ plane.
//
// Parameters:
//   - center: the orbit center; its Y is the light height
//   - radius: the orbit radius in world units
//   - speed: the angular speed in radians per second
//
// Returns:
//   - LightBuilderOption: a function that applies the orbit option to a lightImpl
func WithOrbit(center mgl32.Vec3, radius, speed float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.orbiting = true
		l.orbitCenter = center
		l.orbitRadius = radius
		l.orbitSpeed = speed
	}
}
