package light

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// The uniform carries the direction in place of the position.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	LightTypePoint
)

// Orbit defaults for the scene light: it circles a point high above the origin once every 2*pi seconds.
var (
	DefaultOrbitCenter = mgl32.Vec3{1, 100, 1}
)

const (
	DefaultOrbitRadius float32 = 360
	DefaultOrbitSpeed  float32 = 1 // radians per second
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType LightType
	position  mgl32.Vec3
	direction mgl32.Vec3
	color     mgl32.Vec3
	intensity float32
	enabled   bool

	orbiting    bool
	orbitCenter mgl32.Vec3
	orbitRadius float32
	orbitSpeed  float32
}

// Light defines the interface for the scene light.
//
// The light is packed into the frame uniform each frame via Uniform. An orbiting
// light moves on a horizontal circle around its orbit center as elapsed time advances.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type
	Type() LightType

	// Position returns the world-space position of the light.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// Direction returns the normalized direction of a directional light.
	//
	// Returns:
	//   - mgl32.Vec3: the direction
	Direction() mgl32.Vec3

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: color as (r, g, b)
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Enabled returns whether this light contributes to shading.
	// A disabled light uploads a black color.
	//
	// Returns:
	//   - bool: true if the light is enabled
	Enabled() bool

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - position: the new position
	SetPosition(position mgl32.Vec3)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - color: color as (r, g, b)
	SetColor(color mgl32.Vec3)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetEnabled sets whether the light is active.
	//
	// Parameters:
	//   - enabled: true to enable the light
	SetEnabled(enabled bool)

	// Update moves an orbiting light to its position for the given elapsed time.
	// Lights built without WithOrbit are left where they are.
	//
	// Parameters:
	//   - elapsed: seconds since the engine started
	Update(elapsed float64)

	// Uniform returns the GPU representation of the light.
	//
	// Returns:
	//   - GPULightUniform: the uniform ready for Marshal
	Uniform() GPULightUniform
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the given type. The defaults are a white, enabled light of intensity 1
// positioned at DefaultOrbitCenter.
//
// Parameters:
//   - lightType: the kind of light to create
//   - opts: optional builder options
//
// Returns:
//   - Light: the newly created light
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType: lightType,
		position:  DefaultOrbitCenter,
		direction: mgl32.Vec3{0, -1, 0},
		color:     mgl32.Vec3{1, 1, 1},
		intensity: 1,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.orbiting {
		l.Update(0)
	}
	return l
}

// NewOrbitingLight creates the default scene light: a white point light orbiting DefaultOrbitCenter
// at DefaultOrbitRadius and DefaultOrbitSpeed.
//
// Returns:
//   - Light: the orbiting point light
func NewOrbitingLight(opts ...LightBuilderOption) Light {
	opts = append([]LightBuilderOption{WithOrbit(DefaultOrbitCenter, DefaultOrbitRadius, DefaultOrbitSpeed)}, opts...)
	return NewLight(LightTypePoint, opts...)
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) SetPosition(position mgl32.Vec3) {
	l.position = position
}

func (l *lightImpl) SetColor(color mgl32.Vec3) {
	l.color = color
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}

func (l *lightImpl) Update(elapsed float64) {
	if !l.orbiting {
		return
	}
	angle := float32(elapsed) * l.orbitSpeed
	sin, cos := math32.Sincos(angle)
	l.position = mgl32.Vec3{
		l.orbitCenter[0] + l.orbitRadius*cos,
		l.orbitCenter[1],
		l.orbitCenter[2] + l.orbitRadius*sin,
	}
}

func (l *lightImpl) Uniform() GPULightUniform {
	u := GPULightUniform{Position: l.position}
	if l.lightType == LightTypeDirectional {
		u.Position = l.direction
		u.Directional = true
	}
	if l.enabled {
		u.Color = l.color.Mul(l.intensity)
	}
	return u
}
