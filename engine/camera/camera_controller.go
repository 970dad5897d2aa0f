package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController defines the union interface for camera control systems.
// Controllers own positional state (position, target). Camera reads from controller
// and computes view/projection matrices. Embeds orbitCameraController,
// planarCameraController and freeLookCameraController; orbit and planar controls work
// simultaneously, while free look takes over the cursor when enabled.
type CameraController interface {
	orbitCameraController
	planarCameraController
	freeLookCameraController

	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3

	// SetTarget sets the look-at/pivot point and recomputes position from spherical coordinates.
	//
	// Parameters:
	//   - target: world-space coordinates
	SetTarget(target mgl32.Vec3)

	// SetPosition sets the camera's world-space position and re-derives the orbit angles and radius
	// around the current target.
	//
	// Parameters:
	//   - position: world-space coordinates
	SetPosition(position mgl32.Vec3)

	// Zoom adjusts the camera's distance by modifying orbit radius.
	// Positive delta zooms in (closer to target). In free look the camera dollies along its view direction.
	//
	// Parameters:
	//   - delta: zoom amount scaled by ZoomSpeed
	Zoom(delta float32)

	// ProcessKey records a key press or release from the window layer.
	//
	// Parameters:
	//   - key: a common.Key* code
	//   - pressed: true on press, false on release
	//
	// Returns:
	//   - bool: true if the controller consumed the key
	ProcessKey(key int, pressed bool) bool

	// ProcessCursor applies a cursor delta. Free look turns the view; otherwise the delta orbits the target.
	//
	// Parameters:
	//   - dx, dy: cursor movement in pixels since the last event
	ProcessCursor(dx, dy float32)

	// ProcessScroll applies a scroll wheel delta as a zoom step.
	//
	// Parameters:
	//   - delta: vertical scroll offset
	ProcessScroll(delta float32)

	// Advance applies the movement keys held down for dt seconds.
	//
	// Parameters:
	//   - dt: frame delta in seconds
	Advance(dt float32)

	// Status returns a one-line HUD description of the controller state.
	//
	// Returns:
	//   - string: the status line
	Status() string
}

// orbitCameraController defines orbit-specific control methods.
// Provides third-person orbit controls using spherical coordinates (radius, azimuth, elevation)
// relative to the target/pivot point.
type orbitCameraController interface {
	// OrbitLeft rotates the camera left around the target by one orbit speed step.
	OrbitLeft()

	// OrbitRight rotates the camera right around the target by one orbit speed step.
	OrbitRight()

	// OrbitUp tilts the camera upward by one orbit speed step, clamped to max elevation.
	OrbitUp()

	// OrbitDown tilts the camera downward by one orbit speed step, clamped to min elevation.
	OrbitDown()

	// Radius returns the current orbit radius (distance from target).
	//
	// Returns:
	//   - float32: current distance from target
	Radius() float32

	// SetRadius sets the orbit radius directly, clamped to min/max bounds.
	//
	// Parameters:
	//   - radius: new distance from target
	SetRadius(radius float32)

	// MinRadius returns the minimum allowed orbit radius.
	//
	// Returns:
	//   - float32: minimum zoom distance
	MinRadius() float32

	// MaxRadius returns the maximum allowed orbit radius.
	//
	// Returns:
	//   - float32: maximum zoom distance
	MaxRadius() float32

	// Azimuth returns the current horizontal angle around the Y axis.
	//
	// Returns:
	//   - float32: azimuth in radians
	Azimuth() float32

	// SetAzimuth sets the horizontal angle directly and recomputes position.
	//
	// Parameters:
	//   - azimuth: new horizontal angle in radians
	SetAzimuth(azimuth float32)

	// Elevation returns the current vertical angle from the horizontal plane.
	//
	// Returns:
	//   - float32: elevation in radians
	Elevation() float32

	// SetElevation sets the vertical angle directly, clamped to min/max bounds.
	//
	// Parameters:
	//   - elevation: new vertical angle in radians
	SetElevation(elevation float32)

	// MinElevation returns the minimum allowed elevation angle.
	//
	// Returns:
	//   - float32: minimum elevation in radians
	MinElevation() float32

	// MaxElevation returns the maximum allowed elevation angle.
	//
	// Returns:
	//   - float32: maximum elevation in radians
	MaxElevation() float32

	// OrbitSpeed returns the keyboard orbit speed in radians per step.
	//
	// Returns:
	//   - float32: radians per orbit call
	OrbitSpeed() float32

	// MouseSensitivity returns the mouse drag sensitivity multiplier.
	//
	// Returns:
	//   - float32: multiplier for mouse movement
	MouseSensitivity() float32

	// ZoomSpeed returns the zoom speed multiplier.
	//
	// Returns:
	//   - float32: multiplier for zoom input
	ZoomSpeed() float32
}

// planarCameraController defines planar translation control methods.
// Provides first-person-style panning along the camera's local axes without
// changing orbit angles. Panning shifts both position and target by the same
// offset, preserving the orbit relationship.
type planarCameraController interface {
	// PanRight translates the camera along its local right axis.
	// Positive delta moves right, negative moves left.
	//
	// Parameters:
	//   - delta: pan amount scaled by PanSpeed
	PanRight(delta float32)

	// PanUp translates the camera along its local up axis.
	// Positive delta moves up, negative moves down.
	//
	// Parameters:
	//   - delta: pan amount scaled by PanSpeed
	PanUp(delta float32)

	// PanForward translates the camera along its local forward axis (dolly).
	// Positive delta moves toward the target, negative moves away.
	//
	// Parameters:
	//   - delta: pan amount scaled by PanSpeed
	PanForward(delta float32)

	// PanSpeed returns the pan speed multiplier.
	//
	// Returns:
	//   - float32: multiplier for pan input
	PanSpeed() float32
}

// freeLookCameraController defines first-person look controls driven by yaw and pitch.
type freeLookCameraController interface {
	// FreeLook reports whether free look is active.
	//
	// Returns:
	//   - bool: true when the cursor turns the view
	FreeLook() bool

	// SetFreeLook switches between free look and orbit. Entering free look derives yaw and pitch from
	// the current view direction; leaving it re-derives the orbit angles around the point ahead of the camera.
	//
	// Parameters:
	//   - enabled: true to enable free look
	SetFreeLook(enabled bool)

	// Look turns the view by a cursor delta scaled by MouseSensitivity. Pitch is clamped to +/-89.9 degrees.
	//
	// Parameters:
	//   - dx: horizontal delta, positive turns right
	//   - dy: vertical delta, positive turns down
	Look(dx, dy float32)

	// Yaw returns the heading in radians. Zero faces +X; -pi/2 faces -Z.
	//
	// Returns:
	//   - float32: yaw in radians
	Yaw() float32

	// Pitch returns the vertical look angle in radians.
	//
	// Returns:
	//   - float32: pitch in radians
	Pitch() float32

	// MoveSpeed returns the free movement speed in world units per second.
	//
	// Returns:
	//   - float32: movement speed
	MoveSpeed() float32
}
