package camera

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var maxPitch = mgl32.DegToRad(89.9)

// cameraControllerImpl is the single implementation of CameraController.
// Orbit methods modify spherical coordinates and recompute position; planar methods
// translate both position and target along local camera axes, preserving the orbit
// relationship. Free look keeps the target one orbit radius ahead of the camera so
// switching back to orbit continues around the point being looked at.
type cameraControllerImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3

	// Spherical coordinates (offset from target)
	radius    float32
	azimuth   float32 // Horizontal angle around Y axis
	elevation float32 // Vertical angle from horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32

	freeLook  bool
	yaw       float32
	pitch     float32
	moveSpeed float32

	// held movement keys
	forward, backward, left, right, up, down bool
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new camera controller with sensible defaults.
// The returned controller supports orbit and planar controls simultaneously, plus free look.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu: &sync.Mutex{},

		radius:    250.0,
		azimuth:   0.0,
		elevation: math32.Pi / 6,

		minRadius:    1.0,
		maxRadius:    2000.0,
		minElevation: -math32.Pi/2 + 0.1,
		maxElevation: math32.Pi/2 - 0.1,

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        15.0,
		panSpeed:         1.0,

		moveSpeed: 20.0,
	}

	for _, option := range options {
		option(cc)
	}

	cc.updatePosition()
	if cc.freeLook {
		cc.enterFreeLook()
	}
	return cc
}

// NewOrbitController creates a new camera controller placed at position and orbiting target.
//
// Parameters:
//   - position: the eye position
//   - target: the orbit pivot
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewOrbitController(position, target mgl32.Vec3, options ...CameraControllerOption) CameraController {
	cc := NewCameraController(append(options, WithTarget(target))...)
	cc.SetPosition(position)
	return cc
}

// --- internal helpers ---

// updatePosition recomputes the camera position from spherical coordinates.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) updatePosition() {
	cosElev, sinElev := math32.Cos(cc.elevation), math32.Sin(cc.elevation)
	cosAzim, sinAzim := math32.Cos(cc.azimuth), math32.Sin(cc.azimuth)

	cc.position = cc.target.Add(mgl32.Vec3{
		cc.radius * cosElev * sinAzim,
		cc.radius * sinElev,
		cc.radius * cosElev * cosAzim,
	})
}

// deriveSpherical recomputes radius, azimuth and elevation from position and target.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) deriveSpherical() {
	offset := cc.position.Sub(cc.target)
	r := offset.Len()
	if r < 1e-6 {
		return
	}
	cc.radius = mgl32.Clamp(r, cc.minRadius, cc.maxRadius)
	cc.elevation = mgl32.Clamp(math32.Asin(offset[1]/r), cc.minElevation, cc.maxElevation)
	cc.azimuth = math32.Atan2(offset[0], offset[2])
}

// lookDirection returns the unit view direction for the current yaw and pitch.
func (cc *cameraControllerImpl) lookDirection() mgl32.Vec3 {
	cosPitch := math32.Cos(cc.pitch)
	return mgl32.Vec3{
		math32.Cos(cc.yaw) * cosPitch,
		math32.Sin(cc.pitch),
		math32.Sin(cc.yaw) * cosPitch,
	}
}

// enterFreeLook derives yaw and pitch from the current view direction.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) enterFreeLook() {
	dir := cc.target.Sub(cc.position)
	if dir.Len() < 1e-6 {
		dir = mgl32.Vec3{0, 0, -1}
	}
	dir = dir.Normalize()
	cc.yaw = math32.Atan2(dir[2], dir[0])
	cc.pitch = mgl32.Clamp(math32.Asin(dir[1]), -maxPitch, maxPitch)
	cc.freeLook = true
	cc.syncFreeLookTarget()
}

// syncFreeLookTarget places the target one orbit radius along the look direction.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) syncFreeLookTarget() {
	cc.target = cc.position.Add(cc.lookDirection().Mul(cc.radius))
}

// localAxes computes the camera's local right, up and forward axes consistent with mgl32.LookAtV.
// If position and target coincide, all returned vectors are zero.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) localAxes() (right, up, forward mgl32.Vec3) {
	back := cc.position.Sub(cc.target)
	if back.Len() < 1e-8 {
		return
	}
	back = back.Normalize()

	right = mgl32.Vec3{0, 1, 0}.Cross(back)
	if right.Len() < 1e-8 {
		return mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{}
	}
	right = right.Normalize()
	up = back.Cross(right)
	forward = back.Mul(-1)
	return
}

// translate moves position and target together.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) translate(offset mgl32.Vec3) {
	cc.position = cc.position.Add(offset)
	cc.target = cc.target.Add(offset)
}

// --- CameraController shared methods ---

func (cc *cameraControllerImpl) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) SetPosition(position mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = position
	if cc.freeLook {
		cc.syncFreeLookTarget()
		return
	}
	cc.deriveSpherical()
}

func (cc *cameraControllerImpl) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) SetTarget(target mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
	if cc.freeLook {
		cc.enterFreeLook()
		return
	}
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.freeLook {
		cc.translate(cc.lookDirection().Mul(delta * cc.zoomSpeed))
		return
	}
	cc.radius = mgl32.Clamp(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) ProcessKey(key int, pressed bool) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	switch key {
	case common.KeyW:
		cc.forward = pressed
	case common.KeyS:
		cc.backward = pressed
	case common.KeyA:
		cc.left = pressed
	case common.KeyD:
		cc.right = pressed
	case common.KeySpace:
		cc.up = pressed
	case common.KeyLeftShift, common.KeyRightShift:
		cc.down = pressed
	case common.KeyLeft, common.KeyRight, common.KeyUp, common.KeyDown:
		if pressed && !cc.freeLook {
			cc.orbitKey(key)
		}
	default:
		return false
	}
	return true
}

// orbitKey steps the orbit for an arrow key.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) orbitKey(key int) {
	switch key {
	case common.KeyLeft:
		cc.azimuth -= cc.orbitSpeed
	case common.KeyRight:
		cc.azimuth += cc.orbitSpeed
	case common.KeyUp:
		cc.elevation = math32.Min(cc.elevation+cc.orbitSpeed, cc.maxElevation)
	case common.KeyDown:
		cc.elevation = math32.Max(cc.elevation-cc.orbitSpeed, cc.minElevation)
	}
	cc.updatePosition()
}

func (cc *cameraControllerImpl) ProcessCursor(dx, dy float32) {
	if cc.FreeLook() {
		cc.Look(dx, dy)
		return
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth -= dx * cc.mouseSensitivity
	cc.elevation = mgl32.Clamp(cc.elevation+dy*cc.mouseSensitivity, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) ProcessScroll(delta float32) {
	cc.Zoom(delta)
}

func (cc *cameraControllerImpl) Advance(dt float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	var fwd, side, vert float32
	if cc.forward {
		fwd++
	}
	if cc.backward {
		fwd--
	}
	if cc.right {
		side++
	}
	if cc.left {
		side--
	}
	if cc.up {
		vert++
	}
	if cc.down {
		vert--
	}
	if fwd == 0 && side == 0 && vert == 0 {
		return
	}

	step := cc.moveSpeed * dt
	var forward, right mgl32.Vec3
	if cc.freeLook {
		forward = mgl32.Vec3{math32.Cos(cc.yaw), 0, math32.Sin(cc.yaw)}
		right = forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
	} else {
		var f mgl32.Vec3
		right, _, f = cc.localAxes()
		forward = mgl32.Vec3{f[0], 0, f[2]}
		if forward.Len() > 1e-6 {
			forward = forward.Normalize()
		}
	}

	offset := forward.Mul(fwd * step).Add(right.Mul(side * step)).Add(mgl32.Vec3{0, vert * step, 0})
	cc.translate(offset)
}

func (cc *cameraControllerImpl) Status() string {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.freeLook {
		return fmt.Sprintf("Yaw: %.2f Pitch: %.2f", mgl32.RadToDeg(cc.yaw), mgl32.RadToDeg(cc.pitch))
	}
	return fmt.Sprintf("Orbit: r=%.1f az=%.2f el=%.2f", cc.radius, cc.azimuth, cc.elevation)
}

// --- orbitCameraController implementation ---

func (cc *cameraControllerImpl) OrbitLeft() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.orbitKey(common.KeyLeft)
}

func (cc *cameraControllerImpl) OrbitRight() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.orbitKey(common.KeyRight)
}

func (cc *cameraControllerImpl) OrbitUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.orbitKey(common.KeyUp)
}

func (cc *cameraControllerImpl) OrbitDown() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.orbitKey(common.KeyDown)
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = mgl32.Clamp(radius, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) MinRadius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minRadius
}

func (cc *cameraControllerImpl) MaxRadius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxRadius
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *cameraControllerImpl) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth = azimuth
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *cameraControllerImpl) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = mgl32.Clamp(elevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) MinElevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minElevation
}

func (cc *cameraControllerImpl) MaxElevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxElevation
}

func (cc *cameraControllerImpl) OrbitSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.orbitSpeed
}

func (cc *cameraControllerImpl) MouseSensitivity() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.mouseSensitivity
}

func (cc *cameraControllerImpl) ZoomSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.zoomSpeed
}

// --- planarCameraController implementation ---

func (cc *cameraControllerImpl) PanRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	right, _, _ := cc.localAxes()
	cc.translate(right.Mul(delta * cc.panSpeed))
}

func (cc *cameraControllerImpl) PanUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, up, _ := cc.localAxes()
	cc.translate(up.Mul(delta * cc.panSpeed))
}

func (cc *cameraControllerImpl) PanForward(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, _, forward := cc.localAxes()
	cc.translate(forward.Mul(delta * cc.panSpeed))
}

func (cc *cameraControllerImpl) PanSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.panSpeed
}

// --- freeLookCameraController implementation ---

func (cc *cameraControllerImpl) FreeLook() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.freeLook
}

func (cc *cameraControllerImpl) SetFreeLook(enabled bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if enabled == cc.freeLook {
		return
	}
	if enabled {
		cc.enterFreeLook()
		return
	}
	cc.freeLook = false
	cc.deriveSpherical()
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Look(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.yaw += dx * cc.mouseSensitivity
	cc.pitch = mgl32.Clamp(cc.pitch-dy*cc.mouseSensitivity, -maxPitch, maxPitch)
	cc.syncFreeLookTarget()
}

func (cc *cameraControllerImpl) Yaw() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.yaw
}

func (cc *cameraControllerImpl) Pitch() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pitch
}

func (cc *cameraControllerImpl) MoveSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.moveSpeed
}
