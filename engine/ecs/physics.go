package ecs

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// GroundY is the world height of the terrain surface.
	GroundY float32 = 0
	// EntityMinHeight is how far above GroundY a simulated entity is clamped.
	EntityMinHeight float32 = 2
	// TerminalVelocity bounds the downward speed produced by gravity.
	TerminalVelocity float32 = -50
	// velocitySnap is the speed below which horizontal motion is zeroed.
	velocitySnap float32 = 0.01
)

// MediumResolver reports the medium at a world position. terrain.Terrain satisfies it.
type MediumResolver interface {
	MediumAt(pos mgl32.Vec3) terrain.Medium
}

// StepOptions configures World.Step.
type StepOptions struct {
	// Spin applies the idle spin delta to every rotation.
	Spin bool
	// Media enables gravity, drag and ground clamping. Entities with a Medium component use it, others ask
	// the resolver.
	Media MediumResolver
}

func (w *world) UpdatePhysics(dt float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.integrate(dt)
}

func (w *world) integrate(dt float32) {
	for i := 0; i < w.entityCount; i++ {
		pos, ok := w.positions.Get(i)
		if !ok {
			continue
		}
		vel, ok := w.velocities.Get(i)
		if !ok {
			continue
		}
		w.positions.Set(i, pos.Add(vel.Mul(dt)))
	}
}

func (w *world) UpdateTransforms(delta *mgl32.Quat) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recomputeTransforms(delta)
}

func (w *world) recomputeTransforms(delta *mgl32.Quat) {
	for i := 0; i < w.entityCount; i++ {
		pos, ok := w.positions.Get(i)
		if !ok {
			continue
		}
		rot, ok := w.rotations.Get(i)
		if !ok {
			continue
		}
		scale, ok := w.scales.Get(i)
		if !ok {
			continue
		}

		if delta != nil {
			rot = delta.Mul(rot).Normalize()
			w.rotations.Set(i, rot)
		}

		m := common.ComposeTRS(pos, rot, scale)
		normal, ok := common.NormalMatrix(m)
		if !ok {
			panic(fmt.Errorf("entity %d: %w", i, common.ErrSingularTransform))
		}
		w.transforms.Set(i, Transform{Model: m, Normal: normal})
	}
}

func (w *world) Update(dt float32, spin bool) {
	w.Step(dt, StepOptions{Spin: spin})
}

func (w *world) Step(dt float32, options StepOptions) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if options.Media != nil {
		w.applyMedia(options.Media, dt)
	}
	w.integrate(dt)
	if options.Media != nil {
		w.clampToGround()
	}

	var delta *mgl32.Quat
	if options.Spin {
		q := mgl32.QuatRotate(dt*w.spinRate, mgl32.Vec3{0, 0, 1})
		delta = &q
	}
	w.recomputeTransforms(delta)
}

// applyMedia applies drag to horizontal velocity and gravity to vertical velocity.
func (w *world) applyMedia(resolver MediumResolver, dt float32) {
	for i := 0; i < w.entityCount; i++ {
		pos, ok := w.positions.Get(i)
		if !ok {
			continue
		}
		vel, ok := w.velocities.Get(i)
		if !ok {
			continue
		}
		medium, ok := w.media.Get(i)
		if !ok {
			medium = resolver.MediumAt(pos)
		}
		w.velocities.Set(i, MediumVelocity(vel, medium, dt))
	}
}

func (w *world) clampToGround() {
	minY := GroundY + EntityMinHeight
	for i := 0; i < w.entityCount; i++ {
		if !w.velocities.Has(i) {
			continue
		}
		pos, ok := w.positions.Get(i)
		if !ok || pos.Y() >= minY {
			continue
		}
		pos[1] = minY
		w.positions.Set(i, pos)
		if vel, ok := w.velocities.Get(i); ok && vel.Y() < 0 {
			vel[1] = 0
			w.velocities.Set(i, vel)
		}
	}
}

// MediumVelocity returns vel after one step of drag and gravity in medium.
// Horizontal components are scaled by drag^dt and snapped to zero below a small threshold; vertical speed
// gains gravity*dt and is clamped at TerminalVelocity.
//
// Parameters:
//   - vel: the current velocity
//   - medium: the medium the body is in
//   - dt: the time step in seconds
//
// Returns:
//   - mgl32.Vec3: the new velocity
func MediumVelocity(vel mgl32.Vec3, medium terrain.Medium, dt float32) mgl32.Vec3 {
	props := medium.Properties()
	factor := math32.Pow(props.Drag, dt)

	vel[0] *= factor
	vel[2] *= factor
	if math32.Abs(vel[0]) < velocitySnap {
		vel[0] = 0
	}
	if math32.Abs(vel[2]) < velocitySnap {
		vel[2] = 0
	}

	vel[1] += props.Gravity * dt
	if vel[1] < TerminalVelocity {
		vel[1] = TerminalVelocity
	}
	return vel
}
