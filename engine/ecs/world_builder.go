package ecs

import (
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/go-gl/mathgl/mgl32"
)

// WorldBuilderOption is a functional option used to configure a World during construction.
type WorldBuilderOption func(*world)

// WithCapacity pre-sizes every component array so that the first n spawns do not reallocate.
//
// Parameters:
//   - n: the number of entity slots to reserve
//
// Returns:
//   - WorldBuilderOption: a function that reserves component capacity
func WithCapacity(n int) WorldBuilderOption {
	return func(w *world) {
		if n <= 0 {
			return
		}
		w.positions.slots = make([]slot[mgl32.Vec3], 0, n)
		w.velocities.slots = make([]slot[mgl32.Vec3], 0, n)
		w.scales.slots = make([]slot[mgl32.Vec3], 0, n)
		w.rotations.slots = make([]slot[mgl32.Quat], 0, n)
		w.transforms.slots = make([]slot[Transform], 0, n)
		w.renderables.slots = make([]slot[Renderable], 0, n)
		w.media.slots = make([]slot[terrain.Medium], 0, n)
	}
}

// WithSpinRate sets the idle spin applied by Update when spin is requested.
//
// Parameters:
//   - radiansPerSecond: the rotation speed about Z
//
// Returns:
//   - WorldBuilderOption: a function that sets the spin rate
func WithSpinRate(radiansPerSecond float32) WorldBuilderOption {
	return func(w *world) {
		w.spinRate = radiansPerSecond
	}
}

// WithStopped creates the world with the running flag cleared.
//
// Returns:
//   - WorldBuilderOption: a function that clears the running flag
func WithStopped() WorldBuilderOption {
	return func(w *world) {
		w.running.Store(false)
	}
}
