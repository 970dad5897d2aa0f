package ecs

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnGrowsEveryArray(t *testing.T) {
	w := NewWorld()
	assert.Equal(t, 0, w.EntityCount())
	assert.GreaterOrEqual(t, w.Capacity(), 1)

	for i := 0; i < 10; i++ {
		e := w.Spawn()
		assert.Equal(t, Entity(i), e)
		assert.GreaterOrEqual(t, w.Capacity(), w.EntityCount()+1)
	}
}

func TestWithCapacityReservesEveryComponentArray(t *testing.T) {
	w := NewWorld(WithCapacity(8)).(*world)
	caps := []int{
		cap(w.positions.slots),
		cap(w.velocities.slots),
		cap(w.rotations.slots),
		cap(w.scales.slots),
		cap(w.transforms.slots),
		cap(w.renderables.slots),
		cap(w.media.slots),
	}
	for _, c := range caps {
		assert.Equal(t, 8, c)
	}

	first := &w.media.slots[0]
	for range 6 {
		w.Spawn()
	}
	assert.Same(t, first, &w.media.slots[0])
}

func TestCapacityInvariantWithInsertBeforeSpawn(t *testing.T) {
	w := NewWorld(WithCapacity(4))

	w.InsertPosition(Entity(20), mgl32.Vec3{1, 2, 3})
	assert.GreaterOrEqual(t, w.Capacity(), 21)

	e := w.Spawn()
	w.InsertVelocity(e, mgl32.Vec3{1, 0, 0})
	assert.GreaterOrEqual(t, w.Capacity(), 21)

	pos, ok := w.Position(Entity(20))
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, pos)
}

func TestNeverInsertedComponentsAreAbsent(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()

	_, ok := w.Position(e)
	assert.False(t, ok)
	_, ok = w.Velocity(e)
	assert.False(t, ok)
	_, ok = w.Rotation(e)
	assert.False(t, ok)
	_, ok = w.Scale(e)
	assert.False(t, ok)
	_, ok = w.Transform(e)
	assert.False(t, ok)
	_, ok = w.Renderable(e)
	assert.False(t, ok)
	_, ok = w.Medium(e)
	assert.False(t, ok)

	// Ids past the arrays read as absent rather than panicking.
	_, ok = w.Position(Entity(10_000))
	assert.False(t, ok)
}

func TestSpawnModelDefaults(t *testing.T) {
	w := NewWorld()
	key := cache.NewCacheKey("cube")
	e := w.SpawnModel(key, mgl32.Vec3{1, 1, 1})

	r, ok := w.Renderable(e)
	require.True(t, ok)
	assert.Equal(t, key, r.ModelKey)
	assert.True(t, r.Visible)

	scale, ok := w.Scale(e)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, scale)

	rot, ok := w.Rotation(e)
	require.True(t, ok)
	assert.Equal(t, mgl32.QuatIdent(), rot)

	require.NoError(t, w.SetVisible(e, false))
	r, _ = w.Renderable(e)
	assert.False(t, r.Visible)
}

func TestSetVisibleWithoutRenderable(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	assert.ErrorIs(t, w.SetVisible(e, true), common.ErrMissingComponent)
}

func TestUpdatePhysicsIntegratesOnlyWithVelocity(t *testing.T) {
	w := NewWorld()
	moving := w.Spawn()
	still := w.Spawn()
	w.InsertPosition(moving, mgl32.Vec3{0, 0, 0})
	w.InsertVelocity(moving, mgl32.Vec3{2, 0, -4})
	w.InsertPosition(still, mgl32.Vec3{5, 5, 5})

	w.UpdatePhysics(0.5)

	pos, _ := w.Position(moving)
	assert.InDelta(t, 1.0, pos.X(), 1e-6)
	assert.InDelta(t, -2.0, pos.Z(), 1e-6)
	pos, _ = w.Position(still)
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, pos)
}

func TestUpdateTransformsComposesTRS(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	w.InsertPosition(e, mgl32.Vec3{3, 4, 5})
	w.InsertRotation(e, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	w.InsertScale(e, mgl32.Vec3{2, 2, 2})

	w.UpdateTransforms(nil)

	tr, ok := w.Transform(e)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{3, 4, 5}, common.Translation(tr.Model))

	// The local +X axis is scaled by 2 and rotated onto +Y.
	p := tr.Model.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 3.0, p.X(), 1e-5)
	assert.InDelta(t, 6.0, p.Y(), 1e-5)

	// Normal matrix is the inverse-transpose.
	assert.True(t, tr.Normal.ApproxEqualThreshold(tr.Model.Inv().Transpose(), 1e-5))
}

func TestUpdateTransformsSkipsIncompleteEntities(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	w.InsertPosition(e, mgl32.Vec3{1, 0, 0})
	w.InsertScale(e, mgl32.Vec3{1, 1, 1})

	w.UpdateTransforms(nil)

	_, ok := w.Transform(e)
	assert.False(t, ok)
}

func TestUpdateTransformsAppliesDelta(t *testing.T) {
	w := NewWorld()
	e := w.SpawnModel(cache.NewCacheKey("cube"), mgl32.Vec3{})
	delta := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})

	w.UpdateTransforms(&delta)
	w.UpdateTransforms(&delta)

	rot, _ := w.Rotation(e)
	v := rot.Rotate(mgl32.Vec3{1, 0, 0})
	assert.InDelta(t, -1.0, v.X(), 1e-5)
	assert.InDelta(t, 0.0, v.Y(), 1e-5)
}

func TestSingularTransformPanics(t *testing.T) {
	w := NewWorld()
	e := w.SpawnModel(cache.NewCacheKey("flat"), mgl32.Vec3{})
	w.InsertScale(e, mgl32.Vec3{1, 0, 1})

	assert.PanicsWithError(t, "entity 0: "+common.ErrSingularTransform.Error(), func() {
		w.UpdateTransforms(nil)
	})
}

func TestUpdateSpinsWhenRequested(t *testing.T) {
	w := NewWorld(WithSpinRate(mgl32.DegToRad(90)))
	e := w.SpawnModel(cache.NewCacheKey("cube"), mgl32.Vec3{})

	w.Update(1, false)
	rot, _ := w.Rotation(e)
	assert.Equal(t, mgl32.QuatIdent(), rot)

	w.Update(1, true)
	rot, _ = w.Rotation(e)
	v := rot.Rotate(mgl32.Vec3{1, 0, 0})
	assert.InDelta(t, 0.0, v.X(), 1e-5)
	assert.InDelta(t, 1.0, v.Y(), 1e-5)
}

type fixedMedium terrain.Medium

func (m fixedMedium) MediumAt(mgl32.Vec3) terrain.Medium {
	return terrain.Medium(m)
}

func TestStepAppliesGravityAndClampsToGround(t *testing.T) {
	w := NewWorld()
	e := w.SpawnModel(cache.NewCacheKey("cube"), mgl32.Vec3{0, 2.05, 0})

	w.Step(0.1, StepOptions{Media: fixedMedium(terrain.MediumAir)})
	pos, _ := w.Position(e)
	vel, _ := w.Velocity(e)
	assert.InDelta(t, GroundY+EntityMinHeight, pos.Y(), 1e-6)
	assert.Equal(t, float32(0), vel.Y())

	_, ok := w.Transform(e)
	assert.True(t, ok)
}

func TestStepPrefersEntityMedium(t *testing.T) {
	w := NewWorld()
	e := w.SpawnModel(cache.NewCacheKey("cube"), mgl32.Vec3{0, 100, 0})
	w.InsertMedium(e, terrain.MediumVacuum)

	w.Step(1, StepOptions{Media: fixedMedium(terrain.MediumWater)})

	vel, _ := w.Velocity(e)
	assert.Equal(t, float32(0), vel.Y())
}

func TestMediumVelocity(t *testing.T) {
	vel := MediumVelocity(mgl32.Vec3{10, 0, -10}, terrain.MediumWater, 1)
	assert.InDelta(t, 1.0, vel.X(), 1e-5)
	assert.InDelta(t, -1.0, vel.Z(), 1e-5)
	assert.InDelta(t, -2.0, vel.Y(), 1e-5)

	vel = MediumVelocity(mgl32.Vec3{0.005, -49.9, 0}, terrain.MediumAir, 1)
	assert.Equal(t, float32(0), vel.X())
	assert.Equal(t, TerminalVelocity, vel.Y())
}

func TestRunningFlag(t *testing.T) {
	w := NewWorld()
	assert.True(t, w.Running())
	w.Stop()
	assert.False(t, w.Running())
	w.Start()
	assert.True(t, w.Running())

	assert.False(t, NewWorld(WithStopped()).Running())
}
