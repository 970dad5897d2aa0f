package ecs

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/go-gl/mathgl/mgl32"
)

// Entity is a dense integer id indexing every component array. Ids are never reused.
type Entity uint32

// Transform is the cached model matrix of an entity plus its inverse-transpose normal matrix.
type Transform struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat4
}

// Renderable references a model by cache key. Only visible renderables are batched.
type Renderable struct {
	ModelKey cache.CacheKey
	Visible  bool
}

// world is the unexported implementation of World.
type world struct {
	mu *sync.RWMutex

	// entityCount is the number of spawned entities; the next id handed out equals entityCount.
	entityCount int
	running     atomic.Bool

	positions   Storage[mgl32.Vec3]
	velocities  Storage[mgl32.Vec3]
	rotations   Storage[mgl32.Quat]
	scales      Storage[mgl32.Vec3]
	transforms  Storage[Transform]
	renderables Storage[Renderable]
	media       Storage[terrain.Medium]

	// spinRate is the idle spin in radians per second applied by Update when spin is requested.
	spinRate float32
}

// World is the component store. Components live in parallel sparse arrays indexed by Entity, and every array
// always has at least EntityCount()+1 slots. The World is owned by the thread driving the frame loop; the
// running flag is the only state meant to be touched from other goroutines.
type World interface {
	// Spawn allocates the next entity id and grows every component array to cover it.
	//
	// Returns:
	//   - Entity: the new entity
	Spawn() Entity

	// SpawnModel spawns a drawable entity at position with zero velocity, identity rotation, unit scale and
	// a visible Renderable referencing modelKey.
	//
	// Parameters:
	//   - modelKey: the model identity to draw
	//   - position: the initial world position
	//
	// Returns:
	//   - Entity: the new entity
	SpawnModel(modelKey cache.CacheKey, position mgl32.Vec3) Entity

	// EntityCount returns the number of spawned entities.
	EntityCount() int

	// Capacity returns the length of the shortest component array.
	Capacity() int

	// Entities returns every spawned entity id in ascending order.
	Entities() []Entity

	InsertPosition(e Entity, v mgl32.Vec3)
	InsertVelocity(e Entity, v mgl32.Vec3)
	InsertRotation(e Entity, q mgl32.Quat)
	InsertScale(e Entity, v mgl32.Vec3)
	InsertTransform(e Entity, t Transform)
	InsertRenderable(e Entity, r Renderable)
	InsertMedium(e Entity, m terrain.Medium)

	Position(e Entity) (mgl32.Vec3, bool)
	Velocity(e Entity) (mgl32.Vec3, bool)
	Rotation(e Entity) (mgl32.Quat, bool)
	Scale(e Entity) (mgl32.Vec3, bool)
	Transform(e Entity) (Transform, bool)
	Renderable(e Entity) (Renderable, bool)
	Medium(e Entity) (terrain.Medium, bool)

	// SetVisible toggles the visibility flag of an entity's Renderable.
	//
	// Parameters:
	//   - e: the entity
	//   - visible: the new flag
	//
	// Returns:
	//   - error: common.ErrMissingComponent if the entity has no Renderable
	SetVisible(e Entity, visible bool) error

	// UpdatePhysics integrates position += velocity * dt for every entity that has both.
	//
	// Parameters:
	//   - dt: the time step in seconds
	UpdatePhysics(dt float32)

	// UpdateTransforms recomputes Transform = T * R * S and its normal matrix for every entity with
	// Position, Rotation and Scale. When delta is non-nil it is multiplied into each rotation first.
	// A singular model matrix panics with common.ErrSingularTransform.
	//
	// Parameters:
	//   - delta: an optional per-tick rotation applied as rotation = delta * rotation
	UpdateTransforms(delta *mgl32.Quat)

	// Update runs UpdatePhysics then UpdateTransforms. With spin set, each rotation advances by the
	// configured spin rate about Z.
	//
	// Parameters:
	//   - dt: the time step in seconds
	//   - spin: whether to apply the idle spin
	Update(dt float32, spin bool)

	// Step is Update with medium forces: velocities first receive gravity and drag from each entity's medium,
	// then positions integrate and are clamped above the ground.
	//
	// Parameters:
	//   - dt: the time step in seconds
	//   - options: the spin flag and the medium resolver
	Step(dt float32, options StepOptions)

	// Running reports whether background loops should keep going.
	Running() bool

	// Start sets the running flag.
	Start()

	// Stop clears the running flag. Loops polling Running exit on their next iteration.
	Stop()
}

var _ World = &world{}

// NewWorld creates an empty World with the provided options applied. The running flag starts set.
//
// Parameters:
//   - options: variadic list of WorldBuilderOption functions
//
// Returns:
//   - World: the new world
func NewWorld(options ...WorldBuilderOption) World {
	w := &world{
		mu:       &sync.RWMutex{},
		spinRate: mgl32.DegToRad(90),
	}
	w.running.Store(true)
	for _, opt := range options {
		opt(w)
	}
	w.ensureCapacity(w.entityCount + 1)
	return w
}

func (w *world) Spawn() Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spawn()
}

func (w *world) spawn() Entity {
	e := Entity(w.entityCount)
	w.entityCount++
	w.ensureCapacity(w.entityCount + 1)
	return e
}

func (w *world) SpawnModel(modelKey cache.CacheKey, position mgl32.Vec3) Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.spawn()
	i := int(e)
	w.positions.Set(i, position)
	w.velocities.Set(i, mgl32.Vec3{})
	w.rotations.Set(i, mgl32.QuatIdent())
	w.scales.Set(i, mgl32.Vec3{1, 1, 1})
	w.renderables.Set(i, Renderable{ModelKey: modelKey, Visible: true})
	return e
}

func (w *world) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entityCount
}

func (w *world) Capacity() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return min(
		w.positions.Len(),
		w.velocities.Len(),
		w.rotations.Len(),
		w.scales.Len(),
		w.transforms.Len(),
		w.renderables.Len(),
		w.media.Len(),
	)
}

func (w *world) Entities() []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Entity, w.entityCount)
	for i := range out {
		out[i] = Entity(i)
	}
	return out
}

// ensureCapacity grows every component array to at least n slots.
func (w *world) ensureCapacity(n int) {
	w.positions.Resize(n)
	w.velocities.Resize(n)
	w.rotations.Resize(n)
	w.scales.Resize(n)
	w.transforms.Resize(n)
	w.renderables.Resize(n)
	w.media.Resize(n)
}

// grow is called before every insert so that inserting ahead of Spawn keeps all arrays the same length.
func (w *world) grow(e Entity) {
	w.ensureCapacity(int(e) + 1)
}

func (w *world) InsertPosition(e Entity, v mgl32.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grow(e)
	w.positions.Set(int(e), v)
}

func (w *world) InsertVelocity(e Entity, v mgl32.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grow(e)
	w.velocities.Set(int(e), v)
}

func (w *world) InsertRotation(e Entity, q mgl32.Quat) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grow(e)
	w.rotations.Set(int(e), q)
}

func (w *world) InsertScale(e Entity, v mgl32.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grow(e)
	w.scales.Set(int(e), v)
}

func (w *world) InsertTransform(e Entity, t Transform) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grow(e)
	w.transforms.Set(int(e), t)
}

func (w *world) InsertRenderable(e Entity, r Renderable) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grow(e)
	w.renderables.Set(int(e), r)
}

func (w *world) InsertMedium(e Entity, m terrain.Medium) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grow(e)
	w.media.Set(int(e), m)
}

func (w *world) Position(e Entity) (mgl32.Vec3, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.positions.Get(int(e))
}

func (w *world) Velocity(e Entity) (mgl32.Vec3, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.velocities.Get(int(e))
}

func (w *world) Rotation(e Entity) (mgl32.Quat, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rotations.Get(int(e))
}

func (w *world) Scale(e Entity) (mgl32.Vec3, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scales.Get(int(e))
}

func (w *world) Transform(e Entity) (Transform, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.transforms.Get(int(e))
}

func (w *world) Renderable(e Entity) (Renderable, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.renderables.Get(int(e))
}

func (w *world) Medium(e Entity) (terrain.Medium, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.media.Get(int(e))
}

func (w *world) SetVisible(e Entity, visible bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.renderables.Get(int(e))
	if !ok {
		return fmt.Errorf("renderable for entity %d: %w", e, common.ErrMissingComponent)
	}
	r.Visible = visible
	w.renderables.Set(int(e), r)
	return nil
}

func (w *world) Running() bool {
	return w.running.Load()
}

func (w *world) Start() {
	w.running.Store(true)
}

func (w *world) Stop() {
	w.running.Store(false)
}
