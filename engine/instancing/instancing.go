// Package instancing rebuilds per-model instance batches every frame from the World, culls them against the
// camera frustum and draws each model once with all of its visible instances.
package instancing

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Stats describes the outcome of the last Update.
type Stats struct {
	// Visible is the number of instances written this frame.
	Visible int
	// Culled is the number of renderable entities rejected by the frustum test.
	Culled int
	// Keys is the number of model keys with at least one visible instance.
	Keys int
	// Reallocations is the number of instance buffers created or grown this frame.
	Reallocations int
}

// buffers is the implementation of the Buffers interface.
type buffers struct {
	mu        *sync.Mutex
	batches   map[cache.CacheKey][]model.InstanceRecord
	instances map[cache.CacheKey]*gpu.DynamicBuffer
	models    model.Lookup
	stats     Stats
	log       *logger.Logger
}

// Buffers owns the per-frame instance batches and one grow-only GPU instance buffer per model key.
//
// A frame runs Update, then Upload, then Draw inside the scene pass. Update rebuilds every batch from scratch;
// keys that drop out of view keep their GPU buffer but draw nothing.
type Buffers interface {
	// Update clears the batches and refills them from every visible Renderable in world whose bounding sphere
	// passes the frustum. The sphere is centered on the transform translation with a radius of |scale|.
	// Instance buffers are created or grown as needed and marked dirty.
	//
	// Parameters:
	//   - world: the component store
	//   - frustum: the camera frustum for this frame
	//   - device: the device used for buffer allocation
	//
	// Returns:
	//   - error: an error if an instance buffer could not be allocated
	Update(world ecs.World, frustum common.Frustum, device gpu.Device) error

	// Upload queues a write for every dirty instance buffer and clears the dirty flags.
	//
	// Parameters:
	//   - queue: the queue to write through
	//
	// Returns:
	//   - error: the first write error; remaining buffers are still attempted
	Upload(queue gpu.Queue) error

	// Draw issues one indexed instanced draw per model part for every key with instances. A key missing from
	// models, a mesh without buffers and a material without pipeline are skipped silently.
	//
	// Parameters:
	//   - pass: the scene render pass
	//   - models: the model lookup
	//   - frame: the per-frame bind group (camera, light, material storage) bound at group 0
	Draw(pass gpu.RenderPass, models model.Lookup, frame gpu.BindGroup)

	// Batch returns a copy of the records batched for key in the last Update.
	Batch(key cache.CacheKey) []model.InstanceRecord

	// BatchKeys returns the keys batched in the last Update, sorted.
	BatchKeys() []cache.CacheKey

	// Buffer returns the GPU instance buffer of key, or nil if none was ever allocated.
	Buffer(key cache.CacheKey) *gpu.DynamicBuffer

	// Stats returns the counters of the last Update.
	Stats() Stats

	// Release frees every instance buffer.
	Release()
}

var _ Buffers = &buffers{}

// NewBuffers creates an empty Buffers.
//
// Parameters:
//   - options: variadic list of BuffersBuilderOption functions
//
// Returns:
//   - Buffers: the new instance buffers
func NewBuffers(options ...BuffersBuilderOption) Buffers {
	b := &buffers{
		mu:        &sync.Mutex{},
		batches:   make(map[cache.CacheKey][]model.InstanceRecord),
		instances: make(map[cache.CacheKey]*gpu.DynamicBuffer),
		log:       logger.Provide().Named("instancing"),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *buffers) Update(world ecs.World, frustum common.Frustum, device gpu.Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.batches {
		delete(b.batches, key)
	}
	stats := Stats{}

	for _, e := range world.Entities() {
		r, ok := world.Renderable(e)
		if !ok || !r.Visible {
			continue
		}
		mdl, normal, scale, ok := instanceTransform(world, e)
		if !ok {
			continue
		}
		if !frustum.ContainsSphere(common.Translation(mdl), scale.Len()) {
			stats.Culled++
			continue
		}
		b.batches[r.ModelKey] = append(b.batches[r.ModelKey], model.NewInstanceRecord(mdl, normal, b.materialIndex(r.ModelKey)))
		stats.Visible++
	}

	for key, buf := range b.instances {
		if _, ok := b.batches[key]; !ok {
			buf.Reset()
		}
	}

	var errs []error
	for key, records := range b.batches {
		buf, ok := b.instances[key]
		if !ok {
			buf = gpu.NewDynamicBuffer(key.Join("instances").String(), gpu.BufferUsageVertex)
			b.instances[key] = buf
		}
		// A key whose grow fails keeps last frame's instances; the remaining keys still stage.
		grew, err := buf.Stage(device, model.MarshalInstances(records), len(records))
		if err != nil {
			errs = append(errs, fmt.Errorf("instances of %s: %w", key, err))
			continue
		}
		if grew {
			stats.Reallocations++
			b.log.Debug("instance buffer grown",
				zap.String("model", key.String()),
				zap.Int("instances", len(records)),
				zap.Uint64("capacity", buf.Capacity()),
			)
		}
	}
	stats.Keys = len(b.batches)
	b.stats = stats
	return errors.Join(errs...)
}

// instanceTransform prefers the cached Transform and otherwise composes one from Position, Rotation and Scale
// with identity rotation and unit scale as defaults.
func instanceTransform(world ecs.World, e ecs.Entity) (mgl32.Mat4, mgl32.Mat4, mgl32.Vec3, bool) {
	scale, ok := world.Scale(e)
	if !ok {
		scale = mgl32.Vec3{1, 1, 1}
	}
	if t, ok := world.Transform(e); ok {
		return t.Model, t.Normal, scale, true
	}

	pos, ok := world.Position(e)
	if !ok {
		return mgl32.Mat4{}, mgl32.Mat4{}, scale, false
	}
	rot, ok := world.Rotation(e)
	if !ok {
		rot = mgl32.QuatIdent()
	}
	m := common.ComposeTRS(pos, rot, scale)
	normal, ok := common.NormalMatrix(m)
	if !ok {
		panic(fmt.Errorf("entity %d: %w", e, common.ErrSingularTransform))
	}
	return m, normal, scale, true
}

func (b *buffers) materialIndex(key cache.CacheKey) uint32 {
	if b.models == nil {
		return 0
	}
	mdl, ok := b.models.Get(key)
	if !ok || len(mdl.Parts()) == 0 || mdl.Parts()[0].Material == nil {
		return 0
	}
	return mdl.Parts()[0].Material.Index()
}

func (b *buffers) Upload(queue gpu.Queue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, key := range b.sortedBufferKeys() {
		if err := b.instances[key].Upload(queue); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *buffers) Draw(pass gpu.RenderPass, models model.Lookup, frame gpu.BindGroup) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range b.sortedBufferKeys() {
		buf := b.instances[key]
		if buf.Count() == 0 || buf.Buffer() == nil {
			continue
		}
		mdl, ok := models.Get(key)
		if !ok {
			continue
		}
		for _, part := range mdl.Parts() {
			if !part.Mesh.Drawable() || part.Material == nil || !part.Material.Ready() {
				continue
			}
			pass.SetPipeline(part.Material.Pipeline())
			if frame != nil {
				pass.SetBindGroup(0, frame)
			}
			pass.SetBindGroup(1, part.Material.BindGroup())
			pass.SetVertexBuffer(0, part.Mesh.VertexBuffer)
			pass.SetVertexBuffer(1, buf.Buffer())
			pass.SetIndexBuffer(part.Mesh.IndexBuffer)
			pass.DrawIndexed(part.Mesh.IndexCount, uint32(buf.Count()), 0)
		}
	}
}

func (b *buffers) Batch(key cache.CacheKey) []model.InstanceRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	records := b.batches[key]
	out := make([]model.InstanceRecord, len(records))
	copy(out, records)
	return out
}

func (b *buffers) BatchKeys() []cache.CacheKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]cache.CacheKey, 0, len(b.batches))
	for k := range b.batches {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (b *buffers) Buffer(key cache.CacheKey) *gpu.DynamicBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.instances[key]
}

func (b *buffers) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *buffers) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, buf := range b.instances {
		buf.Release()
		delete(b.instances, key)
	}
}

func (b *buffers) sortedBufferKeys() []cache.CacheKey {
	keys := make([]cache.CacheKey, 0, len(b.instances))
	for k := range b.instances {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []cache.CacheKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}
