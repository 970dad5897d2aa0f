package instancing

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cubeKey   = cache.NewCacheKey("cube")
	sphereKey = cache.NewCacheKey("sphere")
)

type lookup map[cache.CacheKey]model.Model

func (l lookup) Get(key cache.CacheKey) (model.Model, bool) {
	m, ok := l[key]
	return m, ok
}

func frustum(eye, target mgl32.Vec3, fovyDeg float32) common.Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(fovyDeg), 1, 0.1, 100)
	view := mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
	return common.FrustumFromMatrix(proj.Mul4(view))
}

func originFrustum() common.Frustum {
	return frustum(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, 90)
}

func gpuDesc(label string, size int) gpu.BufferDescriptor {
	return gpu.BufferDescriptor{Label: label, Size: uint64(size), Usage: gpu.BufferUsageVertex}
}

func fakeModel(key cache.CacheKey, device *gputest.Device) model.Model {
	vb, _ := device.CreateBuffer(gpuDesc(key.Join("vertices").String(), 24*model.VertexSize))
	ib, _ := device.CreateBuffer(gpuDesc(key.Join("indices").String(), 36*4))
	mat := material.NewMaterial(key.Join("material"),
		material.WithPipeline(&gputest.Pipeline{Key: "scene"}),
		material.WithBindGroup(&gputest.BindGroup{Name: key.String()}),
	)
	return model.NewModel(key, model.WithParts(model.Part{
		Mesh:     &model.Mesh{Key: key, VertexBuffer: vb, IndexBuffer: ib, VertexCount: 24, IndexCount: 36},
		Material: mat,
	}))
}

func TestUpdateCullsAndBatchesByKey(t *testing.T) {
	world := ecs.NewWorld()
	world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, -10})
	world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, 10})
	world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, -200})
	world.SpawnModel(sphereKey, mgl32.Vec3{5, 0, -10})
	world.SpawnModel(sphereKey, mgl32.Vec3{50, 0, -10})
	hidden := world.SpawnModel(sphereKey, mgl32.Vec3{0, 0, -5})
	require.NoError(t, world.SetVisible(hidden, false))

	b := NewBuffers()
	require.NoError(t, b.Update(world, originFrustum(), &gputest.Device{}))

	assert.Equal(t, []cache.CacheKey{cubeKey, sphereKey}, b.BatchKeys())
	cubes := b.Batch(cubeKey)
	require.Len(t, cubes, 1)
	assert.Equal(t, mgl32.Vec3{0, 0, -10}, cubes[0].Translation())
	spheres := b.Batch(sphereKey)
	require.Len(t, spheres, 1)
	assert.Equal(t, mgl32.Vec3{5, 0, -10}, spheres[0].Translation())

	stats := b.Stats()
	assert.Equal(t, 2, stats.Visible)
	assert.Equal(t, 3, stats.Culled)
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 1, b.Buffer(cubeKey).Count())
}

func TestUpdateUsesCachedTransform(t *testing.T) {
	world := ecs.NewWorld()
	e := world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, -10})
	world.InsertScale(e, mgl32.Vec3{2, 2, 2})
	world.UpdateTransforms(nil)

	b := NewBuffers()
	require.NoError(t, b.Update(world, originFrustum(), &gputest.Device{}))

	records := b.Batch(cubeKey)
	require.Len(t, records, 1)
	assert.Equal(t, float32(2), records[0].Model[0])
	assert.InDelta(t, 0.5, records[0].Normal[0], 1e-6)
}

func TestBatchEndToEnd(t *testing.T) {
	world := ecs.NewWorld()
	for _, x := range []float32{0, 5, 200} {
		world.SpawnModel(cubeKey, mgl32.Vec3{x, 0, 0})
	}
	world.Update(0, false)

	b := NewBuffers()
	f := frustum(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, 45)
	require.NoError(t, b.Update(world, f, &gputest.Device{}))

	assert.Len(t, b.Batch(cubeKey), 2)
}

func TestInstanceBufferGrowsOnly(t *testing.T) {
	device := &gputest.Device{}
	world := ecs.NewWorld()
	world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, -10})
	b := NewBuffers()

	require.NoError(t, b.Update(world, originFrustum(), device))
	buf := b.Buffer(cubeKey)
	assert.Equal(t, uint64(model.InstanceRecordSize), buf.Capacity())

	var more []ecs.Entity
	for i := 0; i < 3; i++ {
		more = append(more, world.SpawnModel(cubeKey, mgl32.Vec3{float32(i), 0, -10}))
	}
	require.NoError(t, b.Update(world, originFrustum(), device))
	assert.Equal(t, uint64(4*model.InstanceRecordSize), buf.Capacity())
	assert.Equal(t, 2, buf.Allocations())
	assert.Equal(t, 1, b.Stats().Reallocations)

	for _, e := range more {
		require.NoError(t, world.SetVisible(e, false))
	}
	require.NoError(t, b.Update(world, originFrustum(), device))
	assert.Equal(t, uint64(4*model.InstanceRecordSize), buf.Capacity())
	assert.Equal(t, 2, buf.Allocations())
	assert.Equal(t, 1, buf.Count())
	assert.Equal(t, 0, b.Stats().Reallocations)

	assert.Len(t, device.CreatedWithLabel("cube_instances"), 2)
}

func TestUploadWritesDirtyBuffersOnce(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	world := ecs.NewWorld()
	world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, -10})
	world.SpawnModel(sphereKey, mgl32.Vec3{0, 0, -10})
	b := NewBuffers()

	require.NoError(t, b.Update(world, originFrustum(), device))
	assert.True(t, b.Buffer(cubeKey).Dirty())
	require.NoError(t, b.Upload(queue))
	assert.Len(t, queue.Writes, 2)
	assert.False(t, b.Buffer(cubeKey).Dirty())

	require.NoError(t, b.Upload(queue))
	assert.Len(t, queue.Writes, 2)
}

func TestDrawIssuesOneDrawPerKeyAndSkipsMisses(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	world := ecs.NewWorld()
	world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, -10})
	world.SpawnModel(cubeKey, mgl32.Vec3{1, 0, -10})
	world.SpawnModel(cache.NewCacheKey("ghost"), mgl32.Vec3{0, 0, -10})

	models := lookup{cubeKey: fakeModel(cubeKey, device)}
	b := NewBuffers(WithModels(models))
	require.NoError(t, b.Update(world, originFrustum(), device))
	require.NoError(t, b.Upload(queue))

	pass := &gputest.Pass{}
	frame := &gputest.BindGroup{Name: "frame"}
	b.Draw(pass, models, frame)

	require.Len(t, pass.Draws, 1)
	draw := pass.Draws[0]
	assert.True(t, draw.Indexed)
	assert.Equal(t, uint32(36), draw.Count)
	assert.Equal(t, uint32(2), draw.InstanceCount)
	assert.Equal(t, uint32(0), draw.FirstInstance)
	assert.Equal(t, "scene", draw.Pipeline)
	assert.Equal(t, "frame", draw.BindGroups[0])
	assert.Equal(t, "cube", draw.BindGroups[1])
	assert.Same(t, b.Buffer(cubeKey).Buffer(), draw.VertexBuffers[1])

	// Nothing visible: the buffer survives with a zero count and no draw is issued.
	for _, e := range world.Entities() {
		require.NoError(t, world.SetVisible(e, false))
	}
	require.NoError(t, b.Update(world, originFrustum(), device))
	pass = &gputest.Pass{}
	b.Draw(pass, models, frame)
	assert.Empty(t, pass.Draws)
	assert.NotNil(t, b.Buffer(cubeKey).Buffer())
}

func TestFailedGrowKeepsPreviousBatchAndStagesOtherKeys(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	world := ecs.NewWorld()
	world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, -10})
	sphere := world.SpawnModel(sphereKey, mgl32.Vec3{0, 0, -10})

	models := lookup{cubeKey: fakeModel(cubeKey, device), sphereKey: fakeModel(sphereKey, device)}
	b := NewBuffers(WithModels(models))
	require.NoError(t, b.Update(world, originFrustum(), device))
	require.NoError(t, b.Upload(queue))

	world.SpawnModel(cubeKey, mgl32.Vec3{1, 0, -10})
	world.SpawnModel(cubeKey, mgl32.Vec3{2, 0, -10})
	world.InsertPosition(sphere, mgl32.Vec3{0, 1, -10})
	device.FailNext = true
	err := b.Update(world, originFrustum(), device)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cube")

	cubes := b.Buffer(cubeKey)
	assert.Equal(t, 1, cubes.Count())
	assert.Equal(t, uint64(model.InstanceRecordSize), cubes.Capacity())
	assert.True(t, b.Buffer(sphereKey).Dirty())
	require.NoError(t, b.Upload(queue))

	pass := &gputest.Pass{}
	b.Draw(pass, models, nil)
	require.Len(t, pass.Draws, 2)
	for _, draw := range pass.Draws {
		assert.Equal(t, uint32(1), draw.InstanceCount)
	}

	require.NoError(t, b.Update(world, originFrustum(), device))
	assert.Equal(t, 3, cubes.Count())
}
