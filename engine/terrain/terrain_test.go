package terrain

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	inserted []ChunkCoord
	evicted  []ChunkCoord
}

func (o *recordingObserver) ChunkInserted(c ChunkCoord) { o.inserted = append(o.inserted, c) }
func (o *recordingObserver) ChunkEvicted(c ChunkCoord)  { o.evicted = append(o.evicted, c) }

func TestSingleBlockMeshHasSixFaces(t *testing.T) {
	c := EmptyChunk(ChunkCoord{})
	c.SetBlock(3, 3, 3, BlockStone)

	mesh := BuildChunkMesh(c)
	assert.Len(t, mesh.Vertices, 24)
	assert.Len(t, mesh.Indices, 36)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, mesh.Vertices[0].Color)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices[:6])
}

func TestAdjacentBlocksShareNoFace(t *testing.T) {
	c := EmptyChunk(ChunkCoord{})
	c.SetBlock(3, 3, 3, BlockStone)
	c.SetBlock(4, 3, 3, BlockStone)

	mesh := BuildChunkMesh(c)
	assert.Len(t, mesh.Vertices, 40)
	assert.Len(t, mesh.Indices, 60)
}

func TestBorderFacesAreEmitted(t *testing.T) {
	c := EmptyChunk(ChunkCoord{X: 5})
	c.SetBlock(0, 0, 0, BlockStone)

	mesh := BuildChunkMesh(c)
	assert.Len(t, mesh.Vertices, 24)
	for _, v := range mesh.Vertices {
		assert.GreaterOrEqual(t, v.Position[0], float32(0))
		assert.LessOrEqual(t, v.Position[0], float32(1))
	}
}

func TestChunkConstructors(t *testing.T) {
	assert.Equal(t, ChunkSize*ChunkSize*ChunkSize, NewChunk(ChunkCoord{}).SolidCount())
	assert.Equal(t, ChunkSize*ChunkSize, FlatChunk(ChunkCoord{}).SolidCount())
	cube := CubeChunk(ChunkCoord{})
	assert.Equal(t, 64, cube.SolidCount())
	assert.Equal(t, BlockStone, cube.Block(6, 6, 6))
	assert.Equal(t, BlockAir, cube.Block(10, 6, 6))
	assert.True(t, cube.Dirty())

	// Flat ground exposes only the top and bottom of the layer plus its four rims.
	flat := BuildChunkMesh(FlatChunk(ChunkCoord{}))
	assert.Len(t, flat.Indices, (2*ChunkSize*ChunkSize+4*ChunkSize)*6)
}

func TestChunkBlockBounds(t *testing.T) {
	c := NewChunk(ChunkCoord{})
	assert.Equal(t, BlockAir, c.Block(-1, 0, 0))
	assert.Equal(t, BlockAir, c.Block(0, ChunkSize, 0))
	assert.False(t, c.SetBlock(ChunkSize, 0, 0, BlockAir))
	assert.True(t, c.SetBlock(0, 0, 0, BlockAir))
}

func TestStreamingInsertsEvictsAndNoOpsInSameCell(t *testing.T) {
	obs := &recordingObserver{}
	tr := NewTerrain(WithObserver(obs), WithMeshWorkers(2))

	stats := tr.UpdateStreaming(mgl32.Vec3{1, 5, 1}, 1)
	assert.Equal(t, StreamStats{Inserted: 9, Evicted: 0, Rebuilt: 9}, stats)
	assert.Equal(t, 9, tr.Len())
	for _, coord := range tr.Coords() {
		c, _ := tr.Chunk(coord)
		assert.False(t, c.Dirty())
		assert.NotEmpty(t, c.Mesh().Indices)
	}

	// Moving within the same 16x16 column is a no-op.
	stats = tr.UpdateStreaming(mgl32.Vec3{15.5, 5, 0.2}, 1)
	assert.Equal(t, StreamStats{}, stats)
	assert.Len(t, obs.inserted, 9)
	assert.Empty(t, obs.evicted)

	// One cell along +X: a column of three enters, one leaves.
	stats = tr.UpdateStreaming(mgl32.Vec3{17, 5, 1}, 1)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 3, stats.Evicted)
	assert.Equal(t, 3, stats.Rebuilt)
	_, ok := tr.Chunk(ChunkCoord{X: -1, Z: 0})
	assert.False(t, ok)
	_, ok = tr.Chunk(ChunkCoord{X: 2, Z: 0})
	assert.True(t, ok)
}

func TestStreamingNegativePositionsUseFloorCells(t *testing.T) {
	tr := NewTerrain()
	tr.UpdateStreaming(mgl32.Vec3{-0.5, 0, -0.5}, 0)
	assert.Equal(t, []ChunkCoord{{X: -1, Y: 0, Z: -1}}, tr.Coords())
}

func TestNewChunksTakeDefaultMedium(t *testing.T) {
	tr := NewTerrain(WithDefaultMedium(MediumWater))
	tr.UpdateStreaming(mgl32.Vec3{}, 0)
	c, ok := tr.Chunk(ChunkCoord{})
	require.True(t, ok)
	assert.Equal(t, MediumWater, c.Medium)
}

func TestMediumAt(t *testing.T) {
	tr := NewTerrain(WithDefaultMedium(MediumVacuum))
	tr.InsertChunk(FlatChunk(ChunkCoord{X: -1, Y: 0, Z: 0}))

	assert.Equal(t, MediumGround, tr.MediumAt(mgl32.Vec3{-0.5, 0.5, 3}))
	assert.Equal(t, MediumAir, tr.MediumAt(mgl32.Vec3{-0.5, 1.5, 3}))
	assert.Equal(t, MediumGround, tr.MediumAt(mgl32.Vec3{-16, 0, 15.9}))
	assert.Equal(t, MediumVacuum, tr.MediumAt(mgl32.Vec3{0.5, 0.5, 3}))
	assert.Equal(t, MediumVacuum, tr.MediumAt(mgl32.Vec3{-0.5, -0.5, 3}))
}

func TestSetBlockMarksChunkDirty(t *testing.T) {
	tr := NewTerrain()
	tr.InsertChunk(FlatChunk(ChunkCoord{}))
	assert.Equal(t, 1, tr.UpdateMeshes())
	assert.Equal(t, 0, tr.UpdateMeshes())

	assert.True(t, tr.SetBlock(4, 1, 4, BlockStone))
	assert.Equal(t, BlockStone, tr.Block(4, 1, 4))
	assert.False(t, tr.SetBlock(40, 1, 4, BlockStone))
	assert.Equal(t, BlockAir, tr.Block(40, 1, 4))
	assert.Equal(t, 1, tr.UpdateMeshes())
}

func TestGenerateFlatGroundRadius(t *testing.T) {
	tr := NewTerrain()
	stats := tr.GenerateFlatGround(20)
	assert.Equal(t, 25, stats.Inserted)
	assert.Equal(t, 25, stats.Rebuilt)
	assert.Equal(t, 25, tr.Len())
}

func TestUploadInstanceAndDraw(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	tr := NewTerrain(WithMaterialIndex(3))
	tr.InsertChunk(FlatChunk(ChunkCoord{X: 1}))
	tr.InsertChunk(FlatChunk(ChunkCoord{X: 0}))
	tr.InsertChunk(EmptyChunk(ChunkCoord{X: 2}))
	tr.UpdateMeshes()

	require.NoError(t, tr.UploadMeshes(device, queue))
	require.NoError(t, tr.UpdateInstanceBuffer(device, queue))
	assert.Equal(t, 3, tr.InstanceBuffer().Count())

	// Re-uploading without changes creates nothing new.
	created := len(device.Created)
	require.NoError(t, tr.UploadMeshes(device, queue))
	assert.Len(t, device.Created, created)

	mat := material.NewMaterial(cache.NewCacheKey("ground"),
		material.WithPipeline(&gputest.Pipeline{Key: "terrain"}),
		material.WithBindGroup(&gputest.BindGroup{Name: "ground"}),
	)
	pass := &gputest.Pass{}
	tr.Draw(pass, mat, &gputest.BindGroup{Name: "frame"})

	// The empty chunk has no mesh and is skipped; the others draw their own instance slot.
	require.Len(t, pass.Draws, 2)
	assert.Equal(t, uint32(0), pass.Draws[0].FirstInstance)
	assert.Equal(t, uint32(1), pass.Draws[1].FirstInstance)
	assert.Equal(t, uint32(1), pass.Draws[0].InstanceCount)
	assert.Equal(t, "terrain", pass.Draws[0].Pipeline)
	assert.Same(t, tr.InstanceBuffer().Buffer(), pass.Draws[0].VertexBuffers[1])
}

func TestDrawWaitsForMaterial(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	tr := NewTerrain()
	tr.InsertChunk(FlatChunk(ChunkCoord{}))
	tr.UpdateMeshes()
	require.NoError(t, tr.UploadMeshes(device, queue))
	require.NoError(t, tr.UpdateInstanceBuffer(device, queue))

	pass := &gputest.Pass{}
	tr.Draw(pass, material.NewMaterial(cache.NewCacheKey("ground")), nil)
	assert.Empty(t, pass.Draws)
}

func TestFailedInstanceGrowKeepsPreviousOrder(t *testing.T) {
	device := &gputest.Device{}
	queue := &gputest.Queue{}
	tr := NewTerrain()
	tr.InsertChunk(FlatChunk(ChunkCoord{}))
	tr.UpdateMeshes()
	require.NoError(t, tr.UploadMeshes(device, queue))
	require.NoError(t, tr.UpdateInstanceBuffer(device, queue))

	tr.InsertChunk(FlatChunk(ChunkCoord{X: 1}))
	tr.UpdateMeshes()
	require.NoError(t, tr.UploadMeshes(device, queue))
	device.FailNext = true
	require.Error(t, tr.UpdateInstanceBuffer(device, queue))
	assert.Equal(t, 1, tr.InstanceBuffer().Count())

	mat := material.NewMaterial(cache.NewCacheKey("ground"),
		material.WithPipeline(&gputest.Pipeline{Key: "terrain"}),
		material.WithBindGroup(&gputest.BindGroup{Name: "ground"}),
	)
	pass := &gputest.Pass{}
	tr.Draw(pass, mat, nil)
	require.Len(t, pass.Draws, 1)
	assert.Equal(t, uint32(0), pass.Draws[0].FirstInstance)

	require.NoError(t, tr.UpdateInstanceBuffer(device, queue))
	pass = &gputest.Pass{}
	tr.Draw(pass, mat, nil)
	assert.Len(t, pass.Draws, 2)
}
