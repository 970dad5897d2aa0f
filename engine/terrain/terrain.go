// Package terrain holds the streamed voxel ground: 16³ block chunks, their environmental media, face-culled
// meshing on a worker pool, and the per-chunk instance buffer used to draw them.
package terrain

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// meshQueueSize bounds how many rebuild tasks are submitted to the pool before waiting for the wave to finish.
const meshQueueSize = 256

// StreamStats reports what one UpdateStreaming or GenerateFlatGround call changed.
type StreamStats struct {
	Inserted int
	Evicted  int
	Rebuilt  int
}

// Changed reports whether anything was inserted, evicted or rebuilt.
func (s StreamStats) Changed() bool {
	return s.Inserted > 0 || s.Evicted > 0 || s.Rebuilt > 0
}

// StreamObserver is notified of every chunk the terrain inserts or evicts.
type StreamObserver interface {
	ChunkInserted(coord ChunkCoord)
	ChunkEvicted(coord ChunkCoord)
}

// terrain is the implementation of the Terrain interface.
type terrain struct {
	mu *sync.Mutex

	chunks        map[ChunkCoord]*Chunk
	defaultMedium Medium

	hasCenter  bool
	lastCenter [2]int32

	observer      StreamObserver
	workers       int
	pool          worker.DynamicWorkerPool
	materialIndex uint32

	instances     *gpu.DynamicBuffer
	instanceOrder []ChunkCoord

	log *logger.Logger
}

// Terrain is the chunk store of the voxel ground.
//
// The terrain is owned by the frame thread. Mesh rebuilds fan out to a worker pool but every call returns only
// after its rebuild wave has finished.
type Terrain interface {
	// UpdateStreaming keeps the square of chunks within viewDistance of the camera's chunk cell resident.
	// If the camera is still in the same cell as the previous call nothing happens. Otherwise missing flat
	// chunks are inserted, chunks outside the square are evicted, and dirty chunks are remeshed.
	//
	// Parameters:
	//   - cameraPos: the camera world position; only X and Z are used
	//   - viewDistance: the streaming radius in chunks
	//
	// Returns:
	//   - StreamStats: the number of inserted, evicted and rebuilt chunks
	UpdateStreaming(cameraPos mgl32.Vec3, viewDistance int32) StreamStats

	// GenerateFlatGround inserts flat chunks covering a square of radius ceil(zfar/16) chunks around the origin,
	// then remeshes.
	//
	// Parameters:
	//   - zfar: the camera far plane distance
	//
	// Returns:
	//   - StreamStats: the number of inserted and rebuilt chunks
	GenerateFlatGround(zfar float32) StreamStats

	// InsertChunk stores c, replacing any chunk at the same coordinate.
	InsertChunk(c *Chunk)

	// Chunk retrieves the chunk at coord.
	Chunk(coord ChunkCoord) (*Chunk, bool)

	// Coords returns the resident chunk coordinates, sorted.
	Coords() []ChunkCoord

	// Len returns the number of resident chunks.
	Len() int

	// DefaultMedium returns the medium reported where no chunk is loaded.
	DefaultMedium() Medium

	// MediumAt reports the medium at a world position: air for an air block, ground for a solid block, and the
	// default medium where no chunk is loaded.
	//
	// Parameters:
	//   - pos: the world position
	//
	// Returns:
	//   - Medium: the medium at pos
	MediumAt(pos mgl32.Vec3) Medium

	// SetBlock writes the block at an integer world position and marks its chunk dirty.
	//
	// Returns:
	//   - bool: false if no chunk is loaded there
	SetBlock(x, y, z int32, b Block) bool

	// Block reads the block at an integer world position. Unloaded space reads as air.
	Block(x, y, z int32) Block

	// UpdateMeshes remeshes every dirty chunk on the worker pool.
	//
	// Returns:
	//   - int: the number of rebuilt chunks
	UpdateMeshes() int

	// UploadMeshes creates GPU buffers for every chunk rebuilt since its last upload.
	//
	// Parameters:
	//   - device: the device used for allocation
	//   - queue: the queue used for the writes
	//
	// Returns:
	//   - error: the first upload error; the failing chunk is retried on the next call
	UploadMeshes(device gpu.Device, queue gpu.Queue) error

	// UpdateInstanceBuffer writes one instance per resident chunk, translated to its world origin, in sorted
	// coordinate order. The buffer only grows.
	//
	// Parameters:
	//   - device: the device used for allocation
	//   - queue: the queue used for the upload
	//
	// Returns:
	//   - error: an error if allocation or upload failed
	UpdateInstanceBuffer(device gpu.Device, queue gpu.Queue) error

	// InstanceBuffer returns the chunk instance buffer.
	InstanceBuffer() *gpu.DynamicBuffer

	// Draw issues one indexed draw per uploaded chunk using that chunk's instance slot as firstInstance.
	//
	// Parameters:
	//   - pass: the scene render pass
	//   - mat: the terrain material; nothing is drawn until it is Ready
	//   - frame: the per-frame bind group bound at group 0
	Draw(pass gpu.RenderPass, mat material.Material, frame gpu.BindGroup)

	// Release frees every chunk mesh and the instance buffer.
	Release()
}

var _ Terrain = &terrain{}

// NewTerrain creates an empty Terrain configured with the provided options.
//
// Parameters:
//   - options: variadic list of TerrainBuilderOption functions
//
// Returns:
//   - Terrain: the new terrain
func NewTerrain(options ...TerrainBuilderOption) Terrain {
	t := &terrain{
		mu:            &sync.Mutex{},
		chunks:        make(map[ChunkCoord]*Chunk),
		defaultMedium: MediumAir,
		workers:       max(runtime.NumCPU()-1, 1),
		instances:     gpu.NewDynamicBuffer("terrain_instances", gpu.BufferUsageVertex),
		log:           logger.Provide().Named("terrain"),
	}
	for _, opt := range options {
		opt(t)
	}
	t.pool = worker.NewDynamicWorkerPool(t.workers, meshQueueSize, 1*time.Second)
	return t
}

// chunkCell returns the chunk column containing pos.
func chunkCell(pos mgl32.Vec3) [2]int32 {
	return [2]int32{
		common.FloorToInt32(pos.X() / ChunkSize),
		common.FloorToInt32(pos.Z() / ChunkSize),
	}
}

func (t *terrain) UpdateStreaming(cameraPos mgl32.Vec3, viewDistance int32) StreamStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	center := chunkCell(cameraPos)
	if t.hasCenter && center == t.lastCenter {
		return StreamStats{}
	}
	t.hasCenter = true
	t.lastCenter = center

	var stats StreamStats
	needed := make(map[ChunkCoord]struct{}, (2*viewDistance+1)*(2*viewDistance+1))
	for dx := -viewDistance; dx <= viewDistance; dx++ {
		for dz := -viewDistance; dz <= viewDistance; dz++ {
			coord := ChunkCoord{X: center[0] + dx, Y: 0, Z: center[1] + dz}
			needed[coord] = struct{}{}
			if _, ok := t.chunks[coord]; ok {
				continue
			}
			t.insertFlat(coord)
			stats.Inserted++
		}
	}

	for coord, c := range t.chunks {
		if _, ok := needed[coord]; ok {
			continue
		}
		c.release()
		delete(t.chunks, coord)
		stats.Evicted++
		if t.observer != nil {
			t.observer.ChunkEvicted(coord)
		}
	}

	stats.Rebuilt = t.rebuildDirty()
	t.log.Debug("terrain streamed",
		zap.Int32("cx", center[0]),
		zap.Int32("cz", center[1]),
		zap.Int("inserted", stats.Inserted),
		zap.Int("evicted", stats.Evicted),
		zap.Int("rebuilt", stats.Rebuilt),
		zap.Int("resident", len(t.chunks)),
	)
	return stats
}

// insertFlat resolves the medium at the chunk origin before the chunk exists, then inserts a flat chunk.
func (t *terrain) insertFlat(coord ChunkCoord) {
	c := FlatChunk(coord)
	c.Medium = t.mediumAt(coord.Origin())
	t.chunks[coord] = c
	if t.observer != nil {
		t.observer.ChunkInserted(coord)
	}
}

func (t *terrain) GenerateFlatGround(zfar float32) StreamStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	radius := max(int32(math32.Ceil(zfar/ChunkSize)), 1)
	var stats StreamStats
	for cx := -radius; cx <= radius; cx++ {
		for cz := -radius; cz <= radius; cz++ {
			coord := ChunkCoord{X: cx, Y: 0, Z: cz}
			if old, ok := t.chunks[coord]; ok {
				old.release()
			}
			t.insertFlat(coord)
			stats.Inserted++
		}
	}
	stats.Rebuilt = t.rebuildDirty()
	t.log.Info("flat ground generated", zap.Int32("radius", radius), zap.Int("chunks", len(t.chunks)))
	return stats
}

func (t *terrain) InsertChunk(c *Chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.chunks[c.Coord]; ok && old != c {
		old.release()
	}
	t.chunks[c.Coord] = c
	if t.observer != nil {
		t.observer.ChunkInserted(c.Coord)
	}
}

func (t *terrain) Chunk(coord ChunkCoord) (*Chunk, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chunks[coord]
	return c, ok
}

func (t *terrain) Coords() []ChunkCoord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedCoords()
}

func (t *terrain) sortedCoords() []ChunkCoord {
	coords := make([]ChunkCoord, 0, len(t.chunks))
	for c := range t.chunks {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	return coords
}

func (t *terrain) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.chunks)
}

func (t *terrain) DefaultMedium() Medium {
	return t.defaultMedium
}

func (t *terrain) MediumAt(pos mgl32.Vec3) Medium {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mediumAt(pos)
}

func (t *terrain) mediumAt(pos mgl32.Vec3) Medium {
	b, ok := t.blockAt(common.FloorToInt32(pos.X()), common.FloorToInt32(pos.Y()), common.FloorToInt32(pos.Z()))
	if !ok {
		return t.defaultMedium
	}
	if b == BlockAir {
		return MediumAir
	}
	return MediumGround
}

// locate splits an integer world position into its chunk coordinate and local block position.
func locate(x, y, z int32) (ChunkCoord, [3]int) {
	coord := ChunkCoord{
		X: common.FloorDiv(x, ChunkSize),
		Y: common.FloorDiv(y, ChunkSize),
		Z: common.FloorDiv(z, ChunkSize),
	}
	local := [3]int{
		int(common.EuclidMod(x, ChunkSize)),
		int(common.EuclidMod(y, ChunkSize)),
		int(common.EuclidMod(z, ChunkSize)),
	}
	return coord, local
}

func (t *terrain) blockAt(x, y, z int32) (Block, bool) {
	coord, l := locate(x, y, z)
	c, ok := t.chunks[coord]
	if !ok {
		return BlockAir, false
	}
	return c.Block(l[0], l[1], l[2]), true
}

func (t *terrain) SetBlock(x, y, z int32, b Block) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	coord, l := locate(x, y, z)
	c, ok := t.chunks[coord]
	if !ok {
		return false
	}
	return c.SetBlock(l[0], l[1], l[2], b)
}

func (t *terrain) Block(x, y, z int32) Block {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, _ := t.blockAt(x, y, z)
	return b
}

func (t *terrain) UpdateMeshes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rebuildDirty()
}

// rebuildDirty remeshes dirty chunks on the worker pool in waves of at most meshQueueSize tasks. A WaitGroup
// provides the barrier for each wave; pool.Wait only returns once workers idle out.
func (t *terrain) rebuildDirty() int {
	var dirty []*Chunk
	for _, c := range t.chunks {
		if c.dirty {
			dirty = append(dirty, c)
		}
	}

	for start := 0; start < len(dirty); start += meshQueueSize {
		end := min(start+meshQueueSize, len(dirty))
		var wg sync.WaitGroup
		for i, c := range dirty[start:end] {
			wg.Add(1)
			chunk := c
			t.pool.SubmitTask(worker.Task{
				ID: start + i,
				Do: func() (any, error) {
					defer wg.Done()
					chunk.rebuild()
					return nil, nil
				},
			})
		}
		wg.Wait()
	}
	return len(dirty)
}

func (t *terrain) UploadMeshes(device gpu.Device, queue gpu.Queue) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	uploaded := 0
	for _, coord := range t.sortedCoords() {
		c := t.chunks[coord]
		if !c.built || c.uploaded {
			continue
		}
		c.release()
		if !c.mesh.Empty() {
			mesh, err := model.UploadMesh(device, queue, coord.Key(), c.mesh)
			if err != nil {
				return fmt.Errorf("upload chunk %s: %w", coord, err)
			}
			c.gpuMesh = mesh
		}
		c.uploaded = true
		uploaded++
	}
	if uploaded > 0 {
		t.log.Debug("chunk meshes uploaded", zap.Int("chunks", uploaded))
	}
	return nil
}

func (t *terrain) UpdateInstanceBuffer(device gpu.Device, queue gpu.Queue) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	coords := t.sortedCoords()
	records := make([]model.InstanceRecord, len(coords))
	for i, coord := range coords {
		o := coord.Origin()
		records[i] = model.NewInstanceRecord(mgl32.Translate3D(o.X(), o.Y(), o.Z()), mgl32.Ident4(), t.materialIndex)
	}

	if len(records) == 0 {
		t.instances.Reset()
		t.instanceOrder = nil
		return nil
	}
	// A failed grow keeps the previous records, so the previous order stays paired with them.
	if _, err := t.instances.Stage(device, model.MarshalInstances(records), len(records)); err != nil {
		return fmt.Errorf("terrain instances: %w", err)
	}
	t.instanceOrder = coords
	return t.instances.Upload(queue)
}

func (t *terrain) InstanceBuffer() *gpu.DynamicBuffer {
	return t.instances
}

func (t *terrain) Draw(pass gpu.RenderPass, mat material.Material, frame gpu.BindGroup) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if mat == nil || !mat.Ready() || t.instances.Count() == 0 || t.instances.Buffer() == nil {
		return
	}
	pass.SetPipeline(mat.Pipeline())
	if frame != nil {
		pass.SetBindGroup(0, frame)
	}
	pass.SetBindGroup(1, mat.BindGroup())
	pass.SetVertexBuffer(1, t.instances.Buffer())

	for i, coord := range t.instanceOrder {
		c, ok := t.chunks[coord]
		if !ok || !c.gpuMesh.Drawable() {
			continue
		}
		pass.SetVertexBuffer(0, c.gpuMesh.VertexBuffer)
		pass.SetIndexBuffer(c.gpuMesh.IndexBuffer)
		pass.DrawIndexed(c.gpuMesh.IndexCount, 1, uint32(i))
	}
}

func (t *terrain) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.chunks {
		c.release()
	}
	t.instances.Release()
}
