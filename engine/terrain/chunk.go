package terrain

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// ChunkSize is the edge length of a chunk in blocks.
const ChunkSize = 16

// Block is a block id. Zero is air; every other id is solid.
type Block uint8

const (
	BlockAir   Block = 0
	BlockStone Block = 1
)

// ChunkCoord addresses a chunk in chunk units.
type ChunkCoord struct {
	X, Y, Z int32
}

// Origin returns the world position of the chunk's minimum corner.
func (c ChunkCoord) Origin() mgl32.Vec3 {
	return mgl32.Vec3{float32(c.X * ChunkSize), float32(c.Y * ChunkSize), float32(c.Z * ChunkSize)}
}

// Less orders coordinates by X, then Y, then Z.
func (c ChunkCoord) Less(o ChunkCoord) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

// Key returns the cache identity used for the chunk's GPU buffers.
func (c ChunkCoord) Key() cache.CacheKey {
	return cache.NewCacheKey(fmt.Sprintf("chunk_%d_%d_%d", c.X, c.Y, c.Z))
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.Z)
}

// Chunk is a 16x16x16 block volume. Any block change marks it dirty so the terrain rebuilds its mesh.
type Chunk struct {
	Coord  ChunkCoord
	Medium Medium

	blocks [ChunkSize][ChunkSize][ChunkSize]Block
	dirty  bool

	mesh     model.MeshData
	built    bool
	uploaded bool
	gpuMesh  *model.Mesh
}

// NewChunk returns a completely solid chunk.
func NewChunk(coord ChunkCoord) *Chunk {
	c := &Chunk{Coord: coord, dirty: true}
	c.Fill(BlockStone)
	return c
}

// EmptyChunk returns a chunk of air.
func EmptyChunk(coord ChunkCoord) *Chunk {
	return &Chunk{Coord: coord, dirty: true}
}

// FlatChunk returns a chunk whose bottom layer (y = 0) is solid and everything above is air.
func FlatChunk(coord ChunkCoord) *Chunk {
	c := EmptyChunk(coord)
	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			c.blocks[x][0][z] = BlockStone
		}
	}
	return c
}

// CubeChunk returns a chunk of air holding a solid 4x4x4 cube spanning local coordinates 6 through 9.
func CubeChunk(coord ChunkCoord) *Chunk {
	c := EmptyChunk(coord)
	for x := 6; x < 10; x++ {
		for y := 6; y < 10; y++ {
			for z := 6; z < 10; z++ {
				c.blocks[x][y][z] = BlockStone
			}
		}
	}
	return c
}

// Fill sets every block to b.
func (c *Chunk) Fill(b Block) {
	for x := range c.blocks {
		for y := range c.blocks[x] {
			for z := range c.blocks[x][y] {
				c.blocks[x][y][z] = b
			}
		}
	}
	c.dirty = true
}

// SetBlock writes a block at local coordinates and marks the chunk dirty. Out-of-range writes are ignored.
//
// Parameters:
//   - x, y, z: local block coordinates in [0, ChunkSize)
//   - b: the block id
//
// Returns:
//   - bool: true if the coordinates were in range
func (c *Chunk) SetBlock(x, y, z int, b Block) bool {
	if !inBounds(x, y, z) {
		return false
	}
	c.blocks[x][y][z] = b
	c.dirty = true
	return true
}

// Block reads the block at local coordinates. Anything outside the chunk reads as air.
func (c *Chunk) Block(x, y, z int) Block {
	if !inBounds(x, y, z) {
		return BlockAir
	}
	return c.blocks[x][y][z]
}

// Dirty reports whether blocks changed since the last mesh build.
func (c *Chunk) Dirty() bool {
	return c.dirty
}

// SolidCount returns the number of non-air blocks.
func (c *Chunk) SolidCount() int {
	n := 0
	for x := range c.blocks {
		for y := range c.blocks[x] {
			for z := range c.blocks[x][y] {
				if c.blocks[x][y][z] != BlockAir {
					n++
				}
			}
		}
	}
	return n
}

// Mesh returns the last built CPU mesh in chunk-local coordinates.
func (c *Chunk) Mesh() model.MeshData {
	return c.mesh
}

// GPUMesh returns the uploaded mesh, or nil if none has been uploaded or the chunk has no faces.
func (c *Chunk) GPUMesh() *model.Mesh {
	return c.gpuMesh
}

func (c *Chunk) rebuild() {
	c.mesh = BuildChunkMesh(c)
	c.dirty = false
	c.built = true
	c.uploaded = false
}

func (c *Chunk) release() {
	if c.gpuMesh != nil {
		c.gpuMesh.Release()
		c.gpuMesh = nil
	}
}

func inBounds(x, y, z int) bool {
	return x >= 0 && x < ChunkSize && y >= 0 && y < ChunkSize && z >= 0 && z < ChunkSize
}
