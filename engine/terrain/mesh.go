package terrain

import "github.com/Carmen-Shannon/oxy-voxel/engine/model"

type face struct {
	dir     [3]int
	normal  [3]float32
	tangent [3]float32
	corners [4][3]float32
}

var faceUVs = [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// faces lists the six block faces in +X, -X, +Y, -Y, +Z, -Z order.
var faces = [6]face{
	{
		dir: [3]int{1, 0, 0}, normal: [3]float32{1, 0, 0}, tangent: [3]float32{0, 0, 1},
		corners: [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
	},
	{
		dir: [3]int{-1, 0, 0}, normal: [3]float32{-1, 0, 0}, tangent: [3]float32{0, 0, -1},
		corners: [4][3]float32{{0, 0, 1}, {0, 1, 1}, {0, 1, 0}, {0, 0, 0}},
	},
	{
		dir: [3]int{0, 1, 0}, normal: [3]float32{0, 1, 0}, tangent: [3]float32{1, 0, 0},
		corners: [4][3]float32{{0, 1, 1}, {1, 1, 1}, {1, 1, 0}, {0, 1, 0}},
	},
	{
		dir: [3]int{0, -1, 0}, normal: [3]float32{0, -1, 0}, tangent: [3]float32{-1, 0, 0},
		corners: [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	},
	{
		dir: [3]int{0, 0, 1}, normal: [3]float32{0, 0, 1}, tangent: [3]float32{1, 0, 0},
		corners: [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
	},
	{
		dir: [3]int{0, 0, -1}, normal: [3]float32{0, 0, -1}, tangent: [3]float32{-1, 0, 0},
		corners: [4][3]float32{{0, 1, 0}, {1, 1, 0}, {1, 0, 0}, {0, 0, 0}},
	},
}

func blockColor(b Block) [3]float32 {
	switch b {
	case BlockStone:
		return [3]float32{0.5, 0.5, 0.5}
	default:
		return [3]float32{1, 1, 1}
	}
}

// BuildChunkMesh emits one quad for every solid block face whose neighbour is air. Neighbours outside the chunk
// count as air, so border faces are always emitted. Vertices are in chunk-local space; the terrain instance buffer
// places each chunk in the world.
//
// Parameters:
//   - c: the chunk to mesh
//
// Returns:
//   - model.MeshData: four vertices and six indices per visible face
func BuildChunkMesh(c *Chunk) model.MeshData {
	var data model.MeshData
	for x := 0; x < ChunkSize; x++ {
		for y := 0; y < ChunkSize; y++ {
			for z := 0; z < ChunkSize; z++ {
				b := c.blocks[x][y][z]
				if b == BlockAir {
					continue
				}
				color := blockColor(b)
				for _, f := range faces {
					if c.Block(x+f.dir[0], y+f.dir[1], z+f.dir[2]) != BlockAir {
						continue
					}
					base := uint32(len(data.Vertices))
					for i, corner := range f.corners {
						data.Vertices = append(data.Vertices, model.Vertex{
							Position: [3]float32{float32(x) + corner[0], float32(y) + corner[1], float32(z) + corner[2]},
							Color:    color,
							TexCoord: faceUVs[i],
							Normal:   f.normal,
							Tangent:  f.tangent,
						})
					}
					data.Indices = append(data.Indices, base, base+1, base+2, base, base+2, base+3)
				}
			}
		}
	}
	return data
}
