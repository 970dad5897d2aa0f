package assets

import (
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
)

// CubeKey is the model key the engine uses for the procedural cube.
var CubeKey = cache.NewCacheKey("cube")

// cubeFaces lists each face's normal and its corners counter-clockwise when viewed from outside.
var cubeFaces = [6]struct {
	normal  [3]float32
	corners [4][3]float32
}{
	{[3]float32{0, 0, 1}, [4][3]float32{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}}},
	{[3]float32{0, 0, -1}, [4][3]float32{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}}},
	{[3]float32{1, 0, 0}, [4][3]float32{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}}},
	{[3]float32{-1, 0, 0}, [4][3]float32{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}},
	{[3]float32{0, 1, 0}, [4][3]float32{{-1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {-1, 1, -1}}},
	{[3]float32{0, -1, 0}, [4][3]float32{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}}},
}

var cubeUVs = [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

// CubeMeshData builds a cube spanning [-1, 1] on every axis: 24 vertices, 36 indices, white vertex color,
// per-face UVs and tangents derived from them. Its bounding sphere radius equals the length of a unit scale.
//
// Returns:
//   - model.MeshData: the cube geometry
func CubeMeshData() model.MeshData {
	data := model.MeshData{
		Vertices: make([]model.Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	for _, f := range cubeFaces {
		base := uint32(len(data.Vertices))
		for i, c := range f.corners {
			data.Vertices = append(data.Vertices, model.Vertex{
				Position: c,
				Color:    [3]float32{1, 1, 1},
				TexCoord: cubeUVs[i],
				Normal:   f.normal,
			})
		}
		data.Indices = append(data.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	data.ComputeTangents()
	return data
}

// CubeSupplier returns a model.Supplier that ignores its key and produces a single-part cube.
// It stands in for an external geometry importer.
//
// Parameters:
//   - materialKey: the material the cube is drawn with; zero derives one from the model key
//   - opts: material options applied when the material is first stored
//
// Returns:
//   - model.Supplier: the cube supplier
func CubeSupplier(materialKey cache.CacheKey, opts ...material.MaterialBuilderOption) model.Supplier {
	return func(cache.CacheKey) (model.Source, error) {
		return model.Source{Parts: []model.SourcePart{{
			Name:        "cube",
			Data:        CubeMeshData(),
			MaterialKey: materialKey,
			Material:    opts,
		}}}, nil
	}
}
