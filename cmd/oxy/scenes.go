package main

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-voxel/engine"
	"github.com/Carmen-Shannon/oxy-voxel/engine/assets"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/config"
	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// cubeGridSide is the number of cubes per side of the XZ grid.
	cubeGridSide = 12
	// cubeSpacing determines how far apart cubes are placed in the grid.
	cubeSpacing = 3.0
	// dropHeight is where sandbox cubes start before gravity pulls them to the ground.
	dropHeight = 25.0
)

var (
	cubeModelKey       = cache.NewCacheKey("cube")
	cubeMaterialKey    = cache.NewCacheKey("cube_material")
	terrainMaterialKey = cache.NewCacheKey("terrain_material")
)

// sceneSetup carries what a scene builder populates before the engine starts.
type sceneSetup struct {
	cfg       config.Config
	world     ecs.World
	models    model.Manager
	materials material.Storage
	log       *logger.Logger
}

type sceneTarget struct {
	name        string
	description string
	build       func(s *sceneSetup) ([]engine.EngineBuilderOption, error)
}

var sceneTargets = []sceneTarget{
	{name: "cubes", description: "a grid of instanced cubes, no terrain", build: buildCubes},
	{name: "terrain", description: "streamed flat voxel ground around the camera", build: buildTerrain},
	{name: "sandbox", description: "cubes dropped onto streamed terrain", build: buildSandbox},
}

func findScene(name string) (sceneTarget, error) {
	for _, s := range sceneTargets {
		if s.name == name {
			return s, nil
		}
	}
	names := make([]string, 0, len(sceneTargets))
	for _, s := range sceneTargets {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return sceneTarget{}, fmt.Errorf("unknown scene %q (want one of %s)", name, strings.Join(names, ", "))
}

func loadCube(s *sceneSetup) error {
	_, err := s.models.Load(cubeModelKey, assets.CubeSupplier(cubeMaterialKey,
		material.WithDiffuseTexture(cache.NewCacheKey("textures/crate.png")),
		material.WithNormalTexture(cache.NewCacheKey("textures/crate_normal.png")),
	))
	return err
}

// spawnGrid places side*side cubes on a grid centered on the origin at height y.
// Each cube gets a random initial rotation for visual variety.
func spawnGrid(world ecs.World, side int, y float32, rng *rand.Rand) []ecs.Entity {
	entities := make([]ecs.Entity, 0, side*side)
	offset := float32(side-1) * cubeSpacing / 2
	for i := range side {
		for j := range side {
			pos := mgl32.Vec3{float32(i)*cubeSpacing - offset, y, float32(j)*cubeSpacing - offset}
			e := world.SpawnModel(cubeModelKey, pos)
			axis := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
			if axis.Len() > 1e-3 {
				world.InsertRotation(e, mgl32.QuatRotate(rng.Float32()*2*math32.Pi, axis.Normalize()))
			}
			entities = append(entities, e)
		}
	}
	return entities
}

func buildCubes(s *sceneSetup) ([]engine.EngineBuilderOption, error) {
	if err := loadCube(s); err != nil {
		return nil, err
	}
	spawnGrid(s.world, cubeGridSide, 0, rand.New(rand.NewPCG(1, 2)))
	return []engine.EngineBuilderOption{engine.WithSpin(true)}, nil
}

func newTerrain(s *sceneSetup) (terrain.Terrain, material.Material, error) {
	mat, err := s.materials.Store(terrainMaterialKey,
		material.WithDiffuseTexture(cache.NewCacheKey("textures/ground.png")),
	)
	if err != nil {
		return nil, nil, err
	}
	tr := terrain.NewTerrain(
		terrain.WithDefaultMedium(s.cfg.Terrain.Medium()),
		terrain.WithMaterialIndex(mat.Index()),
	)
	return tr, mat, nil
}

func buildTerrain(s *sceneSetup) ([]engine.EngineBuilderOption, error) {
	tr, mat, err := newTerrain(s)
	if err != nil {
		return nil, err
	}
	return []engine.EngineBuilderOption{engine.WithTerrain(tr, mat, s.cfg.Terrain.ViewDistance)}, nil
}

// buildSandbox drops a grid of cubes onto the ground. A ring of them sits in water and falls slower.
func buildSandbox(s *sceneSetup) ([]engine.EngineBuilderOption, error) {
	if err := loadCube(s); err != nil {
		return nil, err
	}
	tr, mat, err := newTerrain(s)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(3, 4))
	for _, e := range spawnGrid(s.world, cubeGridSide/2, dropHeight, rng) {
		s.world.InsertVelocity(e, mgl32.Vec3{rng.Float32()*4 - 2, 0, rng.Float32()*4 - 2})
		if pos, ok := s.world.Position(e); ok && (mgl32.Vec2{pos[0], pos[2]}).Len() > cubeSpacing*2 {
			s.world.InsertMedium(e, terrain.MediumWater)
		}
	}
	return []engine.EngineBuilderOption{engine.WithTerrain(tr, mat, s.cfg.Terrain.ViewDistance)}, nil
}
