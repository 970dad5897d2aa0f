package main

import (
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScene(t *testing.T) {
	s, err := findScene("terrain")
	require.NoError(t, err)
	assert.Equal(t, "terrain", s.name)

	_, err = findScene("fox")
	assert.EqualError(t, err, `unknown scene "fox" (want one of cubes, sandbox, terrain)`)
}

func TestSpawnGridIsCentered(t *testing.T) {
	world := ecs.NewWorld()
	entities := spawnGrid(world, 3, 1, rand.New(rand.NewPCG(1, 1)))
	require.Len(t, entities, 9)

	first, _ := world.Position(entities[0])
	last, _ := world.Position(entities[8])
	assert.InDelta(t, -cubeSpacing, first[0], 1e-5)
	assert.InDelta(t, cubeSpacing, last[2], 1e-5)
	assert.Equal(t, float32(1), first[1])

	r, ok := world.Renderable(entities[4])
	require.True(t, ok)
	assert.Equal(t, cubeModelKey, r.ModelKey)
}

func TestLoadConfigDefaultsWithoutPath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	m := cfg.Terrain.Medium()
	assert.Equal(t, terrain.MediumAir, m)
}
