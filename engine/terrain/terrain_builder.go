package terrain

// TerrainBuilderOption is a functional option for configuring a Terrain via NewTerrain.
type TerrainBuilderOption func(*terrain)

// WithDefaultMedium is an option builder that sets the medium reported where no chunk is loaded.
//
// Parameters:
//   - m: the default medium
//
// Returns:
//   - TerrainBuilderOption: a function that applies the default medium option
func WithDefaultMedium(m Medium) TerrainBuilderOption {
	return func(t *terrain) {
		t.defaultMedium = m
	}
}

// WithObserver is an option builder that registers a StreamObserver for chunk inserts and evictions.
//
// Parameters:
//   - o: the observer
//
// Returns:
//   - TerrainBuilderOption: a function that applies the observer option
func WithObserver(o StreamObserver) TerrainBuilderOption {
	return func(t *terrain) {
		t.observer = o
	}
}

// WithMeshWorkers is an option builder that sets how many pool workers remesh chunks.
// The default is one less than the number of CPUs, with a minimum of one.
//
// Parameters:
//   - n: the worker count; values below one are ignored
//
// Returns:
//   - TerrainBuilderOption: a function that applies the worker option
func WithMeshWorkers(n int) TerrainBuilderOption {
	return func(t *terrain) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithMaterialIndex is an option builder that sets the material storage slot written into chunk instances.
func WithMaterialIndex(index uint32) TerrainBuilderOption {
	return func(t *terrain) {
		t.materialIndex = index
	}
}
