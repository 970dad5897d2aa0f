package renderer

import (
	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
)

// GraphBuilderOption is a functional option applied to a graph during construction via NewGraph.
type GraphBuilderOption func(*graph)

// WithShaderLibrary sets the library the graph reads shader modules from.
//
// Parameters:
//   - library: the shader library
//
// Returns:
//   - GraphBuilderOption: a function that applies the library option to a graph
func WithShaderLibrary(library shader.Library) GraphBuilderOption {
	return func(g *graph) {
		g.library = library
	}
}

// WithMaterialStorage sets the storage whose materials the graph prepares and whose buffer it binds.
//
// Parameters:
//   - storage: the material storage
//
// Returns:
//   - GraphBuilderOption: a function that applies the storage option to a graph
func WithMaterialStorage(storage material.Storage) GraphBuilderOption {
	return func(g *graph) {
		g.materials = storage
	}
}

// WithTextureCache sets the cache material textures are resolved through.
//
// Parameters:
//   - textures: the texture cache
//
// Returns:
//   - GraphBuilderOption: a function that applies the texture cache option to a graph
func WithTextureCache(textures TextureCache) GraphBuilderOption {
	return func(g *graph) {
		g.textures = textures
	}
}

// WithClearColor sets the scene pass clear color.
func WithClearColor(rgba [4]float64) GraphBuilderOption {
	return func(g *graph) {
		g.clearColor = rgba
	}
}

// WithSkybox toggles the procedural sky draw at the start of the scene pass.
func WithSkybox(enabled bool) GraphBuilderOption {
	return func(g *graph) {
		g.skybox = enabled
	}
}

// WithEnvironment projects a Radiance (.hdr) equirectangular map onto a cube at Init and draws it as the sky in
// place of the gradient. A map that cannot be read or projected falls back to the gradient.
//
// Parameters:
//   - source: the reader the map is loaded through
//   - path: the map path relative to source
//   - size: the cube face edge in texels; zero selects DefaultEnvironmentSize
//
// Returns:
//   - GraphBuilderOption: a function that applies the environment option to a graph
func WithEnvironment(source EnvironmentSource, path string, size uint32) GraphBuilderOption {
	return func(g *graph) {
		g.env = &environment{
			source: source,
			path:   path,
			size:   common.OrDefault(size, DefaultEnvironmentSize),
		}
	}
}

// WithGraphLogger replaces the graph's named logger.
func WithGraphLogger(l *logger.Logger) GraphBuilderOption {
	return func(g *graph) {
		g.log = l
	}
}
