package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-voxel/engine/assets"
	"github.com/Carmen-Shannon/oxy-voxel/engine/camera"
	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/instancing"
	"github.com/Carmen-Shannon/oxy-voxel/engine/light"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/Carmen-Shannon/oxy-voxel/engine/text"
	"github.com/Carmen-Shannon/oxy-voxel/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the rate at which the ticker requests redraws.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithTicker enables or disables the ticker goroutine. Without it the main loop draws once per iteration.
//
// Parameters:
//   - enabled: true to pace frames with the ticker (default)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTicker(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.tickEnabled = enabled
	}
}

// WithFrameLimit stops the engine after n frames. Zero runs until the window closes.
//
// Parameters:
//   - n: the frame count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameLimit(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.frameLimit = n
	}
}

// WithSpin starts the engine with the idle spin enabled.
//
// Parameters:
//   - enabled: true to spin
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSpin(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.spin = enabled
	}
}

// WithWindow sets the window the engine polls and draws into. Required.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithGraph sets the render graph. Required.
//
// Parameters:
//   - g: the graph
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGraph(g renderer.Graph) EngineBuilderOption {
	return func(e *engine) {
		e.graph = g
	}
}

// WithGPU sets the device and queue used for instance and terrain uploads.
//
// Parameters:
//   - device: the GPU device
//   - queue: the GPU queue
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGPU(device gpu.Device, queue gpu.Queue) EngineBuilderOption {
	return func(e *engine) {
		e.device = device
		e.queue = queue
	}
}

// WithWorld injects the component store. Required.
//
// Parameters:
//   - w: the world
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorld(w ecs.World) EngineBuilderOption {
	return func(e *engine) {
		e.world = w
	}
}

// WithTerrain enables terrain streaming around the camera, drawn with mat.
//
// Parameters:
//   - t: the terrain
//   - mat: the material chunks are drawn with
//   - viewDistance: the streaming radius in chunks
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTerrain(t terrain.Terrain, mat material.Material, viewDistance int32) EngineBuilderOption {
	return func(e *engine) {
		e.terrain = t
		e.terrainMaterial = mat
		e.viewDistance = viewDistance
	}
}

// WithModels sets the model lookup instance batches draw from.
//
// Parameters:
//   - models: the model lookup
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithModels(models model.Lookup) EngineBuilderOption {
	return func(e *engine) {
		e.models = models
	}
}

// WithInstances replaces the default instance buffers.
//
// Parameters:
//   - b: the instance buffers
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithInstances(b instancing.Buffers) EngineBuilderOption {
	return func(e *engine) {
		e.instances = b
	}
}

// WithCamera sets the camera. Its controller receives unbound key, cursor and scroll input.
//
// Parameters:
//   - c: the camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithLight sets the scene light.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLight(l light.Light) EngineBuilderOption {
	return func(e *engine) {
		e.light = l
	}
}

// WithOverlay enables the HUD text overlay.
//
// Parameters:
//   - o: the overlay
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithOverlay(o text.Overlay) EngineBuilderOption {
	return func(e *engine) {
		e.overlay = o
	}
}

// WithWatcher enables shader hot reload from asset change notifications. The engine closes the watcher on exit.
//
// Parameters:
//   - w: the asset watcher
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWatcher(w assets.Watcher) EngineBuilderOption {
	return func(e *engine) {
		e.watcher = w
	}
}

// WithLogger sets the engine logger.
//
// Parameters:
//   - log: the logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(log *logger.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.log = log
	}
}
