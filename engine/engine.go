package engine

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/assets"
	"github.com/Carmen-Shannon/oxy-voxel/engine/camera"
	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/instancing"
	"github.com/Carmen-Shannon/oxy-voxel/engine/light"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/Carmen-Shannon/oxy-voxel/engine/model"
	"github.com/Carmen-Shannon/oxy-voxel/engine/profiler"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/Carmen-Shannon/oxy-voxel/engine/text"
	"github.com/Carmen-Shannon/oxy-voxel/engine/window"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// eventBuffer is the capacity of the engine channel. Redraw requests beyond it are coalesced.
const eventBuffer = 1

var errMissingDependency = errors.New("engine dependency not set")

// engine implements the Engine interface.
// Owns the frame loop on the calling thread and the optional ticker goroutine that paces it.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	events          chan Event

	wg sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window
	graph  renderer.Graph
	device gpu.Device
	queue  gpu.Queue

	world           ecs.World
	terrain         terrain.Terrain
	terrainMaterial material.Material
	instances       instancing.Buffers
	models          model.Lookup
	camera          camera.Camera
	light           light.Light
	overlay         text.Overlay
	watcher         assets.Watcher

	profiler         *profiler.Profiler
	profilingEnabled bool
	clock            *profiler.Time

	engineTickRate time.Duration
	tickEnabled    bool
	spin           bool
	viewDistance   int32
	frameLimit     uint64
	droppedFrames  uint64

	sessionID string
	log       *logger.Logger
}

// Engine is the main entry point for the engine.
// It drives the per-frame update, upload, render and present sequence and routes window input.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// World returns the component store the engine simulates.
	//
	// Returns:
	//   - ecs.World: the injected world
	World() ecs.World

	// Graph returns the render graph.
	//
	// Returns:
	//   - renderer.Graph: the injected graph
	Graph() renderer.Graph

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the rate at which the ticker requests redraws.
	// If the engine is running, the change takes effect on the next tick.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetSpin toggles the idle spin applied to every entity rotation.
	//
	// Parameters:
	//   - enabled: true to spin
	SetSpin(enabled bool)

	// Frames returns the number of frames run so far.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// DroppedFrames returns the number of frames skipped because of a per-frame error.
	//
	// Returns:
	//   - uint64: the dropped frame count
	DroppedFrames() uint64

	// SessionID returns the id attached to every log line of this run.
	//
	// Returns:
	//   - string: the session uuid
	SessionID() string

	// Run initializes GPU state and runs the frame loop on the calling thread until the window closes,
	// the frame limit is reached or Stop is called.
	//
	// Parameters:
	//   - ctx: cancels startup asset loads; cancellation after startup stops the loop
	//
	// Returns:
	//   - error: a startup error, or a device-level error raised mid-session
	Run(ctx context.Context) error

	// Stop clears the running flag and signals the ticker to exit.
	// Safe to call multiple times; subsequent calls are no-ops.
	Stop()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// A window, a graph and a world are required; the remaining collaborators are optional.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if a required collaborator is missing
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		events:          make(chan Event, eventBuffer),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
		tickEnabled:     true,
		viewDistance:    4,
		sessionID:       uuid.NewString(),
	}
	for _, opt := range options {
		opt(e)
	}

	switch {
	case e.window == nil:
		return nil, fmt.Errorf("window: %w", errMissingDependency)
	case e.graph == nil:
		return nil, fmt.Errorf("graph: %w", errMissingDependency)
	case e.world == nil:
		return nil, fmt.Errorf("world: %w", errMissingDependency)
	}

	if e.log == nil {
		e.log = logger.Provide()
	}
	e.log = e.log.Named("engine").With(zap.String("session", e.sessionID))
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(e.log)
	}
	if e.camera == nil {
		e.camera = camera.NewCamera()
	}
	if e.instances == nil {
		e.instances = instancing.NewBuffers(instancing.WithModels(e.models))
	}
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) World() ecs.World {
	return e.world
}

func (e *engine) Graph() renderer.Graph {
	return e.graph
}

func (e *engine) SessionID() string {
	return e.sessionID
}

func (e *engine) DroppedFrames() uint64 {
	return e.droppedFrames
}

func (e *engine) Frames() uint64 {
	if e.clock == nil {
		return 0
	}
	return e.clock.FrameCount
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetSpin(enabled bool) {
	e.spin = enabled
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// Stop signals all engine goroutines to stop.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) Stop() {
	e.quitOnce.Do(func() {
		e.world.Stop()
		close(e.quitChannel)
	})
}

func (e *engine) Run(ctx context.Context) error {
	if err := e.init(ctx); err != nil {
		return err
	}
	defer e.release()

	rate := e.engineTickRate
	e.world.Start()
	if e.tickEnabled {
		e.wg.Add(1)
		go e.handleTicker(rate)
	}
	defer func() {
		e.Stop()
		e.wg.Wait()
	}()

	e.log.Info("engine running",
		zap.Bool("ticker", e.tickEnabled),
		zap.Duration("tick_rate", rate),
		zap.Uint64("frame_limit", e.frameLimit),
	)
	for e.world.Running() {
		if ctx.Err() != nil || !e.window.PollEvents() {
			return nil
		}
		e.drainAssetChanges()

		if !e.tickEnabled {
			if err := e.frame(time.Now()); err != nil {
				return err
			}
			continue
		}

		select {
		case ev := <-e.events:
			if ev == EventShutdown {
				return nil
			}
			if err := e.frame(time.Now()); err != nil {
				return err
			}
		case <-e.quitChannel:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// init preloads shader sources concurrently, builds the fixed pipelines and sizes everything to the window.
func (e *engine) init(ctx context.Context) error {
	if err := e.graph.Library().Preload(ctx); err != nil {
		return fmt.Errorf("preload shaders: %w", err)
	}
	if err := e.graph.Init(); err != nil {
		return fmt.Errorf("init render graph: %w", err)
	}

	e.window.SetResizeCallback(e.resize)
	e.window.SetKeyCallback(e.handleKey)
	e.window.SetCursorCallback(e.handleCursor)
	e.window.SetScrollCallback(e.handleScroll)
	e.resize(e.window.Width(), e.window.Height())

	if ctrl := e.camera.Controller(); ctrl != nil && ctrl.FreeLook() {
		e.window.SetCursorCaptured(true)
	}

	e.clock = profiler.NewTime(time.Now())
	return nil
}

// handleTicker paces the main loop. It posts a redraw request every tick, dropping it when one is already
// pending, and exits once the running flag clears.
func (e *engine) handleTicker(rate time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for e.world.Running() {
		select {
		case <-e.quitChannel:
			e.post(EventShutdown)
			return
		case <-ticker.C:
			e.post(EventRequestRedraw)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.log.Debug("tick rate changed", zap.Duration("tick_rate", newRate))
		}
	}
	e.post(EventShutdown)
}

func (e *engine) post(ev Event) bool {
	select {
	case e.events <- ev:
		return true
	default:
		return false
	}
}

// drainAssetChanges applies pending watcher notifications. Shader modules are rebuilt here, on the thread that
// owns the device.
func (e *engine) drainAssetChanges() {
	if e.watcher == nil {
		return
	}
	for {
		select {
		case ev, ok := <-e.watcher.Events():
			if !ok {
				e.watcher = nil
				return
			}
			e.applyAssetChange(ev)
		default:
			return
		}
	}
}

func (e *engine) applyAssetChange(ev assets.ChangeEvent) {
	if ev.Kind == assets.ChangeRemoved {
		return
	}
	name, ok := e.graph.Library().ModuleForPath(ev.Path)
	if !ok {
		e.log.Debug("asset changed", zap.String("path", ev.Path), zap.Stringer("kind", ev.Kind))
		return
	}
	if err := e.graph.ReloadShader(name); err != nil {
		e.log.Warn("shader reload failed, keeping previous pipelines", zap.String("module", name), zap.Error(err))
		return
	}
	e.log.Info("shader reloaded", zap.String("module", name))
}

func (e *engine) reloadAllShaders() {
	for _, name := range e.graph.Library().Names() {
		if err := e.graph.ReloadShader(name); err != nil {
			e.log.Warn("shader reload failed", zap.String("module", name), zap.Error(err))
		}
	}
}

func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if err := e.graph.Resize(uint32(width), uint32(height)); err != nil {
		e.log.Warn("resize failed", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
		return
	}
	e.camera.Resize(uint32(width), uint32(height))
	if e.overlay != nil {
		e.overlay.Resize(width, height)
	}
}

// handleKey applies the engine bindings and passes everything else to the camera controller.
func (e *engine) handleKey(key int, pressed bool) {
	ctrl := e.camera.Controller()
	if pressed {
		switch key {
		case common.KeyF:
			if ctrl != nil {
				ctrl.SetFreeLook(!ctrl.FreeLook())
				e.window.SetCursorCaptured(ctrl.FreeLook())
			}
			return
		case common.KeyP:
			e.spin = !e.spin
			return
		case common.KeyR:
			e.reloadAllShaders()
			return
		}
	}
	if ctrl != nil && !ctrl.ProcessKey(key, pressed) {
		e.log.Debug("unbound key", zap.String("key", window.KeyName(key)), zap.Bool("pressed", pressed))
	}
}

func (e *engine) handleCursor(dx, dy float32) {
	if ctrl := e.camera.Controller(); ctrl != nil {
		ctrl.ProcessCursor(dx, dy)
	}
}

func (e *engine) handleScroll(delta float32) {
	if ctrl := e.camera.Controller(); ctrl != nil {
		ctrl.ProcessScroll(delta)
	}
}

// frame runs one update, upload, render and present cycle. Only device-level failures end the session; any
// other error drops the frame and the loop carries on.
func (e *engine) frame(now time.Time) error {
	if err := e.step(now); err != nil {
		var gpuErr *common.GPUError
		if errors.As(err, &gpuErr) {
			return err
		}
		e.droppedFrames++
		e.log.Warn("frame skipped",
			zap.Uint64("frame", e.clock.FrameCount),
			zap.Uint64("dropped", e.droppedFrames),
			zap.Error(err),
		)
	}

	if e.profilingEnabled {
		e.profiler.Tick(now)
	}
	if e.frameLimit > 0 && e.clock.FrameCount >= e.frameLimit {
		e.log.Info("frame limit reached", zap.Uint64("frames", e.clock.FrameCount))
		e.Stop()
	}
	return nil
}

func (e *engine) step(now time.Time) error {
	e.clock.Update(now)
	dt := float32(e.clock.Delta)

	if ctrl := e.camera.Controller(); ctrl != nil {
		ctrl.Advance(dt)
	}
	e.camera.Update()

	step := ecs.StepOptions{Spin: e.spin}
	if e.terrain != nil {
		step.Media = e.terrain
	}
	e.world.Step(dt, step)

	if err := e.updateTerrain(); err != nil {
		return err
	}
	if e.light != nil {
		e.light.Update(e.clock.Elapsed)
	}
	if err := e.instances.Update(e.world, e.camera.Frustum(), e.device); err != nil {
		return fmt.Errorf("update instances: %w", err)
	}
	if err := e.instances.Upload(e.queue); err != nil {
		return fmt.Errorf("upload instances: %w", err)
	}
	if err := e.graph.PrepareMaterials(); err != nil {
		return fmt.Errorf("prepare materials: %w", err)
	}

	in := renderer.FrameInputs{
		Camera:    e.camera.Uniform(),
		Instances: e.instances,
		Models:    e.models,
	}
	if e.light != nil {
		in.Light = e.light.Uniform()
	}
	if e.terrain != nil && e.terrainMaterial != nil {
		in.Terrain = e.terrain
		in.TerrainMaterial = e.terrainMaterial
	}
	if e.overlay != nil {
		e.overlay.Refresh(now, e.hudRecords)
		if img, changed := e.overlay.Take(); changed {
			in.Overlay = img
		}
	}
	if err := e.graph.Render(in); err != nil {
		return fmt.Errorf("render frame %d: %w", e.clock.FrameCount, err)
	}
	return nil
}

func (e *engine) updateTerrain() error {
	if e.terrain == nil {
		return nil
	}
	if stats := e.terrain.UpdateStreaming(e.camera.Position(), e.viewDistance); stats.Changed() {
		e.log.Debug("terrain streamed",
			zap.Int("inserted", stats.Inserted),
			zap.Int("evicted", stats.Evicted),
			zap.Int("rebuilt", stats.Rebuilt),
		)
	}
	e.terrain.UpdateMeshes()
	if err := e.terrain.UploadMeshes(e.device, e.queue); err != nil {
		return fmt.Errorf("upload terrain meshes: %w", err)
	}
	if err := e.terrain.UpdateInstanceBuffer(e.device, e.queue); err != nil {
		return fmt.Errorf("upload terrain instances: %w", err)
	}
	return nil
}

// hudRecords builds the overlay text: frame timing, camera position, controller state and draw counts.
func (e *engine) hudRecords() []text.Record {
	pos := e.camera.Position()
	lines := e.clock.HUDLine() + "\n" + fmt.Sprintf("pos: %.1f %.1f %.1f", pos[0], pos[1], pos[2])
	if ctrl := e.camera.Controller(); ctrl != nil {
		lines += "\n" + ctrl.Status()
	}
	stats := e.instances.Stats()
	lines += fmt.Sprintf("\nentities: %d visible: %d culled: %d", e.world.EntityCount(), stats.Visible, stats.Culled)
	if e.terrain != nil {
		lines += fmt.Sprintf("\nchunks: %d", e.terrain.Len())
	}
	return []text.Record{{
		Text:     lines,
		Position: [2]float32{8, 8},
		Color:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}}
}

func (e *engine) release() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			e.log.Warn("closing asset watcher", zap.Error(err))
		}
	}
	e.instances.Release()
	if e.terrain != nil {
		e.terrain.Release()
	}
	e.graph.Release()
	s := e.graph.Stats()
	e.log.Info("engine stopped",
		zap.Uint64("frames", e.Frames()),
		zap.Uint64("skipped", e.droppedFrames),
		zap.Uint64("submitted", s.Submitted),
		zap.Uint64("dropped", s.Dropped),
		zap.Uint64("outdated", s.Outdated),
	)
}
