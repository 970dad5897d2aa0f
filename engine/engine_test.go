package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/assets"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/camera"
	"github.com/Carmen-Shannon/oxy-voxel/engine/ecs"
	"github.com/Carmen-Shannon/oxy-voxel/engine/light"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-voxel/engine/terrain"
	"github.com/Carmen-Shannon/oxy-voxel/engine/text"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	mu       sync.Mutex
	running  bool
	width    int
	height   int
	captured bool
	polls    int

	onResize func(width, height int)
	onScroll func(delta float32)
	onKey    func(key int, pressed bool)
	onCursor func(dx, dy float32)
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{running: true, width: 800, height: 800}
}

func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.onResize = cb }
func (w *fakeWindow) SetScrollCallback(cb func(delta float32))     { w.onScroll = cb }
func (w *fakeWindow) SetKeyCallback(cb func(key int, pressed bool)) { w.onKey = cb }
func (w *fakeWindow) SetCursorCallback(cb func(dx, dy float32))    { w.onCursor = cb }
func (w *fakeWindow) SetCursorCaptured(captured bool)              { w.captured = captured }
func (w *fakeWindow) SetTitle(string)                              {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor   { return nil }
func (w *fakeWindow) Width() int                                   { return w.width }
func (w *fakeWindow) Height() int                                  { return w.height }
func (w *fakeWindow) Close() error                                 { return nil }

func (w *fakeWindow) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *fakeWindow) PollEvents() bool {
	w.mu.Lock()
	w.polls++
	w.mu.Unlock()
	return w.IsRunning()
}

func (w *fakeWindow) RequestClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
}

type fakeGraph struct {
	library   shader.Library
	materials material.Storage

	initErr    error
	reloadErr  error
	renderErrs []error

	inited   bool
	released bool
	prepared int
	sizes    [][2]uint32
	frames   []renderer.FrameInputs
	reloads  []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{library: shader.NewLibrary(), materials: material.NewStorage()}
}

func (g *fakeGraph) Init() error {
	if g.initErr != nil {
		return g.initErr
	}
	g.inited = true
	return nil
}

func (g *fakeGraph) PrepareMaterials() error {
	g.prepared++
	return nil
}

func (g *fakeGraph) Resize(width, height uint32) error {
	g.sizes = append(g.sizes, [2]uint32{width, height})
	return nil
}

func (g *fakeGraph) Render(in renderer.FrameInputs) error {
	if len(g.renderErrs) > 0 {
		err := g.renderErrs[0]
		g.renderErrs = g.renderErrs[1:]
		return err
	}
	g.frames = append(g.frames, in)
	return nil
}

func (g *fakeGraph) ReloadShader(name string) error {
	g.reloads = append(g.reloads, name)
	return g.reloadErr
}

func (g *fakeGraph) Library() shader.Library           { return g.library }
func (g *fakeGraph) Materials() material.Storage       { return g.materials }
func (g *fakeGraph) Textures() renderer.TextureCache   { return nil }
func (g *fakeGraph) SceneTarget() renderer.FrameBuffer { return nil }
func (g *fakeGraph) HDRTarget() renderer.FrameBuffer   { return nil }
func (g *fakeGraph) Release()                          { g.released = true }

func (g *fakeGraph) Stats() renderer.GraphStats {
	return renderer.GraphStats{Submitted: uint64(len(g.frames))}
}

type fakeWatcher struct {
	events chan assets.ChangeEvent
	closed bool
}

func (w *fakeWatcher) Events() <-chan assets.ChangeEvent { return w.events }

func (w *fakeWatcher) Close() error {
	w.closed = true
	return nil
}

var cubeKey = cache.NewCacheKey("cube")

func testCamera() camera.Camera {
	return camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(45)),
		camera.WithFar(100),
		camera.WithController(camera.NewOrbitController(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{})),
	)
}

func newTestEngine(t *testing.T, opts ...EngineBuilderOption) (*engine, *fakeWindow, *fakeGraph) {
	t.Helper()
	win := newFakeWindow()
	graph := newFakeGraph()
	base := []EngineBuilderOption{
		WithWindow(win),
		WithGraph(graph),
		WithWorld(ecs.NewWorld()),
		WithGPU(&gputest.Device{}, &gputest.Queue{}),
		WithCamera(testCamera()),
		WithTicker(false),
	}
	e, err := NewEngine(append(base, opts...)...)
	require.NoError(t, err)
	return e.(*engine), win, graph
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(WithGraph(newFakeGraph()), WithWorld(ecs.NewWorld()))
	assert.ErrorIs(t, err, errMissingDependency)
	_, err = NewEngine(WithWindow(newFakeWindow()), WithWorld(ecs.NewWorld()))
	assert.ErrorIs(t, err, errMissingDependency)
	_, err = NewEngine(WithWindow(newFakeWindow()), WithGraph(newFakeGraph()))
	assert.ErrorIs(t, err, errMissingDependency)
}

func TestFrameCullsFarEntity(t *testing.T) {
	e, _, graph := newTestEngine(t)
	e.world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, 0})
	e.world.SpawnModel(cubeKey, mgl32.Vec3{5, 0, 0})
	e.world.SpawnModel(cubeKey, mgl32.Vec3{200, 0, 0})
	require.NoError(t, e.init(context.Background()))

	require.NoError(t, e.frame(time.Now()))

	assert.Len(t, e.instances.Batch(cubeKey), 2)
	assert.Equal(t, 1, e.instances.Stats().Culled)
	require.Len(t, graph.frames, 1)
	assert.Same(t, e.instances, graph.frames[0].Instances)
	assert.Nil(t, graph.frames[0].Terrain)
	assert.Equal(t, 1, graph.prepared)
	assert.Equal(t, [][2]uint32{{800, 800}}, graph.sizes)
	assert.InDelta(t, 1.0, e.camera.Aspect(), 1e-6)
}

func TestFrameStreamsTerrainAndRefreshesOverlay(t *testing.T) {
	ground := material.NewMaterial(cache.NewCacheKey("terrain"))
	tr := terrain.NewTerrain()
	e, _, graph := newTestEngine(t,
		WithTerrain(tr, ground, 1),
		WithOverlay(text.NewOverlay(200, 100)),
		WithLight(light.NewOrbitingLight()),
	)
	require.NoError(t, e.init(context.Background()))

	now := time.Now()
	require.NoError(t, e.frame(now))
	require.NoError(t, e.frame(now.Add(16*time.Millisecond)))

	assert.Equal(t, 9, tr.Len())
	require.Len(t, graph.frames, 2)
	assert.Same(t, ground, graph.frames[0].TerrainMaterial)
	require.NotNil(t, graph.frames[0].Overlay, "first frame uploads the overlay")
	assert.Equal(t, 800, graph.frames[0].Overlay.Bounds().Dx(), "overlay follows the window size")
	assert.Nil(t, graph.frames[1].Overlay, "unchanged overlay is not re-uploaded")
	assert.NotEqual(t, light.GPULightUniform{}, graph.frames[0].Light)
}

func TestHUDRecords(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.init(context.Background()))
	require.NoError(t, e.frame(time.Now()))

	records := e.hudRecords()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Text, "fps: ")
	assert.Contains(t, records[0].Text, "pos: 0.0 0.0 10.0")
	assert.Contains(t, records[0].Text, "entities: 0")
}

func TestKeyBindings(t *testing.T) {
	e, win, graph := newTestEngine(t)
	require.NoError(t, e.init(context.Background()))
	ctrl := e.camera.Controller()

	win.onKey(common.KeyF, true)
	assert.True(t, ctrl.FreeLook())
	assert.True(t, win.captured)
	win.onKey(common.KeyF, false)
	assert.True(t, ctrl.FreeLook(), "release does not toggle")

	win.onKey(common.KeyP, true)
	assert.True(t, e.spin)
	win.onKey(common.KeyP, true)
	assert.False(t, e.spin)

	win.onKey(common.KeyR, true)
	assert.Equal(t, graph.library.Names(), graph.reloads)

	// Unbound keys reach the controller as movement.
	before := ctrl.Position()
	win.onKey(common.KeyW, true)
	ctrl.Advance(0.5)
	win.onKey(common.KeyW, false)
	assert.NotEqual(t, before, ctrl.Position())
}

func TestCursorAndScrollReachController(t *testing.T) {
	e, win, _ := newTestEngine(t)
	require.NoError(t, e.init(context.Background()))
	ctrl := e.camera.Controller()

	radius := ctrl.Radius()
	win.onScroll(1)
	assert.Less(t, ctrl.Radius(), radius)

	azimuth := ctrl.Azimuth()
	win.onCursor(10, 0)
	assert.NotEqual(t, azimuth, ctrl.Azimuth())
}

func TestResizeIgnoresZeroSize(t *testing.T) {
	e, win, graph := newTestEngine(t)
	require.NoError(t, e.init(context.Background()))

	win.onResize(0, 600)
	win.onResize(1600, 800)
	assert.Equal(t, [][2]uint32{{800, 800}, {1600, 800}}, graph.sizes)
	assert.InDelta(t, 2.0, e.camera.Aspect(), 1e-6)
}

func TestAssetChangesReloadShaderModules(t *testing.T) {
	w := &fakeWatcher{events: make(chan assets.ChangeEvent, 4)}
	e, _, graph := newTestEngine(t, WithWatcher(w))

	w.events <- assets.ChangeEvent{Path: "shaders/scene.wgsl", Kind: assets.ChangeModified}
	w.events <- assets.ChangeEvent{Path: "textures/ground.png", Kind: assets.ChangeModified}
	w.events <- assets.ChangeEvent{Path: "shaders/hdr.wgsl", Kind: assets.ChangeRemoved}
	e.drainAssetChanges()
	assert.Equal(t, []string{"scene"}, graph.reloads)

	graph.reloadErr = errors.New("parse error")
	w.events <- assets.ChangeEvent{Path: "shaders/blit.wgsl", Kind: assets.ChangeModified}
	e.drainAssetChanges()
	assert.Equal(t, []string{"scene", "blit"}, graph.reloads)

	close(w.events)
	e.drainAssetChanges()
	assert.Nil(t, e.watcher)
}

func TestPostCoalescesRedrawRequests(t *testing.T) {
	e, _, _ := newTestEngine(t)
	assert.True(t, e.post(EventRequestRedraw))
	assert.False(t, e.post(EventRequestRedraw))
	assert.Equal(t, EventRequestRedraw, <-e.events)
	assert.Equal(t, "shutdown", EventShutdown.String())
}

func TestTickerRequestsRedrawsUntilStopped(t *testing.T) {
	e, _, _ := newTestEngine(t, WithTickRate(500))
	e.wg.Add(1)
	go e.handleTicker(e.engineTickRate)

	select {
	case ev := <-e.events:
		assert.Equal(t, EventRequestRedraw, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no redraw request from ticker")
	}

	e.Stop()
	e.Stop()
	e.wg.Wait()
	assert.False(t, e.world.Running())
}

func TestSetTickRateKeepsLatestValue(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetTickRate(30)
	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, <-e.tickRateChannel)
}

func TestRunSynchronousStopsAtFrameLimit(t *testing.T) {
	w := &fakeWatcher{events: make(chan assets.ChangeEvent, 1)}
	e, win, graph := newTestEngine(t, WithFrameLimit(3), WithWatcher(w))

	require.NoError(t, e.Run(context.Background()))

	assert.True(t, graph.inited)
	assert.True(t, graph.released)
	assert.True(t, w.closed)
	assert.Len(t, graph.frames, 3)
	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, 3, win.polls)
	assert.False(t, e.world.Running())
}

func TestRunWithTicker(t *testing.T) {
	e, _, graph := newTestEngine(t, WithTicker(true), WithTickRate(1000), WithFrameLimit(2))

	require.NoError(t, e.Run(context.Background()))
	assert.Len(t, graph.frames, 2)
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	e, win, graph := newTestEngine(t)
	win.RequestClose()

	require.NoError(t, e.Run(context.Background()))
	assert.Empty(t, graph.frames)
	assert.True(t, graph.released)
}

func TestRunReturnsInitError(t *testing.T) {
	e, _, graph := newTestEngine(t)
	graph.initErr = errors.New("no adapter")

	err := e.Run(context.Background())
	assert.ErrorIs(t, err, graph.initErr)
	assert.False(t, graph.released)
}

func TestFailedInstanceAllocationSkipsOnlyThatFrame(t *testing.T) {
	device := &gputest.Device{FailNext: true}
	e, _, graph := newTestEngine(t, WithGPU(device, &gputest.Queue{}))
	e.world.SpawnModel(cubeKey, mgl32.Vec3{0, 0, 0})
	require.NoError(t, e.init(context.Background()))

	require.NoError(t, e.frame(time.Now()))
	assert.Empty(t, graph.frames)
	assert.Equal(t, uint64(1), e.DroppedFrames())
	assert.Equal(t, 0, e.instances.Buffer(cubeKey).Count())

	require.NoError(t, e.frame(time.Now()))
	require.Len(t, graph.frames, 1)
	assert.Equal(t, 1, e.instances.Buffer(cubeKey).Count())
	assert.Equal(t, uint64(1), e.DroppedFrames())
}

func TestRunContinuesAfterFrameError(t *testing.T) {
	e, win, graph := newTestEngine(t, WithFrameLimit(3))
	graph.renderErrs = []error{errors.New("write uniforms: queue full")}

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, uint64(1), e.DroppedFrames())
	assert.Len(t, graph.frames, 2)
	assert.Equal(t, 3, win.polls)
}

func TestRunEndsOnDeviceError(t *testing.T) {
	e, _, graph := newTestEngine(t, WithFrameLimit(5))
	graph.renderErrs = []error{fmt.Errorf("reconfigure: %w", &common.GPUError{Kind: common.GPUErrorSurfaceUnsupported})}

	err := e.Run(context.Background())
	var gpuErr *common.GPUError
	require.ErrorAs(t, err, &gpuErr)
	assert.Equal(t, common.GPUErrorSurfaceUnsupported, gpuErr.Kind)
	assert.Equal(t, uint64(0), e.DroppedFrames())
	assert.True(t, graph.released)
}
