package assets

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/Carmen-Shannon/oxy-voxel/engine/cache"
	"github.com/Carmen-Shannon/oxy-voxel/engine/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 0, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testLoader(t *testing.T) Loader {
	t.Helper()
	l, err := NewLoader(WithRoot("/srv/assets"), WithFS(fstest.MapFS{
		"shaders/scene.wgsl": {Data: []byte("@vertex fn vs_main() {}")},
		"shaders/empty.wgsl": {Data: []byte{}},
		"shaders/bad.wgsl":   {Data: []byte{0xff, 0xfe}},
		"textures/sky.png":   {Data: pngBytes(t)},
		"textures/junk.png":  {Data: []byte("not an image")},
	}))
	require.NoError(t, err)
	return l
}

func TestResolve(t *testing.T) {
	l := testLoader(t)
	p, err := l.Resolve("shaders/scene.wgsl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/assets", "shaders", "scene.wgsl"), p)

	for _, bad := range []string{"", "/etc/passwd", "../secret", "shaders/../../x"} {
		_, err := l.Resolve(bad)
		var fsErr *common.FileSystemError
		assert.ErrorAs(t, err, &fsErr, bad)
		assert.ErrorIs(t, err, ErrOutsideRoot, bad)
	}
}

func TestReadShader(t *testing.T) {
	l := testLoader(t)
	src, err := l.ReadShader("shaders/scene.wgsl")
	require.NoError(t, err)
	assert.Contains(t, src, "vs_main")

	_, err = l.ReadShader("shaders/missing.wgsl")
	var fsErr *common.FileSystemError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, "shaders/missing.wgsl", fsErr.Path)

	var loadErr *common.AssetLoadError
	_, err = l.ReadShader("shaders/empty.wgsl")
	assert.ErrorAs(t, err, &loadErr)
	_, err = l.ReadShader("shaders/bad.wgsl")
	assert.ErrorAs(t, err, &loadErr)
}

func TestReadImage(t *testing.T) {
	l := testLoader(t)
	tex, err := l.ReadImage("textures/sky.png")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.Width)
	assert.Equal(t, uint32(1), tex.Height)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, tex.Pixels)

	_, err = l.ReadImage("textures/junk.png")
	var decodeErr *common.ImageDecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDefaultRootIsUnderWorkingDirectory(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)
	wd, _ := os.Getwd()
	assert.Equal(t, filepath.Join(wd, DefaultRoot), l.Root())
}

func TestCubeMeshData(t *testing.T) {
	data := CubeMeshData()
	require.Len(t, data.Vertices, 24)
	require.Len(t, data.Indices, 36)

	bounds := data.Bounds()
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, bounds.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, bounds.Max)
	assert.InDelta(t, mgl32.Vec3{1, 1, 1}.Len(), bounds.Radius(), 1e-5)

	// Every triangle winds counter-clockwise around its face normal.
	for i := 0; i < len(data.Indices); i += 3 {
		a := mgl32.Vec3(data.Vertices[data.Indices[i]].Position)
		b := mgl32.Vec3(data.Vertices[data.Indices[i+1]].Position)
		c := mgl32.Vec3(data.Vertices[data.Indices[i+2]].Position)
		n := mgl32.Vec3(data.Vertices[data.Indices[i]].Normal)
		assert.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(n), float32(0))
	}
	for _, v := range data.Vertices {
		assert.InDelta(t, 0, mgl32.Vec3(v.Tangent).Dot(mgl32.Vec3(v.Normal)), 1e-5)
		assert.InDelta(t, 1, mgl32.Vec3(v.Tangent).Len(), 1e-5)
	}
}

func TestCubeSupplier(t *testing.T) {
	src, err := CubeSupplier(cache.NewCacheKey("stone"))(CubeKey)
	require.NoError(t, err)
	require.Len(t, src.Parts, 1)
	assert.Equal(t, "stone", src.Parts[0].MaterialKey.String())
	assert.Len(t, src.Parts[0].Data.Indices, 36)
}

func TestWatcherTranslate(t *testing.T) {
	w := &watcher{root: filepath.FromSlash("/srv/assets")}
	name := filepath.Join("/srv/assets", "shaders", "scene.wgsl")

	cases := []struct {
		op   fsnotify.Op
		kind ChangeKind
		ok   bool
	}{
		{fsnotify.Write, ChangeModified, true},
		{fsnotify.Create, ChangeCreated, true},
		{fsnotify.Remove, ChangeRemoved, true},
		{fsnotify.Rename, ChangeRemoved, true},
		{fsnotify.Chmod, 0, false},
	}
	for _, tc := range cases {
		change, ok := w.translate(fsnotify.Event{Name: name, Op: tc.op})
		assert.Equal(t, tc.ok, ok, tc.op.String())
		if ok {
			assert.Equal(t, ChangeEvent{Path: "shaders/scene.wgsl", Kind: tc.kind}, change)
		}
	}
}

func TestWatcherForwardsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shaders"), 0o755))
	target := filepath.Join(root, "shaders", "scene.wgsl")
	require.NoError(t, os.WriteFile(target, []byte("a"), 0o644))

	core, _ := observer.New(zap.DebugLevel)
	w, err := NewWatcher(root, logger.NewWithCore(core))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(target, []byte("b"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == "shaders/scene.wgsl" {
				assert.Contains(t, []ChangeKind{ChangeModified, ChangeCreated}, ev.Kind)
				return
			}
		case <-deadline:
			t.Fatal("no change event for shaders/scene.wgsl")
		}
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	_, open := <-w.Events()
	assert.False(t, open)
}

func TestWatcherMissingRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
