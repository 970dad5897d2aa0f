package window

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-voxel/common"
	"github.com/stretchr/testify/assert"
)

func TestCursorTrackerOnlyReportsWhileDragging(t *testing.T) {
	var c cursorTracker
	_, _, ok := c.move(10, 10)
	assert.False(t, ok)

	c.setDragging(true)
	_, _, ok = c.move(10, 10)
	assert.False(t, ok, "first sample after press only anchors")

	dx, dy, ok := c.move(13, 6)
	assert.True(t, ok)
	assert.Equal(t, float32(3), dx)
	assert.Equal(t, float32(-4), dy)

	_, _, ok = c.move(13, 6)
	assert.False(t, ok)

	c.setDragging(false)
	_, _, ok = c.move(20, 20)
	assert.False(t, ok)
}

func TestCursorTrackerCaptured(t *testing.T) {
	var c cursorTracker
	c.setCaptured(true)
	c.move(0, 0)
	dx, _, ok := c.move(-5, 0)
	assert.True(t, ok)
	assert.Equal(t, float32(-5), dx)
}

func TestWindowDispatchesResizeAndCursor(t *testing.T) {
	w := &engineWindow{mu: &sync.Mutex{}}
	var sizes [][2]int
	var deltas [][2]float32
	w.SetResizeCallback(func(width, height int) { sizes = append(sizes, [2]int{width, height}) })
	w.SetCursorCallback(func(dx, dy float32) { deltas = append(deltas, [2]float32{dx, dy}) })

	w.resized(640, 480)
	assert.Equal(t, 640, w.Width())
	assert.Equal(t, [][2]int{{640, 480}}, sizes)

	w.cursor.setDragging(true)
	w.cursorMoved(1, 1)
	w.cursorMoved(2, 3)
	assert.Equal(t, [][2]float32{{1, 2}}, deltas)
	assert.False(t, w.IsRunning())
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "W", KeyName(common.KeyW))
	assert.Equal(t, "shift", KeyName(common.KeyRightShift))
	assert.Equal(t, "key(999)", KeyName(999))
}
