package text

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = color.RGBA{255, 255, 255, 255}

func opaquePixels(img *image.RGBA, rect image.Rectangle) int {
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if img.RGBAAt(x, y).A > 0 {
				n++
			}
		}
	}
	return n
}

func TestRefreshIsThrottled(t *testing.T) {
	o := NewOverlay(64, 32)
	start := time.Unix(1000, 0)
	calls := 0
	supply := func() []Record {
		calls++
		return []Record{{Text: "fps", Color: white}}
	}

	assert.True(t, o.Refresh(start, supply))
	assert.False(t, o.Refresh(start.Add(time.Second), supply))
	assert.False(t, o.Due(start.Add(1499*time.Millisecond)))
	assert.True(t, o.Refresh(start.Add(1500*time.Millisecond), supply))
	assert.Equal(t, 2, calls)
}

func TestResizeForcesRefresh(t *testing.T) {
	o := NewOverlay(64, 32, WithInterval(time.Hour))
	now := time.Unix(1000, 0)
	require.True(t, o.Refresh(now, func() []Record { return nil }))
	assert.False(t, o.Due(now))

	o.Resize(64, 32)
	assert.False(t, o.Due(now))

	o.Resize(128, 64)
	assert.True(t, o.Due(now))
	require.True(t, o.Refresh(now, func() []Record { return nil }))
	img, changed := o.Take()
	assert.True(t, changed)
	assert.Equal(t, image.Rect(0, 0, 128, 64), img.Bounds())
}

func TestRasterizesRecordsAtTheirPosition(t *testing.T) {
	o := NewOverlay(200, 60)
	img, changed := o.Take()
	assert.Nil(t, img)
	assert.False(t, changed)

	o.Refresh(time.Unix(0, 0), func() []Record {
		return []Record{
			{Text: "fps: 60.0 dt: 0.0167", Position: [2]float32{10, 5}, Color: white},
			{Text: "A\nB", Position: [2]float32{150, 20}, Color: color.RGBA{255, 0, 0, 255}},
		}
	})

	img, changed = o.Take()
	require.NotNil(t, img)
	assert.True(t, changed)
	assert.Greater(t, opaquePixels(img, image.Rect(10, 5, 200, 18)), 0)
	assert.Zero(t, opaquePixels(img, image.Rect(0, 45, 140, 60)))
	// The second line of the red record sits one line height below the first.
	assert.Greater(t, opaquePixels(img, image.Rect(150, 33, 160, 46)), 0)

	_, changed = o.Take()
	assert.False(t, changed)
	assert.Len(t, o.Records(), 2)
}

func TestRefreshClearsPreviousText(t *testing.T) {
	o := NewOverlay(100, 20, WithInterval(0))
	now := time.Unix(0, 0)
	o.Refresh(now, func() []Record { return []Record{{Text: "hello", Color: white}} })
	img, _ := o.Take()
	require.Greater(t, opaquePixels(img, img.Bounds()), 0)

	o.Refresh(now, func() []Record { return nil })
	img, _ = o.Take()
	assert.Zero(t, opaquePixels(img, img.Bounds()))
}
