package profiler

import (
	"fmt"
	"time"
)

// Time is the frame clock. Update is called once per frame on the render goroutine.
type Time struct {
	last time.Time

	Delta      float64 // seconds since the previous frame
	FPS        float64 // 1 / Delta, kept from the last frame with a positive delta
	Elapsed    float64 // seconds since the first Update
	FrameCount uint64
}

// NewTime returns a clock whose first frame is measured from start.
func NewTime(start time.Time) *Time {
	return &Time{last: start}
}

// Update advances the clock to now.
func (t *Time) Update(now time.Time) {
	t.Delta = now.Sub(t.last).Seconds()
	t.last = now
	t.Elapsed += t.Delta
	t.FrameCount++
	if t.Delta > 0 {
		t.FPS = 1 / t.Delta
	}
}

// HUDLine formats the clock for the text overlay.
func (t *Time) HUDLine() string {
	return fmt.Sprintf("fps: %.1f dt: %.4f", t.FPS, t.Delta)
}
