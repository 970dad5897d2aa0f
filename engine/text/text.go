package text

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultInterval is how often the overlay accepts new records.
const DefaultInterval = 1500 * time.Millisecond

// Record is one block of overlay text. Position is the top-left corner in surface pixels;
// embedded newlines start a new line below the previous one.
type Record struct {
	Text     string
	Position [2]float32
	Color    color.RGBA
}

type overlay struct {
	mu *sync.Mutex

	interval   time.Duration
	face       font.Face
	lastUpdate time.Time
	forced     bool

	width, height int
	records       []Record
	img           *image.RGBA
	dirty         bool
}

// Overlay rasterizes a list of text records into an RGBA image the renderer draws over the scene.
// New records are accepted at most once per interval; the renderer re-uploads the image only when
// Take reports a change.
type Overlay interface {
	// Due reports whether Refresh would accept records at now.
	//
	// Parameters:
	//   - now: the frame time
	//
	// Returns:
	//   - bool: true if the interval has elapsed or a resize forced a refresh
	Due(now time.Time) bool

	// Refresh calls supply and rasterizes its records if the overlay is due. supply is not called otherwise.
	//
	// Parameters:
	//   - now: the frame time
	//   - supply: builds the records for this update
	//
	// Returns:
	//   - bool: true if the image was redrawn
	Refresh(now time.Time, supply func() []Record) bool

	// Resize changes the image size and forces the next Refresh. Non-positive or unchanged sizes are ignored.
	//
	// Parameters:
	//   - width: surface width in pixels
	//   - height: surface height in pixels
	Resize(width, height int)

	// Records returns a copy of the last accepted records.
	//
	// Returns:
	//   - []Record: the records
	Records() []Record

	// Take returns the current image and whether it changed since the previous Take.
	//
	// Returns:
	//   - *image.RGBA: the overlay image, nil before the first Refresh
	//   - bool: true if the image must be re-uploaded
	Take() (*image.RGBA, bool)

	// Size returns the current image size.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	Size() (int, int)
}

var _ Overlay = &overlay{}

// NewOverlay creates an Overlay for a surface of the given size using basicfont.Face7x13.
//
// Parameters:
//   - width: surface width in pixels
//   - height: surface height in pixels
//   - opts: optional builder options
//
// Returns:
//   - Overlay: the new overlay
func NewOverlay(width, height int, opts ...OverlayBuilderOption) Overlay {
	o := &overlay{
		mu:       &sync.Mutex{},
		interval: DefaultInterval,
		face:     basicfont.Face7x13,
		width:    max(width, 1),
		height:   max(height, 1),
		forced:   true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *overlay) Due(now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.due(now)
}

// due requires the mutex.
func (o *overlay) due(now time.Time) bool {
	return o.forced || now.Sub(o.lastUpdate) >= o.interval
}

func (o *overlay) Refresh(now time.Time, supply func() []Record) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.due(now) {
		return false
	}
	o.records = append(o.records[:0], supply()...)
	o.lastUpdate = now
	o.forced = false
	o.rasterize()
	return true
}

func (o *overlay) Resize(width, height int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if width <= 0 || height <= 0 || (width == o.width && height == o.height) {
		return
	}
	o.width = width
	o.height = height
	o.forced = true
}

func (o *overlay) Records() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Record, len(o.records))
	copy(out, o.records)
	return out
}

func (o *overlay) Take() (*image.RGBA, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	changed := o.dirty
	o.dirty = false
	return o.img, changed
}

func (o *overlay) Size() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.width, o.height
}

// rasterize redraws every record into a cleared image. Caller must hold the mutex.
func (o *overlay) rasterize() {
	bounds := image.Rect(0, 0, o.width, o.height)
	if o.img == nil || o.img.Bounds() != bounds {
		o.img = image.NewRGBA(bounds)
	} else {
		draw.Draw(o.img, bounds, image.Transparent, image.Point{}, draw.Src)
	}

	metrics := o.face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	for _, r := range o.records {
		d := &font.Drawer{
			Dst:  o.img,
			Src:  image.NewUniform(r.Color),
			Face: o.face,
		}
		x := fixed.I(int(r.Position[0]))
		y := int(r.Position[1]) + ascent
		for _, line := range strings.Split(r.Text, "\n") {
			d.Dot = fixed.Point26_6{X: x, Y: fixed.I(y)}
			d.DrawString(line)
			y += lineHeight
		}
	}
	o.dirty = true
}
