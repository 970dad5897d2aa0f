package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides platform windowing and input event handling.
// Input is delivered as discrete events through callbacks; all callbacks run on the thread calling PollEvents.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key press, repeat and release events. Escape is handled by the
	// window itself and closes it.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common key codes) and whether it is held
	SetKeyCallback(callback func(key int, pressed bool))

	// SetCursorCallback sets the callback for cursor movement. Deltas are reported while a mouse button is held
	// or while the cursor is captured.
	//
	// Parameters:
	//   - callback: function receiving the cursor delta in pixels
	SetCursorCallback(callback func(dx, dy float32))

	// SetCursorCaptured hides and locks the cursor for free look, or releases it.
	//
	// Parameters:
	//   - captured: true to capture
	SetCursorCaptured(captured bool)

	// SetTitle replaces the title bar text.
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// PollEvents dispatches pending events without blocking.
	//
	// Returns:
	//   - bool: false once the window has been asked to close
	PollEvents() bool

	// RequestClose asks the window to close; IsRunning reports false afterwards.
	RequestClose()

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	mu *sync.Mutex

	// title is the window title displayed in the title bar.
	title string

	// size limits applied to the GLFW window.
	maxWidth, maxHeight int
	minWidth, minHeight int

	// width and height are the current framebuffer size in pixels.
	width  int
	height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	cursor cursorTracker

	onResize func(width, height int)
	onScroll func(delta float32)
	onKey    func(key int, pressed bool)
	onCursor func(dx, dy float32)
}

var _ Window = &engineWindow{}

// NewWindow creates the platform window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the spawned window
//   - error: an error if GLFW could not create the window
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		mu:        &sync.Mutex{},
		title:     "oxy",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	runtime.LockOSThread()
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key int, pressed bool)) {
	w.onKey = callback
}

func (w *engineWindow) SetCursorCallback(callback func(dx, dy float32)) {
	w.onCursor = callback
}

func (w *engineWindow) SetCursorCaptured(captured bool) {
	w.cursor.setCaptured(captured)
	platformSetCursorCaptured(w, captured)
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w, title)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) PollEvents() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) RequestClose() {
	platformRequestClose(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

func (w *engineWindow) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}

func (w *engineWindow) resized(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *engineWindow) cursorMoved(x, y float64) {
	if dx, dy, ok := w.cursor.move(x, y); ok && w.onCursor != nil {
		w.onCursor(dx, dy)
	}
}

// cursorTracker turns absolute cursor positions into deltas. A delta is reported only while dragging or
// captured, and never for the first sample after either starts, so the view does not jump.
type cursorTracker struct {
	x, y     float64
	valid    bool
	dragging bool
	captured bool
}

func (c *cursorTracker) setDragging(dragging bool) {
	c.dragging = dragging
	c.valid = false
}

func (c *cursorTracker) setCaptured(captured bool) {
	c.captured = captured
	c.valid = false
}

func (c *cursorTracker) move(x, y float64) (float32, float32, bool) {
	if !c.dragging && !c.captured {
		c.valid = false
		return 0, 0, false
	}
	if !c.valid {
		c.x, c.y, c.valid = x, y, true
		return 0, 0, false
	}
	dx, dy := float32(x-c.x), float32(y-c.y)
	c.x, c.y = x, y
	return dx, dy, dx != 0 || dy != 0
}
