package common

// Key codes delivered by the window layer. Values match GLFW key codes, which use ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87
	KeyA     = 65
	KeyS     = 83
	KeyD     = 68
	KeyQ     = 81
	KeyE     = 69
	KeyF     = 70 // toggles free look
	KeyP     = 80 // toggles the idle spin
	KeyR     = 82 // forces a shader reload
	KeySpace = 32

	KeyEsc        = 256
	KeyRight      = 262
	KeyLeft       = 263
	KeyDown       = 264
	KeyUp         = 265
	KeyLeftShift  = 340
	KeyRightShift = 344
)
