package engine

// Event is a signal delivered to the main loop on the engine channel.
type Event int

const (
	// EventRequestRedraw asks the main loop to run one frame of update, upload and render.
	EventRequestRedraw Event = iota
	// EventShutdown is posted by the ticker once the running flag has been cleared.
	EventShutdown
)

func (e Event) String() string {
	switch e {
	case EventRequestRedraw:
		return "request_redraw"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
