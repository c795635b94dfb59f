package backend

import (
	"github.com/valerio/dotmatrix/dmg/input/action"
	"github.com/valerio/dotmatrix/dmg/input/event"
	"github.com/valerio/dotmatrix/dmg/video"
)

// Backend represents a complete emulator platform (rendering + input).
// Backends are responsible for:
// - Rendering frames to their specific output (terminal, window, files)
// - Translating platform-specific input events to InputEvents
type Backend interface {
	// Init configures the backend. It must be called before Update.
	Init(config BackendConfig) error

	// Update renders the frame and returns the input gathered since the
	// last call.
	Update(frame *video.FrameBuffer) ([]InputEvent, error)

	// Cleanup releases resources when shutting down.
	Cleanup() error
}

// Driver is implemented by backends whose toolkit insists on owning the
// main loop. They call Loop.Frame from their own callback instead.
type Driver interface {
	Drive(loop *Loop) error
}

// InputEvent is a single action reported by a backend.
type InputEvent struct {
	Action action.Action
	Type   event.Type
}

// BackendConfig holds configuration for backends
type BackendConfig struct {
	Title string
	Scale int
	// Status, when set, returns a one line description of the machine for
	// backends that have room to show it.
	Status func() string
}
