package backend

import (
	"errors"
	"log/slog"

	"github.com/valerio/dotmatrix/dmg/debug"
	"github.com/valerio/dotmatrix/dmg/input"
	"github.com/valerio/dotmatrix/dmg/input/action"
	"github.com/valerio/dotmatrix/dmg/input/event"
	"github.com/valerio/dotmatrix/dmg/memory"
	"github.com/valerio/dotmatrix/dmg/timing"
	"github.com/valerio/dotmatrix/dmg/video"
)

// Emulator is the part of a session the run loop drives.
type Emulator interface {
	RunUntilFrame() error
	Framebuffer() *video.FrameBuffer
	SetInput(buttons memory.Button)
}

// ErrQuit is returned by Frame once a quit was requested.
var ErrQuit = errors.New("quit requested")

// Loop runs the emulator one frame at a time, hands each frame to the
// backend and feeds the backend's input back through an input.Manager.
type Loop struct {
	emu     Emulator
	backend Backend
	input   *input.Manager
	limiter timing.Limiter

	snapshotDir string
	paused      bool
	stepFrame   bool
	quit        bool
	frames      int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLimiter paces the loop. The default runs unthrottled.
func WithLimiter(l timing.Limiter) LoopOption {
	return func(loop *Loop) { loop.limiter = l }
}

// WithSnapshotDir sets where the snapshot hotkey writes PNGs.
func WithSnapshotDir(dir string) LoopOption {
	return func(loop *Loop) { loop.snapshotDir = dir }
}

func NewLoop(emu Emulator, b Backend, opts ...LoopOption) *Loop {
	l := &Loop{
		emu:     emu,
		backend: b,
		input:   input.NewManager(emu),
		limiter: timing.NewNoOpLimiter(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.registerCallbacks()
	return l
}

func (l *Loop) registerCallbacks() {
	l.input.On(action.EmulatorQuit, event.Press, func() {
		l.quit = true
	})
	l.input.On(action.EmulatorPauseToggle, event.Press, func() {
		l.paused = !l.paused
		if l.paused {
			slog.Info("Paused")
		} else {
			slog.Info("Resumed")
			l.limiter.Reset()
		}
	})
	l.input.On(action.EmulatorStepFrame, event.Press, func() {
		if l.paused {
			l.stepFrame = true
		}
	})
	l.input.On(action.EmulatorSnapshot, event.Press, func() {
		debug.TakeSnapshot(l.emu.Framebuffer(), l.snapshotDir)
	})
}

// Input exposes the manager so callers can register extra callbacks.
func (l *Loop) Input() *input.Manager {
	return l.input
}

func (l *Loop) Paused() bool {
	return l.paused
}

// Frames returns how many frames were emulated.
func (l *Loop) Frames() int {
	return l.frames
}

// Frame runs one iteration: emulate a frame unless paused, present it and
// apply the input the backend returned. It returns ErrQuit once a quit has
// been requested.
func (l *Loop) Frame() error {
	if l.quit {
		return ErrQuit
	}

	if !l.paused || l.stepFrame {
		l.stepFrame = false
		if err := l.emu.RunUntilFrame(); err != nil {
			return err
		}
		l.frames++
	}

	events, err := l.backend.Update(l.emu.Framebuffer())
	if err != nil {
		return err
	}
	for _, e := range events {
		l.input.Trigger(e.Action, e.Type)
	}

	if l.quit {
		return ErrQuit
	}
	l.limiter.WaitForNextFrame()
	return nil
}

// Run initializes the backend and drives it until quit or error. Backends
// implementing Driver get the loop handed over instead.
func (l *Loop) Run(config BackendConfig) error {
	if err := l.backend.Init(config); err != nil {
		return err
	}
	defer func() {
		if err := l.backend.Cleanup(); err != nil {
			slog.Warn("Backend cleanup failed", "error", err)
		}
	}()

	if d, ok := l.backend.(Driver); ok {
		return ignoreQuit(d.Drive(l))
	}

	for {
		if err := l.Frame(); err != nil {
			return ignoreQuit(err)
		}
	}
}

func ignoreQuit(err error) error {
	if errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}
