package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/dotmatrix/dmg/backend"
	"github.com/valerio/dotmatrix/dmg/input"
	"github.com/valerio/dotmatrix/dmg/input/action"
	"github.com/valerio/dotmatrix/dmg/input/event"
	"github.com/valerio/dotmatrix/dmg/video"
)

const (
	width  = video.FramebufferWidth
	height = video.FramebufferHeight

	// the screen uses one text row per two pixel rows
	gameRows      = height / 2
	dividerX      = width + 1
	rightPanelX   = dividerX + 2
	minTermWidth  = 80
	minTermHeight = 24
	logCapacity   = 200

	// Terminals report key presses but not releases. A key counts as held
	// while its auto-repeat keeps arriving within this window.
	keyTimeout = 100 * time.Millisecond
)

// Backend renders frames as half-block characters with tcell and turns key
// presses into input events. While it runs, slog output goes to an in-screen
// log panel.
type Backend struct {
	screen    tcell.Screen
	newScreen func() (tcell.Screen, error)
	config    backend.BackendConfig

	logBuffer      *LogBuffer
	logLevel       slog.Leveler
	previousLogger *slog.Logger

	keyStates  map[action.Action]time.Time // last time each button key arrived
	activeKeys map[action.Action]bool      // buttons held in the previous frame
	eventQueue []backend.InputEvent
	signals    chan os.Signal
	now        func() time.Time
}

type Option func(*Backend)

// WithScreen uses an existing screen instead of opening the terminal.
func WithScreen(screen tcell.Screen) Option {
	return func(t *Backend) {
		t.newScreen = func() (tcell.Screen, error) { return screen, nil }
	}
}

// WithLogLevel sets the minimum level shown in the log panel.
func WithLogLevel(level slog.Leveler) Option {
	return func(t *Backend) { t.logLevel = level }
}

func New(opts ...Option) *Backend {
	t := &Backend{
		newScreen: tcell.NewScreen,
		logLevel:  slog.LevelInfo,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Backend) Init(config backend.BackendConfig) error {
	t.config = config
	t.keyStates = make(map[action.Action]time.Time)
	t.activeKeys = make(map[action.Action]bool)

	screen, err := t.newScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	t.screen = screen
	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	t.logBuffer = NewLogBuffer(logCapacity)
	t.previousLogger = slog.Default()
	slog.SetDefault(slog.New(NewLogBufferHandler(t.logBuffer, t.logLevel)))

	t.signals = make(chan os.Signal, 1)
	signal.Notify(t.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	slog.Info("Terminal backend initialized")
	return nil
}

// Update renders a frame and processes events
func (t *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	now := t.now()

	select {
	case sig := <-t.signals:
		slog.Info("Received signal", "signal", sig)
		t.eventQueue = append(t.eventQueue, backend.InputEvent{Action: action.EmulatorQuit, Type: event.Press})
	default:
	}

	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev, now)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	events := t.buttonEvents(now)
	events = append(events, t.eventQueue...)
	t.eventQueue = nil

	t.render(frame)
	t.screen.Show()
	return events, nil
}

// buttonEvents turns the key timestamps into Press, Hold and Release events.
func (t *Backend) buttonEvents(now time.Time) []backend.InputEvent {
	var events []backend.InputEvent
	currentlyActive := make(map[action.Action]bool)

	for act, lastPressed := range t.keyStates {
		if now.Sub(lastPressed) >= keyTimeout {
			delete(t.keyStates, act)
			continue
		}
		currentlyActive[act] = true
		if t.activeKeys[act] {
			events = append(events, backend.InputEvent{Action: act, Type: event.Hold})
		} else {
			events = append(events, backend.InputEvent{Action: act, Type: event.Press})
		}
	}

	for act := range t.activeKeys {
		if !currentlyActive[act] {
			events = append(events, backend.InputEvent{Action: act, Type: event.Release})
		}
	}

	t.activeKeys = currentlyActive
	return events
}

func (t *Backend) Cleanup() error {
	if t.screen == nil {
		return nil
	}
	signal.Stop(t.signals)
	t.screen.Fini()
	t.screen = nil

	slog.SetDefault(t.previousLogger)
	// the screen hid these, repeat them where they can be seen
	entries := t.logBuffer.GetRecent(0)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Level >= slog.LevelWarn {
			fmt.Fprintln(os.Stderr, FormatLogEntry(entries[i]))
		}
	}
	return nil
}

var tcellKeyNameMap = map[tcell.Key]string{
	tcell.KeyEnter:      "Enter",
	tcell.KeyBackspace:  "Backspace",
	tcell.KeyBackspace2: "Backspace",
	tcell.KeyUp:         "Up",
	tcell.KeyDown:       "Down",
	tcell.KeyLeft:       "Left",
	tcell.KeyRight:      "Right",
	tcell.KeyEscape:     "Escape",
	tcell.KeyF12:        "F12",
}

func buildKeyMapping() map[tcell.Key]action.Action {
	mapping := make(map[tcell.Key]action.Action)
	for key, keyName := range tcellKeyNameMap {
		if act, ok := input.GetDefaultMapping(keyName); ok {
			mapping[key] = act
		}
	}
	mapping[tcell.KeyCtrlC] = action.EmulatorQuit
	return mapping
}

var keyMapping = buildKeyMapping()

func runeName(r rune) string {
	if r == ' ' {
		return "Space"
	}
	return string(r)
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey, now time.Time) {
	act, ok := keyMapping[ev.Key()]
	if !ok && ev.Key() == tcell.KeyRune {
		act, ok = input.GetDefaultMapping(runeName(ev.Rune()))
	}
	if !ok {
		return
	}

	if !act.IsGameInput() {
		t.eventQueue = append(t.eventQueue, backend.InputEvent{Action: act, Type: event.Press})
		return
	}

	// key repeat only reports the last key, so a new direction replaces
	// the old one rather than both being held
	if isDirection(act) {
		for _, dir := range []action.Action{action.GBDPadUp, action.GBDPadDown, action.GBDPadLeft, action.GBDPadRight} {
			delete(t.keyStates, dir)
		}
	}
	t.keyStates[act] = now
}

func isDirection(act action.Action) bool {
	return act >= action.GBDPadUp && act <= action.GBDPadRight
}
