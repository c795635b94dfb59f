package input

import (
	"log/slog"
	"time"

	"github.com/valerio/dotmatrix/dmg/input/action"
	"github.com/valerio/dotmatrix/dmg/input/event"
	"github.com/valerio/dotmatrix/dmg/memory"
)

const (
	// debounceDuration is the minimum time between debounced events
	debounceDuration = 300 * time.Millisecond
)

// Sink receives the pressed-button mask whenever it changes.
type Sink interface {
	SetInput(buttons memory.Button)
}

// Manager turns backend actions into joypad state and emulator callbacks.
// Console buttons are never debounced; emulator actions are.
type Manager struct {
	handlers      map[action.Action]map[event.Type][]func()
	lastTriggered map[action.Action]map[event.Type]time.Time
	sink          Sink
	pressed       memory.Button
	now           func() time.Time
}

func NewManager(sink Sink) *Manager {
	return &Manager{
		handlers:      make(map[action.Action]map[event.Type][]func()),
		lastTriggered: make(map[action.Action]map[event.Type]time.Time),
		sink:          sink,
		now:           time.Now,
	}
}

// On registers a callback for a specific action and event type
func (m *Manager) On(act action.Action, evt event.Type, callback func()) {
	if m.handlers[act] == nil {
		m.handlers[act] = make(map[event.Type][]func())
	}
	m.handlers[act][evt] = append(m.handlers[act][evt], callback)
}

// Trigger handles the given action and event type.
func (m *Manager) Trigger(act action.Action, evt event.Type) {
	if act.IsGameInput() {
		m.triggerButton(act, evt)
		return
	}

	if evt == event.Press || evt == event.Release {
		now := m.now()
		if m.lastTriggered[act] == nil {
			m.lastTriggered[act] = make(map[event.Type]time.Time)
		}
		if last, ok := m.lastTriggered[act][evt]; ok && now.Sub(last) < debounceDuration {
			return
		}
		m.lastTriggered[act][evt] = now
	}

	for _, callback := range m.handlers[act][evt] {
		callback()
	}
}

func (m *Manager) triggerButton(act action.Action, evt event.Type) {
	button := joypadButton(act)
	next := m.pressed
	switch evt {
	case event.Press, event.Hold:
		next |= button
	case event.Release:
		next &^= button
	}
	if next == m.pressed {
		return
	}

	m.pressed = next
	slog.Debug("Joypad state", "buttons", next.String())
	if m.sink != nil {
		m.sink.SetInput(next)
	}
}

// Pressed returns the current button mask.
func (m *Manager) Pressed() memory.Button {
	return m.pressed
}

// joypadButton maps Game Boy actions to joypad buttons
func joypadButton(act action.Action) memory.Button {
	switch act {
	case action.GBButtonA:
		return memory.ButtonA
	case action.GBButtonB:
		return memory.ButtonB
	case action.GBButtonStart:
		return memory.ButtonStart
	case action.GBButtonSelect:
		return memory.ButtonSelect
	case action.GBDPadUp:
		return memory.ButtonUp
	case action.GBDPadDown:
		return memory.ButtonDown
	case action.GBDPadLeft:
		return memory.ButtonLeft
	case action.GBDPadRight:
		return memory.ButtonRight
	default:
		return 0
	}
}
