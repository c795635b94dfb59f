package input

import "github.com/valerio/dotmatrix/dmg/input/action"

// DefaultKeyMap provides default key mappings that work across backends.
// Backends translate their native key codes to these names.
var DefaultKeyMap = map[string]action.Action{
	// Game Boy controls
	"z":         action.GBButtonA,
	"x":         action.GBButtonB,
	"Enter":     action.GBButtonStart,
	"Backspace": action.GBButtonSelect,
	"Shift":     action.GBButtonSelect,
	"Up":        action.GBDPadUp,
	"Down":      action.GBDPadDown,
	"Left":      action.GBDPadLeft,
	"Right":     action.GBDPadRight,

	// WASD
	"w": action.GBDPadUp,
	"s": action.GBDPadDown,
	"a": action.GBDPadLeft,
	"d": action.GBDPadRight,

	// Emulator controls
	"Space":  action.EmulatorPauseToggle,
	"p":      action.EmulatorPauseToggle,
	"f":      action.EmulatorStepFrame,
	"F12":    action.EmulatorSnapshot,
	"Escape": action.EmulatorQuit,
	"q":      action.EmulatorQuit,
}

// GetDefaultMapping returns the default action for a key, if one exists
func GetDefaultMapping(key string) (action.Action, bool) {
	act, ok := DefaultKeyMap[key]
	return act, ok
}
