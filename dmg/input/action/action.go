package action

import "fmt"

// Action represents input actions that can be performed in the emulator
type Action int

const (
	// Game Boy hardware controls
	GBButtonA Action = iota
	GBButtonB
	GBButtonStart
	GBButtonSelect
	GBDPadUp
	GBDPadDown
	GBDPadLeft
	GBDPadRight

	// Emulator features
	EmulatorSnapshot
	EmulatorPauseToggle
	EmulatorStepFrame
	EmulatorQuit
)

// IsGameInput reports whether the action is one of the eight console buttons.
func (a Action) IsGameInput() bool {
	return a >= GBButtonA && a <= GBDPadRight
}

func (a Action) String() string {
	switch a {
	case GBButtonA:
		return "A"
	case GBButtonB:
		return "B"
	case GBButtonStart:
		return "Start"
	case GBButtonSelect:
		return "Select"
	case GBDPadUp:
		return "Up"
	case GBDPadDown:
		return "Down"
	case GBDPadLeft:
		return "Left"
	case GBDPadRight:
		return "Right"
	case EmulatorSnapshot:
		return "Snapshot"
	case EmulatorPauseToggle:
		return "Pause"
	case EmulatorStepFrame:
		return "Step frame"
	case EmulatorQuit:
		return "Quit"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}
