package memory

import (
	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/bit"
	"github.com/valerio/dotmatrix/dmg/interrupt"
	"github.com/valerio/dotmatrix/dmg/state"
)

// Button is a bitmask of joypad buttons. The low nibble is the d-pad and the
// high nibble the action buttons, each in P1 bit order.
type Button uint8

const (
	ButtonRight Button = 1 << iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

var buttonNames = [...]string{"Right", "Left", "Up", "Down", "A", "B", "Select", "Start"}

func (b Button) String() string {
	if b == 0 {
		return "none"
	}
	s := ""
	for i, name := range buttonNames {
		if b&(1<<i) != 0 {
			if s != "" {
				s += "+"
			}
			s += name
		}
	}
	return s
}

// Joypad is the P1 register and the state of the 8 buttons.
type Joypad struct {
	pressed Button
	// selection bits 4-5 as last written, 0 selects a group
	selection uint8
	irq       interrupt.Requester
}

func NewJoypad(irq interrupt.Requester) *Joypad {
	return &Joypad{irq: irq, selection: 0x30}
}

// SetPressed replaces the set of held buttons. Any button that goes from
// released to pressed requests the joypad interrupt.
func (j *Joypad) SetPressed(buttons Button) {
	newlyPressed := buttons &^ j.pressed
	j.pressed = buttons
	if newlyPressed != 0 {
		j.irq.Request(addr.JoypadInterrupt)
	}
}

func (j *Joypad) Pressed() Button {
	return j.pressed
}

// Read returns P1 according to the selection bits and button status.
//
// In real hw, this register is actually just a selector (bits 4-5) that
// controls which set of buttons the low bits (0-3) are mapped to:
//   - if bit 4 is clear, bits 0-3 are mapped to the 4 d-pad directions
//   - if bit 5 is clear, bits 0-3 are mapped to A, B, Select, Start
//   - if both are clear, hw does an AND of both button sets
//   - if neither are clear, bits 0-3 read 0x0F
//
// Note that 1 -> button released, 0 -> button pressed.
// Bits 6-7 are unused, they always read as 1 on real hardware.
func (j *Joypad) Read() uint8 {
	dpad := ^uint8(j.pressed) & 0x0F
	buttons := ^uint8(j.pressed>>4) & 0x0F

	result := uint8(0xC0) | j.selection
	low := uint8(0x0F)
	if !bit.IsSet(4, j.selection) {
		low &= dpad
	}
	if !bit.IsSet(5, j.selection) {
		low &= buttons
	}
	return result | low
}

// Write stores the selection bits, the only writable part of P1.
func (j *Joypad) Write(value uint8) {
	j.selection = value & 0x30
}

type joypadState struct {
	Pressed   Button
	Selection uint8
}

func (j *Joypad) SaveState() []byte {
	return state.Encode("joypad", joypadState{j.pressed, j.selection})
}

func (j *Joypad) LoadState(data []byte) error {
	var s joypadState
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	j.pressed, j.selection = s.Pressed, s.Selection
	return nil
}
