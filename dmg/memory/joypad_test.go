package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/interrupt"
)

func TestJoypad_mux(t *testing.T) {
	testCases := []struct {
		desc    string
		pressed Button
		write   uint8
		want    uint8
	}{
		{desc: "nothing selected", pressed: ButtonA | ButtonRight, write: 0x30, want: 0xFF},
		{desc: "d-pad selected", pressed: ButtonRight | ButtonUp | ButtonStart, write: 0x20, want: 0xEA},
		{desc: "buttons selected", pressed: ButtonRight | ButtonB | ButtonStart, write: 0x10, want: 0xD5},
		{desc: "both selected ANDs the groups", pressed: ButtonLeft | ButtonA, write: 0x00, want: 0xCC},
		{desc: "only bits 4-5 are writable", pressed: 0, write: 0xCF, want: 0xCF},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			j := NewJoypad(interrupt.New())
			j.SetPressed(tC.pressed)
			j.Write(tC.write)
			assert.Equal(t, tC.want, j.Read())
		})
	}
}

func TestJoypad_interruptOnPress(t *testing.T) {
	irq := interrupt.New()
	j := NewJoypad(irq)

	j.SetPressed(ButtonA)
	assert.Equal(t, uint8(addr.JoypadInterrupt), irq.Requested())

	irq.Acknowledge(addr.JoypadInterrupt)
	j.SetPressed(ButtonA)
	assert.Zero(t, irq.Requested(), "holding a button is not a new press")

	j.SetPressed(0)
	assert.Zero(t, irq.Requested(), "releases never interrupt")

	j.SetPressed(ButtonA | ButtonDown)
	assert.Equal(t, uint8(addr.JoypadInterrupt), irq.Requested())
}

func TestButton_String(t *testing.T) {
	assert.Equal(t, "none", Button(0).String())
	assert.Equal(t, "Up+A+Start", (ButtonUp | ButtonA | ButtonStart).String())
}
