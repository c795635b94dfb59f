package memory

import (
	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/bit"
	"github.com/valerio/dotmatrix/dmg/interrupt"
	"github.com/valerio/dotmatrix/dmg/state"
)

// tacLookup maps TAC input clock select (bits 1-0) to the bit position
// of the 16-bit internal divider (systemCounter) used as the timer's
// clock source. The timer increments on falling edges of this selected
// bit when the timer is enabled (TAC bit 2 = 1).
//
//	00 -> bit 9  (4096 Hz)
//	01 -> bit 3  (262144 Hz)
//	10 -> bit 5  (65536 Hz)
//	11 -> bit 7  (16384 Hz)
var tacLookup = [4]uint8{9, 3, 5, 7}

const (
	// overflowDelay is how long TIMA reads 0x00 after overflowing.
	overflowDelay = 4
	// reloadWindow is how long TIMA ignores writes after the TMA reload.
	reloadWindow = 4
	// tacUnusedBits always read back as 1.
	tacUnusedBits = 0xF8
)

// Timer is the DIV/TIMA/TMA/TAC block.
//
// The interrupt is requested as TIMA overflows. TIMA then reads 0x00 for one
// machine cycle before TMA is copied in; writing TIMA during that cycle
// cancels the reload. During the following machine cycle TIMA writes are
// ignored and TMA writes go through to TIMA as well.
type Timer struct {
	systemCounter uint16 // DIV is the upper 8 bits
	overflow      int    // cycles left before the TMA reload
	reloading     int    // cycles left in the reload window

	tima byte
	tma  byte
	tac  byte

	irq interrupt.Requester
}

func NewTimer(irq interrupt.Requester) *Timer {
	return &Timer{irq: irq}
}

// SetSeed initializes the internal divider without triggering an increment.
func (t *Timer) SetSeed(seed uint16) {
	t.systemCounter = seed
	t.overflow = 0
	t.reloading = 0
}

// Tick advances the timer one clock at a time.
func (t *Timer) Tick(cycles int) {
	for range cycles {
		if t.reloading > 0 {
			t.reloading--
		}

		if t.overflow > 0 {
			t.overflow--
			if t.overflow == 0 {
				t.tima = t.tma
				t.reloading = reloadWindow
			}
		}

		t.setCounter(t.systemCounter + 1)
	}
}

// input is the enable bit ANDed with the selected divider bit.
func (t *Timer) input() bool {
	return bit.IsSet(2, t.tac) && bit.IsSet16(tacLookup[t.tac&0x03], t.systemCounter)
}

func (t *Timer) setCounter(value uint16) {
	before := t.input()
	t.systemCounter = value
	if before && !t.input() {
		t.incrementTIMA()
	}
}

func (t *Timer) incrementTIMA() {
	t.tima++
	if t.tima == 0 {
		t.irq.Request(addr.TimerInterrupt)
		t.overflow = overflowDelay
	}
}

func (t *Timer) Read(address uint16) byte {
	switch address {
	case addr.DIV:
		return byte(t.systemCounter >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | tacUnusedBits
	default:
		return 0xFF
	}
}

func (t *Timer) Write(address uint16, value byte) {
	switch address {
	case addr.DIV:
		// resetting the divider can itself produce a falling edge
		t.setCounter(0)
	case addr.TIMA:
		if t.reloading > 0 {
			return
		}
		t.overflow = 0
		t.tima = value
	case addr.TMA:
		t.tma = value
		if t.reloading > 0 {
			t.tima = value
		}
	case addr.TAC:
		before := t.input()
		t.tac = value & 0x07
		if before && !t.input() {
			t.incrementTIMA()
		}
	}
}

type timerState struct {
	SystemCounter  uint16
	Overflow       int
	Reloading      int
	TIMA, TMA, TAC byte
}

func (t *Timer) SaveState() []byte {
	return state.Encode("timer", timerState{t.systemCounter, t.overflow, t.reloading, t.tima, t.tma, t.tac})
}

func (t *Timer) LoadState(data []byte) error {
	var s timerState
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	t.systemCounter, t.overflow, t.reloading = s.SystemCounter, s.Overflow, s.Reloading
	t.tima, t.tma, t.tac = s.TIMA, s.TMA, s.TAC
	return nil
}
