package dmg

import (
	"io"

	"github.com/valerio/dotmatrix/dmg/memory"
)

// Option configures a Session at load time.
type Option func(*config)

type config struct {
	bootROM      []byte
	skipChecksum bool
	serialOut    io.Writer
	cartRAM      []byte
	clock        memory.Clock
	fixedSerial  bool
}

// WithBootROM maps a 256 byte boot ROM over 0000-00FF. Execution starts at
// 0x0000 with zeroed registers instead of the post-boot state.
func WithBootROM(data []byte) Option {
	return func(c *config) {
		c.bootROM = data
	}
}

// WithoutHeaderChecksum accepts images with a bad header checksum.
func WithoutHeaderChecksum() Option {
	return func(c *config) {
		c.skipChecksum = true
	}
}

// WithSerialWriter copies every byte sent over the serial port to w.
func WithSerialWriter(w io.Writer) Option {
	return func(c *config) {
		c.serialOut = w
	}
}

// WithSerialTiming completes serial transfers after the real 4096 cycles
// rather than instantly.
func WithSerialTiming() Option {
	return func(c *config) {
		c.fixedSerial = true
	}
}

// WithCartridgeRAM restores battery backed RAM, typically read from a .sav
// file. Loading fails if the size does not match the cartridge.
func WithCartridgeRAM(data []byte) Option {
	return func(c *config) {
		c.cartRAM = data
	}
}

// WithClock sets the time source for cartridges with a real time clock.
func WithClock(clock memory.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}
