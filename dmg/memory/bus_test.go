package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/interrupt"
)

// fakeVideo stores everything with no access policy.
type fakeVideo struct {
	vram [0x2000]byte
	oam  [oamSize]byte
	regs [12]byte
}

func (v *fakeVideo) Read(address uint16) byte {
	switch {
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		return v.vram[address-addr.VRAMStart]
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		return v.oam[address-addr.OAMStart]
	default:
		return v.regs[address-addr.LCDC]
	}
}

func (v *fakeVideo) Write(address uint16, value byte) {
	switch {
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		v.vram[address-addr.VRAMStart] = value
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		v.oam[address-addr.OAMStart] = value
	default:
		v.regs[address-addr.LCDC] = value
	}
}

func (v *fakeVideo) PeekVRAM(address uint16) byte { return v.vram[address-addr.VRAMStart] }
func (v *fakeVideo) WriteOAM(index int, value byte) { v.oam[index] = value }

type fakeSerial struct {
	sb, sc byte
}

func (s *fakeSerial) Read(address uint16) byte {
	if address == addr.SB {
		return s.sb
	}
	return s.sc
}

func (s *fakeSerial) Write(address uint16, value byte) {
	if address == addr.SB {
		s.sb = value
	} else {
		s.sc = value
	}
}

func newTestBus(t *testing.T) (*Bus, *fakeVideo) {
	cart, err := NewCartridge(makeROM(0x03, 0x02, 0x03))
	require.NoError(t, err)

	irq := interrupt.New()
	video := &fakeVideo{}
	bus := NewBus(cart, Devices{
		Video:      video,
		Timer:      NewTimer(irq),
		Joypad:     NewJoypad(irq),
		Serial:     &fakeSerial{},
		Interrupts: irq,
	})
	return bus, video
}

func TestBus_regions(t *testing.T) {
	bus, video := newTestBus(t)

	assert.Equal(t, uint8(0), bus.Read(0x0150), "bank 0")
	assert.Equal(t, uint8(1), bus.Read(0x4000), "bank 1 by default")
	bus.Write(0x2000, 0x03)
	assert.Equal(t, uint8(3), bus.Read(0x4000), "ROM writes reach the controller")

	bus.Write(0x8010, 0xAA)
	assert.Equal(t, uint8(0xAA), video.vram[0x10])
	assert.Equal(t, uint8(0xAA), bus.Read(0x8010))

	bus.Write(0xFE00, 0xBB)
	assert.Equal(t, uint8(0xBB), video.oam[0])

	bus.Write(0xC123, 0x11)
	assert.Equal(t, uint8(0x11), bus.Read(0xE123), "echo mirrors WRAM")
	bus.Write(0xFDFF, 0x22)
	assert.Equal(t, uint8(0x22), bus.Read(0xDDFF))

	bus.Write(0xFEA0, 0x33)
	assert.Equal(t, uint8(0xFF), bus.Read(0xFEA0), "unusable area")

	bus.Write(0xFF80, 0x44)
	assert.Equal(t, uint8(0x44), bus.Read(0xFF80))
	bus.Write(0xFFFE, 0x55)
	assert.Equal(t, uint8(0x55), bus.Read(0xFFFE))
}

func TestBus_cartridgeRAM(t *testing.T) {
	bus, _ := newTestBus(t)

	bus.Write(0xA000, 0x12)
	assert.Equal(t, uint8(0xFF), bus.Read(0xA000), "RAM disabled")

	bus.Write(0x0000, 0x0A)
	bus.Write(0xA000, 0x12)
	assert.Equal(t, uint8(0x12), bus.Read(0xA000))
}

func TestBus_ioRouting(t *testing.T) {
	bus, video := newTestBus(t)

	bus.Write(addr.IE, 0x1F)
	assert.Equal(t, uint8(0x1F), bus.Interrupts.Enabled())
	bus.Write(addr.IF, 0x04)
	assert.Equal(t, uint8(0xE4), bus.Read(addr.IF))

	bus.Write(addr.TMA, 0x42)
	assert.Equal(t, uint8(0x42), bus.Timer.Read(addr.TMA))

	bus.Write(addr.SB, 0x61)
	assert.Equal(t, uint8(0x61), bus.Read(addr.SB))

	bus.Write(addr.P1, 0x20)
	assert.Equal(t, uint8(0xEF), bus.Read(addr.P1))

	bus.Write(addr.NR52, 0xF1)
	assert.Equal(t, uint8(0xF1), bus.Read(addr.NR52), "sound registers are latched")

	bus.Write(addr.SCX, 0x07)
	assert.Equal(t, uint8(0x07), video.regs[addr.SCX-addr.LCDC])

	bus.Write(0xFF03, 0x99)
	assert.Equal(t, uint8(0xFF), bus.Read(0xFF03), "unmapped I/O")
	assert.Equal(t, uint8(0xFF), bus.Read(0xFF7F))
}

func TestBus_DMA(t *testing.T) {
	bus, video := newTestBus(t)
	for i := uint16(0); i < oamSize; i++ {
		bus.Write(0xC100+i, uint8(i))
	}

	bus.Write(addr.DMA, 0xC1)

	for i := 0; i < oamSize; i++ {
		assert.Equal(t, uint8(i), video.oam[i])
	}
	assert.Equal(t, uint8(0xC1), bus.Read(addr.DMA))
	assert.Equal(t, dmaStallCycles, bus.TakeStall())
	assert.Equal(t, 0, bus.TakeStall(), "stall is drained once")
}

func TestBus_DMAFromVRAM(t *testing.T) {
	bus, video := newTestBus(t)
	video.vram[0x0005] = 0x7E

	bus.Write(addr.DMA, 0x80)
	assert.Equal(t, uint8(0x7E), video.oam[5])
}

func TestBus_bootROM(t *testing.T) {
	bus, _ := newTestBus(t)

	assert.Error(t, bus.SetBootROM(make([]byte, 10)))

	boot := make([]byte, bootROMSize)
	boot[0x00] = 0x31
	boot[0xFF] = 0xE0
	require.NoError(t, bus.SetBootROM(boot))

	assert.Equal(t, uint8(0x31), bus.Read(0x0000))
	assert.Equal(t, uint8(0xE0), bus.Read(0x00FF))
	assert.Equal(t, uint8(0x00), bus.Read(0x0100), "the overlay covers 256 bytes")

	bus.Write(addr.BootROMDisable, 0x01)
	assert.False(t, bus.BootROMEnabled())
	assert.Equal(t, uint8(0x00), bus.Read(0x0000))
}

func TestBus_stateRoundTrip(t *testing.T) {
	bus, _ := newTestBus(t)
	bus.Write(0xC000, 0x01)
	bus.Write(0xFF90, 0x02)
	bus.Write(0xFF12, 0x03)

	restored, _ := newTestBus(t)
	require.NoError(t, restored.LoadState(bus.SaveState()))

	assert.Equal(t, uint8(0x01), restored.Read(0xC000))
	assert.Equal(t, uint8(0x02), restored.Read(0xFF90))
	assert.Equal(t, uint8(0x03), restored.Read(0xFF12))
}
