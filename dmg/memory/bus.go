package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/fault"
	"github.com/valerio/dotmatrix/dmg/interrupt"
	"github.com/valerio/dotmatrix/dmg/state"
)

type memRegion uint8

const (
	regionUnmapped memRegion = iota
	regionROM
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

const (
	bootROMSize = 0x100
	oamSize     = 0xA0
	// dmaStallCycles is how long the CPU waits for an OAM DMA transfer.
	dmaStallCycles = 640
)

// VideoPort is the PPU side of the bus. Read and Write apply the PPU's
// access policy for VRAM and OAM; PeekVRAM and WriteOAM are the DMA path,
// which ignores it.
type VideoPort interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	PeekVRAM(address uint16) byte
	WriteOAM(index int, value byte)
}

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations only ever see reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

// Devices are the memory mapped components the bus routes to.
type Devices struct {
	Video      VideoPort
	Timer      *Timer
	Joypad     *Joypad
	Serial     SerialPort
	Interrupts *interrupt.Controller
}

// Bus routes every CPU address to the component that owns it. It also owns
// the plain memories: work RAM, high RAM and the sound register latch.
type Bus struct {
	cart *Cartridge
	Devices
	regionMap [256]memRegion

	wram  [0x2000]byte
	hram  [0x7F]byte
	audio [addr.AudioEnd - addr.AudioStart + 1]byte

	boot        []byte
	bootEnabled bool

	dma   byte
	stall int
}

func NewBus(cart *Cartridge, devices Devices) *Bus {
	b := &Bus{cart: cart, Devices: devices}
	initRegionMap(b)
	return b
}

func initRegionMap(b *Bus) {
	for i := 0x00; i <= 0x7F; i++ {
		b.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		b.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		b.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		b.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		b.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unused: 0xFEA0-0xFEFF
	b.regionMap[0xFE] = regionOAM
	// IO + HRAM + IE: 0xFF00-0xFFFF
	b.regionMap[0xFF] = regionIO
}

// SetBootROM maps a 256 byte boot ROM over 0000-00FF until a write to FF50.
func (b *Bus) SetBootROM(data []byte) error {
	if len(data) != bootROMSize {
		return fault.Load(fault.ErrBootROMSize, "got %d bytes", len(data))
	}
	b.boot = make([]byte, bootROMSize)
	copy(b.boot, data)
	b.bootEnabled = true
	return nil
}

func (b *Bus) BootROMEnabled() bool {
	return b.bootEnabled
}

// TakeStall returns and clears the cycles the CPU must wait for DMA.
func (b *Bus) TakeStall() int {
	s := b.stall
	b.stall = 0
	return s
}

func (b *Bus) Read(address uint16) byte {
	switch b.regionMap[address>>8] {
	case regionROM:
		if b.bootEnabled && address < bootROMSize {
			return b.boot[address]
		}
		return b.cart.ReadROM(address)
	case regionVRAM:
		return b.Video.Read(address)
	case regionExtRAM:
		return b.cart.ReadRAM(address)
	case regionWRAM:
		return b.wram[address-addr.WRAMStart]
	case regionEcho:
		return b.wram[address-addr.EchoStart]
	case regionOAM:
		if address > addr.OAMEnd {
			return 0xFF
		}
		return b.Video.Read(address)
	case regionIO:
		return b.readIO(address)
	default:
		fault.Violation("bus", "read of 0x%04X resolved to no region", address)
		return 0xFF
	}
}

func (b *Bus) Write(address uint16, value byte) {
	switch b.regionMap[address>>8] {
	case regionROM:
		b.cart.WriteROM(address, value)
	case regionVRAM:
		b.Video.Write(address, value)
	case regionExtRAM:
		b.cart.WriteRAM(address, value)
	case regionWRAM:
		b.wram[address-addr.WRAMStart] = value
	case regionEcho:
		b.wram[address-addr.EchoStart] = value
	case regionOAM:
		if address <= addr.OAMEnd {
			b.Video.Write(address, value)
		}
	case regionIO:
		b.writeIO(address, value)
	default:
		fault.Violation("bus", "write of 0x%04X resolved to no region", address)
	}
}

func (b *Bus) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return b.Joypad.Read()
	case address == addr.SB || address == addr.SC:
		return b.Serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return b.Timer.Read(address)
	case address == addr.IF || address == addr.IE:
		return b.Interrupts.Read(address)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return b.audio[address-addr.AudioStart]
	case address == addr.DMA:
		return b.dma
	case address >= addr.LCDC && address <= addr.WX:
		return b.Video.Read(address)
	case address >= addr.HRAMStart:
		return b.hram[address-addr.HRAMStart]
	default:
		return 0xFF
	}
}

func (b *Bus) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		b.Joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		b.Serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		b.Timer.Write(address, value)
	case address == addr.IF || address == addr.IE:
		b.Interrupts.Write(address, value)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		b.audio[address-addr.AudioStart] = value
	case address == addr.DMA:
		b.startDMA(value)
	case address >= addr.LCDC && address <= addr.WX:
		b.Video.Write(address, value)
	case address == addr.BootROMDisable:
		if value != 0 && b.bootEnabled {
			b.bootEnabled = false
			slog.Info("Boot ROM unmapped")
		}
	case address >= addr.HRAMStart:
		b.hram[address-addr.HRAMStart] = value
	default:
		slog.Debug("Ignoring write to unmapped I/O", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
	}
}

// startDMA copies 160 bytes from XX00 into OAM at once and charges the CPU
// for the whole transfer.
func (b *Bus) startDMA(value byte) {
	b.dma = value
	source := uint16(value) << 8
	for i := uint16(0); i < oamSize; i++ {
		b.Video.WriteOAM(int(i), b.dmaRead(source+i))
	}
	b.stall += dmaStallCycles
}

// dmaRead reads a DMA source byte. Sources above DFFF hit the WRAM mirror.
func (b *Bus) dmaRead(address uint16) byte {
	switch {
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		return b.Video.PeekVRAM(address)
	case address >= addr.EchoStart:
		return b.wram[(address-addr.EchoStart)&0x1FFF]
	default:
		return b.Read(address)
	}
}

type busState struct {
	WRAM        []byte
	HRAM        []byte
	Audio       []byte
	BootEnabled bool
	DMA         byte
	Stall       int
}

func (b *Bus) SaveState() []byte {
	return state.Encode("bus", busState{
		WRAM:        b.wram[:],
		HRAM:        b.hram[:],
		Audio:       b.audio[:],
		BootEnabled: b.bootEnabled,
		DMA:         b.dma,
		Stall:       b.stall,
	})
}

func (b *Bus) LoadState(data []byte) error {
	var s busState
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	if len(s.WRAM) != len(b.wram) || len(s.HRAM) != len(b.hram) || len(s.Audio) != len(b.audio) {
		return fmt.Errorf("bus state has mismatched memory sizes")
	}
	copy(b.wram[:], s.WRAM)
	copy(b.hram[:], s.HRAM)
	copy(b.audio[:], s.Audio)
	b.bootEnabled = s.BootEnabled && b.boot != nil
	b.dma, b.stall = s.DMA, s.Stall
	return nil
}
