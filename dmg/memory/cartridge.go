package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/dotmatrix/dmg/bit"
	"github.com/valerio/dotmatrix/dmg/fault"
	"github.com/valerio/dotmatrix/dmg/state"
)

const (
	titleAddress          = 0x134
	titleLength           = 16
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D
	globalChecksumAddress = 0x14E
	headerEnd             = 0x150

	romBankSize = 0x4000
	ramBankSize = 0x2000
	mbc2RAMSize = 512
)

// ramSizes maps the RAM size code at 0x149 to a size in bytes.
var ramSizes = map[uint8]int{
	0x00: 0,
	0x01: 2 * 1024,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// MBCKind identifies the banking controller family.
type MBCKind uint8

const (
	NoMBCKind MBCKind = iota
	MBC1Kind
	MBC2Kind
	MBC3Kind
	MBC5Kind
)

func (k MBCKind) String() string {
	switch k {
	case NoMBCKind:
		return "ROM"
	case MBC1Kind:
		return "MBC1"
	case MBC2Kind:
		return "MBC2"
	case MBC3Kind:
		return "MBC3"
	case MBC5Kind:
		return "MBC5"
	default:
		return "unknown"
	}
}

type cartridgeType struct {
	kind    MBCKind
	ram     bool
	battery bool
	rtc     bool
	rumble  bool
}

var cartridgeTypes = map[uint8]cartridgeType{
	0x00: {kind: NoMBCKind},
	0x08: {kind: NoMBCKind, ram: true},
	0x09: {kind: NoMBCKind, ram: true, battery: true},
	0x01: {kind: MBC1Kind},
	0x02: {kind: MBC1Kind, ram: true},
	0x03: {kind: MBC1Kind, ram: true, battery: true},
	0x05: {kind: MBC2Kind},
	0x06: {kind: MBC2Kind, battery: true},
	0x0F: {kind: MBC3Kind, battery: true, rtc: true},
	0x10: {kind: MBC3Kind, ram: true, battery: true, rtc: true},
	0x11: {kind: MBC3Kind},
	0x12: {kind: MBC3Kind, ram: true},
	0x13: {kind: MBC3Kind, ram: true, battery: true},
	0x19: {kind: MBC5Kind},
	0x1A: {kind: MBC5Kind, ram: true},
	0x1B: {kind: MBC5Kind, ram: true, battery: true},
	0x1C: {kind: MBC5Kind, rumble: true},
	0x1D: {kind: MBC5Kind, ram: true, rumble: true},
	0x1E: {kind: MBC5Kind, ram: true, battery: true, rumble: true},
}

// Header is the metadata parsed from 0x134-0x14F.
type Header struct {
	Title          string
	Type           uint8
	Kind           MBCKind
	ROMBanks       int
	RAMSize        int
	Version        uint8
	HeaderChecksum uint8
	GlobalChecksum uint16
	Battery        bool
	RTC            bool
	Rumble         bool
}

// ParseHeader decodes and validates the cartridge header of a program image.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerEnd {
		return Header{}, fault.Load(fault.ErrTruncatedHeader, "%d bytes", len(data))
	}

	typeByte := data[cartridgeTypeAddress]
	ct, ok := cartridgeTypes[typeByte]
	if !ok {
		return Header{}, fault.Load(fault.ErrUnsupportedCartridge, "type 0x%02X", typeByte)
	}

	romCode := data[romSizeAddress]
	if romCode > 8 {
		return Header{}, fault.Load(fault.ErrBadSizeCode, "ROM size code 0x%02X", romCode)
	}

	ramCode := data[ramSizeAddress]
	ramSize, ok := ramSizes[ramCode]
	if !ok {
		return Header{}, fault.Load(fault.ErrBadSizeCode, "RAM size code 0x%02X", ramCode)
	}

	switch {
	case ct.kind == MBC2Kind:
		ramSize = mbc2RAMSize
	case !ct.ram:
		ramSize = 0
	}

	return Header{
		Title:          cleanTitle(data[titleAddress : titleAddress+titleLength]),
		Type:           typeByte,
		Kind:           ct.kind,
		ROMBanks:       2 << romCode,
		RAMSize:        ramSize,
		Version:        data[versionNumberAddress],
		HeaderChecksum: data[headerChecksumAddress],
		GlobalChecksum: bit.Combine(data[globalChecksumAddress], data[globalChecksumAddress+1]),
		Battery:        ct.battery,
		RTC:            ct.rtc,
		Rumble:         ct.rumble,
	}, nil
}

// CartridgeOption configures cartridge creation.
type CartridgeOption func(*cartridgeConfig)

type cartridgeConfig struct {
	skipChecksum bool
	clock        Clock
}

// SkipHeaderChecksum accepts images whose header checksum does not match,
// as homebrew and test images often have.
func SkipHeaderChecksum() CartridgeOption {
	return func(c *cartridgeConfig) {
		c.skipChecksum = true
	}
}

// WithClock sets the time source of the MBC3 real time clock.
func WithClock(clock Clock) CartridgeOption {
	return func(c *cartridgeConfig) {
		c.clock = clock
	}
}

// Cartridge is a loaded program image together with its banking controller
// and external RAM. The ROM bytes never change after loading.
type Cartridge struct {
	header Header
	rom    []byte
	ram    []byte
	mbc    MBC
}

// NewCartridge validates the image and sets up the controller its header
// declares. All failures are *fault.LoadError.
func NewCartridge(data []byte, opts ...CartridgeOption) (*Cartridge, error) {
	var cfg cartridgeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	romSize := header.ROMBanks * romBankSize
	if len(data) < romSize {
		return nil, fault.Load(fault.ErrImageSize, "header declares %d bytes, image has %d", romSize, len(data))
	}

	if !cfg.skipChecksum {
		if sum := headerChecksum(data); sum != header.HeaderChecksum {
			return nil, fault.Load(fault.ErrHeaderChecksum, "computed 0x%02X, header has 0x%02X", sum, header.HeaderChecksum)
		}
	}

	cart := &Cartridge{
		header: header,
		rom:    make([]byte, romSize),
		ram:    make([]byte, header.RAMSize),
	}
	copy(cart.rom, data)

	geometry := banks{romMask: header.ROMBanks - 1, ramSize: header.RAMSize}
	switch header.Kind {
	case NoMBCKind:
		cart.mbc = NewNoMBC(geometry)
	case MBC1Kind:
		cart.mbc = NewMBC1(geometry)
	case MBC2Kind:
		cart.mbc = NewMBC2(geometry)
	case MBC3Kind:
		cart.mbc = NewMBC3(geometry, header.RTC, cfg.clock)
	case MBC5Kind:
		cart.mbc = NewMBC5(geometry, header.Rumble)
	default:
		fault.Violation("cartridge", "no controller for kind %d", header.Kind)
	}

	slog.Info("Cartridge loaded",
		"title", header.Title,
		"type", fmt.Sprintf("0x%02X", header.Type),
		"mbc", header.Kind.String(),
		"rom_banks", header.ROMBanks,
		"ram_bytes", header.RAMSize,
		"battery", header.Battery)

	return cart, nil
}

func (c *Cartridge) Header() Header {
	return c.header
}

func (c *Cartridge) Title() string {
	return c.header.Title
}

// ReadROM serves CPU reads of 0000-7FFF.
func (c *Cartridge) ReadROM(address uint16) byte {
	return c.rom[c.mbc.MapROM(address)]
}

// WriteROM forwards writes of 0000-7FFF to the controller registers.
func (c *Cartridge) WriteROM(address uint16, value byte) {
	c.mbc.Write(address, value)
}

// ReadRAM serves CPU reads of A000-BFFF. Disabled or absent RAM reads 0xFF.
func (c *Cartridge) ReadRAM(address uint16) byte {
	if clock, ok := c.mbc.(*MBC3); ok {
		if value, selected := clock.readRTC(); selected {
			return value
		}
	}

	offset, ok := c.mbc.MapRAM(address)
	if !ok {
		return 0xFF
	}
	c.checkRAMOffset(offset)

	value := c.ram[offset]
	if c.header.Kind == MBC2Kind {
		// only the low nibble exists
		value |= 0xF0
	}
	return value
}

// WriteRAM serves CPU writes of A000-BFFF.
func (c *Cartridge) WriteRAM(address uint16, value byte) {
	if clock, ok := c.mbc.(*MBC3); ok && clock.writeRTC(value) {
		return
	}

	offset, ok := c.mbc.MapRAM(address)
	if !ok {
		return
	}
	c.checkRAMOffset(offset)

	if c.header.Kind == MBC2Kind {
		value &= 0x0F
	}
	c.ram[offset] = value
}

func (c *Cartridge) checkRAMOffset(offset int) {
	if offset < 0 || offset >= len(c.ram) {
		fault.Violation("cartridge", "RAM offset %d outside %d bytes", offset, len(c.ram))
	}
}

// HasBattery reports whether the RAM is meant to survive power off.
func (c *Cartridge) HasBattery() bool {
	return c.header.Battery && len(c.ram) > 0
}

// RAM returns a copy of the external RAM.
func (c *Cartridge) RAM() []byte {
	out := make([]byte, len(c.ram))
	copy(out, c.ram)
	return out
}

// LoadRAM replaces the external RAM, e.g. from a battery save file.
func (c *Cartridge) LoadRAM(data []byte) error {
	if len(data) != len(c.ram) {
		return fmt.Errorf("cartridge RAM is %d bytes, got %d", len(c.ram), len(data))
	}
	copy(c.ram, data)
	return nil
}

type cartridgeState struct {
	RAM []byte
	MBC []byte
}

// SaveState captures the mutable part of the cartridge: RAM and banking.
func (c *Cartridge) SaveState() []byte {
	return state.Encode("cartridge", cartridgeState{RAM: c.ram, MBC: c.mbc.SaveState()})
}

func (c *Cartridge) LoadState(data []byte) error {
	var s cartridgeState
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	if err := c.LoadRAM(s.RAM); err != nil {
		return err
	}
	return c.mbc.LoadState(s.MBC)
}

// Rumbling reports whether an MBC5 rumble motor is currently on.
func (c *Cartridge) Rumbling() bool {
	m, ok := c.mbc.(*MBC5)
	return ok && m.Rumbling()
}
