package video

import (
	"fmt"
	"log/slog"

	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/bit"
	"github.com/valerio/dotmatrix/dmg/interrupt"
	"github.com/valerio/dotmatrix/dmg/state"
)

// Mode is the PPU mode as reported in the low two bits of STAT.
type Mode uint8

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMScan
	ModeTransfer
)

func (m Mode) String() string {
	switch m {
	case ModeHBlank:
		return "HBlank"
	case ModeVBlank:
		return "VBlank"
	case ModeOAMScan:
		return "OAM scan"
	case ModeTransfer:
		return "Transfer"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

const (
	oamScanDots      = 80
	baseTransferDots = 172
	dotsPerLine      = 456
	visibleLines     = 144
	linesPerFrame    = 154

	windowPenalty = 6
	spritePenalty = 6

	// CyclesPerFrame is the length of one full frame in clock cycles.
	CyclesPerFrame = dotsPerLine * linesPerFrame

	vramSize = 0x2000
)

// Bit 7 - LCD Display Enable (0=Off, 1=On)
// Bit 6 - Window Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 5 - Window Display Enable (0=Off, 1=On)
// Bit 4 - BG & Window Tile Data Select (0=8800-97FF, 1=8000-8FFF)
// Bit 3 - BG Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 2 - OBJ (Sprite) Size (0=8x8, 1=8x16)
// Bit 1 - OBJ (Sprite) Display Enable (0=Off, 1=On)
// Bit 0 - BG Display (0=Off, 1=On)

type lcdcFlag uint8

const (
	lcdDisplayEnable       lcdcFlag = 7
	windowTileMapSelect    lcdcFlag = 6
	windowDisplayEnable    lcdcFlag = 5
	bgWindowTileDataSelect lcdcFlag = 4
	bgTileMapDisplaySelect lcdcFlag = 3
	spriteSize             lcdcFlag = 2
	spriteDisplayEnable    lcdcFlag = 1
	bgDisplay              lcdcFlag = 0
)

// STAT bits 3-6 enable the interrupt sources; bit 2 is the coincidence flag.
const (
	statHBlankIRQ  = 3
	statVBlankIRQ  = 4
	statOAMIRQ     = 5
	statLYCIRQ     = 6
	statCoincident = 2

	statWritable   = 0x78
	statUnusedBits = 0x80
)

// GPU is the pixel processing unit. It owns VRAM, OAM and the LCD registers
// and advances one dot per clock cycle.
//
// CPU access policy: VRAM is blocked during pixel transfer (mode 3) and OAM
// during OAM scan and pixel transfer (modes 2 and 3). Blocked reads return
// 0xFF and blocked writes are dropped. With the LCD off everything is
// accessible. DMA uses PeekVRAM and WriteOAM, which skip the policy.
type GPU struct {
	irq interrupt.Requester

	vram [vramSize]byte
	oam  OAM

	lcdc byte
	stat byte // only the writable interrupt enable bits
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	mode          Mode
	dot           int
	transferDots  int
	statLine      bool
	windowLine    int
	windowStarted bool

	priority SpritePriorityBuffer
	bgIndex  [FramebufferWidth]uint8

	back       *FrameBuffer
	front      *FrameBuffer
	frameReady bool
}

func NewGpu(irq interrupt.Requester) *GPU {
	g := &GPU{
		irq:   irq,
		back:  NewFrameBuffer(),
		front: NewFrameBuffer(),
		mode:  ModeHBlank,
	}
	return g
}

// Tick advances the PPU by the given number of dots. Nothing moves while the
// LCD is off.
func (g *GPU) Tick(cycles int) {
	if !g.lcdEnabled() {
		return
	}
	for range cycles {
		g.step()
	}
}

func (g *GPU) step() {
	g.dot++

	switch g.mode {
	case ModeOAMScan:
		if g.dot == oamScanDots {
			if g.ly == g.wy {
				g.windowStarted = true
			}
			g.transferDots = g.transferLength()
			g.setMode(ModeTransfer)
		}
	case ModeTransfer:
		if g.dot == oamScanDots+g.transferDots {
			g.renderScanline()
			g.setMode(ModeHBlank)
		}
	case ModeHBlank:
		if g.dot == dotsPerLine {
			g.dot = 0
			g.ly++
			if int(g.ly) == visibleLines {
				g.enterVBlank()
			} else {
				g.setMode(ModeOAMScan)
			}
		}
	case ModeVBlank:
		if g.dot == dotsPerLine {
			g.dot = 0
			g.ly++
			if int(g.ly) == linesPerFrame {
				g.ly = 0
				g.windowLine = 0
				g.windowStarted = false
				g.setMode(ModeOAMScan)
			}
		}
	}

	g.updateStatLine()
}

func (g *GPU) enterVBlank() {
	g.setMode(ModeVBlank)
	g.irq.Request(addr.VBlankInterrupt)
	g.front.CopyFrom(g.back)
	g.frameReady = true
}

func (g *GPU) setMode(mode Mode) {
	g.mode = mode
}

// transferLength is the mode 3 length for the current line: the base span,
// the fine scroll discard, and the window and sprite fetch penalties.
func (g *GPU) transferLength() int {
	length := baseTransferDots + int(g.scx%8)
	if g.windowVisibleOnLine() {
		length += windowPenalty
	}
	if g.lcdcFlag(spriteDisplayEnable) {
		length += spritePenalty * len(g.oam.SpritesForScanline(int(g.ly), g.spriteHeight()))
	}
	return length
}

// updateStatLine raises the STAT interrupt on a rising edge of the OR of all
// enabled sources.
func (g *GPU) updateStatLine() {
	line := g.lcdEnabled() &&
		((g.ly == g.lyc && bit.IsSet(statLYCIRQ, g.stat)) ||
			(g.mode == ModeHBlank && bit.IsSet(statHBlankIRQ, g.stat)) ||
			(g.mode == ModeVBlank && bit.IsSet(statVBlankIRQ, g.stat)) ||
			(g.mode == ModeOAMScan && bit.IsSet(statOAMIRQ, g.stat)))

	if line && !g.statLine {
		g.irq.Request(addr.LCDSTATInterrupt)
	}
	g.statLine = line
}

func (g *GPU) lcdEnabled() bool {
	return g.lcdcFlag(lcdDisplayEnable)
}

func (g *GPU) lcdcFlag(flag lcdcFlag) bool {
	return bit.IsSet(uint8(flag), g.lcdc)
}

func (g *GPU) spriteHeight() int {
	if g.lcdcFlag(spriteSize) {
		return 16
	}
	return 8
}

func (g *GPU) vramAccessible() bool {
	return !g.lcdEnabled() || g.mode != ModeTransfer
}

func (g *GPU) oamAccessible() bool {
	return !g.lcdEnabled() || (g.mode != ModeOAMScan && g.mode != ModeTransfer)
}

// FrameReady reports whether a frame completed since the last call.
func (g *GPU) FrameReady() bool {
	ready := g.frameReady
	g.frameReady = false
	return ready
}

// Framebuffer returns the last completed frame. The buffer is only written at
// vblank entry.
func (g *GPU) Framebuffer() *FrameBuffer {
	return g.front
}

func (g *GPU) Mode() Mode {
	if !g.lcdEnabled() {
		return ModeHBlank
	}
	return g.mode
}

func (g *GPU) LY() uint8 {
	return g.ly
}

// Dot returns the position within the current line.
func (g *GPU) Dot() int {
	return g.dot
}

func (g *GPU) Read(address uint16) byte {
	switch {
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		if !g.vramAccessible() {
			return 0xFF
		}
		return g.vram[address-addr.VRAMStart]
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		if !g.oamAccessible() {
			return 0xFF
		}
		return g.oam.Read(int(address - addr.OAMStart))
	}

	switch address {
	case addr.LCDC:
		return g.lcdc
	case addr.STAT:
		return g.readSTAT()
	case addr.SCY:
		return g.scy
	case addr.SCX:
		return g.scx
	case addr.LY:
		return g.ly
	case addr.LYC:
		return g.lyc
	case addr.BGP:
		return g.bgp
	case addr.OBP0:
		return g.obp0
	case addr.OBP1:
		return g.obp1
	case addr.WY:
		return g.wy
	case addr.WX:
		return g.wx
	}
	return 0xFF
}

func (g *GPU) readSTAT() byte {
	value := statUnusedBits | g.stat | uint8(g.Mode())
	if g.ly == g.lyc {
		value = bit.Set(statCoincident, value)
	}
	return value
}

func (g *GPU) Write(address uint16, value byte) {
	switch {
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		if g.vramAccessible() {
			g.vram[address-addr.VRAMStart] = value
		}
		return
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		if g.oamAccessible() {
			g.oam.Write(int(address-addr.OAMStart), value)
		}
		return
	}

	switch address {
	case addr.LCDC:
		g.writeLCDC(value)
	case addr.STAT:
		g.stat = value & statWritable
	case addr.SCY:
		g.scy = value
	case addr.SCX:
		g.scx = value
	case addr.LY:
		slog.Debug("Ignored write to read-only register", "register", "LY", "value", fmt.Sprintf("0x%02X", value))
	case addr.LYC:
		g.lyc = value
	case addr.BGP:
		g.bgp = value
	case addr.OBP0:
		g.obp0 = value
	case addr.OBP1:
		g.obp1 = value
	case addr.WY:
		g.wy = value
	case addr.WX:
		g.wx = value
	}
	g.updateStatLine()
}

// writeLCDC handles the LCD power transitions. Turning the LCD off resets
// the line state and blanks the screen; turning it on restarts at line 0.
func (g *GPU) writeLCDC(value byte) {
	wasOn := g.lcdEnabled()
	g.lcdc = value
	isOn := g.lcdEnabled()

	switch {
	case wasOn && !isOn:
		g.ly = 0
		g.dot = 0
		g.mode = ModeHBlank
		g.windowLine = 0
		g.windowStarted = false
		g.back.Clear()
		g.front.Clear()
	case !wasOn && isOn:
		g.ly = 0
		g.dot = 0
		g.windowLine = 0
		g.windowStarted = false
		g.mode = ModeOAMScan
	}
}

// PeekVRAM reads VRAM regardless of mode.
func (g *GPU) PeekVRAM(address uint16) byte {
	return g.vram[address-addr.VRAMStart]
}

// WriteOAM writes OAM regardless of mode.
func (g *GPU) WriteOAM(index int, value byte) {
	g.oam.Write(index, value)
}

type gpuState struct {
	VRAM  []byte
	OAM   []byte
	Regs  [11]byte
	Mode  Mode
	Dot   int
	Trans int

	StatLine      bool
	WindowLine    int
	WindowStarted bool

	Back       []Shade
	Front      []Shade
	FrameReady bool
}

func (g *GPU) SaveState() []byte {
	s := gpuState{
		VRAM:          g.vram[:],
		OAM:           g.oam.data[:],
		Regs:          [11]byte{g.lcdc, g.stat, g.scy, g.scx, g.ly, g.lyc, g.bgp, g.obp0, g.obp1, g.wy, g.wx},
		Mode:          g.mode,
		Dot:           g.dot,
		Trans:         g.transferDots,
		StatLine:      g.statLine,
		WindowLine:    g.windowLine,
		WindowStarted: g.windowStarted,
		Back:          g.back.buffer,
		Front:         g.front.buffer,
		FrameReady:    g.frameReady,
	}
	return state.Encode("video", s)
}

func (g *GPU) LoadState(data []byte) error {
	var s gpuState
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	if len(s.VRAM) != vramSize || len(s.OAM) != oamSize ||
		len(s.Back) != len(g.back.buffer) || len(s.Front) != len(g.front.buffer) {
		return fmt.Errorf("video state: unexpected buffer sizes")
	}

	copy(g.vram[:], s.VRAM)
	copy(g.oam.data[:], s.OAM)
	r := s.Regs
	g.lcdc, g.stat, g.scy, g.scx, g.ly, g.lyc = r[0], r[1]&statWritable, r[2], r[3], r[4], r[5]
	g.bgp, g.obp0, g.obp1, g.wy, g.wx = r[6], r[7], r[8], r[9], r[10]
	g.mode, g.dot, g.transferDots = s.Mode, s.Dot, s.Trans
	g.statLine, g.windowLine, g.windowStarted = s.StatLine, s.WindowLine, s.WindowStarted
	copy(g.back.buffer, s.Back)
	copy(g.front.buffer, s.Front)
	g.frameReady = s.FrameReady
	return nil
}
