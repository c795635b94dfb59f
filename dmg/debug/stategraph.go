package debug

import (
	"fmt"
	"io"

	"github.com/bradleyjkemp/memviz"
	"github.com/valerio/dotmatrix/dmg"
	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/cpu"
	"github.com/valerio/dotmatrix/dmg/memory"
)

// MachineView is a point-in-time summary of a session, shaped for graphing.
// The memories are left out, they would drown the graph.
type MachineView struct {
	Cartridge  *memory.Header
	CPU        *CPUView
	PPU        *PPUView
	Timer      *TimerView
	Interrupts *InterruptView
	Joypad     *JoypadView
}

type CPUView struct {
	Registers   cpu.Registers
	Halted      bool
	Cycles      uint64
	Instruction string
	Err         string
}

type PPUView struct {
	Mode                     string
	LY, LYC                  uint8
	LCDC, STAT               uint8
	SCX, SCY, WX, WY         uint8
	BGP, OBP0, OBP1          uint8
	FrameBufferWidth, Height int
}

type TimerView struct {
	DIV, TIMA, TMA, TAC uint8
}

type InterruptView struct {
	IE, IF uint8
}

type JoypadView struct {
	P1      uint8
	Pressed string
}

// Inspect collects a MachineView from the session.
func Inspect(s *dmg.Session) *MachineView {
	header := s.Header()
	mode, ly := s.PPUMode()
	fb := s.Framebuffer()

	view := &MachineView{
		Cartridge: &header,
		CPU: &CPUView{
			Registers:   s.Registers(),
			Halted:      s.Halted(),
			Cycles:      s.Cycles(),
			Instruction: s.Disassemble(),
		},
		PPU: &PPUView{
			Mode:             mode.String(),
			LY:               ly,
			LYC:              s.Read(addr.LYC),
			LCDC:             s.Read(addr.LCDC),
			STAT:             s.Read(addr.STAT),
			SCX:              s.Read(addr.SCX),
			SCY:              s.Read(addr.SCY),
			WX:               s.Read(addr.WX),
			WY:               s.Read(addr.WY),
			BGP:              s.Read(addr.BGP),
			OBP0:             s.Read(addr.OBP0),
			OBP1:             s.Read(addr.OBP1),
			FrameBufferWidth: fb.Width(),
			Height:           fb.Height(),
		},
		Timer: &TimerView{
			DIV:  s.Read(addr.DIV),
			TIMA: s.Read(addr.TIMA),
			TMA:  s.Read(addr.TMA),
			TAC:  s.Read(addr.TAC),
		},
		Interrupts: &InterruptView{
			IE: s.Read(addr.IE),
			IF: s.Read(addr.IF),
		},
		Joypad: &JoypadView{
			P1:      s.Read(addr.P1),
			Pressed: s.Input().String(),
		},
	}
	if err := s.Err(); err != nil {
		view.CPU.Err = err.Error()
	}
	return view
}

// WriteStateGraph writes a Graphviz description of the session state to w.
func WriteStateGraph(w io.Writer, s *dmg.Session) error {
	view := Inspect(s)
	cw := &countingWriter{w: w}
	memviz.Map(cw, view)
	if cw.err != nil {
		return fmt.Errorf("writing state graph: %w", cw.err)
	}
	return nil
}

// countingWriter remembers the first write error, memviz drops them.
type countingWriter struct {
	w   io.Writer
	n   int
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += n
	c.err = err
	return n, err
}
