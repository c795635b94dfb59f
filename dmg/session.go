// Package dmg assembles the emulated Game Boy from its components and exposes
// it as a Session: load a program image, step it, read back frames.
package dmg

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/cpu"
	"github.com/valerio/dotmatrix/dmg/interrupt"
	"github.com/valerio/dotmatrix/dmg/memory"
	"github.com/valerio/dotmatrix/dmg/serial"
	"github.com/valerio/dotmatrix/dmg/video"
)

const stateVersion = 1

// ErrStateMismatch is returned by LoadState for a state taken from another
// cartridge or by an incompatible version.
var ErrStateMismatch = errors.New("save state does not match this session")

// Session is one running machine. Sessions share nothing, so any number of
// them can run side by side.
type Session struct {
	cart   *memory.Cartridge
	bus    *memory.Bus
	cpu    *cpu.CPU
	gpu    *video.GPU
	timer  *memory.Timer
	joypad *memory.Joypad
	serial *serial.LogSink
	irq    *interrupt.Controller
}

// postBootIO is what the boot ROM leaves in the IO registers. DIV comes from
// the timer seed, LY from the PPU itself.
var postBootIO = []struct {
	address uint16
	value   byte
}{
	{addr.P1, 0xCF},
	{addr.SB, 0x00},
	{addr.SC, 0x7E},
	{addr.TIMA, 0x00},
	{addr.TMA, 0x00},
	{addr.TAC, 0xF8},
	{addr.IF, 0xE1},
	{0xFF10, 0x80}, {0xFF11, 0xBF}, {0xFF12, 0xF3}, {0xFF13, 0xFF}, {0xFF14, 0xBF},
	{0xFF16, 0x3F}, {0xFF17, 0x00}, {0xFF18, 0xFF}, {0xFF19, 0xBF},
	{0xFF1A, 0x7F}, {0xFF1B, 0xFF}, {0xFF1C, 0x9F}, {0xFF1D, 0xFF}, {0xFF1E, 0xBF},
	{0xFF20, 0xFF}, {0xFF21, 0x00}, {0xFF22, 0x00}, {0xFF23, 0xBF},
	{0xFF24, 0x77}, {0xFF25, 0xF3}, {addr.NR52, 0xF1},
	{addr.LCDC, 0x91},
	{addr.STAT, 0x85},
	{addr.SCY, 0x00},
	{addr.SCX, 0x00},
	{addr.LYC, 0x00},
	{addr.BGP, 0xFC},
	{addr.OBP0, 0xFF},
	{addr.OBP1, 0xFF},
	{addr.WY, 0x00},
	{addr.WX, 0x00},
	{addr.IE, 0x00},
}

// postBootDivider puts DIV at 0xAB, where the boot ROM hands over.
const postBootDivider = 0xABCC

// Load builds a session from a program image. Header problems come back as
// *fault.LoadError.
func Load(rom []byte, opts ...Option) (*Session, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var cartOpts []memory.CartridgeOption
	if cfg.skipChecksum {
		cartOpts = append(cartOpts, memory.SkipHeaderChecksum())
	}
	if cfg.clock != nil {
		cartOpts = append(cartOpts, memory.WithClock(cfg.clock))
	}
	cart, err := memory.NewCartridge(rom, cartOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.cartRAM != nil {
		if err := cart.LoadRAM(cfg.cartRAM); err != nil {
			return nil, fmt.Errorf("restoring cartridge RAM: %w", err)
		}
	}

	s := &Session{cart: cart, irq: interrupt.New()}
	s.gpu = video.NewGpu(s.irq)
	s.timer = memory.NewTimer(s.irq)
	s.joypad = memory.NewJoypad(s.irq)

	var serialOpts []serial.LogSinkOption
	if cfg.serialOut != nil {
		serialOpts = append(serialOpts, serial.WithWriter(cfg.serialOut))
	}
	if cfg.fixedSerial {
		serialOpts = append(serialOpts, serial.WithFixedTiming())
	}
	s.serial = serial.NewLogSink(s.irq, serialOpts...)

	s.bus = memory.NewBus(cart, memory.Devices{
		Video:      s.gpu,
		Timer:      s.timer,
		Joypad:     s.joypad,
		Serial:     s.serial,
		Interrupts: s.irq,
	})
	s.cpu = cpu.New(s.bus, s.irq)

	if cfg.bootROM != nil {
		if err := s.bus.SetBootROM(cfg.bootROM); err != nil {
			return nil, err
		}
		s.cpu.ResetForBootROM()
		slog.Debug("Starting from boot ROM")
		return s, nil
	}

	s.timer.SetSeed(postBootDivider)
	for _, r := range postBootIO {
		s.bus.Write(r.address, r.value)
	}
	return s, nil
}

// LoadFile reads a program image from disk and loads it.
func LoadFile(path string, opts ...Option) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ROM: %w", err)
	}
	slog.Info("Loaded ROM", "path", path, "bytes", len(data))
	return Load(data, opts...)
}

// Step runs one instruction, or one idle slice while halted, and any
// interrupt dispatch that follows it. It returns the cycles that elapsed.
func (s *Session) Step() int {
	cycles := s.cpu.Step()
	s.advance(cycles)

	if dispatch := s.cpu.ServiceInterrupts(); dispatch > 0 {
		s.advance(dispatch)
		cycles += dispatch
	}
	return cycles
}

func (s *Session) advance(cycles int) {
	// STOP halts the divider along with the CPU
	if !s.cpu.Stopped() {
		s.timer.Tick(cycles)
	}
	s.gpu.Tick(cycles)
	s.serial.Tick(cycles)
}

// RunUntilFrame steps until the PPU completes a frame, consuming the frame
// signal, or until one frame's worth of cycles has passed without one, as
// happens with the LCD off. It returns the CPU error if the program locked up.
func (s *Session) RunUntilFrame() error {
	for budget := video.CyclesPerFrame; budget > 0; {
		budget -= s.Step()
		if err := s.cpu.Err(); err != nil {
			return err
		}
		if s.gpu.FrameReady() {
			return nil
		}
	}
	return nil
}

// FrameReady reports, once, that a new frame has been completed since the
// last call.
func (s *Session) FrameReady() bool {
	return s.gpu.FrameReady()
}

// Framebuffer returns the last completed frame. The pointer stays valid for
// the lifetime of the session.
func (s *Session) Framebuffer() *video.FrameBuffer {
	return s.gpu.Framebuffer()
}

// SetInput replaces the set of held buttons.
func (s *Session) SetInput(buttons memory.Button) {
	s.joypad.SetPressed(buttons)
}

// Input returns the set of held buttons.
func (s *Session) Input() memory.Button {
	return s.joypad.Pressed()
}

// Read returns what the CPU would read at address, without side effects.
func (s *Session) Read(address uint16) byte {
	return s.bus.Read(address)
}

func (s *Session) Halted() bool {
	return s.cpu.Halted()
}

// Err returns the reason the CPU stopped executing, if any.
func (s *Session) Err() error {
	return s.cpu.Err()
}

func (s *Session) Title() string {
	return s.cart.Title()
}

func (s *Session) Header() memory.Header {
	return s.cart.Header()
}

// CartridgeRAM returns a copy of battery backed RAM, or nil if the cartridge
// has none worth persisting.
func (s *Session) CartridgeRAM() []byte {
	if !s.cart.HasBattery() {
		return nil
	}
	return s.cart.RAM()
}

func (s *Session) Rumbling() bool {
	return s.cart.Rumbling()
}

// SerialOutput returns every byte the program sent over the serial port.
func (s *Session) SerialOutput() string {
	return s.serial.Output()
}

func (s *Session) Registers() cpu.Registers {
	return s.cpu.Registers()
}

// Cycles returns the clock cycles executed since load.
func (s *Session) Cycles() uint64 {
	return s.cpu.Cycles()
}

// PPUMode reports the current PPU mode and scanline.
func (s *Session) PPUMode() (video.Mode, uint8) {
	return s.gpu.Mode(), s.gpu.LY()
}

// Disassemble returns the instruction at the current PC.
func (s *Session) Disassemble() string {
	text, _ := cpu.Disassemble(s.bus, s.cpu.PC())
	return text
}

func (s *Session) String() string {
	return s.cpu.String()
}

type sessionState struct {
	Version        int
	Title          string
	GlobalChecksum uint16

	CPU, Bus, Cartridge, GPU, Timer, Joypad, Serial, Interrupts []byte
}

// SaveState captures the whole machine. Restoring it into a session of the
// same cartridge continues bit-identically.
func (s *Session) SaveState() ([]byte, error) {
	header := s.cart.Header()
	st := sessionState{
		Version:        stateVersion,
		Title:          header.Title,
		GlobalChecksum: header.GlobalChecksum,
		CPU:            s.cpu.SaveState(),
		Bus:            s.bus.SaveState(),
		Cartridge:      s.cart.SaveState(),
		GPU:            s.gpu.SaveState(),
		Timer:          s.timer.SaveState(),
		Joypad:         s.joypad.SaveState(),
		Serial:         s.serial.SaveState(),
		Interrupts:     s.irq.SaveState(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadState restores a state from SaveState. On failure the session is left
// as it was.
func (s *Session) LoadState(data []byte) error {
	var st sessionState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}

	header := s.cart.Header()
	if st.Version != stateVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrStateMismatch, st.Version, stateVersion)
	}
	if st.Title != header.Title || st.GlobalChecksum != header.GlobalChecksum {
		return fmt.Errorf("%w: taken from %q", ErrStateMismatch, st.Title)
	}

	backup, err := s.SaveState()
	if err != nil {
		return err
	}
	if err := s.restore(st); err != nil {
		var previous sessionState
		if decodeErr := gob.NewDecoder(bytes.NewReader(backup)).Decode(&previous); decodeErr == nil {
			_ = s.restore(previous)
		}
		return err
	}
	return nil
}

func (s *Session) restore(st sessionState) error {
	parts := []struct {
		name string
		data []byte
		load func([]byte) error
	}{
		{"cpu", st.CPU, s.cpu.LoadState},
		{"bus", st.Bus, s.bus.LoadState},
		{"cartridge", st.Cartridge, s.cart.LoadState},
		{"gpu", st.GPU, s.gpu.LoadState},
		{"timer", st.Timer, s.timer.LoadState},
		{"joypad", st.Joypad, s.joypad.LoadState},
		{"serial", st.Serial, s.serial.LoadState},
		{"interrupts", st.Interrupts, s.irq.LoadState},
	}
	for _, p := range parts {
		if err := p.load(p.data); err != nil {
			return fmt.Errorf("restoring %s: %w", p.name, err)
		}
	}
	return nil
}
