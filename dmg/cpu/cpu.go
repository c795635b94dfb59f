package cpu

import (
	"fmt"
	"log/slog"

	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/bit"
	"github.com/valerio/dotmatrix/dmg/fault"
	"github.com/valerio/dotmatrix/dmg/interrupt"
	"github.com/valerio/dotmatrix/dmg/state"
)

// dispatchCycles is the cost of jumping to an interrupt handler.
const dispatchCycles = 20

// Bus is the CPU's view of memory. TakeStall reports (and clears) cycles the
// bus kept the CPU waiting, such as during an OAM DMA transfer.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	TakeStall() int
}

// CPU is the Sharp LR35902. It executes one whole instruction per Step and
// reports the cycles it took.
type CPU struct {
	regs Registers
	bus  Bus
	irq  *interrupt.Controller

	halted  bool
	haltBug bool
	stopped bool
	locked  bool
	// eiDelay counts the instruction boundaries left before EI takes effect.
	eiDelay uint8

	// address and opcode of the instruction being executed
	instrPC uint16
	opcode  uint16

	cycles uint64
	err    *fault.UnsupportedOpError
}

// New creates a CPU with the register values the boot ROM leaves behind.
func New(bus Bus, irq *interrupt.Controller) *CPU {
	c := &CPU{bus: bus, irq: irq}
	c.regs = Registers{
		A: 0x01, F: 0xB0,
		B: 0x00, C: 0x13,
		D: 0x00, E: 0xD8,
		H: 0x01, L: 0x4D,
		SP: 0xFFFE,
		PC: 0x0100,
	}
	return c
}

// ResetForBootROM zeroes the registers so execution starts at the boot ROM.
func (c *CPU) ResetForBootROM() {
	c.regs = Registers{}
}

// Step executes a single instruction and returns the cycles it took. A
// halted, stopped or locked CPU idles for 4 cycles.
func (c *CPU) Step() int {
	if c.locked {
		return c.idle()
	}

	if c.stopped {
		if c.irq.Requested()&uint8(addr.JoypadInterrupt) == 0 {
			return c.idle()
		}
		c.stopped = false
	}

	if c.halted {
		return c.idle()
	}

	c.instrPC = c.regs.PC
	opcode := c.fetchOpcode()
	c.opcode = uint16(opcode)

	in := &opcodes[opcode]
	cycles := in.cycles + in.exec(c)
	cycles += c.bus.TakeStall()

	if c.eiDelay > 0 {
		c.eiDelay--
		if c.eiDelay == 0 {
			c.irq.SetMasterEnable(true)
		}
	}

	c.cycles += uint64(cycles)
	return cycles
}

func (c *CPU) idle() int {
	c.cycles += 4
	return 4
}

// ServiceInterrupts checks for pending interrupts at an instruction boundary.
// Any pending interrupt wakes a halted CPU; when IME is set, the highest
// priority one is acknowledged and dispatched. It returns the cycles spent.
func (c *CPU) ServiceInterrupts() int {
	if c.locked || c.irq.Pending() == 0 {
		return 0
	}

	c.halted = false
	if !c.irq.MasterEnabled() {
		return 0
	}

	i, _ := c.irq.Next()
	c.irq.SetMasterEnable(false)
	c.irq.Acknowledge(i)
	c.push(c.regs.PC)
	c.regs.PC = interrupt.Vector(i)

	c.cycles += dispatchCycles
	return dispatchCycles
}

// fetchOpcode reads the byte at PC. Right after the halt bug triggers, PC
// fails to advance once and the same byte is executed twice.
func (c *CPU) fetchOpcode() uint8 {
	opcode := c.bus.Read(c.regs.PC)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.regs.PC++
	}
	return opcode
}

func (c *CPU) fetch8() uint8 {
	v := c.bus.Read(c.regs.PC)
	c.regs.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	low := c.fetch8()
	high := c.fetch8()
	return bit.Combine(high, low)
}

func (c *CPU) push(value uint16) {
	c.regs.SP--
	c.bus.Write(c.regs.SP, bit.High(value))
	c.regs.SP--
	c.bus.Write(c.regs.SP, bit.Low(value))
}

func (c *CPU) pop() uint16 {
	low := c.bus.Read(c.regs.SP)
	c.regs.SP++
	high := c.bus.Read(c.regs.SP)
	c.regs.SP++
	return bit.Combine(high, low)
}

func (c *CPU) call(target uint16) {
	c.push(c.regs.PC)
	c.regs.PC = target
}

func (c *CPU) jumpRelative(offset uint8) {
	c.regs.PC = uint16(int32(c.regs.PC) + int32(int8(offset)))
}

func halt(c *CPU) {
	if !c.irq.MasterEnabled() && c.irq.Pending() != 0 {
		c.haltBug = true
		return
	}
	c.halted = true
}

func stop(c *CPU) {
	c.fetch8()
	c.bus.Write(addr.DIV, 0)
	c.stopped = true
}

func di(c *CPU) {
	c.irq.SetMasterEnable(false)
	c.eiDelay = 0
}

func ei(c *CPU) {
	if c.eiDelay == 0 && !c.irq.MasterEnabled() {
		c.eiDelay = 2
	}
}

func lock(c *CPU) {
	c.locked = true
	c.err = &fault.UnsupportedOpError{Kind: "opcode", Address: c.instrPC, Opcode: c.opcode}
	slog.Error("CPU locked up", "opcode", fmt.Sprintf("0x%02X", c.opcode), "pc", fmt.Sprintf("0x%04X", c.instrPC))
}

// Err returns the fault that stopped the CPU, if any.
func (c *CPU) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

func (c *CPU) Registers() Registers {
	return c.regs
}

func (c *CPU) PC() uint16 {
	return c.regs.PC
}

func (c *CPU) Halted() bool {
	return c.halted
}

func (c *CPU) Stopped() bool {
	return c.stopped
}

func (c *CPU) Locked() bool {
	return c.locked
}

// Cycles returns the total cycles executed since creation.
func (c *CPU) Cycles() uint64 {
	return c.cycles
}

// String returns a one-line register dump, used in debug logging.
func (c *CPU) String() string {
	r := c.regs
	return fmt.Sprintf("PC:%04X SP:%04X A:%02X F:%s B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X",
		r.PC, r.SP, r.A, r.FlagString(), r.B, r.C, r.D, r.E, r.H, r.L)
}

type cpuState struct {
	Regs    Registers
	Halted  bool
	HaltBug bool
	Stopped bool
	Locked  bool
	EIDelay uint8
	InstrPC uint16
	Opcode  uint16
	Cycles  uint64
}

func (c *CPU) SaveState() []byte {
	return state.Encode("cpu", cpuState{
		Regs:    c.regs,
		Halted:  c.halted,
		HaltBug: c.haltBug,
		Stopped: c.stopped,
		Locked:  c.locked,
		EIDelay: c.eiDelay,
		InstrPC: c.instrPC,
		Opcode:  c.opcode,
		Cycles:  c.cycles,
	})
}

func (c *CPU) LoadState(data []byte) error {
	var s cpuState
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	c.regs = s.Regs
	c.regs.F &= 0xF0
	c.halted, c.haltBug, c.stopped, c.locked = s.Halted, s.HaltBug, s.Stopped, s.Locked
	c.eiDelay = s.EIDelay
	c.instrPC, c.opcode = s.InstrPC, s.Opcode
	c.cycles = s.Cycles
	c.err = nil
	if c.locked {
		c.err = &fault.UnsupportedOpError{Kind: "opcode", Address: c.instrPC, Opcode: c.opcode}
	}
	return nil
}
