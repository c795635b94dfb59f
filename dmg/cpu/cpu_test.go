package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/fault"
	"github.com/valerio/dotmatrix/dmg/interrupt"
)

// flatBus is 64KB of plain RAM.
type flatBus struct {
	mem   [0x10000]byte
	stall int
}

func (b *flatBus) Read(address uint16) byte         { return b.mem[address] }
func (b *flatBus) Write(address uint16, value byte) { b.mem[address] = value }

func (b *flatBus) TakeStall() int {
	s := b.stall
	b.stall = 0
	return s
}

// newTestCPU places program at 0x0100, where the CPU starts.
func newTestCPU(program ...byte) (*CPU, *flatBus, *interrupt.Controller) {
	bus := &flatBus{}
	copy(bus.mem[0x0100:], program)
	irq := interrupt.New()
	return New(bus, irq), bus, irq
}

func TestCPU_postBootRegisters(t *testing.T) {
	c, _, _ := newTestCPU()
	r := c.Registers()

	assert.Equal(t, uint16(0x01B0), r.AF())
	assert.Equal(t, uint16(0x0013), r.BC())
	assert.Equal(t, uint16(0x00D8), r.DE())
	assert.Equal(t, uint16(0x014D), r.HL())
	assert.Equal(t, uint16(0xFFFE), r.SP)
	assert.Equal(t, uint16(0x0100), r.PC)
	assert.Equal(t, "Z-HC", r.FlagString())
}

func TestCPU_stack(t *testing.T) {
	c, bus, _ := newTestCPU()

	c.regs.SP = 0xFFFE
	c.push(0x0102)

	assert.Equal(t, uint16(0xFFFC), c.regs.SP)
	assert.Equal(t, uint8(0x01), bus.mem[0xFFFD])
	assert.Equal(t, uint8(0x02), bus.mem[0xFFFC])
	assert.Equal(t, uint16(0x0102), c.pop())
	assert.Equal(t, uint16(0xFFFE), c.regs.SP)
}

func TestCPU_popAFMasksFlags(t *testing.T) {
	c, bus, _ := newTestCPU(0xF1) // POP AF
	c.regs.SP = 0xC000
	bus.mem[0xC000] = 0xFF
	bus.mem[0xC001] = 0x12

	c.Step()

	assert.Equal(t, uint8(0x12), c.regs.A)
	assert.Equal(t, uint8(0xF0), c.regs.F)
}

func TestCPU_stepCycles(t *testing.T) {
	testCases := []struct {
		desc    string
		program []byte
		setup   func(c *CPU)
		cycles  int
		pc      uint16
	}{
		{desc: "NOP", program: []byte{0x00}, cycles: 4, pc: 0x0101},
		{desc: "LD BC,n16", program: []byte{0x01, 0x34, 0x12}, cycles: 12, pc: 0x0103},
		{desc: "LD (HL),n8", program: []byte{0x36, 0x42}, cycles: 12, pc: 0x0102},
		{desc: "INC (HL)", program: []byte{0x34}, cycles: 12, pc: 0x0101},
		{desc: "JR taken", program: []byte{0x18, 0x05}, cycles: 12, pc: 0x0107},
		{desc: "JR backwards", program: []byte{0x18, 0xFE}, cycles: 12, pc: 0x0100},
		{
			desc: "JR NZ not taken", program: []byte{0x20, 0x05}, cycles: 8, pc: 0x0102,
			setup: func(c *CPU) { c.regs.F = uint8(zeroFlag) },
		},
		{
			desc: "JR NZ taken", program: []byte{0x20, 0x05}, cycles: 12, pc: 0x0107,
			setup: func(c *CPU) { c.regs.F = 0 },
		},
		{
			desc: "JP C taken", program: []byte{0xDA, 0x00, 0x20}, cycles: 16, pc: 0x2000,
			setup: func(c *CPU) { c.regs.F = uint8(carryFlag) },
		},
		{
			desc: "JP C not taken", program: []byte{0xDA, 0x00, 0x20}, cycles: 12, pc: 0x0103,
			setup: func(c *CPU) { c.regs.F = 0 },
		},
		{desc: "CALL n16", program: []byte{0xCD, 0x00, 0x20}, cycles: 24, pc: 0x2000},
		{
			desc: "CALL Z not taken", program: []byte{0xCC, 0x00, 0x20}, cycles: 12, pc: 0x0103,
			setup: func(c *CPU) { c.regs.F = 0 },
		},
		{
			desc: "RET Z taken", program: []byte{0xC8}, cycles: 20, pc: 0x1234,
			setup: func(c *CPU) {
				c.regs.F = uint8(zeroFlag)
				c.push(0x1234)
			},
		},
		{
			desc: "RET NZ not taken", program: []byte{0xC0}, cycles: 8, pc: 0x0101,
			setup: func(c *CPU) { c.regs.F = uint8(zeroFlag) },
		},
		{desc: "RST 38", program: []byte{0xFF}, cycles: 16, pc: 0x0038},
		{desc: "LD (n16),SP", program: []byte{0x08, 0x00, 0xC0}, cycles: 20, pc: 0x0103},
		{desc: "CB RLC B", program: []byte{0xCB, 0x00}, cycles: 8, pc: 0x0102},
		{desc: "CB BIT 0,(HL)", program: []byte{0xCB, 0x46}, cycles: 12, pc: 0x0102},
		{desc: "CB SET 0,(HL)", program: []byte{0xCB, 0xC6}, cycles: 16, pc: 0x0102},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c, _, _ := newTestCPU(tC.program...)
			c.regs.SetHL(0xC100)
			if tC.setup != nil {
				tC.setup(c)
			}

			assert.Equal(t, tC.cycles, c.Step())
			assert.Equal(t, tC.pc, c.regs.PC)
		})
	}
}

func TestCPU_loadsAndArithmetic(t *testing.T) {
	c, bus, _ := newTestCPU(
		0x3E, 0x3C, // LD A,$3C
		0x47,       // LD B,A
		0x80,       // ADD A,B
		0x22,       // LD (HL+),A
		0x2B,       // DEC HL
		0x7E,       // LD A,(HL)
		0xE0, 0x80, // LDH ($FF80),A
	)
	c.regs.SetHL(0xC000)

	for i := 0; i < 7; i++ {
		c.Step()
	}

	assert.Equal(t, uint8(0x78), c.regs.A)
	assert.Equal(t, uint8(0x3C), c.regs.B)
	assert.Equal(t, uint8(0x78), bus.mem[0xC000])
	assert.Equal(t, uint16(0xC000), c.regs.HL())
	assert.Equal(t, uint8(0x78), bus.mem[0xFF80])
	assert.Equal(t, uint8(halfCarryFlag), c.regs.F, "0xC+0xC carries out of the low nibble")
}

func TestCPU_accumulatorRotateClearsZero(t *testing.T) {
	c, _, _ := newTestCPU(0x07) // RLCA
	c.regs.A = 0x00
	c.regs.F = uint8(zeroFlag)

	c.Step()

	assert.Equal(t, uint8(0), c.regs.A)
	assert.Equal(t, uint8(0), c.regs.F)
}

func TestCPU_cbRotateSetsZero(t *testing.T) {
	c, _, _ := newTestCPU(0xCB, 0x07) // RLC A
	c.regs.A = 0x00

	c.Step()

	assert.Equal(t, uint8(zeroFlag), c.regs.F)
}

func TestCPU_flagOps(t *testing.T) {
	c, _, _ := newTestCPU(0x2F, 0x37, 0x3F) // CPL, SCF, CCF
	c.regs.A = 0x0F
	c.regs.F = uint8(zeroFlag)

	c.Step()
	assert.Equal(t, uint8(0xF0), c.regs.A)
	assert.Equal(t, uint8(zeroFlag|subFlag|halfCarryFlag), c.regs.F)

	c.Step()
	assert.Equal(t, uint8(zeroFlag|carryFlag), c.regs.F)

	c.Step()
	assert.Equal(t, uint8(zeroFlag), c.regs.F)
}

func TestCPU_stallIsAdded(t *testing.T) {
	c, bus, _ := newTestCPU(0xE0, 0x46) // LDH ($FF46),A
	bus.stall = 640

	assert.Equal(t, 12+640, c.Step())
	assert.Equal(t, 0, bus.stall)
}

func TestCPU_interrupts(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		c, _, irq := newTestCPU()
		irq.SetRequested(0x01)
		irq.SetEnabled(0x01)

		assert.Equal(t, 0, c.ServiceInterrupts())
		assert.Equal(t, uint16(0x0100), c.regs.PC)
		assert.Equal(t, uint8(0x01), irq.Requested())
	})

	t.Run("EI takes effect after the next instruction", func(t *testing.T) {
		c, _, irq := newTestCPU(0xFB, 0x00, 0x00) // EI, NOP, NOP
		irq.SetRequested(0x04)
		irq.SetEnabled(0x04)

		c.Step()
		assert.False(t, irq.MasterEnabled())
		assert.Equal(t, 0, c.ServiceInterrupts())

		c.Step()
		assert.True(t, irq.MasterEnabled())
		assert.Equal(t, 20, c.ServiceInterrupts())
		assert.Equal(t, uint16(0x0050), c.regs.PC)
	})

	t.Run("DI cancels a pending EI", func(t *testing.T) {
		c, _, irq := newTestCPU(0xFB, 0xF3, 0x00) // EI, DI, NOP
		c.Step()
		c.Step()
		c.Step()
		assert.False(t, irq.MasterEnabled())
	})

	t.Run("dispatch follows priority and pushes PC", func(t *testing.T) {
		c, bus, irq := newTestCPU()
		irq.SetMasterEnable(true)
		irq.SetRequested(0x1F)
		irq.SetEnabled(0x1F)

		assert.Equal(t, 20, c.ServiceInterrupts())
		assert.Equal(t, uint16(0x0040), c.regs.PC)
		assert.Equal(t, uint8(0x1E), irq.Requested())
		assert.False(t, irq.MasterEnabled())
		assert.Equal(t, uint8(0x01), bus.mem[0xFFFD])
		assert.Equal(t, uint8(0x00), bus.mem[0xFFFC])
	})

	t.Run("RETI enables immediately", func(t *testing.T) {
		c, _, irq := newTestCPU(0xD9)
		c.push(0x0200)

		assert.Equal(t, 16, c.Step())
		assert.True(t, irq.MasterEnabled())
		assert.Equal(t, uint16(0x0200), c.regs.PC)
	})
}

func TestCPU_halt(t *testing.T) {
	t.Run("wakes on pending interrupt without IME", func(t *testing.T) {
		c, _, irq := newTestCPU(0x76, 0x04) // HALT, INC B
		c.Step()
		require.True(t, c.Halted())

		assert.Equal(t, 4, c.Step())
		assert.Equal(t, uint16(0x0101), c.regs.PC)

		irq.SetEnabled(0x04)
		irq.Request(addr.TimerInterrupt)
		assert.Equal(t, 0, c.ServiceInterrupts())
		assert.False(t, c.Halted())

		b := c.regs.B
		c.Step()
		assert.Equal(t, b+1, c.regs.B, "execution continues after HALT")
	})

	t.Run("halt bug executes the next byte twice", func(t *testing.T) {
		c, _, irq := newTestCPU(0x76, 0x04) // HALT, INC B
		irq.SetEnabled(0x04)
		irq.Request(addr.TimerInterrupt)
		c.regs.B = 0

		c.Step()
		assert.False(t, c.Halted())

		c.Step()
		c.Step()
		assert.Equal(t, uint8(2), c.regs.B)
		assert.Equal(t, uint16(0x0102), c.regs.PC)
	})
}

func TestCPU_stopWaitsForJoypad(t *testing.T) {
	c, bus, irq := newTestCPU(0x10, 0x00, 0x04) // STOP, INC B
	bus.mem[addr.DIV] = 0x99

	c.Step()
	require.True(t, c.Stopped())
	assert.Equal(t, uint8(0), bus.mem[addr.DIV])

	c.Step()
	assert.Equal(t, uint16(0x0102), c.regs.PC)

	irq.Request(addr.JoypadInterrupt)
	c.regs.B = 0
	c.Step()
	assert.False(t, c.Stopped())
	assert.Equal(t, uint8(1), c.regs.B)
}

func TestCPU_illegalOpcodeLocks(t *testing.T) {
	for _, opcode := range illegalOpcodes {
		c, _, irq := newTestCPU(opcode, 0x04)
		irq.SetMasterEnable(true)
		irq.SetEnabled(0x1F)
		irq.SetRequested(0x01)

		c.Step()
		require.True(t, c.Locked())

		var opErr *fault.UnsupportedOpError
		require.ErrorAs(t, c.Err(), &opErr)
		assert.Equal(t, uint16(opcode), opErr.Opcode)
		assert.Equal(t, uint16(0x0100), opErr.Address)

		assert.Equal(t, 4, c.Step())
		assert.Equal(t, 0, c.ServiceInterrupts(), "a locked CPU ignores interrupts")
		assert.Equal(t, uint16(0x0101), c.regs.PC)
	}
}

func TestCPU_stateRoundTrip(t *testing.T) {
	c, _, _ := newTestCPU(0xFB, 0x3C, 0xDB)
	c.Step()
	c.Step()
	c.Step()

	restored, _, _ := newTestCPU()
	require.NoError(t, restored.LoadState(c.SaveState()))

	assert.Equal(t, c.Registers(), restored.Registers())
	assert.Equal(t, c.Cycles(), restored.Cycles())
	assert.True(t, restored.Locked())
	assert.Equal(t, c.Err(), restored.Err())
	assert.Error(t, restored.LoadState(nil))
}
