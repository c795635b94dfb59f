package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_complete(t *testing.T) {
	for i, in := range opcodes {
		assert.NotNil(t, in.exec, "opcode 0x%02X has no handler", i)
		assert.NotEmpty(t, in.mnemonic, "opcode 0x%02X has no mnemonic", i)
		assert.NotZero(t, in.length, "opcode 0x%02X has no length", i)
	}
	for i, in := range cbOpcodes {
		assert.NotNil(t, in.exec, "opcode 0xCB%02X has no handler", i)
		assert.Equal(t, uint16(2), in.length)
	}
}

// Base cycles for every opcode; conditional ones are listed with the
// condition not taken. The CB prefix carries no cost of its own, the CB table
// holds the full cost of the two byte instruction.
var wantCycles = [256]int{
	//    x0  x1  x2  x3  x4  x5  x6  x7  x8  x9  xA  xB  xC  xD  xE  xF
	/*0x*/ 4, 12, 8, 8, 4, 4, 8, 4, 20, 8, 8, 8, 4, 4, 8, 4,
	/*1x*/ 4, 12, 8, 8, 4, 4, 8, 4, 12, 8, 8, 8, 4, 4, 8, 4,
	/*2x*/ 8, 12, 8, 8, 4, 4, 8, 4, 8, 8, 8, 8, 4, 4, 8, 4,
	/*3x*/ 8, 12, 8, 8, 12, 12, 12, 4, 8, 8, 8, 8, 4, 4, 8, 4,
	/*4x*/ 4, 4, 4, 4, 4, 4, 8, 4, 4, 4, 4, 4, 4, 4, 8, 4,
	/*5x*/ 4, 4, 4, 4, 4, 4, 8, 4, 4, 4, 4, 4, 4, 4, 8, 4,
	/*6x*/ 4, 4, 4, 4, 4, 4, 8, 4, 4, 4, 4, 4, 4, 4, 8, 4,
	/*7x*/ 8, 8, 8, 8, 8, 8, 4, 8, 4, 4, 4, 4, 4, 4, 8, 4,
	/*8x*/ 4, 4, 4, 4, 4, 4, 8, 4, 4, 4, 4, 4, 4, 4, 8, 4,
	/*9x*/ 4, 4, 4, 4, 4, 4, 8, 4, 4, 4, 4, 4, 4, 4, 8, 4,
	/*Ax*/ 4, 4, 4, 4, 4, 4, 8, 4, 4, 4, 4, 4, 4, 4, 8, 4,
	/*Bx*/ 4, 4, 4, 4, 4, 4, 8, 4, 4, 4, 4, 4, 4, 4, 8, 4,
	/*Cx*/ 8, 12, 12, 16, 12, 16, 8, 16, 8, 16, 12, 0, 12, 24, 8, 16,
	/*Dx*/ 8, 12, 12, 4, 12, 16, 8, 16, 8, 16, 12, 4, 12, 4, 8, 16,
	/*Ex*/ 12, 12, 8, 4, 4, 16, 8, 16, 16, 4, 16, 4, 4, 4, 8, 16,
	/*Fx*/ 12, 12, 8, 4, 4, 16, 8, 16, 12, 8, 16, 4, 4, 4, 8, 16,
}

var wantLengths = [256]uint16{
	//    x0 x1 x2 x3 x4 x5 x6 x7 x8 x9 xA xB xC xD xE xF
	/*0x*/ 1, 3, 1, 1, 1, 1, 2, 1, 3, 1, 1, 1, 1, 1, 2, 1,
	/*1x*/ 2, 3, 1, 1, 1, 1, 2, 1, 2, 1, 1, 1, 1, 1, 2, 1,
	/*2x*/ 2, 3, 1, 1, 1, 1, 2, 1, 2, 1, 1, 1, 1, 1, 2, 1,
	/*3x*/ 2, 3, 1, 1, 1, 1, 2, 1, 2, 1, 1, 1, 1, 1, 2, 1,
	/*4x*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*5x*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*6x*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*7x*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*8x*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*9x*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*Ax*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*Bx*/ 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	/*Cx*/ 1, 1, 3, 3, 3, 1, 2, 1, 1, 1, 3, 2, 3, 3, 2, 1,
	/*Dx*/ 1, 1, 3, 1, 3, 1, 2, 1, 1, 1, 3, 1, 3, 1, 2, 1,
	/*Ex*/ 2, 1, 1, 1, 1, 1, 2, 1, 2, 1, 3, 1, 1, 1, 2, 1,
	/*Fx*/ 2, 1, 1, 1, 1, 1, 2, 1, 2, 1, 3, 1, 1, 1, 2, 1,
}

// CB costs depend only on the operation group and whether the operand is (HL).
func wantCBCycles(opcode int) int {
	if opcode&7 != 6 {
		return 8
	}
	if opcode>>6 == 1 {
		return 12 // BIT n,(HL)
	}
	return 16
}

func TestTable_cyclesAndLengths(t *testing.T) {
	for i, in := range opcodes {
		assert.Equal(t, wantCycles[i], in.cycles, "cycles of 0x%02X %s", i, in.mnemonic)
		assert.Equal(t, wantLengths[i], in.length, "length of 0x%02X %s", i, in.mnemonic)
	}
	for i, in := range cbOpcodes {
		assert.Equal(t, wantCBCycles(i), in.cycles, "cycles of 0xCB%02X %s", i, in.mnemonic)
	}
}

// changesFlow lists the opcodes that set PC themselves when they run
// unconditionally.
var changesFlow = map[uint8]bool{
	0x18: true, 0xC3: true, 0xC9: true, 0xCD: true, 0xD9: true, 0xE9: true,
	0xC7: true, 0xCF: true, 0xD7: true, 0xDF: true, 0xE7: true, 0xEF: true, 0xF7: true, 0xFF: true,
}

func TestStep_advancesPCByLength(t *testing.T) {
	for i, in := range opcodes {
		opcode := uint8(i)
		if in.taken > 0 || changesFlow[opcode] || isIllegal(opcode) {
			continue
		}
		c, _, _ := newTestCPU(opcode, 0x00, 0x00)

		cycles := c.Step()

		want := wantCycles[i]
		if opcode == 0xCB {
			want = wantCBCycles(0x00)
		}
		assert.Equal(t, 0x0100+in.length, c.regs.PC, "PC after 0x%02X %s", i, in.mnemonic)
		assert.Equal(t, want, cycles, "cycles of 0x%02X %s", i, in.mnemonic)
	}

	for i, in := range cbOpcodes {
		c, _, _ := newTestCPU(0xCB, uint8(i))

		cycles := c.Step()

		assert.Equal(t, uint16(0x0102), c.regs.PC, "PC after 0xCB%02X %s", i, in.mnemonic)
		assert.Equal(t, wantCBCycles(i), cycles, "cycles of 0xCB%02X %s", i, in.mnemonic)
	}
}

func isIllegal(opcode uint8) bool {
	for _, illegal := range illegalOpcodes {
		if opcode == illegal {
			return true
		}
	}
	return false
}

func TestTable_conditionalCosts(t *testing.T) {
	testCases := []struct {
		opcode uint8
		base   int
		taken  int
	}{
		{0x20, 8, 4}, {0x28, 8, 4}, {0x30, 8, 4}, {0x38, 8, 4},
		{0xC0, 8, 12}, {0xC8, 8, 12}, {0xD0, 8, 12}, {0xD8, 8, 12},
		{0xC2, 12, 4}, {0xCA, 12, 4}, {0xD2, 12, 4}, {0xDA, 12, 4},
		{0xC4, 12, 12}, {0xCC, 12, 12}, {0xD4, 12, 12}, {0xDC, 12, 12},
	}
	for _, tC := range testCases {
		in := opcodes[tC.opcode]
		assert.Equal(t, tC.base, in.cycles, in.mnemonic)
		assert.Equal(t, tC.taken, in.taken, in.mnemonic)
	}
}

func TestTable_memoryOperandCosts(t *testing.T) {
	assert.Equal(t, 8, opcodes[0x46].cycles, "LD B,(HL)")
	assert.Equal(t, 8, opcodes[0x70].cycles, "LD (HL),B")
	assert.Equal(t, 4, opcodes[0x41].cycles, "LD B,C")
	assert.Equal(t, 8, opcodes[0x86].cycles, "ADD A,(HL)")
	assert.Equal(t, 12, opcodes[0x34].cycles, "INC (HL)")
	assert.Equal(t, 16, cbOpcodes[0x06].cycles, "RLC (HL)")
	assert.Equal(t, 12, cbOpcodes[0x46].cycles, "BIT 0,(HL)")
	assert.Equal(t, 16, cbOpcodes[0x86].cycles, "RES 0,(HL)")
}

func TestTable_mnemonics(t *testing.T) {
	assert.Equal(t, "HALT", opcodes[0x76].mnemonic)
	assert.Equal(t, "LD A,(HL)", opcodes[0x7E].mnemonic)
	assert.Equal(t, "XOR A", opcodes[0xAF].mnemonic)
	assert.Equal(t, "SBC A,n8", opcodes[0xDE].mnemonic)
	assert.Equal(t, "RST $28", opcodes[0xEF].mnemonic)
	assert.Equal(t, "ILLEGAL $DD", opcodes[0xDD].mnemonic)
	assert.Equal(t, "SWAP A", cbOpcodes[0x37].mnemonic)
	assert.Equal(t, "BIT 7,H", cbOpcodes[0x7C].mnemonic)
	assert.Equal(t, "SET 3,(HL)", cbOpcodes[0xDE].mnemonic)
}

func TestDisassemble(t *testing.T) {
	bus := &flatBus{}
	program := []byte{
		0x31, 0xFE, 0xFF, // LD SP,$FFFE
		0xE0, 0x40, // LDH ($FF40),A
		0x20, 0xFB, // JR NZ,-5
		0xCB, 0x7C, // BIT 7,H
		0xF8, 0xFE, // LD HL,SP-2
		0x3E, 0x10, // LD A,$10
	}
	copy(bus.mem[0x0150:], program)

	testCases := []struct {
		pc     uint16
		text   string
		length uint16
	}{
		{0x0150, "LD SP,$FFFE", 3},
		{0x0153, "LDH ($FF40),A", 2},
		{0x0155, "JR NZ,$0152", 2},
		{0x0157, "BIT 7,H", 2},
		{0x0159, "LD HL,SP-2", 2},
		{0x015B, "LD A,$10", 2},
	}
	for _, tC := range testCases {
		t.Run(tC.text, func(t *testing.T) {
			text, length := Disassemble(bus, tC.pc)
			assert.Equal(t, tC.text, text)
			assert.Equal(t, tC.length, length)
		})
	}
}
