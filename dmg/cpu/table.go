package cpu

import (
	"fmt"

	"github.com/valerio/dotmatrix/dmg/bit"
)

// instruction is one entry of the decode table.
//
// Operands are fetched by exec itself; length tells how many bytes the
// instruction occupies including the opcode, and the mnemonic uses the
// placeholders n8, n16 and e8 for them. exec returns the cycles spent on top
// of the base cost: taken for a conditional branch whose condition held, the
// full CB instruction cost for the prefix, zero otherwise.
type instruction struct {
	mnemonic string
	length   uint16
	cycles   int
	taken    int
	exec     func(c *CPU) int
}

var (
	opcodes   [256]instruction
	cbOpcodes [256]instruction
)

// Opcodes with no defined behaviour. Executing any of them locks the CPU.
var illegalOpcodes = [...]uint8{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

func init() {
	buildOpcodes()
	buildCBOpcodes()
}

func op(mnemonic string, length uint16, cycles int, fn func(c *CPU)) instruction {
	return instruction{
		mnemonic: mnemonic,
		length:   length,
		cycles:   cycles,
		exec: func(c *CPU) int {
			fn(c)
			return 0
		},
	}
}

func branch(mnemonic string, length uint16, cycles, taken int, fn func(c *CPU) bool) instruction {
	return instruction{
		mnemonic: mnemonic,
		length:   length,
		cycles:   cycles,
		taken:    taken,
		exec: func(c *CPU) int {
			if fn(c) {
				return taken
			}
			return 0
		},
	}
}

// cost returns the cycles of an instruction on 8 bit registers, or the
// (HL) variant when the operand is memory.
func cost(r reg8, register, memory int) int {
	if r == regHLInd {
		return memory
	}
	return register
}

type aluFamily struct {
	format string
	fn     func(c *CPU, v uint8)
}

var aluOps = [8]aluFamily{
	{"ADD A,%s", func(c *CPU, v uint8) { c.regs.A, c.regs.F = add8(c.regs.A, v, 0) }},
	{"ADC A,%s", func(c *CPU, v uint8) { c.regs.A, c.regs.F = add8(c.regs.A, v, c.regs.carry()) }},
	{"SUB %s", func(c *CPU, v uint8) { c.regs.A, c.regs.F = sub8(c.regs.A, v, 0) }},
	{"SBC A,%s", func(c *CPU, v uint8) { c.regs.A, c.regs.F = sub8(c.regs.A, v, c.regs.carry()) }},
	{"AND %s", func(c *CPU, v uint8) { c.regs.A, c.regs.F = and8(c.regs.A, v) }},
	{"XOR %s", func(c *CPU, v uint8) { c.regs.A, c.regs.F = xor8(c.regs.A, v) }},
	{"OR %s", func(c *CPU, v uint8) { c.regs.A, c.regs.F = or8(c.regs.A, v) }},
	{"CP %s", func(c *CPU, v uint8) { _, c.regs.F = sub8(c.regs.A, v, 0) }},
}

func buildOpcodes() {
	opcodes[0x00] = op("NOP", 1, 4, func(*CPU) {})
	opcodes[0x10] = op("STOP", 2, 4, stop)
	opcodes[0x76] = op("HALT", 1, 4, halt)
	opcodes[0xF3] = op("DI", 1, 4, di)
	opcodes[0xFB] = op("EI", 1, 4, ei)
	opcodes[0xCB] = instruction{mnemonic: "PREFIX CB", length: 2, exec: prefixCB}

	// 16 bit loads and arithmetic, one column per pair
	for i, pair := range []reg16{pairBC, pairDE, pairHL, pairSP} {
		row := uint8(i) << 4
		opcodes[row|0x01] = op("LD "+pair.String()+",n16", 3, 12, func(c *CPU) { c.set16(pair, c.fetch16()) })
		opcodes[row|0x03] = op("INC "+pair.String(), 1, 8, func(c *CPU) { c.set16(pair, c.get16(pair)+1) })
		opcodes[row|0x0B] = op("DEC "+pair.String(), 1, 8, func(c *CPU) { c.set16(pair, c.get16(pair)-1) })
		opcodes[row|0x09] = op("ADD HL,"+pair.String(), 1, 8, func(c *CPU) {
			hl, f := add16(c.regs.HL(), c.get16(pair), c.regs.F)
			c.regs.SetHL(hl)
			c.regs.F = f
		})
	}

	// indirect accumulator loads
	opcodes[0x02] = op("LD (BC),A", 1, 8, func(c *CPU) { c.bus.Write(c.regs.BC(), c.regs.A) })
	opcodes[0x12] = op("LD (DE),A", 1, 8, func(c *CPU) { c.bus.Write(c.regs.DE(), c.regs.A) })
	opcodes[0x22] = op("LD (HL+),A", 1, 8, func(c *CPU) {
		c.bus.Write(c.regs.HL(), c.regs.A)
		c.regs.SetHL(c.regs.HL() + 1)
	})
	opcodes[0x32] = op("LD (HL-),A", 1, 8, func(c *CPU) {
		c.bus.Write(c.regs.HL(), c.regs.A)
		c.regs.SetHL(c.regs.HL() - 1)
	})
	opcodes[0x0A] = op("LD A,(BC)", 1, 8, func(c *CPU) { c.regs.A = c.bus.Read(c.regs.BC()) })
	opcodes[0x1A] = op("LD A,(DE)", 1, 8, func(c *CPU) { c.regs.A = c.bus.Read(c.regs.DE()) })
	opcodes[0x2A] = op("LD A,(HL+)", 1, 8, func(c *CPU) {
		c.regs.A = c.bus.Read(c.regs.HL())
		c.regs.SetHL(c.regs.HL() + 1)
	})
	opcodes[0x3A] = op("LD A,(HL-)", 1, 8, func(c *CPU) {
		c.regs.A = c.bus.Read(c.regs.HL())
		c.regs.SetHL(c.regs.HL() - 1)
	})

	// 8 bit INC/DEC/LD r,n8, one row per operand
	for r := regB; r <= regA; r++ {
		y := uint8(r) << 3
		opcodes[0x04|y] = op("INC "+r.String(), 1, cost(r, 4, 12), func(c *CPU) {
			v, f := inc8(c.get8(r), c.regs.F)
			c.set8(r, v)
			c.regs.F = f
		})
		opcodes[0x05|y] = op("DEC "+r.String(), 1, cost(r, 4, 12), func(c *CPU) {
			v, f := dec8(c.get8(r), c.regs.F)
			c.set8(r, v)
			c.regs.F = f
		})
		opcodes[0x06|y] = op("LD "+r.String()+",n8", 2, cost(r, 8, 12), func(c *CPU) { c.set8(r, c.fetch8()) })
	}

	// accumulator rotates always clear Z
	for opcode, rot := range map[uint8]struct {
		name string
		fn   shift
	}{0x07: {"RLCA", rlc}, 0x0F: {"RRCA", rrc}, 0x17: {"RLA", rl}, 0x1F: {"RRA", rr}} {
		opcodes[opcode] = op(rot.name, 1, 4, func(c *CPU) {
			a, f := rot.fn(c.regs.A, c.regs.F)
			c.regs.A = a
			c.regs.F = f &^ uint8(zeroFlag)
		})
	}

	opcodes[0x08] = op("LD (n16),SP", 3, 20, func(c *CPU) {
		address := c.fetch16()
		c.bus.Write(address, bit.Low(c.regs.SP))
		c.bus.Write(address+1, bit.High(c.regs.SP))
	})

	opcodes[0x27] = op("DAA", 1, 4, func(c *CPU) { c.regs.A, c.regs.F = daa(c.regs.A, c.regs.F) })
	opcodes[0x2F] = op("CPL", 1, 4, func(c *CPU) {
		c.regs.A = ^c.regs.A
		c.regs.F |= uint8(subFlag | halfCarryFlag)
	})
	opcodes[0x37] = op("SCF", 1, 4, func(c *CPU) {
		c.regs.F = c.regs.F&uint8(zeroFlag) | uint8(carryFlag)
	})
	opcodes[0x3F] = op("CCF", 1, 4, func(c *CPU) {
		c.regs.F = c.regs.F&uint8(zeroFlag) | (c.regs.F^uint8(carryFlag))&uint8(carryFlag)
	})

	// relative and absolute jumps, calls and returns
	opcodes[0x18] = op("JR e8", 2, 12, func(c *CPU) { c.jumpRelative(c.fetch8()) })
	opcodes[0xC3] = op("JP n16", 3, 16, func(c *CPU) { c.regs.PC = c.fetch16() })
	opcodes[0xE9] = op("JP HL", 1, 4, func(c *CPU) { c.regs.PC = c.regs.HL() })
	opcodes[0xCD] = op("CALL n16", 3, 24, func(c *CPU) { c.call(c.fetch16()) })
	opcodes[0xC9] = op("RET", 1, 16, func(c *CPU) { c.regs.PC = c.pop() })
	opcodes[0xD9] = op("RETI", 1, 16, func(c *CPU) {
		c.regs.PC = c.pop()
		c.irq.SetMasterEnable(true)
		c.eiDelay = 0
	})

	for cc := condNZ; cc <= condC; cc++ {
		y := uint8(cc) << 3
		opcodes[0x20|y] = branch("JR "+cc.String()+",e8", 2, 8, 4, func(c *CPU) bool {
			e := c.fetch8()
			if !c.check(cc) {
				return false
			}
			c.jumpRelative(e)
			return true
		})
		opcodes[0xC0|y] = branch("RET "+cc.String(), 1, 8, 12, func(c *CPU) bool {
			if !c.check(cc) {
				return false
			}
			c.regs.PC = c.pop()
			return true
		})
		opcodes[0xC2|y] = branch("JP "+cc.String()+",n16", 3, 12, 4, func(c *CPU) bool {
			target := c.fetch16()
			if !c.check(cc) {
				return false
			}
			c.regs.PC = target
			return true
		})
		opcodes[0xC4|y] = branch("CALL "+cc.String()+",n16", 3, 12, 12, func(c *CPU) bool {
			target := c.fetch16()
			if !c.check(cc) {
				return false
			}
			c.call(target)
			return true
		})
	}

	// LD r,r' block, 0x76 is HALT
	for dst := regB; dst <= regA; dst++ {
		for src := regB; src <= regA; src++ {
			opcode := 0x40 | uint8(dst)<<3 | uint8(src)
			if opcode == 0x76 {
				continue
			}
			cycles := 4
			if dst == regHLInd || src == regHLInd {
				cycles = 8
			}
			opcodes[opcode] = op(fmt.Sprintf("LD %s,%s", dst, src), 1, cycles, func(c *CPU) { c.set8(dst, c.get8(src)) })
		}
	}

	// ALU block plus the immediate forms
	for n, alu := range aluOps {
		y := uint8(n) << 3
		for src := regB; src <= regA; src++ {
			opcodes[0x80|y|uint8(src)] = op(fmt.Sprintf(alu.format, src), 1, cost(src, 4, 8), func(c *CPU) { alu.fn(c, c.get8(src)) })
		}
		opcodes[0xC6|y] = op(fmt.Sprintf(alu.format, "n8"), 2, 8, func(c *CPU) { alu.fn(c, c.fetch8()) })
	}

	// stack
	for i, pair := range []reg16{pairBC, pairDE, pairHL, pairAF} {
		row := 0xC0 | uint8(i)<<4
		opcodes[row|0x01] = op("POP "+pair.String(), 1, 12, func(c *CPU) { c.set16(pair, c.pop()) })
		opcodes[row|0x05] = op("PUSH "+pair.String(), 1, 16, func(c *CPU) { c.push(c.get16(pair)) })
	}

	for n := uint8(0); n < 8; n++ {
		vector := uint16(n) * 8
		opcodes[0xC7|n<<3] = op(fmt.Sprintf("RST $%02X", vector), 1, 16, func(c *CPU) { c.call(vector) })
	}

	// high page and absolute accumulator loads
	opcodes[0xE0] = op("LDH (n8),A", 2, 12, func(c *CPU) { c.bus.Write(0xFF00|uint16(c.fetch8()), c.regs.A) })
	opcodes[0xF0] = op("LDH A,(n8)", 2, 12, func(c *CPU) { c.regs.A = c.bus.Read(0xFF00 | uint16(c.fetch8())) })
	opcodes[0xE2] = op("LD (C),A", 1, 8, func(c *CPU) { c.bus.Write(0xFF00|uint16(c.regs.C), c.regs.A) })
	opcodes[0xF2] = op("LD A,(C)", 1, 8, func(c *CPU) { c.regs.A = c.bus.Read(0xFF00 | uint16(c.regs.C)) })
	opcodes[0xEA] = op("LD (n16),A", 3, 16, func(c *CPU) { c.bus.Write(c.fetch16(), c.regs.A) })
	opcodes[0xFA] = op("LD A,(n16)", 3, 16, func(c *CPU) { c.regs.A = c.bus.Read(c.fetch16()) })

	// stack pointer arithmetic
	opcodes[0xE8] = op("ADD SP,e8", 2, 16, func(c *CPU) { c.regs.SP, c.regs.F = addSigned(c.regs.SP, c.fetch8()) })
	opcodes[0xF8] = op("LD HL,SP+e8", 2, 12, func(c *CPU) {
		hl, f := addSigned(c.regs.SP, c.fetch8())
		c.regs.SetHL(hl)
		c.regs.F = f
	})
	opcodes[0xF9] = op("LD SP,HL", 1, 8, func(c *CPU) { c.regs.SP = c.regs.HL() })

	for _, opcode := range illegalOpcodes {
		opcodes[opcode] = op(fmt.Sprintf("ILLEGAL $%02X", opcode), 1, 4, lock)
	}
}

func buildCBOpcodes() {
	shifts := [8]struct {
		name string
		fn   shift
	}{
		{"RLC", rlc}, {"RRC", rrc}, {"RL", rl}, {"RR", rr},
		{"SLA", sla}, {"SRA", sra}, {"SWAP", swap}, {"SRL", srl},
	}

	for opcode := 0; opcode < 256; opcode++ {
		r := reg8(opcode & 7)
		y := uint8(opcode>>3) & 7

		var in instruction
		switch opcode >> 6 {
		case 0:
			fn := shifts[y].fn
			in = op(fmt.Sprintf("%s %s", shifts[y].name, r), 2, cost(r, 8, 16), func(c *CPU) {
				v, f := fn(c.get8(r), c.regs.F)
				c.set8(r, v)
				c.regs.F = f
			})
		case 1:
			in = op(fmt.Sprintf("BIT %d,%s", y, r), 2, cost(r, 8, 12), func(c *CPU) {
				c.regs.F = bitTest(y, c.get8(r), c.regs.F)
			})
		case 2:
			in = op(fmt.Sprintf("RES %d,%s", y, r), 2, cost(r, 8, 16), func(c *CPU) {
				c.set8(r, bit.Reset(y, c.get8(r)))
			})
		default:
			in = op(fmt.Sprintf("SET %d,%s", y, r), 2, cost(r, 8, 16), func(c *CPU) {
				c.set8(r, bit.Set(y, c.get8(r)))
			})
		}
		cbOpcodes[opcode] = in
	}
}

// prefixCB decodes and runs the second byte of a CB instruction. The cost of
// the whole two byte instruction lives in the CB table.
func prefixCB(c *CPU) int {
	opcode := c.fetch8()
	c.opcode = 0xCB00 | uint16(opcode)
	in := &cbOpcodes[opcode]
	return in.cycles + in.exec(c)
}
