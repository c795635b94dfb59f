package cpu

import "github.com/valerio/dotmatrix/dmg/bit"

// Flag is one of the 4 possible flags used in the flag register (low part of AF)
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// Registers is the register file. The 16 bit pairs are views over the 8 bit
// halves and have no storage of their own.
type Registers struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
}

func (r Registers) AF() uint16 { return bit.Combine(r.A, r.F) }
func (r Registers) BC() uint16 { return bit.Combine(r.B, r.C) }
func (r Registers) DE() uint16 { return bit.Combine(r.D, r.E) }
func (r Registers) HL() uint16 { return bit.Combine(r.H, r.L) }

// SetAF writes A and F. The low nibble of F does not exist in hardware and
// always reads back as zero.
func (r *Registers) SetAF(value uint16) {
	r.A = bit.High(value)
	r.F = bit.Low(value) & 0xF0
}

func (r *Registers) SetBC(value uint16) { r.B, r.C = bit.High(value), bit.Low(value) }
func (r *Registers) SetDE(value uint16) { r.D, r.E = bit.High(value), bit.Low(value) }
func (r *Registers) SetHL(value uint16) { r.H, r.L = bit.High(value), bit.Low(value) }

// Flag reports whether the given flag is set.
func (r Registers) Flag(f Flag) bool {
	return r.F&uint8(f) != 0
}

// FlagString returns a human-readable representation of the flag register
func (r Registers) FlagString() string {
	flags := []byte("----")
	for i, f := range []Flag{zeroFlag, subFlag, halfCarryFlag, carryFlag} {
		if r.Flag(f) {
			flags[i] = "ZNHC"[i]
		}
	}
	return string(flags)
}

func (r Registers) carry() uint8 {
	return bit.FromBool(r.Flag(carryFlag))
}

// reg8 indexes the 8 bit operands the way opcodes encode them in their low
// three bits: B C D E H L (HL) A.
type reg8 uint8

const (
	regB reg8 = iota
	regC
	regD
	regE
	regH
	regL
	regHLInd
	regA
)

var reg8Names = [...]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}

func (r reg8) String() string { return reg8Names[r] }

// reg16 indexes the register pairs.
type reg16 uint8

const (
	pairBC reg16 = iota
	pairDE
	pairHL
	pairSP
	pairAF
)

var reg16Names = [...]string{"BC", "DE", "HL", "SP", "AF"}

func (r reg16) String() string { return reg16Names[r] }

// condition is the branch condition encoded in bits 4-3 of conditional jumps.
type condition uint8

const (
	condNZ condition = iota
	condZ
	condNC
	condC
)

var conditionNames = [...]string{"NZ", "Z", "NC", "C"}

func (cc condition) String() string { return conditionNames[cc] }

func (c *CPU) get8(r reg8) uint8 {
	switch r {
	case regB:
		return c.regs.B
	case regC:
		return c.regs.C
	case regD:
		return c.regs.D
	case regE:
		return c.regs.E
	case regH:
		return c.regs.H
	case regL:
		return c.regs.L
	case regHLInd:
		return c.bus.Read(c.regs.HL())
	default:
		return c.regs.A
	}
}

func (c *CPU) set8(r reg8, value uint8) {
	switch r {
	case regB:
		c.regs.B = value
	case regC:
		c.regs.C = value
	case regD:
		c.regs.D = value
	case regE:
		c.regs.E = value
	case regH:
		c.regs.H = value
	case regL:
		c.regs.L = value
	case regHLInd:
		c.bus.Write(c.regs.HL(), value)
	default:
		c.regs.A = value
	}
}

func (c *CPU) get16(r reg16) uint16 {
	switch r {
	case pairBC:
		return c.regs.BC()
	case pairDE:
		return c.regs.DE()
	case pairHL:
		return c.regs.HL()
	case pairSP:
		return c.regs.SP
	default:
		return c.regs.AF()
	}
}

func (c *CPU) set16(r reg16, value uint16) {
	switch r {
	case pairBC:
		c.regs.SetBC(value)
	case pairDE:
		c.regs.SetDE(value)
	case pairHL:
		c.regs.SetHL(value)
	case pairSP:
		c.regs.SP = value
	default:
		c.regs.SetAF(value)
	}
}

func (c *CPU) check(cc condition) bool {
	switch cc {
	case condNZ:
		return !c.regs.Flag(zeroFlag)
	case condZ:
		return c.regs.Flag(zeroFlag)
	case condNC:
		return !c.regs.Flag(carryFlag)
	default:
		return c.regs.Flag(carryFlag)
	}
}
