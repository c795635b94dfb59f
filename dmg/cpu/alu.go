package cpu

// Flag arithmetic shared by every opcode family. Each helper takes its
// operands (and the current F when some flags are preserved) and returns the
// result together with the new F.

func flagIf(f Flag, cond bool) uint8 {
	if cond {
		return uint8(f)
	}
	return 0
}

func zeroIf(v uint8) uint8 {
	return flagIf(zeroFlag, v == 0)
}

// add8 computes a + b + carry for ADD/ADC.
func add8(a, b, carry uint8) (uint8, uint8) {
	sum := uint16(a) + uint16(b) + uint16(carry)
	result := uint8(sum)
	f := zeroIf(result) |
		flagIf(halfCarryFlag, (a&0xF)+(b&0xF)+carry > 0xF) |
		flagIf(carryFlag, sum > 0xFF)
	return result, f
}

// sub8 computes a - b - carry for SUB/SBC/CP.
func sub8(a, b, carry uint8) (uint8, uint8) {
	diff := int(a) - int(b) - int(carry)
	result := uint8(diff)
	f := zeroIf(result) |
		uint8(subFlag) |
		flagIf(halfCarryFlag, int(a&0xF)-int(b&0xF)-int(carry) < 0) |
		flagIf(carryFlag, diff < 0)
	return result, f
}

func and8(a, b uint8) (uint8, uint8) {
	result := a & b
	return result, zeroIf(result) | uint8(halfCarryFlag)
}

func xor8(a, b uint8) (uint8, uint8) {
	result := a ^ b
	return result, zeroIf(result)
}

func or8(a, b uint8) (uint8, uint8) {
	result := a | b
	return result, zeroIf(result)
}

// inc8 preserves the carry flag.
func inc8(v, f uint8) (uint8, uint8) {
	result := v + 1
	return result, f&uint8(carryFlag) | zeroIf(result) | flagIf(halfCarryFlag, v&0xF == 0xF)
}

// dec8 preserves the carry flag.
func dec8(v, f uint8) (uint8, uint8) {
	result := v - 1
	return result, f&uint8(carryFlag) | zeroIf(result) | uint8(subFlag) | flagIf(halfCarryFlag, v&0xF == 0)
}

// add16 is ADD HL,rr: zero is preserved, carries come from bits 11 and 15.
func add16(a, b uint16, f uint8) (uint16, uint8) {
	sum := uint32(a) + uint32(b)
	return uint16(sum), f&uint8(zeroFlag) |
		flagIf(halfCarryFlag, (a&0xFFF)+(b&0xFFF) > 0xFFF) |
		flagIf(carryFlag, sum > 0xFFFF)
}

// addSigned is SP + e8 for ADD SP,e8 and LD HL,SP+e8. Flags come from the
// unsigned low byte addition; zero and subtract are always cleared.
func addSigned(sp uint16, e uint8) (uint16, uint8) {
	result := uint16(int32(sp) + int32(int8(e)))
	f := flagIf(halfCarryFlag, (sp&0xF)+(uint16(e)&0xF) > 0xF) |
		flagIf(carryFlag, (sp&0xFF)+uint16(e) > 0xFF)
	return result, f
}

// shift is the shape shared by the rotate/shift family, f is needed by the
// through-carry rotates.
type shift func(v, f uint8) (uint8, uint8)

func rlc(v, _ uint8) (uint8, uint8) {
	result := v<<1 | v>>7
	return result, zeroIf(result) | flagIf(carryFlag, v&0x80 != 0)
}

func rrc(v, _ uint8) (uint8, uint8) {
	result := v>>1 | v<<7
	return result, zeroIf(result) | flagIf(carryFlag, v&0x01 != 0)
}

func rl(v, f uint8) (uint8, uint8) {
	result := v<<1 | (f>>4)&1
	return result, zeroIf(result) | flagIf(carryFlag, v&0x80 != 0)
}

func rr(v, f uint8) (uint8, uint8) {
	result := v>>1 | (f<<3)&0x80
	return result, zeroIf(result) | flagIf(carryFlag, v&0x01 != 0)
}

func sla(v, _ uint8) (uint8, uint8) {
	result := v << 1
	return result, zeroIf(result) | flagIf(carryFlag, v&0x80 != 0)
}

func sra(v, _ uint8) (uint8, uint8) {
	result := v>>1 | v&0x80
	return result, zeroIf(result) | flagIf(carryFlag, v&0x01 != 0)
}

func srl(v, _ uint8) (uint8, uint8) {
	result := v >> 1
	return result, zeroIf(result) | flagIf(carryFlag, v&0x01 != 0)
}

func swap(v, _ uint8) (uint8, uint8) {
	result := v<<4 | v>>4
	return result, zeroIf(result)
}

// bitTest is BIT n,r: carry preserved, half carry set, zero when the bit is clear.
func bitTest(n, v, f uint8) uint8 {
	return f&uint8(carryFlag) | uint8(halfCarryFlag) | flagIf(zeroFlag, v&(1<<n) == 0)
}

// daa adjusts A to packed BCD after an addition or subtraction.
func daa(a, f uint8) (uint8, uint8) {
	var adjust uint8
	carry := f&uint8(carryFlag) != 0
	half := f&uint8(halfCarryFlag) != 0
	sub := f&uint8(subFlag) != 0

	if sub {
		if half {
			adjust |= 0x06
		}
		if carry {
			adjust |= 0x60
		}
		a -= adjust
	} else {
		if half || a&0x0F > 0x09 {
			adjust |= 0x06
		}
		if carry || a > 0x99 {
			adjust |= 0x60
			carry = true
		}
		a += adjust
	}

	return a, zeroIf(a) | f&uint8(subFlag) | flagIf(carryFlag, carry)
}
