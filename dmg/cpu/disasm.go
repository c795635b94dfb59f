package cpu

import (
	"fmt"
	"strings"

	"github.com/valerio/dotmatrix/dmg/bit"
)

// Reader is the read-only view of memory the disassembler needs.
type Reader interface {
	Read(address uint16) byte
}

// Disassemble decodes the instruction at pc and returns its text along with
// its length in bytes. Immediate operands are substituted into the mnemonic,
// relative jumps show their absolute target.
func Disassemble(mem Reader, pc uint16) (string, uint16) {
	opcode := mem.Read(pc)
	if opcode == 0xCB {
		return cbOpcodes[mem.Read(pc+1)].mnemonic, 2
	}

	in := opcodes[opcode]
	text := in.mnemonic
	switch {
	case strings.Contains(text, "n16"):
		nn := bit.Combine(mem.Read(pc+2), mem.Read(pc+1))
		text = strings.Replace(text, "n16", fmt.Sprintf("$%04X", nn), 1)
	case strings.Contains(text, "n8"):
		n := mem.Read(pc + 1)
		if strings.HasPrefix(text, "LDH") {
			text = strings.Replace(text, "n8", fmt.Sprintf("$FF%02X", n), 1)
		} else {
			text = strings.Replace(text, "n8", fmt.Sprintf("$%02X", n), 1)
		}
	case strings.HasPrefix(text, "JR"):
		e := int8(mem.Read(pc + 1))
		target := uint16(int32(pc) + int32(in.length) + int32(e))
		text = strings.Replace(text, "e8", fmt.Sprintf("$%04X", target), 1)
	case strings.Contains(text, "+e8"):
		text = strings.Replace(text, "+e8", fmt.Sprintf("%+d", int8(mem.Read(pc+1))), 1)
	case strings.Contains(text, "e8"):
		text = strings.Replace(text, "e8", fmt.Sprintf("%d", int8(mem.Read(pc+1))), 1)
	}
	return text, in.length
}
