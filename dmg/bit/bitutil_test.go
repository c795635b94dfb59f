package bit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombineAndSplit(t *testing.T) {
	tests := []struct {
		high, low uint8
		expected  uint16
	}{
		{0xAB, 0xCD, 0xABCD},
		{0x00, 0x00, 0x0000},
		{0xFF, 0xFF, 0xFFFF},
		{0x12, 0x34, 0x1234},
	}

	for _, tt := range tests {
		word := Combine(tt.high, tt.low)
		assert.Equal(t, tt.expected, word)
		assert.Equal(t, tt.high, High(word))
		assert.Equal(t, tt.low, Low(word))
	}
}

func TestIsSet(t *testing.T) {
	tests := []struct {
		value    uint8
		index    uint8
		expected bool
	}{
		{0b10101010, 0, false},
		{0b10101010, 1, true},
		{0b10101010, 7, true},
		{0b10101010, 8, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsSet(tt.index, tt.value), "IsSet(%d, %08b)", tt.index, tt.value)
	}

	assert.True(t, IsSet16(9, 0x0200))
	assert.False(t, IsSet16(9, 0x01FF))
}

func TestSetReset(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(uint8, uint8) uint8
		value    uint8
		index    uint8
		expected uint8
	}{
		{"set low bit", Set, 0b10101010, 0, 0b10101011},
		{"set already set", Set, 0b10101010, 7, 0b10101010},
		{"set out of range", Set, 0b10101010, 8, 0b10101010},
		{"reset bit", Reset, 0b10101010, 1, 0b10101000},
		{"reset msb", Reset, 0b10101010, 7, 0b00101010},
		{"reset out of range", Reset, 0b10101010, 8, 0b10101010},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.fn(tt.index, tt.value))
		})
	}

	assert.Equal(t, uint8(0x81), SetTo(7, 0x01, true))
	assert.Equal(t, uint8(0x01), SetTo(7, 0x81, false))
}

func TestValueHelpers(t *testing.T) {
	assert.Equal(t, uint8(1), Value(3, 0x08))
	assert.Equal(t, uint8(0), Value(2, 0x08))
	assert.Equal(t, uint8(1), FromBool(true))
	assert.Equal(t, uint8(0), FromBool(false))
	assert.Equal(t, uint8(0b101), ExtractBits(0b11010110, 6, 4))
	assert.Equal(t, uint8(0b11), ExtractBits(0b11010111, 1, 0))
}
