package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadErrorWrapsCause(t *testing.T) {
	err := fmt.Errorf("open rom: %w", Load(ErrUnsupportedCartridge, "type 0x%02X", 0xFC))

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.True(t, errors.Is(err, ErrUnsupportedCartridge))
	assert.Equal(t, "type 0xFC", loadErr.Reason)
	assert.Contains(t, err.Error(), "unsupported cartridge type")
}

func TestUnsupportedOpErrorMessage(t *testing.T) {
	err := &UnsupportedOpError{Kind: "opcode", Address: 0x0150, Opcode: 0xD3}
	assert.Equal(t, "unsupported opcode 0xD3 at 0x0150", err.Error())
}

func TestViolationPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		v, ok := r.(*InvariantViolation)
		require.True(t, ok)
		assert.Equal(t, "bus", v.Component)
		assert.Equal(t, "no region for 0xFEED", v.Detail)
	}()

	Violation("bus", "no region for 0x%04X", 0xFEED)
}
