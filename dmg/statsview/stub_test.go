//go:build !statsview

package statsview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStub(t *testing.T) {
	assert.False(t, Available())
	stop := Launch("")
	assert.NotPanics(t, stop)
}
