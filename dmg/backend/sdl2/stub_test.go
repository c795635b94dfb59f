//go:build !sdl2

package sdl2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/dotmatrix/dmg/backend"
)

func TestStub_reportsMissingBuildTag(t *testing.T) {
	var b backend.Backend = New()
	err := b.Init(backend.BackendConfig{})
	assert.ErrorContains(t, err, "-tags sdl2")
	assert.NoError(t, b.Cleanup())
}
