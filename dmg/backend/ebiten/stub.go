//go:build !ebiten

package ebiten

import (
	"errors"

	"github.com/valerio/dotmatrix/dmg/backend"
	"github.com/valerio/dotmatrix/dmg/video"
)

var errUnavailable = errors.New("ebiten backend not available - build with -tags ebiten to enable")

// Backend stub for builds without the ebiten tag
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Init(config backend.BackendConfig) error {
	return errUnavailable
}

func (b *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	return nil, errUnavailable
}

func (b *Backend) Cleanup() error {
	return nil
}
