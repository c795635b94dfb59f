//go:build !sdl2

package sdl2

import (
	"errors"

	"github.com/valerio/dotmatrix/dmg/backend"
	"github.com/valerio/dotmatrix/dmg/video"
)

var errUnavailable = errors.New("SDL2 backend not available - build with -tags sdl2 to enable")

// Backend stub for when SDL2 is not available
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (s *Backend) Init(config backend.BackendConfig) error {
	return errUnavailable
}

func (s *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	return nil, errUnavailable
}

func (s *Backend) Cleanup() error {
	return nil
}
