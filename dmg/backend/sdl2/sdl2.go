//go:build sdl2

package sdl2

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/valerio/dotmatrix/dmg/backend"
	"github.com/valerio/dotmatrix/dmg/input"
	"github.com/valerio/dotmatrix/dmg/input/action"
	"github.com/valerio/dotmatrix/dmg/input/event"
	"github.com/valerio/dotmatrix/dmg/video"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	defaultScale  = 4
	bytesPerPixel = 4
)

// Backend implements the Backend interface using SDL2 bindings
// Note: building this requires SDL2 development libraries installed.
// Default builds skip this and use a stub, see build tags (sdl2)
type Backend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	events   []backend.InputEvent
}

func New() *Backend {
	return &Backend{}
}

func (s *Backend) Init(config backend.BackendConfig) error {
	scale := config.Scale
	if scale <= 0 {
		scale = defaultScale
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("failed to initialize SDL2: %w", err)
	}

	window, err := sdl.CreateWindow(
		config.Title,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		int32(video.FramebufferWidth*scale),
		int32(video.FramebufferHeight*scale),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("failed to create window: %w", err)
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		s.Cleanup()
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	s.renderer = renderer

	// RGBA8888 reads each pixel as a native uint32 0xRRGGBBAA, the
	// framebuffer's own colour format
	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_RGBA8888,
		sdl.TEXTUREACCESS_STREAMING,
		video.FramebufferWidth,
		video.FramebufferHeight,
	)
	if err != nil {
		s.Cleanup()
		return fmt.Errorf("failed to create texture: %w", err)
	}
	s.texture = texture

	slog.Info("SDL2 backend initialized", "scale", scale)
	return nil
}

func (s *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	s.events = s.events[:0]
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		s.handleEvent(ev)
	}

	if err := s.renderFrame(frame); err != nil {
		return nil, err
	}
	return s.events, nil
}

func (s *Backend) Cleanup() error {
	if s.texture != nil {
		s.texture.Destroy()
		s.texture = nil
	}
	if s.renderer != nil {
		s.renderer.Destroy()
		s.renderer = nil
	}
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
	sdl.Quit()
	return nil
}

func (s *Backend) handleEvent(ev sdl.Event) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		s.events = append(s.events, backend.InputEvent{Action: action.EmulatorQuit, Type: event.Press})
	case *sdl.KeyboardEvent:
		act, ok := keyMapping[e.Keysym.Sym]
		if !ok {
			return
		}
		switch {
		case e.Type == sdl.KEYDOWN && e.Repeat == 0:
			s.events = append(s.events, backend.InputEvent{Action: act, Type: event.Press})
		case e.Type == sdl.KEYUP && act.IsGameInput():
			s.events = append(s.events, backend.InputEvent{Action: act, Type: event.Release})
		}
	}
}

var sdlKeyNames = map[sdl.Keycode]string{
	sdl.K_z:         "z",
	sdl.K_x:         "x",
	sdl.K_RETURN:    "Enter",
	sdl.K_BACKSPACE: "Backspace",
	sdl.K_LSHIFT:    "Shift",
	sdl.K_RSHIFT:    "Shift",
	sdl.K_UP:        "Up",
	sdl.K_DOWN:      "Down",
	sdl.K_LEFT:      "Left",
	sdl.K_RIGHT:     "Right",
	sdl.K_w:         "w",
	sdl.K_a:         "a",
	sdl.K_s:         "s",
	sdl.K_d:         "d",
	sdl.K_SPACE:     "Space",
	sdl.K_p:         "p",
	sdl.K_f:         "f",
	sdl.K_F12:       "F12",
	sdl.K_ESCAPE:    "Escape",
	sdl.K_q:         "q",
}

func buildKeyMapping() map[sdl.Keycode]action.Action {
	mapping := make(map[sdl.Keycode]action.Action)
	for key, name := range sdlKeyNames {
		if act, ok := input.GetDefaultMapping(name); ok {
			mapping[key] = act
		}
	}
	return mapping
}

var keyMapping = buildKeyMapping()

func (s *Backend) renderFrame(frame *video.FrameBuffer) error {
	pixels := frame.ToSlice()
	if err := s.texture.Update(nil, unsafe.Pointer(&pixels[0]), video.FramebufferWidth*bytesPerPixel); err != nil {
		return fmt.Errorf("failed to update texture: %w", err)
	}

	s.renderer.SetDrawColor(0, 0, 0, 0xFF)
	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()
	return nil
}
