//go:build ebiten

package ebiten

import (
	"errors"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/valerio/dotmatrix/dmg/backend"
	"github.com/valerio/dotmatrix/dmg/input"
	"github.com/valerio/dotmatrix/dmg/input/action"
	"github.com/valerio/dotmatrix/dmg/input/event"
	"github.com/valerio/dotmatrix/dmg/timing"
	"github.com/valerio/dotmatrix/dmg/video"
)

const defaultScale = 3

// Backend presents frames in an ebiten window. Ebiten owns the main loop, so
// the backend is a backend.Driver: the session advances from the game's
// Update callback at ebiten's tick rate.
type Backend struct {
	pixels []byte
	tex    *ebiten.Image
}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Init(config backend.BackendConfig) error {
	scale := config.Scale
	if scale <= 0 {
		scale = defaultScale
	}
	ebiten.SetWindowTitle(config.Title)
	ebiten.SetWindowSize(video.FramebufferWidth*scale, video.FramebufferHeight*scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(int(timing.TargetFPS() + 0.5))

	b.pixels = make([]byte, video.FramebufferWidth*video.FramebufferHeight*4)
	slog.Info("Ebiten backend initialized", "scale", scale)
	return nil
}

// Update copies the frame for the next Draw and reports the keys that
// changed since the previous tick.
func (b *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	for i, g := range frame.ToGrayscale() {
		p := b.pixels[i*4 : i*4+4]
		p[0], p[1], p[2], p[3] = g, g, g, 0xFF
	}

	var events []backend.InputEvent
	for key, act := range keyMapping {
		switch {
		case inpututil.IsKeyJustPressed(key):
			events = append(events, backend.InputEvent{Action: act, Type: event.Press})
		case inpututil.IsKeyJustReleased(key) && act.IsGameInput():
			events = append(events, backend.InputEvent{Action: act, Type: event.Release})
		}
	}
	if ebiten.IsWindowBeingClosed() {
		events = append(events, backend.InputEvent{Action: action.EmulatorQuit, Type: event.Press})
	}
	return events, nil
}

func (b *Backend) Cleanup() error {
	return nil
}

// Drive hands the loop to ebiten.RunGame, which must run on the main
// goroutine.
func (b *Backend) Drive(loop *backend.Loop) error {
	return ebiten.RunGame(&game{backend: b, loop: loop})
}

type game struct {
	backend *Backend
	loop    *backend.Loop
}

func (g *game) Update() error {
	err := g.loop.Frame()
	if errors.Is(err, backend.ErrQuit) {
		return ebiten.Termination
	}
	return err
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.backend.tex == nil {
		g.backend.tex = ebiten.NewImage(video.FramebufferWidth, video.FramebufferHeight)
	}
	g.backend.tex.WritePixels(g.backend.pixels)
	screen.DrawImage(g.backend.tex, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return video.FramebufferWidth, video.FramebufferHeight
}

var ebitenKeyNames = map[ebiten.Key]string{
	ebiten.KeyZ:          "z",
	ebiten.KeyX:          "x",
	ebiten.KeyEnter:      "Enter",
	ebiten.KeyBackspace:  "Backspace",
	ebiten.KeyShiftLeft:  "Shift",
	ebiten.KeyShiftRight: "Shift",
	ebiten.KeyArrowUp:    "Up",
	ebiten.KeyArrowDown:  "Down",
	ebiten.KeyArrowLeft:  "Left",
	ebiten.KeyArrowRight: "Right",
	ebiten.KeyW:          "w",
	ebiten.KeyA:          "a",
	ebiten.KeyS:          "s",
	ebiten.KeyD:          "d",
	ebiten.KeySpace:      "Space",
	ebiten.KeyP:          "p",
	ebiten.KeyF:          "f",
	ebiten.KeyF12:        "F12",
	ebiten.KeyEscape:     "Escape",
	ebiten.KeyQ:          "q",
}

func buildKeyMapping() map[ebiten.Key]action.Action {
	mapping := make(map[ebiten.Key]action.Action)
	for key, name := range ebitenKeyNames {
		if act, ok := input.GetDefaultMapping(name); ok {
			mapping[key] = act
		}
	}
	return mapping
}

var keyMapping = buildKeyMapping()
