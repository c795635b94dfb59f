package terminal

import (
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/dotmatrix/dmg/video"
)

var shadeColors = [4]tcell.Color{
	video.White:     tcell.ColorWhite,
	video.LightGrey: tcell.ColorSilver,
	video.DarkGrey:  tcell.ColorGray,
	video.Black:     tcell.ColorBlack,
}

// halfBlock packs two vertically adjacent pixels into one cell: the upper
// half block in the top colour over the bottom colour as background.
func halfBlock(top, bottom video.Shade) (rune, tcell.Style) {
	if top == bottom {
		return '█', tcell.StyleDefault.Foreground(shadeColors[top]).Background(shadeColors[top])
	}
	return '▀', tcell.StyleDefault.Foreground(shadeColors[top]).Background(shadeColors[bottom])
}

func (t *Backend) render(frame *video.FrameBuffer) {
	termWidth, termHeight := t.screen.Size()
	t.screen.Clear()

	if termWidth < minTermWidth || termHeight < minTermHeight {
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		t.drawText(0, termHeight/2, termWidth, msg, tcell.StyleDefault.Foreground(tcell.ColorRed))
		return
	}

	t.drawBorders(termWidth, termHeight)
	t.drawGameBoy(frame)
	t.drawLogs(termWidth, termHeight)

	if t.config.Status != nil {
		t.drawText(0, termHeight-2, termWidth, t.config.Status(), tcell.StyleDefault.Foreground(tcell.ColorGreen))
	}
}

func (t *Backend) drawText(x, y, maxWidth int, text string, style tcell.Style) {
	col := 0
	for _, ch := range text {
		if col >= maxWidth {
			return
		}
		t.screen.SetContent(x+col, y, ch, nil, style)
		col++
	}
}

func (t *Backend) drawBorders(termWidth, termHeight int) {
	borderStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	for y := range termHeight - 2 {
		t.screen.SetContent(dividerX, y, '│', nil, borderStyle)
	}

	title := " Game Boy "
	if t.config.Title != "" {
		title = " " + t.config.Title + " "
	}
	t.drawText(1, 0, dividerX-1, title, titleStyle)
	t.drawText(rightPanelX, 0, termWidth-rightPanelX, " Logs ", titleStyle)

	help := " Z/X=A/B Enter=Start Backspace=Select SPACE=pause F=frame F12=snapshot ESC=quit "
	t.drawText(0, termHeight-1, termWidth, help, borderStyle)
}

func (t *Backend) drawGameBoy(frame *video.FrameBuffer) {
	shades := frame.Shades()
	for row := range gameRows {
		y := row * 2
		for x := range width {
			ch, style := halfBlock(shades[y*width+x], shades[(y+1)*width+x])
			t.screen.SetContent(x, row+1, ch, nil, style)
		}
	}
}

func (t *Backend) drawLogs(termWidth, termHeight int) {
	panelWidth := termWidth - rightPanelX
	rows := termHeight - 3
	if panelWidth <= 0 || rows <= 0 {
		return
	}

	for i, entry := range t.logBuffer.GetRecent(rows) {
		style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
		switch {
		case entry.Level >= slog.LevelError:
			style = style.Foreground(tcell.ColorRed)
		case entry.Level >= slog.LevelWarn:
			style = style.Foreground(tcell.ColorYellow)
		case entry.Level < slog.LevelInfo:
			style = style.Foreground(tcell.ColorGray)
		}
		t.drawText(rightPanelX, 1+i, panelWidth, FormatLogEntry(entry), style)
	}
}
