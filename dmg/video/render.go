package video

import "github.com/valerio/dotmatrix/dmg/addr"

const (
	tileMapWidth  = 32
	windowXOffset = 7
	windowMaxX    = 166
)

func (g *GPU) windowVisibleOnLine() bool {
	return g.lcdcFlag(windowDisplayEnable) && g.windowStarted && g.wx <= windowMaxX
}

// renderScanline draws line LY into the back buffer.
func (g *GPU) renderScanline() {
	line := int(g.ly)

	if g.lcdcFlag(bgDisplay) {
		g.renderBackground(line)
		g.renderWindow(line)
	} else {
		for x := range FramebufferWidth {
			g.bgIndex[x] = 0
			g.back.SetShade(x, line, White)
		}
	}

	if g.lcdcFlag(spriteDisplayEnable) {
		g.renderSprites(line)
	}
}

func (g *GPU) tileMapBase(flag lcdcFlag) int {
	if g.lcdcFlag(flag) {
		return int(addr.TileMap1 - addr.VRAMStart)
	}
	return int(addr.TileMap0 - addr.VRAMStart)
}

func (g *GPU) renderBackground(line int) {
	mapBase := g.tileMapBase(bgTileMapDisplaySelect)
	y := (line + int(g.scy)) & 0xFF
	mapRow := mapBase + (y/8)*tileMapWidth

	for x := range FramebufferWidth {
		bgX := (x + int(g.scx)) & 0xFF
		tileIndex := g.vram[mapRow+bgX/8]
		color := g.bgTileRow(tileIndex, y%8).GetPixel(bgX % 8)

		g.bgIndex[x] = color
		g.back.SetShade(x, line, paletteShade(g.bgp, color))
	}
}

// renderWindow draws the window over the background. The window keeps its
// own line counter, which only advances on lines where it was drawn.
func (g *GPU) renderWindow(line int) {
	if !g.windowVisibleOnLine() {
		return
	}

	mapBase := g.tileMapBase(windowTileMapSelect)
	mapRow := mapBase + (g.windowLine/8)*tileMapWidth
	left := int(g.wx) - windowXOffset

	for x := max(left, 0); x < FramebufferWidth; x++ {
		winX := x - left
		tileIndex := g.vram[mapRow+winX/8]
		color := g.bgTileRow(tileIndex, g.windowLine%8).GetPixel(winX % 8)

		g.bgIndex[x] = color
		g.back.SetShade(x, line, paletteShade(g.bgp, color))
	}
	g.windowLine++
}

func (g *GPU) renderSprites(line int) {
	sprites := g.oam.SpritesForScanline(line, g.spriteHeight())
	g.priority.Clear()

	for i := range sprites {
		sprite := &sprites[i]
		row := g.tileRowAt(sprite.rowOffset(line))
		for px := range 8 {
			var color uint8
			if sprite.FlipX {
				color = row.GetPixelFlipped(px)
			} else {
				color = row.GetPixel(px)
			}
			g.priority.TryClaimPixel(sprite.X+px, sprite, color)
		}
	}

	for x := range FramebufferWidth {
		sprite, color := g.priority.pixel(x)
		if sprite == nil {
			continue
		}
		if sprite.BehindBG && g.bgIndex[x] != 0 {
			continue
		}
		palette := g.obp0
		if sprite.PaletteOBP1 {
			palette = g.obp1
		}
		g.back.SetShade(x, line, paletteShade(palette, color))
	}
}
