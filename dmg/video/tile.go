package video

import "github.com/valerio/dotmatrix/dmg/bit"

const tileBytes = 16

// TileRow represents one row of a tile pattern (8 pixels).
//
// Game Boy tiles are 8x8 pixels, with 2 bits per pixel allowing 4 colors.
// Each tile row uses 2 bytes in a bit-plane format:
//
//	Byte 1 (Low):  Bit plane 0 - provides bit 0 of each pixel's color
//	Byte 2 (High): Bit plane 1 - provides bit 1 of each pixel's color
//
// Bit 7 represents the leftmost pixel, bit 0 the rightmost:
//
//	Bit:     7 6 5 4 3 2 1 0
//	Pixel:   0 1 2 3 4 5 6 7
//
// Example: Bytes $3C and $7E represent a row:
//
//	Low  (0x3C): 0 0 1 1 1 1 0 0
//	High (0x7E): 0 1 1 1 1 1 1 0
//	            -----------------
//	Colors:      0 2 3 3 3 3 2 0
//
// The colour index becomes a shade through BGP for background and window,
// OBP0/OBP1 for sprites. For sprites, index 0 is always transparent.
type TileRow struct {
	Low  byte
	High byte
}

// GetPixel extracts a pixel color index (0-3). pixelX 0 is the leftmost pixel.
func (t TileRow) GetPixel(pixelX int) uint8 {
	return t.pixelAt(uint8(7 - pixelX))
}

// GetPixelFlipped is GetPixel for a horizontally flipped sprite.
func (t TileRow) GetPixelFlipped(pixelX int) uint8 {
	return t.pixelAt(uint8(pixelX))
}

func (t TileRow) pixelAt(bitIndex uint8) uint8 {
	return bit.Value(bitIndex, t.Low) | bit.Value(bitIndex, t.High)<<1
}

// tileRowAt reads a tile row from VRAM. offset is relative to 0x8000.
func (g *GPU) tileRowAt(offset int) TileRow {
	return TileRow{Low: g.vram[offset], High: g.vram[offset+1]}
}

// bgTileRow resolves a BG/window tile index through the addressing mode
// selected by LCDC bit 4: unsigned from 0x8000 or signed around 0x9000.
func (g *GPU) bgTileRow(tileIndex uint8, line int) TileRow {
	var base int
	if bit.IsSet(uint8(bgWindowTileDataSelect), g.lcdc) {
		base = int(tileIndex) * tileBytes
	} else {
		base = 0x1000 + int(int8(tileIndex))*tileBytes
	}
	return g.tileRowAt(base + line*2)
}

// paletteShade maps a colour index through a palette register.
func paletteShade(palette, colorIndex uint8) Shade {
	return Shade(palette>>(colorIndex*2)) & 3
}
