package video

import "github.com/valerio/dotmatrix/dmg/bit"

const (
	oamSize           = 0xA0
	spriteCount       = 40
	maxSpritesPerLine = 10
)

// Sprite represents a single object in OAM, positions already adjusted for
// the hardware offsets (Y-16, X-8), so both may be negative.
type Sprite struct {
	Y         int
	X         int
	TileIndex uint8
	Flags     uint8
	OAMIndex  int
	Height    int

	PaletteOBP1 bool
	FlipX       bool
	FlipY       bool
	BehindBG    bool
}

func (s *Sprite) parseFlags() {
	s.PaletteOBP1 = bit.IsSet(4, s.Flags)
	s.FlipX = bit.IsSet(5, s.Flags)
	s.FlipY = bit.IsSet(6, s.Flags)
	s.BehindBG = bit.IsSet(7, s.Flags)
}

// rowOffset returns the VRAM offset of the tile row the sprite shows on line.
func (s *Sprite) rowOffset(line int) int {
	row := line - s.Y
	if s.FlipY {
		row = s.Height - 1 - row
	}
	tile := int(s.TileIndex)
	if s.Height == 16 {
		tile &^= 1
	}
	return tile*tileBytes + row*2
}

// OAM is object attribute memory: 40 sprites of 4 bytes each.
type OAM struct {
	data         [oamSize]byte
	spriteBuffer [maxSpritesPerLine]Sprite
}

func (o *OAM) Read(index int) byte {
	return o.data[index]
}

func (o *OAM) Write(index int, value byte) {
	o.data[index] = value
}

// Sprite decodes the sprite at index (0-39).
func (o *OAM) Sprite(index, height int) Sprite {
	base := index * 4
	s := Sprite{
		Y:         int(o.data[base]) - 16,
		X:         int(o.data[base+1]) - 8,
		TileIndex: o.data[base+2],
		Flags:     o.data[base+3],
		OAMIndex:  index,
		Height:    height,
	}
	s.parseFlags()
	return s
}

// SpritesForScanline returns the first 10 sprites, in OAM order, whose rows
// cover the line. X plays no part in selection, so sprites that are off
// screen horizontally still count towards the limit.
func (o *OAM) SpritesForScanline(line, height int) []Sprite {
	sprites := o.spriteBuffer[:0]
	for i := range spriteCount {
		y := int(o.data[i*4]) - 16
		if y <= line && line < y+height {
			sprites = append(sprites, o.Sprite(i, height))
			if len(sprites) == maxSpritesPerLine {
				break
			}
		}
	}
	return sprites
}
