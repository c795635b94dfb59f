package video

const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
)

// Shade is one of the four DMG grey levels, the value a palette maps a colour
// index to.
type Shade uint8

const (
	White Shade = iota
	LightGrey
	DarkGrey
	Black
)

// GBColor is a shade rendered as RGBA.
type GBColor uint32

const (
	WhiteColor     GBColor = 0xFFFFFFFF
	LightGreyColor GBColor = 0x989898FF
	DarkGreyColor  GBColor = 0x4C4C4CFF
	BlackColor     GBColor = 0x000000FF
)

var shadeColors = [4]GBColor{WhiteColor, LightGreyColor, DarkGreyColor, BlackColor}

// grey levels matching shadeColors
var shadeGrey = [4]uint8{0xFF, 0x98, 0x4C, 0x00}

func (s Shade) Color() GBColor {
	return shadeColors[s&3]
}

// FrameBuffer is a 160x144 grid of shades.
type FrameBuffer struct {
	width  int
	height int
	buffer []Shade
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		width:  FramebufferWidth,
		height: FramebufferHeight,
		buffer: make([]Shade, FramebufferWidth*FramebufferHeight),
	}
}

func (fb *FrameBuffer) Width() int  { return fb.width }
func (fb *FrameBuffer) Height() int { return fb.height }

func (fb *FrameBuffer) GetShade(x, y int) Shade {
	return fb.buffer[y*fb.width+x]
}

func (fb *FrameBuffer) SetShade(x, y int, shade Shade) {
	fb.buffer[y*fb.width+x] = shade
}

// GetPixel returns the RGBA colour at (x, y).
func (fb *FrameBuffer) GetPixel(x, y int) uint32 {
	return uint32(fb.GetShade(x, y).Color())
}

// ToSlice returns the frame as RGBA values, row major.
func (fb *FrameBuffer) ToSlice() []uint32 {
	out := make([]uint32, len(fb.buffer))
	for i, s := range fb.buffer {
		out[i] = uint32(s.Color())
	}
	return out
}

// ToGrayscale returns the frame as 8 bit grey levels, row major.
func (fb *FrameBuffer) ToGrayscale() []uint8 {
	out := make([]uint8, len(fb.buffer))
	for i, s := range fb.buffer {
		out[i] = shadeGrey[s&3]
	}
	return out
}

// Shades exposes the raw shade slice. Callers must not modify it.
func (fb *FrameBuffer) Shades() []Shade {
	return fb.buffer
}

func (fb *FrameBuffer) CopyFrom(other *FrameBuffer) {
	copy(fb.buffer, other.buffer)
}

func (fb *FrameBuffer) Clear() {
	for i := range fb.buffer {
		fb.buffer[i] = White
	}
}
