package video

// SpritePriorityBuffer resolves which sprite owns each pixel of a scanline,
// see https://gbdev.io/pandocs/OAM.html#drawing-priority.
//
// On the DMG:
//   - sprites with lower X coordinates have priority
//   - when X coordinates match, lower OAM indices win.
//
// Only opaque pixels are claimed, so a transparent pixel of a higher priority
// sprite lets a lower priority sprite show through:
//
//	Pixels:     0  1  2  3  4  5  6  7  8  9 10 11 12
//	Sprite 0:         [--A-- .  .  .  . ]            (X=2, OAM=0, right half transparent)
//	Sprite 1:                  [-----B-----]         (X=5, OAM=1)
//	Result:           [--A--][-----B-----]
//
// The winning sprite's own BG priority bit is then applied against the
// background by the compositor; a losing sprite never reappears there.
type SpritePriorityBuffer struct {
	// -1 means unowned
	ownerIndex [FramebufferWidth]int
	ownerX     [FramebufferWidth]int
	color      [FramebufferWidth]uint8
	sprite     [FramebufferWidth]*Sprite
}

// Clear resets the buffer for a new scanline
func (s *SpritePriorityBuffer) Clear() {
	for i := range FramebufferWidth {
		s.ownerIndex[i] = -1
		s.ownerX[i] = 0xFF
		s.color[i] = 0
		s.sprite[i] = nil
	}
}

// TryClaimPixel claims pixelX for sprite when it outranks the current owner.
// colorIndex 0 is transparent and never claims.
func (s *SpritePriorityBuffer) TryClaimPixel(pixelX int, sprite *Sprite, colorIndex uint8) bool {
	if pixelX < 0 || pixelX >= FramebufferWidth || colorIndex == 0 {
		return false
	}

	current := s.ownerIndex[pixelX]
	currentX := s.ownerX[pixelX]
	wins := current == -1 ||
		sprite.X < currentX ||
		(sprite.X == currentX && sprite.OAMIndex < current)
	if !wins {
		return false
	}

	s.ownerIndex[pixelX] = sprite.OAMIndex
	s.ownerX[pixelX] = sprite.X
	s.color[pixelX] = colorIndex
	s.sprite[pixelX] = sprite
	return true
}

// pixel returns the owning sprite and its colour index, nil when unowned.
func (s *SpritePriorityBuffer) pixel(pixelX int) (*Sprite, uint8) {
	return s.sprite[pixelX], s.color[pixelX]
}
