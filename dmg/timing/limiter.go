package timing

import (
	"time"

	"github.com/valerio/dotmatrix/dmg/video"
)

// Limiter paces the run loop to the console's refresh rate.
type Limiter interface {
	// WaitForNextFrame blocks until it's time for the next frame.
	// Returns immediately if timing is behind schedule.
	WaitForNextFrame()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't limit (for headless mode).
func NewNoOpLimiter() Limiter {
	return noOpLimiter{}
}

type noOpLimiter struct{}

func (noOpLimiter) WaitForNextFrame() {}
func (noOpLimiter) Reset()            {}

// CPUFrequency is the DMG master clock in Hz.
const CPUFrequency = 4194304

// TargetFPS is the exact DMG frame rate, about 59.73.
func TargetFPS() float64 {
	return float64(CPUFrequency) / float64(video.CyclesPerFrame)
}

// FrameDuration returns the target duration of a single frame.
func FrameDuration() time.Duration {
	return time.Duration(float64(time.Second) / TargetFPS())
}
