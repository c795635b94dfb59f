package timing

import (
	"log/slog"
	"time"
)

const (
	busyWaitThreshold = 2 * time.Millisecond
	maxLag            = 5 * time.Millisecond
	driftCheckFrames  = 60
	maxDrift          = 10 * time.Millisecond
)

// AdaptiveLimiter sleeps for most of the frame and busy-waits the last
// couple of milliseconds. Falling more than maxLag behind resynchronises
// instead of trying to catch up.
type AdaptiveLimiter struct {
	targetFrameTime time.Duration
	nextFrameTime   time.Time
	frameCounter    int64
}

func NewAdaptiveLimiter() *AdaptiveLimiter {
	return &AdaptiveLimiter{
		targetFrameTime: FrameDuration(),
		nextFrameTime:   time.Now(),
	}
}

func (a *AdaptiveLimiter) WaitForNextFrame() {
	now := time.Now()
	sleepTime := a.nextFrameTime.Sub(now)

	switch {
	case sleepTime > busyWaitThreshold:
		time.Sleep(sleepTime - time.Millisecond)
		spinUntil(a.nextFrameTime)
	case sleepTime > 0:
		spinUntil(a.nextFrameTime)
	case sleepTime < -maxLag:
		a.nextFrameTime = now
	}

	a.nextFrameTime = a.nextFrameTime.Add(a.targetFrameTime)
	a.frameCounter++

	if a.frameCounter%driftCheckFrames == 0 {
		drift := time.Since(a.nextFrameTime.Add(-a.targetFrameTime))
		if drift.Abs() > maxDrift {
			a.nextFrameTime = a.nextFrameTime.Add(drift / 10)
			slog.Debug("Frame timing drift correction", "drift_ms", drift.Milliseconds())
		}
	}
}

func (a *AdaptiveLimiter) Reset() {
	a.nextFrameTime = time.Now()
	a.frameCounter = 0
}

func spinUntil(deadline time.Time) {
	for time.Now().Before(deadline) {
	}
}
