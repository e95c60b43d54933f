package engine

import (
	"time"

	"github.com/ClementAbb/uniformity-illusion/design"
)

// Opacity returns the stimulus opacity at elapsed time now for a trial
// occupying w. Ramps are linear over fade and clamped to [0, 1]. When the
// two ramps overlap the lower value wins.
func Opacity(now time.Duration, w design.Window, fade time.Duration, fadeIn, fadeOut bool) float64 {
	o := 1.0
	if fade <= 0 {
		return o
	}
	if fadeIn && now < w.Start+fade {
		o = min(o, clamp01(float64(now-w.Start)/float64(fade)))
	}
	if fadeOut && now > w.End-fade {
		o = min(o, clamp01(float64(w.End-now)/float64(fade)))
	}
	return o
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Flicker alternates between two pattern variants on a fixed cadence.
// The next toggle time advances by whole intervals from the phase start,
// so uneven frame times never shift the cadence.
type Flicker struct {
	interval time.Duration
	next     time.Duration
	variant  int
}

func NewFlicker(start, interval time.Duration) *Flicker {
	return &Flicker{interval: interval, next: start + interval}
}

// Advance moves the cadence up to now and returns the active variant.
func (f *Flicker) Advance(now time.Duration) int {
	if f.interval <= 0 {
		return f.variant
	}
	for now >= f.next {
		f.variant ^= 1
		f.next += f.interval
	}
	return f.variant
}
