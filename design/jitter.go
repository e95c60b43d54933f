package design

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultJitter is the jitter set used by both paradigm versions.
var DefaultJitter = []time.Duration{
	-time.Second,
	-500 * time.Millisecond,
	0,
	500 * time.Millisecond,
	time.Second,
}

// PlanJitter returns n jitter values. Each value occurs n/len(values) times,
// the remainder is filled with zero and the whole sequence is shuffled.
func PlanJitter(n int, values []time.Duration, rng *rand.Rand) ([]time.Duration, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("plan jitter: empty jitter set: %w", ErrConfigMismatch)
	}
	if n < 0 {
		return nil, fmt.Errorf("plan jitter: negative length %d: %w", n, ErrConfigMismatch)
	}

	out := make([]time.Duration, 0, n)
	for i := 0; i < n/len(values); i++ {
		out = append(out, values...)
	}
	for len(out) < n {
		out = append(out, 0)
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}
