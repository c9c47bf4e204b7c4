// timer/timer.go
package timer

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Provider returns how long the music plays in the next round.
type Provider func() time.Duration

// Fixed always returns d.
func Fixed(d time.Duration) Provider {
	return func() time.Duration { return d }
}

// Uniform draws durations uniformly from [min, max] at millisecond granularity.
// If max <= min it behaves like Fixed(min).
func Uniform(min, max time.Duration) Provider {
	return UniformWithSource(min, max, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
}

// UniformWithSource is Uniform with a caller supplied generator, for repeatable runs.
func UniformWithSource(min, max time.Duration, rng *rand.Rand) Provider {
	if max <= min {
		return Fixed(min)
	}
	span := int64((max - min) / time.Millisecond)
	var mu sync.Mutex
	return func() time.Duration {
		mu.Lock()
		n := rng.Int64N(span + 1)
		mu.Unlock()
		return min + time.Duration(n)*time.Millisecond
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
