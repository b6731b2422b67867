package engine

import (
	"math/rand/v2"
	"time"
)

// backoff returns the delay before retry attempt n (0-indexed): the
// base doubled per attempt, capped, plus up to 50% jitter.
func backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d + jitter
}
