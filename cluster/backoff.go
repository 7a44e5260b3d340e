package cluster

import (
	"math/rand/v2"
	"time"
)

// fullJitterBackoff implements exponential backoff with full jitter
// (spec §4.6): a uniformly random duration between 0 and
// min(max, base*2^attempt). attempt is 0-indexed (0 = first retry).
func fullJitterBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	ceiling := base
	for i := 0; i < attempt && ceiling < max; i++ {
		ceiling *= 2
	}
	if ceiling > max {
		ceiling = max
	}
	if ceiling <= 0 {
		return 0
	}

	return time.Duration(rand.Int64N(int64(ceiling)))
}
