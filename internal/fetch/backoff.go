package fetch

import (
	"math"
	"math/rand/v2"
	"time"

	"govtoken-analytics/internal/config"
)

// backoffDelay computes delay = base * 2^attempt, capped at ceiling, times
// a uniform jitter factor in [0.5, 1.5]. attempt is
// zero-based (the first retry uses attempt=0).
func backoffDelay(rng *rand.Rand, cfg config.RetryConfig, attempt int) time.Duration {
	base := cfg.Base()
	ceiling := cfg.Ceiling()

	scaled := float64(base) * math.Pow(2, float64(attempt))
	if scaled > float64(ceiling) {
		scaled = float64(ceiling)
	}
	jitter := 0.5 + rng.Float64() // uniform in [0.5, 1.5]
	d := time.Duration(scaled * jitter)
	if d > ceiling {
		d = ceiling
	}
	return d
}
