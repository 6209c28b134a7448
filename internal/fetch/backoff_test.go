package fetch

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"govtoken-analytics/internal/config"
)

func TestBackoffDelay_NeverExceedsCeiling(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	cfg := config.RetryConfig{BaseMS: 100, CeilingMS: 2000, MaxAttempts: 5}
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDelay(rng, cfg, attempt)
		assert.LessOrEqual(t, d, cfg.Ceiling())
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestBackoffDelay_GrowsWithAttemptBeforeCeiling(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	cfg := config.RetryConfig{BaseMS: 100, CeilingMS: 1_000_000, MaxAttempts: 10}

	prev := time.Duration(0)
	for attempt := 0; attempt < 5; attempt++ {
		// average out jitter by sampling several draws per attempt
		var sum time.Duration
		const samples = 200
		for i := 0; i < samples; i++ {
			sum += backoffDelay(rng, cfg, attempt)
		}
		avg := sum / samples
		assert.Greater(t, avg, prev)
		prev = avg
	}
}
