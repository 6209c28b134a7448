package fetch

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"govtoken-analytics/internal/config"
	"govtoken-analytics/internal/domain"
)

// callState is the bounded state machine maps each retry loop
// onto: {Idle -> InFlight -> Backoff -> InFlight -> Done/Failed}.
type callState int

const (
	stateIdle callState = iota
	stateInFlight
	stateBackoff
	stateDone
	stateFailed
)

// retryOutcome is returned by callWithRetry to let the caller update
// per-source attempt counters without re-deriving them from the error.
type retryOutcome struct {
	Attempts int
	Err      error
}

// callWithRetry executes fn, retrying on KindTransientUnavailable and
// KindRateLimited per cfg.Retry.MaxAttempts with exponential backoff and
// jitter (backoffDelay). A RateLimited error carrying a server-suggested
// RetryAfter overrides the computed delay rule 2.
// AuthMissing, NotSupported, PermanentSchema, and Validation errors are
// not retried — the state machine moves straight to Failed.
func callWithRetry(
	ctx context.Context,
	log *slog.Logger,
	rng *rand.Rand,
	cfg config.RetryConfig,
	sourceID string,
	fn func(context.Context) error,
) retryOutcome {
	state := stateIdle
	attempt := 0

	for {
		switch state {
		case stateIdle, stateBackoff:
			state = stateInFlight
			attempt++

			err := fn(ctx)
			if err == nil {
				state = stateDone
				return retryOutcome{Attempts: attempt, Err: nil}
			}

			kind := domain.KindOf(err)
			if kind == domain.KindCancelled || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				state = stateFailed
				return retryOutcome{Attempts: attempt, Err: err}
			}
			if !kind.Retryable() || attempt >= cfg.MaxAttempts {
				state = stateFailed
				return retryOutcome{Attempts: attempt, Err: err}
			}

			delay := backoffDelay(rng, cfg, attempt-1)
			var de *domain.Error
			if errors.As(err, &de) && de.Kind == domain.KindRateLimited && de.RetryAfter > 0 {
				delay = time.Duration(de.RetryAfter * float64(time.Second))
			}

			log.Debug("retrying call", "source", sourceID, "attempt", attempt, "kind", kind, "delay", delay)
			state = stateBackoff

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return retryOutcome{Attempts: attempt, Err: domain.NewError(domain.KindCancelled, sourceID, ctx.Err())}
			}
		default:
			return retryOutcome{Attempts: attempt, Err: errors.New("fetch: unreachable retry state")}
		}
	}
}
