package fetch

import (
	"context"

	"golang.org/x/time/rate"

	"govtoken-analytics/internal/circuitbreaker"
	"govtoken-analytics/internal/domain"
	"govtoken-analytics/internal/telemetry"
)

// sourceGuard bounds concurrency and paces calls to a single provider
// source: a token bucket over golang.org/x/time/rate plus a counted
// semaphore and a circuit breaker so a source failing faster than
// retry-exhaustion can detect gets skipped outright.
type sourceGuard struct {
	sourceID string
	limiter  *rate.Limiter
	sem      chan struct{} // counted semaphore, capacity = per-source concurrency cap
	queue    chan struct{} // bounded wait queue; full queue => RateLimited immediately
	breaker  *circuitbreaker.Breaker
}

func newSourceGuard(sourceID string, rps float64, burst, concurrency, queueDepth int) *sourceGuard {
	return &sourceGuard{
		sourceID: sourceID,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		sem:      make(chan struct{}, concurrency),
		queue:    make(chan struct{}, queueDepth),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}),
	}
}

// acquire blocks until a concurrency slot and rate-limiter token are both
// available. It returns TransientUnavailable immediately if the circuit
// breaker is open, or RateLimited immediately if the bounded wait queue
// is already full.
func (g *sourceGuard) acquire(ctx context.Context) (release func(), err error) {
	if breakerErr := g.breaker.Allow(); breakerErr != nil {
		telemetry.CircuitBreakerOpenTotal.WithLabelValues(g.sourceID).Inc()
		return nil, domain.NewError(domain.KindTransientUnavailable, g.sourceID, breakerErr)
	}

	select {
	case g.sem <- struct{}{}:
	default:
		select {
		case g.queue <- struct{}{}:
		default:
			return nil, domain.NewError(domain.KindRateLimited, g.sourceID, errBoundedQueueFull)
		}

		select {
		case g.sem <- struct{}{}:
		case <-ctx.Done():
			<-g.queue
			return nil, domain.NewError(domain.KindCancelled, g.sourceID, ctx.Err())
		}
		<-g.queue
	}

	if err := g.limiter.Wait(ctx); err != nil {
		<-g.sem
		return nil, domain.NewError(domain.KindCancelled, g.sourceID, err)
	}

	return func() { <-g.sem }, nil
}

// state reports the guard's circuit breaker state for the status
// subcommand; it does not itself gate calls.
func (g *sourceGuard) state() circuitbreaker.State {
	return g.breaker.GetState()
}

func (g *sourceGuard) recordOutcome(err error) {
	g.breaker.RecordOutcome(err, func(e error) bool { return domain.KindOf(e).Retryable() })
}

var errBoundedQueueFull = boundedQueueFullError{}

type boundedQueueFullError struct{}

func (boundedQueueFullError) Error() string { return "fetch: bounded wait queue full" }
