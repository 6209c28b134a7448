package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govtoken-analytics/internal/circuitbreaker"
	"govtoken-analytics/internal/domain"
)

func TestSourceGuard_AcquireAndReleaseRoundTrips(t *testing.T) {
	g := newSourceGuard("etherscan", 1000, 10, 2, 4)
	release, err := g.acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestSourceGuard_QueueFullReturnsRateLimited(t *testing.T) {
	g := newSourceGuard("etherscan", 1000, 10, 1, 0)
	release, err := g.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = g.acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindRateLimited, domain.KindOf(err))
}

func TestSourceGuard_RecordOutcomeOpensBreakerAfterThreshold(t *testing.T) {
	g := newSourceGuard("etherscan", 1000, 10, 5, 5)
	failure := domain.NewError(domain.KindTransientUnavailable, "etherscan", assertErr{})
	for i := 0; i < 5; i++ {
		g.recordOutcome(failure)
	}
	_, err := g.acquire(context.Background())
	assert.Error(t, err)
	assert.Equal(t, domain.KindTransientUnavailable, domain.KindOf(err))
}

func TestSourceGuard_StateReflectsBreakerTransitions(t *testing.T) {
	g := newSourceGuard("etherscan", 1000, 10, 5, 5)
	assert.Equal(t, circuitbreaker.StateClosed, g.state())

	failure := domain.NewError(domain.KindTransientUnavailable, "etherscan", assertErr{})
	for i := 0; i < 5; i++ {
		g.recordOutcome(failure)
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.state())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
