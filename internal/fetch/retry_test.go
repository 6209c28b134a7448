package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govtoken-analytics/internal/config"
	"govtoken-analytics/internal/domain"
)

func testRetryLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRetryRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestCallWithRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	outcome := callWithRetry(context.Background(), testRetryLogger(), testRetryRNG(), config.RetryConfig{BaseMS: 1, CeilingMS: 2, MaxAttempts: 3}, "src", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, outcome.Err)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	outcome := callWithRetry(context.Background(), testRetryLogger(), testRetryRNG(), config.RetryConfig{BaseMS: 1, CeilingMS: 2, MaxAttempts: 5}, "src", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.NewError(domain.KindTransientUnavailable, "src", errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, outcome.Err)
	assert.Equal(t, 3, outcome.Attempts)
}

func TestCallWithRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	outcome := callWithRetry(context.Background(), testRetryLogger(), testRetryRNG(), config.RetryConfig{BaseMS: 1, CeilingMS: 2, MaxAttempts: 2}, "src", func(ctx context.Context) error {
		calls++
		return domain.NewError(domain.KindTransientUnavailable, "src", errors.New("always flaky"))
	})
	require.Error(t, outcome.Err)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, 2, calls)
}

func TestCallWithRetry_AuthMissingNeverRetries(t *testing.T) {
	calls := 0
	outcome := callWithRetry(context.Background(), testRetryLogger(), testRetryRNG(), config.RetryConfig{BaseMS: 1, CeilingMS: 2, MaxAttempts: 5}, "src", func(ctx context.Context) error {
		calls++
		return domain.NewError(domain.KindAuthMissing, "src", errors.New("no key"))
	})
	require.Error(t, outcome.Err)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_HonorsServerSuppliedRetryAfter(t *testing.T) {
	calls := 0
	outcome := callWithRetry(context.Background(), testRetryLogger(), testRetryRNG(), config.RetryConfig{BaseMS: 1, CeilingMS: 2, MaxAttempts: 2}, "src", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return domain.NewRateLimited("src", 0.001, errors.New("rate limited"))
		}
		return nil
	})
	require.NoError(t, outcome.Err)
	assert.Equal(t, 2, outcome.Attempts)
}

func TestCallWithRetry_ContextCancellationDuringBackoffStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	outcome := callWithRetry(ctx, testRetryLogger(), testRetryRNG(), config.RetryConfig{BaseMS: 10_000, CeilingMS: 20_000, MaxAttempts: 5}, "src", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return domain.NewError(domain.KindTransientUnavailable, "src", errors.New("flaky"))
	})
	require.Error(t, outcome.Err)
	assert.Equal(t, domain.KindCancelled, domain.KindOf(outcome.Err))
}

func TestCallWithRetry_ContextCanceledErrorStopsImmediately(t *testing.T) {
	calls := 0
	outcome := callWithRetry(context.Background(), testRetryLogger(), testRetryRNG(), config.RetryConfig{BaseMS: 1, CeilingMS: 2, MaxAttempts: 5}, "src", func(ctx context.Context) error {
		calls++
		return context.Canceled
	})
	require.Error(t, outcome.Err)
	assert.Equal(t, 1, calls)
}
