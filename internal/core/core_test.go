package core

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"govtoken-analytics/internal/config"
	"govtoken-analytics/internal/domain"
	"govtoken-analytics/internal/obs"
	obsmocks "govtoken-analytics/internal/obs/mocks"
	"govtoken-analytics/internal/provider"
	"govtoken-analytics/internal/snapshotstore"
	storemocks "govtoken-analytics/internal/snapshotstore/mocks"
	"govtoken-analytics/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func simulatorOnlyConfig() config.Config {
	cfg := config.Defaults()
	cfg.FallbackChains = config.FallbackChains{
		Holders:     []string{"simulator"},
		Proposals:   []string{"simulator"},
		Votes:       []string{"simulator"},
		Delegations: []string{"simulator"},
	}
	cfg.Simulator.Seed = 11
	return cfg
}

func newTestCore(t *testing.T) (*Core, snapshotstore.Store) {
	t.Helper()
	store := snapshotstore.NewMemStore()
	health := telemetry.NewHealthRecorder()
	logger := testLogger()
	c := New(simulatorOnlyConfig(), provider.NewRegistry(), store, obs.NoopNotifier{}, health, logger)
	return c, store
}

func TestBuildSnapshot_DegradesToSimulatorWhenNoAdaptersConfigured(t *testing.T) {
	c, _ := newTestCore(t)
	protocol := provider.ResolveProtocol("compound")
	protocol.Supply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-30 * 24 * time.Hour)

	snapshot, err := c.BuildSnapshot(context.Background(), protocol, since, until)
	require.NoError(t, err)
	assert.True(t, snapshot.Degraded)
	assert.Equal(t, domain.ProvenanceSimulated, snapshot.Provenance)
	assert.NotEmpty(t, snapshot.Holders)
	assert.NotZero(t, snapshot.Metrics.Concentration.Gini)
}

func TestBuildSnapshot_PersistsToStore(t *testing.T) {
	c, store := newTestCore(t)
	protocol := provider.ResolveProtocol("compound")
	protocol.Supply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	until := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-30 * 24 * time.Hour)

	_, err := c.BuildSnapshot(context.Background(), protocol, since, until)
	require.NoError(t, err)

	got, ok, err := store.Get(context.Background(), protocol.ID, until)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, protocol.ID, got.Protocol.ID)
}

func TestBuildSnapshotWithLimit_ZeroFallsBackToDefault(t *testing.T) {
	c, _ := newTestCore(t)
	protocol := provider.ResolveProtocol("compound")
	protocol.Supply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	until := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-30 * 24 * time.Hour)

	snapshot, err := c.BuildSnapshotWithLimit(context.Background(), protocol, since, until, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(snapshot.Holders), defaultHolderLimit)
}

func TestFetchStatus_ReportsSimulatorRunLeavesNoGuardedSources(t *testing.T) {
	c, _ := newTestCore(t)
	protocol := provider.ResolveProtocol("compound")
	protocol.Supply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	until := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-30 * 24 * time.Hour)
	_, err := c.BuildSnapshot(context.Background(), protocol, since, until)
	require.NoError(t, err)

	sources, cacheStatus := c.FetchStatus()
	assert.Empty(t, sources, "simulator fallback never reaches a guarded provider source")
	require.Len(t, cacheStatus, 4)
}

func TestBuildSnapshot_PutsExactlyOnceAndSendsExactlyOneDegradedNotice(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storemocks.NewMockStore(ctrl)
	notifier := obsmocks.NewMockNotifier(ctrl)

	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	notifier.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, notice obs.Notice) error {
			assert.Equal(t, obs.NoticeDegraded, notice.Kind)
			return nil
		}).
		Times(1)

	c := New(simulatorOnlyConfig(), provider.NewRegistry(), store, notifier, telemetry.NewHealthRecorder(), testLogger())
	protocol := provider.ResolveProtocol("compound")
	protocol.Supply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	until := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-30 * 24 * time.Hour)

	snapshot, err := c.BuildSnapshot(context.Background(), protocol, since, until)
	require.NoError(t, err)
	assert.True(t, snapshot.Degraded)
}

// stallingAdapter never returns on its own; every method blocks until
// ctx is done and then reports the cancellation the way a real
// provider.ProviderAdapter's httpclient.go does, wrapped as
// domain.KindCancelled rather than a bare context error.
type stallingAdapter struct{ sourceID string }

func (s *stallingAdapter) SourceID() string { return s.sourceID }

func (s *stallingAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (provider.HolderPage, error) {
	<-ctx.Done()
	return provider.HolderPage{}, domain.NewError(domain.KindCancelled, s.sourceID, ctx.Err())
}

func (s *stallingAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	<-ctx.Done()
	return nil, domain.NewError(domain.KindCancelled, s.sourceID, ctx.Err())
}

func (s *stallingAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	<-ctx.Done()
	return nil, domain.NewError(domain.KindCancelled, s.sourceID, ctx.Err())
}

func (s *stallingAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	<-ctx.Done()
	return nil, domain.NewError(domain.KindCancelled, s.sourceID, ctx.Err())
}

func TestBuildSnapshot_DeadlineWhilePrimarySourceStallsReturnsCancelledQuicklyWithNoSnapshotWritten(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register(&stallingAdapter{sourceID: "stalling"})

	cfg := config.Defaults()
	cfg.FallbackChains = config.FallbackChains{
		Holders:     []string{"stalling"},
		Proposals:   []string{"stalling"},
		Votes:       []string{"stalling"},
		Delegations: []string{"stalling"},
	}

	store := snapshotstore.NewMemStore()
	c := New(cfg, registry, store, obs.NoopNotifier{}, telemetry.NewHealthRecorder(), testLogger())

	protocol := provider.ResolveProtocol("compound")
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-30 * 24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := c.BuildSnapshot(ctx, protocol, since, until)
	elapsed := time.Since(started)

	require.Error(t, err)
	assert.Equal(t, domain.KindCancelled, domain.KindOf(err))
	assert.Less(t, elapsed, 150*time.Millisecond)

	_, ok, getErr := store.Get(context.Background(), protocol.ID, until)
	require.NoError(t, getErr)
	assert.False(t, ok, "no snapshot should have been written when the build was cancelled")
}

func TestBuildSnapshotWithLimit_SmallLimitBoundsHolderCount(t *testing.T) {
	c, _ := newTestCore(t)
	protocol := provider.ResolveProtocol("uniswap")
	protocol.Supply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	until := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-30 * 24 * time.Hour)

	snapshot, err := c.BuildSnapshotWithLimit(context.Background(), protocol, since, until, 25)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(snapshot.Holders), 25)
}
