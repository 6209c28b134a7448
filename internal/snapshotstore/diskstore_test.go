package snapshotstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govtoken-analytics/internal/domain"
)

func testSnapshot(protocol domain.ProtocolID, ts time.Time, gini float64) domain.Snapshot {
	return domain.Snapshot{
		Protocol:   domain.Protocol{ID: protocol, Name: string(protocol)},
		Timestamp:  ts,
		Provenance: domain.ProvenanceLive,
		Metrics:    domain.MetricSet{Concentration: domain.ConcentrationMetrics{Gini: gini}},
	}
}

func TestDiskStore_PutGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := testSnapshot("compound", ts, 0.42)
	require.NoError(t, store.Put(context.Background(), snap))

	got, ok, err := store.Get(context.Background(), "compound", ts)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.42, got.Metrics.Concentration.Gini)
	assert.Equal(t, domain.ProvenanceLive, got.Provenance)
}

func TestDiskStore_PutRejectsDuplicateTimestamp(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	ts := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(context.Background(), testSnapshot("compound", ts, 0.1)))
	err = store.Put(context.Background(), testSnapshot("compound", ts, 0.2))
	assert.Error(t, err)
}

func TestDiskStore_GetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	_, ok, err := store.Get(context.Background(), "compound", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStore_RebuildsIndexWhenMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(context.Background(), testSnapshot("uniswap", base.Add(time.Duration(i)*time.Hour), float64(i)*0.1)))
	}

	require.NoError(t, os.Remove(filepath.Join(dir, "uniswap", "index.json")))

	snaps, err := store.Range(context.Background(), "uniswap", base, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.True(t, snaps[0].Timestamp.Before(snaps[1].Timestamp))
}

func TestDiskStore_Nearest_PicksMostRecentAtOrBeforeTarget(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(context.Background(), testSnapshot("aave", base, 0.1)))
	require.NoError(t, store.Put(context.Background(), testSnapshot("aave", base.Add(time.Hour), 0.2)))

	got, ok, err := store.Nearest(context.Background(), "aave", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.1, got.Metrics.Concentration.Gini)
}

func TestDiskStore_Series_ReportsGapsForUndefinedMetric(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(context.Background(), testSnapshot("aave", ts, 0.3)))

	points, err := store.Series(context.Background(), "aave", domain.MetricSelector{Name: "palma"}, ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.False(t, points[0].Ok)
}
