// Package snapshotstore implements the C8 Snapshot Store: a write-once,
// append-only store keyed by (protocol, timestamp), with two backends —
// an in-memory map for tests and an on-disk, one-file-per-snapshot
// layout with a directory-scan-recoverable index. It follows a narrow
// repository-interface shape (constructor validates/opens the backend,
// context deadlines on every call), adapted from SQL rows to flat JSON
// files.
package snapshotstore

import (
	"context"
	"sort"
	"time"

	"govtoken-analytics/internal/domain"
)

// Store is the narrow interface both backends implement.
type Store interface {
	Put(ctx context.Context, snapshot domain.Snapshot) error
	Get(ctx context.Context, protocol domain.ProtocolID, ts time.Time) (domain.Snapshot, bool, error)
	Nearest(ctx context.Context, protocol domain.ProtocolID, ts time.Time) (domain.Snapshot, bool, error)
	Range(ctx context.Context, protocol domain.ProtocolID, from, to time.Time) ([]domain.Snapshot, error)
	Series(ctx context.Context, protocol domain.ProtocolID, selector domain.MetricSelector, from, to time.Time) ([]Point, error)
}

// Point is one value in a metric time series. Missing points are
// reported as gaps (Ok == false), never interpolated.
type Point struct {
	Timestamp time.Time
	Value     float64
	Ok        bool
}

// filterAndSort returns the snapshots whose Timestamp lies within
// [from, to], sorted ascending by Timestamp, shared by both backends'
// Range/Series implementations.
func filterAndSort(snapshots []domain.Snapshot, from, to time.Time) []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func toSeries(snapshots []domain.Snapshot, selector domain.MetricSelector) []Point {
	points := make([]Point, len(snapshots))
	for i, s := range snapshots {
		v, ok := s.Metrics.Value(selector)
		points[i] = Point{Timestamp: s.Timestamp, Value: v, Ok: ok}
	}
	return points
}
