// Package compare implements the C9 Comparison Engine: given several
// protocols' metric series, it aligns them on the coarser timestamp grid
// (nearest-earlier alignment with a configurable max skew) into a
// rectangular table, and ranks protocols by a caller-supplied weighted
// linear combination of normalized metrics. The alignment follows the
// same bounded-skew join used to reconcile cross-source series, and the
// ranking follows a cross-source comparison shape.
package compare

import (
	"context"
	"sort"
	"time"

	"govtoken-analytics/internal/domain"
	"govtoken-analytics/internal/snapshotstore"
)

// Cell is one (timestamp, protocol) entry in the comparison table.
type Cell struct {
	Value      float64
	Ok         bool
	Provenance domain.Provenance
}

// Table is the rectangular comparison result: rows are aligned
// timestamps, columns are protocols.
type Table struct {
	Timestamps []time.Time
	Protocols  []domain.ProtocolID
	Cells      map[time.Time]map[domain.ProtocolID]Cell
}

// Build joins each protocol's series on the coarsest per-protocol
// timestamp grid, aligning other protocols' points to the nearest point
// no later than the reference timestamp and within maxSkew.
func Build(ctx context.Context, store snapshotstore.Store, protocols []domain.ProtocolID, selector domain.MetricSelector, from, to time.Time, maxSkew time.Duration) (Table, error) {
	seriesByProtocol := make(map[domain.ProtocolID][]snapshotstore.Point, len(protocols))
	for _, p := range protocols {
		pts, err := store.Series(ctx, p, selector, from, to)
		if err != nil {
			return Table{}, err
		}
		seriesByProtocol[p] = pts
	}

	reference := referenceTimestamps(seriesByProtocol)
	cells := make(map[time.Time]map[domain.ProtocolID]Cell, len(reference))
	for _, ts := range reference {
		row := make(map[domain.ProtocolID]Cell, len(protocols))
		for _, p := range protocols {
			row[p] = nearestEarlier(seriesByProtocol[p], ts, maxSkew)
		}
		cells[ts] = row
	}

	return Table{Timestamps: reference, Protocols: protocols, Cells: cells}, nil
}

// referenceTimestamps picks the timestamps of the protocol
// with the fewest distinct points — the coarsest grid, in keeping with
// the "joined on the coarser of per-protocol timestamps" alignment rule.
func referenceTimestamps(seriesByProtocol map[domain.ProtocolID][]snapshotstore.Point) []time.Time {
	var coarsest []snapshotstore.Point
	for _, pts := range seriesByProtocol {
		if coarsest == nil || len(pts) < len(coarsest) {
			coarsest = pts
		}
	}
	out := make([]time.Time, len(coarsest))
	for i, p := range coarsest {
		out[i] = p.Timestamp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func nearestEarlier(points []snapshotstore.Point, ts time.Time, maxSkew time.Duration) Cell {
	var best snapshotstore.Point
	found := false
	for _, p := range points {
		if p.Timestamp.After(ts) {
			continue
		}
		if ts.Sub(p.Timestamp) > maxSkew {
			continue
		}
		if !found || p.Timestamp.After(best.Timestamp) {
			best = p
			found = true
		}
	}
	if !found || !best.Ok {
		return Cell{Ok: false}
	}
	return Cell{Value: best.Value, Ok: true}
}

// Weight pairs a metric selector with its contribution to a composite
// ranking score.
type Weight struct {
	Selector domain.MetricSelector
	Weight   float64
	// HigherIsBetter keeps the normalized contribution as is when true;
	// when false the contribution is inverted, for metrics where a lower
	// raw value is preferable (e.g. Gini, HHI).
	HigherIsBetter bool
}

// Rank scores each protocol by a weighted linear combination of
// min-max-normalized metric values (normalized across the protocol set
// at the given timestamp) and returns protocols ordered best-first.
func Rank(ctx context.Context, store snapshotstore.Store, protocols []domain.ProtocolID, weights []Weight, ts time.Time) ([]domain.ProtocolID, map[domain.ProtocolID]float64, error) {
	raw := make(map[domain.ProtocolID]map[int]float64, len(protocols))
	for _, p := range protocols {
		raw[p] = make(map[int]float64, len(weights))
	}

	for wi, w := range weights {
		values := make(map[domain.ProtocolID]float64, len(protocols))
		var ok bool
		for _, p := range protocols {
			snap, found, err := store.Nearest(ctx, p, ts)
			if err != nil {
				return nil, nil, err
			}
			if !found {
				continue
			}
			v, vok := snap.Metrics.Value(w.Selector)
			if !vok {
				continue
			}
			values[p] = v
			ok = true
		}
		if !ok {
			continue
		}

		minV, maxV := minMax(values)
		for p, v := range values {
			norm := 0.5
			if maxV > minV {
				norm = (v - minV) / (maxV - minV)
			}
			if !w.HigherIsBetter {
				norm = 1 - norm
			}
			raw[p][wi] = norm
		}
	}

	scores := make(map[domain.ProtocolID]float64, len(protocols))
	for _, p := range protocols {
		var score float64
		for wi, w := range weights {
			score += raw[p][wi] * w.Weight
		}
		scores[p] = score
	}

	ranked := append([]domain.ProtocolID(nil), protocols...)
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	return ranked, scores, nil
}

func minMax(values map[domain.ProtocolID]float64) (min, max float64) {
	first := true
	for _, v := range values {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
