package snapshotstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"govtoken-analytics/internal/domain"
)

// MemStore is a sync.RWMutex-guarded map backend, the same kind of
// in-memory stand-in used in repository tests. Intended for tests and
// for the `simulate`/`analyze` CLI commands run without a configured
// disk path.
type MemStore struct {
	mu   sync.RWMutex
	data map[domain.ProtocolID]map[time.Time]domain.Snapshot
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[domain.ProtocolID]map[time.Time]domain.Snapshot)}
}

func (m *MemStore) Put(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return domain.NewError(domain.KindCancelled, "memstore", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	byTS, ok := m.data[snapshot.Protocol.ID]
	if !ok {
		byTS = make(map[time.Time]domain.Snapshot)
		m.data[snapshot.Protocol.ID] = byTS
	}
	if _, exists := byTS[snapshot.Timestamp]; exists {
		return domain.NewError(domain.KindStorageIO, "memstore", fmt.Errorf("snapshot already exists for %s at %s", snapshot.Protocol.ID, snapshot.Timestamp))
	}
	byTS[snapshot.Timestamp] = snapshot
	return nil
}

func (m *MemStore) Get(ctx context.Context, protocol domain.ProtocolID, ts time.Time) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, domain.NewError(domain.KindCancelled, "memstore", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.data[protocol][ts]
	return s, ok, nil
}

func (m *MemStore) Nearest(ctx context.Context, protocol domain.ProtocolID, ts time.Time) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, domain.NewError(domain.KindCancelled, "memstore", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best domain.Snapshot
	var found bool
	for _, s := range m.data[protocol] {
		if s.Timestamp.After(ts) {
			continue
		}
		if !found || s.Timestamp.After(best.Timestamp) {
			best = s
			found = true
		}
	}
	return best, found, nil
}

func (m *MemStore) Range(ctx context.Context, protocol domain.ProtocolID, from, to time.Time) ([]domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewError(domain.KindCancelled, "memstore", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]domain.Snapshot, 0, len(m.data[protocol]))
	for _, s := range m.data[protocol] {
		all = append(all, s)
	}
	return filterAndSort(all, from, to), nil
}

func (m *MemStore) Series(ctx context.Context, protocol domain.ProtocolID, selector domain.MetricSelector, from, to time.Time) ([]Point, error) {
	snapshots, err := m.Range(ctx, protocol, from, to)
	if err != nil {
		return nil, err
	}
	return toSeries(snapshots, selector), nil
}
