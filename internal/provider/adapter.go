// Package provider defines the ProviderAdapter capability interface
// and the per-source adapters that implement it. New protocols or new data
// sources add a new adapter without touching the Fetch Coordinator, the
// same capability-interface-plus-per-chain-dispatch shape used for
// multi-chain adapter registries.
package provider

import (
	"context"
	"time"

	"govtoken-analytics/internal/domain"
)

// HolderPage is one page of fetch-holders results.
type HolderPage struct {
	Holders []domain.HolderBalance
	Cursor  string // opaque; "" means no further pages
}

// ProviderAdapter is the capability interface every external data source
// implements. Every method takes a caller-supplied deadline via ctx —
// adapters never block indefinitely.
type ProviderAdapter interface {
	// SourceID identifies this adapter in provenance tags and logs.
	SourceID() string

	FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (HolderPage, error)
	FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error)
	FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error)
	FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error)
}

// Registry is the dispatch table mapping source ids to adapters, the
// same chain:network -> *Pipeline dispatch shape generalized to
// source id -> ProviderAdapter.
type Registry struct {
	adapters map[string]ProviderAdapter
}

func NewRegistry() *Registry { return &Registry{adapters: make(map[string]ProviderAdapter)} }

func (r *Registry) Register(a ProviderAdapter) { r.adapters[a.SourceID()] = a }

func (r *Registry) Get(sourceID string) (ProviderAdapter, bool) {
	a, ok := r.adapters[sourceID]
	return a, ok
}
