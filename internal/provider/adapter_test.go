package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govtoken-analytics/internal/domain"
)

type stubAdapter struct {
	sourceID string
}

func (s *stubAdapter) SourceID() string { return s.sourceID }
func (s *stubAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (HolderPage, error) {
	return HolderPage{}, nil
}
func (s *stubAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	return nil, nil
}
func (s *stubAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	return nil, nil
}
func (s *stubAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{sourceID: "etherscan"})

	a, ok := r.Get("etherscan")
	require.True(t, ok)
	assert.Equal(t, "etherscan", a.SourceID())
}

func TestRegistry_GetMissingSourceReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_RegisterOverwritesSameSourceID(t *testing.T) {
	r := NewRegistry()
	first := &stubAdapter{sourceID: "etherscan"}
	second := &stubAdapter{sourceID: "etherscan"}
	r.Register(first)
	r.Register(second)

	a, ok := r.Get("etherscan")
	require.True(t, ok)
	assert.Same(t, second, a)
}
