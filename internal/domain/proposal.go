package domain

import (
	"math/big"
	"time"
)

// ProposalStatus is the closed set of lifecycle states a Proposal may be
// in. Terminal statuses (Succeeded, Defeated, Executed, Cancelled,
// Expired) never revert.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalActive    ProposalStatus = "active"
	ProposalSucceeded ProposalStatus = "succeeded"
	ProposalDefeated  ProposalStatus = "defeated"
	ProposalExecuted  ProposalStatus = "executed"
	ProposalCancelled ProposalStatus = "cancelled"
	ProposalExpired   ProposalStatus = "expired"
)

// IsTerminal reports whether status can never transition further.
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case ProposalSucceeded, ProposalDefeated, ProposalExecuted, ProposalCancelled, ProposalExpired:
		return true
	default:
		return false
	}
}

var validProposalStatuses = map[ProposalStatus]bool{
	ProposalPending: true, ProposalActive: true, ProposalSucceeded: true,
	ProposalDefeated: true, ProposalExecuted: true, ProposalCancelled: true,
	ProposalExpired: true,
}

// ValidProposalStatus reports whether s is a member of the closed set.
func ValidProposalStatus(s ProposalStatus) bool { return validProposalStatuses[s] }

// Tallies holds the running vote totals for a proposal.
type Tallies struct {
	For     *big.Int
	Against *big.Int
	Abstain *big.Int
}

func ZeroTallies() Tallies {
	return Tallies{For: new(big.Int), Against: new(big.Int), Abstain: new(big.Int)}
}

// TotalCast returns For+Against+Abstain.
func (t Tallies) TotalCast() *big.Int {
	total := new(big.Int).Add(t.For, t.Against)
	total.Add(total, t.Abstain)
	return total
}

// Proposal is a single governance proposal within a protocol.
type Proposal struct {
	ProtocolID    ProtocolID
	ProposalID    string // protocol-unique
	Proposer      Address
	CreatedAt     time.Time
	VotingStart   time.Time
	VotingEnd     time.Time
	Status        ProposalStatus
	QuorumRequired *big.Int
	Tallies       Tallies
	Metadata      map[string]string // free-form passthrough, not schema-checked
}

// QuorumMet reports whether the cast power meets the proposal's quorum
// requirement; used by the power-vs-outcome-divergence anomaly in
// internal/analytics/votingblocks.
func (p Proposal) QuorumMet() bool {
	if p.QuorumRequired == nil || p.QuorumRequired.Sign() <= 0 {
		return true
	}
	return p.Tallies.TotalCast().Cmp(p.QuorumRequired) >= 0
}

// WinningChoice returns ChoiceFor or ChoiceAgainst, whichever has the
// larger tally; the Abstain tally is not considered, and any tie between
// For and Against returns ChoiceAbstain.
func (p Proposal) WinningChoice() VoteChoice {
	switch {
	case p.Tallies.For.Cmp(p.Tallies.Against) > 0:
		return ChoiceFor
	case p.Tallies.Against.Cmp(p.Tallies.For) > 0:
		return ChoiceAgainst
	default:
		return ChoiceAbstain
	}
}

// Key uniquely identifies a proposal across snapshots.
type ProposalKey struct {
	ProtocolID ProtocolID
	ProposalID string
}

func (p Proposal) Key() ProposalKey { return ProposalKey{ProtocolID: p.ProtocolID, ProposalID: p.ProposalID} }
