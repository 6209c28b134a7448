package domain

import "math/big"

// VotingBlock is derived from a Snapshot's co-voting graph; it is never
// independently persisted.
type VotingBlock struct {
	Members  []Address
	Power    *big.Int // aggregate voting power of members at the snapshot reference
	Cohesion float64  // in [0, 1]: mean pairwise agreement ratio within the block
	Influence float64 // >= 0: share of winning-side power contributed by the block
}

// MinAddress returns the lexicographically smallest member address, used
// as the tie-break key when sorting blocks of equal aggregate power.
func (b VotingBlock) MinAddress() Address {
	if len(b.Members) == 0 {
		return nil
	}
	min := b.Members[0]
	for _, m := range b.Members[1:] {
		if m.Compare(min) < 0 {
			min = m
		}
	}
	return min
}

// AnomalyCategory is the closed set of voting-pattern anomaly kinds.
type AnomalyCategory string

const (
	AnomalyCoordinatedVoting     AnomalyCategory = "coordinated_voting"
	AnomalyWhaleVsOutcome        AnomalyCategory = "whale_vs_outcome"
	AnomalyPowerOutcomeDivergence AnomalyCategory = "power_outcome_divergence"
	AnomalyParticipationSpike    AnomalyCategory = "participation_spike"
)

// Anomaly is one detected irregularity in voting patterns. It carries no
// textual interpretation — that is a rendering concern.
type Anomaly struct {
	Category   AnomalyCategory
	ProposalID string       // set for proposal-scoped anomalies
	Block      *VotingBlock // set for block-scoped anomalies
	Address    Address      // set for holder-scoped anomalies (whale-vs-outcome)
	Severity   float64      // higher = more severe; used for sort order only
}
