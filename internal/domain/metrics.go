package domain

// ConcentrationMetrics is the C5 output attached to a Snapshot.
type ConcentrationMetrics struct {
	Gini         float64
	HHI          float64
	Nakamoto     int
	Palma        *float64 // nil when bottom-40% share is 0 (undefined)
	TopNShare    map[int]float64
	LorenzPoints []LorenzPoint
	Degenerate   bool // true for empty holder sets or zero total supply

	// DelegatedGini is the Gini coefficient recomputed over effective
	// voting power (held balance adjusted for delegation in/out) rather
	// than raw token balance. nil when the protocol has no delegations,
	// so raw Gini and effective Gini coincide.
	DelegatedGini *float64
}

type LorenzPoint struct {
	PopulationShare float64
	WealthShare     float64
}

// ParticipationMetrics is the C6 output attached to a Snapshot.
type ParticipationMetrics struct {
	PerProposalTurnout map[string]float64 // ProposalID -> power-weighted turnout
	OverallTurnout     float64            // power-weighted mean across proposals
	VoterCount         map[string]int     // ProposalID -> unique voter count (kept distinct from turnout)
	Segments           []ParticipationSegment
	WhaleBehavior      []WhaleBehavior
}

// ParticipationSegment reports participation for one holding-size bucket.
type ParticipationSegment struct {
	MinBalanceBaseUnits string // decimal string bound, inclusive
	MaxBalanceBaseUnits string // decimal string bound, exclusive; "" means unbounded
	VoterCount          int
	ParticipationRate   float64
	CastPowerShare      float64
}

// WhaleBehavior reports one top-K holder's agreement with outcomes.
type WhaleBehavior struct {
	Address            Address
	ProposalsVoted     int
	AgreementWithWinner float64 // share of votes cast matching the proposal's winning choice
	InfluenceShare     float64 // share of winning-side power this holder contributed, aggregated
}

// VotingBlockMetrics is the C7 output attached to a Snapshot.
type VotingBlockMetrics struct {
	Blocks   []VotingBlock
	Anomalies []Anomaly
}

// MetricSet bundles every analytical result computed for one Snapshot.
type MetricSet struct {
	Concentration ConcentrationMetrics
	Participation ParticipationMetrics
	VotingBlocks  VotingBlockMetrics
}

// Named metric accessors used by Snapshot Store's series()/Comparison
// Engine's metric selector. MetricSelector is a
// tagged union in spirit: a single string name plus an optional integer
// parameter (used only by TopNShare(n)),
// replacing the dynamically-shaped metric arguments of the source.
type MetricSelector struct {
	Name  string
	Param int
}

// Value projects one scalar metric out of a MetricSet, returning
// (value, ok). ok is false when the metric is undefined for this
// snapshot (e.g. Palma on a degenerate distribution) — the Store reports
// this as a series gap rather than interpolating.
func (m MetricSet) Value(sel MetricSelector) (float64, bool) {
	switch sel.Name {
	case "gini":
		return m.Concentration.Gini, true
	case "hhi":
		return m.Concentration.HHI, true
	case "nakamoto":
		return float64(m.Concentration.Nakamoto), true
	case "palma":
		if m.Concentration.Palma == nil {
			return 0, false
		}
		return *m.Concentration.Palma, true
	case "delegated_gini":
		if m.Concentration.DelegatedGini == nil {
			return 0, false
		}
		return *m.Concentration.DelegatedGini, true
	case "top_n_share":
		v, ok := m.Concentration.TopNShare[sel.Param]
		return v, ok
	case "overall_turnout":
		return m.Participation.OverallTurnout, true
	case "proposal_count":
		return float64(len(m.Participation.PerProposalTurnout)), true
	case "block_count":
		return float64(len(m.VotingBlocks.Blocks)), true
	case "anomaly_count":
		return float64(len(m.VotingBlocks.Anomalies)), true
	default:
		return 0, false
	}
}
