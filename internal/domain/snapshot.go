package domain

import "time"

// Provenance labels the weakest data tier that contributed to a Snapshot.
type Provenance string

const (
	ProvenanceLive         Provenance = "live"
	ProvenanceFallbackFree Provenance = "fallback-free-tier"
	ProvenanceCached       Provenance = "cached"
	ProvenanceSimulated    Provenance = "simulated"
)

// provenanceWeakness orders tiers from strongest to weakest. Mixing
// tiers within one snapshot build resolves to the weakest tier present,
// cross-kind consistency rule.
var provenanceWeakness = map[Provenance]int{
	ProvenanceLive:         0,
	ProvenanceFallbackFree: 1,
	ProvenanceCached:       2,
	ProvenanceSimulated:    3,
}

// WeakestProvenance returns the weakest (highest-risk) tier among tags.
// Called with zero tags it returns ProvenanceLive as a harmless identity
// element; callers always pass at least one tag in practice.
func WeakestProvenance(tags ...Provenance) Provenance {
	weakest := ProvenanceLive
	weakestRank := -1
	for _, t := range tags {
		if r, ok := provenanceWeakness[t]; ok && r > weakestRank {
			weakest = t
			weakestRank = r
		}
	}
	return weakest
}

// DataKind names one of the four fetched data kinds; Snapshot.SourceUsed
// maps each to the adapter source (or "simulator") that produced it, for
// provenance bookkeeping.
type DataKind string

const (
	KindHolders     DataKind = "holders"
	KindProposals   DataKind = "proposals"
	KindVotes       DataKind = "votes"
	KindDelegations DataKind = "delegations"
)

// Snapshot is the immutable analytical bundle for one (protocol,
// timestamp). Once built it is never mutated; a later rebuild produces a
// new Snapshot value rather than editing this one. Embedded slices are
// value-typed and exclusively owned by this Snapshot.
type Snapshot struct {
	Protocol    Protocol
	Timestamp   time.Time
	Holders     []HolderBalance
	Proposals   []Proposal
	Votes       []Vote
	Delegations []Delegation
	Metrics     MetricSet
	Provenance  Provenance
	SourceUsed  map[DataKind]string // e.g. {holders: "etherscan", proposals: "simulator"}
	Degraded    bool                // true iff Provenance == ProvenanceSimulated after real sources exhausted
	Warnings    []string
}

// Key identifies a Snapshot for store lookups.
type SnapshotKey struct {
	ProtocolID ProtocolID
	Timestamp  time.Time
}

func (s Snapshot) Key() SnapshotKey { return SnapshotKey{ProtocolID: s.Protocol.ID, Timestamp: s.Timestamp} }

// VotesForProposal filters s.Votes down to one proposal.
func (s Snapshot) VotesForProposal(key ProposalKey) []Vote {
	var out []Vote
	for _, v := range s.Votes {
		if v.Proposal == key {
			out = append(out, v)
		}
	}
	return out
}
