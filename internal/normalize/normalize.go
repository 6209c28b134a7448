// Package normalize implements the C3 Normalizer: a pure, synchronous
// validate-and-map stage between the Fetch Coordinator's raw adapter
// records and the canonical domain model. It never calls out to a
// network or a decode sidecar — it follows a typed-constructor,
// structured-per-record-warnings shape, adapted from sidecar decoding
// to reject-and-count validation, since there is no wire format here.
package normalize

import (
	"fmt"
	"log/slog"

	"govtoken-analytics/internal/domain"
)

// MinSurvivorShare is the minimum fraction of input records that must
// survive validation for a data kind's fetch to be accepted rather than
// treated as failed.
const MinSurvivorShare = 0.8

// Report carries the outcome of normalizing one data kind's records:
// the expected and surviving record counts and the per-record warnings.
// Core fails the whole snapshot build when a kind's Report is not
// Accepted; the Fetch Coordinator does not consult it.
type Report struct {
	Expected  int
	Survived  int
	Warnings  []string
}

// Accepted reports whether the survivor share meets MinSurvivorShare.
// A zero-expected input is vacuously accepted (nothing to validate).
func (r Report) Accepted() bool {
	if r.Expected == 0 {
		return true
	}
	return float64(r.Survived)/float64(r.Expected) >= MinSurvivorShare
}

// Normalizer validates and maps one protocol's raw records per snapshot
// build. It is stateless across calls; log is used only for the
// structured per-record warning events requires.
type Normalizer struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Normalizer {
	return &Normalizer{log: log.With("component", "normalizer")}
}

// Holders rejects negative balances and duplicate addresses (keeping the
// first occurrence), then re-ranks the survivors.
func (n *Normalizer) Holders(protocol domain.ProtocolID, raw []domain.HolderBalance) ([]domain.HolderBalance, Report) {
	report := Report{Expected: len(raw)}
	seen := make(map[string]bool, len(raw))
	out := make([]domain.HolderBalance, 0, len(raw))

	for _, h := range raw {
		key := h.Address.String()
		switch {
		case h.Balance == nil || h.Balance.Sign() < 0:
			n.warn(&report, "holders", protocol, key, "negative or missing balance")
		case seen[key]:
			n.warn(&report, "holders", protocol, key, "duplicate address")
		default:
			seen[key] = true
			out = append(out, h)
			report.Survived++
		}
	}
	return domain.AssignRanks(out), report
}

// Proposals rejects unknown statuses, end-before-start voting windows,
// and negative quorum requirements.
func (n *Normalizer) Proposals(protocol domain.ProtocolID, raw []domain.Proposal) ([]domain.Proposal, Report) {
	report := Report{Expected: len(raw)}
	out := make([]domain.Proposal, 0, len(raw))

	for _, p := range raw {
		switch {
		case !domain.ValidProposalStatus(p.Status):
			n.warn(&report, "proposals", protocol, p.ProposalID, fmt.Sprintf("unknown status %q", p.Status))
		case !p.VotingEnd.IsZero() && !p.VotingStart.IsZero() && p.VotingEnd.Before(p.VotingStart):
			n.warn(&report, "proposals", protocol, p.ProposalID, "voting window ends before it starts")
		case p.QuorumRequired != nil && p.QuorumRequired.Sign() < 0:
			n.warn(&report, "proposals", protocol, p.ProposalID, "negative quorum requirement")
		default:
			out = append(out, p)
			report.Survived++
		}
	}
	return out, report
}

// Votes rejects unknown choices, negative power, and duplicate
// (proposal, voter) pairs — at most one Vote per voter per proposal
// survives a Snapshot (domain.Vote's ownership invariant).
func (n *Normalizer) Votes(protocol domain.ProtocolID, raw []domain.Vote) ([]domain.Vote, Report) {
	report := Report{Expected: len(raw)}
	seen := make(map[string]bool, len(raw))
	out := make([]domain.Vote, 0, len(raw))

	for _, v := range raw {
		key := v.Proposal.ProposalID + "|" + v.Voter.String()
		switch {
		case !domain.ValidVoteChoice(v.Choice):
			n.warn(&report, "votes", protocol, key, fmt.Sprintf("unknown choice %q", v.Choice))
		case v.Power == nil || v.Power.Sign() < 0:
			n.warn(&report, "votes", protocol, key, "negative or missing power")
		case seen[key]:
			n.warn(&report, "votes", protocol, key, "duplicate vote for voter on proposal")
		default:
			seen[key] = true
			out = append(out, v)
			report.Survived++
		}
	}
	return out, report
}

// Delegations rejects self-delegation, a delegator with more than one
// active delegatee, and a fixed (non-Full) amount that is negative.
func (n *Normalizer) Delegations(protocol domain.ProtocolID, raw []domain.Delegation) ([]domain.Delegation, Report) {
	report := Report{Expected: len(raw)}
	activeDelegator := make(map[string]bool, len(raw))
	out := make([]domain.Delegation, 0, len(raw))

	for _, d := range raw {
		key := d.Delegator.String()
		switch {
		case d.Delegator.Compare(d.Delegatee) == 0:
			n.warn(&report, "delegations", protocol, key, "self-delegation")
		case !d.Full && (d.Amount == nil || d.Amount.Sign() < 0):
			n.warn(&report, "delegations", protocol, key, "negative or missing fixed amount")
		case activeDelegator[key]:
			n.warn(&report, "delegations", protocol, key, "delegator already has an active delegatee")
		default:
			activeDelegator[key] = true
			out = append(out, d)
			report.Survived++
		}
	}
	return out, report
}

func (n *Normalizer) warn(report *Report, kind string, protocol domain.ProtocolID, recordKey, reason string) {
	msg := fmt.Sprintf("%s: dropped record %s: %s", kind, recordKey, reason)
	report.Warnings = append(report.Warnings, msg)
	n.log.Warn("dropped record", "kind", kind, "protocol", protocol, "key", recordKey, "reason", reason)
}
