// Package participation implements the C6 analyzer: per-proposal and
// overall turnout, holding-size segmentation, and whale behavior,
// computed as pure functions over a normalized Snapshot's proposals,
// votes, and holder balances.
package participation

import (
	"math/big"
	"sort"

	"govtoken-analytics/internal/domain"
)

// Bucket is one holding-size segment boundary pair, a protocol-
// configurable decade bucket.
type Bucket struct {
	Min *big.Int // inclusive
	Max *big.Int // exclusive; nil means unbounded
}

// DefaultBuckets are the base-unit decade buckets used as
// an example partition: [0,1), [1,10), [10,100), [100,1k), [1k,10k),
// and an unbounded >=10k bucket.
func DefaultBuckets() []Bucket {
	b := func(v int64) *big.Int { return big.NewInt(v) }
	return []Bucket{
		{Min: b(0), Max: b(1)},
		{Min: b(1), Max: b(10)},
		{Min: b(10), Max: b(100)},
		{Min: b(100), Max: b(1000)},
		{Min: b(1000), Max: b(10000)},
		{Min: b(10000), Max: nil},
	}
}

// TopKDefault is the default whale cohort size.
const TopKDefault = 10

// Compute derives ParticipationMetrics for one snapshot's proposals,
// votes (keyed by proposal), and holder set.
func Compute(proposals []domain.Proposal, votesByProposal map[string][]domain.Vote, holders []domain.HolderBalance, buckets []Bucket, topK int) domain.ParticipationMetrics {
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	if topK <= 0 {
		topK = TopKDefault
	}

	perProposal := make(map[string]float64, len(proposals))
	voterCount := make(map[string]int, len(proposals))
	var weightedTurnoutSum, eligibleWeightSum float64

	for _, p := range proposals {
		votes := votesByProposal[p.ProposalID]
		cast := sumPower(votes)
		eligible := eligiblePower(holders, p)

		turnout := 0.0
		if eligible.Sign() > 0 {
			turnout = ratio(cast, eligible)
		}
		perProposal[p.ProposalID] = turnout
		voterCount[p.ProposalID] = len(votes)

		eligibleF := mustFloat(eligible)
		weightedTurnoutSum += turnout * eligibleF
		eligibleWeightSum += eligibleF
	}

	overall := 0.0
	if eligibleWeightSum > 0 {
		overall = weightedTurnoutSum / eligibleWeightSum
	}

	return domain.ParticipationMetrics{
		PerProposalTurnout: perProposal,
		OverallTurnout:     overall,
		VoterCount:         voterCount,
		Segments:           segment(holders, votesByProposal, buckets),
		WhaleBehavior:      whaleBehavior(proposals, votesByProposal, holders, topK),
	}
}

func sumPower(votes []domain.Vote) *big.Int {
	total := new(big.Int)
	for _, v := range votes {
		if v.Power != nil {
			total.Add(total, v.Power)
		}
	}
	return total
}

// eligiblePower approximates "eligible power at p's reference time" as
// the total held balance at snapshot time, since holder balances are
// fetched once per snapshot rather than per proposal reference block.
func eligiblePower(holders []domain.HolderBalance, _ domain.Proposal) *big.Int {
	return domain.TotalBalance(holders)
}

func ratio(num, denom *big.Int) float64 {
	if denom.Sign() == 0 {
		return 0
	}
	return mustFloat(num) / mustFloat(denom)
}

func segment(holders []domain.HolderBalance, votesByProposal map[string][]domain.Vote, buckets []Bucket) []domain.ParticipationSegment {
	voterOf := make(map[string]bool)
	powerCastBy := make(map[string]*big.Int)
	for _, votes := range votesByProposal {
		for _, v := range votes {
			key := v.Voter.String()
			voterOf[key] = true
			if cur, ok := powerCastBy[key]; ok {
				if v.Power != nil {
					cur.Add(cur, v.Power)
				}
			} else if v.Power != nil {
				powerCastBy[key] = new(big.Int).Set(v.Power)
			}
		}
	}
	totalCastPower := new(big.Int)
	for _, p := range powerCastBy {
		totalCastPower.Add(totalCastPower, p)
	}
	totalCastPowerF := mustFloat(totalCastPower)

	segments := make([]domain.ParticipationSegment, 0, len(buckets))
	for _, bucket := range buckets {
		var voterCount int
		bucketMembers := 0
		bucketCastPower := new(big.Int)

		for _, h := range holders {
			if !inBucket(h.Balance, bucket) {
				continue
			}
			bucketMembers++
			key := h.Address.String()
			if voterOf[key] {
				voterCount++
				if cp, ok := powerCastBy[key]; ok {
					bucketCastPower.Add(bucketCastPower, cp)
				}
			}
		}

		rate := 0.0
		if bucketMembers > 0 {
			rate = float64(voterCount) / float64(bucketMembers)
		}
		share := 0.0
		if totalCastPowerF > 0 {
			share = mustFloat(bucketCastPower) / totalCastPowerF
		}

		maxStr := ""
		if bucket.Max != nil {
			maxStr = bucket.Max.String()
		}
		segments = append(segments, domain.ParticipationSegment{
			MinBalanceBaseUnits: bucket.Min.String(),
			MaxBalanceBaseUnits: maxStr,
			VoterCount:          voterCount,
			ParticipationRate:   rate,
			CastPowerShare:      share,
		})
	}
	return segments
}

func inBucket(balance *big.Int, bucket Bucket) bool {
	if balance.Cmp(bucket.Min) < 0 {
		return false
	}
	if bucket.Max != nil && balance.Cmp(bucket.Max) >= 0 {
		return false
	}
	return true
}

func whaleBehavior(proposals []domain.Proposal, votesByProposal map[string][]domain.Vote, holders []domain.HolderBalance, topK int) []domain.WhaleBehavior {
	ranked := domain.AssignRanks(append([]domain.HolderBalance(nil), holders...))
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })
	if topK > len(ranked) {
		topK = len(ranked)
	}

	winnerByProposal := make(map[string]domain.VoteChoice, len(proposals))
	winningPowerByProposal := make(map[string]*big.Int, len(proposals))
	for _, p := range proposals {
		winnerByProposal[p.ProposalID] = p.WinningChoice()
		winningPowerByProposal[p.ProposalID] = winningSidePower(p)
	}

	out := make([]domain.WhaleBehavior, 0, topK)
	for i := 0; i < topK; i++ {
		holder := ranked[i]
		key := holder.Address.String()

		var votedCount, agreeCount int
		var influence big.Int
		for _, p := range proposals {
			var cast *domain.Vote
			for _, v := range votesByProposal[p.ProposalID] {
				if v.Voter.String() == key {
					vv := v
					cast = &vv
					break
				}
			}
			if cast == nil {
				continue
			}
			votedCount++
			if cast.Choice == winnerByProposal[p.ProposalID] {
				agreeCount++
				if cast.Power != nil {
					influence.Add(&influence, cast.Power)
				}
			}
		}

		agreement := 0.0
		if votedCount > 0 {
			agreement = float64(agreeCount) / float64(votedCount)
		}

		var totalWinningPower big.Int
		for _, wp := range winningPowerByProposal {
			totalWinningPower.Add(&totalWinningPower, wp)
		}
		influenceShare := 0.0
		if totalWinningPower.Sign() > 0 {
			influenceShare = mustFloat(&influence) / mustFloat(&totalWinningPower)
		}

		out = append(out, domain.WhaleBehavior{
			Address:             holder.Address,
			ProposalsVoted:      votedCount,
			AgreementWithWinner: agreement,
			InfluenceShare:      influenceShare,
		})
	}
	return out
}

func winningSidePower(p domain.Proposal) *big.Int {
	switch p.WinningChoice() {
	case domain.ChoiceFor:
		return p.Tallies.For
	case domain.ChoiceAgainst:
		return p.Tallies.Against
	default:
		return p.Tallies.Abstain
	}
}

func mustFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// DelegateRanking is one delegate's cumulative influence across a
// snapshot series, the historical counterpart to a single snapshot's
// point-in-time WhaleBehavior.
type DelegateRanking struct {
	Address          domain.Address
	CumulativePower  *big.Int // sum of power delegated into Address across every snapshot in the series
	SnapshotsCounted int      // number of snapshots in which Address received any delegated power
}

// TopDelegates ranks delegates by cumulative delegated-power-received
// across series, a historical view complementing Compute's single-
// snapshot WhaleBehavior. For each snapshot it rebuilds the delegation
// graph from that snapshot's own Delegations and Holders (so a
// delegate's "Full" inflow tracks the delegator's balance as of that
// snapshot, not a stale one) and accumulates DelegatedPowerInto across
// the series. series is expected in any order; snapshots with no
// delegations simply contribute nothing.
func TopDelegates(series []domain.Snapshot, topK int) []DelegateRanking {
	if topK <= 0 {
		topK = TopKDefault
	}

	cumulative := make(map[string]*big.Int)
	counted := make(map[string]int)
	addrByKey := make(map[string]domain.Address)

	for _, snap := range series {
		if len(snap.Delegations) == 0 {
			continue
		}
		balances := make(map[string]*big.Int, len(snap.Holders))
		for _, h := range snap.Holders {
			balances[h.Address.String()] = h.Balance
		}
		holderBalance := func(a domain.Address) *big.Int {
			if b, ok := balances[a.String()]; ok {
				return b
			}
			return new(big.Int)
		}

		graph := domain.NewGraph(snap.Delegations)
		for key, power := range graph.DelegatedPowerInto(holderBalance) {
			if power.Sign() == 0 {
				continue
			}
			if cur, ok := cumulative[key]; ok {
				cur.Add(cur, power)
			} else {
				cumulative[key] = new(big.Int).Set(power)
			}
			counted[key]++
		}
		for _, n := range graph.Nodes {
			if _, ok := addrByKey[n.String()]; !ok {
				addrByKey[n.String()] = n
			}
		}
	}

	out := make([]DelegateRanking, 0, len(cumulative))
	for key, power := range cumulative {
		out = append(out, DelegateRanking{
			Address:          addrByKey[key],
			CumulativePower:  power,
			SnapshotsCounted: counted[key],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := out[i].CumulativePower.Cmp(out[j].CumulativePower)
		if cmp != 0 {
			return cmp > 0
		}
		return out[i].Address.Compare(out[j].Address) < 0
	})
	if topK < len(out) {
		out = out[:topK]
	}
	return out
}
