// Package concentration implements the C5 analyzer: Gini, HHI, Nakamoto
// coefficient, Palma ratio, top-N share, and Lorenz-curve points, each a
// pure function over a holder balance slice. Every function handles the
// degenerate empty-set / zero-supply case by returning a defined
// sentinel value plus a Degenerate flag rather than panicking or
// dividing by zero.
package concentration

import (
	"math/big"
	"sort"

	"govtoken-analytics/internal/domain"
)

// DefaultTopNs are the default top-N share buckets.
var DefaultTopNs = []int{5, 10, 20, 50}

// lorenzResolution is the number of sampled (population share, wealth
// share) points on the Lorenz curve, evenly spaced including both ends.
const lorenzResolution = 21

// Compute derives the full ConcentrationMetrics for one holder set.
// balances need not be pre-sorted; Compute sorts its own working copy.
// effectivePower, if non-nil, additionally populates DelegatedGini by
// recomputing Gini over each holder's effective (delegation-adjusted)
// power instead of raw balance; pass nil when the protocol has no
// delegations.
func Compute(balances []domain.HolderBalance, topNs []int, effectivePower map[string]*big.Int) domain.ConcentrationMetrics {
	if topNs == nil {
		topNs = DefaultTopNs
	}
	n := len(balances)
	total := domain.TotalBalance(balances)

	if n == 0 || total.Sign() == 0 {
		return domain.ConcentrationMetrics{
			TopNShare:  zeroShares(topNs),
			Degenerate: true,
		}
	}

	asc := sortedCopy(balances, true)
	desc := sortedCopy(balances, false)

	metrics := domain.ConcentrationMetrics{
		Gini:         Gini(asc),
		HHI:          HHI(asc),
		Nakamoto:     Nakamoto(desc),
		Palma:        Palma(asc),
		TopNShare:    TopNShare(desc, topNs),
		LorenzPoints: LorenzPoints(asc),
	}
	if len(effectivePower) > 0 {
		effAsc := make([]*big.Int, 0, len(effectivePower))
		for _, v := range effectivePower {
			effAsc = append(effAsc, v)
		}
		sort.Slice(effAsc, func(i, j int) bool { return effAsc[i].Cmp(effAsc[j]) < 0 })
		g := Gini(effAsc)
		metrics.DelegatedGini = &g
	}
	return metrics
}

func sortedCopy(balances []domain.HolderBalance, ascending bool) []*big.Int {
	out := make([]*big.Int, len(balances))
	for i, b := range balances {
		out[i] = b.Balance
	}
	sort.Slice(out, func(i, j int) bool {
		c := out[i].Cmp(out[j])
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

// Gini computes G = (2*sum(i*b_i))/(n*T) - (n+1)/n over ascending
// balances b_1 <= ... <= b_n (1-indexed). Returns 0 for n <= 1 or T = 0.
func Gini(ascending []*big.Int) float64 {
	n := len(ascending)
	if n <= 1 {
		return 0
	}
	total := sumBig(ascending)
	if total.Sign() == 0 {
		return 0
	}

	weighted := new(big.Int)
	for i, b := range ascending {
		weighted.Add(weighted, new(big.Int).Mul(big.NewInt(int64(i+1)), b))
	}

	numerator := new(big.Float).SetInt(new(big.Int).Mul(big.NewInt(2), weighted))
	denominator := new(big.Float).SetInt(new(big.Int).Mul(big.NewInt(int64(n)), total))
	ratio := new(big.Float).Quo(numerator, denominator)
	ratioF, _ := ratio.Float64()

	return ratioF - float64(n+1)/float64(n)
}

// HHI computes sum((b_i/T)^2)*10000.
func HHI(balances []*big.Int) float64 {
	total := sumBig(balances)
	if total.Sign() == 0 {
		return 0
	}
	totalF, _ := new(big.Float).SetInt(total).Float64()

	var sum float64
	for _, b := range balances {
		bF, _ := new(big.Float).SetInt(b).Float64()
		share := bF / totalF
		sum += share * share
	}
	return sum * 10000
}

// Nakamoto returns the smallest k such that the sum of the top k
// descending balances exceeds T/2. descending must be sorted
// descending; returns 0 for an empty or zero-total input.
func Nakamoto(descending []*big.Int) int {
	total := sumBig(descending)
	if total.Sign() == 0 {
		return 0
	}
	// Compare 2*running > total instead of running > total/2 to avoid
	// integer-division truncation at the boundary.
	running := new(big.Int)
	two := big.NewInt(2)
	for i, b := range descending {
		running.Add(running, b)
		if new(big.Int).Mul(running, two).Cmp(total) > 0 {
			return i + 1
		}
	}
	return len(descending)
}

// Palma returns the top-10%-share / bottom-40%-share ratio, or nil if
// the bottom 40% share is zero (undefined) or the holder set is too
// small to yield a non-degenerate bottom-40% cohort (n < 5: fewer than
// five holders means the bottom-40% bucket would floor to the very
// holder(s) already counted elsewhere, so it is left undefined rather
// than reported as a misleading ratio).
func Palma(ascending []*big.Int) *float64 {
	n := len(ascending)
	if n < 5 {
		return nil
	}
	total := sumBig(ascending)
	if total.Sign() == 0 {
		return nil
	}

	bottomCount := (n * 40) / 100
	topCount := (n * 10) / 100
	if topCount == 0 {
		topCount = 1
	}

	bottomSum := sumBig(ascending[:bottomCount])
	topSum := sumBig(ascending[n-topCount:])

	totalF, _ := new(big.Float).SetInt(total).Float64()
	bottomShare := mustFloat(bottomSum) / totalF
	if bottomShare == 0 {
		return nil
	}
	topShare := mustFloat(topSum) / totalF
	ratio := topShare / bottomShare
	return &ratio
}

// TopNShare computes, for each n in ns, the share of total held by the
// top n balances. descending must be sorted descending.
func TopNShare(descending []*big.Int, ns []int) map[int]float64 {
	total := sumBig(descending)
	out := make(map[int]float64, len(ns))
	if total.Sign() == 0 {
		return zeroShares(ns)
	}
	totalF := mustFloat(total)
	for _, n := range ns {
		k := n
		if k > len(descending) {
			k = len(descending)
		}
		sum := mustFloat(sumBig(descending[:k]))
		out[n] = sum / totalF
	}
	return out
}

// LorenzPoints samples lorenzResolution evenly-spaced (population share,
// wealth share) points along the Lorenz curve of ascending balances.
func LorenzPoints(ascending []*big.Int) []domain.LorenzPoint {
	n := len(ascending)
	if n == 0 {
		return nil
	}
	total := mustFloat(sumBig(ascending))
	if total == 0 {
		return nil
	}

	cum := make([]float64, n+1)
	running := new(big.Int)
	for i, b := range ascending {
		running.Add(running, b)
		cum[i+1] = mustFloat(running) / total
	}

	points := make([]domain.LorenzPoint, 0, lorenzResolution)
	for s := 0; s < lorenzResolution; s++ {
		popShare := float64(s) / float64(lorenzResolution-1)
		idx := int(popShare * float64(n))
		if idx > n {
			idx = n
		}
		points = append(points, domain.LorenzPoint{PopulationShare: popShare, WealthShare: cum[idx]})
	}
	return points
}

func sumBig(values []*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		total.Add(total, v)
	}
	return total
}

func mustFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func zeroShares(ns []int) map[int]float64 {
	out := make(map[int]float64, len(ns))
	for _, n := range ns {
		out[n] = 0
	}
	return out
}
