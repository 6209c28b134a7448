// Package simulate implements the C4 Simulator: three deterministic
// synthetic holder-distribution generators, used both as the Fetch
// Coordinator's last-resort fallback for holders and directly by the
// `simulate` CLI command for testing. Proposals, votes and delegations
// for that fallback are synthesized in internal/fetch, not here. Every
// generator is seeded
// explicitly via math/rand/v2.PCG — there is no package-level rand
// state, so the same (seed, params) pair reproduces bit-identical
// output across hosts and runs.
package simulate

import (
	"math"
	"math/big"
	"math/rand/v2"
	"sort"

	"govtoken-analytics/internal/domain"
)

// Profile selects which distribution generator to run.
type Profile string

const (
	ProfilePowerLaw           Profile = "power-law"
	ProfileProtocolDominated  Profile = "protocol-dominated"
	ProfileCommunity          Profile = "community"
)

// Params configures a single distribution draw.
type Params struct {
	Seed          uint64
	Holders       int
	Supply        *big.Int
	Alpha         float64 // power-law exponent, default 1.16
	DominantShare float64 // protocol-dominated majority share, default 0.6
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

func addressForIndex(i int) domain.Address {
	// Deterministic synthetic address: a 20-byte big-endian encoding of
	// the holder's rank index, distinguishable from any real address and
	// stable across runs/hosts for a given (seed, i).
	b := make([]byte, 20)
	v := uint64(i + 1)
	for j := 19; j >= 12 && v > 0; j-- {
		b[j] = byte(v & 0xff)
		v >>= 8
	}
	return domain.Address(b)
}

// GenerateHolders dispatches to the generator named by profile.
func GenerateHolders(profile Profile, p Params) []domain.HolderBalance {
	switch profile {
	case ProfileProtocolDominated:
		return generateProtocolDominated(p)
	case ProfileCommunity:
		return generateCommunity(p)
	default:
		return generatePowerLaw(p)
	}
}

// generatePowerLaw implements balance_i = floor(scale * i^(-alpha)) for
// i=1..N, trimmed/rescaled so the sum never exceeds supply.
func generatePowerLaw(p Params) []domain.HolderBalance {
	alpha := p.Alpha
	if alpha <= 0 {
		alpha = 1.16
	}
	scale := estimateScale(p.Supply, p.Holders, alpha)

	raw := make([]*big.Int, p.Holders)
	for i := 1; i <= p.Holders; i++ {
		v := math.Floor(scale * math.Pow(float64(i), -alpha))
		if v < 1 {
			v = 1
		}
		raw[i-1] = big.NewInt(int64(v))
	}
	rescaleToSupply(raw, p.Supply)
	return toHolders(raw)
}

// generateProtocolDominated gives 1-3 addresses a configurable majority
// share (default >= 60%); the remainder follows the power-law shape.
func generateProtocolDominated(p Params) []domain.HolderBalance {
	share := p.DominantShare
	if share <= 0 {
		share = 0.6
	}
	rng := newRNG(p.Seed)
	dominantCount := 1 + rng.IntN(3)
	if dominantCount > p.Holders {
		dominantCount = p.Holders
	}

	supplyF := new(big.Float).SetInt(p.Supply)
	dominantTotal := new(big.Float).Mul(supplyF, big.NewFloat(share))
	remainderTotal := new(big.Float).Sub(supplyF, dominantTotal)
	remainderSupply, _ := remainderTotal.Int(nil)

	raw := make([]*big.Int, 0, p.Holders)
	perDominant := new(big.Float).Quo(dominantTotal, big.NewFloat(float64(dominantCount)))
	perDominantInt, _ := perDominant.Int(nil)
	for i := 0; i < dominantCount; i++ {
		raw = append(raw, new(big.Int).Set(perDominantInt))
	}

	remainingHolders := p.Holders - dominantCount
	if remainingHolders > 0 {
		tail := generatePowerLaw(Params{Seed: p.Seed, Holders: remainingHolders, Supply: remainderSupply, Alpha: p.Alpha})
		for _, h := range tail {
			raw = append(raw, h.Balance)
		}
	}
	rescaleToSupply(raw, p.Supply)
	return toHolders(raw)
}

// generateCommunity draws from a log-normal distribution with small
// variance, yielding low concentration.
func generateCommunity(p Params) []domain.HolderBalance {
	rng := newRNG(p.Seed)
	const sigma = 0.35 // small variance => flat, low-concentration distribution

	raw := make([]*big.Int, p.Holders)
	for i := 0; i < p.Holders; i++ {
		z := gaussian(rng)
		v := math.Exp(sigma * z)
		if v < 0.01 {
			v = 0.01
		}
		raw[i] = big.NewInt(int64(v * 1e6))
	}
	rescaleToSupply(raw, p.Supply)
	return toHolders(raw)
}

// gaussian draws a standard-normal sample via Box-Muller, using only the
// seeded rng so results stay reproducible without importing a stats lib.
func gaussian(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	if u1 <= 0 {
		u1 = 1e-12
	}
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func estimateScale(supply *big.Int, n int, alpha float64) float64 {
	if supply == nil || n <= 0 {
		return 0
	}
	denom := 0.0
	for i := 1; i <= n; i++ {
		denom += math.Pow(float64(i), -alpha)
	}
	if denom == 0 {
		return 0
	}
	supplyF, _ := new(big.Float).SetInt(supply).Float64()
	return supplyF / denom
}

// rescaleToSupply proportionally scales raw down (never up) so the sum
// never exceeds supply, preserving relative order.
func rescaleToSupply(raw []*big.Int, supply *big.Int) {
	if supply == nil || supply.Sign() <= 0 {
		return
	}
	total := new(big.Int)
	for _, v := range raw {
		total.Add(total, v)
	}
	if total.Sign() <= 0 || total.Cmp(supply) <= 0 {
		return
	}
	for i, v := range raw {
		scaled := new(big.Int).Mul(v, supply)
		scaled.Quo(scaled, total)
		if scaled.Sign() < 1 {
			scaled = big.NewInt(1)
		}
		raw[i] = scaled
	}
}

func toHolders(raw []*big.Int) []domain.HolderBalance {
	holders := make([]domain.HolderBalance, len(raw))
	for i, bal := range raw {
		holders[i] = domain.HolderBalance{Address: addressForIndex(i), Balance: bal}
	}
	sort.SliceStable(holders, func(i, j int) bool { return holders[i].Balance.Cmp(holders[j].Balance) > 0 })
	return domain.AssignRanks(holders)
}
