package concentration

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govtoken-analytics/internal/domain"
)

func bal(addr byte, v int64) domain.HolderBalance {
	return domain.HolderBalance{Address: domain.Address{addr}, Balance: big.NewInt(v)}
}

func TestCompute_DegenerateOnEmptySet(t *testing.T) {
	m := Compute(nil, nil, nil)
	assert.True(t, m.Degenerate)
	assert.Zero(t, m.Gini)
}

func TestCompute_DegenerateOnZeroTotal(t *testing.T) {
	m := Compute([]domain.HolderBalance{bal(1, 0), bal(2, 0)}, nil, nil)
	assert.True(t, m.Degenerate)
}

func TestGini_EqualBalancesIsZero(t *testing.T) {
	asc := []*big.Int{big.NewInt(10), big.NewInt(10), big.NewInt(10), big.NewInt(10)}
	assert.InDelta(t, 0, Gini(asc), 1e-9)
}

func TestGini_SingleHolderIsZero(t *testing.T) {
	assert.Zero(t, Gini([]*big.Int{big.NewInt(100)}))
	assert.Zero(t, Gini(nil))
}

func TestGini_MaximallyUnequalApproachesOne(t *testing.T) {
	asc := make([]*big.Int, 0, 100)
	for i := 0; i < 99; i++ {
		asc = append(asc, big.NewInt(0))
	}
	asc = append(asc, big.NewInt(1))
	// big.Int zero balances with one holder taking everything: Gini
	// approaches (n-1)/n for n holders.
	assert.Greater(t, Gini(asc), 0.9)
}

func TestHHI_SingleHolderIsMaximallyConcentrated(t *testing.T) {
	assert.InDelta(t, 10000, HHI([]*big.Int{big.NewInt(500)}), 1e-9)
}

func TestHHI_ManyEqualHoldersApproachesEvenSplit(t *testing.T) {
	balances := make([]*big.Int, 100)
	for i := range balances {
		balances[i] = big.NewInt(1)
	}
	assert.InDelta(t, 100, HHI(balances), 1e-9)
}

func TestNakamoto_SmallestKExceedingHalfSupply(t *testing.T) {
	// descending: 40, 30, 20, 10 -> total 100; top-1=40 (<=50), top-2=70 (>50)
	descending := []*big.Int{big.NewInt(40), big.NewInt(30), big.NewInt(20), big.NewInt(10)}
	assert.Equal(t, 2, Nakamoto(descending))
}

func TestNakamoto_ZeroTotalReturnsZero(t *testing.T) {
	assert.Zero(t, Nakamoto([]*big.Int{big.NewInt(0)}))
}

func TestPalma_UndefinedBelowFiveHolders(t *testing.T) {
	asc := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	assert.Nil(t, Palma(asc))
}

func TestPalma_ComputesTopTenOverBottomFortyRatio(t *testing.T) {
	asc := []*big.Int{big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(91)}
	p := Palma(asc)
	require.NotNil(t, p)
	assert.Greater(t, *p, 1.0)
}

func TestTopNShare_CapsAtPopulationSize(t *testing.T) {
	descending := []*big.Int{big.NewInt(60), big.NewInt(40)}
	shares := TopNShare(descending, []int{1, 5})
	assert.InDelta(t, 0.6, shares[1], 1e-9)
	assert.InDelta(t, 1.0, shares[5], 1e-9)
}

func TestLorenzPoints_EndpointsAreZeroAndOne(t *testing.T) {
	asc := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4)}
	points := LorenzPoints(asc)
	require.NotEmpty(t, points)
	first, last := points[0], points[len(points)-1]
	assert.InDelta(t, 0, first.PopulationShare, 1e-9)
	assert.InDelta(t, 0, first.WealthShare, 1e-9)
	assert.InDelta(t, 1, last.PopulationShare, 1e-9)
	assert.InDelta(t, 1, last.WealthShare, 1e-9)
}

func TestCompute_DelegatedGiniNilWithoutEffectivePower(t *testing.T) {
	m := Compute([]domain.HolderBalance{bal(1, 10), bal(2, 20)}, nil, nil)
	assert.Nil(t, m.DelegatedGini)
}

func TestCompute_DelegatedGiniFlattensWithFullRedistribution(t *testing.T) {
	holders := []domain.HolderBalance{bal(1, 90), bal(2, 10)}
	// After delegation, power is split evenly; DelegatedGini should be
	// lower than raw Gini over the same holder set.
	effective := map[string]*big.Int{
		domain.Address{1}.String(): big.NewInt(50),
		domain.Address{2}.String(): big.NewInt(50),
	}
	raw := Compute(holders, nil, nil)
	withDelegation := Compute(holders, nil, effective)
	require.NotNil(t, withDelegation.DelegatedGini)
	assert.Less(t, *withDelegation.DelegatedGini, raw.Gini)
}

func TestCompute_LorenzPointsStable(t *testing.T) {
	holders := []domain.HolderBalance{bal(1, 10), bal(2, 20), bal(3, 70)}
	got := Compute(holders, nil, nil)
	want := Compute(holders, nil, nil)
	if diff := cmp.Diff(want.LorenzPoints, got.LorenzPoints); diff != "" {
		t.Errorf("LorenzPoints not deterministic across repeated Compute calls:\n%s", diff)
	}
}
