package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricSet_Value_Gini(t *testing.T) {
	m := MetricSet{Concentration: ConcentrationMetrics{Gini: 0.42}}
	v, ok := m.Value(MetricSelector{Name: "gini"})
	assert.True(t, ok)
	assert.Equal(t, 0.42, v)
}

func TestMetricSet_Value_PalmaNilIsUndefined(t *testing.T) {
	m := MetricSet{Concentration: ConcentrationMetrics{Palma: nil}}
	_, ok := m.Value(MetricSelector{Name: "palma"})
	assert.False(t, ok)
}

func TestMetricSet_Value_PalmaPresent(t *testing.T) {
	p := 3.5
	m := MetricSet{Concentration: ConcentrationMetrics{Palma: &p}}
	v, ok := m.Value(MetricSelector{Name: "palma"})
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)
}

func TestMetricSet_Value_DelegatedGiniNilWhenNoDelegations(t *testing.T) {
	m := MetricSet{Concentration: ConcentrationMetrics{DelegatedGini: nil}}
	_, ok := m.Value(MetricSelector{Name: "delegated_gini"})
	assert.False(t, ok)
}

func TestMetricSet_Value_TopNShareUsesParam(t *testing.T) {
	m := MetricSet{Concentration: ConcentrationMetrics{TopNShare: map[int]float64{10: 0.6, 100: 0.9}}}
	v, ok := m.Value(MetricSelector{Name: "top_n_share", Param: 10})
	assert.True(t, ok)
	assert.Equal(t, 0.6, v)

	_, ok = m.Value(MetricSelector{Name: "top_n_share", Param: 50})
	assert.False(t, ok)
}

func TestMetricSet_Value_ParticipationAndBlockCounts(t *testing.T) {
	m := MetricSet{
		Participation: ParticipationMetrics{
			OverallTurnout:     0.33,
			PerProposalTurnout: map[string]float64{"1": 0.5, "2": 0.2},
		},
		VotingBlocks: VotingBlockMetrics{
			Blocks:    []VotingBlock{{}, {}},
			Anomalies: []Anomaly{{}},
		},
	}
	v, ok := m.Value(MetricSelector{Name: "overall_turnout"})
	assert.True(t, ok)
	assert.Equal(t, 0.33, v)

	v, ok = m.Value(MetricSelector{Name: "proposal_count"})
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = m.Value(MetricSelector{Name: "block_count"})
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = m.Value(MetricSelector{Name: "anomaly_count"})
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestMetricSet_Value_UnknownSelectorIsUndefined(t *testing.T) {
	m := MetricSet{}
	_, ok := m.Value(MetricSelector{Name: "not-a-metric"})
	assert.False(t, ok)
}
