package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProposalStatus_IsTerminal(t *testing.T) {
	assert.True(t, ProposalSucceeded.IsTerminal())
	assert.True(t, ProposalDefeated.IsTerminal())
	assert.True(t, ProposalExecuted.IsTerminal())
	assert.True(t, ProposalCancelled.IsTerminal())
	assert.True(t, ProposalExpired.IsTerminal())
	assert.False(t, ProposalPending.IsTerminal())
	assert.False(t, ProposalActive.IsTerminal())
}

func TestValidProposalStatus(t *testing.T) {
	assert.True(t, ValidProposalStatus(ProposalActive))
	assert.False(t, ValidProposalStatus(ProposalStatus("not-a-status")))
}

func TestTallies_TotalCast(t *testing.T) {
	tallies := Tallies{For: big.NewInt(10), Against: big.NewInt(5), Abstain: big.NewInt(2)}
	assert.Equal(t, int64(17), tallies.TotalCast().Int64())
}

func TestZeroTallies_TotalCastIsZero(t *testing.T) {
	assert.Equal(t, int64(0), ZeroTallies().TotalCast().Int64())
}

func TestProposal_QuorumMet_NilQuorumIsAlwaysMet(t *testing.T) {
	p := Proposal{Tallies: ZeroTallies()}
	assert.True(t, p.QuorumMet())
}

func TestProposal_QuorumMet_ComparesCastAgainstRequired(t *testing.T) {
	p := Proposal{
		QuorumRequired: big.NewInt(100),
		Tallies:        Tallies{For: big.NewInt(60), Against: big.NewInt(20), Abstain: big.NewInt(0)},
	}
	assert.False(t, p.QuorumMet())

	p.Tallies.For = big.NewInt(90)
	assert.True(t, p.QuorumMet())
}

func TestProposal_WinningChoice(t *testing.T) {
	forWins := Proposal{Tallies: Tallies{For: big.NewInt(10), Against: big.NewInt(5)}}
	assert.Equal(t, ChoiceFor, forWins.WinningChoice())

	againstWins := Proposal{Tallies: Tallies{For: big.NewInt(5), Against: big.NewInt(10)}}
	assert.Equal(t, ChoiceAgainst, againstWins.WinningChoice())

	tied := Proposal{Tallies: Tallies{For: big.NewInt(0), Against: big.NewInt(0)}}
	assert.Equal(t, ChoiceAbstain, tied.WinningChoice())
}

func TestProposal_Key(t *testing.T) {
	p := Proposal{ProtocolID: "compound", ProposalID: "42"}
	assert.Equal(t, ProposalKey{ProtocolID: "compound", ProposalID: "42"}, p.Key())
}
