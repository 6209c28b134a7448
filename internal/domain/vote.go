package domain

import (
	"math/big"
	"time"
)

// VoteChoice is the closed set of ternary vote choices.
type VoteChoice string

const (
	ChoiceFor     VoteChoice = "for"
	ChoiceAgainst VoteChoice = "against"
	ChoiceAbstain VoteChoice = "abstain"
)

var validVoteChoices = map[VoteChoice]bool{ChoiceFor: true, ChoiceAgainst: true, ChoiceAbstain: true}

// ValidVoteChoice reports whether c is a member of the closed set.
func ValidVoteChoice(c VoteChoice) bool { return validVoteChoices[c] }

// Vote is a single cast ballot. Invariant: at most one Vote exists per
// (ProposalKey, Voter) within a Snapshot — enforced by the Normalizer.
type Vote struct {
	Proposal ProposalKey
	Voter    Address
	Choice   VoteChoice
	Power    *big.Int // voting power snapshot at CastAt's reference block
	CastAt   time.Time
}
