package domain

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
)

// Address is an opaque byte string identifying a holder, voter, delegator,
// or delegatee. Protocol adapters decode whatever native address format
// the source uses (hex, base58, bech32, ...) into these raw bytes once, at
// the adapter boundary, so every downstream component compares addresses
// byte-for-byte rather than re-parsing strings.
type Address []byte

func (a Address) String() string { return fmt.Sprintf("%x", []byte(a)) }

// Compare orders two addresses lexicographically by their raw bytes. This
// is the sole tie-break rule used anywhere ranks or orderings must be
// deterministic (HolderBalance.Rank, VotingBlock ordering).
func (a Address) Compare(b Address) int { return bytes.Compare(a, b) }

// HolderBalance is one entry in a protocol's holder set as of a snapshot.
type HolderBalance struct {
	Address Address
	Balance *big.Int // base units, >= 0
	Rank    int       // 1-based, descending balance, ties by Address.Compare
}

// AssignRanks sorts balances descending by Balance (ties broken by
// ascending address bytes) and stamps a contiguous 1..N rank. It mutates
// and returns the same slice, sorted in place.
func AssignRanks(balances []HolderBalance) []HolderBalance {
	sort.Slice(balances, func(i, j int) bool {
		ci := balances[i].Balance.Cmp(balances[j].Balance)
		if ci != 0 {
			return ci > 0
		}
		return balances[i].Address.Compare(balances[j].Address) < 0
	})
	for i := range balances {
		balances[i].Rank = i + 1
	}
	return balances
}

// TotalBalance sums the held balances.
func TotalBalance(balances []HolderBalance) *big.Int {
	total := new(big.Int)
	for _, b := range balances {
		total.Add(total, b.Balance)
	}
	return total
}
