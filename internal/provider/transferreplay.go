package provider

import (
	"math/big"

	"govtoken-analytics/internal/domain"
)

// TransferEvent is one decoded token transfer, the common shape every
// adapter that lacks a holder index reduces to balances.
type TransferEvent struct {
	From   domain.Address
	To     domain.Address
	Amount *big.Int
}

// ReplayTransfersToBalances reduces a transfer-event log (replayed from a
// floor block/time up to the snapshot time) into a holder balance set,
// ranked deterministically by descending balance with lexicographic
// address tie-breaks. Transfers must be supplied in
// chronological order; ReplayTransfersToBalances does not itself validate
// ordering — adapters fetch logs in block order already.
func ReplayTransfersToBalances(transfers []TransferEvent) []domain.HolderBalance {
	balances := make(map[string]*big.Int)
	addrs := make(map[string]domain.Address)

	credit := func(addr domain.Address, delta *big.Int) {
		if addr == nil || len(addr) == 0 {
			return // burn/mint sentinel address, not a holder
		}
		key := addr.String()
		cur, ok := balances[key]
		if !ok {
			cur = new(big.Int)
			balances[key] = cur
			addrs[key] = addr
		}
		cur.Add(cur, delta)
	}

	for _, t := range transfers {
		neg := new(big.Int).Neg(t.Amount)
		credit(t.From, neg)
		credit(t.To, t.Amount)
	}

	out := make([]domain.HolderBalance, 0, len(balances))
	for key, bal := range balances {
		if bal.Sign() <= 0 {
			continue
		}
		out = append(out, domain.HolderBalance{Address: addrs[key], Balance: bal})
	}
	return domain.AssignRanks(out)
}
