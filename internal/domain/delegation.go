package domain

import (
	"math/big"
	"time"
)

// Delegation assigns voting power from Delegator to Delegatee without
// transferring token ownership. Full == true means "delegate my entire
// current balance" (amount tracks the balance dynamically); Full == false
// means a fixed Amount was delegated.
type Delegation struct {
	Delegator    Address
	Delegatee    Address
	EffectiveFrom time.Time
	Amount       *big.Int // meaningful only when !Full
	Full         bool
}

// Graph is an arena-allocated delegation graph: node records are
// integer-indexed, and edges are a flat slice of (from, to, amount)
// triples — the representation maps "cyclic or shared
// references" onto, avoiding owning cycles between Address-keyed structs.
type Graph struct {
	Nodes []Address
	index map[string]int
	Edges []GraphEdge
}

type GraphEdge struct {
	From, To int
	Amount   *big.Int
	Full     bool
}

// NewGraph builds a Graph from a validated delegation list. Self-loops
// and a delegator with more than one active delegatee are rejected by the
// Normalizer before this is called, so NewGraph assumes both invariants
// already hold.
func NewGraph(delegations []Delegation) *Graph {
	g := &Graph{index: make(map[string]int)}
	nodeIndex := func(a Address) int {
		k := a.String()
		if i, ok := g.index[k]; ok {
			return i
		}
		i := len(g.Nodes)
		g.Nodes = append(g.Nodes, a)
		g.index[k] = i
		return i
	}
	for _, d := range delegations {
		from := nodeIndex(d.Delegator)
		to := nodeIndex(d.Delegatee)
		g.Edges = append(g.Edges, GraphEdge{From: from, To: to, Amount: d.Amount, Full: d.Full})
	}
	return g
}

// DelegatedPowerInto computes, for each node, the sum of power delegated
// to it by direct delegators, given each delegator's own held balance
// (used when Full is set). It does not follow transitive delegation
// chains — the Delegation model here is a direct assignment, not a
// re-delegatable one.
func (g *Graph) DelegatedPowerInto(holderBalance func(Address) *big.Int) map[string]*big.Int {
	out := make(map[string]*big.Int, len(g.Nodes))
	for _, e := range g.Edges {
		var amt *big.Int
		if e.Full {
			amt = holderBalance(g.Nodes[e.From])
		} else {
			amt = e.Amount
		}
		if amt == nil {
			continue
		}
		toKey := g.Nodes[e.To].String()
		if cur, ok := out[toKey]; ok {
			cur.Add(cur, amt)
		} else {
			out[toKey] = new(big.Int).Set(amt)
		}
	}
	return out
}

// EffectivePower computes each holder's effective voting power: held
// balance, minus whatever it delegated away, plus whatever was
// delegated into it. Addresses that never appear as a delegator or
// delegatee are left out; callers should fall back to holderBalance for
// those. Amounts delegated away are capped at the delegator's own
// balance, so a delegator can never end up with negative effective
// power from a stale or over-stated delegation record.
func (g *Graph) EffectivePower(holderBalance func(Address) *big.Int) map[string]*big.Int {
	out := make(map[string]*big.Int, len(g.Nodes))
	get := func(key string, addr Address) *big.Int {
		if v, ok := out[key]; ok {
			return v
		}
		v := new(big.Int).Set(holderBalance(addr))
		out[key] = v
		return v
	}

	for _, e := range g.Edges {
		from := g.Nodes[e.From]
		to := g.Nodes[e.To]
		fromKey, toKey := from.String(), to.String()

		var amt *big.Int
		if e.Full {
			amt = holderBalance(from)
		} else {
			amt = e.Amount
		}
		if amt == nil {
			continue
		}

		fromPower := get(fromKey, from)
		delegated := amt
		if delegated.Cmp(fromPower) > 0 {
			delegated = new(big.Int).Set(fromPower)
		}
		fromPower.Sub(fromPower, delegated)

		toPower := get(toKey, to)
		toPower.Add(toPower, delegated)
	}
	return out
}
