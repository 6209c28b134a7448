package provider

import (
	"fmt"
	"math/big"

	"govtoken-analytics/internal/domain"
)

// KnownProtocols are the three governed protocols this engine tracks out
// of the box: two lending protocols (Compound, Aave) and one exchange
// protocol (Uniswap). Supply is left nil here — the CLI's simulate
// command fills a nil or zero Supply with defaultSyntheticSupply before
// generating holders; analyze leaves it nil.
var KnownProtocols = map[domain.ProtocolID]domain.Protocol{
	"compound": {ID: "compound", Name: "Compound", Decimals: 18, Contract: "0xc00e94cb662c3520282e6f5717214004a7f26888"},
	"uniswap":  {ID: "uniswap", Name: "Uniswap", Decimals: 18, Contract: "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"},
	"aave":     {ID: "aave", Name: "Aave", Decimals: 18, Contract: "0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9"},
}

// ResolveProtocol looks up id in KnownProtocols, falling back to a bare
// 18-decimal placeholder for any protocol id the caller supplies that
// isn't one of the three built-ins, so the CLI stays usable against
// protocols this engine doesn't ship metadata for yet.
func ResolveProtocol(id domain.ProtocolID) domain.Protocol {
	if p, ok := KnownProtocols[id]; ok {
		return p.Clone()
	}
	return domain.Protocol{ID: id, Name: fmt.Sprintf("unknown:%s", id), Decimals: 18, Supply: new(big.Int)}
}
