package provider

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"govtoken-analytics/internal/domain"
)

// EthplorerAdapter serves FetchHolders from Ethplorer's top-token-holders
// endpoint — a real, if coarse, holder index. Ethplorer's free tier caps
// the holder count it returns, which is exactly the sort of partial-index
// source the Fetch Coordinator's fallback-free-tier provenance tag exists
// for. It has no governance data at all.
type EthplorerAdapter struct {
	client *httpClient
	apiKey string
	freeTier bool
}

func NewEthplorerAdapter(apiKey string, timeout time.Duration) (*EthplorerAdapter, error) {
	if apiKey == "" {
		return nil, domain.NewError(domain.KindAuthMissing, "ethplorer", fmt.Errorf("api_keys.ethplorer not set"))
	}
	return &EthplorerAdapter{
		client:   newHTTPClient("ethplorer", "https://api.ethplorer.io", timeout),
		apiKey:   apiKey,
		freeTier: apiKey == "freekey",
	}, nil
}

func (a *EthplorerAdapter) SourceID() string { return "ethplorer" }

// Tier reports the provenance weakness of this adapter's current key.
// The Fetch Coordinator consults this to decide whether a successful
// Ethplorer call yields ProvenanceLive or ProvenanceFallbackFree.
func (a *EthplorerAdapter) Tier() domain.Provenance {
	if a.freeTier {
		return domain.ProvenanceFallbackFree
	}
	return domain.ProvenanceLive
}

type ethplorerHoldersResponse struct {
	Holders []struct {
		Address string  `json:"address"`
		Balance float64 `json:"balance"`
		RawBalance string `json:"rawBalance"`
	} `json:"holders"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *EthplorerAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (HolderPage, error) {
	if cursor != "" {
		// Ethplorer's top-holders endpoint is not paginated; a non-empty
		// cursor means the caller already exhausted this source's index.
		return HolderPage{}, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("ethplorer holder index is not paginated"))
	}

	q := url.Values{}
	q.Set("apiKey", a.apiKey)
	q.Set("limit", fmt.Sprintf("%d", limit))

	var resp ethplorerHoldersResponse
	if err := a.client.getJSON(ctx, "/getTopTokenHolders/"+string(protocol), q, &resp); err != nil {
		return HolderPage{}, err
	}
	if resp.Error != nil {
		return HolderPage{}, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("ethplorer error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	balances := make([]domain.HolderBalance, 0, len(resp.Holders))
	for _, h := range resp.Holders {
		amt, ok := new(big.Int).SetString(h.RawBalance, 10)
		if !ok || amt.Sign() < 0 {
			continue
		}
		addr := decodeHexAddress(h.Address)
		if addr == nil {
			continue
		}
		balances = append(balances, domain.HolderBalance{Address: addr, Balance: amt})
	}
	return HolderPage{Holders: domain.AssignRanks(balances)}, nil
}

func (a *EthplorerAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("ethplorer has no proposal index"))
}

func (a *EthplorerAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("ethplorer has no vote index"))
}

func (a *EthplorerAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("ethplorer has no delegation index"))
}
