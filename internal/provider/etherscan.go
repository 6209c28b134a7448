package provider

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"govtoken-analytics/internal/domain"
)

// EtherscanAdapter fetches holder lists from Etherscan's token API.
// Etherscan has no governance-proposal index, so FetchProposals,
// FetchVotes, and FetchDelegations return KindNotSupported — the Fetch
// Coordinator records a fallback warning and moves on to the next source
// for those kinds.
type EtherscanAdapter struct {
	client *httpClient
}

func NewEtherscanAdapter(apiKey string, timeout time.Duration) (*EtherscanAdapter, error) {
	if apiKey == "" {
		return nil, domain.NewError(domain.KindAuthMissing, "etherscan", fmt.Errorf("api_keys.etherscan not set"))
	}
	return &EtherscanAdapter{client: newHTTPClient("etherscan", "https://api.etherscan.io/v2/api", timeout)}, nil
}

func (a *EtherscanAdapter) SourceID() string { return "etherscan" }

type etherscanHolderEntry struct {
	Address      string `json:"TokenHolderAddress"`
	Quantity     string `json:"TokenHolderQuantity"`
}

type etherscanHolderResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Result  []etherscanHolderEntry `json:"result"`
}

func (a *EtherscanAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (HolderPage, error) {
	page := 1
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &page)
	}
	q := url.Values{}
	q.Set("module", "token")
	q.Set("action", "tokenholderlist")
	q.Set("contractaddress", string(protocol))
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("offset", fmt.Sprintf("%d", limit))

	var resp etherscanHolderResponse
	if err := a.client.getJSON(ctx, "", q, &resp); err != nil {
		return HolderPage{}, err
	}
	if resp.Status != "1" && len(resp.Result) == 0 {
		return HolderPage{}, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("etherscan: %s", resp.Message))
	}

	balances := make([]domain.HolderBalance, 0, len(resp.Result))
	for _, e := range resp.Result {
		amt, ok := new(big.Int).SetString(e.Quantity, 10)
		if !ok || amt.Sign() < 0 {
			continue // dropped by normalizer-grade validation inline; schema mismatch
		}
		addr := decodeHexAddress(e.Address)
		if addr == nil {
			continue
		}
		balances = append(balances, domain.HolderBalance{Address: addr, Balance: amt})
	}
	balances = domain.AssignRanks(balances)

	next := ""
	if len(resp.Result) == limit {
		next = fmt.Sprintf("%d", page+1)
	}
	return HolderPage{Holders: balances, Cursor: next}, nil
}

func (a *EtherscanAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("etherscan has no proposal index"))
}

func (a *EtherscanAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("etherscan has no vote index"))
}

func (a *EtherscanAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("etherscan has no delegation index"))
}
