package provider

import (
	"context"
	"fmt"
	"time"

	"govtoken-analytics/internal/domain"
)

// InfuraAdapter is a plain Ethereum JSON-RPC endpoint with no indexing
// beyond raw log queries. It serves only FetchDelegations (via the same
// DelegateChanged log-replay idiom as AlchemyAdapter); holders, proposals,
// and votes require an index Infura doesn't provide.
type InfuraAdapter struct {
	client *httpClient
}

func NewInfuraAdapter(apiKey string, timeout time.Duration) (*InfuraAdapter, error) {
	if apiKey == "" {
		return nil, domain.NewError(domain.KindAuthMissing, "infura", fmt.Errorf("api_keys.infura not set"))
	}
	return &InfuraAdapter{client: newHTTPClient("infura", "https://mainnet.infura.io/v3/"+apiKey, timeout)}, nil
}

func (a *InfuraAdapter) SourceID() string { return "infura" }

func (a *InfuraAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (HolderPage, error) {
	return HolderPage{}, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("infura has no holder index"))
}

func (a *InfuraAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("infura has no proposal index"))
}

func (a *InfuraAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("infura has no vote index"))
}

func (a *InfuraAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_getLogs",
		"params": []map[string]any{{
			"address": string(protocol),
			"topics":  []string{delegateChangedTopic},
		}},
	}

	var resp alchemyLogsResult // identical JSON-RPC log shape
	if err := a.client.postJSON(ctx, "", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("infura rpc error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	out := make([]domain.Delegation, 0, len(resp.Result))
	for _, log := range resp.Result {
		if len(log.Topics) < 3 {
			continue
		}
		delegator := decodeHexAddress(log.Topics[1])
		delegatee := decodeHexAddress(log.Topics[2])
		if delegator == nil || delegatee == nil || delegator.Compare(delegatee) == 0 {
			continue
		}
		out = append(out, domain.Delegation{Delegator: delegator, Delegatee: delegatee, Full: true, EffectiveFrom: since})
	}
	return out, nil
}
