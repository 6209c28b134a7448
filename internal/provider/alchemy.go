package provider

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"govtoken-analytics/internal/domain"
)

// AlchemyAdapter has no governance-subgraph index; it answers FetchHolders
// by replaying the token's transfer log via Alchemy's asset-transfers API
// and reducing to balances.
// Proposals and votes are NotSupported; delegations are served by
// decoding DelegateChanged event logs, the same log-replay idiom.
type AlchemyAdapter struct {
	client *httpClient
	apiKey string
}

func NewAlchemyAdapter(apiKey string, timeout time.Duration) (*AlchemyAdapter, error) {
	if apiKey == "" {
		return nil, domain.NewError(domain.KindAuthMissing, "alchemy", fmt.Errorf("api_keys.alchemy not set"))
	}
	return &AlchemyAdapter{
		client: newHTTPClient("alchemy", "https://eth-mainnet.g.alchemy.com/v2/"+apiKey, timeout),
		apiKey: apiKey,
	}, nil
}

func (a *AlchemyAdapter) SourceID() string { return "alchemy" }

type alchemyTransferResult struct {
	Result struct {
		Transfers []struct {
			From  string `json:"from"`
			To    string `json:"to"`
			RawContract struct {
				Value string `json:"value"` // hex-encoded base-unit amount
			} `json:"rawContract"`
		} `json:"transfers"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AlchemyAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (HolderPage, error) {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "alchemy_getAssetTransfers",
		"params": []map[string]any{{
			"contractAddresses": []string{string(protocol)},
			"category":          []string{"erc20"},
			"withMetadata":      false,
			"maxCount":          "0x3e8",
		}},
	}

	var resp alchemyTransferResult
	if err := a.client.postJSON(ctx, "", payload, &resp); err != nil {
		return HolderPage{}, err
	}
	if resp.Error != nil {
		return HolderPage{}, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("alchemy rpc error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	transfers := make([]TransferEvent, 0, len(resp.Result.Transfers))
	for _, t := range resp.Result.Transfers {
		amt, ok := parseHexBigInt(t.RawContract.Value)
		if !ok {
			continue
		}
		from := decodeHexAddress(t.From)
		to := decodeHexAddress(t.To)
		if to == nil {
			continue
		}
		transfers = append(transfers, TransferEvent{From: from, To: to, Amount: amt})
	}

	balances := ReplayTransfersToBalances(transfers)
	if len(balances) > limit {
		balances = balances[:limit]
	}
	return HolderPage{Holders: balances}, nil
}

func (a *AlchemyAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("alchemy has no proposal index"))
}

func (a *AlchemyAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	return nil, domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("alchemy has no vote index"))
}

const delegateChangedTopic = "0x3134e8a2e6d97e929a7e54011ea5485d7d196dd5f0ba4d4ef95803e8e3fc257f"

type alchemyLogsResult struct {
	Result []struct {
		Topics []string `json:"topics"`
		Data   string   `json:"data"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AlchemyAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_getLogs",
		"params": []map[string]any{{
			"address": string(protocol),
			"topics":  []string{delegateChangedTopic},
		}},
	}

	var resp alchemyLogsResult
	if err := a.client.postJSON(ctx, "", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("alchemy rpc error %d: %s", resp.Error.Code, resp.Error.Message))
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

func parseHexBigInt(hexStr string) (*big.Int, bool) {
	if len(hexStr) < 3 || hexStr[:2] != "0x" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(hexStr[2:], 16)
	return v, ok
}
