package provider

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"govtoken-analytics/internal/domain"
)

// TheGraphAdapter queries a protocol's governance subgraph via the Graph
// Gateway's GraphQL endpoint. Subgraphs index holder balances, proposals,
// votes, and delegations directly, so this is the only adapter that
// answers all four fetch-* operations without a NotSupported fallback.
type TheGraphAdapter struct {
	client  *httpClient
	subgraphPath map[domain.ProtocolID]string
}

func NewTheGraphAdapter(apiKey string, subgraphPath map[domain.ProtocolID]string, timeout time.Duration) (*TheGraphAdapter, error) {
	if apiKey == "" {
		return nil, domain.NewError(domain.KindAuthMissing, "thegraph", fmt.Errorf("api_keys.graph not set"))
	}
	return &TheGraphAdapter{
		client:       newHTTPClient("thegraph", "https://gateway.thegraph.com/api/"+apiKey+"/subgraphs/id", timeout),
		subgraphPath: subgraphPath,
	}, nil
}

func (a *TheGraphAdapter) SourceID() string { return "thegraph" }

func (a *TheGraphAdapter) pathFor(protocol domain.ProtocolID) (string, error) {
	p, ok := a.subgraphPath[protocol]
	if !ok {
		return "", domain.NewError(domain.KindNotSupported, a.SourceID(), fmt.Errorf("no subgraph configured for protocol %q", protocol))
	}
	return p, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type holdersGraphQLResponse struct {
	Data struct {
		Accounts []struct {
			ID      string `json:"id"`
			Balance string `json:"balance"`
		} `json:"accounts"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (a *TheGraphAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (HolderPage, error) {
	path, err := a.pathFor(protocol)
	if err != nil {
		return HolderPage{}, err
	}

	query := `query Holders($first: Int!, $lastID: String!) {
		accounts(first: $first, where: { id_gt: $lastID, balance_gt: "0" }, orderBy: id) {
			id
			balance
		}
	}`
	req := graphQLRequest{Query: query, Variables: map[string]any{"first": limit, "lastID": cursor}}

	var resp holdersGraphQLResponse
	if err := a.client.postJSON(ctx, "/"+path, req, &resp); err != nil {
		return HolderPage{}, err
	}
	if len(resp.Errors) > 0 {
		return HolderPage{}, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}

	balances := make([]domain.HolderBalance, 0, len(resp.Data.Accounts))
	last := cursor
	for _, acc := range resp.Data.Accounts {
		amt, ok := new(big.Int).SetString(acc.Balance, 10)
		if !ok || amt.Sign() < 0 {
			continue
		}
		addr := decodeHexAddress(acc.ID)
		if addr == nil {
			continue
		}
		balances = append(balances, domain.HolderBalance{Address: addr, Balance: amt})
		last = acc.ID
	}
	balances = domain.AssignRanks(balances)

	next := ""
	if len(resp.Data.Accounts) == limit {
		next = last
	}
	return HolderPage{Holders: balances, Cursor: next}, nil
}

type proposalsGraphQLResponse struct {
	Data struct {
		Proposals []struct {
			ID          string `json:"id"`
			Proposer    string `json:"proposer"`
			CreatedAt   string `json:"createdAt"`
			StartTime   string `json:"startTime"`
			EndTime     string `json:"endTime"`
			Status      string `json:"status"`
			Quorum      string `json:"quorum"`
			ForVotes    string `json:"forVotes"`
			AgainstVotes string `json:"againstVotes"`
			AbstainVotes string `json:"abstainVotes"`
			Category    string `json:"category"`
			DiscussionURL string `json:"discussionUrl"`
		} `json:"proposals"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (a *TheGraphAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	path, err := a.pathFor(protocol)
	if err != nil {
		return nil, err
	}

	query := `query Proposals($since: Int!, $until: Int!) {
		proposals(where: { createdAt_gte: $since, createdAt_lte: $until }, orderBy: createdAt) {
			id proposer createdAt startTime endTime status quorum forVotes againstVotes abstainVotes
			category discussionUrl
		}
	}`
	req := graphQLRequest{Query: query, Variables: map[string]any{"since": since.Unix(), "until": until.Unix()}}

	var resp proposalsGraphQLResponse
	if err := a.client.postJSON(ctx, "/"+path, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}

	out := make([]domain.Proposal, 0, len(resp.Data.Proposals))
	for _, p := range resp.Data.Proposals {
		quorum, _ := new(big.Int).SetString(p.Quorum, 10)
		forV, _ := new(big.Int).SetString(p.ForVotes, 10)
		againstV, _ := new(big.Int).SetString(p.AgainstVotes, 10)
		abstainV, _ := new(big.Int).SetString(p.AbstainVotes, 10)
		if quorum == nil {
			quorum = new(big.Int)
		}
		if forV == nil {
			forV = new(big.Int)
		}
		if againstV == nil {
			againstV = new(big.Int)
		}
		if abstainV == nil {
			abstainV = new(big.Int)
		}

		var metadata map[string]string
		if p.Category != "" || p.DiscussionURL != "" {
			metadata = make(map[string]string, 2)
			if p.Category != "" {
				metadata["category"] = p.Category
			}
			if p.DiscussionURL != "" {
				metadata["discussion_url"] = p.DiscussionURL
			}
		}

		out = append(out, domain.Proposal{
			ProtocolID:  protocol,
			ProposalID:  p.ID,
			Proposer:    decodeHexAddress(p.Proposer),
			CreatedAt:   parseUnixSeconds(p.CreatedAt),
			VotingStart: parseUnixSeconds(p.StartTime),
			VotingEnd:   parseUnixSeconds(p.EndTime),
			Status:      domain.ProposalStatus(p.Status),
			QuorumRequired: quorum,
			Tallies:     domain.Tallies{For: forV, Against: againstV, Abstain: abstainV},
			Metadata:    metadata,
		})
	}
	return out, nil
}

type votesGraphQLResponse struct {
	Data struct {
		Votes []struct {
			Voter     string `json:"voter"`
			Choice    string `json:"choice"`
			Power     string `json:"votingPower"`
			Timestamp string `json:"timestamp"`
		} `json:"votes"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (a *TheGraphAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	path, err := a.pathFor(proposal.ProtocolID)
	if err != nil {
		return nil, err
	}

	query := `query Votes($proposalID: String!) {
		votes(where: { proposal: $proposalID }) { voter choice votingPower timestamp }
	}`
	req := graphQLRequest{Query: query, Variables: map[string]any{"proposalID": proposal.ProposalID}}

	var resp votesGraphQLResponse
	if err := a.client.postJSON(ctx, "/"+path, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}

	out := make([]domain.Vote, 0, len(resp.Data.Votes))
	for _, v := range resp.Data.Votes {
		power, ok := new(big.Int).SetString(v.Power, 10)
		if !ok {
			continue
		}
		voter := decodeHexAddress(v.Voter)
		if voter == nil {
			continue
		}
		out = append(out, domain.Vote{
			Proposal: proposal,
			Voter:    voter,
			Choice:   domain.VoteChoice(v.Choice),
			Power:    power,
			CastAt:   parseUnixSeconds(v.Timestamp),
		})
	}
	return out, nil
}

type delegationsGraphQLResponse struct {
	Data struct {
		Delegations []struct {
			Delegator string `json:"delegator"`
			Delegatee string `json:"delegatee"`
			Amount    string `json:"amount"`
			Full      bool   `json:"isFullDelegation"`
			Timestamp string `json:"timestamp"`
		} `json:"delegateChanges"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (a *TheGraphAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	path, err := a.pathFor(protocol)
	if err != nil {
		return nil, err
	}

	query := `query Delegations($since: Int!, $until: Int!) {
		delegateChanges(where: { timestamp_gte: $since, timestamp_lte: $until }) {
			delegator delegatee amount isFullDelegation timestamp
		}
	}`
	req := graphQLRequest{Query: query, Variables: map[string]any{"since": since.Unix(), "until": until.Unix()}}

	var resp delegationsGraphQLResponse
	if err := a.client.postJSON(ctx, "/"+path, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, domain.NewError(domain.KindPermanentSchema, a.SourceID(), fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}

	out := make([]domain.Delegation, 0, len(resp.Data.Delegations))
	for _, d := range resp.Data.Delegations {
		delegator := decodeHexAddress(d.Delegator)
		delegatee := decodeHexAddress(d.Delegatee)
		if delegator == nil || delegatee == nil || delegator.Compare(delegatee) == 0 {
			continue // self-loop or malformed; dropped, not normalized
		}
		amt, _ := new(big.Int).SetString(d.Amount, 10)
		if amt == nil {
			amt = new(big.Int)
		}
		out = append(out, domain.Delegation{
			Delegator:     delegator,
			Delegatee:     delegatee,
			EffectiveFrom: parseUnixSeconds(d.Timestamp),
			Amount:        amt,
			Full:          d.Full,
		})
	}
	return out, nil
}

func parseUnixSeconds(s string) time.Time {
	var sec int64
	fmt.Sscanf(s, "%d", &sec)
	return time.Unix(sec, 0).UTC()
}
