package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"govtoken-analytics/internal/domain"
)

// httpClient is the shared JSON-over-HTTP client every concrete adapter
// embeds: a context-scoped *http.Client plus response-status-to-error
// classification, the same shape as a base RPC client. etherscan and
// ethplorer use REST/query-string GETs; thegraph posts GraphQL bodies,
// and alchemy/infura post JSON-RPC envelopes that the adapters build
// themselves.
type httpClient struct {
	sourceID   string
	baseURL    string
	httpClient *http.Client
}

func newHTTPClient(sourceID, baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		sourceID:   sourceID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// getJSON issues a GET to baseURL+path with the given query params and
// decodes the JSON body into out. HTTP and transport failures are mapped
// to the closed error taxonomy so every adapter classifies identically.
func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return domain.NewError(domain.KindInternal, c.sourceID, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NewError(domain.KindCancelled, c.sourceID, ctx.Err())
		}
		if kind, ok := domain.ClassifyGRPCStatus(err); ok {
			return domain.NewError(kind, c.sourceID, fmt.Errorf("grpc transport: %w", err))
		}
		return domain.NewError(domain.KindTransientUnavailable, c.sourceID, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return domain.NewError(domain.KindTransientUnavailable, c.sourceID, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfterSeconds(resp.Header.Get("Retry-After"))
		return domain.NewRateLimited(c.sourceID, retryAfter, fmt.Errorf("http status 429: %s", string(body)))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewError(domain.KindAuthMissing, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode == http.StatusNotImplemented || resp.StatusCode == http.StatusNotFound:
		return domain.NewError(domain.KindNotSupported, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode >= 500:
		return domain.NewError(domain.KindTransientUnavailable, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode != http.StatusOK:
		return domain.NewError(domain.KindPermanentSchema, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewError(domain.KindPermanentSchema, c.sourceID, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// postJSON mirrors getJSON for POST-body requests (thegraph subgraph
// queries, alchemy/infura JSON-RPC calls).
func (c *httpClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.NewError(domain.KindInternal, c.sourceID, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.NewError(domain.KindInternal, c.sourceID, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NewError(domain.KindCancelled, c.sourceID, ctx.Err())
		}
		if kind, ok := domain.ClassifyGRPCStatus(err); ok {
			return domain.NewError(kind, c.sourceID, fmt.Errorf("grpc transport: %w", err))
		}
		return domain.NewError(domain.KindTransientUnavailable, c.sourceID, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return domain.NewError(domain.KindTransientUnavailable, c.sourceID, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.NewError(domain.KindAuthMissing, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode == http.StatusNotImplemented || resp.StatusCode == http.StatusNotFound {
		return domain.NewError(domain.KindNotSupported, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode >= 500 {
		return domain.NewError(domain.KindTransientUnavailable, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.NewRateLimited(c.sourceID, parseRetryAfterSeconds(resp.Header.Get("Retry-After")), fmt.Errorf("http status 429"))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NewError(domain.KindPermanentSchema, c.sourceID, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.NewError(domain.KindPermanentSchema, c.sourceID, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func parseRetryAfterSeconds(header string) float64 {
	if header == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(header, 64); err == nil {
		return secs
	}
	if when, err := http.ParseTime(header); err == nil {
		d := time.Until(when).Seconds()
		if d > 0 {
			return d
		}
	}
	return 0
}
