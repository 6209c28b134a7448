package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"govtoken-analytics/internal/cache"
	"govtoken-analytics/internal/telemetry"
)

// responseCache memoizes adapter call results by (source, call, argument
// fingerprint) using one reader-writer-locked generic LRU with per-entry
// TTL per call kind; distinct TTLs per call kind are modeled as these
// distinct cache instances.
type responseCache struct {
	holders     *cache.LRU[string, any]
	proposals   *cache.LRU[string, any]
	votes       *cache.LRU[string, any]
	delegations *cache.LRU[string, any]
}

func newResponseCache(maxEntries, holdersTTLSec, proposalsTTLSec, votesTTLSec int) *responseCache {
	perKind := maxEntries / 4
	if perKind < 1 {
		perKind = 1
	}
	rc := &responseCache{
		holders:     cache.NewLRU[string, any](perKind, time.Duration(holdersTTLSec)*time.Second),
		proposals:   cache.NewLRU[string, any](perKind, time.Duration(proposalsTTLSec)*time.Second),
		votes:       cache.NewLRU[string, any](perKind, time.Duration(votesTTLSec)*time.Second),
		delegations: cache.NewLRU[string, any](perKind, time.Duration(proposalsTTLSec)*time.Second),
	}
	for _, kind := range []callKind{callHolders, callProposals, callVotes, callDelegations} {
		kind := kind
		rc.bucket(kind).OnEvict(func(key string, value any, reason string) {
			telemetry.CacheEvictionsTotal.WithLabelValues(string(kind), reason).Inc()
		})
	}
	return rc
}

func (c *responseCache) bucket(kind callKind) *cache.LRU[string, any] {
	switch kind {
	case callHolders:
		return c.holders
	case callProposals:
		return c.proposals
	case callVotes:
		return c.votes
	case callDelegations:
		return c.delegations
	default:
		return c.holders
	}
}

// bucketStatus is one call kind's LRU bucket, read back through
// LRU.Stats and LRU.Len for the status subcommand.
type bucketStatus struct {
	Kind    callKind
	Entries int
	Hits    int64
	Misses  int64
}

func (c *responseCache) status() []bucketStatus {
	kinds := []callKind{callHolders, callProposals, callVotes, callDelegations}
	out := make([]bucketStatus, 0, len(kinds))
	for _, kind := range kinds {
		b := c.bucket(kind)
		hits, misses := b.Stats()
		out = append(out, bucketStatus{Kind: kind, Entries: b.Len(), Hits: hits, Misses: misses})
	}
	return out
}

// fingerprint hashes the source id, call kind, and arguments into a
// stable cache key — the "arguments fingerprint" the structured log
// events in also report.
func fingerprint(sourceID string, kind callKind, args ...any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", sourceID, kind)
	for _, a := range args {
		fmt.Fprintf(h, "|%v", a)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type callKind string

const (
	callHolders     callKind = "holders"
	callProposals   callKind = "proposals"
	callVotes       callKind = "votes"
	callDelegations callKind = "delegations"
)
