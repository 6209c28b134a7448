package fetch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govtoken-analytics/internal/telemetry"
)

func TestFingerprint_DeterministicForSameInputs(t *testing.T) {
	a := fingerprint("etherscan", callHolders, "compound", 100)
	b := fingerprint("etherscan", callHolders, "compound", 100)
	assert.Equal(t, a, b)
}

func TestFingerprint_DiffersByArgument(t *testing.T) {
	a := fingerprint("etherscan", callHolders, "compound", 100)
	b := fingerprint("etherscan", callHolders, "compound", 200)
	assert.NotEqual(t, a, b)
}

func TestFingerprint_DiffersBySourceAndKind(t *testing.T) {
	a := fingerprint("etherscan", callHolders, "compound")
	b := fingerprint("thegraph", callHolders, "compound")
	c := fingerprint("etherscan", callProposals, "compound")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestResponseCache_BucketRoutesByCallKind(t *testing.T) {
	rc := newResponseCache(40, 60, 60, 60)
	assert.Same(t, rc.holders, rc.bucket(callHolders))
	assert.Same(t, rc.proposals, rc.bucket(callProposals))
	assert.Same(t, rc.votes, rc.bucket(callVotes))
	assert.Same(t, rc.delegations, rc.bucket(callDelegations))
}

func TestResponseCache_PutAndGetRoundTrips(t *testing.T) {
	rc := newResponseCache(40, 60, 60, 60)
	key := fingerprint("etherscan", callHolders, "compound")
	rc.bucket(callHolders).Put(key, "cached-value")

	v, ok := rc.bucket(callHolders).Get(key)
	assert.True(t, ok)
	assert.Equal(t, "cached-value", v)
}

func TestResponseCache_StatusReportsEntriesAndHitMissPerKind(t *testing.T) {
	rc := newResponseCache(40, 60, 60, 60)
	key := fingerprint("etherscan", callVotes, "compound")
	rc.bucket(callVotes).Put(key, "cached-value")
	rc.bucket(callVotes).Get(key)    // hit
	rc.bucket(callVotes).Get("miss") // miss

	status := rc.status()
	require.Len(t, status, 4)

	var votes bucketStatus
	for _, b := range status {
		if b.Kind == callVotes {
			votes = b
		}
	}
	assert.Equal(t, 1, votes.Entries)
	assert.Equal(t, int64(1), votes.Hits)
	assert.Equal(t, int64(1), votes.Misses)
}

func TestResponseCache_CapacityEvictionIncrementsEvictionsCounter(t *testing.T) {
	rc := newResponseCache(8, 60, 60, 60) // perKind == 2
	before := testutil.ToFloat64(telemetry.CacheEvictionsTotal.WithLabelValues(string(callHolders), "capacity"))

	rc.bucket(callHolders).Put(fingerprint("a", callHolders), "v1")
	rc.bucket(callHolders).Put(fingerprint("b", callHolders), "v2")
	rc.bucket(callHolders).Put(fingerprint("c", callHolders), "v3") // evicts "a"

	after := testutil.ToFloat64(telemetry.CacheEvictionsTotal.WithLabelValues(string(callHolders), "capacity"))
	assert.Equal(t, before+1, after)
}
