// Package fetch implements the Fetch Coordinator: for
// each requested data kind it walks a protocol's configured fallback
// chain of provider sources in priority order, applying per-source rate
// limiting, bounded retry with backoff, response caching, and circuit
// breaking, and falls back to the Simulator only once every real source
// in the chain has been exhausted, generalized from a single-chain
// worker pool to a per-data-kind fallback walk.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"math/rand/v2"
	"sync"
	"time"

	"govtoken-analytics/internal/circuitbreaker"
	"govtoken-analytics/internal/config"
	"govtoken-analytics/internal/domain"
	"govtoken-analytics/internal/provider"
	"govtoken-analytics/internal/simulate"
	"govtoken-analytics/internal/telemetry"
)

// Result bundles one data kind's fetched records with the provenance
// bookkeeping the coordinator accumulates while walking the fallback
// chain: which source actually answered, how degraded the result is,
// and any warnings worth surfacing in the final Snapshot.
type Result struct {
	SourceUsed string
	Provenance domain.Provenance
	Degraded   bool
	Warnings   []string
}

// Coordinator owns one sourceGuard per source it has called, plus one
// response cache shared by all sources (keyed by source), and dispatches
// calls against provider.Registry.
type Coordinator struct {
	cfg      config.Config
	registry *provider.Registry
	log      *slog.Logger
	cache    *responseCache

	mu     sync.Mutex
	guards map[string]*sourceGuard
	rngs   map[string]*rand.Rand
}

func NewCoordinator(cfg config.Config, registry *provider.Registry, log *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		log:      log,
		cache:    newResponseCache(cfg.Cache.MaxEntries, cfg.Cache.HoldersTTLSeconds, cfg.Cache.ProposalsTTLSeconds, cfg.Cache.VotesTTLSeconds),
		guards:   make(map[string]*sourceGuard),
		rngs:     make(map[string]*rand.Rand),
	}
}

func (c *Coordinator) guardFor(sourceID string) *sourceGuard {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.guards[sourceID]
	if !ok {
		g = newSourceGuard(sourceID, 5, 10, c.cfg.Concurrency.PerSource, c.cfg.Concurrency.PerSource*4)
		c.guards[sourceID] = g
	}
	return g
}

// SourceStatus is one provider source's circuit breaker reading, as
// surfaced by the status subcommand.
type SourceStatus struct {
	SourceID     string
	BreakerState circuitbreaker.State
}

// CacheBucketStatus is one data kind's response cache bucket, as
// surfaced alongside SourceStatus.
type CacheBucketStatus struct {
	Kind    string
	Entries int
	Hits    int64
	Misses  int64
}

// Status reports the live circuit breaker state of every source this
// Coordinator has guarded so far, and the response cache's hit/miss
// counters per data kind — the operational picture behind a fallback
// chain that otherwise only surfaces through Result.Warnings.
func (c *Coordinator) Status() ([]SourceStatus, []CacheBucketStatus) {
	c.mu.Lock()
	sources := make([]SourceStatus, 0, len(c.guards))
	for sourceID, g := range c.guards {
		sources = append(sources, SourceStatus{SourceID: sourceID, BreakerState: g.state()})
	}
	c.mu.Unlock()

	buckets := c.cache.status()
	cacheStatus := make([]CacheBucketStatus, 0, len(buckets))
	for _, b := range buckets {
		cacheStatus = append(cacheStatus, CacheBucketStatus{Kind: string(b.Kind), Entries: b.Entries, Hits: b.Hits, Misses: b.Misses})
	}
	return sources, cacheStatus
}

// recordCallOutcome drives the attempt/retry/failure/fallback counters
// for one source-level call within a kind's fallback-chain walk:
// FetchCallsTotal counts the call itself once, FetchRetriesTotal counts
// the internal retries callWithRetry spent on it (outcome.Attempts-1),
// and FetchFailuresTotal/FetchFallbacksTotal only fire when the source
// failed with something other than cancellation — a cancelled call
// aborts the whole walk rather than falling back.
func (c *Coordinator) recordCallOutcome(sourceID string, kind callKind, outcome retryOutcome) {
	telemetry.FetchCallsTotal.WithLabelValues(sourceID, string(kind)).Inc()
	if outcome.Attempts > 1 {
		telemetry.FetchRetriesTotal.WithLabelValues(sourceID, string(kind)).Add(float64(outcome.Attempts - 1))
	}
	if outcome.Err == nil {
		return
	}
	errKind := domain.KindOf(outcome.Err)
	if errKind == domain.KindCancelled {
		return
	}
	telemetry.FetchFailuresTotal.WithLabelValues(sourceID, string(kind), string(errKind)).Inc()
	telemetry.FetchFallbacksTotal.WithLabelValues(string(kind)).Inc()
}

// seedFor derives a per-protocol seed from the configured base seed, so
// a given (protocol, seed) pair always yields the same synthetic data
// regardless of call ordering elsewhere in the coordinator.
func (c *Coordinator) seedFor(protocol domain.ProtocolID) uint64 {
	h := uint64(14695981039346656037) // FNV-1a offset basis
	for _, b := range []byte(string(protocol)) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h ^ c.cfg.Simulator.Seed
}

// FetchHolders walks config.FallbackChains.Holders for protocol.
func (c *Coordinator) FetchHolders(ctx context.Context, protocol domain.Protocol, limit int) ([]domain.HolderBalance, Result, error) {
	chain := c.cfg.FallbackChains.Holders
	var warnings []string

	for _, sourceID := range chain {
		if sourceID == "simulator" {
			holders := simulate.GenerateHolders(simulate.Profile(c.cfg.Simulator.Profile), simulate.Params{
				Seed: c.seedFor(protocol.ID), Holders: limit, Supply: protocol.Supply,
				Alpha: c.cfg.Simulator.Alpha, DominantShare: c.cfg.Simulator.DominantShare,
			})
			warnings = append(warnings, fmt.Sprintf("holders: all real sources exhausted, using simulator for %s", protocol.ID))
			return holders, Result{SourceUsed: "simulator", Provenance: domain.ProvenanceSimulated, Degraded: true, Warnings: warnings}, nil
		}

		adapter, ok := c.registry.Get(sourceID)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("holders: source %q not registered, skipping", sourceID))
			continue
		}

		key := fingerprint(sourceID, callHolders, protocol.ID, limit)
		if cached, ok := c.cache.bucket(callHolders).Get(key); ok {
			telemetry.CacheHitsTotal.WithLabelValues(string(callHolders)).Inc()
			return cached.([]domain.HolderBalance), Result{SourceUsed: sourceID, Provenance: domain.ProvenanceCached}, nil
		}
		telemetry.CacheMissesTotal.WithLabelValues(string(callHolders)).Inc()

		var page provider.HolderPage
		outcome := callWithRetry(ctx, c.log, c.rngFor(sourceID), c.cfg.Retry, sourceID, func(cctx context.Context) error {
			guard := c.guardFor(sourceID)
			release, err := guard.acquire(cctx)
			if err != nil {
				return err
			}
			defer release()

			p, err := adapter.FetchHolders(cctx, protocol.ID, limit, "")
			guard.recordOutcome(err)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		c.recordCallOutcome(sourceID, callHolders, outcome)

		if outcome.Err == nil {
			c.cache.bucket(callHolders).Put(key, page.Holders)
			prov := domain.ProvenanceLive
			if tiered, ok := adapter.(interface{ Tier() domain.Provenance }); ok {
				prov = tiered.Tier()
			}
			return page.Holders, Result{SourceUsed: sourceID, Provenance: prov, Warnings: warnings}, nil
		}

		kind := domain.KindOf(outcome.Err)
		if kind == domain.KindCancelled {
			return nil, Result{}, outcome.Err
		}
		warnings = append(warnings, fmt.Sprintf("holders: source %q failed (%s), falling back", sourceID, kind))
	}

	return nil, Result{}, domain.NewError(domain.KindInternal, "coordinator", fmt.Errorf("holders: fallback chain exhausted with no simulator entry for %s", protocol.ID))
}

// FetchProposals walks config.FallbackChains.Proposals for protocol.
func (c *Coordinator) FetchProposals(ctx context.Context, protocol domain.Protocol, since, until time.Time) ([]domain.Proposal, Result, error) {
	chain := c.cfg.FallbackChains.Proposals
	var warnings []string

	for _, sourceID := range chain {
		if sourceID == "simulator" {
			proposals := simulateProposals(c.seedFor(protocol.ID), protocol, since, until)
			warnings = append(warnings, fmt.Sprintf("proposals: all real sources exhausted, using simulator for %s", protocol.ID))
			return proposals, Result{SourceUsed: "simulator", Provenance: domain.ProvenanceSimulated, Degraded: true, Warnings: warnings}, nil
		}

		adapter, ok := c.registry.Get(sourceID)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("proposals: source %q not registered, skipping", sourceID))
			continue
		}

		key := fingerprint(sourceID, callProposals, protocol.ID, since.Unix(), until.Unix())
		if cached, ok := c.cache.bucket(callProposals).Get(key); ok {
			telemetry.CacheHitsTotal.WithLabelValues(string(callProposals)).Inc()
			return cached.([]domain.Proposal), Result{SourceUsed: sourceID, Provenance: domain.ProvenanceCached}, nil
		}
		telemetry.CacheMissesTotal.WithLabelValues(string(callProposals)).Inc()

		var proposals []domain.Proposal
		outcome := callWithRetry(ctx, c.log, c.rngFor(sourceID), c.cfg.Retry, sourceID, func(cctx context.Context) error {
			guard := c.guardFor(sourceID)
			release, err := guard.acquire(cctx)
			if err != nil {
				return err
			}
			defer release()

			p, err := adapter.FetchProposals(cctx, protocol.ID, since, until)
			guard.recordOutcome(err)
			if err != nil {
				return err
			}
			proposals = p
			return nil
		})
		c.recordCallOutcome(sourceID, callProposals, outcome)

		if outcome.Err == nil {
			c.cache.bucket(callProposals).Put(key, proposals)
			return proposals, Result{SourceUsed: sourceID, Provenance: domain.ProvenanceLive, Warnings: warnings}, nil
		}

		kind := domain.KindOf(outcome.Err)
		if kind == domain.KindCancelled {
			return nil, Result{}, outcome.Err
		}
		warnings = append(warnings, fmt.Sprintf("proposals: source %q failed (%s), falling back", sourceID, kind))
	}

	return nil, Result{}, domain.NewError(domain.KindInternal, "coordinator", fmt.Errorf("proposals: fallback chain exhausted with no simulator entry for %s", protocol.ID))
}

// FetchVotes walks config.FallbackChains.Votes for one proposal.
// referenceTime anchors the simulator fallback's CastAt offsets (the
// proposal's own voting-end time, in practice) so simulated output
// depends only on the seed and the proposal, never the host clock.
func (c *Coordinator) FetchVotes(ctx context.Context, protocol domain.Protocol, proposal domain.ProposalKey, referenceTime time.Time) ([]domain.Vote, Result, error) {
	chain := c.cfg.FallbackChains.Votes
	var warnings []string

	for _, sourceID := range chain {
		if sourceID == "simulator" {
			votes := simulateVotes(c.seedFor(protocol.ID)^seedFromString(proposal.ProposalID), proposal, referenceTime)
			warnings = append(warnings, fmt.Sprintf("votes: all real sources exhausted, using simulator for proposal %s", proposal.ProposalID))
			return votes, Result{SourceUsed: "simulator", Provenance: domain.ProvenanceSimulated, Degraded: true, Warnings: warnings}, nil
		}

		adapter, ok := c.registry.Get(sourceID)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("votes: source %q not registered, skipping", sourceID))
			continue
		}

		key := fingerprint(sourceID, callVotes, proposal.ProtocolID, proposal.ProposalID)
		if cached, ok := c.cache.bucket(callVotes).Get(key); ok {
			telemetry.CacheHitsTotal.WithLabelValues(string(callVotes)).Inc()
			return cached.([]domain.Vote), Result{SourceUsed: sourceID, Provenance: domain.ProvenanceCached}, nil
		}
		telemetry.CacheMissesTotal.WithLabelValues(string(callVotes)).Inc()

		var votes []domain.Vote
		outcome := callWithRetry(ctx, c.log, c.rngFor(sourceID), c.cfg.Retry, sourceID, func(cctx context.Context) error {
			guard := c.guardFor(sourceID)
			release, err := guard.acquire(cctx)
			if err != nil {
				return err
			}
			defer release()

			v, err := adapter.FetchVotes(cctx, proposal)
			guard.recordOutcome(err)
			if err != nil {
				return err
			}
			votes = v
			return nil
		})
		c.recordCallOutcome(sourceID, callVotes, outcome)

		if outcome.Err == nil {
			c.cache.bucket(callVotes).Put(key, votes)
			return votes, Result{SourceUsed: sourceID, Provenance: domain.ProvenanceLive, Warnings: warnings}, nil
		}

		kind := domain.KindOf(outcome.Err)
		if kind == domain.KindCancelled {
			return nil, Result{}, outcome.Err
		}
		warnings = append(warnings, fmt.Sprintf("votes: source %q failed (%s), falling back", sourceID, kind))
	}

	return nil, Result{}, domain.NewError(domain.KindInternal, "coordinator", fmt.Errorf("votes: fallback chain exhausted with no simulator entry for proposal %s", proposal.ProposalID))
}

// FetchDelegations walks config.FallbackChains.Delegations for protocol.
func (c *Coordinator) FetchDelegations(ctx context.Context, protocol domain.Protocol, since, until time.Time) ([]domain.Delegation, Result, error) {
	chain := c.cfg.FallbackChains.Delegations
	var warnings []string

	for _, sourceID := range chain {
		if sourceID == "simulator" {
			delegations := simulateDelegations(c.seedFor(protocol.ID), protocol, since)
			warnings = append(warnings, fmt.Sprintf("delegations: all real sources exhausted, using simulator for %s", protocol.ID))
			return delegations, Result{SourceUsed: "simulator", Provenance: domain.ProvenanceSimulated, Degraded: true, Warnings: warnings}, nil
		}

		adapter, ok := c.registry.Get(sourceID)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("delegations: source %q not registered, skipping", sourceID))
			continue
		}

		key := fingerprint(sourceID, callDelegations, protocol.ID, since.Unix(), until.Unix())
		if cached, ok := c.cache.bucket(callDelegations).Get(key); ok {
			telemetry.CacheHitsTotal.WithLabelValues(string(callDelegations)).Inc()
			return cached.([]domain.Delegation), Result{SourceUsed: sourceID, Provenance: domain.ProvenanceCached}, nil
		}
		telemetry.CacheMissesTotal.WithLabelValues(string(callDelegations)).Inc()

		var delegations []domain.Delegation
		outcome := callWithRetry(ctx, c.log, c.rngFor(sourceID), c.cfg.Retry, sourceID, func(cctx context.Context) error {
			guard := c.guardFor(sourceID)
			release, err := guard.acquire(cctx)
			if err != nil {
				return err
			}
			defer release()

			d, err := adapter.FetchDelegations(cctx, protocol.ID, since, until)
			guard.recordOutcome(err)
			if err != nil {
				return err
			}
			delegations = d
			return nil
		})
		c.recordCallOutcome(sourceID, callDelegations, outcome)

		if outcome.Err == nil {
			c.cache.bucket(callDelegations).Put(key, delegations)
			return delegations, Result{SourceUsed: sourceID, Provenance: domain.ProvenanceLive, Warnings: warnings}, nil
		}

		kind := domain.KindOf(outcome.Err)
		if kind == domain.KindCancelled {
			return nil, Result{}, outcome.Err
		}
		warnings = append(warnings, fmt.Sprintf("delegations: source %q failed (%s), falling back", sourceID, kind))
	}

	return nil, Result{}, domain.NewError(domain.KindInternal, "coordinator", fmt.Errorf("delegations: fallback chain exhausted with no simulator entry for %s", protocol.ID))
}

// rngFor returns a per-source rng for backoff jitter, lazily created so
// each source's retry delays are deterministic given the configured seed
// but independent across sources.
func (c *Coordinator) rngFor(sourceID string) *rand.Rand {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rngs[sourceID]
	if !ok {
		seed := seedFromString(sourceID) ^ c.cfg.Simulator.Seed
		r = rand.New(rand.NewPCG(seed, seed^0xD1B54A32D192ED03))
		c.rngs[sourceID] = r
	}
	return r
}

// simulateProposals and friends live here rather than in package
// simulate because they need the coordinator's per-protocol seed
// derivation; package simulate only knows about holder distributions
// and stays free of the domain's governance-record shapes.
func simulateProposals(seed uint64, protocol domain.Protocol, since, until time.Time) []domain.Proposal {
	rng := rand.New(rand.NewPCG(seed, seed^0xA24BAED4963EE407))
	count := poisson(rng, 3.0) //: Poisson(lambda=3) proposal count per window
	span := until.Sub(since)
	if span <= 0 {
		span = 24 * time.Hour
	}

	proposals := make([]domain.Proposal, 0, count)
	for i := 0; i < count; i++ {
		offset := time.Duration(rng.Int64N(int64(span)))
		created := since.Add(offset)
		proposals = append(proposals, domain.Proposal{
			ProtocolID: protocol.ID,
			ProposalID: fmt.Sprintf("sim-%d-%d", seed, i),
			Status:     domain.ProposalSucceeded,
			CreatedAt:  created,
			VotingStart: created,
			VotingEnd:   created.Add(7 * 24 * time.Hour),
			Tallies:     domain.ZeroTallies(),
		})
	}
	return proposals
}

// simulateVotes synthesizes votes for proposal. CastAt is offset
// backwards from referenceTime rather than the host clock, since the
// simulator's whole point is bit-identical output for a given seed
// regardless of when or where the run happens — referenceTime (the
// proposal's own voting-end time, in practice) stands in for "now".
func simulateVotes(seed uint64, proposal domain.ProposalKey, referenceTime time.Time) []domain.Vote {
	rng := rand.New(rand.NewPCG(seed, seed^0x2545F4914F6CDD1D))
	voterCount := 10 + rng.IntN(90)
	choices := [3]domain.VoteChoice{domain.ChoiceFor, domain.ChoiceAgainst, domain.ChoiceAbstain}
	votes := make([]domain.Vote, 0, voterCount)
	for i := 0; i < voterCount; i++ {
		addr := make([]byte, 20)
		fillRandomBytes(rng, addr)
		power := new(big.Int).SetInt64(int64(1 + rng.IntN(10000)))
		votes = append(votes, domain.Vote{
			Proposal: proposal,
			Voter:    domain.Address(addr),
			Choice:   choices[rng.IntN(3)],
			Power:    power,
			CastAt:   referenceTime.Add(-time.Duration(rng.IntN(1000)) * time.Hour),
		})
	}
	return votes
}

func simulateDelegations(seed uint64, protocol domain.Protocol, since time.Time) []domain.Delegation {
	rng := rand.New(rand.NewPCG(seed, seed^0x038DECB66C7AC0B7))
	count := rng.IntN(30)
	delegations := make([]domain.Delegation, 0, count)
	for i := 0; i < count; i++ {
		from := make([]byte, 20)
		to := make([]byte, 20)
		fillRandomBytes(rng, from)
		fillRandomBytes(rng, to)
		delegations = append(delegations, domain.Delegation{
			Delegator:     domain.Address(from),
			Delegatee:     domain.Address(to),
			EffectiveFrom: since,
			Full:          true,
		})
	}
	return delegations
}

// fillRandomBytes fills b with pseudorandom bytes drawn from rng
// (math/rand/v2's Rand has no Read method, unlike math/rand's).
func fillRandomBytes(rng *rand.Rand, b []byte) {
	for i := range b {
		b[i] = byte(rng.IntN(256))
	}
}

// poisson draws from a Poisson(lambda) distribution via Knuth's
// algorithm, avoiding a dependency for a single distribution draw.
func poisson(rng *rand.Rand, lambda float64) int {
	threshold := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= threshold {
			return k - 1
		}
	}
}

// seedFromString hashes s into a uint64 via FNV-1a, used to derive a
// per-proposal rng seed from its string id.
func seedFromString(s string) uint64 {
	h := uint64(14695981039346656037)
	for _, b := range []byte(s) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}
