// Package core wires the Fetch Coordinator, Normalizer, the three
// analytics packages, and the Snapshot Store into the single
// BuildSnapshot operation the CLI commands drive: one component owning
// every stage, running them with golang.org/x/sync/errgroup, one fresh
// context per run.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"govtoken-analytics/internal/analytics/concentration"
	"govtoken-analytics/internal/analytics/participation"
	"govtoken-analytics/internal/analytics/votingblocks"
	"govtoken-analytics/internal/config"
	"govtoken-analytics/internal/domain"
	"govtoken-analytics/internal/fetch"
	"govtoken-analytics/internal/normalize"
	"govtoken-analytics/internal/obs"
	"govtoken-analytics/internal/provider"
	"govtoken-analytics/internal/snapshotstore"
	"govtoken-analytics/internal/telemetry"
)

const defaultHolderLimit = 2000

// FetchStatus reports this Core's Fetch Coordinator's live provider
// circuit breaker states and response cache hit/miss counters, for the
// CLI's status subcommand.
func (c *Core) FetchStatus() ([]fetch.SourceStatus, []fetch.CacheBucketStatus) {
	return c.coordinator.Status()
}

// Core is the single handle the CLI commands use. It owns no per-request
// state beyond its dependencies, so one Core safely serves concurrent
// BuildSnapshot calls for different protocols.
type Core struct {
	cfg         config.Config
	coordinator *fetch.Coordinator
	normalizer  *normalize.Normalizer
	store       snapshotstore.Store
	notifier    obs.Notifier
	health      *telemetry.HealthRecorder
	log         *slog.Logger
}

func New(cfg config.Config, registry *provider.Registry, store snapshotstore.Store, notifier obs.Notifier, health *telemetry.HealthRecorder, log *slog.Logger) *Core {
	if notifier == nil {
		notifier = obs.NewLogNotifier(log)
	}
	return &Core{
		cfg:         cfg,
		coordinator: fetch.NewCoordinator(cfg, registry, log),
		normalizer:  normalize.New(log),
		store:       store,
		notifier:    notifier,
		health:      health,
		log:         log.With("component", "core"),
	}
}

// fetchedBundle is the coordinator's raw (pre-normalize) output for one
// protocol across all four data kinds.
type fetchedBundle struct {
	holders     []domain.HolderBalance
	proposals   []domain.Proposal
	votes       []domain.Vote
	delegations []domain.Delegation

	sourceUsed map[domain.DataKind]string
	provenance []domain.Provenance
	degraded   bool
	warnings   []string
}

// BuildSnapshot fetches, normalizes, and computes every metric for one
// protocol as of until, then persists the result: Fetch Coordinator →
// Provider Adapters (or Simulator) → Normalizer → (Concentration,
// Participation, Voting-Block) analyzers → Snapshot Store.
func (c *Core) BuildSnapshot(ctx context.Context, protocol domain.Protocol, since, until time.Time) (domain.Snapshot, error) {
	return c.BuildSnapshotWithLimit(ctx, protocol, since, until, defaultHolderLimit)
}

// BuildSnapshotWithLimit is BuildSnapshot with an explicit holder-page
// fetch limit, letting CLI callers trade completeness for latency on
// very large holder sets. holderLimit <= 0 falls back to defaultHolderLimit.
func (c *Core) BuildSnapshotWithLimit(ctx context.Context, protocol domain.Protocol, since, until time.Time, holderLimit int) (domain.Snapshot, error) {
	if holderLimit <= 0 {
		holderLimit = defaultHolderLimit
	}
	traceID := uuid.NewString()
	log := c.log.With("trace_id", traceID, "protocol", protocol.ID)
	log.Info("snapshot build starting", "since", since, "until", until)

	started := time.Now()
	snapshot, err := c.buildSnapshot(ctx, protocol, since, until, holderLimit)
	telemetry.SnapshotBuildDurationSeconds.WithLabelValues(string(protocol.ID)).Observe(time.Since(started).Seconds())

	if err != nil {
		log.Error("snapshot build failed", "error", err)
		c.health.RecordFailure(err, started)
		return domain.Snapshot{}, err
	}
	log.Info("snapshot build complete", "provenance", snapshot.Provenance, "degraded", snapshot.Degraded)
	c.health.RecordSuccess(snapshot.Degraded, started)
	telemetry.SnapshotsBuiltTotal.WithLabelValues(string(protocol.ID), string(snapshot.Provenance)).Inc()
	if snapshot.Degraded {
		telemetry.SnapshotBuildDegradedTotal.WithLabelValues(string(protocol.ID)).Inc()
		c.notifier.Send(ctx, obs.Notice{
			Kind:     obs.NoticeDegraded,
			Protocol: protocol.ID,
			Title:    "snapshot degraded to simulated data",
			Message:  fmt.Sprintf("all real sources exhausted for %s; snapshot built from the simulator", protocol.ID),
		})
	}
	return snapshot, nil
}

func (c *Core) buildSnapshot(ctx context.Context, protocol domain.Protocol, since, until time.Time, holderLimit int) (domain.Snapshot, error) {
	bundle, err := c.fetchAll(ctx, protocol, since, until, holderLimit)
	if err != nil {
		return domain.Snapshot{}, err
	}

	holders, holdersReport := c.normalizer.Holders(protocol.ID, bundle.holders)
	proposals, proposalsReport := c.normalizer.Proposals(protocol.ID, bundle.proposals)
	votes, votesReport := c.normalizer.Votes(protocol.ID, bundle.votes)
	delegations, delegationsReport := c.normalizer.Delegations(protocol.ID, bundle.delegations)

	for kind, report := range map[domain.DataKind]normalize.Report{
		domain.KindHolders:     holdersReport,
		domain.KindProposals:   proposalsReport,
		domain.KindVotes:       votesReport,
		domain.KindDelegations: delegationsReport,
	} {
		telemetry.NormalizerDroppedRecordsTotal.WithLabelValues(string(kind)).Add(float64(report.Expected - report.Survived))
		if !report.Accepted() {
			return domain.Snapshot{}, domain.NewError(domain.KindValidation, "normalizer",
				fmt.Errorf("%s: survivor share below minimum (%d/%d survived)", kind, report.Survived, report.Expected))
		}
	}

	balanceOf := make(map[string]*big.Int, len(holders))
	for _, h := range holders {
		balanceOf[h.Address.String()] = h.Balance
	}

	votesByProposal := make(map[string][]domain.Vote)
	for _, v := range votes {
		votesByProposal[v.Proposal.ProposalID] = append(votesByProposal[v.Proposal.ProposalID], v)
	}

	holderBalanceFn := func(a domain.Address) *big.Int {
		if b, ok := balanceOf[a.String()]; ok {
			return b
		}
		return new(big.Int)
	}
	var effectivePower map[string]*big.Int
	if len(delegations) > 0 {
		effectivePower = domain.NewGraph(delegations).EffectivePower(holderBalanceFn)
	}

	metrics, err := c.computeMetrics(ctx, protocol, holders, proposals, votesByProposal, balanceOf, effectivePower)
	if err != nil {
		return domain.Snapshot{}, err
	}

	warnings := append([]string{}, bundle.warnings...)
	warnings = append(warnings, holdersReport.Warnings...)
	warnings = append(warnings, proposalsReport.Warnings...)
	warnings = append(warnings, votesReport.Warnings...)
	warnings = append(warnings, delegationsReport.Warnings...)

	snapshot := domain.Snapshot{
		Protocol:    protocol.Clone(),
		Timestamp:   until,
		Holders:     holders,
		Proposals:   proposals,
		Votes:       votes,
		Delegations: delegations,
		Metrics:     metrics,
		Provenance:  domain.WeakestProvenance(bundle.provenance...),
		SourceUsed:  bundle.sourceUsed,
		Degraded:    bundle.degraded,
		Warnings:    warnings,
	}

	if err := c.store.Put(ctx, snapshot); err != nil {
		telemetry.StoreErrorsTotal.WithLabelValues(c.cfg.SnapshotStore.Backend, "put").Inc()
		return domain.Snapshot{}, err
	}
	telemetry.StoreWritesTotal.WithLabelValues(c.cfg.SnapshotStore.Backend).Inc()

	return snapshot, nil
}

// fetchAll fetches holders, proposals, and delegations concurrently
// (they are mutually independent), then fetches votes for every
// resulting proposal once proposals are known, an errgroup
// fan-out/fan-in shape.
func (c *Core) fetchAll(ctx context.Context, protocol domain.Protocol, since, until time.Time, holderLimit int) (fetchedBundle, error) {
	var bundle fetchedBundle
	bundle.sourceUsed = make(map[domain.DataKind]string, 4)

	var holdersResult, proposalsResult, delegationsResult fetch.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		holders, res, err := c.coordinator.FetchHolders(gctx, protocol, holderLimit)
		if err != nil {
			return err
		}
		bundle.holders, holdersResult = holders, res
		return nil
	})
	g.Go(func() error {
		proposals, res, err := c.coordinator.FetchProposals(gctx, protocol, since, until)
		if err != nil {
			return err
		}
		bundle.proposals, proposalsResult = proposals, res
		return nil
	})
	g.Go(func() error {
		delegations, res, err := c.coordinator.FetchDelegations(gctx, protocol, since, until)
		if err != nil {
			return err
		}
		bundle.delegations, delegationsResult = delegations, res
		return nil
	})
	if err := g.Wait(); err != nil {
		return fetchedBundle{}, err
	}

	votes, votesResult, err := c.fetchVotes(ctx, protocol, bundle.proposals)
	if err != nil {
		return fetchedBundle{}, err
	}
	bundle.votes = votes

	bundle.sourceUsed[domain.KindHolders] = holdersResult.SourceUsed
	bundle.sourceUsed[domain.KindProposals] = proposalsResult.SourceUsed
	bundle.sourceUsed[domain.KindVotes] = votesResult.SourceUsed
	bundle.sourceUsed[domain.KindDelegations] = delegationsResult.SourceUsed

	bundle.provenance = []domain.Provenance{
		holdersResult.Provenance, proposalsResult.Provenance, votesResult.Provenance, delegationsResult.Provenance,
	}
	bundle.degraded = holdersResult.Degraded || proposalsResult.Degraded || votesResult.Degraded || delegationsResult.Degraded
	bundle.warnings = append(bundle.warnings, holdersResult.Warnings...)
	bundle.warnings = append(bundle.warnings, proposalsResult.Warnings...)
	bundle.warnings = append(bundle.warnings, votesResult.Warnings...)
	bundle.warnings = append(bundle.warnings, delegationsResult.Warnings...)

	return bundle, nil
}

// fetchVotes fans out one FetchVotes call per proposal, bounded by
// config.Concurrency.Global, merging every call's provenance into a
// single aggregate Result.
func (c *Core) fetchVotes(ctx context.Context, protocol domain.Protocol, proposals []domain.Proposal) ([]domain.Vote, fetch.Result, error) {
	if len(proposals) == 0 {
		return nil, fetch.Result{SourceUsed: "none", Provenance: domain.ProvenanceLive}, nil
	}

	votesPerProposal := make([][]domain.Vote, len(proposals))
	resultsPerProposal := make([]fetch.Result, len(proposals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency.Global)
	for i, p := range proposals {
		i, p := i, p
		g.Go(func() error {
			votes, res, err := c.coordinator.FetchVotes(gctx, protocol, p.Key(), p.VotingEnd)
			if err != nil {
				return err
			}
			votesPerProposal[i] = votes
			resultsPerProposal[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fetch.Result{}, err
	}

	var all []domain.Vote
	merged := fetch.Result{SourceUsed: "mixed", Provenance: domain.ProvenanceLive}
	provenances := make([]domain.Provenance, 0, len(resultsPerProposal))
	for i, votes := range votesPerProposal {
		all = append(all, votes...)
		res := resultsPerProposal[i]
		provenances = append(provenances, res.Provenance)
		merged.Degraded = merged.Degraded || res.Degraded
		merged.Warnings = append(merged.Warnings, res.Warnings...)
	}
	if len(resultsPerProposal) > 0 {
		merged.SourceUsed = resultsPerProposal[0].SourceUsed
	}
	merged.Provenance = domain.WeakestProvenance(provenances...)
	return all, merged, nil
}

// computeMetrics runs the three analyzers concurrently against the
// normalized snapshot data: the Normalizer sees all fetched data before
// any downstream metric runs, and metrics run in parallel on the
// normalized snapshot.
func (c *Core) computeMetrics(ctx context.Context, protocol domain.Protocol, holders []domain.HolderBalance, proposals []domain.Proposal, votesByProposal map[string][]domain.Vote, balanceOf map[string]*big.Int, effectivePower map[string]*big.Int) (domain.MetricSet, error) {
	var set domain.MetricSet

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := time.Now()
		set.Concentration = concentration.Compute(holders, concentration.DefaultTopNs, effectivePower)
		telemetry.FetchLatencySeconds.WithLabelValues("concentration", "compute").Observe(time.Since(started).Seconds())
		return nil
	})
	g.Go(func() error {
		started := time.Now()
		set.Participation = participation.Compute(proposals, votesByProposal, holders, participation.DefaultBuckets(), participation.TopKDefault)
		telemetry.FetchLatencySeconds.WithLabelValues("participation", "compute").Observe(time.Since(started).Seconds())
		return nil
	})
	g.Go(func() error {
		started := time.Now()
		trailing, err := c.trailingTurnout(ctx, protocol.ID, 5)
		if err != nil {
			return err
		}
		set.VotingBlocks = votingblocks.Compute(votingblocks.Config{
			MinOverlap:          c.cfg.VotingBlocks.MinOverlap,
			SimilarityThreshold: c.cfg.VotingBlocks.SimilarityThreshold,
			LargeComponentSplit: c.cfg.VotingBlocks.LargeComponentSplit,
		}, proposals, votesByProposal, balanceOf, trailing)
		telemetry.FetchLatencySeconds.WithLabelValues("votingblocks", "compute").Observe(time.Since(started).Seconds())
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.MetricSet{}, err
	}
	return set, nil
}

// trailingTurnout reads up to n prior snapshots' overall turnout, used
// by the voting-block analyzer's participation-spike anomaly to judge
// whether the current proposal's turnout is a statistical outlier.
func (c *Core) trailingTurnout(ctx context.Context, protocol domain.ProtocolID, n int) ([]float64, error) {
	snapshots, err := c.store.Range(ctx, protocol, time.Time{}, time.Now())
	if err != nil {
		return nil, err
	}
	if len(snapshots) > n {
		snapshots = snapshots[len(snapshots)-n:]
	}
	out := make([]float64, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, s.Metrics.Participation.OverallTurnout)
	}
	return out, nil
}

// Store exposes the underlying Snapshot Store for the compare/series CLI
// commands, which read snapshots directly rather than through
// BuildSnapshot.
func (c *Core) Store() snapshotstore.Store { return c.store }
