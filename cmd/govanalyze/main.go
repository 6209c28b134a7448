// Command govanalyze is the thin CLI collaborator around the
// Governance Analytics Engine core: it translates six subcommands into
// calls on *core.Core and the snapshot store, printing JSON to stdout
// and mapping domain error kinds to exit codes. It follows the same
// bootstrap shape as a long-running daemon (slog JSON logger,
// config.Load, signal.Notify-driven cancellation) even though this
// command is a one-shot CLI with subcommands rather than a daemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"govtoken-analytics/internal/compare"
	"govtoken-analytics/internal/config"
	"govtoken-analytics/internal/core"
	"govtoken-analytics/internal/domain"
	"govtoken-analytics/internal/fetch"
	"govtoken-analytics/internal/obs"
	"govtoken-analytics/internal/present"
	"govtoken-analytics/internal/provider"
	"govtoken-analytics/internal/simulate"
	"govtoken-analytics/internal/snapshotstore"
	"govtoken-analytics/internal/telemetry"
)

const (
	exitOK         = 0
	exitInternal   = 1
	exitValidation = 2
	exitDegraded   = 3
	exitCancelled  = 4
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: govanalyze <analyze|compare|simulate|series|status|dump-config> [flags]")
		os.Exit(exitValidation)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("signal received, cancelling")
		cancel()
	}()

	var code int
	switch os.Args[1] {
	case "analyze":
		code = runAnalyze(ctx, logger, os.Args[2:])
	case "compare":
		code = runCompare(ctx, logger, os.Args[2:])
	case "simulate":
		code = runSimulate(ctx, logger, os.Args[2:])
	case "series":
		code = runSeries(ctx, logger, os.Args[2:])
	case "status":
		code = runStatus(ctx, logger, os.Args[2:])
	case "dump-config":
		code = runDumpConfig(logger, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		code = exitValidation
	}
	os.Exit(code)
}

// exitCodeForErr maps a core/config error to this command's exit codes.
// Validation and cancellation are distinguished from a catch-all
// internal failure; everything else not explicitly classified is
// treated as internal.
func exitCodeForErr(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) || domain.KindOf(err) == domain.KindCancelled {
		return exitCancelled
	}
	if domain.KindOf(err) == domain.KindValidation {
		return exitValidation
	}
	return exitInternal
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runtime bundles the constructed collaborators a subcommand needs.
// Not every subcommand uses every field: series/compare only read the
// store, analyze needs the full core, simulate needs neither registry
// nor store-backed provider adapters.
type runtime struct {
	cfg    config.Config
	store  snapshotstore.Store
	core   *core.Core
	health *telemetry.HealthRecorder
}

func buildStore(cfg config.Config) (snapshotstore.Store, error) {
	switch cfg.SnapshotStore.Backend {
	case "disk":
		return snapshotstore.NewDiskStore(cfg.SnapshotStore.Path)
	default:
		return snapshotstore.NewMemStore(), nil
	}
}

// buildRegistry constructs every provider adapter whose credentials are
// configured, skipping (with a log line, not a fatal error) any adapter
// whose constructor reports KindAuthMissing — the fallback chain is
// expected to route around unregistered sources.
func buildRegistry(cfg config.Config, logger *slog.Logger) *provider.Registry {
	registry := provider.NewRegistry()
	timeout := 30 * time.Second

	register := func(name string, build func() (provider.ProviderAdapter, error)) {
		adapter, err := build()
		if err != nil {
			if domain.KindOf(err) == domain.KindAuthMissing {
				logger.Info("provider adapter not registered, credentials absent", "source", name)
				return
			}
			logger.Warn("provider adapter construction failed", "source", name, "error", err)
			return
		}
		registry.Register(adapter)
	}

	register("etherscan", func() (provider.ProviderAdapter, error) { return provider.NewEtherscanAdapter(cfg.APIKeys.Etherscan, timeout) })
	register("ethplorer", func() (provider.ProviderAdapter, error) { return provider.NewEthplorerAdapter(cfg.APIKeys.Ethplorer, timeout) })
	register("alchemy", func() (provider.ProviderAdapter, error) { return provider.NewAlchemyAdapter(cfg.APIKeys.Alchemy, timeout) })
	register("infura", func() (provider.ProviderAdapter, error) { return provider.NewInfuraAdapter(cfg.APIKeys.Infura, timeout) })
	register("thegraph", func() (provider.ProviderAdapter, error) {
		paths := map[domain.ProtocolID]string{
			"compound": "AAHoP5Xqhsh7rEb3MJ4iakuDCSk5RmgshaU6r9HrJQ3B",
			"uniswap":  "A3Np3RQbaBA6oKJgiwDJeo5T3zrYfGHPWFYayMwtNDum",
			"aave":     "JCkMZA8bqCNXVz4yELTEsnpfzZ4KUUzxTmqsoTLPhBUy",
		}
		return provider.NewTheGraphAdapter(cfg.APIKeys.Graph, paths, timeout)
	})

	return registry
}

func buildRuntime(cfgPath string, logger *slog.Logger, withAdapters bool) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, "config", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, domain.NewError(domain.KindStorageIO, "snapshotstore", err)
	}

	health := telemetry.NewHealthRecorder()
	rt := &runtime{cfg: cfg, store: store, health: health}

	if withAdapters {
		registry := buildRegistry(cfg, logger)
		notifier := obs.NewLogNotifier(logger)
		rt.core = core.New(cfg, registry, store, notifier, health, logger)
	}
	return rt, nil
}

// parseSelector parses a --metric flag value of the form "name" or
// "name:param", the latter used by parameterized selectors like
// top_n_share:10 ( "named metric" plus optional integer
// argument).
func parseSelector(raw string) (domain.MetricSelector, error) {
	if raw == "" {
		return domain.MetricSelector{}, domain.NewError(domain.KindValidation, "cli", fmt.Errorf("--metric is required"))
	}
	name, paramStr, hasParam := strings.Cut(raw, ":")
	sel := domain.MetricSelector{Name: name}
	if hasParam {
		n, err := strconv.Atoi(paramStr)
		if err != nil {
			return domain.MetricSelector{}, domain.NewError(domain.KindValidation, "cli", fmt.Errorf("invalid metric parameter %q: %w", paramStr, err))
		}
		sel.Param = n
	}
	return sel, nil
}

// lowerIsBetter is the closed set of known metric names for which a
// smaller raw value indicates a healthier distribution, used to orient
// compare's composite ranking. Unlisted names default to higher-is-better.
var lowerIsBetter = map[string]bool{
	"gini": true, "hhi": true, "palma": true, "top_n_share": true, "anomaly_count": true, "delegated_gini": true,
}

func parseTimeFlag(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.NewError(domain.KindValidation, "cli", fmt.Errorf("invalid timestamp %q: %w", raw, err))
	}
	return t, nil
}

func runAnalyze(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	limit := fs.Int("limit", 2000, "maximum holder rows fetched")
	at := fs.String("at", "", "snapshot window end, RFC3339 (default: now)")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: govanalyze analyze <protocol> [--limit N] [--at TIMESTAMP]")
		return exitValidation
	}
	protocolID := domain.ProtocolID(fs.Arg(0))

	rt, err := buildRuntime(*cfgPath, logger, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	until, err := parseTimeFlag(*at, time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}
	since := until.Add(-30 * 24 * time.Hour)

	protocol := provider.ResolveProtocol(protocolID)

	snapshot, err := rt.core.BuildSnapshotWithLimit(ctx, protocol, since, until, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	if err := printJSON(snapshotView(snapshot)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternal
	}
	if snapshot.Degraded {
		return exitDegraded
	}
	return exitOK
}

func runCompare(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	metric := fs.String("metric", "gini", "metric selector, name or name:param")
	from := fs.String("from", "", "window start, RFC3339")
	to := fs.String("to", "", "window end, RFC3339 (default: now)")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: govanalyze compare <protocols...> [--metric NAME] [--from T1] [--to T2]")
		return exitValidation
	}
	protocols := make([]domain.ProtocolID, fs.NArg())
	for i, a := range fs.Args() {
		protocols[i] = domain.ProtocolID(a)
	}

	rt, err := buildRuntime(*cfgPath, logger, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	sel, err := parseSelector(*metric)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}
	toTime, err := parseTimeFlag(*to, time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}
	fromTime, err := parseTimeFlag(*from, toTime.Add(-90*24*time.Hour))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	table, err := compare.Build(ctx, rt.store, protocols, sel, fromTime, toTime, 250*time.Millisecond)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	ranked, scores, err := compare.Rank(ctx, rt.store, protocols, []compare.Weight{
		{Selector: sel, Weight: 1, HigherIsBetter: !lowerIsBetter[sel.Name]},
	}, toTime)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	if err := printJSON(compareView{Table: table, Ranked: ranked, Scores: scores}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternal
	}
	return exitOK
}

func runSimulate(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	holders := fs.Int("holders", 2000, "synthetic holder count")
	seed := fs.Uint64("seed", 42, "deterministic RNG seed")
	protocolFlag := fs.String("protocol", "compound", "protocol id to stamp the synthetic snapshot with")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: govanalyze simulate <profile> [--holders N] [--seed S]")
		return exitValidation
	}
	profile := fs.Arg(0)
	switch simulate.Profile(profile) {
	case simulate.ProfilePowerLaw, simulate.ProfileProtocolDominated, simulate.ProfileCommunity:
	default:
		fmt.Fprintf(os.Stderr, "unknown simulation profile %q (want power-law, protocol-dominated, or community)\n", profile)
		return exitValidation
	}

	rt, err := buildRuntime(*cfgPath, logger, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	// All four fallback chains collapse to ["simulator"], so the Fetch
	// Coordinator's normal chain walk degrades to the simulator on its
	// very first step, rather than duplicating its generator-dispatch
	// logic here.
	cfg := rt.cfg
	cfg.FallbackChains = config.FallbackChains{
		Holders: []string{"simulator"}, Proposals: []string{"simulator"},
		Votes: []string{"simulator"}, Delegations: []string{"simulator"},
	}
	cfg.Simulator.Seed = *seed
	cfg.Simulator.Profile = profile

	registry := provider.NewRegistry()
	c := core.New(cfg, registry, rt.store, obs.NewLogNotifier(logger), rt.health, logger)

	protocol := provider.ResolveProtocol(domain.ProtocolID(*protocolFlag))
	if protocol.Supply == nil || protocol.Supply.Sign() == 0 {
		protocol.Supply = defaultSyntheticSupply(protocol.Decimals)
	}

	until := time.Now().UTC()
	since := until.Add(-30 * 24 * time.Hour)

	snapshot, err := c.BuildSnapshotWithLimit(ctx, protocol, since, until, *holders)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}
	if err := printJSON(snapshotView(snapshot)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternal
	}
	return exitOK
}

func runSeries(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("series", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	metric := fs.String("metric", "", "metric selector, name or name:param (required)")
	from := fs.String("from", "", "window start, RFC3339")
	to := fs.String("to", "", "window end, RFC3339 (default: now)")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: govanalyze series <protocol> --metric NAME [--from T1] [--to T2]")
		return exitValidation
	}
	protocolID := domain.ProtocolID(fs.Arg(0))

	sel, err := parseSelector(*metric)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	rt, err := buildRuntime(*cfgPath, logger, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	toTime, err := parseTimeFlag(*to, time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}
	fromTime, err := parseTimeFlag(*from, time.Time{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	points, err := rt.store.Series(ctx, protocolID, sel, fromTime, toTime)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}
	if err := printJSON(points); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternal
	}
	return exitOK
}

// statusView is the JSON shape printed by `status`: one entry per
// provider source this process has guarded, plus the response cache's
// hit/miss counters per data kind.
type statusView struct {
	Sources []sourceStatusEntry `json:"sources"`
	Cache   []fetch.CacheBucketStatus `json:"cache"`
}

type sourceStatusEntry struct {
	SourceID     string `json:"source_id"`
	BreakerState string `json:"breaker_state"`
}

// runStatus optionally builds one snapshot first (so the Fetch
// Coordinator's guards and response cache are actually populated
// within this process), then prints their live state. Run without a
// protocol argument it reports whatever a prior command in the same
// process already touched, which for this one-shot CLI is nothing —
// the subcommand exists for the daemon-shaped embedding this binary's
// bootstrap already mirrors.
func runStatus(ctx context.Context, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	rt, err := buildRuntime(*cfgPath, logger, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	if fs.NArg() >= 1 {
		protocol := provider.ResolveProtocol(domain.ProtocolID(fs.Arg(0)))
		until := time.Now().UTC()
		since := until.Add(-30 * 24 * time.Hour)
		if _, err := rt.core.BuildSnapshotWithLimit(ctx, protocol, since, until, 200); err != nil {
			fmt.Fprintln(os.Stderr, "warning: snapshot build failed, reporting status as-is:", err)
		}
	}

	sources, cacheStatus := rt.core.FetchStatus()
	view := statusView{Cache: cacheStatus}
	for _, s := range sources {
		view.Sources = append(view.Sources, sourceStatusEntry{SourceID: s.SourceID, BreakerState: s.BreakerState.String()})
	}
	if err := printJSON(view); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternal
	}
	return exitOK
}

// runDumpConfig prints the effective configuration (defaults layered
// with any -config file and GOVANALYZE_ env vars) as TOML, so operators
// can diff what the engine actually resolved against what they intended
// to set.
func runDumpConfig(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("dump-config", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeForErr(err)
	}

	enc := toml.NewEncoder(os.Stdout)
	if err := enc.Encode(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternal
	}
	return exitOK
}

// compareView is the JSON shape printed by `compare`: the aligned table
// plus the composite ranking derived from the same metric selector.
type compareView struct {
	Table  compare.Table                    `json:"table"`
	Ranked []domain.ProtocolID               `json:"ranked"`
	Scores map[domain.ProtocolID]float64     `json:"scores"`
}

// snapshotSummary renders a Snapshot's total supply, top-N shares and
// overall turnout through internal/present rather than as raw JSON
// numbers; Gini, HHI, Nakamoto, Palma and DelegatedGini are emitted as
// plain JSON numbers.
type snapshotSummary struct {
	Protocol   domain.ProtocolID `json:"protocol"`
	Timestamp  time.Time         `json:"timestamp"`
	Provenance domain.Provenance `json:"provenance"`
	Degraded   bool              `json:"degraded"`
	Warnings   []string          `json:"warnings,omitempty"`
	SourceUsed map[domain.DataKind]string `json:"source_used"`

	TotalSupply    string `json:"total_supply"`
	HolderCount    int    `json:"holder_count"`
	ProposalCount  int    `json:"proposal_count"`
	VoteCount      int    `json:"vote_count"`

	Gini           float64            `json:"gini"`
	HHI            float64            `json:"hhi"`
	Nakamoto       int                `json:"nakamoto"`
	Palma          *float64           `json:"palma,omitempty"`
	DelegatedGini  *float64           `json:"delegated_gini,omitempty"`
	TopNShare      map[string]string  `json:"top_n_share"`
	OverallTurnout string             `json:"overall_turnout"`
}

func snapshotView(s domain.Snapshot) snapshotSummary {
	topN := make(map[string]string, len(s.Metrics.Concentration.TopNShare))
	for n, v := range s.Metrics.Concentration.TopNShare {
		topN[strconv.Itoa(n)] = present.Share(v)
	}
	return snapshotSummary{
		Protocol:      s.Protocol.ID,
		Timestamp:     s.Timestamp,
		Provenance:    s.Provenance,
		Degraded:      s.Degraded,
		Warnings:      s.Warnings,
		SourceUsed:    s.SourceUsed,
		TotalSupply:   present.Amount(s.Protocol.Supply, s.Protocol.Decimals),
		HolderCount:   len(s.Holders),
		ProposalCount: len(s.Proposals),
		VoteCount:     len(s.Votes),
		Gini:          s.Metrics.Concentration.Gini,
		HHI:           s.Metrics.Concentration.HHI,
		Nakamoto:      s.Metrics.Concentration.Nakamoto,
		Palma:         s.Metrics.Concentration.Palma,
		DelegatedGini: s.Metrics.Concentration.DelegatedGini,
		TopNShare:      topN,
		OverallTurnout: present.Share(s.Metrics.Participation.OverallTurnout),
	}
}

// defaultSyntheticSupply returns a round 10^9-token supply scaled by
// decimals, used when `simulate` is pointed at a protocol id that
// carries no Supply of its own (KnownProtocols leaves Supply nil; see
// provider.ResolveProtocol).
func defaultSyntheticSupply(decimals int) *big.Int {
	supply := big.NewInt(1_000_000_000)
	return supply.Mul(supply, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}
