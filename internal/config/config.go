// Package config loads the Governance Analytics Engine's configuration,
// layering defaults, an optional TOML file, and environment variables —
// an "env vars with typed fallback" shape, generalized via spf13/viper
// now that there are several nested option groups instead of a handful
// of scalars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIKeys holds the optional credential for each provider adapter.
// Absence of a key triggers domain.KindAuthMissing from that adapter.
type APIKeys struct {
	Etherscan string
	Graph     string
	Alchemy   string
	Infura    string
	Ethplorer string
}

// FallbackChains is the priority-ordered source-id list per data kind.
type FallbackChains struct {
	Holders     []string
	Proposals   []string
	Votes       []string
	Delegations []string
}

type RetryConfig struct {
	BaseMS      int
	CeilingMS   int
	MaxAttempts int
}

type ConcurrencyConfig struct {
	PerSource int
	Global    int
}

type CacheConfig struct {
	HoldersTTLSeconds   int
	ProposalsTTLSeconds int
	VotesTTLSeconds     int
	MaxEntries          int
}

type SnapshotStoreConfig struct {
	Backend string // "mem" | "disk"
	Path    string
}

type VotingBlocksConfig struct {
	MinOverlap          int
	SimilarityThreshold float64
	LargeComponentSplit int // component size above which a modularity split pass runs
}

type SimulatorConfig struct {
	Seed          uint64
	Alpha         float64
	DominantShare float64
	Profile       string // "power-law" | "protocol-dominated" | "community"
}

// Config is the explicit configuration record replacing the implicit
// option bags of the source language.
type Config struct {
	APIKeys        APIKeys
	FallbackChains FallbackChains
	Retry          RetryConfig
	Concurrency    ConcurrencyConfig
	Cache          CacheConfig
	SnapshotStore  SnapshotStoreConfig
	VotingBlocks   VotingBlocksConfig
	Simulator      SimulatorConfig
}

// Defaults returns a Config populated with this engine's documented
// defaults (retry base/ceiling, similarity_threshold 0.8, min_overlap 3,
// alpha 1.16, dominant_share 0.6).
func Defaults() Config {
	return Config{
		FallbackChains: FallbackChains{
			Holders:     []string{"ethplorer", "etherscan", "alchemy", "simulator"},
			Proposals:   []string{"thegraph", "simulator"},
			Votes:       []string{"thegraph", "simulator"},
			Delegations: []string{"thegraph", "alchemy", "infura", "simulator"},
		},
		Retry: RetryConfig{BaseMS: 200, CeilingMS: 8000, MaxAttempts: 4},
		Concurrency: ConcurrencyConfig{PerSource: 4, Global: 16},
		Cache: CacheConfig{HoldersTTLSeconds: 300, ProposalsTTLSeconds: 120, VotesTTLSeconds: 60, MaxEntries: 4096},
		SnapshotStore: SnapshotStoreConfig{Backend: "mem", Path: "./snapshots"},
		VotingBlocks: VotingBlocksConfig{MinOverlap: 3, SimilarityThreshold: 0.8, LargeComponentSplit: 50},
		Simulator: SimulatorConfig{Seed: 42, Alpha: 1.16, DominantShare: 0.6, Profile: "power-law"},
	}
}

// Load reads configuration from (in ascending priority) built-in
// defaults, an optional TOML file at path (ignored if empty or absent),
// and GOVANALYZE_-prefixed environment variables, the same
// getEnv/getEnvInt layering pattern but through viper so nested groups
// (retry.*, cache.*, voting_blocks.*, ...) bind without hand-written
// env-key glue.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("GOVANALYZE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	bindEnv(v, "api_keys.etherscan", "api_keys.graph", "api_keys.alchemy", "api_keys.infura", "api_keys.ethplorer",
		"snapshot_store.backend", "snapshot_store.path",
		"fallback_chain.holders", "fallback_chain.proposals", "fallback_chain.votes", "fallback_chain.delegations")

	cfg.APIKeys.Etherscan = firstNonEmpty(v.GetString("api_keys.etherscan"), cfg.APIKeys.Etherscan)
	cfg.APIKeys.Graph = firstNonEmpty(v.GetString("api_keys.graph"), cfg.APIKeys.Graph)
	cfg.APIKeys.Alchemy = firstNonEmpty(v.GetString("api_keys.alchemy"), cfg.APIKeys.Alchemy)
	cfg.APIKeys.Infura = firstNonEmpty(v.GetString("api_keys.infura"), cfg.APIKeys.Infura)
	cfg.APIKeys.Ethplorer = firstNonEmpty(v.GetString("api_keys.ethplorer"), cfg.APIKeys.Ethplorer)

	if v.IsSet("fallback_chain.holders") {
		cfg.FallbackChains.Holders = stringSlice(v, "fallback_chain.holders")
	}
	if v.IsSet("fallback_chain.proposals") {
		cfg.FallbackChains.Proposals = stringSlice(v, "fallback_chain.proposals")
	}
	if v.IsSet("fallback_chain.votes") {
		cfg.FallbackChains.Votes = stringSlice(v, "fallback_chain.votes")
	}
	if v.IsSet("fallback_chain.delegations") {
		cfg.FallbackChains.Delegations = stringSlice(v, "fallback_chain.delegations")
	}

	if v.IsSet("retry.base_ms") {
		cfg.Retry.BaseMS = v.GetInt("retry.base_ms")
	}
	if v.IsSet("retry.ceiling_ms") {
		cfg.Retry.CeilingMS = v.GetInt("retry.ceiling_ms")
	}
	if v.IsSet("retry.max_attempts") {
		cfg.Retry.MaxAttempts = v.GetInt("retry.max_attempts")
	}
	if v.IsSet("concurrency.per_source") {
		cfg.Concurrency.PerSource = v.GetInt("concurrency.per_source")
	}
	if v.IsSet("concurrency.global") {
		cfg.Concurrency.Global = v.GetInt("concurrency.global")
	}
	if v.IsSet("cache.holders_ttl_s") {
		cfg.Cache.HoldersTTLSeconds = v.GetInt("cache.holders_ttl_s")
	}
	if v.IsSet("cache.proposals_ttl_s") {
		cfg.Cache.ProposalsTTLSeconds = v.GetInt("cache.proposals_ttl_s")
	}
	if v.IsSet("cache.votes_ttl_s") {
		cfg.Cache.VotesTTLSeconds = v.GetInt("cache.votes_ttl_s")
	}
	if v.IsSet("cache.max_entries") {
		cfg.Cache.MaxEntries = v.GetInt("cache.max_entries")
	}
	if b := v.GetString("snapshot_store.backend"); b != "" {
		cfg.SnapshotStore.Backend = b
	}
	if p := v.GetString("snapshot_store.path"); p != "" {
		cfg.SnapshotStore.Path = p
	}
	if v.IsSet("voting_blocks.min_overlap") {
		cfg.VotingBlocks.MinOverlap = v.GetInt("voting_blocks.min_overlap")
	}
	if v.IsSet("voting_blocks.similarity_threshold") {
		cfg.VotingBlocks.SimilarityThreshold = v.GetFloat64("voting_blocks.similarity_threshold")
	}
	if v.IsSet("voting_blocks.large_component_split") {
		cfg.VotingBlocks.LargeComponentSplit = v.GetInt("voting_blocks.large_component_split")
	}
	if v.IsSet("simulator.seed") {
		cfg.Simulator.Seed = uint64(v.GetInt64("simulator.seed"))
	}
	if v.IsSet("simulator.alpha") {
		cfg.Simulator.Alpha = v.GetFloat64("simulator.alpha")
	}
	if v.IsSet("simulator.dominant_share") {
		cfg.Simulator.DominantShare = v.GetFloat64("simulator.dominant_share")
	}
	if p := v.GetString("simulator.profile"); p != "" {
		cfg.Simulator.Profile = p
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper, keys ...string) {
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// stringSlice reads a fallback_chain.* entry as an ordered source-id
// list. A TOML file supplies a real array; GOVANALYZE_FALLBACK_CHAIN_*
// env vars only ever carry a string, so a comma-separated value from
// AutomaticEnv is split the same way the TOML array would unmarshal.
func stringSlice(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return v.GetStringSlice(key)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Validate checks the positivity constraints this engine places on the
// numeric option groups.
func (c Config) Validate() error {
	if len(c.FallbackChains.Holders) == 0 || len(c.FallbackChains.Proposals) == 0 ||
		len(c.FallbackChains.Votes) == 0 || len(c.FallbackChains.Delegations) == 0 {
		return fmt.Errorf("config: fallback_chain.* must each list at least one source")
	}
	if c.Retry.BaseMS <= 0 || c.Retry.CeilingMS <= 0 || c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry.* must be positive")
	}
	if c.Concurrency.PerSource <= 0 || c.Concurrency.Global <= 0 {
		return fmt.Errorf("config: concurrency.* must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: cache.max_entries must be positive")
	}
	if c.SnapshotStore.Backend != "mem" && c.SnapshotStore.Backend != "disk" {
		return fmt.Errorf("config: snapshot_store.backend must be mem or disk, got %q", c.SnapshotStore.Backend)
	}
	if c.VotingBlocks.MinOverlap <= 0 {
		return fmt.Errorf("config: voting_blocks.min_overlap must be positive")
	}
	if c.VotingBlocks.SimilarityThreshold <= 0 || c.VotingBlocks.SimilarityThreshold > 1 {
		return fmt.Errorf("config: voting_blocks.similarity_threshold must be in (0,1]")
	}
	return nil
}

// Base returns retry.base_ms as a time.Duration.
func (c RetryConfig) Base() time.Duration { return time.Duration(c.BaseMS) * time.Millisecond }

// Ceiling returns retry.ceiling_ms as a time.Duration.
func (c RetryConfig) Ceiling() time.Duration { return time.Duration(c.CeilingMS) * time.Millisecond }
