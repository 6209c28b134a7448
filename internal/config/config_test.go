package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_PassesValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "power-law", cfg.Simulator.Profile)
	assert.Equal(t, "mem", cfg.SnapshotStore.Backend)
}

func TestLoad_WithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Retry, cfg.Retry)
}

func TestLoad_TOMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[retry]
base_ms = 500

[simulator]
profile = "community"
seed = 99

[snapshot_store]
backend = "disk"
path = "/tmp/snaps"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Retry.BaseMS)
	assert.Equal(t, "community", cfg.Simulator.Profile)
	assert.Equal(t, uint64(99), cfg.Simulator.Seed)
	assert.Equal(t, "disk", cfg.SnapshotStore.Backend)
	assert.Equal(t, "/tmp/snaps", cfg.SnapshotStore.Path)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.NoError(t, err)
}

func TestLoad_TOMLFileOverridesFallbackChains(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[fallback_chain]
holders = ["etherscan", "simulator"]
votes = ["thegraph"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"etherscan", "simulator"}, cfg.FallbackChains.Holders)
	assert.Equal(t, []string{"thegraph"}, cfg.FallbackChains.Votes)
	assert.Equal(t, Defaults().FallbackChains.Proposals, cfg.FallbackChains.Proposals)
}

func TestLoad_EnvVarOverridesFallbackChainAsCommaSeparatedList(t *testing.T) {
	t.Setenv("GOVANALYZE_FALLBACK_CHAIN_DELEGATIONS", "thegraph,simulator")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"thegraph", "simulator"}, cfg.FallbackChains.Delegations)
}

func TestValidate_RejectsEmptyFallbackChain(t *testing.T) {
	cfg := Defaults()
	cfg.FallbackChains.Votes = nil
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveRetry(t *testing.T) {
	cfg := Defaults()
	cfg.Retry.BaseMS = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownSnapshotBackend(t *testing.T) {
	cfg := Defaults()
	cfg.SnapshotStore.Backend = "s3"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeSimilarityThreshold(t *testing.T) {
	cfg := Defaults()
	cfg.VotingBlocks.SimilarityThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestRetryConfig_BaseAndCeilingConvertToDuration(t *testing.T) {
	r := RetryConfig{BaseMS: 200, CeilingMS: 8000}
	assert.Equal(t, 200_000_000, int(r.Base()))
	assert.Equal(t, 8_000_000_000, int(r.Ceiling()))
}
