package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
uri = "bolt://graph:7687"
user = "weave"

[resolver]
confidence_threshold = 0.25
scalar_keep_both = true

[resolver.strategies]
entity_name = "use_newest"

[discovery]
max_connections = 50
transitive_types = ["BUILDS_ON"]

[temporal]
decay_rate = 0.01

[server]
port = "9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt://graph:7687", cfg.Storage.URI)
	assert.Equal(t, "weave", cfg.Storage.User)
	assert.Equal(t, "data/knowledge", cfg.Storage.DataDir, "unset keys keep their defaults")
	assert.InDelta(t, 0.25, cfg.Resolver.ConfidenceThreshold, 1e-9)
	assert.True(t, cfg.Resolver.ScalarKeepBoth)
	assert.Equal(t, "use_newest", cfg.Resolver.Strategies["entity_name"])
	assert.Equal(t, 50, cfg.Discovery.MaxConnections)
	assert.Equal(t, []string{"BUILDS_ON"}, cfg.Discovery.TransitiveTypes)
	assert.InDelta(t, 0.01, cfg.Temporal.DecayRate, 1e-9)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GRAPH_URI", "bolt://other:7687")
	t.Setenv("GRAPH_PASSWORD", "secret")
	t.Setenv("DATA_DIR", "/tmp/weave")
	t.Setenv("PORT", "7070")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "bolt://other:7687", cfg.Storage.URI)
	assert.Equal(t, "secret", cfg.Storage.Password)
	assert.Equal(t, "/tmp/weave", cfg.Storage.DataDir)
	assert.Equal(t, "7070", cfg.Server.Port)
}
