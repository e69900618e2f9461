package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type StorageConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DataDir  string `toml:"data_dir"` // file fallback location
}

type ResolverConfig struct {
	ConfidenceThreshold float64           `toml:"confidence_threshold"`
	Strategies          map[string]string `toml:"strategies"` // conflict type -> strategy name
	Contradictions      [][]string        `toml:"contradictions"`
	ScalarKeepBoth      bool              `toml:"scalar_keep_both"`
}

type DiscoveryConfig struct {
	MaxConnections                int      `toml:"max_connections"`
	TransitiveTypes               []string `toml:"transitive_types"`
	CommonIntermediaryConfidence  float64  `toml:"common_intermediary_confidence"`
	SimilarRelationshipConfidence float64  `toml:"similar_relationship_confidence"`
	SharedPropertyConfidence      float64  `toml:"shared_property_confidence"`
	TransitiveRelationConfidence  float64  `toml:"transitive_relation_confidence"`
}

type TemporalConfig struct {
	DecayRate float64 `toml:"decay_rate"` // per day; 0 disables decay
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Temporal  TemporalConfig  `toml:"temporal"`
	Server    ServerConfig    `toml:"server"`
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			URI:     "bolt://localhost:7687",
			DataDir: "data/knowledge",
		},
		Resolver: ResolverConfig{
			ConfidenceThreshold: 0.1,
		},
		Discovery: DiscoveryConfig{
			MaxConnections: 100,
		},
		Server: ServerConfig{
			Port: "8080",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides file configuration with environment variables where
// present. Secrets are expected to arrive this way.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GRAPH_URI"); v != "" {
		c.Storage.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		c.Storage.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		c.Storage.Password = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}
