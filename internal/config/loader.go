// Package config provides configuration loading for the memory engine.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/memforge/memengine/internal/errs"
)

// envPrefix is the common prefix for all environment-variable overrides,
// e.g. MEMENGINE_VECTOR_DB_PROVIDER.
const envPrefix = "MEMENGINE_"

// Load builds a Config from hardcoded defaults overlaid with environment
// variables. Configuration-file loading is out of scope (spec.md §1):
// every deployment surface is env-var driven.
func Load() (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("%w: loading environment overlay: %v", errs.ErrInvalidConfiguration, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling configuration: %v", errs.ErrInvalidConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sectionNames are Config's top-level koanf tags. No name is a prefix of
// another, so the order they are tried in does not change the result.
var sectionNames = []string{"vector_db", "performance", "embedding", "security", "logging", "cache", "sharing"}

// envTransform turns VECTOR_DB_PROVIDER (the MEMENGINE_ prefix is already
// stripped by env.Provider) into vector_db.provider, matching the koanf
// tags on Config's nested structs. Section names are matched explicitly
// since several (vector_db) contain underscores themselves, so a naive
// split-on-first-underscore would misparse them.
func envTransform(key string) string {
	lowered := strings.ToLower(key)
	for _, section := range sectionNames {
		prefix := section + "_"
		if strings.HasPrefix(lowered, prefix) {
			return section + "." + strings.TrimPrefix(lowered, prefix)
		}
	}
	return lowered
}

// defaultConfig returns the hardcoded baseline every deployment starts
// from before the environment overlay is applied.
func defaultConfig() *Config {
	return &Config{
		VectorDB: VectorDBConfig{
			Provider:   "chromem",
			Collection: "memories",
			Dimension:  384,
		},
		Cache: CacheConfig{
			DB: 0,
		},
		Embedding: EmbeddingConfig{
			Provider: "mock",
			Model:    "default",
		},
		Performance: PerformanceConfig{
			MaxQueryTimeMs:  500,
			CacheTTLSeconds: 300,
			BatchSize:       32,
		},
		Security: SecurityConfig{
			TenantIsolation: true,
			AuditLogs:       false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
