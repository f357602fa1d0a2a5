// Package config provides configuration loading for the memory engine.
//
// Configuration is loaded from environment variables layered over hardcoded
// defaults (spec.md §1 treats configuration-file loading as an external,
// out-of-scope concern). Five sections cover the engine's operational
// surface: vector_db, cache, embedding, performance and security; two more,
// logging and sharing, configure the ambient logger and the sharing
// transport.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/memforge/memengine/internal/errs"
)

// Config holds the complete memory engine configuration.
type Config struct {
	VectorDB    VectorDBConfig    `koanf:"vector_db"`
	Cache       CacheConfig       `koanf:"cache"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	Performance PerformanceConfig `koanf:"performance"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	Sharing     SharingConfig     `koanf:"sharing"`
}

// VectorDBConfig configures the C2 Vector Store backend.
type VectorDBConfig struct {
	// Provider selects the backend explicitly: "chromem" (embedded,
	// default) or "qdrant" (external gRPC service). Kept as an explicit
	// switch rather than inferred from URL shape (see DESIGN.md Open
	// Question 1).
	Provider string `koanf:"provider"`

	// URL is the backend address. For chromem this is a filesystem path
	// (or empty for the default data directory); for qdrant it's a
	// "host:port" gRPC address.
	URL string `koanf:"url"`

	// APIKey authenticates against a managed Qdrant deployment. Unused
	// by chromem.
	APIKey Secret `koanf:"api_key"`

	// Collection is the collection/namespace all records are stored
	// under.
	Collection string `koanf:"collection"`

	// Dimension is the embedding vector length. Must match Embedding's
	// model output.
	Dimension int `koanf:"dimension"`
}

// CacheConfig describes an external cache/queue backing store
// (spec.md §4.9 access cache, §4.10 conflict queue). Its fields are
// validated here; no component connects to this store, and the sharing
// access cache and conflict queue are in-process.
type CacheConfig struct {
	// URL is the cache/queue address, e.g. "redis://localhost:6379".
	URL string `koanf:"url"`

	// Secret authenticates against a managed cache deployment.
	Secret Secret `koanf:"secret"`

	// DB selects a logical database index (Redis-style), 0 by default.
	DB int `koanf:"db"`
}

// EmbeddingConfig configures the C3 Embedding Service.
type EmbeddingConfig struct {
	// Provider is one of "remote", "local", "mock".
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey authenticates against a remote embedding endpoint.
	APIKey Secret `koanf:"api_key"`

	// OAuthToken, when set, authenticates against a remote embedding
	// endpoint via an OAuth2 bearer token instead of APIKey.
	OAuthToken Secret `koanf:"oauth_token"`

	// Endpoint is the remote embedding service URL. Required when
	// Provider is "remote".
	Endpoint string `koanf:"endpoint"`
}

// PerformanceConfig carries query-cost and batching limits (spec.md
// §4.1). Validate checks their bounds; no operation reads them, so no
// deadline, cache TTL or batch size is derived from these values.
type PerformanceConfig struct {
	// MaxQueryTimeMs is the per-query time budget in milliseconds; must be
	// positive.
	MaxQueryTimeMs int `koanf:"max_query_time_ms"`

	// CacheTTLSeconds is a cache entry lifetime in seconds; must not be
	// negative.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// BatchSize is a records-per-batch count; must be positive.
	BatchSize int `koanf:"batch_size"`
}

// SecurityConfig carries tenant-isolation and auditing settings. Validate
// checks the encryption key length; no other code reads these fields, so
// they enable no encryption, isolation check or audit logging.
type SecurityConfig struct {
	// EncryptionKey, when set, must be at least 32 characters.
	EncryptionKey Secret `koanf:"encryption_key"`

	// TenantIsolation is the tenant_id scoping switch (default true).
	TenantIsolation bool `koanf:"tenant_isolation"`

	// AuditLogs is the audit-trail logging switch (default false).
	AuditLogs bool `koanf:"audit_logs"`
}

// SharingConfig configures cross-agent delivery for the C9 Sharing
// Manager (spec.md §4.10).
type SharingConfig struct {
	// NATSURL is the message-bus address a share is published to on
	// delivery. Empty disables NATS delivery (shares are still recorded
	// locally; only cross-process notification is skipped).
	NATSURL string `koanf:"nats_url"`
}

// LoggingConfig carries the subset of ambient logging configuration that
// belongs in application config; internal/logging.Config is constructed
// from this at startup (kept separate to avoid a config<->logging import
// cycle, since logging.Config itself references config.Duration).
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate enforces spec.md §4.1's configuration invariants, returning on
// the first violation.
func (c *Config) Validate() error {
	if err := c.VectorDB.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Embedding.validate(); err != nil {
		return err
	}
	if err := c.Performance.validate(); err != nil {
		return err
	}
	if err := c.Security.validate(); err != nil {
		return err
	}
	return nil
}

func (c VectorDBConfig) validate() error {
	switch c.Provider {
	case "chromem", "":
	case "qdrant":
		if c.URL == "" {
			return fmt.Errorf("%w: vector_db.url is required for the qdrant provider", errs.ErrInvalidConfiguration)
		}
		host, _, err := splitHostPort(c.URL)
		if err != nil || host == "" {
			return fmt.Errorf("%w: vector_db.url must be a host:port address, got %q", errs.ErrInvalidConfiguration, c.URL)
		}
	default:
		return fmt.Errorf("%w: vector_db.provider must be one of chromem, qdrant, got %q", errs.ErrInvalidConfiguration, c.Provider)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: vector_db.collection is required", errs.ErrInvalidConfiguration)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: vector_db.dimension must be positive", errs.ErrInvalidConfiguration)
	}
	return nil
}

func (c CacheConfig) validate() error {
	if c.URL == "" {
		return nil // cache is optional: the access cache degrades to in-process only
	}
	u, err := url.Parse(c.URL)
	if err != nil || !validCacheSchemes[u.Scheme] {
		return fmt.Errorf("%w: cache.url must use one of the redis, rediss, http, https schemes, e.g. redis://host:port, got %q", errs.ErrInvalidConfiguration, c.URL)
	}
	if c.DB < 0 {
		return fmt.Errorf("%w: cache.db must not be negative", errs.ErrInvalidConfiguration)
	}
	return nil
}

var validCacheSchemes = map[string]bool{"redis": true, "rediss": true, "http": true, "https": true}

var validEmbeddingProviders = map[string]bool{"remote": true, "local": true, "mock": true}

func (c EmbeddingConfig) validate() error {
	if !validEmbeddingProviders[c.Provider] {
		return fmt.Errorf("%w: embedding.provider must be one of remote, local, mock, got %q", errs.ErrInvalidConfiguration, c.Provider)
	}
	if c.Provider == "remote" && c.Endpoint == "" {
		return fmt.Errorf("%w: embedding.endpoint is required for the remote provider", errs.ErrInvalidConfiguration)
	}
	return nil
}

func (c PerformanceConfig) validate() error {
	if c.MaxQueryTimeMs <= 0 {
		return fmt.Errorf("%w: performance.max_query_time_ms must be positive", errs.ErrInvalidConfiguration)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("%w: performance.cache_ttl_seconds must not be negative", errs.ErrInvalidConfiguration)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: performance.batch_size must be positive", errs.ErrInvalidConfiguration)
	}
	return nil
}

func (c SecurityConfig) validate() error {
	if c.EncryptionKey.IsSet() && len(c.EncryptionKey.Value()) < 32 {
		return fmt.Errorf("%w: security.encryption_key must be at least 32 characters", errs.ErrInvalidConfiguration)
	}
	return nil
}

// splitHostPort validates a "host:port" address without requiring a
// scheme, since Qdrant's gRPC endpoint is addressed that way.
func splitHostPort(addr string) (host string, port string, err error) {
	parts := strings.SplitN(addr, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid host:port address %q", addr)
	}
	return parts[0], parts[1], nil
}
