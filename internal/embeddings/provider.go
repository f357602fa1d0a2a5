package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/memforge/memengine/internal/errs"
)

// ProviderKind is spec.md §4.1's embedding.provider enum.
type ProviderKind string

const (
	ProviderRemote ProviderKind = "remote"
	ProviderLocal  ProviderKind = "local"
	ProviderMock   ProviderKind = "mock"
)

// ProviderConfig selects and configures one embedding provider.
type ProviderConfig struct {
	Provider   ProviderKind
	Model      string
	Endpoint   string
	APIKey     string
	OAuthToken string
	Dimension  int
	CacheDir   string
}

// NewProvider constructs the Embedder named by cfg.Provider.
func NewProvider(cfg ProviderConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderRemote:
		return NewRemoteProvider(RemoteConfig{
			Endpoint:   cfg.Endpoint,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			OAuthToken: cfg.OAuthToken,
			Dimension:  dimensionOrDefault(cfg.Dimension, cfg.Model),
		})
	case ProviderLocal:
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case ProviderMock, "":
		return NewMockProvider(dimensionOrDefault(cfg.Dimension, cfg.Model)), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", errs.ErrInvalidConfiguration, cfg.Provider)
	}
}

func dimensionOrDefault(d int, model string) int {
	if d > 0 {
		return d
	}
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	default:
		return 384
	}
}

// MockProvider is a deterministic, in-process embedder used by tier=mock
// and by tests. Equal inputs always produce equal vectors within a process
// lifetime (spec.md §4.4), by hashing the text into a fixed-length vector.
type MockProvider struct {
	dimension int
	latency   time.Duration
	failRate  float64
	calls     int
}

// NewMockProvider returns a MockProvider with the given output dimension.
func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 32
	}
	return &MockProvider{dimension: dimension}
}

// WithLatency configures a simulated per-call delay, for exercising
// timeout/cancellation paths in tests.
func (m *MockProvider) WithLatency(d time.Duration) *MockProvider {
	m.latency = d
	return m
}

// WithFailureRate configures a deterministic failure every 1/rate calls
// (rate in (0,1]), for exercising tier fallback in tests.
func (m *MockProvider) WithFailureRate(rate float64) *MockProvider {
	m.failRate = rate
	return m
}

func (m *MockProvider) embed(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, m.dimension)
	for i := range vec {
		b := sum[i%len(sum):]
		if len(b) < 4 {
			b = sum[:4]
		}
		bits := binary.BigEndian.Uint32(b[:4])
		vec[i] = float32(bits%1000)/1000.0 - 0.5
	}
	return vec
}

func (m *MockProvider) maybeFail() error {
	m.calls++
	if m.failRate > 0 {
		n := int(1 / m.failRate)
		if n > 0 && m.calls%n == 0 {
			return fmt.Errorf("%w: mock provider simulated failure", errs.ErrEmbeddingFailed)
		}
	}
	return nil
}

// EmbedDocuments embeds multiple texts deterministically.
func (m *MockProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if err := m.maybeFail(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.embed(t)
	}
	return out, nil
}

// EmbedQuery embeds a single query deterministically.
func (m *MockProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if err := m.maybeFail(); err != nil {
		return nil, err
	}
	return m.embed(text), nil
}

func (m *MockProvider) delay(ctx context.Context) error {
	if m.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dimension returns the configured vector length.
func (m *MockProvider) Dimension() int {
	return m.dimension
}

// Close is a no-op for the mock provider.
func (m *MockProvider) Close() error {
	return nil
}
