package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/memforge/memengine/internal/errs"
)

// Result is the output of Embed (spec.md §4.4).
type Result struct {
	Vector    []float32
	Model     string
	Dimension int
}

// Embedder is a text -> vector provider. EmbedDocuments embeds multiple
// texts (storage path); EmbedQuery embeds a single query (recall path) —
// some providers optimize the two differently.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Close() error
}

// Service is the C3 Embedding Service: embed(text) -> {vector, model, dimension}.
type Service struct {
	provider Embedder
	model    string
}

// NewService wraps an Embedder with the model name used to produce it.
func NewService(provider Embedder, model string) *Service {
	return &Service{provider: provider, model: model}
}

// Embed generates an embedding for a single piece of content.
func (s *Service) Embed(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: empty input", errs.ErrEmbeddingFailed)
	}
	vec, err := s.provider.EmbedQuery(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrEmbeddingFailed, err)
	}
	return Result{Vector: vec, Model: s.model, Dimension: s.provider.Dimension()}, nil
}

// EmbedBatch generates embeddings for multiple documents.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	vecs, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEmbeddingFailed, err)
	}
	out := make([]Result, len(vecs))
	for i, v := range vecs {
		out[i] = Result{Vector: v, Model: s.model, Dimension: s.provider.Dimension()}
	}
	return out, nil
}

// Close releases the underlying provider.
func (s *Service) Close() error {
	return s.provider.Close()
}

// RemoteConfig configures the HTTP-based remote embedding provider. It
// speaks the TEI request shape (POST {Endpoint}/embed with an "inputs"
// field, answered by a JSON array of vectors); OpenAI-style /embeddings
// endpoints are not supported.
type RemoteConfig struct {
	Endpoint  string
	Model     string
	APIKey    string
	Dimension int
	// RequestsPerSecond bounds outbound request rate; 0 disables limiting.
	RequestsPerSecond float64
	// OAuthToken, when set, is used as a bearer token via an
	// oauth2.StaticTokenSource-backed client instead of APIKey. Providers
	// fronted by an OAuth2 gateway (rather than a static API key) set
	// this instead.
	OAuthToken string
}

// RemoteProvider calls a remote HTTP embeddings endpoint.
type RemoteProvider struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
}

// NewRemoteProvider validates cfg and returns a ready RemoteProvider.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint required", errs.ErrInvalidConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", errs.ErrInvalidConfiguration)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if cfg.OAuthToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.OAuthToken})
		client = oauth2.NewClient(context.Background(), ts)
		client.Timeout = 30 * time.Second
	}

	return &RemoteProvider{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		metrics: NewMetrics(zap.NewNop()),
	}, nil
}

type remoteRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

func (p *RemoteProvider) do(ctx context.Context, inputs interface{}) ([][]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limited: %v", errs.ErrEmbeddingFailed, err)
		}
	}

	body, err := json.Marshal(remoteRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.OAuthToken == "" && p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: rate limited by provider", errs.ErrEmbeddingFailed)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", errs.ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return vectors, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *RemoteProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", errs.ErrEmbeddingFailed)
	}
	vecs, err := p.do(ctx, texts)
	p.metrics.RecordGeneration(ctx, p.cfg.Model, "embed_documents", time.Since(start), len(texts), err)
	return vecs, err
}

// EmbedQuery generates an embedding for a single query.
func (p *RemoteProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vecs, err := p.do(ctx, text)
	p.metrics.RecordGeneration(ctx, p.cfg.Model, "embed_query", time.Since(start), 1, err)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: empty response", errs.ErrEmbeddingFailed)
	}
	return vecs[0], nil
}

// Dimension returns the configured embedding dimension.
func (p *RemoteProvider) Dimension() int {
	return p.cfg.Dimension
}

// Close is a no-op for the HTTP-based remote provider.
func (p *RemoteProvider) Close() error {
	return nil
}
