// Package memoryengine implements spec.md §4.6 C5 Memory Engine: it
// orchestrates the classifier, embedding service, vector store, and
// storage adapter behind remember/recall/forget/context.
package memoryengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/memforge/memengine/internal/classifier"
	"github.com/memforge/memengine/internal/embeddings"
	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
	"github.com/memforge/memengine/internal/storage"
	"github.com/memforge/memengine/internal/vectorstore"
)

const instrumentationName = "github.com/memforge/memengine/internal/memoryengine"

// RememberOptions lets the caller pre-supply fields that would otherwise
// be derived by the classifier/scorer.
type RememberOptions struct {
	Type       model.MemoryType
	Importance *float64
	Tags       []string
	Context    map[string]any
	TTL        *time.Time
}

// RecallOptions controls a recall call.
type RecallOptions struct {
	AgentID   string
	Type      model.MemoryType
	Tags      []string
	Limit     int
	Threshold float32
	TimeDecay bool
}

// ContextRequest drives the `context` operation.
type ContextRequest struct {
	TenantID     string
	AgentID      string
	Topic        string
	Query        string
	MemoryTypes  []model.MemoryType
	MaxResults   int
}

// ContextResult is the assembled summary returned by Context.
type ContextResult struct {
	Memories       []vectorstore.Result
	TotalCount     int
	ContextSummary string
	Confidence     float64
	GeneratedAt    time.Time
}

// HealthStatus is the overall status reported by HealthCheck.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth reports a single dependency's status.
type ComponentHealth struct {
	Status HealthStatus
	Error  string
}

// Health is the aggregate report from HealthCheck.
type Health struct {
	Status      HealthStatus
	Initialised bool
	Components  map[string]ComponentHealth
}

// Clock abstracts time.Now so recall/forget/context are deterministically
// testable; production code uses RealClock.
type Clock interface {
	Now() time.Time
}

// RealClock calls time.Now.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Engine is the Memory Engine: the single orchestration point between
// storage, vector search, embeddings, and classification.
type Engine struct {
	storage    storage.Adapter
	vectors    vectorstore.Store
	embedder   *embeddings.Service
	classifier classifier.Classifier
	scorer     classifier.Scorer
	logger     *logging.Logger
	clock      Clock
	dimension  int

	tracer      trace.Tracer
	initialised bool
}

// New wires the four leaf components into a Memory Engine.
func New(st storage.Adapter, vs vectorstore.Store, embedder *embeddings.Service, cls classifier.Classifier, scorer classifier.Scorer, logger *logging.Logger) *Engine {
	return &Engine{
		storage:     st,
		vectors:     vs,
		embedder:    embedder,
		classifier:  cls,
		scorer:      scorer,
		logger:      logger,
		clock:       RealClock{},
		tracer:      otel.Tracer(instrumentationName),
		initialised: true,
	}
}

// WithClock overrides the clock, for deterministic tests.
func (e *Engine) WithClock(c Clock) *Engine {
	e.clock = c
	return e
}

// Remember classifies, scores, embeds, and persists a new memory.
func (e *Engine) Remember(ctx context.Context, content, tenantID, agentID string, opts RememberOptions) (id string, err error) {
	ctx, span := e.tracer.Start(ctx, "memoryengine.remember")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", tenantID))

	if !e.initialised {
		return "", errs.ErrNotInitialised
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("%w: content must not be empty", errs.ErrInvalidContent)
	}
	if strings.TrimSpace(tenantID) == "" {
		return "", fmt.Errorf("%w: tenant_id is required", errs.ErrInvalidContent)
	}

	memType := opts.Type
	if memType == "" {
		memType, _ = e.classifier.Classify(trimmed, opts.Tags)
	}

	importance := 0.0
	if opts.Importance != nil {
		importance = *opts.Importance
	} else {
		importance = e.scorer.Score(trimmed)
	}

	now := e.clock.Now().UTC()
	rec := &model.Record{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		AgentID:        agentID,
		Type:           memType,
		Content:        trimmed,
		Confidence:     1.0,
		Importance:     importance,
		Tags:           opts.Tags,
		Context:        opts.Context,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		TTL:            opts.TTL,
	}

	result, err := e.embedder.Embed(ctx, trimmed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	rec.Embedding = result.Vector

	if err := e.storage.Put(ctx, rec); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	if err := e.vectors.Upsert(ctx, rec, rec.Embedding); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}

	span.SetAttributes(attribute.String("memory_id", rec.ID), attribute.String("memory_type", string(memType)))
	return rec.ID, nil
}

// Recall embeds the query, searches the vector store, and (side effect)
// touches every returned record's access bookkeeping.
func (e *Engine) Recall(ctx context.Context, query, tenantID string, opts RecallOptions) ([]vectorstore.Result, error) {
	ctx, span := e.tracer.Start(ctx, "memoryengine.recall")
	defer span.End()

	if !e.initialised {
		return nil, errs.ErrNotInitialised
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", errs.ErrInvalidQuery)
	}

	embedded, err := e.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	q := vectorstore.Query{
		TenantID:  tenantID,
		AgentID:   opts.AgentID,
		Type:      opts.Type,
		Tags:      opts.Tags,
		Limit:     opts.Limit,
		Threshold: opts.Threshold,
		TimeDecay: opts.TimeDecay,
	}
	q.ApplyDefaults()

	results, err := e.vectors.Search(ctx, embedded.Vector, q)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}

	e.touchResults(ctx, results)
	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

// touchResults increments access_count and bumps last_accessed_at for
// every returned record, persisting the change back to storage.
func (e *Engine) touchResults(ctx context.Context, results []vectorstore.Result) {
	now := e.clock.Now().UTC()
	for i := range results {
		rec := &results[i].Record
		rec.Touch(now)
		if err := e.storage.Put(ctx, rec); err != nil && e.logger != nil {
			e.logger.Warn(ctx, "failed to persist access bookkeeping", zap.Error(err))
		}
		if err := e.vectors.Upsert(ctx, rec, rec.Embedding); err != nil && e.logger != nil {
			e.logger.Warn(ctx, "failed to persist access bookkeeping to vector store", zap.Error(err))
		}
	}
}

// Forget performs a low-threshold recall for candidates, then deletes
// only those whose similarity meets threshold (default 0.9).
func (e *Engine) Forget(ctx context.Context, query, tenantID, agentID string, threshold float32) (int, error) {
	ctx, span := e.tracer.Start(ctx, "memoryengine.forget")
	defer span.End()

	if threshold <= 0 {
		threshold = 0.9
	}

	candidates, err := e.Recall(ctx, query, tenantID, RecallOptions{AgentID: agentID, Threshold: 0.1, Limit: 1000})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= threshold {
			ids = append(ids, c.Record.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := e.vectors.Delete(ctx, tenantID, ids); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	for _, id := range ids {
		if err := e.storage.Delete(ctx, tenantID, id); err != nil && e.logger != nil {
			e.logger.Warn(ctx, "failed to delete from storage adapter", zap.Error(err))
		}
	}

	span.SetAttributes(attribute.Int("deleted_count", len(ids)))
	return len(ids), nil
}

// Context assembles a deterministic summary over a recall: on Topic with
// threshold 0.6 when Topic is set, otherwise on Query with no threshold
// of its own. With neither set, Recall rejects the empty query with
// ErrInvalidQuery.
func (e *Engine) Context(ctx context.Context, req ContextRequest) (ContextResult, error) {
	ctx, span := e.tracer.Start(ctx, "memoryengine.context")
	defer span.End()

	var results []vectorstore.Result
	var err error

	if strings.TrimSpace(req.Topic) != "" {
		results, err = e.Recall(ctx, req.Topic, req.TenantID, RecallOptions{AgentID: req.AgentID, Threshold: 0.6, Limit: req.MaxResults})
	} else {
		query := req.Query
		if query == "" {
			query = req.Topic
		}
		results, err = e.Recall(ctx, query, req.TenantID, RecallOptions{AgentID: req.AgentID, Limit: req.MaxResults})
	}
	if err != nil {
		span.RecordError(err)
		return ContextResult{}, err
	}

	if len(req.MemoryTypes) > 0 {
		allowed := make(map[model.MemoryType]bool, len(req.MemoryTypes))
		for _, t := range req.MemoryTypes {
			allowed[t] = true
		}
		filtered := results[:0]
		for _, r := range results {
			if allowed[r.Record.Type] {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	summary := summarize(results)
	confidence := meanConfidence(results)

	return ContextResult{
		Memories:       results,
		TotalCount:     len(results),
		ContextSummary: summary,
		Confidence:     confidence,
		GeneratedAt:    e.clock.Now().UTC(),
	}, nil
}

// summarize renders "N memories: C1 type1s, C2 type2s, …" in descending
// count order, breaking ties alphabetically for determinism.
func summarize(results []vectorstore.Result) string {
	if len(results) == 0 {
		return "0 memories"
	}
	counts := make(map[model.MemoryType]int)
	for _, r := range results {
		counts[r.Record.Type]++
	}
	type typeCount struct {
		t model.MemoryType
		n int
	}
	ordered := make([]typeCount, 0, len(counts))
	for t, n := range counts {
		ordered = append(ordered, typeCount{t, n})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].n != ordered[j].n {
			return ordered[i].n > ordered[j].n
		}
		return ordered[i].t < ordered[j].t
	})

	parts := make([]string, 0, len(ordered))
	for _, tc := range ordered {
		parts = append(parts, fmt.Sprintf("%d %ss", tc.n, tc.t))
	}
	return fmt.Sprintf("%d memories: %s", len(results), strings.Join(parts, ", "))
}

// meanConfidence = (mean(score) + mean(record.confidence)) / 2.
func meanConfidence(results []vectorstore.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var scoreSum, confSum float64
	for _, r := range results {
		scoreSum += float64(r.Score)
		confSum += r.Record.Confidence
	}
	n := float64(len(results))
	return (scoreSum/n + confSum/n) / 2
}

// HealthCheck reports the status of every wired dependency.
func (e *Engine) HealthCheck(ctx context.Context) Health {
	components := map[string]ComponentHealth{
		"storage":     componentHealth(e.storage.Health(ctx)),
		"vectorstore": componentHealth(e.vectors.Health(ctx)),
	}

	healthyCount := 0
	for _, c := range components {
		if c.Status == HealthHealthy {
			healthyCount++
		}
	}

	status := HealthHealthy
	switch {
	case healthyCount == 0:
		status = HealthUnhealthy
	case healthyCount < len(components):
		status = HealthDegraded
	}

	return Health{Status: status, Initialised: e.initialised, Components: components}
}

func componentHealth(err error) ComponentHealth {
	if err == nil {
		return ComponentHealth{Status: HealthHealthy}
	}
	return ComponentHealth{Status: HealthUnhealthy, Error: err.Error()}
}
