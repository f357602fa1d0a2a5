// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
)

var chromemTracer = otel.Tracer("memengine.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name all records are stored under.
	Collection string

	// VectorSize is the expected embedding dimension.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/memengine/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "memories"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store using the embedded chromem-go database.
// It requires no external service and persists to gob files on disk,
// matching the "in-memory vector-store" tier of spec.md §4.7.
type ChromemStore struct {
	db         *chromem.DB
	collection string
	config     ChromemConfig
	logger     *logging.Logger
	metrics    *Metrics

	mu sync.RWMutex
}

// WithMetrics attaches OpenTelemetry instrumentation to the store.
func (s *ChromemStore) WithMetrics(m *Metrics) *ChromemStore {
	s.metrics = m
	return s
}

// passthroughEmbedder satisfies chromem.EmbeddingFunc by returning the
// caller-supplied vector unchanged; the memory engine always computes
// embeddings itself via internal/embeddings before calling the store.
func passthroughEmbedder(vec []float32) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return vec, nil
	}
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expandedPath, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: config.Collection,
		config:     config,
		logger:     logger,
	}, nil
}

func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Initialize creates the backing collection if it does not already exist.
func (s *ChromemStore) Initialize(ctx context.Context) error {
	_, err := s.db.GetOrCreateCollection(s.collection, nil, passthroughEmbedder(nil))
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	return nil
}

type recordPayload struct {
	Record model.Record `json:"record"`
}

func (s *ChromemStore) encode(record *model.Record) (string, map[string]string, error) {
	body, err := json.Marshal(recordPayload{Record: *record})
	if err != nil {
		return "", nil, fmt.Errorf("marshaling record: %w", err)
	}
	meta := map[string]string{
		keyTenantID: record.TenantID,
		keyAgentID:  record.AgentID,
		keyType:     string(record.Type),
		"payload":   string(body),
	}
	for _, tag := range record.Tags {
		meta["tag:"+tag] = "1"
	}
	return record.Content, meta, nil
}

func decodeRecord(content string, meta map[string]string) (model.Record, error) {
	raw, ok := meta["payload"]
	if !ok {
		return model.Record{}, fmt.Errorf("%w: result missing payload", errs.ErrAdapterFailure)
	}
	var p recordPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.Record{}, fmt.Errorf("unmarshaling record: %w", err)
	}
	return p.Record, nil
}

// Upsert stores or replaces a record with its embedding vector.
func (s *ChromemStore) Upsert(ctx context.Context, record *model.Record, vector []float32) error {
	return s.UpsertBatch(ctx, []*model.Record{record}, [][]float32{vector})
}

// UpsertBatch stores or replaces multiple records in one call.
func (s *ChromemStore) UpsertBatch(ctx context.Context, records []*model.Record, vectors [][]float32) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.UpsertBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("record_count", len(records)))

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperation(ctx, "upsert_batch", s.collection, time.Since(start), err)
			if err == nil {
				s.metrics.RecordDocuments(ctx, "add", s.collection, len(records))
			}
		}
	}()

	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("%w: records and vectors length mismatch", errs.ErrInternal)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.db.GetOrCreateCollection(s.collection, nil, passthroughEmbedder(nil))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		content, meta, err := s.encode(rec)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
		}
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   content,
			Metadata:  meta,
			Embedding: vectors[i],
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search performs similarity search constrained by q.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, q Query) (results []Result, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperation(ctx, "search", s.collection, time.Since(start), err)
			if err == nil {
				s.metrics.RecordSearchResults(ctx, s.collection, len(results))
			}
		}
	}()

	q.ApplyDefaults()
	if q.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", errs.ErrInvalidQuery)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	collection := s.db.GetCollection(s.collection, passthroughEmbedder(vector))
	if collection == nil {
		return []Result{}, nil
	}

	docCount := collection.Count()
	if docCount == 0 {
		return []Result{}, nil
	}

	// chromem requires nResults <= doc count; over-fetch so the threshold
	// and tag filters below can still return up to q.Limit matches.
	k := docCount
	where := chromemWhereFilter(q)

	hits, err := collection.Query(ctx, "", k, where, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}

	results = make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < q.Threshold {
			continue
		}
		rec, decodeErr := decodeRecord(h.Content, h.Metadata)
		if decodeErr != nil {
			span.RecordError(decodeErr)
			continue
		}
		results = append(results, Result{Record: rec, Score: h.Similarity})
	}

	if q.TimeDecay {
		applyTimeDecay(results, time.Now())
	}

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Get retrieves records by ID, scoped to tenantID.
func (s *ChromemStore) Get(ctx context.Context, tenantID string, ids []string) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection := s.db.GetCollection(s.collection, passthroughEmbedder(nil))
	if collection == nil {
		return nil, nil
	}

	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		doc, err := collection.GetByID(ctx, id)
		if err != nil {
			continue
		}
		rec, err := decodeRecord(doc.Content, doc.Metadata)
		if err != nil || rec.TenantID != tenantID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes records by ID, scoped to tenantID.
func (s *ChromemStore) Delete(ctx context.Context, tenantID string, ids []string) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperation(ctx, "delete", s.collection, time.Since(start), err)
			if err == nil {
				s.metrics.RecordDocuments(ctx, "delete", s.collection, len(ids))
			}
		}
	}()

	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.db.GetCollection(s.collection, passthroughEmbedder(nil))
	if collection == nil {
		return nil
	}

	var failures []string
	for _, id := range ids {
		doc, err := collection.GetByID(ctx, id)
		if err == nil {
			if rec, derr := decodeRecord(doc.Content, doc.Metadata); derr == nil && rec.TenantID != tenantID {
				continue // not this tenant's record: leave untouched
			}
		}
		if err := collection.Delete(ctx, nil, nil, id); err != nil {
			failures = append(failures, id)
		}
	}

	if len(failures) > 0 {
		span.SetStatus(codes.Error, "partial deletion failure")
		return fmt.Errorf("%w: failed to delete %d of %d records", errs.ErrAdapterFailure, len(failures), len(ids))
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of records for a tenant (all tenants if empty).
func (s *ChromemStore) Count(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection := s.db.GetCollection(s.collection, passthroughEmbedder(nil))
	if collection == nil {
		return 0, nil
	}
	if tenantID == "" {
		return collection.Count(), nil
	}

	hits, err := collection.Query(ctx, "", collection.Count(), map[string]string{keyTenantID: tenantID}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	return len(hits), nil
}

// Health reports whether the embedded database is usable.
func (s *ChromemStore) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("%w: chromem db not initialised", errs.ErrNotInitialised)
	}
	return nil
}

// Close persists and releases resources. chromem-go flushes automatically
// so there is nothing to do beyond logging.
func (s *ChromemStore) Close() error {
	s.logger.Info(context.Background(), "chromem store closed")
	return nil
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
