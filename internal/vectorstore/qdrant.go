// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
	"github.com/memforge/memengine/internal/qdrant"
)

var qdrantTracer = otel.Tracer("memengine.vectorstore.qdrant")

// QdrantStoreConfig holds configuration for the external Qdrant backend.
type QdrantStoreConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334, not the 6333 HTTP REST port).
	Port int

	// APIKey authenticates against a managed Qdrant deployment.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Collection is the collection all records are stored under.
	Collection string

	// VectorSize is the dimensionality of embeddings; must match the
	// embedding service's output dimension.
	VectorSize int
}

// Validate validates the configuration.
func (c QdrantStoreConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// QdrantStore implements Store over an external Qdrant deployment via
// internal/qdrant.Client (gRPC transport, binary protobuf payloads).
type QdrantStore struct {
	client     qdrant.Client
	collection string
	vectorSize uint64
	logger     *logging.Logger
	metrics    *Metrics
}

// WithMetrics attaches OpenTelemetry instrumentation to the store.
func (s *QdrantStore) WithMetrics(m *Metrics) *QdrantStore {
	s.metrics = m
	return s
}

// NewQdrantStore creates a new QdrantStore, dialing the Qdrant server and
// performing an initial health check.
func NewQdrantStore(cfg QdrantStoreConfig, logger *logging.Logger) (*QdrantStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}

	client, err := qdrant.NewGRPCClient(&qdrant.ClientConfig{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		vectorSize: uint64(cfg.VectorSize),
		logger:     logger,
	}, nil
}

// Initialize creates the backing collection if it does not already exist.
func (s *QdrantStore) Initialize(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	if exists {
		return nil
	}
	if err := s.client.CreateCollection(ctx, s.collection, s.vectorSize); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	return nil
}

func recordToPayload(record *model.Record) (map[string]interface{}, error) {
	body, err := json.Marshal(recordPayload{Record: *record})
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	payload := map[string]interface{}{
		keyTenantID: record.TenantID,
		keyAgentID:  record.AgentID,
		keyType:     string(record.Type),
		"payload":   string(body),
	}
	for _, tag := range record.Tags {
		payload["tag:"+tag] = "1"
	}
	return payload, nil
}

func payloadToRecord(payload map[string]interface{}) (model.Record, error) {
	raw, ok := payload["payload"].(string)
	if !ok {
		return model.Record{}, fmt.Errorf("%w: point missing payload", errs.ErrAdapterFailure)
	}
	var p recordPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.Record{}, fmt.Errorf("unmarshaling record: %w", err)
	}
	return p.Record, nil
}

// Upsert stores or replaces a record with its embedding vector.
func (s *QdrantStore) Upsert(ctx context.Context, record *model.Record, vector []float32) error {
	return s.UpsertBatch(ctx, []*model.Record{record}, [][]float32{vector})
}

// UpsertBatch stores or replaces multiple records in one call.
func (s *QdrantStore) UpsertBatch(ctx context.Context, records []*model.Record, vectors [][]float32) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.UpsertBatch")
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

	points := make([]*qdrant.Point, len(records))
	for i, rec := range records {
		payload, err := recordToPayload(rec)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
		}
		points[i] = &qdrant.Point{ID: rec.ID, Vector: vectors[i], Payload: payload}
	}

	if err := s.client.Upsert(ctx, s.collection, points); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search performs similarity search constrained by q.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, q Query) (results []Result, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Search")
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

	// Over-fetch since threshold filtering happens client-side.
	fetchLimit := uint64(q.Limit * 4)
	if fetchLimit < 40 {
		fetchLimit = 40
	}

	hits, err := s.client.Search(ctx, s.collection, vector, fetchLimit, qdrantFilter(q))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}

	results = make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Score < q.Threshold {
			continue
		}
		rec, decodeErr := payloadToRecord(h.Payload)
		if decodeErr != nil {
			span.RecordError(decodeErr)
			continue
		}
		results = append(results, Result{Record: rec, Score: h.Score})
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
func (s *QdrantStore) Get(ctx context.Context, tenantID string, ids []string) ([]model.Record, error) {
	points, err := s.client.Get(ctx, s.collection, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	out := make([]model.Record, 0, len(points))
	for _, p := range points {
		rec, err := payloadToRecord(p.Payload)
		if err != nil || rec.TenantID != tenantID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes records by ID, scoped to tenantID.
func (s *QdrantStore) Delete(ctx context.Context, tenantID string, ids []string) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()

	start := time.Now()
	var deletedCount int
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperation(ctx, "delete", s.collection, time.Since(start), err)
			if err == nil {
				s.metrics.RecordDocuments(ctx, "delete", s.collection, deletedCount)
			}
		}
	}()

	if len(ids) == 0 {
		return nil
	}

	owned, err := s.Get(ctx, tenantID, ids)
	if err != nil {
		return err
	}
	ownedIDs := make([]string, len(owned))
	for i, r := range owned {
		ownedIDs[i] = r.ID
	}
	if len(ownedIDs) == 0 {
		return nil
	}

	if err := s.client.Delete(ctx, s.collection, ownedIDs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	deletedCount = len(ownedIDs)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of records for a tenant (all tenants if empty).
//
// Qdrant's client interface here has no native count-by-filter primitive,
// so this scans via a zero-vector search with a generous limit. Fine for
// the engine's own stats reporting; not meant for hot paths.
func (s *QdrantStore) Count(ctx context.Context, tenantID string) (int, error) {
	var filter *qdrant.Filter
	if tenantID != "" {
		filter = &qdrant.Filter{Must: []qdrant.Condition{{Field: keyTenantID, Match: tenantID}}}
	}
	zero := make([]float32, s.vectorSize)
	hits, err := s.client.Search(ctx, s.collection, zero, 1<<20, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	return len(hits), nil
}

// Health reports whether the Qdrant server is reachable.
func (s *QdrantStore) Health(ctx context.Context) error {
	if err := s.client.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrAdapterFailure, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)
