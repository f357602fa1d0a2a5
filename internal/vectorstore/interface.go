// Package vectorstore implements the C2 Vector Store (spec.md §4.3):
// initialize, upsert, search, delete, count and health over one of two
// backends behind a shared interface - chromem-go (embedded, in-process)
// or Qdrant (external, gRPC).
package vectorstore

import (
	"context"
	"errors"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/model"
)

// Sentinel errors for vector store operations. Wrapped around errs.Err*
// where the memory engine needs errors.Is against the shared taxonomy.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration. It is the shared
	// errs.ErrInvalidConfiguration under a vector-store-scoped name, so
	// callers can match on either.
	ErrInvalidConfig = errs.ErrInvalidConfiguration

	// ErrEmptyRecords indicates an empty upsert batch.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrConnectionFailed indicates a backend connectivity failure.
	ErrConnectionFailed = errors.New("failed to connect to vector store backend")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Store is the C2 Vector Store interface (spec.md §4.3). Implementations
// are transport-agnostic: chromem-go runs embedded, Qdrant talks gRPC.
// Both store model.Record payloads keyed by record ID, alongside an
// already-computed embedding vector supplied by the caller - the store
// never generates embeddings itself.
type Store interface {
	// Initialize prepares the backing collection, creating it if absent.
	Initialize(ctx context.Context) error

	// Upsert stores or replaces a record with its embedding vector.
	Upsert(ctx context.Context, record *model.Record, vector []float32) error

	// UpsertBatch stores or replaces multiple records in one call.
	UpsertBatch(ctx context.Context, records []*model.Record, vectors [][]float32) error

	// Search performs similarity search constrained by q, returning results
	// ordered by descending score.
	Search(ctx context.Context, vector []float32, q Query) ([]Result, error)

	// Get retrieves records by ID, scoped to tenantID.
	Get(ctx context.Context, tenantID string, ids []string) ([]model.Record, error)

	// Delete removes records by ID, scoped to tenantID.
	Delete(ctx context.Context, tenantID string, ids []string) error

	// Count returns the number of records for a tenant (all tenants if empty).
	Count(ctx context.Context, tenantID string) (int, error)

	// Health reports whether the backend is reachable and usable.
	Health(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
