// Package storage provides the durable record of MemoryRecords underneath
// the vector index (spec.md §4 C1 Storage Adapter). The vector store holds
// embeddings for recall; the Adapter holds the authoritative record so that
// re-indexing, audits, and tier fallback never lose data.
package storage

import (
	"context"

	"github.com/memforge/memengine/internal/model"
)

// Adapter is the storage contract every backend implements. All methods are
// tenant-scoped: callers never see another tenant's records. Returned
// records are deep copies (model.Record.Clone) so mutation by the caller
// cannot corrupt adapter state.
type Adapter interface {
	// Put inserts or replaces a record.
	Put(ctx context.Context, rec *model.Record) error

	// Get returns a record by id, scoped to tenantID. Returns
	// errs.ErrNotFound if absent or owned by a different tenant.
	Get(ctx context.Context, tenantID, id string) (*model.Record, error)

	// List returns every record owned by tenantID, newest first.
	List(ctx context.Context, tenantID string) ([]*model.Record, error)

	// Delete removes a record, scoped to tenantID. A missing id is not
	// an error (idempotent delete).
	Delete(ctx context.Context, tenantID, id string) error

	// Count returns the number of records owned by tenantID, or the
	// total across all tenants when tenantID is empty.
	Count(ctx context.Context, tenantID string) (int, error)

	// Health reports whether the backend is reachable and writable.
	Health(ctx context.Context) error

	// Close releases any resources (file handles, connections).
	Close() error
}
