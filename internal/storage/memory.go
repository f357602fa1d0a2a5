package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/model"
)

// MemoryAdapter is an in-process, mutex-guarded Adapter. It is the default
// backend for single-node deployments and for tests; nothing survives a
// process restart.
type MemoryAdapter struct {
	mu      sync.RWMutex
	records map[string]*model.Record // id -> record
}

// NewMemoryAdapter creates an empty in-process adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{records: make(map[string]*model.Record)}
}

func (a *MemoryAdapter) Put(ctx context.Context, rec *model.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record id is required", errs.ErrInvalidContent)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.ID] = rec.Clone()
	return nil
}

func (a *MemoryAdapter) Get(ctx context.Context, tenantID, id string) (*model.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[id]
	if !ok || rec.TenantID != tenantID {
		return nil, fmt.Errorf("%w: record %s", errs.ErrNotFound, id)
	}
	return rec.Clone(), nil
}

func (a *MemoryAdapter) List(ctx context.Context, tenantID string) ([]*model.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*model.Record, 0)
	for _, rec := range a.records {
		if rec.TenantID == tenantID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (a *MemoryAdapter) Delete(ctx context.Context, tenantID, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.records[id]; ok && rec.TenantID == tenantID {
		delete(a.records, id)
	}
	return nil
}

func (a *MemoryAdapter) Count(ctx context.Context, tenantID string) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if tenantID == "" {
		return len(a.records), nil
	}
	n := 0
	for _, rec := range a.records {
		if rec.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (a *MemoryAdapter) Health(ctx context.Context) error { return nil }

func (a *MemoryAdapter) Close() error { return nil }
