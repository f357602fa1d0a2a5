package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/model"
)

// FileAdapter persists records as a single JSON document per process,
// written atomically (temp file + rename) so a crash mid-write never
// corrupts the on-disk copy. It trades write throughput for zero external
// dependencies; deployments that need concurrent multi-process access
// should use the Qdrant-backed vector store as the system of record
// instead and run this adapter in single-writer mode.
type FileAdapter struct {
	mu      sync.Mutex
	path    string
	records map[string]*model.Record
}

// NewFileAdapter opens (or creates) the JSON file at path and loads any
// existing records into memory.
func NewFileAdapter(path string) (*FileAdapter, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file adapter path is required", errs.ErrInvalidConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating storage directory: %v", errs.ErrAdapterFailure, err)
	}
	a := &FileAdapter{path: path, records: make(map[string]*model.Record)}
	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *FileAdapter) load() error {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", errs.ErrAdapterFailure, a.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	var records []*model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", errs.ErrAdapterFailure, a.path, err)
	}
	for _, rec := range records {
		a.records[rec.ID] = rec
	}
	return nil
}

// save serializes all records and writes them atomically. Callers must
// hold a.mu.
func (a *FileAdapter) save() error {
	records := make([]*model.Record, 0, len(a.records))
	for _, rec := range a.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding records: %v", errs.ErrAdapterFailure, err)
	}

	tmpPath := a.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: writing %s: %v", errs.ErrAdapterFailure, tmpPath, err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s: %v", errs.ErrAdapterFailure, tmpPath, err)
	}
	return nil
}

func (a *FileAdapter) Put(ctx context.Context, rec *model.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record id is required", errs.ErrInvalidContent)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.ID] = rec.Clone()
	return a.save()
}

func (a *FileAdapter) Get(ctx context.Context, tenantID, id string) (*model.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok || rec.TenantID != tenantID {
		return nil, fmt.Errorf("%w: record %s", errs.ErrNotFound, id)
	}
	return rec.Clone(), nil
}

func (a *FileAdapter) List(ctx context.Context, tenantID string) ([]*model.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*model.Record, 0)
	for _, rec := range a.records {
		if rec.TenantID == tenantID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (a *FileAdapter) Delete(ctx context.Context, tenantID, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok || rec.TenantID != tenantID {
		return nil
	}
	delete(a.records, id)
	return a.save()
}

func (a *FileAdapter) Count(ctx context.Context, tenantID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
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

func (a *FileAdapter) Health(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := os.Stat(filepath.Dir(a.path)); err != nil {
		return fmt.Errorf("%w: storage directory unavailable: %v", errs.ErrAdapterFailure, err)
	}
	return nil
}

func (a *FileAdapter) Close() error { return nil }
