// Package optimizer implements spec.md §4.8 C7 Optimiser: per-tenant
// deduplication, age/low-access eviction, and a TTL cache with no limit
// on its number of entries. It is
// grounded on the teacher's consolidation-scheduler shape (periodic tick,
// mutex-guarded run state), retargeted from session-memory consolidation
// to MemoryRecord hygiene.
package optimizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
	"github.com/memforge/memengine/internal/storage"
	"github.com/memforge/memengine/internal/vectorstore"
)

// Config bounds the optimiser's eviction rules.
type Config struct {
	MaxMemoryAgeDays      int
	LowAccessThreshold    int
	LowAccessMaxAgeDays   int
	LowAccessImportanceCeiling float64
}

// DefaultConfig matches the thresholds used in spec.md's scenarios.
func DefaultConfig() Config {
	return Config{
		MaxMemoryAgeDays:           365,
		LowAccessThreshold:         2,
		LowAccessMaxAgeDays:        30,
		LowAccessImportanceCeiling: 0.7,
	}
}

// Stats mirrors spec.md's MemoryStats.
type Stats struct {
	TotalMemories      int
	TotalSizeBytes     int64
	Duplicates         int
	OldMemories        int
	LowAccessMemories  int
	CompressionRatio   float64
}

// Optimizer runs the per-tenant hygiene pipeline. Runs for a given tenant
// are mutually exclusive: an Optimize call while one is already in flight
// for that tenant waits for that run and returns its stats. It does not
// start a second run, and it does not return earlier cached stats without
// waiting.
type Optimizer struct {
	storage storage.Adapter
	vectors vectorstore.Store
	cfg     Config
	logger  *logging.Logger
	clock   func() time.Time

	mu        sync.Mutex
	lastStats map[string]Stats
	inflight  singleflight.Group

	cache *ttlCache
}

// New constructs an Optimizer over the given storage/vector backends.
func New(st storage.Adapter, vs vectorstore.Store, cfg Config, logger *logging.Logger) *Optimizer {
	return &Optimizer{
		storage:   st,
		vectors:   vs,
		cfg:       cfg,
		logger:    logger,
		clock:     time.Now,
		lastStats: make(map[string]Stats),
		cache:     newTTLCache(),
	}
}

// GetCached returns the most recent stats for tenant without running a
// new optimisation pass.
func (o *Optimizer) GetCached(tenantID string) (Stats, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.lastStats[tenantID]
	return s, ok
}

// SetCached stores stats for tenant, e.g. after an external recomputation.
func (o *Optimizer) SetCached(tenantID string, stats Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastStats[tenantID] = stats
}

// Optimize runs dedup -> age eviction -> low-access eviction -> the
// (stubbed) compression/index hooks, for a single tenant. Concurrent
// callers for the same tenant share one in-flight pass via singleflight
// rather than queuing duplicate sweeps (spec.md §4.8's per-tenant
// mutual-exclusion requirement).
func (o *Optimizer) Optimize(ctx context.Context, tenantID string) (Stats, error) {
	start := time.Now()
	v, err, shared := o.inflight.Do(tenantID, func() (interface{}, error) {
		return o.optimizeOnce(ctx, tenantID)
	})
	metricOptimizeRuns.WithLabelValues(tenantID, resultLabel(err)).Inc()
	metricOptimizeDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())
	if shared {
		metricOptimizeCoalesced.WithLabelValues(tenantID).Inc()
	}
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

func (o *Optimizer) optimizeOnce(ctx context.Context, tenantID string) (Stats, error) {
	records, err := o.storage.List(ctx, tenantID)
	if err != nil {
		return Stats{}, err
	}

	now := o.clock()
	duplicates := o.deduplicate(ctx, tenantID, records, now)
	survivors := removeByID(records, duplicates)

	oldIDs := o.ageEvict(survivors, now)
	survivors = removeByID(survivors, oldIDs)

	lowAccessIDs := o.lowAccessEvict(survivors, now)
	survivors = removeByID(survivors, lowAccessIDs)

	toDelete := append(append([]string{}, duplicates...), oldIDs...)
	toDelete = append(toDelete, lowAccessIDs...)
	o.deleteAll(ctx, tenantID, toDelete)

	// Compression and index-optimisation are reserved hooks; the current
	// vector-store back-ends need neither, so both are no-ops that must
	// not touch the survivors.
	o.compress(survivors)
	o.optimizeIndex(ctx, tenantID)

	stats := Stats{
		TotalMemories:     len(survivors),
		TotalSizeBytes:    estimateSize(survivors),
		Duplicates:        len(duplicates),
		OldMemories:       len(oldIDs),
		LowAccessMemories: len(lowAccessIDs),
		CompressionRatio:  1.0,
	}

	o.mu.Lock()
	o.lastStats[tenantID] = stats
	o.mu.Unlock()

	return stats, nil
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// deduplicate computes a content hash per record and, within each
// hash-class with more than one member, keeps the record with the
// highest importance (ties broken by newer created_at), returning the
// ids of everyone else.
func (o *Optimizer) deduplicate(ctx context.Context, tenantID string, records []*model.Record, now time.Time) []string {
	byHash := make(map[string][]*model.Record)
	for _, r := range records {
		h := contentHash(r.Content)
		byHash[h] = append(byHash[h], r)
	}

	var toDelete []string
	for _, group := range byHash {
		if len(group) < 2 {
			continue
		}
		survivor := group[0]
		for _, r := range group[1:] {
			if r.Importance > survivor.Importance ||
				(r.Importance == survivor.Importance && r.CreatedAt.After(survivor.CreatedAt)) {
				toDelete = append(toDelete, survivor.ID)
				survivor = r
			} else {
				toDelete = append(toDelete, r.ID)
			}
		}
	}
	return toDelete
}

// contentHash normalises content (trim + lowercase) before hashing so
// near-identical casing/whitespace variants still land in the same class.
func contentHash(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (o *Optimizer) ageEvict(records []*model.Record, now time.Time) []string {
	if o.cfg.MaxMemoryAgeDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -o.cfg.MaxMemoryAgeDays)
	var ids []string
	for _, r := range records {
		if r.Importance >= 0.7 {
			continue // invariant: importance >= 0.7 is always preserved
		}
		if r.CreatedAt.Before(cutoff) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (o *Optimizer) lowAccessEvict(records []*model.Record, now time.Time) []string {
	cutoff := now.AddDate(0, 0, -o.cfg.LowAccessMaxAgeDays)
	var ids []string
	for _, r := range records {
		if r.Importance >= 0.7 {
			continue // invariant: importance >= 0.7 is always preserved
		}
		if r.AccessCount < o.cfg.LowAccessThreshold &&
			r.CreatedAt.Before(cutoff) &&
			r.Importance < o.cfg.LowAccessImportanceCeiling {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// compress is a reserved hook for vector quantisation; currently a no-op.
func (o *Optimizer) compress(records []*model.Record) {}

// optimizeIndex is a reserved hook for back-end compaction; currently a
// no-op.
func (o *Optimizer) optimizeIndex(ctx context.Context, tenantID string) {}

func (o *Optimizer) deleteAll(ctx context.Context, tenantID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := o.vectors.Delete(ctx, tenantID, ids); err != nil && o.logger != nil {
		o.logger.Warn(ctx, "optimizer: failed to delete from vector store")
	}
	for _, id := range ids {
		if err := o.storage.Delete(ctx, tenantID, id); err != nil && o.logger != nil {
			o.logger.Warn(ctx, "optimizer: failed to delete from storage adapter")
		}
	}
}

func removeByID(records []*model.Record, ids []string) []*model.Record {
	if len(ids) == 0 {
		return records
	}
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	out := records[:0]
	for _, r := range records {
		if !remove[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// estimateSize mirrors spec.md's byte estimate:
// content.length*2 + embedding.length*4 + metadata_json.length*2.
func estimateSize(records []*model.Record) int64 {
	var total int64
	for _, r := range records {
		total += int64(len(r.Content)) * 2
		total += int64(len(r.Embedding)) * 4
		if meta, err := json.Marshal(r.Context); err == nil {
			total += int64(len(meta)) * 2
		}
	}
	return total
}
