package optimizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
	"github.com/memforge/memengine/internal/storage"
	"github.com/memforge/memengine/internal/vectorstore"
)

func newTestOptimizer(t *testing.T, cfg Config) (*Optimizer, storage.Adapter, vectorstore.Store) {
	t.Helper()
	st := storage.NewMemoryAdapter()
	vs, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "memories",
		VectorSize: 4,
	}, logging.NewTestLogger().Logger)
	require.NoError(t, err)
	require.NoError(t, vs.Initialize(context.Background()))
	return New(st, vs, cfg, logging.NewTestLogger().Logger), st, vs
}

func seedRecord(t *testing.T, ctx context.Context, st storage.Adapter, vs vectorstore.Store, rec *model.Record) {
	t.Helper()
	require.NoError(t, st.Put(ctx, rec))
	require.NoError(t, vs.Upsert(ctx, rec, []float32{1, 0, 0, 0}))
}

func TestOptimizer_DeduplicatesKeepingHighestImportance(t *testing.T) {
	cfg := DefaultConfig()
	opt, st, vs := newTestOptimizer(t, cfg)
	ctx := context.Background()
	now := time.Now()

	low := &model.Record{ID: uuid.NewString(), TenantID: "t1", Content: "same content here", Importance: 0.3, CreatedAt: now}
	high := &model.Record{ID: uuid.NewString(), TenantID: "t1", Content: "Same Content Here", Importance: 0.8, CreatedAt: now}
	seedRecord(t, ctx, st, vs, low)
	seedRecord(t, ctx, st, vs, high)

	stats, err := opt.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.TotalMemories)

	remaining, err := st.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, high.ID, remaining[0].ID)
}

func TestOptimizer_AgeEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMemoryAgeDays = 30
	opt, st, vs := newTestOptimizer(t, cfg)
	ctx := context.Background()

	old := &model.Record{ID: uuid.NewString(), TenantID: "t1", Content: "old memory", Importance: 0.3, CreatedAt: time.Now().AddDate(0, 0, -90)}
	seedRecord(t, ctx, st, vs, old)

	stats, err := opt.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OldMemories)
	assert.Equal(t, 0, stats.TotalMemories)
}

func TestOptimizer_PreservesHighImportanceRegardlessOfAgeOrAccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMemoryAgeDays = 30
	opt, st, vs := newTestOptimizer(t, cfg)
	ctx := context.Background()

	important := &model.Record{ID: uuid.NewString(), TenantID: "t1", Content: "critical secret deadline", Importance: 0.95, CreatedAt: time.Now().AddDate(0, 0, -90), AccessCount: 0}
	seedRecord(t, ctx, st, vs, important)

	stats, err := opt.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalMemories)
	assert.Equal(t, 0, stats.OldMemories)
}

func TestOptimizer_LowAccessEviction(t *testing.T) {
	cfg := DefaultConfig()
	opt, st, vs := newTestOptimizer(t, cfg)
	ctx := context.Background()

	stale := &model.Record{
		ID: uuid.NewString(), TenantID: "t1", Content: "rarely used", Importance: 0.2,
		CreatedAt: time.Now().AddDate(0, 0, -60), AccessCount: 0,
	}
	seedRecord(t, ctx, st, vs, stale)

	stats, err := opt.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LowAccessMemories)
}

func TestOptimizer_ConcurrentOptimizeForSameTenantShareOneRun(t *testing.T) {
	cfg := DefaultConfig()
	opt, st, vs := newTestOptimizer(t, cfg)
	ctx := context.Background()
	seedRecord(t, ctx, st, vs, &model.Record{
		ID: uuid.NewString(), TenantID: "t1", Content: "shared sweep", Importance: 0.9,
		CreatedAt: time.Now(),
	})

	const concurrency = 8
	results := make([]Stats, concurrency)
	errs := make([]error, concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i], errs[i] = opt.Optimize(ctx, "t1")
		}()
	}
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i], "concurrent callers for the same tenant must observe identical stats")
	}
}

func TestTTLCache_ExpiresEntries(t *testing.T) {
	c := newTTLCache()
	c.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestScheduler_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	opt, st, vs := newTestOptimizer(t, cfg)
	ctx := context.Background()
	seedRecord(t, ctx, st, vs, &model.Record{ID: uuid.NewString(), TenantID: "t1", Content: "hello", CreatedAt: time.Now()})

	sched := NewScheduler(opt, "@every 10ms", []string{"t1"}, logging.NewTestLogger().Logger)
	sched.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	_, ok := opt.GetCached("t1")
	assert.True(t, ok)
}
