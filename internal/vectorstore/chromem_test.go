package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
)

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:       t.TempDir(),
		Collection: "memories",
		VectorSize: 4,
	}, logging.NewTestLogger().Logger)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func newTestRecord(tenantID string, createdAt time.Time) *model.Record {
	return &model.Record{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		AgentID:   "agent-1",
		Type:      model.TypeFact,
		Content:   "the sky is blue",
		Tags:      []string{"color"},
		CreatedAt: createdAt,
	}
}

func TestChromemStore_UpsertAndGet(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	rec := newTestRecord("tenant-a", time.Now())

	require.NoError(t, store.Upsert(ctx, rec, []float32{1, 0, 0, 0}))

	got, err := store.Get(ctx, "tenant-a", []string{rec.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.Content, got[0].Content)
}

func TestChromemStore_GetRejectsOtherTenant(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	rec := newTestRecord("tenant-a", time.Now())
	require.NoError(t, store.Upsert(ctx, rec, []float32{1, 0, 0, 0}))

	got, err := store.Get(ctx, "tenant-b", []string{rec.ID})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChromemStore_UpsertBatchRejectsMismatchedLengths(t *testing.T) {
	store := newTestChromemStore(t)
	rec := newTestRecord("tenant-a", time.Now())
	err := store.UpsertBatch(context.Background(), []*model.Record{rec}, [][]float32{})
	require.Error(t, err)
}

func TestChromemStore_UpsertBatchRejectsEmpty(t *testing.T) {
	store := newTestChromemStore(t)
	err := store.UpsertBatch(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrEmptyRecords)
}

func TestChromemStore_SearchRequiresTenantID(t *testing.T) {
	store := newTestChromemStore(t)
	_, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, Query{})
	require.Error(t, err)
}

func TestChromemStore_SearchFiltersByTenantAndThreshold(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	recA := newTestRecord("tenant-a", time.Now())
	recB := newTestRecord("tenant-b", time.Now())
	require.NoError(t, store.Upsert(ctx, recA, []float32{1, 0, 0, 0}))
	require.NoError(t, store.Upsert(ctx, recB, []float32{1, 0, 0, 0}))

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, Query{TenantID: "tenant-a", Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, recA.ID, results[0].Record.ID)
}

func TestChromemStore_SearchAppliesTimeDecay(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	fresh := newTestRecord("tenant-a", time.Now())
	stale := newTestRecord("tenant-a", time.Now().Add(-90*24*time.Hour))
	require.NoError(t, store.Upsert(ctx, fresh, []float32{1, 0, 0, 0}))
	require.NoError(t, store.Upsert(ctx, stale, []float32{1, 0, 0, 0}))

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, Query{TenantID: "tenant-a", TimeDecay: true, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, fresh.ID, results[0].Record.ID, "fresher record should rank first after decay")
}

func TestChromemStore_DeleteScopedToTenant(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	rec := newTestRecord("tenant-a", time.Now())
	require.NoError(t, store.Upsert(ctx, rec, []float32{1, 0, 0, 0}))

	require.NoError(t, store.Delete(ctx, "tenant-b", []string{rec.ID}))
	got, err := store.Get(ctx, "tenant-a", []string{rec.ID})
	require.NoError(t, err)
	assert.Len(t, got, 1, "record owned by a different tenant must survive the delete")

	require.NoError(t, store.Delete(ctx, "tenant-a", []string{rec.ID}))
	got, err = store.Get(ctx, "tenant-a", []string{rec.ID})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChromemStore_Count(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, newTestRecord("tenant-a", time.Now()), []float32{1, 0, 0, 0}))
	require.NoError(t, store.Upsert(ctx, newTestRecord("tenant-b", time.Now()), []float32{1, 0, 0, 0}))

	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	scoped, err := store.Count(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, scoped)
}

func TestChromemStore_HealthAndClose(t *testing.T) {
	store := newTestChromemStore(t)
	assert.NoError(t, store.Health(context.Background()))
	assert.NoError(t, store.Close())
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, ValidateCollectionName("memories"))
	assert.NoError(t, ValidateCollectionName("memories_v2"))
	assert.Error(t, ValidateCollectionName(""))
	assert.Error(t, ValidateCollectionName("Memories"))
	assert.Error(t, ValidateCollectionName("has space"))
}
