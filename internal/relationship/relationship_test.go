package relationship

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/model"
)

func TestManager_CreateAndFindRelated(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	rel, err := m.Create(ctx, "t1", "a", "b", model.RelReferences, 0.8)
	require.NoError(t, err)
	assert.NotEmpty(t, rel.ID)

	related, err := m.FindRelated(ctx, "t1", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, related)

	related, err = m.FindRelated(ctx, "t1", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, related)
}

func TestManager_FindRelatedFiltersByType(t *testing.T) {
	m := New(nil)
	ctx := context.Background()
	_, err := m.Create(ctx, "t1", "a", "b", model.RelReferences, 1.0)
	require.NoError(t, err)
	_, err = m.Create(ctx, "t1", "a", "c", model.RelConflicts, 1.0)
	require.NoError(t, err)

	related, err := m.FindRelated(ctx, "t1", "a", []model.RelationshipType{model.RelConflicts})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, related)
}

func TestManager_CreateParentChild(t *testing.T) {
	m := New(nil)
	ctx := context.Background()
	p2c, c2p, err := m.CreateParentChild(ctx, "t1", "parent", "child")
	require.NoError(t, err)
	assert.Equal(t, model.RelParent, p2c.Type)
	assert.Equal(t, model.RelChild, c2p.Type)

	related, err := m.FindRelated(ctx, "t1", "parent", []model.RelationshipType{model.RelParent})
	require.NoError(t, err)
	assert.Equal(t, []string{"child"}, related)
}

func TestManager_CreateSiblingsSymmetric(t *testing.T) {
	m := New(nil)
	ctx := context.Background()
	_, _, err := m.CreateSiblings(ctx, "t1", "a", "b")
	require.NoError(t, err)

	relatedA, _ := m.FindRelated(ctx, "t1", "a", []model.RelationshipType{model.RelSibling})
	relatedB, _ := m.FindRelated(ctx, "t1", "b", []model.RelationshipType{model.RelSibling})
	assert.Equal(t, []string{"b"}, relatedA)
	assert.Equal(t, []string{"a"}, relatedB)
}

func TestManager_DeleteRemovesFromBothEndpoints(t *testing.T) {
	m := New(nil)
	ctx := context.Background()
	rel, err := m.Create(ctx, "t1", "a", "b", model.RelSupports, 1.0)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "t1", rel.ID))

	related, err := m.FindRelated(ctx, "t1", "a", nil)
	require.NoError(t, err)
	assert.Empty(t, related)

	_, err = m.Get(ctx, "t1", rel.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestManager_BuildGraphBFSWithDepthLimit(t *testing.T) {
	m := New(nil)
	ctx := context.Background()
	_, err := m.Create(ctx, "t1", "a", "b", model.RelReferences, 1.0)
	require.NoError(t, err)
	_, err = m.Create(ctx, "t1", "b", "c", model.RelReferences, 1.0)
	require.NoError(t, err)
	_, err = m.Create(ctx, "t1", "c", "d", model.RelReferences, 1.0)
	require.NoError(t, err)

	g, err := m.BuildGraph(ctx, "t1", "a", 2, nil, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, g.Nodes)
	assert.Equal(t, 2, g.Stats.TotalEdges)
	assert.NotEmpty(t, g.Paths["c"])
}

func TestManager_BuildGraphExcludesInactiveByDefault(t *testing.T) {
	m := New(nil)
	ctx := context.Background()
	rel, err := m.Create(ctx, "t1", "a", "b", model.RelReferences, 1.0)
	require.NoError(t, err)

	m.mu.Lock()
	m.byID[rel.ID].IsActive = false
	m.mu.Unlock()

	g, err := m.BuildGraph(ctx, "t1", "a", 3, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Nodes)

	g, err = m.BuildGraph(ctx, "t1", "a", 3, nil, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, g.Nodes)
}

func TestManager_CleanupOrphaned(t *testing.T) {
	m := New(nil)
	ctx := context.Background()
	_, err := m.Create(ctx, "t1", "a", "b", model.RelReferences, 1.0)
	require.NoError(t, err)
	_, err = m.Create(ctx, "t1", "a", "zzz-gone", model.RelReferences, 1.0)
	require.NoError(t, err)

	count, err := m.CleanupOrphaned(ctx, "t1", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	related, err := m.FindRelated(ctx, "t1", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, related)
}
