// Package relationship implements spec.md §4.9 C8 Relationship Manager:
// an in-memory directed multigraph of typed edges between MemoryRecords,
// keyed per tenant. It follows the same sync.RWMutex-guarded in-memory
// map shape as internal/storage's MemoryAdapter, since the teacher repo
// has no dedicated graph library in its dependency set — BFS/traversal
// here is plain Go, not a third-party graph package.
package relationship

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memforge/memengine/internal/errs"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
)

// GraphStats summarises a build_graph traversal.
type GraphStats struct {
	TotalNodes          int     `json:"total_nodes"`
	TotalEdges          int     `json:"total_edges"`
	MaxDepth            int     `json:"max_depth"`
	AverageConnectivity float64 `json:"average_connectivity"`
}

// Graph is the result of build_graph: the deduped edge set reached from
// start within max_depth hops, the node list, enumerated simple paths
// from start to every other reached node, and summary statistics.
type Graph struct {
	Nodes []string               `json:"nodes"`
	Edges []*model.Relationship  `json:"edges"`
	Paths map[string][][]string `json:"paths"`
	Stats GraphStats             `json:"stats"`
}

// Manager holds the per-tenant relationship multigraph. Every
// relationship is indexed symmetrically under both of its endpoints so
// find_related and build_graph never need to scan the full edge set.
type Manager struct {
	logger *logging.Logger

	mu    sync.RWMutex
	byID  map[string]*model.Relationship
	byEnd map[string]map[string]bool // (tenant|endpoint) -> relationship ids touching it
}

// New constructs an empty relationship manager.
func New(logger *logging.Logger) *Manager {
	return &Manager{
		logger: logger,
		byID:   make(map[string]*model.Relationship),
		byEnd:  make(map[string]map[string]bool),
	}
}

func endKey(tenantID, memoryID string) string {
	return tenantID + "|" + memoryID
}

// Create stores a new relationship between source and target, indexed
// symmetrically on both endpoints. Strength defaults to 1.0 if zero.
func (m *Manager) Create(ctx context.Context, tenantID, sourceID, targetID string, relType model.RelationshipType, strength float64) (*model.Relationship, error) {
	if sourceID == "" || targetID == "" {
		return nil, fmt.Errorf("%w: source and target memory ids are required", errs.ErrInvalidContent)
	}
	if strength == 0 {
		strength = 1.0
	}
	now := time.Now()
	rel := &model.Relationship{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		SourceMemoryID: sourceID,
		TargetMemoryID: targetID,
		Type:           relType,
		Strength:       strength,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[rel.ID] = rel
	m.index(tenantID, sourceID, rel.ID)
	m.index(tenantID, targetID, rel.ID)

	if m.logger != nil {
		m.logger.Debug(ctx, "relationship created")
	}
	return cloneRel(rel), nil
}

func (m *Manager) index(tenantID, memoryID, relID string) {
	k := endKey(tenantID, memoryID)
	if m.byEnd[k] == nil {
		m.byEnd[k] = make(map[string]bool)
	}
	m.byEnd[k][relID] = true
}

// CreateParentChild creates the two relationships spec.md requires for a
// hierarchical pair: parent->child (type=parent) and child->parent
// (type=child).
func (m *Manager) CreateParentChild(ctx context.Context, tenantID, parentID, childID string) (parentToChild, childToParent *model.Relationship, err error) {
	parentToChild, err = m.Create(ctx, tenantID, parentID, childID, model.RelParent, 1.0)
	if err != nil {
		return nil, nil, err
	}
	childToParent, err = m.Create(ctx, tenantID, childID, parentID, model.RelChild, 1.0)
	if err != nil {
		return nil, nil, err
	}
	return parentToChild, childToParent, nil
}

// CreateSiblings creates a symmetric pair of sibling relationships
// between a and b.
func (m *Manager) CreateSiblings(ctx context.Context, tenantID, a, b string) (aToB, bToA *model.Relationship, err error) {
	aToB, err = m.Create(ctx, tenantID, a, b, model.RelSibling, 1.0)
	if err != nil {
		return nil, nil, err
	}
	bToA, err = m.Create(ctx, tenantID, b, a, model.RelSibling, 1.0)
	if err != nil {
		return nil, nil, err
	}
	return aToB, bToA, nil
}

// Get returns a relationship by id.
func (m *Manager) Get(ctx context.Context, tenantID, id string) (*model.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel, ok := m.byID[id]
	if !ok || rel.TenantID != tenantID {
		return nil, fmt.Errorf("%w: relationship %s", errs.ErrNotFound, id)
	}
	return cloneRel(rel), nil
}

// Delete removes a relationship by id, unindexing both endpoints.
func (m *Manager) Delete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.byID[id]
	if !ok || rel.TenantID != tenantID {
		return fmt.Errorf("%w: relationship %s", errs.ErrNotFound, id)
	}
	delete(m.byID, id)
	delete(m.byEnd[endKey(tenantID, rel.SourceMemoryID)], id)
	delete(m.byEnd[endKey(tenantID, rel.TargetMemoryID)], id)
	return nil
}

// FindRelated returns the set of counterpart memory ids reachable from
// id via a single active relationship of one of the given types (all
// types if empty).
func (m *Manager) FindRelated(ctx context.Context, tenantID, id string, types []model.RelationshipType) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	allowed := typeSet(types)
	seen := make(map[string]bool)
	var related []string
	for relID := range m.byEnd[endKey(tenantID, id)] {
		rel := m.byID[relID]
		if rel == nil || !rel.IsActive {
			continue
		}
		if len(allowed) > 0 && !allowed[rel.Type] {
			continue
		}
		counterpart := rel.TargetMemoryID
		if counterpart == id {
			counterpart = rel.SourceMemoryID
		}
		if counterpart == id || seen[counterpart] {
			continue
		}
		seen[counterpart] = true
		related = append(related, counterpart)
	}
	sort.Strings(related)
	return related, nil
}

// BuildGraph performs a breadth-first traversal from start up to
// max_depth hops, restricted to the given relationship types (all types
// if empty) and to active relationships unless includeInactive is set.
// It returns the deduped edge set, the node list, enumerated simple
// paths from start to every reached node, and summary statistics.
func (m *Manager) BuildGraph(ctx context.Context, tenantID, start string, maxDepth int, types []model.RelationshipType, includeInactive bool) (*Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	allowed := typeSet(types)
	nodes := map[string]bool{start: true}
	edges := make(map[string]*model.Relationship)
	paths := map[string][][]string{start: {{start}}}

	type frontierEntry struct {
		id   string
		path []string
	}
	frontier := []frontierEntry{{id: start, path: []string{start}}}
	depth := 0

	for depth < maxDepth && len(frontier) > 0 {
		var next []frontierEntry
		for _, cur := range frontier {
			for relID := range m.byEnd[endKey(tenantID, cur.id)] {
				rel := m.byID[relID]
				if rel == nil {
					continue
				}
				if !rel.IsActive && !includeInactive {
					continue
				}
				if len(allowed) > 0 && !allowed[rel.Type] {
					continue
				}
				counterpart := rel.TargetMemoryID
				if counterpart == cur.id {
					counterpart = rel.SourceMemoryID
				}
				if counterpart == cur.id {
					continue
				}
				edges[rel.ID] = rel

				onPath := false
				for _, p := range cur.path {
					if p == counterpart {
						onPath = true
						break
					}
				}
				if onPath {
					continue
				}
				newPath := append(append([]string{}, cur.path...), counterpart)
				paths[counterpart] = append(paths[counterpart], newPath)

				if !nodes[counterpart] {
					nodes[counterpart] = true
					next = append(next, frontierEntry{id: counterpart, path: newPath})
				}
			}
		}
		frontier = next
		depth++
	}

	nodeList := make([]string, 0, len(nodes))
	for n := range nodes {
		nodeList = append(nodeList, n)
	}
	sort.Strings(nodeList)

	edgeList := make([]*model.Relationship, 0, len(edges))
	for _, e := range edges {
		edgeList = append(edgeList, cloneRel(e))
	}
	sort.Slice(edgeList, func(i, j int) bool { return edgeList[i].ID < edgeList[j].ID })

	avgConnectivity := 0.0
	if len(nodeList) > 0 {
		avgConnectivity = float64(len(edgeList)) / float64(len(nodeList))
	}

	return &Graph{
		Nodes: nodeList,
		Edges: edgeList,
		Paths: paths,
		Stats: GraphStats{
			TotalNodes:          len(nodeList),
			TotalEdges:          len(edgeList),
			MaxDepth:            depth,
			AverageConnectivity: avgConnectivity,
		},
	}, nil
}

// CleanupOrphaned deletes every relationship with at least one endpoint
// absent from validIDs, for the given tenant, counting each orphaned
// relationship exactly once.
func (m *Manager) CleanupOrphaned(ctx context.Context, tenantID string, validIDs []string) (int, error) {
	valid := make(map[string]bool, len(validIDs))
	for _, id := range validIDs {
		valid[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var orphaned []string
	for id, rel := range m.byID {
		if rel.TenantID != tenantID {
			continue
		}
		if !valid[rel.SourceMemoryID] || !valid[rel.TargetMemoryID] {
			orphaned = append(orphaned, id)
		}
	}

	for _, id := range orphaned {
		rel := m.byID[id]
		delete(m.byID, id)
		delete(m.byEnd[endKey(tenantID, rel.SourceMemoryID)], id)
		delete(m.byEnd[endKey(tenantID, rel.TargetMemoryID)], id)
	}

	if m.logger != nil && len(orphaned) > 0 {
		m.logger.Info(ctx, "cleaned up orphaned relationships")
	}
	return len(orphaned), nil
}

func typeSet(types []model.RelationshipType) map[model.RelationshipType]bool {
	if len(types) == 0 {
		return nil
	}
	out := make(map[model.RelationshipType]bool, len(types))
	for _, t := range types {
		out[t] = true
	}
	return out
}

func cloneRel(r *model.Relationship) *model.Relationship {
	c := *r
	return &c
}
