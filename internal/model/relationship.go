package model

import "time"

// RelationshipType is the edge label in the per-tenant memory graph.
type RelationshipType string

const (
	RelParent     RelationshipType = "parent"
	RelChild      RelationshipType = "child"
	RelSibling    RelationshipType = "sibling"
	RelReferences RelationshipType = "references"
	RelConflicts  RelationshipType = "conflicts"
	RelSupports   RelationshipType = "supports"
)

// Relationship is a directed edge between two memories (spec.md §3).
type Relationship struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	SourceMemoryID   string           `json:"source_memory_id"`
	TargetMemoryID   string           `json:"target_memory_id"`
	Type             RelationshipType `json:"type"`
	Strength         float64          `json:"strength"`
	IsActive         bool             `json:"is_active"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
