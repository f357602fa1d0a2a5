package vectorstore

import "github.com/memforge/memengine/internal/model"

// Query describes a similarity search against the vector store (spec.md §4.3).
type Query struct {
	// TenantID restricts the search to one tenant's memories. Required.
	TenantID string

	// AgentID optionally restricts to one agent's memories within the tenant.
	AgentID string

	// Type optionally restricts to one memory type.
	Type model.MemoryType

	// Tags optionally requires all listed tags to be present.
	Tags []string

	// Limit is the maximum number of results. Defaults to 10.
	Limit int

	// Threshold is the minimum similarity score to include. Defaults to 0.7.
	Threshold float32

	// TimeDecay applies an age-based score multiplier (spec.md §4.6) after
	// the threshold has filtered on the raw similarity score, then re-sorts.
	TimeDecay bool
}

// ApplyDefaults fills Limit/Threshold with spec.md defaults.
func (q *Query) ApplyDefaults() {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Threshold == 0 {
		q.Threshold = 0.7
	}
}

// Result is one ranked hit from Search.
type Result struct {
	Record model.Record
	Score  float32
}
