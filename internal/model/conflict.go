package model

import "time"

// ConflictType is the 9-valued taxonomy from spec.md §4.10/§4.11.
type ConflictType string

const (
	ConflictData        ConflictType = "data_conflict"
	ConflictVersion      ConflictType = "version_conflict"
	ConflictPermission   ConflictType = "permission_conflict"
	ConflictTimestamp    ConflictType = "timestamp_conflict"
	ConflictStructure    ConflictType = "structure_conflict"
	ConflictSemantic     ConflictType = "semantic_conflict"
	ConflictResource     ConflictType = "resource_conflict"
	ConflictDependency   ConflictType = "dependency_conflict"
	ConflictConsistency  ConflictType = "consistency_conflict"
)

// ConflictStatus is the 7-valued lifecycle from spec.md §3.
type ConflictStatus string

const (
	StatusDetected        ConflictStatus = "detected"
	StatusAnalysing       ConflictStatus = "analysing"
	StatusResolving       ConflictStatus = "resolving"
	StatusPendingApproval ConflictStatus = "pending_approval"
	StatusResolved        ConflictStatus = "resolved"
	StatusEscalated       ConflictStatus = "escalated"
	StatusAbandoned       ConflictStatus = "abandoned"
)

// ConflictPriority is the 5-valued bucketisation from spec.md §4.11.
type ConflictPriority string

const (
	PriorityLow       ConflictPriority = "low"
	PriorityMedium    ConflictPriority = "medium"
	PriorityHigh      ConflictPriority = "high"
	PriorityCritical  ConflictPriority = "critical"
	PriorityEmergency ConflictPriority = "emergency"
)

// ResolutionStrategy is the 9-valued strategy taxonomy from spec.md §4.11.
type ResolutionStrategy string

const (
	StrategyAutomatic  ResolutionStrategy = "automatic"
	StrategyRuleBased  ResolutionStrategy = "rule_based"
	StrategyMLGuided   ResolutionStrategy = "ml_guided"
	StrategyConsensus  ResolutionStrategy = "consensus"
	StrategyPriority   ResolutionStrategy = "priority"
	StrategyMerge      ResolutionStrategy = "merge"
	StrategyTemporal   ResolutionStrategy = "temporal"
	StrategyManual     ResolutionStrategy = "manual"
	StrategyHybrid     ResolutionStrategy = "hybrid"
)

// ConflictingData is one agent's view of the disputed logical item.
type ConflictingData struct {
	AgentID    string         `json:"agent_id"`
	Data       map[string]any `json:"data"`
	Version    int64          `json:"version"`
	Timestamp  time.Time      `json:"timestamp"`
	Confidence float64        `json:"confidence"`
	Checksum   string         `json:"checksum"`
}

// ConflictMetadata carries priority-scoring context (spec.md §4.11).
type ConflictMetadata struct {
	Severity         string         `json:"severity,omitempty"`
	Complexity       string         `json:"complexity,omitempty"`
	ImpactRadius     int            `json:"impact_radius,omitempty"`
	FrequencyPattern string         `json:"frequency_pattern,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
}

// Approval tracks the approval workflow for a conflict requiring sign-off.
type Approval struct {
	Required  bool              `json:"required"`
	Approvers []string          `json:"approvers"`
	Approvals []ApprovalVote    `json:"approvals"`
	Threshold float64           `json:"threshold"`
}

// ApprovalVote is one approver's response.
type ApprovalVote struct {
	AgentID   string    `json:"agent_id"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Resolution is the outcome of applying a strategy.
type Resolution struct {
	ResolvedData       map[string]any       `json:"resolved_data"`
	Confidence         float64              `json:"confidence"`
	Reasoning          string               `json:"reasoning"`
	InvolvedStrategies []ResolutionStrategy `json:"involved_strategies"`
}

// Conflict is a detected divergence between ConflictingData (spec.md §3).
type Conflict struct {
	ID              string             `json:"id"`
	Type            ConflictType       `json:"type"`
	Status          ConflictStatus     `json:"status"`
	Priority        ConflictPriority   `json:"priority"`
	InvolvedAgents  []string           `json:"involved_agents"`
	ConflictingData []ConflictingData  `json:"conflicting_data"`
	DetectedAt      time.Time          `json:"detected_at"`
	ResolvedAt      *time.Time         `json:"resolved_at,omitempty"`
	Resolution      *Resolution        `json:"resolution,omitempty"`
	Strategy        ResolutionStrategy `json:"strategy,omitempty"`
	Metadata        ConflictMetadata   `json:"metadata"`
	ApprovalState   *Approval          `json:"approval_state,omitempty"`
}
