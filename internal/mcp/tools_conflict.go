package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memforge/memengine/internal/conflict"
	"github.com/memforge/memengine/internal/model"
)

type conflictingRecord struct {
	AgentID    string         `json:"agent_id" jsonschema:"required,Agent that produced this version of the data"`
	Data       map[string]any `json:"data" jsonschema:"required,The conflicting data payload"`
	Version    int64          `json:"version,omitempty" jsonschema:"Monotonic version of this payload"`
	Confidence float64        `json:"confidence,omitempty" jsonschema:"Confidence in this version in [0,1]"`
}

type detectConflictInput struct {
	A                      conflictingRecord `json:"a" jsonschema:"required,First conflicting version"`
	B                      conflictingRecord `json:"b" jsonschema:"required,Second conflicting version"`
	StructurallyDivergent  bool              `json:"structurally_divergent,omitempty" jsonschema:"Whether the two payloads have incompatible shapes"`
	Critical               bool              `json:"critical,omitempty" jsonschema:"Flag this conflict as operationally critical"`
	AgeDiffOverDay         bool              `json:"age_diff_over_day,omitempty" jsonschema:"Whether the two versions are more than a day apart"`
	AutoEnqueue            bool              `json:"auto_enqueue,omitempty" jsonschema:"Enqueue the conflict for resolution immediately"`
}

type detectConflictOutput struct {
	ConflictID string `json:"conflict_id"`
	Type       string `json:"type"`
	Priority   string `json:"priority"`
	Enqueued   bool   `json:"enqueued"`
}

type resolveConflictInput struct {
	ConflictID string `json:"conflict_id" jsonschema:"required,Id of the conflict to resolve"`
}

type resolveConflictOutput struct {
	Status     string  `json:"status"`
	Strategy   string  `json:"strategy,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type approveConflictInput struct {
	ConflictID string `json:"conflict_id" jsonschema:"required,Id of the conflict awaiting approval"`
	AgentID    string `json:"agent_id" jsonschema:"required,Approving agent id"`
	Approved   bool   `json:"approved" jsonschema:"required,Whether this agent approves the pending resolution"`
	Reason     string `json:"reason,omitempty" jsonschema:"Reason for the vote"`
}

type approveConflictOutput struct {
	Status string `json:"status"`
}

type getConflictInput struct {
	ConflictID string `json:"conflict_id" jsonschema:"required,Id of the conflict to look up"`
}

type getConflictOutput struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Type     string `json:"type"`
}

func (s *Server) registerConflictTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "detect_conflict",
		Description: "Register a conflict between two competing versions of memory data, scoring its type and priority",
	}, s.handleDetectConflict)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "resolve_conflict",
		Description: "Run resolution strategies against a registered conflict",
	}, s.handleResolveConflict)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "approve_conflict",
		Description: "Cast an approval vote on a conflict's pending resolution",
	}, s.handleApproveConflict)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_conflict",
		Description: "Fetch the current status, type, and priority of a conflict",
	}, s.handleGetConflict)
}

func toConflictingData(r conflictingRecord) model.ConflictingData {
	return model.ConflictingData{
		AgentID:    r.AgentID,
		Data:       r.Data,
		Version:    r.Version,
		Confidence: r.Confidence,
	}
}

func (s *Server) handleDetectConflict(ctx context.Context, req *mcp.CallToolRequest, args detectConflictInput) (*mcp.CallToolResult, detectConflictOutput, error) {
	scoreIn := conflict.ScoreInputs{
		ConfidenceDiff: args.A.Confidence - args.B.Confidence,
		AgeDiffOverDay: args.AgeDiffOverDay,
		Critical:       args.Critical,
	}
	if scoreIn.ConfidenceDiff < 0 {
		scoreIn.ConfidenceDiff = -scoreIn.ConfidenceDiff
	}

	c, enqueued, err := s.conflicts.DetectAndRegister(ctx, toConflictingData(args.A), toConflictingData(args.B), args.StructurallyDivergent, scoreIn, args.AutoEnqueue)
	if err != nil {
		return nil, detectConflictOutput{}, fmt.Errorf("detect_conflict failed: %w", err)
	}
	if c == nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "No conflict detected between the two versions"}},
		}, detectConflictOutput{}, nil
	}

	output := detectConflictOutput{
		ConflictID: c.ID,
		Type:       string(c.Type),
		Priority:   string(c.Priority),
		Enqueued:   enqueued,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Registered %s conflict %s at priority %s", c.Type, c.ID, c.Priority)}},
	}, output, nil
}

func (s *Server) handleResolveConflict(ctx context.Context, req *mcp.CallToolRequest, args resolveConflictInput) (*mcp.CallToolResult, resolveConflictOutput, error) {
	c, err := s.conflicts.Resolve(ctx, args.ConflictID)
	if err != nil {
		return nil, resolveConflictOutput{}, fmt.Errorf("resolve_conflict failed: %w", err)
	}

	output := resolveConflictOutput{Status: string(c.Status)}
	if c.Resolution != nil {
		output.Strategy = string(c.Strategy)
		output.Confidence = c.Resolution.Confidence
		output.Reasoning = c.Resolution.Reasoning
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Conflict %s is now %s", args.ConflictID, c.Status)}},
	}, output, nil
}

func (s *Server) handleApproveConflict(ctx context.Context, req *mcp.CallToolRequest, args approveConflictInput) (*mcp.CallToolResult, approveConflictOutput, error) {
	c, err := s.conflicts.Approve(ctx, args.ConflictID, args.AgentID, args.Approved, args.Reason)
	if err != nil {
		return nil, approveConflictOutput{}, fmt.Errorf("approve_conflict failed: %w", err)
	}

	output := approveConflictOutput{Status: string(c.Status)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Conflict %s is now %s", args.ConflictID, c.Status)}},
	}, output, nil
}

func (s *Server) handleGetConflict(ctx context.Context, req *mcp.CallToolRequest, args getConflictInput) (*mcp.CallToolResult, getConflictOutput, error) {
	c, err := s.conflicts.Get(args.ConflictID)
	if err != nil {
		return nil, getConflictOutput{}, fmt.Errorf("get_conflict failed: %w", err)
	}

	output := getConflictOutput{Status: string(c.Status), Priority: string(c.Priority), Type: string(c.Type)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Conflict %s: %s/%s", args.ConflictID, c.Status, c.Priority)}},
	}, output, nil
}
