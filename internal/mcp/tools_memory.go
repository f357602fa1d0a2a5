package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memforge/memengine/internal/memoryengine"
	"github.com/memforge/memengine/internal/model"
)

type rememberInput struct {
	Content    string         `json:"content" jsonschema:"required,Content to remember"`
	TenantID   string         `json:"tenant_id" jsonschema:"required,Tenant identifier"`
	AgentID    string         `json:"agent_id,omitempty" jsonschema:"Agent storing the memory"`
	Type       string         `json:"type,omitempty" jsonschema:"Memory type override (fact, preference, procedure, task, emotion, personality, thread)"`
	Importance float64        `json:"importance,omitempty" jsonschema:"Importance override in [0,1]"`
	Tags       []string       `json:"tags,omitempty" jsonschema:"Tags to attach"`
	Context    map[string]any `json:"context,omitempty" jsonschema:"Free-form context payload"`
}

type rememberOutput struct {
	ID string `json:"id" jsonschema:"ID of the stored memory"`
}

type recallInput struct {
	Query     string   `json:"query" jsonschema:"required,Recall query text"`
	TenantID  string   `json:"tenant_id" jsonschema:"required,Tenant identifier"`
	AgentID   string   `json:"agent_id,omitempty" jsonschema:"Filter to memories owned by this agent"`
	Type      string   `json:"type,omitempty" jsonschema:"Filter by memory type"`
	Tags      []string `json:"tags,omitempty" jsonschema:"Filter by tags"`
	Limit     int      `json:"limit,omitempty" jsonschema:"Maximum results to return (default 10)"`
	Threshold float64  `json:"threshold,omitempty" jsonschema:"Minimum similarity score"`
	TimeDecay bool     `json:"time_decay,omitempty" jsonschema:"Apply recency decay to scores"`
}

type recallResultItem struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Type       string  `json:"type"`
	Score      float32 `json:"score"`
	Importance float64 `json:"importance"`
}

type recallOutput struct {
	Results []recallResultItem `json:"results"`
	Count   int                `json:"count"`
}

type forgetInput struct {
	Query     string  `json:"query" jsonschema:"required,Forget query text"`
	TenantID  string  `json:"tenant_id" jsonschema:"required,Tenant identifier"`
	AgentID   string  `json:"agent_id,omitempty" jsonschema:"Scope forgetting to this agent"`
	Threshold float64 `json:"threshold" jsonschema:"required,Similarity threshold above which matches are forgotten"`
}

type forgetOutput struct {
	ForgottenCount int `json:"forgotten_count"`
}

type contextInput struct {
	TenantID    string   `json:"tenant_id" jsonschema:"required,Tenant identifier"`
	AgentID     string   `json:"agent_id,omitempty" jsonschema:"Filter to this agent's memories"`
	Topic       string   `json:"topic,omitempty" jsonschema:"Topic to summarise context for"`
	Query       string   `json:"query,omitempty" jsonschema:"Query to rank relevant memories by"`
	MemoryTypes []string `json:"memory_types,omitempty" jsonschema:"Restrict to these memory types"`
	MaxResults  int      `json:"max_results,omitempty" jsonschema:"Maximum memories to include (default 10)"`
}

type contextOutput struct {
	Summary    string  `json:"context_summary"`
	TotalCount int     `json:"total_count"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) registerMemoryTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remember",
		Description: "Classify, score, embed, and persist a new memory",
	}, s.handleRemember)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall",
		Description: "Retrieve memories relevant to a query via similarity search",
	}, s.handleRecall)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "forget",
		Description: "Delete memories matching a query above a similarity threshold",
	}, s.handleForget)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "context",
		Description: "Assemble a ranked context summary for a topic or query",
	}, s.handleContext)
}

func (s *Server) handleRemember(ctx context.Context, req *mcp.CallToolRequest, args rememberInput) (*mcp.CallToolResult, rememberOutput, error) {
	opts := memoryengine.RememberOptions{Tags: args.Tags, Context: args.Context}
	if args.Type != "" {
		opts.Type = model.MemoryType(args.Type)
	}
	if args.Importance > 0 {
		opts.Importance = &args.Importance
	}

	id, err := s.engine.Remember(ctx, args.Content, args.TenantID, args.AgentID, opts)
	if err != nil {
		return nil, rememberOutput{}, fmt.Errorf("remember failed: %w", err)
	}

	result := rememberOutput{ID: id}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Remembered memory %s", id)}},
	}, result, nil
}

func (s *Server) handleRecall(ctx context.Context, req *mcp.CallToolRequest, args recallInput) (*mcp.CallToolResult, recallOutput, error) {
	opts := memoryengine.RecallOptions{
		AgentID:   args.AgentID,
		Tags:      args.Tags,
		Limit:     args.Limit,
		Threshold: float32(args.Threshold),
		TimeDecay: args.TimeDecay,
	}
	if args.Type != "" {
		opts.Type = model.MemoryType(args.Type)
	}

	results, err := s.engine.Recall(ctx, args.Query, args.TenantID, opts)
	if err != nil {
		return nil, recallOutput{}, fmt.Errorf("recall failed: %w", err)
	}

	items := make([]recallResultItem, len(results))
	for i, r := range results {
		items[i] = recallResultItem{
			ID:         r.Record.ID,
			Content:    r.Record.Content,
			Type:       string(r.Record.Type),
			Score:      r.Score,
			Importance: r.Record.Importance,
		}
	}

	output := recallOutput{Results: items, Count: len(items)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Recalled %d memories for query: %s", len(items), args.Query)}},
	}, output, nil
}

func (s *Server) handleForget(ctx context.Context, req *mcp.CallToolRequest, args forgetInput) (*mcp.CallToolResult, forgetOutput, error) {
	count, err := s.engine.Forget(ctx, args.Query, args.TenantID, args.AgentID, float32(args.Threshold))
	if err != nil {
		return nil, forgetOutput{}, fmt.Errorf("forget failed: %w", err)
	}

	output := forgetOutput{ForgottenCount: count}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Forgot %d memories", count)}},
	}, output, nil
}

func (s *Server) handleContext(ctx context.Context, req *mcp.CallToolRequest, args contextInput) (*mcp.CallToolResult, contextOutput, error) {
	types := make([]model.MemoryType, len(args.MemoryTypes))
	for i, t := range args.MemoryTypes {
		types[i] = model.MemoryType(t)
	}

	result, err := s.engine.Context(ctx, memoryengine.ContextRequest{
		TenantID:    args.TenantID,
		AgentID:     args.AgentID,
		Topic:       args.Topic,
		Query:       args.Query,
		MemoryTypes: types,
		MaxResults:  args.MaxResults,
	})
	if err != nil {
		return nil, contextOutput{}, fmt.Errorf("context assembly failed: %w", err)
	}

	output := contextOutput{
		Summary:    result.ContextSummary,
		TotalCount: result.TotalCount,
		Confidence: result.Confidence,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: result.ContextSummary}},
	}, output, nil
}
