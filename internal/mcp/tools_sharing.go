package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memforge/memengine/internal/model"
	"github.com/memforge/memengine/internal/sharing"
)

type shareMemoryInput struct {
	TenantID   string   `json:"tenant_id" jsonschema:"required,Tenant identifier"`
	AgentID    string   `json:"agent_id" jsonschema:"required,Owning agent id"`
	MemoryID   string   `json:"memory_id" jsonschema:"required,Id of the memory to share"`
	Content    string   `json:"content" jsonschema:"required,Content of the memory being shared"`
	Type       string   `json:"type,omitempty" jsonschema:"Memory type"`
	Targets    []string `json:"targets" jsonschema:"required,Agent ids to grant read access to"`
	WriteAlso  []string `json:"write_also,omitempty" jsonschema:"Agent ids additionally granted write access"`
	Public     bool     `json:"public,omitempty" jsonschema:"Make the share publicly readable"`
}

type shareMemoryOutput struct {
	ShareID    string `json:"share_id"`
	SyncStatus string `json:"sync_status"`
}

type accessSharedMemoryInput struct {
	ShareID string `json:"share_id" jsonschema:"required,Share id to access"`
	AgentID string `json:"agent_id" jsonschema:"required,Requesting agent id"`
	Action  string `json:"action" jsonschema:"required,One of read write delete"`
}

type accessSharedMemoryOutput struct {
	Content string `json:"content"`
	Allowed bool   `json:"allowed"`
}

type querySharedMemoriesInput struct {
	Agents           []string `json:"agents,omitempty" jsonschema:"Restrict to shares owned by or targeting these agents"`
	ContentSubstring string   `json:"content_substring,omitempty" jsonschema:"Require this substring in content"`
	Tags             []string `json:"tags,omitempty" jsonschema:"Restrict to shares carrying any of these tags"`
	SortBy           string   `json:"sort_by,omitempty" jsonschema:"timestamp, relevance, access_count, or version"`
}

type querySharedMemoriesOutput struct {
	ShareIDs []string `json:"share_ids"`
	Count    int      `json:"count"`
}

func (s *Server) registerSharingTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "share_memory",
		Description: "Share a memory with one or more agents under read/write permissions",
	}, s.handleShareMemory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "access_shared_memory",
		Description: "Request read, write, or delete access to a shared memory",
	}, s.handleAccessSharedMemory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_shared_memories",
		Description: "Search and rank shared memories by agent, tags, content, or relevance",
	}, s.handleQuerySharedMemories)
}

func (s *Server) handleShareMemory(ctx context.Context, req *mcp.CallToolRequest, args shareMemoryInput) (*mcp.CallToolResult, shareMemoryOutput, error) {
	rec := &model.Record{
		ID:      args.MemoryID,
		AgentID: args.AgentID,
		Content: args.Content,
	}
	if args.Type != "" {
		rec.Type = model.MemoryType(args.Type)
	}

	partial := model.NewPermissions()
	for _, w := range args.WriteAlso {
		partial.Write[w] = true
	}
	partial.Public = args.Public

	shared, err := s.shares.Share(ctx, rec, args.Targets, partial)
	if err != nil {
		return nil, shareMemoryOutput{}, fmt.Errorf("share_memory failed: %w", err)
	}

	output := shareMemoryOutput{ShareID: shared.ShareID, SyncStatus: string(shared.SyncStatus)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Shared memory as %s (%s)", shared.ShareID, shared.SyncStatus)}},
	}, output, nil
}

func (s *Server) handleAccessSharedMemory(ctx context.Context, req *mcp.CallToolRequest, args accessSharedMemoryInput) (*mcp.CallToolResult, accessSharedMemoryOutput, error) {
	shared, err := s.shares.Access(ctx, args.ShareID, args.AgentID, model.AccessAction(args.Action))
	if err != nil {
		return nil, accessSharedMemoryOutput{Allowed: false}, fmt.Errorf("access_shared_memory failed: %w", err)
	}

	output := accessSharedMemoryOutput{Content: shared.Content, Allowed: true}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: shared.Content}},
	}, output, nil
}

func (s *Server) handleQuerySharedMemories(ctx context.Context, req *mcp.CallToolRequest, args querySharedMemoriesInput) (*mcp.CallToolResult, querySharedMemoriesOutput, error) {
	filter := sharing.QueryFilter{
		Agents:           args.Agents,
		Tags:             args.Tags,
		ContentSubstring: args.ContentSubstring,
		SortBy:           args.SortBy,
	}
	shares := s.shares.Query(ctx, filter)

	ids := make([]string, len(shares))
	for i, sm := range shares {
		ids[i] = sm.ShareID
	}

	output := querySharedMemoriesOutput{ShareIDs: ids, Count: len(ids)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d shared memories", len(ids))}},
	}, output, nil
}
