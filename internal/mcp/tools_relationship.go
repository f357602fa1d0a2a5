package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memforge/memengine/internal/model"
)

type linkMemoriesInput struct {
	TenantID string  `json:"tenant_id" jsonschema:"required,Tenant identifier"`
	SourceID string  `json:"source_id" jsonschema:"required,Source memory id"`
	TargetID string  `json:"target_id" jsonschema:"required,Target memory id"`
	Type     string  `json:"type" jsonschema:"required,Relationship type (parent, child, sibling, references, conflicts, supports)"`
	Strength float64 `json:"strength,omitempty" jsonschema:"Relationship strength in [0,1], default 1.0"`
}

type linkMemoriesOutput struct {
	RelationshipID string `json:"relationship_id"`
}

type relatedMemoriesInput struct {
	TenantID string   `json:"tenant_id" jsonschema:"required,Tenant identifier"`
	MemoryID string   `json:"memory_id" jsonschema:"required,Memory id to find relations for"`
	Types    []string `json:"types,omitempty" jsonschema:"Restrict to these relationship types"`
}

type relatedMemoriesOutput struct {
	RelatedIDs []string `json:"related_ids"`
}

func (s *Server) registerRelationshipTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "link_memories",
		Description: "Create a typed relationship edge between two memories",
	}, s.handleLinkMemories)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "related_memories",
		Description: "Find memory ids directly related to a given memory, optionally filtered by type",
	}, s.handleRelatedMemories)
}

func (s *Server) handleLinkMemories(ctx context.Context, req *mcp.CallToolRequest, args linkMemoriesInput) (*mcp.CallToolResult, linkMemoriesOutput, error) {
	rel, err := s.relationships.Create(ctx, args.TenantID, args.SourceID, args.TargetID, model.RelationshipType(args.Type), args.Strength)
	if err != nil {
		return nil, linkMemoriesOutput{}, fmt.Errorf("link_memories failed: %w", err)
	}

	output := linkMemoriesOutput{RelationshipID: rel.ID}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Linked %s -> %s as %s", args.SourceID, args.TargetID, args.Type)}},
	}, output, nil
}

func (s *Server) handleRelatedMemories(ctx context.Context, req *mcp.CallToolRequest, args relatedMemoriesInput) (*mcp.CallToolResult, relatedMemoriesOutput, error) {
	types := make([]model.RelationshipType, len(args.Types))
	for i, t := range args.Types {
		types[i] = model.RelationshipType(t)
	}

	related, err := s.relationships.FindRelated(ctx, args.TenantID, args.MemoryID, types)
	if err != nil {
		return nil, relatedMemoriesOutput{}, fmt.Errorf("related_memories failed: %w", err)
	}

	output := relatedMemoriesOutput{RelatedIDs: related}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d related memories", len(related))}},
	}, output, nil
}
