// Package mcp exposes the memory engine's library surface as MCP tools.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls internal packages directly, the same shape the teacher's
// internal/mcp package uses to front its own services — a thin adapter
// between typed tool input/output structs and the underlying Go APIs,
// with no transport-specific business logic of its own.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memforge/memengine/internal/conflict"
	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/memoryengine"
	"github.com/memforge/memengine/internal/relationship"
	"github.com/memforge/memengine/internal/sharing"
)

// Server is a thin MCP server that calls the memory engine's components
// directly, mirroring the teacher's internal/mcp.Server.
type Server struct {
	mcp *mcp.Server

	engine        *memoryengine.Engine
	relationships *relationship.Manager
	shares        *sharing.Manager
	conflicts     *conflict.Resolver
	logger        *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name.
	Name string

	// Version is the server version.
	Version string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{Name: "memengined", Version: "1.0.0"}
}

// NewServer creates a new MCP server fronting the given memory-engine
// components. engine and logger are required; relationships, shares and
// conflicts are optional — their tools are simply not registered when nil.
func NewServer(cfg *Config, engine *memoryengine.Engine, relationships *relationship.Manager, shares *sharing.Manager, conflicts *conflict.Resolver, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if engine == nil {
		return nil, fmt.Errorf("memory engine is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:           mcpServer,
		engine:        engine,
		relationships: relationships,
		shares:        shares,
		conflicts:     conflicts,
		logger:        logger,
	}

	s.registerMemoryTools()
	if relationships != nil {
		s.registerRelationshipTools()
	}
	if shares != nil {
		s.registerSharingTools()
	}
	if conflicts != nil {
		s.registerConflictTools()
	}

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
