package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/service"
	"github.com/structsync/structsync/internal/snapshot"
)

// Service is the part of the service layer the MCP tools drive.
type Service interface {
	ListConnections(ctx context.Context) ([]model.Connection, error)
	ListDatabases(ctx context.Context, ref string) ([]string, error)
	Compare(ctx context.Context, req service.CompareRequest) (*model.DiffResult, error)
	Execute(ctx context.Context, req service.ExecuteRequest) (int, error)
	Snapshot(ctx context.Context, ref, database string) (*snapshot.Snapshot, error)
}

// MCPServer exposes saved connections and schema comparison as MCP tools so
// agents can inspect drift and preview the SQL that fixes it.
type MCPServer struct {
	svc          Service
	logger       *slog.Logger
	allowExecute bool
	server       *server.MCPServer
}

// NewMCPServer registers every tool and resource. The execute tool is only
// registered when allowExecute is set.
func NewMCPServer(svc Service, logger *slog.Logger, allowExecute bool, version string) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MCPServer{
		svc:          svc,
		logger:       logger,
		allowExecute: allowExecute,
	}

	mcpServer := server.NewMCPServer(
		"structsync",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(
			"Compare database schemas between saved connection profiles. "+
				"Call list_connections first, then compare or preview_sql.",
		),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go server.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode", "execute", s.allowExecute)
	return server.ServeStdio(s.server)
}

// ServeHTTP serves MCP in Streamable HTTP mode on addr.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr, "execute", s.allowExecute)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:  boolPtr(true),
		OpenWorldHint: boolPtr(true),
	}
}

func destructiveAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
		OpenWorldHint:   boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
