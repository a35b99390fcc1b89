package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	connectionsURI    = "structsync://connections"
	snapshotURIPrefix = "structsync://snapshot/"
)

// registerResources adds read-only context documents: the profile list and
// a live schema snapshot per profile.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			connectionsURI,
			"Saved Connections",
			mcp.WithResourceDescription("Connection profiles available for comparison, without credentials."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleConnectionsResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			snapshotURIPrefix+"{connection}",
			"Schema Snapshot",
			mcp.WithTemplateDescription(
				"Tables of a connection's default database with columns, indexes, "+
					"foreign keys and unique constraints.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleSnapshotResource,
	)
}

func (s *MCPServer) handleConnectionsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	result, err := s.handleListConnections(ctx, mcp.CallToolRequest{})
	if err != nil {
		return nil, err
	}
	text := resultText(result)
	if result.IsError {
		return nil, fmt.Errorf("%s", text)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      connectionsURI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}

func (s *MCPServer) handleSnapshotResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	ref := strings.TrimPrefix(uri, snapshotURIPrefix)
	if ref == "" || ref == uri {
		return nil, fmt.Errorf("invalid snapshot URI %q: expected %s{connection}", uri, snapshotURIPrefix)
	}

	snap, err := s.svc.Snapshot(ctx, ref, "")
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", ref, err)
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// resultText returns the text of the first text content in r.
func resultText(r *mcp.CallToolResult) string {
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
