package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/service"
)

func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery -----

	srv.AddTool(
		mcp.NewTool("list_connections",
			mcp.WithDescription(
				"List the saved connection profiles. Returns each profile's id, name, "+
					"database type, host and default database. Use this first to find "+
					"the names to pass to the other tools.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListConnections,
	)

	srv.AddTool(
		mcp.NewTool("list_databases",
			mcp.WithDescription("List the user databases reachable through a saved connection."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("connection",
				mcp.Required(),
				mcp.Description("Connection profile name or id"),
			),
		),
		s.handleListDatabases,
	)

	// ----- Comparison -----

	compareOpts := append(compareParams(),
		mcp.WithDescription(
			"Compare the schema of a source connection against a target connection. "+
				"Returns every difference with the SQL that would make the target "+
				"match the source. Nothing is executed.",
		),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
	)
	srv.AddTool(mcp.NewTool("compare", compareOpts...), s.handleCompare)

	previewOpts := append(compareParams(),
		mcp.WithDescription(
			"Compare two connections and return only the synchronization script, "+
				"one statement group per difference. Pass exclude to drop "+
				"differences by id.",
		),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
		mcp.WithArray("exclude",
			mcp.Description("Difference ids to leave out of the script"),
			mcp.WithStringItems(),
		),
	)
	srv.AddTool(mcp.NewTool("preview_sql", previewOpts...), s.handlePreviewSQL)

	// ----- Execution -----

	if s.allowExecute {
		srv.AddTool(
			mcp.NewTool("execute",
				mcp.WithDescription(
					"Execute SQL statements against a target connection in order. "+
						"Stops at the first failing statement; statements before it stay "+
						"applied. Review the output of preview_sql before calling this.",
				),
				mcp.WithToolAnnotation(destructiveAnnotation()),
				mcp.WithString("target",
					mcp.Required(),
					mcp.Description("Target connection profile name or id"),
				),
				mcp.WithArray("statements",
					mcp.Required(),
					mcp.Description("SQL statements to run"),
					mcp.WithStringItems(),
				),
				mcp.WithString("target_database",
					mcp.Description("Database to use instead of the profile default"),
				),
			),
			s.handleExecute,
		)
	}
}

func compareParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Source connection profile name or id (the desired schema)"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Target connection profile name or id (the schema to change)"),
		),
		mcp.WithString("source_database",
			mcp.Description("Database to read on the source instead of the profile default"),
		),
		mcp.WithString("target_database",
			mcp.Description("Database to read on the target instead of the profile default"),
		),
	}
}

// connectionInfo is the public view of a profile. Credentials never leave
// the process through MCP.
type connectionInfo struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	DbType   model.DbType `json:"db_type"`
	Host     string       `json:"host"`
	Port     uint16       `json:"port"`
	Database string       `json:"database,omitempty"`
	SSH      bool         `json:"ssh"`
	SSL      bool         `json:"ssl"`
}

func (s *MCPServer) handleListConnections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conns, err := s.svc.ListConnections(ctx)
	if err != nil {
		return serviceError(err)
	}
	items := make([]connectionInfo, len(conns))
	for i, c := range conns {
		items[i] = connectionInfo{
			ID:       c.ID,
			Name:     c.Name,
			DbType:   c.DbType,
			Host:     c.Host,
			Port:     c.Port,
			Database: c.Database,
			SSH:      c.SSH != nil && c.SSH.Enabled,
			SSL:      c.SSL != nil && c.SSL.Enabled,
		}
	}
	return successJSON(items)
}

func (s *MCPServer) handleListDatabases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireString(request, "connection")
	if err != nil {
		return toolError("%v", err)
	}
	dbs, err := s.svc.ListDatabases(ctx, ref)
	if err != nil {
		return serviceError(err)
	}
	return successJSON(map[string]interface{}{"connection": ref, "databases": dbs})
}

func (s *MCPServer) handleCompare(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.compare(ctx, request)
	if err != nil {
		return serviceError(err)
	}
	return successJSON(result)
}

func (s *MCPServer) handlePreviewSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.compare(ctx, request)
	if err != nil {
		return serviceError(err)
	}
	result.Deselect(optionalStringSlice(request, "exclude")...)
	script := result.Script()
	if script == "" {
		return mcp.NewToolResultText("-- schemas are in sync\n"), nil
	}
	return mcp.NewToolResultText(script), nil
}

func (s *MCPServer) compare(ctx context.Context, request mcp.CallToolRequest) (*model.DiffResult, error) {
	source, err := requireString(request, "source")
	if err != nil {
		return nil, &service.Error{Kind: service.KindValidation, Message: err.Error()}
	}
	target, err := requireString(request, "target")
	if err != nil {
		return nil, &service.Error{Kind: service.KindValidation, Message: err.Error()}
	}
	s.logger.Info("mcp compare", "source", source, "target", target)
	return s.svc.Compare(ctx, service.CompareRequest{
		SourceID: source,
		TargetID: target,
		SourceDB: optionalString(request, "source_database"),
		TargetDB: optionalString(request, "target_database"),
	})
}

func (s *MCPServer) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := requireString(request, "target")
	if err != nil {
		return toolError("%v", err)
	}
	stmts := optionalStringSlice(request, "statements")
	if len(stmts) == 0 {
		return toolError("statements must be a non-empty list of SQL strings")
	}

	s.logger.Warn("mcp execute", "target", target, "statements", len(stmts))
	n, err := s.svc.Execute(ctx, service.ExecuteRequest{
		TargetID:   target,
		TargetDB:   optionalString(request, "target_database"),
		Statements: stmts,
	})
	if err != nil {
		return serviceError(err)
	}
	return successJSON(map[string]interface{}{"success": true, "executed": n})
}
