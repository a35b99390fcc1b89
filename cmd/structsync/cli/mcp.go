package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	smcp "github.com/structsync/structsync/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport    string
		port         int
		allowExecute bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the saved
connections, schema comparison and SQL preview as tools for AI agents.
Supports stdio (default) and HTTP transports.

The execute tool, which runs SQL on a target, is only offered with
--allow-execute or mcp.allow_execute in the config file.`,
		Example: `  structsync mcp                             # stdio mode
  structsync mcp --transport http --port 3001  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("transport") && a.cfg.MCP.Transport != "" {
				transport = a.cfg.MCP.Transport
			}
			allow := allowExecute || a.cfg.MCP.AllowExecute

			mcpSrv := smcp.NewMCPServer(a.svc, a.logger, allow, versionString())
			switch transport {
			case "stdio":
				return mcpSrv.ServeStdio()
			case "http":
				return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
			default:
				return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")
	cmd.Flags().BoolVar(&allowExecute, "allow-execute", false, "Offer the execute tool")

	return cmd
}
