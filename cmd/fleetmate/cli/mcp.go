package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartgistics/fleetmate-sub000/internal/logger"
	fmcp "github.com/smartgistics/fleetmate-sub000/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the TruckMate lists
as tools for AI agents. Supports stdio (default) and streamable HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for desktop agents that launch fleetmate as a subprocess. Logs go to stderr.

In HTTP mode, the server listens on the specified port.`,
		Example: `  fleetmate mcp                            # stdio mode
  fleetmate mcp --transport http --port 3001  # streamable HTTP mode
  fleetmate mcp --demo                     # tools over the mock dataset`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	viper.BindPFlag("mcp.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	b, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	mcpSrv := fmcp.NewMCPServer(b, versionString(), logger.Named(log, "mcp"))

	switch cfg.MCP.Transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return mcpSrv.ServeHTTP(ctx, fmt.Sprintf(":%d", cfg.MCP.Port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
	}
}
