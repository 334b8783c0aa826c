// Package mcp exposes the FleetMate entities to AI agents over the Model
// Context Protocol: discovery, paged queries, single record lookup and
// record creation, served over stdio or streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
)

// MCPServer wraps the mcp-go server with the FleetMate tool and resource
// registrations.
type MCPServer struct {
	backend backend.Backend
	logger  zerolog.Logger
	server  *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all FleetMate tools and
// resources. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(b backend.Backend, version string, logger zerolog.Logger) *MCPServer {
	s := &MCPServer{
		backend: b,
		logger:  logger,
	}

	mcpServer := server.NewMCPServer(
		"FleetMate TruckMate Lists",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	// Register tools (list entities, query, get, create)
	s.registerTools(mcpServer)

	// Register resources (entity catalog, entity schema templates)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// desktop agents that launch fleetmate as a subprocess. Logs must not go to
// stdout in this mode.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info().Str("backend", s.backend.Name()).Msg("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode on addr (e.g.
// ":3001") and shuts it down when ctx is done.
func (s *MCPServer) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str("backend", s.backend.Name()).Msg("MCP HTTP server starting")
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if err := httpServer.Shutdown(context.Background()); err != nil {
		return err
	}
	s.logger.Info().Msg("MCP HTTP server stopped")
	return nil
}

// readOnlyAnnotation marks tools that never change TruckMate data.
func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:   boolPtr(true),
		OpenWorldHint:  boolPtr(true),
		IdempotentHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		OpenWorldHint:   boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
