// Package server exposes storefront operations as MCP tools so agents can
// inspect VMs, quote prices and create payments.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/lnvps/lnvps-go/backend"
)

// Server wraps an MCP server with the storefront tools registered.
type Server struct {
	mcpServer *mcpserver.MCPServer
	api       backend.Interface
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server backed by api.
func NewServer(name, version string, api backend.Interface, opts ...Option) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(name, version),
		api:       api,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// Start serves the MCP endpoint on addr.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting mcp server", "addr", addr)
	if err := http.ListenAndServe(addr, s.Handler()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// ServeStdio serves the tools over stdin and stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
