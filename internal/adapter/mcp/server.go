// Package mcp exposes registered tools and the task manager over the Model
// Context Protocol (streamable HTTP transport).
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
)

// ServerConfig holds the MCP listener settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ToolSource lists the registered tools.
type ToolSource interface {
	List() []tool.Descriptor
}

// TaskService submits and polls background tasks.
type TaskService interface {
	Submit(ctx context.Context, input string) (*task.Task, error)
	Poll(ctx context.Context, id string) (*task.Task, error)
}

// ServerDeps are the collaborators the MCP tools call into. Nil fields
// disable the corresponding tools.
type ServerDeps struct {
	Tools ToolSource
	Tasks TaskService
}

// Server wraps an mcp-go server behind its own HTTP listener.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	http      *http.Server
}

// NewServer builds the MCP server and registers tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the authenticated streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}

// Start begins listening in the background. Listen errors are returned
// synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}

	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()

	slog.Info("mcp server listening", "addr", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
