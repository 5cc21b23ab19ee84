// Package mcp provides an MCP (Model Context Protocol) server for brunel.
// It lets an agent run the figure 8 scenarios and query stored runs.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/brunel/internal/config"
	"github.com/nvandessel/brunel/internal/logging"
	"github.com/nvandessel/brunel/internal/ratelimit"
	"github.com/nvandessel/brunel/internal/store"
)

// Server wraps the MCP SDK server and provides brunel-specific tools.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	base         *config.BrunelConfig
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	// runMu serializes simulations; each one may take every core.
	runMu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "brunel")
	Version string // Server version
	Root    string // Directory receiving .brunel/audit.jsonl

	// Base supplies model and network defaults. Nil uses config.Default().
	Base *config.BrunelConfig
	// Store persists runs. Nil opens the SQLite store under Base.Store.Dir.
	Store store.RunStore
	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with brunel tools.
func NewServer(cfg *Config) (*Server, error) {
	base := cfg.Base
	if base == nil {
		base = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	runs := cfg.Store
	if runs == nil {
		sqlite, err := store.OpenDefault(base.Store.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		runs = sqlite
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        runs,
		base:         base,
		logger:       logger,
		auditLogger:  NewAuditLogger(cfg.Root),
		toolLimiters: ratelimit.NewToolLimiters(),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	s.auditLogger.Close()
	return s.store.Close()
}
