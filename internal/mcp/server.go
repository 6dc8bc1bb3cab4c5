// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the hexmetrics analysis pipeline as tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/hexmetrics/internal/config"
	"github.com/nvandessel/hexmetrics/internal/logging"
	"github.com/nvandessel/hexmetrics/internal/pathutil"
	"github.com/nvandessel/hexmetrics/internal/ratelimit"
)

// Server wraps the MCP SDK server.
type Server struct {
	server      *sdk.Server
	settings    *config.Config
	roots       []string
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	diagnostics *logging.DiagnosticLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "hexmetrics")
	Version string // Server version
	Root    string // Working directory; always a data root

	// DataDirs are further directories tools may read from and write to.
	DataDirs []string

	// Settings supplies the legend, geometry, token and worker defaults.
	Settings *config.Config

	// Logger and Diagnostics are owned by the caller.
	Logger      *slog.Logger
	Diagnostics *logging.DiagnosticLogger
}

// NewServer creates a new MCP server with the hexmetrics tools.
func NewServer(cfg *Config) (*Server, error) {
	roots, err := pathutil.DataRoots(cfg.Root, cfg.DataDirs...)
	if err != nil {
		return nil, fmt.Errorf("failed to determine data roots: %w", err)
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{})

	s := &Server{
		server:      mcpServer,
		settings:    settings,
		roots:       roots,
		limiter:     ratelimit.New(toolRates),
		logger:      cfg.Logger,
		diagnostics: cfg.Diagnostics,
	}

	s.registerTools()
	s.registerResources()

	if s.logger != nil {
		s.logger.Debug("mcp server ready", "roots", len(roots))
	}
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}
