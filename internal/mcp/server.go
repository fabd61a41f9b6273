// Package mcp provides an MCP (Model Context Protocol) server for kuramap.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/kuramap/internal/config"
	"github.com/nvandessel/kuramap/internal/logging"
	"github.com/nvandessel/kuramap/internal/pathutil"
	"github.com/nvandessel/kuramap/internal/ratelimit"
	"github.com/nvandessel/kuramap/internal/store"
)

// Server wraps the MCP SDK server and provides kuramap tools.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	settings     *config.KuramapConfig
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	trace        *logging.TraceLogger
	logger       *slog.Logger
	dataDirs     []string
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "kuramap")
	Version string // Server version

	// Settings supplies engine defaults. Nil means config.Default().
	Settings *config.KuramapConfig

	// Store records runs. Nil opens the store named by Settings.
	Store store.RunStore

	// AuditDir receives audit.jsonl. Empty means ~/.kuramap.
	AuditDir string

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// DataDirs are the directories kuramap_train may read data_path from.
	// Nil means ~/.kuramap/data and the working directory.
	DataDirs []string
}

// NewServer creates a new MCP server with kuramap tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	runStore := cfg.Store
	if runStore == nil {
		s, err := settings.OpenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		runStore = s
	}

	auditDir := cfg.AuditDir
	if auditDir == "" {
		dir, err := store.GlobalKuramapPath()
		if err != nil {
			runStore.Close()
			return nil, err
		}
		auditDir = dir
	}

	dataDirs := cfg.DataDirs
	if dataDirs == nil {
		wd, _ := os.Getwd()
		dirs, err := pathutil.DefaultAllowedDataDirs(wd)
		if err != nil {
			runStore.Close()
			return nil, err
		}
		dataDirs = dirs
	}

	var trace *logging.TraceLogger
	if dir, err := settings.TraceDir(); err == nil {
		trace = logging.NewTraceLogger(dir, settings.Logging.Level)
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
		store:        runStore,
		settings:     settings,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(auditDir),
		trace:        trace,
		logger:       logger,
		dataDirs:     dataDirs,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	s.trace.Close()
	if err := s.auditLogger.Close(); err != nil {
		s.store.Close()
		return err
	}
	return s.store.Close()
}
