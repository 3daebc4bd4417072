package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/sdrsweep/internal/experiment"
	"github.com/nvandessel/sdrsweep/internal/logging"
	"github.com/nvandessel/sdrsweep/internal/ratelimit"
	"github.com/nvandessel/sdrsweep/internal/store"
)

// Server wraps the MCP SDK server and provides sdrsweep tools.
type Server struct {
	server       *sdk.Server
	results      store.ResultStore
	root         string
	outputDir    string
	experiment   experiment.Config
	logger       *slog.Logger
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger

	closeOnce sync.Once
	closeErr  error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "sdrsweep")
	Version string // Server version
	Root    string // Project root directory

	// OutputDir receives report files. Defaults to <Root>/.sdrsweep/outputs.
	OutputDir string

	// Experiment holds the defaults for sdrsweep_run.
	Experiment experiment.Config

	// Results overrides the SQLite store under Root.
	Results store.ResultStore

	Logger *slog.Logger
}

// NewServer creates a new MCP server with sdrsweep tools.
func NewServer(cfg *Config) (*Server, error) {
	results := cfg.Results
	if results == nil {
		rs, err := store.NewSQLiteResultStore(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to open results store: %w", err)
		}
		results = rs
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(store.LocalPath(cfg.Root), "outputs")
	}

	expCfg := cfg.Experiment
	if expCfg.WindowLength == 0 {
		expCfg = experiment.DefaultConfig()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:       mcpServer,
		results:      results,
		root:         cfg.Root,
		outputDir:    outputDir,
		experiment:   expCfg,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(cfg.Root),
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

// Close closes the results store and the audit log. It is safe to call more
// than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		auditErr := s.auditLogger.Close()
		s.closeErr = s.results.Close()
		if s.closeErr == nil {
			s.closeErr = auditErr
		}
	})
	return s.closeErr
}
