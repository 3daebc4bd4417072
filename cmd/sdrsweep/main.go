package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/config"
	"github.com/nvandessel/sdrsweep/internal/logging"
	"github.com/nvandessel/sdrsweep/internal/store"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sdrsweep",
		Short: "Stability sweeps for spatial-learning experiments",
		Long: `sdrsweep drives a spatial pooler through repeated sweeps over a range
of scalar inputs until a stability oracle reports a long enough run of
stable sweeps, then records the stable window.

Experiments can run locally, be submitted to a NATS work queue, or be
consumed from that queue by a long-running worker.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSubmitCmd(),
		newWorkerCmd(),
		newResultsCmd(),
		newOutputsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadConfig loads ~/.sdrsweep/config.yaml with env overrides, falling back
// to defaults when the file is unreadable.
func loadConfig(cmd *cobra.Command) *config.SdrsweepConfig {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to load config, using defaults: %v\n", err)
		return config.Default()
	}
	return cfg
}

func newLogger(cfg *config.SdrsweepConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// newDecisionLogger opens .sdrsweep/decisions.jsonl under root when the
// configured level asks for it.
func newDecisionLogger(root string, cfg *config.SdrsweepConfig) *logging.DecisionLogger {
	return logging.NewDecisionLogger(store.LocalPath(root), cfg.Logging.Level)
}

func openResults(root string) (*store.SQLiteResultStore, error) {
	rs, err := store.NewSQLiteResultStore(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	return rs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
