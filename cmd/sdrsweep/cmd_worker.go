package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/experiment"
	"github.com/nvandessel/sdrsweep/internal/metrics"
	"github.com/nvandessel/sdrsweep/internal/queue"
	"github.com/nvandessel/sdrsweep/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume experiments from the work queue",
		Long: `Run experiments from the NATS work queue until interrupted.

Each request is run to completion, its report uploaded to the output
bucket and its result row stored in .sdrsweep/results.db under --root.
Failed runs are returned to the queue for redelivery.

Examples:
  sdrsweep worker
  sdrsweep worker --metrics-addr :9090
  NATS_URL=nats://queue:4222 sdrsweep worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfg := loadConfig(cmd)
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr, _ = cmd.Flags().GetString("metrics-addr")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg)
			decisions := newDecisionLogger(root, cfg)
			defer decisions.Close()
			m := metrics.New()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if cfg.Metrics.Addr != "" {
				srv := startMetricsServer(cfg.Metrics.Addr, logger)
				defer func() {
					shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
					defer done()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			q, err := queue.Connect(cfg.QueueSettings(), queue.WithLogger(logger), queue.WithMetrics(m))
			if err != nil {
				return err
			}
			defer q.Close()

			rs, err := openResults(root)
			if err != nil {
				return err
			}
			defer rs.Close()

			runner := experiment.New(cfg.ExperimentSettings(), logger, decisions, experiment.WithMetrics(m))
			w := worker.New(q, runner, rs, cfg.Worker.OutputDir,
				worker.WithPollInterval(cfg.Worker.PollInterval),
				worker.WithLogger(logger),
				worker.WithMetrics(m))

			logger.Info("worker started",
				"queue", cfg.Queue.String(),
				"output_dir", cfg.Worker.OutputDir,
				"results", rs.Path())
			if err := w.Run(ctx); err != nil {
				return fmt.Errorf("worker stopped: %w", err)
			}
			logger.Info("worker stopped")
			return nil
		},
	}

	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (default from config)")

	return cmd
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
