// Package worker consumes experiment requests from a queue, runs them, and
// persists their results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/sdrsweep/internal/logging"
	"github.com/nvandessel/sdrsweep/internal/metrics"
	"github.com/nvandessel/sdrsweep/internal/models"
	"github.com/nvandessel/sdrsweep/internal/sanitize"
	"github.com/nvandessel/sdrsweep/internal/store"
)

// DefaultPollInterval is the wait between empty receives.
const DefaultPollInterval = 500 * time.Millisecond

// Provider is the queue and blob store the worker talks to.
type Provider interface {
	// Receive returns the next request, or (nil, nil) if none is waiting.
	Receive(ctx context.Context) (*models.Request, error)

	// UploadOutput stores the report at path and returns its object name.
	UploadOutput(ctx context.Context, name, path string) (string, error)

	// Commit removes a processed request from the queue.
	Commit(ctx context.Context, req *models.Request) error

	// Release hands a request back for a later attempt.
	Release(ctx context.Context, req *models.Request) error
}

// Runner executes one experiment and writes its report to outputPath.
type Runner interface {
	Run(ctx context.Context, req models.Request, outputPath string) (*models.Result, error)
}

// Worker processes one request at a time until its context is cancelled.
type Worker struct {
	provider     Provider
	runner       Runner
	results      store.ResultStore
	outputDir    string
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Worker.
type Option func(*Worker)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithMetrics records failed runs in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// New creates a worker. Report files are written under outputDir.
func New(provider Provider, runner Runner, results store.ResultStore, outputDir string, opts ...Option) *Worker {
	w := &Worker{
		provider:     provider,
		runner:       runner,
		results:      results,
		outputDir:    outputDir,
		pollInterval: DefaultPollInterval,
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "output_dir", w.outputDir, "poll_interval", w.pollInterval)
	defer w.logger.Info("worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		handled, err := w.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("poll failed", "error", err)
		}
		if handled {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.pollInterval):
		}
	}
}

// Poll receives and processes at most one request. It reports whether a
// request was received.
func (w *Worker) Poll(ctx context.Context) (bool, error) {
	req, err := w.provider.Receive(ctx)
	if err != nil {
		return false, fmt.Errorf("receive: %w", err)
	}
	if req == nil {
		return false, nil
	}

	w.safeProcess(ctx, req)
	return true, nil
}

// safeProcess keeps a panicking experiment from stopping the loop.
func (w *Worker) safeProcess(ctx context.Context, req *models.Request) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("experiment panicked", "experiment_id", req.ExperimentID, "panic", r)
			w.metrics.RecordQueueMessage(metrics.OutcomeFailed)
			w.release(ctx, req)
		}
	}()
	w.process(ctx, req)
}

func (w *Worker) process(ctx context.Context, req *models.Request) {
	logger := w.logger.With("experiment_id", req.ExperimentID, "message_id", req.MessageID)
	logger.Info("received experiment request", "name", req.Name)

	outputPath := w.OutputPath(*req)
	res, err := w.runner.Run(ctx, *req, outputPath)
	if err != nil {
		logger.Error("experiment failed; leaving message for redelivery", "error", err)
		w.release(ctx, req)
		return
	}

	if name, err := w.provider.UploadOutput(ctx, req.Name, outputPath); err != nil {
		logger.Error("failed to upload output", "error", err, "path", outputPath)
	} else {
		res.OutputFile = name
	}

	if rowKey, err := w.results.Save(ctx, res); err != nil {
		logger.Error("failed to save result", "error", err)
	} else {
		logger.Info("result saved", "row_key", rowKey, "state", res.State, "sweeps", res.Sweeps)
	}

	if err := w.provider.Commit(ctx, req); err != nil {
		logger.Error("failed to commit message", "error", err)
		return
	}
	logger.Info("experiment request committed")
}

func (w *Worker) release(ctx context.Context, req *models.Request) {
	if ctx.Err() != nil {
		return
	}
	if err := w.provider.Release(ctx, req); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("failed to release message", "experiment_id", req.ExperimentID, "error", err)
	}
}

// OutputPath returns where the report for req is written.
func (w *Worker) OutputPath(req models.Request) string {
	id := req.ExperimentID
	if id == "" {
		id = req.MessageID
	}
	if id == "" {
		id = "output"
	}
	return filepath.Join(w.outputDir, fmt.Sprintf("%s-%s.txt", sanitize.Name(req.Name), sanitize.Name(id)))
}

// DefaultOutputDir is used when OUTPUT_FILE_PATH is not set.
func DefaultOutputDir() string {
	return filepath.Join(os.TempDir(), "sdrsweep")
}
