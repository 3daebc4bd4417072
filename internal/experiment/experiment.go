// Package experiment runs one spatial-learning request end to end: it builds
// the reference learner and oracle from the request, drives a convergence run
// with the output file as its diagnostic sink and writes the final report.
package experiment

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/sdrsweep/internal/convergence"
	"github.com/nvandessel/sdrsweep/internal/logging"
	"github.com/nvandessel/sdrsweep/internal/metrics"
	"github.com/nvandessel/sdrsweep/internal/models"
	"github.com/nvandessel/sdrsweep/internal/pooler"
	"github.com/nvandessel/sdrsweep/internal/report"
)

// StateFailed labels runs that returned an error in metrics.
const StateFailed = "failed"

// Config holds the run-level settings shared by every request.
type Config struct {
	WindowLength         int
	MaxSweeps            int
	StreakMax            float64
	EncoderWidth         int
	RequiredStableSweeps int
	Seed                 int64
}

// DefaultConfig returns the standard run settings.
func DefaultConfig() Config {
	return Config{
		WindowLength:         convergence.DefaultWindowLength,
		MaxSweeps:            convergence.DefaultMaxSweeps,
		StreakMax:            float64(convergence.DefaultStreakMax),
		EncoderWidth:         pooler.DefaultWidth,
		RequiredStableSweeps: pooler.RequiredStableSweeps,
		Seed:                 pooler.DefaultSeed,
	}
}

// Outcome pairs the stored result with the full convergence result.
type Outcome struct {
	Result      *models.Result
	Convergence *convergence.Result
}

// Runner executes requests. It is safe to reuse across requests but runs
// them one at a time.
type Runner struct {
	cfg       Config
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records run outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner. logger may be nil; decisions is nil-safe.
func New(cfg Config, logger *slog.Logger, decisions *logging.DecisionLogger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Runner{
		cfg:       cfg,
		logger:    logger,
		decisions: decisions,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req, writing diagnostics and the report to outputPath.
func (r *Runner) Run(ctx context.Context, req models.Request, outputPath string) (*models.Result, error) {
	out, err := r.Execute(ctx, req, outputPath)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Execute is Run, returning the convergence result as well.
func (r *Runner) Execute(ctx context.Context, req models.Request, outputPath string) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res := models.NewResult(req)
	res.StartTime = r.now().UTC()
	res.OutputFile = outputPath

	logger := r.logger.With("experiment_id", req.ExperimentID, "name", req.Name)
	logger.Info("experiment started", "inputs", req.InputCount(), "output", outputPath)

	conv, err := r.runToFile(ctx, req, outputPath, logger)
	res.Finish(r.now().UTC())
	if err != nil {
		r.metrics.RecordExperiment(StateFailed, 0, res.Duration)
		logger.Error("experiment failed", "error", err, "duration", res.Duration)
		return nil, err
	}

	res.State = conv.State.String()
	res.Converged = conv.Converged()
	res.Sweeps = conv.Sweeps
	if conv.Window != nil {
		res.FirstStableSweep = conv.Window.Start
		res.LastStableSweep = conv.Window.End
	}

	r.metrics.RecordExperiment(res.State, res.Sweeps, res.Duration)
	logger.Info("experiment finished",
		"state", res.State,
		"sweeps", res.Sweeps,
		"first_stable_sweep", res.FirstStableSweep,
		"last_stable_sweep", res.LastStableSweep,
		"duration", res.Duration)

	return &Outcome{Result: res, Convergence: conv}, nil
}

func (r *Runner) runToFile(ctx context.Context, req models.Request, outputPath string, logger *slog.Logger) (*convergence.Result, error) {
	// Everything that can be rejected is built before the report file is
	// truncated, so a bad configuration leaves an existing report intact.
	ccfg, learner, oracle, err := r.prepare(req, logger)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	ccfg.Sink = w
	c, err := convergence.New(ccfg, learner, oracle)
	if err != nil {
		return nil, err
	}
	conv, err := c.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := report.Write(w, conv); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush output file: %w", err)
	}
	return conv, nil
}

// prepare builds the learner, oracle and controller config for req.
func (r *Runner) prepare(req models.Request, logger *slog.Logger) (convergence.Config, *pooler.Layer, *pooler.Homeostat, error) {
	values := req.Inputs()
	inputs := make([]convergence.Input, len(values))
	for i, v := range values {
		inputs[i] = convergence.Input(v)
	}

	ccfg := convergence.DefaultConfig(inputs)
	ccfg.WindowLength = r.cfg.WindowLength
	ccfg.MaxSweeps = r.cfg.MaxSweeps
	ccfg.StreakMax = convergence.Input(r.cfg.StreakMax)
	ccfg.Logger = logger
	ccfg.Decisions = r.decisions
	if err := ccfg.Validate(); err != nil {
		return convergence.Config{}, nil, nil, err
	}

	// Inputs start at the truncated lower bound, which may sit below MinValue.
	enc, err := pooler.NewScalarEncoder(req.InputBits, r.cfg.EncoderWidth, math.Min(req.MinValue, values[0]), req.MaxValue)
	if err != nil {
		return convergence.Config{}, nil, nil, fmt.Errorf("build encoder: %w", err)
	}

	pcfg := pooler.DefaultConfig(req.InputBits, req.NumColumns)
	if req.LocalAreaDensity > 0 {
		pcfg.ActiveColumns = req.LocalAreaDensity
	}
	pcfg.MaxBoost = req.BoostMax
	pcfg.DutyCyclePeriod = req.DutyCyclePeriod
	pcfg.MinPctOverlapDutyCycles = req.MinPctOverlapDutyCycles
	pcfg.Seed = r.cfg.Seed
	p, err := pooler.New(pcfg)
	if err != nil {
		return convergence.Config{}, nil, nil, fmt.Errorf("build pooler: %w", err)
	}

	oracle := pooler.NewHomeostat(len(inputs), p, logger)
	if r.cfg.RequiredStableSweeps > 0 {
		oracle.RequiredStable = r.cfg.RequiredStableSweeps
	}
	return ccfg, &pooler.Layer{Encoder: enc, Pooler: p}, oracle, nil
}
