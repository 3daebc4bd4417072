package convergence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvandessel/sdrsweep/internal/logging"
	"github.com/nvandessel/sdrsweep/internal/similarity"
)

// Controller owns all state of one run. It is not safe for concurrent use.
type Controller struct {
	cfg       Config
	learner   Learner
	oracle    Oracle
	logger    *slog.Logger
	reference Input

	state        State
	sweep        int
	stableSweeps int
	err          error

	tracker    *tracker
	ledger     *ledger
	trajectory []TrajectoryPoint
	window     *Window
	sink       *lineSink
}

// New validates cfg and returns a controller in StateRunning at sweep 0.
func New(cfg Config, learner Learner, oracle Oracle) (*Controller, error) {
	if learner == nil {
		return nil, fmt.Errorf("%w: learner is required", ErrInvalidConfig)
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: oracle is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	inputs := make([]Input, len(cfg.Inputs))
	copy(inputs, cfg.Inputs)
	cfg.Inputs = inputs

	return &Controller{
		cfg:       cfg,
		learner:   learner,
		oracle:    oracle,
		logger:    logger,
		reference: inputs[cfg.ReferenceIndex],
		state:     StateRunning,
		tracker:   newTracker(inputs, cfg.StreakMax),
		ledger:    newLedger(),
		sink:      &lineSink{w: cfg.Sink, logger: logger},
	}, nil
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Sweep returns the number of sweeps executed so far.
func (c *Controller) Sweep() int { return c.sweep }

// StableSweeps returns the number of consecutive stable sweeps.
func (c *Controller) StableSweeps() int { return c.stableSweeps }

// Streak returns the exact-match streak of in.
func (c *Controller) Streak(in Input) int { return c.tracker.streakOf(in) }

// LedgerLen returns how many sets are held for in since the last instable sweep.
func (c *Controller) LedgerLen(in Input) int { return c.ledger.lenOf(in) }

// Run executes sweeps until the controller reaches a terminal state.
// A learner failure aborts the run and no result is returned.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	c.logger.Info("starting sweeps",
		"inputs", len(c.cfg.Inputs),
		"window_length", c.cfg.WindowLength,
		"max_sweeps", c.cfg.MaxSweeps)

	for !c.state.Terminal() {
		if _, err := c.Step(ctx); err != nil {
			return nil, err
		}
	}
	return c.Result(), nil
}

// Step runs exactly one sweep and returns the resulting state. Calling Step
// in a terminal state is a no-op. Once Step has failed it keeps returning the
// same error.
func (c *Controller) Step(ctx context.Context) (State, error) {
	if c.err != nil {
		return c.state, c.err
	}
	if c.state.Terminal() {
		return c.state, nil
	}
	if err := ctx.Err(); err != nil {
		return c.state, err
	}

	sweep := c.sweep
	outputs := make(map[Input]similarity.Set, len(c.cfg.Inputs))

	for _, in := range c.cfg.Inputs {
		raw, err := c.learner.Compute(in, c.cfg.Learn)
		if err != nil {
			c.err = fmt.Errorf("sweep %d, input %s: %w", sweep, in, err)
			return c.state, c.err
		}
		out, err := checkOutput(raw)
		if err != nil {
			c.err = fmt.Errorf("sweep %d, input %s: %w", sweep, in, err)
			return c.state, c.err
		}

		sim, streak := c.tracker.observe(in, out)
		c.ledger.append(in, out)
		outputs[in] = out

		if in == c.reference {
			c.trajectory = append(c.trajectory, TrajectoryPoint{
				Sweep:      sweep,
				Similarity: sim,
				Size:       len(out),
				Output:     out,
			})
		}

		line := FormatSweepLine(sweep, streak, c.stableSweeps, in, sim, out)
		c.sink.writeLine(line)
		c.logger.Log(ctx, logging.LevelTrace, line)
	}
	c.sink.flush()

	stable := c.oracle.Observe(SweepStats{
		Sweep:          sweep,
		Inputs:         len(c.cfg.Inputs),
		SeenInputs:     c.tracker.seen,
		ActiveAverages: c.tracker.averages(c.cfg.Inputs),
		Outputs:        outputs,
	})

	c.sweep++

	if stable {
		c.onStable(ctx, sweep)
	} else {
		c.onInstable(ctx, sweep)
	}

	if !c.state.Terminal() && c.sweep >= c.cfg.MaxSweeps {
		c.transition(ctx, StateExhausted, sweep)
		c.logger.Warn("sweep cap reached without convergence",
			"sweeps", c.sweep,
			"stable_sweeps", c.stableSweeps)
	}

	c.logger.Debug("sweep complete",
		"sweep", sweep,
		"stable", stable,
		"stable_sweeps", c.stableSweeps,
		"state", c.state.String())

	return c.state, nil
}

func (c *Controller) onStable(ctx context.Context, sweep int) {
	c.stableSweeps++
	if c.state == StateRunning {
		c.transition(ctx, StateStableAccumulating, sweep)
	}

	if c.stableSweeps < c.cfg.WindowLength {
		return
	}

	start := max(0, sweep-c.cfg.WindowLength+1)
	c.window = &Window{
		Start:   start,
		End:     sweep,
		Records: c.ledger.records(c.cfg.Inputs, start, sweep),
	}
	c.transition(ctx, StateConverged, sweep)
	c.logger.Info("stability window captured",
		"start", start,
		"end", sweep,
		"length", c.window.Len())
	c.cfg.Decisions.Log(map[string]any{
		"event": "window_captured",
		"start": start,
		"end":   sweep,
	})
}

func (c *Controller) onInstable(ctx context.Context, sweep int) {
	c.ledger.clear(c.sweep)
	c.stableSweeps = 0
	if c.state != StateRunning {
		c.transition(ctx, StateRunning, sweep)
	}
	c.logger.Debug("stable sweep counter reset", "sweep", sweep)
}

func (c *Controller) transition(ctx context.Context, to State, sweep int) {
	from := c.state
	c.state = to
	c.logger.Log(ctx, transitionLevel(to), "state transition",
		"from", from.String(),
		"to", to.String(),
		"sweep", sweep)
	c.cfg.Decisions.Log(map[string]any{
		"event":         "state_transition",
		"from":          from.String(),
		"to":            to.String(),
		"sweep":         sweep,
		"stable_sweeps": c.stableSweeps,
	})
}

func transitionLevel(to State) slog.Level {
	if to == StateExhausted {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Result returns a snapshot of the run. Every slice, map and set is copied,
// so callers may modify it freely.
func (c *Controller) Result() *Result {
	inputs := make([]Input, len(c.cfg.Inputs))
	copy(inputs, c.cfg.Inputs)

	trajectory := make([]TrajectoryPoint, len(c.trajectory))
	for i, p := range c.trajectory {
		p.Output = cloneSet(p.Output)
		trajectory[i] = p
	}

	var window *Window
	if c.window != nil {
		records := make([]SweepRecord, len(c.window.Records))
		for i, rec := range c.window.Records {
			outputs := make(map[Input]similarity.Set, len(rec.Outputs))
			for in, set := range rec.Outputs {
				outputs[in] = cloneSet(set)
			}
			records[i] = SweepRecord{Sweep: rec.Sweep, Outputs: outputs}
		}
		window = &Window{Start: c.window.Start, End: c.window.End, Records: records}
	}

	return &Result{
		State:        c.state,
		Sweeps:       c.sweep,
		StableSweeps: c.stableSweeps,
		Inputs:       inputs,
		Reference:    c.reference,
		Window:       window,
		Trajectory:   trajectory,
		Streaks:      c.tracker.streaks(),
		SinkErrors:   c.sink.errs,
	}
}

func cloneSet(s similarity.Set) similarity.Set {
	if s == nil {
		return nil
	}
	out := make(similarity.Set, len(s))
	copy(out, s)
	return out
}

func checkOutput(raw []int) (similarity.Set, error) {
	for _, v := range raw {
		if v < 0 {
			return nil, fmt.Errorf("%w: negative index %d", ErrInvalidOutput, v)
		}
	}
	return similarity.Normalize(raw), nil
}
