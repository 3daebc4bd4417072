package simulation

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/nvandessel/sdrsweep/internal/convergence"
)

// Runner executes scenarios against a real convergence.Controller.
type Runner struct {
	t *testing.T
}

// NewRunner creates a runner with a sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &Runner{t: t}
}

// Run executes the scenario and returns the collected results. Any error
// from the controller fails the test.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()

	result, err := r.run(scenario)
	if err != nil {
		r.t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	return result
}

func (r *Runner) run(scenario Scenario) (SimulationResult, error) {
	if (scenario.Outputs == nil && scenario.Learner == nil) || (scenario.Verdicts == nil && scenario.Oracle == nil) {
		return SimulationResult{}, fmt.Errorf("scenario needs a learner and an oracle")
	}

	var sink bytes.Buffer
	cfg := scenario.config()
	cfg.Sink = &sink

	sweep := 0
	var learner convergence.Learner = scenario.Learner
	if learner == nil {
		learner = convergence.LearnerFunc(func(in convergence.Input, learn bool) ([]int, error) {
			return scenario.Outputs(sweep, in), nil
		})
	}

	result := SimulationResult{Scenario: scenario}
	var verdict bool
	oracle := convergence.OracleFunc(func(stats convergence.SweepStats) bool {
		result.Oracle = append(result.Oracle, stats)
		if scenario.Oracle != nil {
			verdict = scenario.Oracle.Observe(stats)
		} else {
			verdict = scenario.Verdicts(stats.Sweep)
		}
		return verdict
	})

	c, err := convergence.New(cfg, learner, oracle)
	if err != nil {
		return SimulationResult{}, err
	}

	ctx := context.Background()
	for !c.State().Terminal() {
		if scenario.Steps > 0 && sweep >= scenario.Steps {
			break
		}
		state, err := c.Step(ctx)
		if err != nil {
			return SimulationResult{}, fmt.Errorf("sweep %d: %w", sweep, err)
		}
		result.Steps = append(result.Steps, snapshot(c, scenario.Inputs, sweep, verdict, state))
		sweep++
	}

	result.Result = c.Result()
	result.Sink = splitLines(sink.String())
	return result, nil
}

func snapshot(c *convergence.Controller, inputs []convergence.Input, sweep int, verdict bool, state convergence.State) StepSnapshot {
	s := StepSnapshot{
		Sweep:        sweep,
		Verdict:      verdict,
		State:        state,
		StableSweeps: c.StableSweeps(),
		Streaks:      make(map[convergence.Input]int, len(inputs)),
		LedgerLens:   make(map[convergence.Input]int, len(inputs)),
	}
	for _, in := range inputs {
		s.Streaks[in] = c.Streak(in)
		s.LedgerLens[in] = c.LedgerLen(in)
	}
	return s
}

func splitLines(s string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
