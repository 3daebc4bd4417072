package simulation

import (
	"github.com/nvandessel/sdrsweep/internal/convergence"
)

// OutputScript returns the set the learner produces for input during sweep.
type OutputScript func(sweep int, input convergence.Input) []int

// VerdictScript returns the oracle's verdict after sweep.
type VerdictScript func(sweep int) bool

// Scenario defines a complete scripted run.
type Scenario struct {
	Name         string
	Inputs       []convergence.Input
	WindowLength int
	MaxSweeps    int

	// StreakMax defaults to convergence.DefaultStreakMax.
	StreakMax convergence.Input

	// Reference is an index into Inputs.
	Reference int

	Outputs  OutputScript
	Verdicts VerdictScript

	// Learner and Oracle replace the scripts when set.
	Learner convergence.Learner
	Oracle  convergence.Oracle

	// Steps caps the number of sweeps the runner executes. Zero runs to a
	// terminal state.
	Steps int
}

// config builds the controller config for the scenario.
func (s Scenario) config() convergence.Config {
	cfg := convergence.DefaultConfig(s.Inputs)
	cfg.WindowLength = s.WindowLength
	cfg.MaxSweeps = s.MaxSweeps
	cfg.ReferenceIndex = s.Reference
	if s.StreakMax != 0 {
		cfg.StreakMax = s.StreakMax
	}
	return cfg
}

// StepSnapshot is the controller's state after one sweep.
type StepSnapshot struct {
	Sweep        int
	Verdict      bool
	State        convergence.State
	StableSweeps int
	Streaks      map[convergence.Input]int
	LedgerLens   map[convergence.Input]int
}

// SimulationResult captures every sweep and the final result.
type SimulationResult struct {
	Scenario Scenario
	Steps    []StepSnapshot
	Oracle   []convergence.SweepStats
	Result   *convergence.Result
	Sink     []string
}
