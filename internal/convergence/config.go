package convergence

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/nvandessel/sdrsweep/internal/logging"
)

// Defaults used by DefaultConfig.
const (
	DefaultWindowLength       = 100
	DefaultMaxSweeps          = 1000
	DefaultStreakMax    Input = 99
)

var (
	// ErrInvalidConfig is returned by New before any sweep runs.
	ErrInvalidConfig = errors.New("invalid convergence config")

	// ErrInvalidOutput is returned when the learner produces a negative index.
	ErrInvalidOutput = errors.New("invalid output set")
)

// Config configures a single run.
type Config struct {
	// Inputs are presented in this order every sweep. Values must be unique.
	Inputs []Input

	// WindowLength is the number of consecutive stable sweeps required to converge.
	WindowLength int

	// MaxSweeps caps the run. Must exceed WindowLength.
	MaxSweeps int

	// StreakMax limits exact-match streak tracking to inputs <= StreakMax.
	// Inputs above it always report a streak of 0.
	StreakMax Input

	// ReferenceIndex selects, by position in Inputs, the input whose full
	// trajectory is kept across the run.
	ReferenceIndex int

	// Learn is forwarded to Learner.Compute.
	Learn bool

	// Sink receives one diagnostic line per input per sweep. Optional.
	// Write failures are counted and logged but never stop the run.
	Sink io.Writer

	// Logger receives operational output. Nil discards.
	Logger *slog.Logger

	// Decisions receives state transitions as JSONL. Nil-safe.
	Decisions *logging.DecisionLogger
}

// DefaultConfig returns a Config for inputs with the standard window (100)
// and sweep cap (1000), learning enabled and the first input as reference.
func DefaultConfig(inputs []Input) Config {
	return Config{
		Inputs:         inputs,
		WindowLength:   DefaultWindowLength,
		MaxSweeps:      DefaultMaxSweeps,
		StreakMax:      DefaultStreakMax,
		ReferenceIndex: 0,
		Learn:          true,
	}
}

// Validate checks the config. All failures wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if len(c.Inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrInvalidConfig)
	}
	if c.WindowLength <= 0 {
		return fmt.Errorf("%w: window length must be positive, got %d", ErrInvalidConfig, c.WindowLength)
	}
	if c.MaxSweeps <= c.WindowLength {
		return fmt.Errorf("%w: max sweeps (%d) must exceed window length (%d)", ErrInvalidConfig, c.MaxSweeps, c.WindowLength)
	}
	if c.ReferenceIndex < 0 || c.ReferenceIndex >= len(c.Inputs) {
		return fmt.Errorf("%w: reference index %d out of range [0, %d)", ErrInvalidConfig, c.ReferenceIndex, len(c.Inputs))
	}

	seen := make(map[Input]bool, len(c.Inputs))
	for _, in := range c.Inputs {
		if math.IsNaN(float64(in)) || math.IsInf(float64(in), 0) {
			return fmt.Errorf("%w: input %v is not finite", ErrInvalidConfig, float64(in))
		}
		if seen[in] {
			return fmt.Errorf("%w: duplicate input %s", ErrInvalidConfig, in)
		}
		seen[in] = true
	}

	return nil
}
