package convergence

import (
	"fmt"
	"strconv"

	"github.com/nvandessel/sdrsweep/internal/similarity"
)

// Input is one scalar presented to the learning module. Its identity is its value.
type Input float64

// String formats the input without trailing zeros ("3", "0.5").
func (in Input) String() string {
	return strconv.FormatFloat(float64(in), 'f', -1, 64)
}

// Learner computes the active index set for an input. Implementations are
// stateful: the same input may yield a different set on a later sweep.
type Learner interface {
	Compute(input Input, learn bool) ([]int, error)
}

// LearnerFunc adapts a function to the Learner interface.
type LearnerFunc func(input Input, learn bool) ([]int, error)

// Compute calls f(input, learn).
func (f LearnerFunc) Compute(input Input, learn bool) ([]int, error) {
	return f(input, learn)
}

// Oracle judges, once per completed sweep, whether the system is stable.
type Oracle interface {
	Observe(stats SweepStats) bool
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(stats SweepStats) bool

// Observe calls f(stats).
func (f OracleFunc) Observe(stats SweepStats) bool {
	return f(stats)
}

// SweepStats is the aggregate handed to the Oracle after each sweep.
type SweepStats struct {
	// Sweep is the zero-based index of the sweep that just finished.
	Sweep int

	// Inputs is the number of distinct inputs presented per sweep.
	Inputs int

	// SeenInputs is the total number of presentations so far, across all sweeps.
	SeenInputs int

	// ActiveAverages holds the running mean output size of each input,
	// in presentation order.
	ActiveAverages []float64

	// Outputs holds the sets produced during this sweep.
	Outputs map[Input]similarity.Set
}

// State is a controller lifecycle state.
type State int

const (
	StateRunning State = iota
	StateStableAccumulating
	StateConverged
	StateExhausted
)

// String returns the snake_case name of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStableAccumulating:
		return "stable_accumulating"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further sweeps will run.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateExhausted
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState maps a state name back to a State.
func ParseState(name string) (State, error) {
	for _, s := range []State{StateRunning, StateStableAccumulating, StateConverged, StateExhausted} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// TrajectoryPoint is one sweep of the reference input's history.
type TrajectoryPoint struct {
	Sweep      int            `json:"sweep"`
	Similarity float64        `json:"similarity"`
	Size       int            `json:"size"`
	Output     similarity.Set `json:"output"`
}

// SweepRecord holds every input's set for one sweep.
type SweepRecord struct {
	Sweep   int                      `json:"sweep"`
	Outputs map[Input]similarity.Set `json:"-"`
}

// Window is the captured run of consecutive stable sweeps. Start and End are
// inclusive sweep indices and len(Records) == End-Start+1.
type Window struct {
	Start   int           `json:"start"`
	End     int           `json:"end"`
	Records []SweepRecord `json:"-"`
}

// Len returns the number of sweeps in the window.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Records)
}

// Result is the finalized snapshot of a run.
type Result struct {
	State        State
	Sweeps       int
	StableSweeps int
	Inputs       []Input
	Reference    Input

	// Window is nil unless State is StateConverged.
	Window *Window

	// Trajectory has one point per executed sweep.
	Trajectory []TrajectoryPoint

	// Streaks holds each input's exact-match streak at the end of the run.
	Streaks map[Input]int

	// SinkErrors counts diagnostic lines that could not be written.
	SinkErrors int
}

// Converged reports whether the run captured a stable window.
func (r *Result) Converged() bool {
	return r != nil && r.State == StateConverged
}
