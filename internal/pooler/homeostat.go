package pooler

import (
	"log/slog"

	"github.com/nvandessel/sdrsweep/internal/convergence"
	"github.com/nvandessel/sdrsweep/internal/logging"
	"github.com/nvandessel/sdrsweep/internal/similarity"
)

// Defaults for the homeostat.
const (
	NewbornSweeps        = 40
	RequiredStableSweeps = 5
)

// BoostSwitch is implemented by learners whose boosting can be switched off.
type BoostSwitch interface {
	DisableBoosting()
}

// Homeostat is a stability oracle. It holds the learner in a newborn stage
// for a fixed number of presentations, then turns boosting off and reports
// stable once every input has produced the same set for RequiredStable
// consecutive sweeps.
type Homeostat struct {
	// NewbornPresentations is the length of the newborn stage, counted in
	// individual input presentations.
	NewbornPresentations int

	// RequiredStable is the number of identical consecutive sets needed per input.
	RequiredStable int

	// Learner, if set, has boosting disabled when the newborn stage ends.
	Learner BoostSwitch

	Logger *slog.Logger

	newbornDone bool
	prev        map[convergence.Input]similarity.Set
	same        map[convergence.Input]int
	lastStable  bool
}

// NewHomeostat returns a homeostat whose newborn stage lasts
// inputs * NewbornSweeps presentations.
func NewHomeostat(inputs int, learner BoostSwitch, logger *slog.Logger) *Homeostat {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Homeostat{
		NewbornPresentations: inputs * NewbornSweeps,
		RequiredStable:       RequiredStableSweeps,
		Learner:              learner,
		Logger:               logger,
	}
}

// Newborn reports whether the newborn stage is still running.
func (h *Homeostat) Newborn() bool { return !h.newbornDone }

// Observe implements convergence.Oracle.
func (h *Homeostat) Observe(stats convergence.SweepStats) bool {
	if !h.newbornDone {
		if stats.SeenInputs < h.NewbornPresentations {
			return false
		}
		h.endNewborn(stats)
		return false
	}

	stable := h.track(stats.Outputs)
	if stable != h.lastStable {
		h.Logger.Debug("homeostat verdict changed",
			"sweep", stats.Sweep,
			"stable", stable,
			"seen_inputs", stats.SeenInputs)
	}
	h.lastStable = stable
	return stable
}

func (h *Homeostat) endNewborn(stats convergence.SweepStats) {
	h.newbornDone = true
	h.prev = make(map[convergence.Input]similarity.Set, len(stats.Outputs))
	h.same = make(map[convergence.Input]int, len(stats.Outputs))
	for in, out := range stats.Outputs {
		h.prev[in] = out
	}
	if h.Learner != nil {
		h.Learner.DisableBoosting()
	}

	var mean float64
	for _, a := range stats.ActiveAverages {
		mean += a
	}
	if n := len(stats.ActiveAverages); n > 0 {
		mean /= float64(n)
	}
	h.Logger.Info("newborn stage complete; boosting disabled",
		"sweep", stats.Sweep,
		"seen_inputs", stats.SeenInputs,
		"mean_active", mean)
}

// track updates per-input repetition counts and reports whether every input
// has repeated its set often enough.
func (h *Homeostat) track(outputs map[convergence.Input]similarity.Set) bool {
	stable := len(outputs) > 0
	for in, out := range outputs {
		if prev, ok := h.prev[in]; ok && similarity.Equal(prev, out) {
			h.same[in]++
		} else {
			h.same[in] = 0
		}
		h.prev[in] = out
		if h.same[in] < h.RequiredStable {
			stable = false
		}
	}
	return stable
}

var _ convergence.Oracle = (*Homeostat)(nil)
