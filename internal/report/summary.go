package report

import (
	"sort"

	"github.com/nvandessel/sdrsweep/internal/convergence"
)

// Summary is a compact, JSON-friendly view of a result.
type Summary struct {
	State           string         `json:"state"`
	Converged       bool           `json:"converged"`
	Sweeps          int            `json:"sweeps"`
	StableSweeps    int            `json:"stable_sweeps"`
	Inputs          int            `json:"inputs"`
	Reference       string         `json:"reference"`
	WindowStart     *int           `json:"window_start,omitempty"`
	WindowEnd       *int           `json:"window_end,omitempty"`
	FinalSimilarity float64        `json:"final_similarity"`
	FinalSize       int            `json:"final_size"`
	LongestStreak   int            `json:"longest_streak"`
	Streaks         map[string]int `json:"streaks,omitempty"`
	SinkErrors      int            `json:"sink_errors,omitempty"`
}

// Summarize condenses res. Streaks are keyed by the input's string form.
func Summarize(res *convergence.Result) Summary {
	s := Summary{
		State:        res.State.String(),
		Converged:    res.Converged(),
		Sweeps:       res.Sweeps,
		StableSweeps: res.StableSweeps,
		Inputs:       len(res.Inputs),
		Reference:    res.Reference.String(),
		SinkErrors:   res.SinkErrors,
	}

	if res.Window != nil {
		start, end := res.Window.Start, res.Window.End
		s.WindowStart = &start
		s.WindowEnd = &end
	}

	if n := len(res.Trajectory); n > 0 {
		last := res.Trajectory[n-1]
		s.FinalSimilarity = last.Similarity
		s.FinalSize = last.Size
	}

	if len(res.Streaks) > 0 {
		s.Streaks = make(map[string]int, len(res.Streaks))
		for in, n := range res.Streaks {
			s.Streaks[in.String()] = n
			s.LongestStreak = max(s.LongestStreak, n)
		}
	}

	return s
}

// TopStreaks returns up to n inputs with the longest streaks, longest first.
// Ties are ordered by input value.
func TopStreaks(res *convergence.Result, n int) []convergence.Input {
	inputs := make([]convergence.Input, 0, len(res.Streaks))
	for in := range res.Streaks {
		inputs = append(inputs, in)
	}
	sort.Slice(inputs, func(i, j int) bool {
		a, b := res.Streaks[inputs[i]], res.Streaks[inputs[j]]
		if a != b {
			return a > b
		}
		return inputs[i] < inputs[j]
	})
	if n >= 0 && len(inputs) > n {
		inputs = inputs[:n]
	}
	return inputs
}
