package convergence

import "github.com/nvandessel/sdrsweep/internal/similarity"

// tracker keeps, per input, the previous sweep's set, the exact-match streak
// and running size totals for the oracle's activation averages.
type tracker struct {
	streakMax Input
	prev      map[Input]similarity.Set
	streak    map[Input]int
	sizeSum   map[Input]int
	count     map[Input]int
	seen      int
}

func newTracker(inputs []Input, streakMax Input) *tracker {
	t := &tracker{
		streakMax: streakMax,
		prev:      make(map[Input]similarity.Set, len(inputs)),
		streak:    make(map[Input]int, len(inputs)),
		sizeSum:   make(map[Input]int, len(inputs)),
		count:     make(map[Input]int, len(inputs)),
	}
	for _, in := range inputs {
		t.prev[in] = similarity.Set{}
	}
	return t
}

// observe records out as the latest set for in and returns its similarity to
// the previous set and the updated streak.
func (t *tracker) observe(in Input, out similarity.Set) (float64, int) {
	prev := t.prev[in]
	sim := similarity.Jaccard(out, prev)

	if in <= t.streakMax && similarity.Equal(out, prev) {
		t.streak[in]++
	} else {
		t.streak[in] = 0
	}

	t.prev[in] = out
	t.sizeSum[in] += len(out)
	t.count[in]++
	t.seen++

	return sim, t.streak[in]
}

func (t *tracker) streakOf(in Input) int {
	return t.streak[in]
}

// averages returns the mean output size of each input in presentation order.
func (t *tracker) averages(inputs []Input) []float64 {
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		if n := t.count[in]; n > 0 {
			out[i] = float64(t.sizeSum[in]) / float64(n)
		}
	}
	return out
}

func (t *tracker) streaks() map[Input]int {
	out := make(map[Input]int, len(t.prev))
	for in := range t.prev {
		out[in] = t.streak[in]
	}
	return out
}
