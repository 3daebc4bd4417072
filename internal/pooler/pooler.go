package pooler

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

type column struct {
	potential []int     // input bit indices, ascending
	perm      []float64 // permanence per potential bit
}

// Pooler selects the k columns whose connected synapses best overlap the
// active input bits. It is deterministic for a given config and call history.
// A Pooler is not safe for concurrent use.
type Pooler struct {
	cfg     Config
	columns []column

	boost       []float64
	activeDuty  []float64
	overlapDuty []float64

	boosting   bool
	iterations int
}

// New builds a pooler with random potential pools drawn from cfg.Seed.
func New(cfg Config) (*Pooler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	p := &Pooler{
		cfg:         cfg,
		columns:     make([]column, cfg.NumColumns),
		boost:       make([]float64, cfg.NumColumns),
		activeDuty:  make([]float64, cfg.NumColumns),
		overlapDuty: make([]float64, cfg.NumColumns),
		boosting:    cfg.MaxBoost > 0,
	}

	for c := range p.columns {
		p.columns[c] = p.newColumn(c, rng)
		p.boost[c] = 1
	}
	return p, nil
}

// newColumn maps column c onto the input space and samples its pool from the
// bits within PotentialRadius of that centre.
func (p *Pooler) newColumn(c int, rng *rand.Rand) column {
	center := 0
	if p.cfg.NumColumns > 1 {
		center = int(math.Round(float64(c) * float64(p.cfg.InputBits-1) / float64(p.cfg.NumColumns-1)))
	}
	lo := max(0, center-p.cfg.PotentialRadius)
	hi := min(p.cfg.InputBits-1, center+p.cfg.PotentialRadius)

	candidates := make([]int, 0, hi-lo+1)
	for b := lo; b <= hi; b++ {
		candidates = append(candidates, b)
	}
	n := max(1, int(math.Round(p.cfg.PotentialPct*float64(len(candidates)))))
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	pool := candidates[:n]
	sort.Ints(pool)

	perm := make([]float64, n)
	for i := range perm {
		if rng.Float64() < p.cfg.InitConnectedPct {
			perm[i] = p.cfg.ConnectedPerm + rng.Float64()*p.cfg.PermIncrement*4
		} else {
			perm[i] = rng.Float64() * p.cfg.ConnectedPerm
		}
		perm[i] = clampPerm(perm[i])
	}
	return column{potential: pool, perm: perm}
}

// Boosting reports whether boost factors are still being updated.
func (p *Pooler) Boosting() bool { return p.boosting }

// DisableBoosting freezes all boost factors at 1.
func (p *Pooler) DisableBoosting() {
	p.boosting = false
	for c := range p.boost {
		p.boost[c] = 1
	}
}

// Iterations returns the number of Compute calls so far.
func (p *Pooler) Iterations() int { return p.iterations }

// Config returns the configuration the pooler was built with.
func (p *Pooler) Config() Config { return p.cfg }

// Compute returns the winning columns for the active input bits, ascending.
func (p *Pooler) Compute(active []int, learn bool) ([]int, error) {
	on := make(map[int]bool, len(active))
	for _, b := range active {
		if b < 0 || b >= p.cfg.InputBits {
			return nil, fmt.Errorf("input bit %d outside [0, %d)", b, p.cfg.InputBits)
		}
		on[b] = true
	}

	overlaps := p.overlaps(on)
	winners := p.inhibit(overlaps)

	if learn {
		p.learn(on, winners, overlaps)
	}
	p.iterations++

	return winners, nil
}

func (p *Pooler) overlaps(on map[int]bool) []int {
	out := make([]int, len(p.columns))
	for c, col := range p.columns {
		n := 0
		for i, b := range col.potential {
			if on[b] && col.perm[i] >= p.cfg.ConnectedPerm {
				n++
			}
		}
		if n >= p.cfg.StimulusThreshold {
			out[c] = n
		}
	}
	return out
}

// inhibit keeps the top-k boosted overlaps. Ties go to the lower column index.
func (p *Pooler) inhibit(overlaps []int) []int {
	type scored struct {
		col   int
		score float64
	}
	candidates := make([]scored, 0, len(overlaps))
	for c, o := range overlaps {
		if o > 0 {
			candidates = append(candidates, scored{col: c, score: float64(o) * p.boost[c]})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > p.cfg.ActiveColumns {
		candidates = candidates[:p.cfg.ActiveColumns]
	}

	winners := make([]int, len(candidates))
	for i, s := range candidates {
		winners[i] = s.col
	}
	sort.Ints(winners)
	return winners
}

func (p *Pooler) learn(on map[int]bool, winners, overlaps []int) {
	for _, c := range winners {
		col := &p.columns[c]
		for i, b := range col.potential {
			if on[b] {
				col.perm[i] = clampPerm(col.perm[i] + p.cfg.PermIncrement)
			} else {
				col.perm[i] = clampPerm(col.perm[i] - p.cfg.PermDecrement)
			}
		}
	}

	p.updateDutyCycles(winners, overlaps)
	p.bumpWeakColumns()
	if p.boosting {
		p.updateBoost()
	}
}

func (p *Pooler) updateDutyCycles(winners, overlaps []int) {
	period := float64(min(p.cfg.DutyCyclePeriod, p.iterations+1))
	won := make(map[int]bool, len(winners))
	for _, c := range winners {
		won[c] = true
	}
	for c := range p.columns {
		p.activeDuty[c] = movingAverage(p.activeDuty[c], won[c], period)
		p.overlapDuty[c] = movingAverage(p.overlapDuty[c], overlaps[c] > 0, period)
	}
}

// bumpWeakColumns raises every permanence of columns that rarely see any
// overlap so they get a chance to compete.
func (p *Pooler) bumpWeakColumns() {
	best := 0.0
	for _, d := range p.overlapDuty {
		best = max(best, d)
	}
	floor := p.cfg.MinPctOverlapDutyCycles * best
	for c := range p.columns {
		if p.overlapDuty[c] >= floor {
			continue
		}
		col := &p.columns[c]
		for i := range col.perm {
			col.perm[i] = clampPerm(col.perm[i] + 0.1*p.cfg.ConnectedPerm)
		}
	}
}

func (p *Pooler) updateBoost() {
	target := float64(p.cfg.ActiveColumns) / float64(p.cfg.NumColumns)
	for c := range p.boost {
		p.boost[c] = math.Exp((target - p.activeDuty[c]) * p.cfg.MaxBoost)
	}
}

func movingAverage(prev float64, hit bool, period float64) float64 {
	v := 0.0
	if hit {
		v = 1
	}
	return (prev*(period-1) + v) / period
}

// clampPerm restricts a permanence to [0, 1].
func clampPerm(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
