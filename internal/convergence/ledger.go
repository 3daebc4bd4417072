package convergence

import "github.com/nvandessel/sdrsweep/internal/similarity"

// ledger is the per-input history since the last instable sweep.
// Entry i of every input belongs to sweep base+i.
type ledger struct {
	base    int
	entries map[Input][]similarity.Set
}

func newLedger() *ledger {
	return &ledger{entries: make(map[Input][]similarity.Set)}
}

func (l *ledger) append(in Input, out similarity.Set) {
	l.entries[in] = append(l.entries[in], out)
}

// clear drops all history. nextSweep is the index of the first sweep that
// will be appended afterwards.
func (l *ledger) clear(nextSweep int) {
	l.entries = make(map[Input][]similarity.Set)
	l.base = nextSweep
}

func (l *ledger) lenOf(in Input) int {
	return len(l.entries[in])
}

// records copies the history for sweeps start..end (inclusive).
// Sweeps outside the ledger are skipped.
func (l *ledger) records(inputs []Input, start, end int) []SweepRecord {
	out := make([]SweepRecord, 0, end-start+1)
	for sweep := start; sweep <= end; sweep++ {
		offset := sweep - l.base
		if offset < 0 {
			continue
		}
		rec := SweepRecord{Sweep: sweep, Outputs: make(map[Input]similarity.Set, len(inputs))}
		for _, in := range inputs {
			hist := l.entries[in]
			if offset >= len(hist) {
				continue
			}
			set := make(similarity.Set, len(hist[offset]))
			copy(set, hist[offset])
			rec.Outputs[in] = set
		}
		out = append(out, rec)
	}
	return out
}
