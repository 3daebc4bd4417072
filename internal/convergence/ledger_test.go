package convergence

import (
	"testing"

	"github.com/nvandessel/sdrsweep/internal/similarity"
)

func TestLedger_RecordsRespectBase(t *testing.T) {
	l := newLedger()
	inputs := []Input{0, 1}

	l.append(0, similarity.Set{1})
	l.append(1, similarity.Set{2})
	l.clear(1)

	for sweep := 1; sweep <= 3; sweep++ {
		l.append(0, similarity.Set{sweep})
		l.append(1, similarity.Set{sweep * 10})
	}

	recs := l.records(inputs, 0, 3)
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3 (sweep 0 was cleared)", len(recs))
	}
	if recs[0].Sweep != 1 || recs[2].Sweep != 3 {
		t.Errorf("sweeps = %d..%d, want 1..3", recs[0].Sweep, recs[2].Sweep)
	}
	if got := recs[1].Outputs[1]; !similarity.Equal(got, []int{20}) {
		t.Errorf("sweep 2 input 1 = %v, want [20]", got)
	}

	recs[0].Outputs[0][0] = 42
	if l.entries[0][0][0] == 42 {
		t.Error("records share backing arrays with the ledger")
	}
}

func TestTracker_Averages(t *testing.T) {
	tr := newTracker([]Input{0, 1, 2}, DefaultStreakMax)
	tr.observe(0, similarity.Set{1, 2})
	tr.observe(0, similarity.Set{1, 2, 3, 4})
	tr.observe(1, similarity.Set{})

	got := tr.averages([]Input{0, 1, 2})
	want := []float64{3, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("averages[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if tr.seen != 3 {
		t.Errorf("seen = %d, want 3", tr.seen)
	}
}

func TestFormatSet(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{7}, "7"},
		{[]int{1, 5, 9}, "1, 5, 9"},
	}
	for _, tt := range tests {
		if got := FormatSet(tt.in); got != tt.want {
			t.Errorf("FormatSet(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestState_Text(t *testing.T) {
	for _, s := range []State{StateRunning, StateStableAccumulating, StateConverged, StateExhausted} {
		parsed, err := ParseState(s.String())
		if err != nil {
			t.Fatalf("ParseState(%q): %v", s, err)
		}
		if parsed != s {
			t.Errorf("ParseState(%q) = %v", s, parsed)
		}
	}
	if _, err := ParseState("bogus"); err == nil {
		t.Error("ParseState(bogus) returned nil error")
	}
	if !StateConverged.Terminal() || !StateExhausted.Terminal() || StateRunning.Terminal() {
		t.Error("Terminal() misclassifies states")
	}
}
