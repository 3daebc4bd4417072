package convergence

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// constantLearner returns the same set for every input on every sweep.
func constantLearner(set ...int) LearnerFunc {
	return func(Input, bool) ([]int, error) {
		return append([]int(nil), set...), nil
	}
}

// scriptedOracle answers stable for sweeps listed in stable.
func scriptedOracle(stable ...int) OracleFunc {
	m := make(map[int]bool, len(stable))
	for _, s := range stable {
		m[s] = true
	}
	return func(stats SweepStats) bool { return m[stats.Sweep] }
}

func stableFrom(first int) OracleFunc {
	return func(stats SweepStats) bool { return stats.Sweep >= first }
}

func testConfig(inputs []Input, window, maxSweeps int) Config {
	cfg := DefaultConfig(inputs)
	cfg.WindowLength = window
	cfg.MaxSweeps = maxSweeps
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	learner := constantLearner(1)
	oracle := stableFrom(0)

	tests := []struct {
		name    string
		cfg     Config
		learner Learner
		oracle  Oracle
	}{
		{"no inputs", testConfig(nil, 3, 10), learner, oracle},
		{"zero window", testConfig([]Input{0}, 0, 10), learner, oracle},
		{"cap equals window", testConfig([]Input{0}, 10, 10), learner, oracle},
		{"cap below window", testConfig([]Input{0}, 10, 5), learner, oracle},
		{"duplicate inputs", testConfig([]Input{0, 1, 0}, 3, 10), learner, oracle},
		{"nil learner", testConfig([]Input{0}, 3, 10), nil, oracle},
		{"nil oracle", testConfig([]Input{0}, 3, 10), learner, nil},
		{"reference out of range", func() Config {
			c := testConfig([]Input{0, 1}, 3, 10)
			c.ReferenceIndex = 2
			return c
		}(), learner, oracle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.learner, tt.oracle)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRun_ConvergesAfterWindow(t *testing.T) {
	c, err := New(testConfig([]Input{0}, 3, 10), constantLearner(1, 2, 3), scriptedOracle(2, 3, 4, 5, 6))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State != StateConverged {
		t.Fatalf("state = %s, want converged", res.State)
	}
	if res.Sweeps != 5 {
		t.Errorf("sweeps = %d, want 5", res.Sweeps)
	}
	if res.Window == nil {
		t.Fatal("window is nil")
	}
	if res.Window.Start != 2 || res.Window.End != 4 {
		t.Errorf("window = [%d, %d], want [2, 4]", res.Window.Start, res.Window.End)
	}
	if got := res.Window.Len(); got != 3 {
		t.Errorf("window length = %d, want 3", got)
	}
	for i, rec := range res.Window.Records {
		if rec.Sweep != 2+i {
			t.Errorf("record %d sweep = %d, want %d", i, rec.Sweep, 2+i)
		}
		if got := rec.Outputs[0]; len(got) != 3 {
			t.Errorf("record %d output = %v, want 3 indices", i, got)
		}
	}
	if len(res.Trajectory) != 5 {
		t.Errorf("trajectory length = %d, want 5", len(res.Trajectory))
	}
}

func TestRun_ExhaustsWithoutStability(t *testing.T) {
	c, err := New(testConfig([]Input{0, 1}, 3, 10), constantLearner(4), scriptedOracle())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State != StateExhausted {
		t.Fatalf("state = %s, want exhausted", res.State)
	}
	if res.Window != nil {
		t.Errorf("window = %+v, want nil", res.Window)
	}
	if res.Sweeps != 10 {
		t.Errorf("sweeps = %d, want 10", res.Sweeps)
	}
	if len(res.Trajectory) != 10 {
		t.Errorf("trajectory length = %d, want 10", len(res.Trajectory))
	}
	if res.Converged() {
		t.Error("Converged() = true for exhausted run")
	}
}

func TestRun_StableRunShorterThanWindowExhausts(t *testing.T) {
	// Stable from sweep 8 gives only two stable sweeps before the cap of 10.
	c, err := New(testConfig([]Input{0}, 3, 10), constantLearner(1), stableFrom(8))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateExhausted {
		t.Fatalf("state = %s, want exhausted", res.State)
	}
	if res.StableSweeps != 2 {
		t.Errorf("stable sweeps = %d, want 2", res.StableSweeps)
	}
}

func TestStep_InstableResetsCounterAndLedger(t *testing.T) {
	c, err := New(testConfig([]Input{0, 1}, 5, 20), constantLearner(1), scriptedOracle(0, 1, 3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	steps := []struct {
		state  State
		stable int
		ledger int
	}{
		{StateStableAccumulating, 1, 1},
		{StateStableAccumulating, 2, 2},
		{StateRunning, 0, 0},
		{StateStableAccumulating, 1, 1},
	}

	for i, want := range steps {
		state, err := c.Step(ctx)
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if state != want.state {
			t.Errorf("sweep %d: state = %s, want %s", i, state, want.state)
		}
		if c.StableSweeps() != want.stable {
			t.Errorf("sweep %d: stable sweeps = %d, want %d", i, c.StableSweeps(), want.stable)
		}
		for _, in := range []Input{0, 1} {
			if got := c.LedgerLen(in); got != want.ledger {
				t.Errorf("sweep %d: ledger len(%s) = %d, want %d", i, in, got, want.ledger)
			}
		}
	}
}

func TestStep_LedgerLengthsStayEqual(t *testing.T) {
	inputs := []Input{0, 1, 2, 3}
	c, err := New(testConfig(inputs, 50, 60), constantLearner(7), scriptedOracle(0, 1, 2, 4, 5, 7, 8, 9))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 12; i++ {
		if _, err := c.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		want := c.LedgerLen(inputs[0])
		for _, in := range inputs[1:] {
			if got := c.LedgerLen(in); got != want {
				t.Fatalf("sweep %d: ledger len(%s) = %d, want %d", i, in, got, want)
			}
		}
		if c.StableSweeps() > want {
			t.Fatalf("sweep %d: stable sweeps %d exceeds ledger length %d", i, c.StableSweeps(), want)
		}
	}
}

func TestStep_StreaksAreDiagnosticOnly(t *testing.T) {
	// Input 0 changes every sweep until sweep 4; input 1 changes every sweep.
	// The oracle never reports stable, so streaks must not cause convergence.
	sweep := 0
	learner := LearnerFunc(func(in Input, _ bool) ([]int, error) {
		if in == 0 {
			if sweep < 4 {
				return []int{sweep}, nil
			}
			return []int{99}, nil
		}
		return []int{sweep + 100}, nil
	})
	oracle := OracleFunc(func(stats SweepStats) bool {
		sweep = stats.Sweep + 1
		return false
	})

	c, err := New(testConfig([]Input{0, 1}, 3, 10), learner, oracle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 8; i++ {
		if _, err := c.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}

	if got := c.Streak(0); got != 3 {
		t.Errorf("streak(0) = %d, want 3", got)
	}
	if got := c.Streak(1); got != 0 {
		t.Errorf("streak(1) = %d, want 0", got)
	}
	if c.State() != StateRunning {
		t.Errorf("state = %s, want running", c.State())
	}
}

func TestStep_StreakIgnoredAboveStreakMax(t *testing.T) {
	c, err := New(testConfig([]Input{0, 100}, 3, 10), constantLearner(1, 2), scriptedOracle())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := c.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if got := c.Streak(0); got != 3 {
		t.Errorf("streak(0) = %d, want 3", got)
	}
	if got := c.Streak(100); got != 0 {
		t.Errorf("streak(100) = %d, want 0", got)
	}
}

func TestStep_TrajectorySimilarity(t *testing.T) {
	sets := [][]int{{1, 2}, {1, 2}, {2, 3}, {}}
	i := 0
	learner := LearnerFunc(func(Input, bool) ([]int, error) {
		s := sets[i]
		i++
		return s, nil
	})

	c, err := New(testConfig([]Input{0}, 3, 10), learner, scriptedOracle())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range sets {
		if _, err := c.Step(context.Background()); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	traj := c.Result().Trajectory
	want := []float64{0, 1, 1.0 / 3.0, 0}
	for j, p := range traj {
		if p.Sweep != j {
			t.Errorf("point %d sweep = %d", j, p.Sweep)
		}
		if diff := p.Similarity - want[j]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("point %d similarity = %v, want %v", j, p.Similarity, want[j])
		}
		if p.Size != len(sets[j]) {
			t.Errorf("point %d size = %d, want %d", j, p.Size, len(sets[j]))
		}
	}
}

func TestStep_LearnerErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	learner := LearnerFunc(func(Input, bool) ([]int, error) {
		calls++
		if calls == 3 {
			return nil, boom
		}
		return []int{1}, nil
	})

	c, err := New(testConfig([]Input{0, 1}, 3, 10), learner, stableFrom(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want boom", err)
	}
	if res != nil {
		t.Errorf("Run result = %+v, want nil", res)
	}
	if !strings.Contains(err.Error(), "sweep 1") {
		t.Errorf("error %q does not name the sweep", err)
	}

	if _, err := c.Step(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Step after failure = %v, want boom", err)
	}
}

func TestStep_NegativeIndexRejected(t *testing.T) {
	c, err := New(testConfig([]Input{0}, 3, 10), constantLearner(1, -2), stableFrom(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Step(context.Background()); !errors.Is(err, ErrInvalidOutput) {
		t.Fatalf("Step error = %v, want ErrInvalidOutput", err)
	}
}

func TestStep_CancelledContext(t *testing.T) {
	c, err := New(testConfig([]Input{0}, 3, 10), constantLearner(1), stableFrom(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if c.Sweep() != 0 {
		t.Errorf("sweep = %d, want 0", c.Sweep())
	}
}

func TestStep_TerminalIsNoop(t *testing.T) {
	c, err := New(testConfig([]Input{0}, 1, 2), constantLearner(1), stableFrom(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sweeps := c.Sweep()

	state, err := c.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if state != StateConverged || c.Sweep() != sweeps {
		t.Errorf("Step in terminal state changed controller: state=%s sweep=%d", state, c.Sweep())
	}
}

func TestStep_OracleSeesSweepStats(t *testing.T) {
	var got []SweepStats
	oracle := OracleFunc(func(stats SweepStats) bool {
		got = append(got, stats)
		return false
	})
	learner := LearnerFunc(func(in Input, _ bool) ([]int, error) {
		if in == 0 {
			return []int{1, 2}, nil
		}
		return []int{1, 2, 3, 4}, nil
	})

	c, err := New(testConfig([]Input{0, 1}, 3, 10), learner, oracle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.Step(context.Background()); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	if len(got) != 2 {
		t.Fatalf("oracle calls = %d, want 2", len(got))
	}
	last := got[1]
	if last.Sweep != 1 || last.Inputs != 2 || last.SeenInputs != 4 {
		t.Errorf("stats = %+v", last)
	}
	if last.ActiveAverages[0] != 2 || last.ActiveAverages[1] != 4 {
		t.Errorf("averages = %v, want [2 4]", last.ActiveAverages)
	}
}

func TestRun_SinkLines(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig([]Input{0, 1.5}, 1, 2)
	cfg.Sink = &buf

	c, err := New(cfg, constantLearner(3, 1), stableFrom(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"[sweep=0000, streak=0, stableSweeps=0, input=0, outputSize=2, similarity=0] OUTPUT: 1, 3",
		"[sweep=0000, streak=0, stableSweeps=0, input=1.5, outputSize=2, similarity=0] OUTPUT: 1, 3",
		"[sweep=0001, streak=1, stableSweeps=0, input=0, outputSize=2, similarity=1] OUTPUT: 1, 3",
		"[sweep=0001, streak=1, stableSweeps=0, input=1.5, outputSize=2, similarity=1] OUTPUT: 1, 3",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d:\n got %q\nwant %q", i, lines[i], want[i])
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRun_SinkFailureDoesNotAbort(t *testing.T) {
	cfg := testConfig([]Input{0, 1}, 2, 5)
	cfg.Sink = failingWriter{}

	c, err := New(cfg, constantLearner(1), stableFrom(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Converged() {
		t.Errorf("state = %s, want converged", res.State)
	}
	if res.SinkErrors != 4 {
		t.Errorf("sink errors = %d, want 4", res.SinkErrors)
	}
}

func TestResult_IsSnapshot(t *testing.T) {
	c, err := New(testConfig([]Input{0}, 2, 5), constantLearner(1), stableFrom(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	res.Trajectory[0].Size = 99
	res.Window.Records[0].Sweep = 99
	res.Streaks[0] = 99

	again := c.Result()
	if again.Trajectory[0].Size == 99 || again.Window.Records[0].Sweep == 99 || again.Streaks[0] == 99 {
		t.Error("Result shares state with the controller")
	}
}

func TestResult_NestedSetsAreCopies(t *testing.T) {
	c, err := New(testConfig([]Input{0}, 2, 6), constantLearner(1, 2), stableFrom(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// Mid-run edits must not reach the tracker's previous set.
	mid := c.Result()
	mid.Trajectory[0].Output[0] = 888
	if _, err := c.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := c.Streak(0); got != 1 {
		t.Errorf("streak after edited snapshot = %d, want 1", got)
	}

	res := c.Result()
	if !res.Converged() {
		t.Fatalf("state = %s, want converged", res.State)
	}
	res.Window.Records[0].Outputs[0][0] = 777
	res.Trajectory[0].Output[0] = 888

	again := c.Result()
	if got := again.Window.Records[0].Outputs[0][0]; got != 1 {
		t.Errorf("window set = %d after editing a snapshot, want 1", got)
	}
	if got := again.Trajectory[0].Output[0]; got != 1 {
		t.Errorf("trajectory set = %d after editing a snapshot, want 1", got)
	}
}
