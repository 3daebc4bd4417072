package simulation

import (
	"testing"

	"github.com/nvandessel/sdrsweep/internal/convergence"
)

// AssertConverged asserts that the run converged with the window [start, end].
func AssertConverged(t *testing.T, result SimulationResult, start, end int) {
	t.Helper()
	res := result.Result
	if !res.Converged() {
		t.Fatalf("AssertConverged: state = %s after %d sweeps", res.State, res.Sweeps)
	}
	if res.Window.Start != start || res.Window.End != end {
		t.Errorf("AssertConverged: window = [%d, %d], want [%d, %d]", res.Window.Start, res.Window.End, start, end)
	}
	if res.Sweeps != end+1 {
		t.Errorf("AssertConverged: ran %d sweeps, want %d", res.Sweeps, end+1)
	}
}

// AssertExhausted asserts that the run gave up after sweeps sweeps without a window.
func AssertExhausted(t *testing.T, result SimulationResult, sweeps int) {
	t.Helper()
	res := result.Result
	if res.State != convergence.StateExhausted {
		t.Fatalf("AssertExhausted: state = %s", res.State)
	}
	if res.Window != nil {
		t.Errorf("AssertExhausted: window = [%d, %d], want none", res.Window.Start, res.Window.End)
	}
	if res.Sweeps != sweeps {
		t.Errorf("AssertExhausted: ran %d sweeps, want %d", res.Sweeps, sweeps)
	}
}

// AssertTrajectoryLen asserts one reference trajectory point per sweep.
func AssertTrajectoryLen(t *testing.T, result SimulationResult, want int) {
	t.Helper()
	if got := len(result.Result.Trajectory); got != want {
		t.Errorf("AssertTrajectoryLen: %d points, want %d", got, want)
	}
	for i, p := range result.Result.Trajectory {
		if p.Sweep != i {
			t.Errorf("AssertTrajectoryLen: point %d has sweep %d", i, p.Sweep)
		}
	}
}

// AssertStreak asserts input's streak after sweep.
func AssertStreak(t *testing.T, result SimulationResult, input convergence.Input, sweep, want int) {
	t.Helper()
	if sweep >= len(result.Steps) {
		t.Fatalf("AssertStreak: sweep %d not run (%d sweeps)", sweep, len(result.Steps))
	}
	if got := result.Steps[sweep].Streaks[input]; got != want {
		t.Errorf("AssertStreak: input %s at sweep %d: streak %d, want %d", input, sweep, got, want)
	}
}

// AssertLedgerTracksStableRun asserts that after every sweep each input's
// ledger holds exactly the sweeps since the last instable verdict.
func AssertLedgerTracksStableRun(t *testing.T, result SimulationResult) {
	t.Helper()
	sinceClear := 0
	for _, step := range result.Steps {
		if step.Verdict {
			sinceClear++
		} else {
			sinceClear = 0
		}
		for in, n := range step.LedgerLens {
			if n != sinceClear {
				t.Errorf("AssertLedgerTracksStableRun: sweep %d input %s: ledger %d, want %d", step.Sweep, in, n, sinceClear)
			}
		}
	}
}

// AssertStableCountResets asserts that the stable counter drops to zero on
// every instable verdict and otherwise grows by one.
func AssertStableCountResets(t *testing.T, result SimulationResult) {
	t.Helper()
	prev := 0
	for _, step := range result.Steps {
		want := 0
		if step.Verdict {
			want = prev + 1
		}
		if step.StableSweeps != want {
			t.Errorf("AssertStableCountResets: sweep %d: stable sweeps %d, want %d", step.Sweep, step.StableSweeps, want)
		}
		prev = step.StableSweeps
	}
}

// AssertWindowShape asserts that a captured window holds exactly WindowLength
// sweeps and ends at the sweep where the counter reached it.
func AssertWindowShape(t *testing.T, result SimulationResult) {
	t.Helper()
	res := result.Result
	if res.Window == nil {
		return
	}
	wl := result.Scenario.WindowLength
	if res.Window.Len() != wl || res.Window.End-res.Window.Start+1 != wl {
		t.Errorf("AssertWindowShape: window [%d, %d] with %d records, want %d", res.Window.Start, res.Window.End, res.Window.Len(), wl)
	}
	for _, step := range result.Steps {
		if step.StableSweeps == wl {
			if step.Sweep != res.Window.End {
				t.Errorf("AssertWindowShape: counter reached %d at sweep %d but window ends at %d", wl, step.Sweep, res.Window.End)
			}
			break
		}
	}
	for i, rec := range res.Window.Records {
		if rec.Sweep != res.Window.Start+i {
			t.Errorf("AssertWindowShape: record %d has sweep %d", i, rec.Sweep)
		}
		if len(rec.Outputs) != len(res.Inputs) {
			t.Errorf("AssertWindowShape: record %d has %d inputs, want %d", i, len(rec.Outputs), len(res.Inputs))
		}
	}
}

// AssertExhaustionIff asserts that the run exhausted exactly when the counter
// never reached WindowLength within MaxSweeps.
func AssertExhaustionIff(t *testing.T, result SimulationResult) {
	t.Helper()
	reached := false
	for _, step := range result.Steps {
		if step.StableSweeps >= result.Scenario.WindowLength {
			reached = true
			break
		}
	}
	exhausted := result.Result.State == convergence.StateExhausted
	if exhausted == reached {
		t.Errorf("AssertExhaustionIff: exhausted=%v but window reached=%v", exhausted, reached)
	}
	if exhausted && result.Result.Sweeps != result.Scenario.MaxSweeps {
		t.Errorf("AssertExhaustionIff: exhausted after %d sweeps, want %d", result.Result.Sweeps, result.Scenario.MaxSweeps)
	}
}

// AssertOnlyOracleConverges asserts that no state change happened on a sweep
// whose verdict was instable, whatever the streaks were.
func AssertOnlyOracleConverges(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, step := range result.Steps {
		if !step.Verdict && step.State != convergence.StateRunning && step.State != convergence.StateExhausted {
			t.Errorf("AssertOnlyOracleConverges: sweep %d instable but state %s", step.Sweep, step.State)
		}
	}
}
