package simulation

import (
	"fmt"
	"math/rand"
	"testing"
)

// randomVerdicts draws a fixed verdict per sweep so reruns are reproducible.
func randomVerdicts(seed int64, n int, pStable float64) VerdictScript {
	rng := rand.New(rand.NewSource(seed))
	verdicts := make([]bool, n)
	for i := range verdicts {
		verdicts[i] = rng.Float64() < pStable
	}
	return func(sweep int) bool {
		if sweep < len(verdicts) {
			return verdicts[sweep]
		}
		return false
	}
}

func TestProperty_RandomVerdicts(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		for _, p := range []float64{0.3, 0.7, 0.9} {
			t.Run(fmt.Sprintf("seed%d_p%.1f", seed, p), func(t *testing.T) {
				r := NewRunner(t)
				result := r.Run(Scenario{
					Name:         "random",
					Inputs:       Inputs(0, 1, 2, 150),
					WindowLength: 4,
					MaxSweeps:    30,
					Outputs:      SettlesAt(int(seed%10), 3),
					Verdicts:     randomVerdicts(seed, 30, p),
				})

				AssertExhaustionIff(t, result)
				AssertStableCountResets(t, result)
				AssertLedgerTracksStableRun(t, result)
				AssertWindowShape(t, result)
				AssertOnlyOracleConverges(t, result)
				AssertTrajectoryLen(t, result, result.Result.Sweeps)

				// Inputs above the streak limit never report a streak.
				for _, step := range result.Steps {
					if step.Streaks[150] != 0 {
						t.Fatalf("sweep %d: streak %d for input above limit", step.Sweep, step.Streaks[150])
					}
				}
			})
		}
	}
}

func TestProperty_LedgerLengthsEqualAcrossInputs(t *testing.T) {
	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:         "ledger-lengths",
		Inputs:       Inputs(3, 1, 4, 5, 9),
		WindowLength: 5,
		MaxSweeps:    40,
		Outputs:      Drifting(2),
		Verdicts:     randomVerdicts(7, 40, 0.6),
	})

	for _, step := range result.Steps {
		want := -1
		for in, n := range step.LedgerLens {
			if want == -1 {
				want = n
				continue
			}
			if n != want {
				t.Errorf("sweep %d: input %s ledger %d, others %d", step.Sweep, in, n, want)
			}
		}
	}
}

func TestProperty_ReferenceSelection(t *testing.T) {
	for ref := 0; ref < 3; ref++ {
		t.Run(fmt.Sprintf("ref%d", ref), func(t *testing.T) {
			r := NewRunner(t)
			result := r.Run(Scenario{
				Name:         "reference",
				Inputs:       Inputs(10, 20, 30),
				WindowLength: 2,
				MaxSweeps:    5,
				Reference:    ref,
				Outputs:      Drifting(1),
				Verdicts:     Never(),
			})

			wantIn := result.Scenario.Inputs[ref]
			if result.Result.Reference != wantIn {
				t.Fatalf("reference = %s, want %s", result.Result.Reference, wantIn)
			}
			for _, p := range result.Result.Trajectory {
				want := Drifting(1)(p.Sweep, wantIn)
				if len(p.Output) != 1 || p.Output[0] != want[0] {
					t.Errorf("sweep %d: output %v, want %v", p.Sweep, p.Output, want)
				}
			}
		})
	}
}
