package simulation

import (
	"github.com/nvandessel/sdrsweep/internal/convergence"
)

// Inputs builds an input list from integer values.
func Inputs(values ...int) []convergence.Input {
	out := make([]convergence.Input, len(values))
	for i, v := range values {
		out[i] = convergence.Input(v)
	}
	return out
}

// Constant produces the same set for every input on every sweep.
func Constant(set ...int) OutputScript {
	return func(int, convergence.Input) []int { return set }
}

// Drifting produces a set that changes every sweep: size consecutive indices
// starting at the sweep number, offset per input so inputs never collide.
func Drifting(size int) OutputScript {
	return func(sweep int, in convergence.Input) []int {
		base := int(in)*1000 + sweep
		out := make([]int, size)
		for i := range out {
			out[i] = base + i
		}
		return out
	}
}

// SettlesAt drifts until sweep settle, then repeats the set it produced at
// settle forever.
func SettlesAt(settle, size int) OutputScript {
	drift := Drifting(size)
	return func(sweep int, in convergence.Input) []int {
		return drift(min(sweep, settle), in)
	}
}

// PerInput routes each input to its own script. Inputs without one produce
// an empty set.
func PerInput(scripts map[convergence.Input]OutputScript) OutputScript {
	return func(sweep int, in convergence.Input) []int {
		if s, ok := scripts[in]; ok {
			return s(sweep, in)
		}
		return nil
	}
}

// Never reports every sweep as instable.
func Never() VerdictScript {
	return func(int) bool { return false }
}

// Always reports every sweep as stable.
func Always() VerdictScript {
	return func(int) bool { return true }
}

// StableFrom reports stable from sweep n on.
func StableFrom(n int) VerdictScript {
	return func(sweep int) bool { return sweep >= n }
}

// Pattern reads verdicts from a string of 'S' (stable) and 'I' (instable),
// one per sweep. Sweeps past the end repeat the last character.
func Pattern(p string) VerdictScript {
	return func(sweep int) bool {
		if p == "" {
			return false
		}
		if sweep >= len(p) {
			sweep = len(p) - 1
		}
		return p[sweep] == 'S'
	}
}
