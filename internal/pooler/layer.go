package pooler

import "github.com/nvandessel/sdrsweep/internal/convergence"

// Layer chains an encoder and a pooler into a convergence.Learner.
type Layer struct {
	Encoder *ScalarEncoder
	Pooler  *Pooler
}

// Compute encodes in and returns the pooler's active columns.
func (l *Layer) Compute(in convergence.Input, learn bool) ([]int, error) {
	bits, err := l.Encoder.Encode(float64(in))
	if err != nil {
		return nil, err
	}
	return l.Pooler.Compute(bits, learn)
}

var _ convergence.Learner = (*Layer)(nil)
