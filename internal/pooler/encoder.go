package pooler

import (
	"errors"
	"fmt"
	"math"
)

// DefaultWidth is the number of active bits per encoded value.
const DefaultWidth = 15

// ErrOutOfRange is returned when a value lies outside the encoder range.
var ErrOutOfRange = errors.New("value outside encoder range")

// ScalarEncoder encodes a value in [Min, Max] as Width contiguous active bits
// out of Bits. Values are not clipped.
type ScalarEncoder struct {
	Bits  int
	Width int
	Min   float64
	Max   float64
}

// NewScalarEncoder validates the parameters and returns an encoder.
func NewScalarEncoder(bits, width int, minVal, maxVal float64) (*ScalarEncoder, error) {
	if width <= 0 {
		return nil, fmt.Errorf("encoder width must be positive, got %d", width)
	}
	if bits < width {
		return nil, fmt.Errorf("encoder needs at least %d bits, got %d", width, bits)
	}
	if !(maxVal >= minVal) {
		return nil, fmt.Errorf("encoder range [%v, %v] is empty", minVal, maxVal)
	}
	return &ScalarEncoder{Bits: bits, Width: width, Min: minVal, Max: maxVal}, nil
}

// Buckets returns the number of distinct encodings.
func (e *ScalarEncoder) Buckets() int {
	return e.Bits - e.Width + 1
}

// Encode returns the sorted active bit indices for v.
func (e *ScalarEncoder) Encode(v float64) ([]int, error) {
	if math.IsNaN(v) || v < e.Min || v > e.Max {
		return nil, fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, v, e.Min, e.Max)
	}

	start := 0
	if span := e.Max - e.Min; span > 0 {
		start = int(math.Round((v - e.Min) / span * float64(e.Buckets()-1)))
	}

	bits := make([]int, e.Width)
	for i := range bits {
		bits[i] = start + i
	}
	return bits, nil
}
