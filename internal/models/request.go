package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRequest is returned by Request.Validate.
var ErrInvalidRequest = errors.New("invalid experiment request")

// Upper bounds enforced by Validate.
const (
	MaxInputs     = 10_000
	MaxInputValue = 1e9
	MaxInputBits  = 1 << 16
	MaxColumns    = 1 << 16
)

// Request describes one experiment, as submitted to the request queue.
type Request struct {
	// Identity
	ExperimentID string `json:"experiment_id" yaml:"experiment_id"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`

	// Delivery metadata, set by the queue on receive. Never serialized.
	MessageID      string `json:"-" yaml:"-"`
	MessageReceipt string `json:"-" yaml:"-"`

	// Input range. Inputs are the integers in [MinValue, MaxValue).
	MinValue float64 `json:"min_value" yaml:"min_value"`
	MaxValue float64 `json:"max_value" yaml:"max_value"`

	// Learner parameters
	BoostMax                float64 `json:"boost_max" yaml:"boost_max"`
	MinPctOverlapDutyCycles float64 `json:"min_pct_overlap_duty_cycles" yaml:"min_pct_overlap_duty_cycles"`
	InputBits               int     `json:"input_bits" yaml:"input_bits"`
	NumColumns              int     `json:"num_columns" yaml:"num_columns"`
	DutyCyclePeriod         int     `json:"duty_cycle_period" yaml:"duty_cycle_period"`

	// LocalAreaDensity, when positive, is the number of winning columns per
	// input. Otherwise the pooler picks 2% of NumColumns.
	LocalAreaDensity int `json:"local_area_density" yaml:"local_area_density"`

	// CellsPerColumn and ActivationThreshold configure sequence memory, which
	// this experiment does not run. They are recorded with the result only.
	CellsPerColumn      int `json:"cells_per_column" yaml:"cells_per_column"`
	ActivationThreshold int `json:"activation_threshold" yaml:"activation_threshold"`
}

// DefaultRequest returns the standard experiment: 100 inputs over 200 input
// bits and 1024 columns.
func DefaultRequest() Request {
	return Request{
		Name:                    "spatial-learning",
		MinValue:                0,
		MaxValue:                100,
		BoostMax:                5.0,
		MinPctOverlapDutyCycles: 0.001,
		InputBits:               200,
		NumColumns:              1024,
		CellsPerColumn:          10,
		DutyCyclePeriod:         100,
		LocalAreaDensity:        -1,
		ActivationThreshold:     10,
	}
}

// InputCount returns how many integer inputs the range yields.
func (r Request) InputCount() int {
	n := int(r.MaxValue) - int(r.MinValue)
	if n < 0 {
		return 0
	}
	return n
}

// Inputs returns the integers in [MinValue, MaxValue), truncating both bounds.
func (r Request) Inputs() []float64 {
	out := make([]float64, 0, r.InputCount())
	for i := int(r.MinValue); i < int(r.MaxValue); i++ {
		out = append(out, float64(i))
	}
	return out
}

// Validate checks the request. All failures wrap ErrInvalidRequest.
func (r Request) Validate() error {
	for name, v := range map[string]float64{
		"min_value":                   r.MinValue,
		"max_value":                   r.MaxValue,
		"boost_max":                   r.BoostMax,
		"min_pct_overlap_duty_cycles": r.MinPctOverlapDutyCycles,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidRequest, name)
		}
	}

	if math.Abs(r.MinValue) > MaxInputValue || math.Abs(r.MaxValue) > MaxInputValue {
		return fmt.Errorf("%w: input range [%v, %v) exceeds magnitude %g", ErrInvalidRequest, r.MinValue, r.MaxValue, MaxInputValue)
	}
	if r.InputCount() < 1 {
		return fmt.Errorf("%w: range [%v, %v) contains no integer inputs", ErrInvalidRequest, r.MinValue, r.MaxValue)
	}
	if n := r.InputCount(); n > MaxInputs {
		return fmt.Errorf("%w: range yields %d inputs, limit is %d", ErrInvalidRequest, n, MaxInputs)
	}
	if r.InputBits <= 0 || r.InputBits > MaxInputBits {
		return fmt.Errorf("%w: input_bits must be in [1, %d], got %d", ErrInvalidRequest, MaxInputBits, r.InputBits)
	}
	if r.NumColumns <= 0 || r.NumColumns > MaxColumns {
		return fmt.Errorf("%w: num_columns must be in [1, %d], got %d", ErrInvalidRequest, MaxColumns, r.NumColumns)
	}
	if r.LocalAreaDensity > r.NumColumns {
		return fmt.Errorf("%w: local_area_density (%d) exceeds num_columns (%d)", ErrInvalidRequest, r.LocalAreaDensity, r.NumColumns)
	}
	if r.BoostMax < 0 {
		return fmt.Errorf("%w: boost_max must not be negative, got %v", ErrInvalidRequest, r.BoostMax)
	}
	if r.MinPctOverlapDutyCycles < 0 || r.MinPctOverlapDutyCycles > 1 {
		return fmt.Errorf("%w: min_pct_overlap_duty_cycles must be within [0, 1], got %v", ErrInvalidRequest, r.MinPctOverlapDutyCycles)
	}
	if r.DutyCyclePeriod <= 0 {
		return fmt.Errorf("%w: duty_cycle_period must be positive, got %d", ErrInvalidRequest, r.DutyCyclePeriod)
	}
	if r.CellsPerColumn < 0 || r.ActivationThreshold < 0 {
		return fmt.Errorf("%w: cells_per_column and activation_threshold must not be negative", ErrInvalidRequest)
	}
	return nil
}
