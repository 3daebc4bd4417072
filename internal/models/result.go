package models

import "time"

// Result is the outcome of one experiment, as stored in the results table.
type Result struct {
	// Storage keys, assigned when the row is saved.
	PartitionKey string `json:"partition_key,omitempty"`
	RowKey       string `json:"row_key,omitempty"`

	ExperimentID string `json:"experiment_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`

	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration_ns"`
	DurationSec int64         `json:"duration_sec"`

	// Request parameters, echoed back.
	MinValue                float64 `json:"min_value"`
	MaxValue                float64 `json:"max_value"`
	BoostMax                float64 `json:"boost_max"`
	MinPctOverlapDutyCycles float64 `json:"min_pct_overlap_duty_cycles"`
	InputBits               int     `json:"input_bits"`
	NumColumns              int     `json:"num_columns"`
	CellsPerColumn          int     `json:"cells_per_column"`
	DutyCyclePeriod         int     `json:"duty_cycle_period"`
	LocalAreaDensity        int     `json:"local_area_density"`
	ActivationThreshold     int     `json:"activation_threshold"`

	// Outcome. FirstStableSweep and LastStableSweep bound the stability
	// window and are both 0 when the run did not converge.
	State            string `json:"state"`
	Converged        bool   `json:"converged"`
	Sweeps           int    `json:"sweeps"`
	FirstStableSweep int    `json:"first_stable_sweep"`
	LastStableSweep  int    `json:"last_stable_sweep"`

	// OutputFile is the local report path, replaced by the blob name once
	// the report has been uploaded.
	OutputFile string `json:"output_file"`
}

// NewResult starts a result for req with its parameters copied over.
func NewResult(req Request) *Result {
	return &Result{
		ExperimentID:            req.ExperimentID,
		Name:                    req.Name,
		Description:             req.Description,
		MinValue:                req.MinValue,
		MaxValue:                req.MaxValue,
		BoostMax:                req.BoostMax,
		MinPctOverlapDutyCycles: req.MinPctOverlapDutyCycles,
		InputBits:               req.InputBits,
		NumColumns:              req.NumColumns,
		CellsPerColumn:          req.CellsPerColumn,
		DutyCyclePeriod:         req.DutyCyclePeriod,
		LocalAreaDensity:        req.LocalAreaDensity,
		ActivationThreshold:     req.ActivationThreshold,
	}
}

// Finish records the end time and derived durations.
func (r *Result) Finish(end time.Time) {
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime)
	r.DurationSec = int64(r.Duration / time.Second)
}
