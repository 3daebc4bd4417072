// Package mcp provides an MCP (Model Context Protocol) server for sdrsweep.
package mcp

import (
	"time"

	"github.com/nvandessel/sdrsweep/internal/report"
)

// RunInput defines the input for the sdrsweep_run tool. Zero values keep the
// default request parameters.
type RunInput struct {
	Name                    string  `json:"name,omitempty" jsonschema:"Experiment name used for the report file (default: spatial-learning)"`
	Description             string  `json:"description,omitempty" jsonschema:"Free-text description stored with the result"`
	MinValue                float64 `json:"min_value,omitempty" jsonschema:"Lowest input value, inclusive (default: 0)"`
	MaxValue                float64 `json:"max_value,omitempty" jsonschema:"Highest input value, exclusive (default: 100)"`
	BoostMax                float64 `json:"boost_max,omitempty" jsonschema:"Maximum boost factor during the newborn stage (default: 5)"`
	MinPctOverlapDutyCycles float64 `json:"min_pct_overlap_duty_cycles,omitempty" jsonschema:"Minimum overlap duty cycle as a fraction of the neighbourhood maximum (default: 0.001)"`
	InputBits               int     `json:"input_bits,omitempty" jsonschema:"Width of the encoded input (default: 200)"`
	NumColumns              int     `json:"num_columns,omitempty" jsonschema:"Number of columns in the learning layer (default: 1024)"`
	WindowLength            int     `json:"window_length,omitempty" jsonschema:"Consecutive stable sweeps required to converge (default: 100)"`
	MaxSweeps               int     `json:"max_sweeps,omitempty" jsonschema:"Sweep limit before giving up (default: 1000)"`
}

// RunOutput defines the output for the sdrsweep_run tool.
type RunOutput struct {
	ExperimentID string         `json:"experiment_id" jsonschema:"Identifier assigned to the run"`
	RowKey       string         `json:"row_key,omitempty" jsonschema:"Results table key, empty if the result could not be stored"`
	OutputFile   string         `json:"output_file" jsonschema:"Path of the diagnostic and report file"`
	Summary      report.Summary `json:"summary" jsonschema:"Outcome of the run"`
	Message      string         `json:"message" jsonschema:"Human-readable result message"`
}

// ResultsInput defines the input for the sdrsweep_results tool.
type ResultsInput struct {
	RowKey string `json:"row_key,omitempty" jsonschema:"Return only the result with this key"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of results, newest first (default: 20)"`
}

// ResultsOutput defines the output for the sdrsweep_results tool.
type ResultsOutput struct {
	Results []ResultItem `json:"results" jsonschema:"Stored results"`
	Count   int          `json:"count" jsonschema:"Number of results returned"`
	Total   int          `json:"total" jsonschema:"Number of results in the table"`
}

// ResultItem is a list view of a stored result.
type ResultItem struct {
	RowKey           string    `json:"row_key"`
	ExperimentID     string    `json:"experiment_id"`
	Name             string    `json:"name"`
	State            string    `json:"state"`
	Converged        bool      `json:"converged"`
	Sweeps           int       `json:"sweeps"`
	FirstStableSweep int       `json:"first_stable_sweep"`
	LastStableSweep  int       `json:"last_stable_sweep"`
	DurationSec      int64     `json:"duration_sec"`
	StartTime        time.Time `json:"start_time"`
	OutputFile       string    `json:"output_file"`
}

// ExportInput defines the input for the sdrsweep_export tool.
type ExportInput struct {
	OutputPath string `json:"output_path,omitempty" jsonschema:"Destination file inside ~/.sdrsweep/exports or <root>/.sdrsweep/exports (default: a timestamped file in ~/.sdrsweep/exports)"`
}

// ExportOutput defines the output for the sdrsweep_export tool.
type ExportOutput struct {
	Path      string `json:"path" jsonschema:"Export file path"`
	RowCount  int    `json:"row_count" jsonschema:"Number of results exported"`
	Checksum  string `json:"checksum" jsonschema:"SHA-256 of the compressed payload"`
	SizeBytes int64  `json:"size_bytes" jsonschema:"File size in bytes"`
	Message   string `json:"message" jsonschema:"Human-readable result message"`
}
