package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/sdrsweep/internal/models"
	"github.com/nvandessel/sdrsweep/internal/sanitize"
)

// addRequestFlags registers the experiment parameters shared by run and submit.
func addRequestFlags(flags *pflag.FlagSet) {
	def := models.DefaultRequest()
	flags.String("file", "", "Read the request from a YAML file; flags override its values")
	flags.String("id", "", "Experiment ID (default: generated)")
	flags.String("name", def.Name, "Experiment name")
	flags.String("description", "", "Free-text description")
	flags.Float64("min", def.MinValue, "First input value (inclusive)")
	flags.Float64("max", def.MaxValue, "Last input value (exclusive)")
	flags.Float64("boost-max", def.BoostMax, "Maximum boost factor during the newborn stage")
	flags.Float64("min-pct-overlap", def.MinPctOverlapDutyCycles, "Minimum overlap duty cycle fraction")
	flags.Int("input-bits", def.InputBits, "Encoder output width in bits")
	flags.Int("columns", def.NumColumns, "Number of pooler columns")
	flags.Int("duty-cycle-period", def.DutyCyclePeriod, "Duty cycle moving-average period")
}

// requestFromFlags builds a request from defaults, then --file, then any
// flag set explicitly.
func requestFromFlags(cmd *cobra.Command) (models.Request, error) {
	req := models.DefaultRequest()
	flags := cmd.Flags()

	if path, _ := flags.GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read request file: %w", err)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("failed to parse request file %s: %w", path, err)
		}
	}

	if flags.Changed("id") {
		req.ExperimentID, _ = flags.GetString("id")
	}
	if flags.Changed("name") {
		req.Name, _ = flags.GetString("name")
	}
	if flags.Changed("description") {
		req.Description, _ = flags.GetString("description")
	}
	if flags.Changed("min") {
		req.MinValue, _ = flags.GetFloat64("min")
	}
	if flags.Changed("max") {
		req.MaxValue, _ = flags.GetFloat64("max")
	}
	if flags.Changed("boost-max") {
		req.BoostMax, _ = flags.GetFloat64("boost-max")
	}
	if flags.Changed("min-pct-overlap") {
		req.MinPctOverlapDutyCycles, _ = flags.GetFloat64("min-pct-overlap")
	}
	if flags.Changed("input-bits") {
		req.InputBits, _ = flags.GetInt("input-bits")
	}
	if flags.Changed("columns") {
		req.NumColumns, _ = flags.GetInt("columns")
	}
	if flags.Changed("duty-cycle-period") {
		req.DutyCyclePeriod, _ = flags.GetInt("duty-cycle-period")
	}

	req.Name = sanitize.Text(req.Name)
	req.Description = sanitize.Text(req.Description)

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}
