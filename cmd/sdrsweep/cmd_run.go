package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/experiment"
	"github.com/nvandessel/sdrsweep/internal/report"
	"github.com/nvandessel/sdrsweep/internal/sanitize"
	"github.com/nvandessel/sdrsweep/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one experiment locally",
		Long: `Run an experiment in-process and write its sweep log and report.

The report goes to --output (default: .sdrsweep/outputs/<name>-<id>.txt
under --root) and the result row is stored in .sdrsweep/results.db.

Examples:
  sdrsweep run                                   # 100 inputs, default learner
  sdrsweep run --max 20 --columns 256            # Smaller experiment
  sdrsweep run --window-length 50 --max-sweeps 600
  sdrsweep run --file request.yaml --json
  sdrsweep run --max 20 --report json > report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")
			noSave, _ := cmd.Flags().GetBool("no-save")
			reportFormat, _ := cmd.Flags().GetString("report")
			switch report.Format(reportFormat) {
			case "", report.FormatText, report.FormatJSON:
			default:
				return fmt.Errorf("unsupported --report format %q (valid: text, json)", reportFormat)
			}

			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			if req.ExperimentID == "" {
				req.ExperimentID = uuid.NewString()
			}

			cfg := loadConfig(cmd)
			if cmd.Flags().Changed("window-length") {
				cfg.Experiment.WindowLength, _ = cmd.Flags().GetInt("window-length")
			}
			if cmd.Flags().Changed("max-sweeps") {
				cfg.Experiment.MaxSweeps, _ = cmd.Flags().GetInt("max-sweeps")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = filepath.Join(store.LocalPath(root), "outputs",
					fmt.Sprintf("%s-%s.txt", sanitize.Name(req.Name), req.ExperimentID))
			}

			logger := newLogger(cfg)
			decisions := newDecisionLogger(root, cfg)
			defer decisions.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			runner := experiment.New(cfg.ExperimentSettings(), logger, decisions)
			out, err := runner.Execute(ctx, req, outputPath)
			if err != nil {
				return fmt.Errorf("experiment failed: %w", err)
			}

			if !noSave {
				rs, err := openResults(root)
				if err != nil {
					return err
				}
				defer rs.Close()
				if _, err := rs.Save(ctx, out.Result); err != nil {
					return fmt.Errorf("failed to save result: %w", err)
				}
			}

			if reportFormat != "" {
				return report.Render(cmd.OutOrStdout(), out.Convergence, report.Format(reportFormat))
			}

			summary := report.Summarize(out.Convergence)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"experiment_id": out.Result.ExperimentID,
					"row_key":       out.Result.RowKey,
					"output_file":   out.Result.OutputFile,
					"duration_sec":  out.Result.DurationSec,
					"summary":       summary,
				})
			}

			w := cmd.OutOrStdout()
			if summary.Converged {
				fmt.Fprintf(w, "Converged after %d sweeps: stable window [%d, %d]\n",
					summary.Sweeps, *summary.WindowStart, *summary.WindowEnd)
			} else {
				fmt.Fprintf(w, "Did not converge within %d sweeps (%s)\n", summary.Sweeps, summary.State)
			}
			fmt.Fprintf(w, "  Experiment: %s (%s)\n", out.Result.Name, out.Result.ExperimentID)
			fmt.Fprintf(w, "  Reference:  input %s, final similarity %.3f, %d active\n",
				summary.Reference, summary.FinalSimilarity, summary.FinalSize)
			if top := report.TopStreaks(out.Convergence, 5); len(top) > 0 {
				fmt.Fprintf(w, "  Longest streaks:")
				for _, in := range top {
					fmt.Fprintf(w, " %s=%d", in, out.Convergence.Streaks[in])
				}
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  Report:     %s\n", out.Result.OutputFile)
			return nil
		},
	}

	addRequestFlags(cmd.Flags())
	cmd.Flags().String("output", "", "Report file path")
	cmd.Flags().Int("window-length", 0, "Stable sweeps required to converge (default from config)")
	cmd.Flags().Int("max-sweeps", 0, "Sweep cap (default from config)")
	cmd.Flags().Bool("no-save", false, "Do not store the result row")
	cmd.Flags().String("report", "", "Print the full report to stdout instead of a summary (text or json)")

	return cmd
}
