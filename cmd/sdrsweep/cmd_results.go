package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/backup"
	"github.com/nvandessel/sdrsweep/internal/pathutil"
	"github.com/nvandessel/sdrsweep/internal/store"
)

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect and move stored experiment results",
		Long: `Work with the results table in .sdrsweep/results.db under --root.

Examples:
  sdrsweep results list --limit 10
  sdrsweep results show <row-key>
  sdrsweep results export                    # ~/.sdrsweep/exports/sdrsweep-results-*.json.gz
  sdrsweep results export --keep 5 --max-age 30d
  sdrsweep results import <file>
  sdrsweep results verify <file>
  sdrsweep results exports`,
	}

	cmd.AddCommand(
		newResultsListCmd(),
		newResultsShowCmd(),
		newResultsExportCmd(),
		newResultsImportCmd(),
		newResultsVerifyCmd(),
		newResultsExportsCmd(),
	)

	return cmd
}

func newResultsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent results, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			rs, err := openResults(root)
			if err != nil {
				return err
			}
			defer rs.Close()

			ctx := cmd.Context()
			results, err := rs.List(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list results: %w", err)
			}
			total, err := rs.Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to count results: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"results": results,
					"count":   len(results),
					"total":   total,
				})
			}

			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results stored.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROW KEY\tNAME\tSTATE\tSWEEPS\tWINDOW\tFINISHED")
			for _, r := range results {
				window := "-"
				if r.Converged {
					window = fmt.Sprintf("[%d, %d]", r.FirstStableSweep, r.LastStableSweep)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.RowKey, r.Name, r.State, r.Sweeps, window, r.EndTime.Format("2006-01-02 15:04:05"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d results\n", len(results), total)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum results to show (0 for all)")

	return cmd
}

func newResultsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <row-key>",
		Short: "Show one result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			rs, err := openResults(root)
			if err != nil {
				return err
			}
			defer rs.Close()

			res, err := rs.Get(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no result with row key %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read result: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s)\n", res.Name, res.ExperimentID)
			if res.Description != "" {
				fmt.Fprintf(w, "  %s\n", res.Description)
			}
			fmt.Fprintf(w, "  State:       %s after %d sweeps\n", res.State, res.Sweeps)
			if res.Converged {
				fmt.Fprintf(w, "  Window:      [%d, %d]\n", res.FirstStableSweep, res.LastStableSweep)
			}
			fmt.Fprintf(w, "  Inputs:      [%g, %g)\n", res.MinValue, res.MaxValue)
			fmt.Fprintf(w, "  Learner:     %d bits, %d columns, boost %g\n", res.InputBits, res.NumColumns, res.BoostMax)
			fmt.Fprintf(w, "  Started:     %s\n", res.StartTime.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "  Duration:    %s\n", res.Duration)
			fmt.Fprintf(w, "  Output:      %s\n", res.OutputFile)
			return nil
		},
	}
}

func newResultsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all results to a compressed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")

			if outputPath == "" {
				dir, err := backup.DefaultDir()
				if err != nil {
					return fmt.Errorf("failed to get export directory: %w", err)
				}
				outputPath = backup.GeneratePath(dir)
			} else {
				allowed, err := pathutil.AllowedExportDirs(root)
				if err != nil {
					return fmt.Errorf("failed to determine allowed export dirs: %w", err)
				}
				if err := pathutil.ValidatePath(outputPath, allowed); err != nil {
					return fmt.Errorf("export path rejected: %w", err)
				}
			}

			var policy backup.RetentionPolicy = &backup.CountPolicy{MaxCount: keep}
			if maxAge != "" {
				d, err := backup.ParseDuration(maxAge)
				if err != nil {
					return fmt.Errorf("invalid --max-age: %w", err)
				}
				policy = &backup.AgePolicy{MaxAge: d}
			}

			rs, err := openResults(root)
			if err != nil {
				return err
			}
			defer rs.Close()

			header, err := backup.ExportResults(cmd.Context(), rs, outputPath)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			deleted, err := backup.ApplyRetention(filepath.Dir(outputPath), policy)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
			}

			if jsonOut {
				var sizeBytes int64
				if info, err := os.Stat(outputPath); err == nil {
					sizeBytes = info.Size()
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":       outputPath,
					"row_count":  header.RowCount,
					"checksum":   header.Checksum,
					"size_bytes": sizeBytes,
					"rotated":    len(deleted),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d results\n", header.RowCount)
			fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
			if len(deleted) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Removed %d old exports\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (default: auto-generated in ~/.sdrsweep/exports/)")
	cmd.Flags().Int("keep", 10, "Number of exports to keep in the output directory")
	cmd.Flags().String("max-age", "", "Keep exports newer than this instead (e.g. 30d, 2w, 720h)")

	return cmd
}

func newResultsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import results from an export file",
		Long: `Verify an export file and insert its results. Rows whose key already
exists are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			rs, err := openResults(root)
			if err != nil {
				return err
			}
			defer rs.Close()

			out, err := backup.ImportResults(cmd.Context(), rs, args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d results (%d already present)\n", out.Imported, out.Skipped)
			return nil
		},
	}
}

func newResultsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify export file integrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.Verify(filePath)
			if err != nil {
				if jsonOut {
					_ = writeJSON(cmd.OutOrStdout(), map[string]any{
						"file":  filePath,
						"valid": false,
						"error": err.Error(),
					})
				}
				return fmt.Errorf("verification failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"file":      filePath,
					"valid":     true,
					"row_count": header.RowCount,
					"checksum":  header.Checksum,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: checksum verified (%d results)\n", header.RowCount)
			fmt.Fprintf(cmd.OutOrStdout(), "  File: %s\n", filePath)
			return nil
		},
	}
}

func newResultsExportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "List export files in the default export directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := backup.DefaultDir()
			if err != nil {
				return fmt.Errorf("failed to get export directory: %w", err)
			}
			exports, err := backup.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list exports: %w", err)
			}

			if jsonOut {
				if exports == nil {
					exports = []backup.Info{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"directory": dir,
					"exports":   exports,
				})
			}

			if len(exports) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No exports found in %s\n", dir)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exports in %s:\n", dir)
			for _, e := range exports {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %d results  %d bytes  %s\n",
					filepath.Base(e.Path), e.Rows, e.Size, e.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
