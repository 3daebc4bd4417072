package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/queue"
)

func newOutputsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Browse reports uploaded by workers",
		Long: `List and download the report files workers upload to the output bucket.

Examples:
  sdrsweep outputs list
  sdrsweep outputs get baseline-3f1c...txt
  sdrsweep outputs get baseline-3f1c...txt --output report.txt`,
	}

	cmd.AddCommand(newOutputsListCmd(), newOutputsGetCmd())
	return cmd
}

func connectQueue(cmd *cobra.Command) (*queue.Queue, error) {
	cfg := loadConfig(cmd)
	return queue.Connect(cfg.QueueSettings(), queue.WithLogger(newLogger(cfg)))
}

func newOutputsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			q, err := connectQueue(cmd)
			if err != nil {
				return err
			}
			defer q.Close()

			objects, err := q.ListOutputs(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				if objects == nil {
					objects = []queue.Object{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"outputs": objects})
			}
			if len(objects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reports uploaded.")
				return nil
			}
			for _, o := range objects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %d bytes  %s\n", o.Name, o.Size, o.Modified.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newOutputsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Download an uploaded report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputPath, _ := cmd.Flags().GetString("output")

			q, err := connectQueue(cmd)
			if err != nil {
				return err
			}
			defer q.Close()

			data, err := q.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if outputPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), outputPath)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Write to this file instead of stdout")
	return cmd
}
