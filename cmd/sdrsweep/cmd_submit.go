package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/queue"
)

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an experiment to the work queue",
		Long: `Publish an experiment request to the NATS work queue for a worker to run.

The queue connection comes from the queue section of the config
(NATS_URL and NATS_TOKEN override it).

Examples:
  sdrsweep submit --name baseline
  sdrsweep submit --name wide --columns 2048 --count 3
  sdrsweep submit --file request.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			count, _ := cmd.Flags().GetInt("count")
			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %d", count)
			}

			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			if count > 1 && req.ExperimentID != "" {
				return fmt.Errorf("--id cannot be combined with --count")
			}

			cfg := loadConfig(cmd)
			q, err := queue.Connect(cfg.QueueSettings(), queue.WithLogger(newLogger(cfg)))
			if err != nil {
				return err
			}
			defer q.Close()

			ids := make([]string, 0, count)
			for i := 0; i < count; i++ {
				id, err := q.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			depth, err := q.Depth()
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"experiment_ids": ids,
					"queue_depth":    depth,
				})
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s (%s)\n", req.Name, id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Queue depth: %d\n", depth)
			return nil
		},
	}

	addRequestFlags(cmd.Flags())
	cmd.Flags().Int("count", 1, "Number of copies to submit")

	return cmd
}
