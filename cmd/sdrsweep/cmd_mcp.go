package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve experiment tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  sdrsweep_run      Run an experiment and store its result
  sdrsweep_results  List stored results or fetch one by row key
  sdrsweep_export   Export the results table

Resources:
  sdrsweep://results/recent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("failed to resolve root: %w", err)
			}

			cfg := loadConfig(cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:       "sdrsweep",
				Version:    version,
				Root:       absRoot,
				Experiment: cfg.ExperimentSettings(),
				Logger:     newLogger(cfg),
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}
