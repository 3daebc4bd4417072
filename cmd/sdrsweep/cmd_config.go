package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sdrsweep/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sdrsweep configuration",
		Long: `View and modify sdrsweep configuration settings.

Configuration is stored in ~/.sdrsweep/config.yaml. Environment variables
(SDRSWEEP_*, NATS_URL, NATS_TOKEN, OUTPUT_FILE_PATH) override it at load time.

Examples:
  sdrsweep config list                            # Show all settings
  sdrsweep config get experiment.window_length    # Get a specific setting
  sdrsweep config set queue.url nats://queue:4222 # Set a setting
  sdrsweep config set queue.token '${NATS_TOKEN}'`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				values := make(map[string]any, len(config.Keys))
				for _, key := range config.Keys {
					values[key], _ = cfg.Get(key)
				}
				return writeJSON(cmd.OutOrStdout(), values)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Configuration (~/.sdrsweep/config.yaml):")
			for _, key := range config.Keys {
				value, _ := cfg.Get(key)
				if s, ok := value.(string); ok && s == "" {
					value = "(not set)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-36s %v\n", key+":", value)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := cfg.Get(key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := config.DefaultPath()
			if err != nil {
				return err
			}

			// Load the file alone so env overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err = config.LoadFromFile(path)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			shown, _ := cfg.Get(key)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"key":   key,
					"value": shown,
					"path":  path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, shown)
			return nil
		},
	}
}
