package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/brunel/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage brunel configuration",
		Long: `View and modify brunel configuration settings.

Configuration is stored in ~/.brunel/config.yaml, or in the file given by
--config. BRUNEL_* environment variables override it.

Examples:
  brunel config list                        # Show all settings
  brunel config get model.neurons           # Get a specific setting
  brunel config set network.workers 8       # Set a setting
  brunel config set output.format arrow`,
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
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out, cfg)
			}

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Configuration (%s):\n", path)
			section := ""
			for _, key := range config.Keys() {
				if s := sectionOf(key); s != section {
					section = s
					fmt.Fprintf(out, "\n%s:\n", section)
				}
				value, _ := cfg.Get(key)
				fmt.Fprintf(out, "  %-30s %v\n", key+":", valueOrDefault(value))
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
			out := cmd.OutOrStdout()
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := cfg.Get(key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}
			if jsonOut {
				return printJSON(out, map[string]any{"key": key, "value": value})
			}
			fmt.Fprintf(out, "%s = %v\n", key, value)
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
			out := cmd.OutOrStdout()
			key, value := args[0], args[1]

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			// Start from the file alone so environment overrides are not
			// persisted.
			cfg := config.Default()
			if fileCfg, err := config.LoadFromFile(path); err == nil {
				cfg = fileCfg
			}

			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			stored, _ := cfg.Get(key)
			if jsonOut {
				return printJSON(out, map[string]any{"key": key, "value": stored, "path": path})
			}
			fmt.Fprintf(out, "Set %s = %v\n", key, stored)
			return nil
		},
	}
}

// configPath returns the file named by --config, or ~/.brunel/config.yaml.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

func sectionOf(key string) string {
	section, _, _ := strings.Cut(key, ".")
	return section
}

func valueOrDefault(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return "(default)"
	}
	return v
}
