package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/brunel/internal/config"
	"github.com/nvandessel/brunel/internal/logging"
	"github.com/nvandessel/brunel/internal/store"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "brunel",
		Short: "Sparse spiking network simulator after Brunel (2000)",
		Long: `brunel simulates a sparsely connected network of leaky integrate-and-fire
neurons and reproduces the four network states of Brunel (2000), figure 8.

Run "brunel run" without arguments for the interactive scenario menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory (receives .brunel/)")
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default ~/.brunel/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides configuration)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newNeuronCmd(),
		newExportCmd(),
		newPlotCmd(),
		newRateCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newBackupCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
					"date":    date,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "brunel version %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

// loadConfig loads the configuration named by --config, applies
// --log-level and validates the result.
func loadConfig(cmd *cobra.Command) (*config.BrunelConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if err := cfg.Set("logging.level", level); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns the operational logger, writing to stderr.
func newLogger(cmd *cobra.Command, cfg *config.BrunelConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// newEventLogger opens the event log under --root/.brunel. It is nil
// at info level.
func newEventLogger(cmd *cobra.Command, cfg *config.BrunelConfig) *logging.EventLogger {
	root, _ := cmd.Flags().GetString("root")
	return logging.NewEventLogger(store.LocalBrunelPath(root), cfg.Logging.Level)
}

// openStore opens the SQLite run store of cfg.
func openStore(cfg *config.BrunelConfig) (*store.SQLiteRunStore, error) {
	s, err := store.OpenDefault(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
