package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/brunel/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve brunel tools over the Model Context Protocol (stdio)",
		Long: `Start an MCP server on stdin/stdout. Agents can list scenarios, run
simulations and query stored runs with the tools brunel_scenarios,
brunel_run, brunel_rate and brunel_runs.

Tool calls are audited to <root>/.brunel/audit.jsonl.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "brunel",
				Version: version,
				Root:    root,
				Base:    cfg,
				Logger:  newLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
}
