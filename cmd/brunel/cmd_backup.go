package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/brunel/internal/backup"
	"github.com/nvandessel/brunel/internal/config"
	"github.com/nvandessel/brunel/internal/pathutil"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up every stored run to a compressed file",
		Long: `Write all runs of the run store, with their spike records, to a
checksummed gzip file.

Default location: ~/.brunel/backups/brunel-backup-YYYYMMDD-HHMMSS.json.gz
Older backups are removed according to the backup retention settings
(default: keep the last 10).

Examples:
  brunel backup                                  # Backup to the default location
  brunel backup --output .brunel/backups/b.json.gz
  brunel backup list                             # List backups
  brunel backup verify <file>                    # Check a backup's checksum
  brunel backup restore <file>                   # Import runs from a backup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := backup.Dir(cfg.Backup.Dir)
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			if outputPath == "" {
				outputPath = backup.GenerateBackupPath(dir, time.Now())
			} else if err := checkBackupPath(cmd, cfg, outputPath); err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			runs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			snap, err := backup.Backup(cmd.Context(), runs, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			deleted, err := backup.ApplyRetention(filepath.Dir(outputPath), cfg.Backup.Policy())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
			}

			if jsonOut {
				var size int64
				if info, err := os.Stat(outputPath); err == nil {
					size = info.Size()
				}
				return printJSON(out, map[string]any{
					"path":        outputPath,
					"run_count":   len(snap.Runs),
					"spike_count": snap.SpikeCount(),
					"version":     snap.Version,
					"size_bytes":  size,
					"removed":     len(deleted),
				})
			}
			fmt.Fprintf(out, "Backup created: %d runs, %d spikes\n", len(snap.Runs), snap.SpikeCount())
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(deleted) > 0 {
				fmt.Fprintf(out, "  Removed %d old backups\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (default: auto-generated in the backup directory)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
		newBackupRestoreCmd(),
	)
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups with their run and spike counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := backup.Dir(cfg.Backup.Dir)
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			backups, err := backup.ListBackups(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			if jsonOut {
				return printJSON(out, map[string]any{
					"backups":     backups,
					"total_count": len(backups),
					"directory":   dir,
				})
			}
			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(out, "Backups in %s:\n", dir)
			var total int64
			for _, b := range backups {
				total += b.Size
				counts := "unreadable header"
				if b.Valid {
					counts = fmt.Sprintf("%d runs  %d spikes", b.Runs, b.Spikes)
				}
				fmt.Fprintf(out, "  %s  %8s  %s  %s\n",
					b.CreatedAt.Local().Format("2006-01-02 15:04"), formatBytes(b.Size), counts, filepath.Base(b.Path))
			}
			fmt.Fprintf(out, "Total: %d backups, %s\n", len(backups), formatBytes(total))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup's SHA-256 checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			path := args[0]

			err := backup.VerifyChecksum(path)
			if jsonOut {
				result := map[string]any{"file": path, "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				}
				if jsonErr := printJSON(out, result); jsonErr != nil {
					return jsonErr
				}
			}
			if err != nil {
				if !jsonOut {
					fmt.Fprintf(out, "FAILED: %v\n  File: %s\n", err, path)
				}
				return fmt.Errorf("checksum verification failed")
			}
			if !jsonOut {
				fmt.Fprintf(out, "OK: checksum verified\n  File: %s\n", path)
			}
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Import the runs of a backup into the run store",
		Long: `Restore runs from a backup file. Runs already present in the store,
matched by ID, are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			path := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := checkBackupPath(cmd, cfg, path); err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			runs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			result, err := backup.Restore(cmd.Context(), runs, path)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			if jsonOut {
				return printJSON(out, result)
			}
			fmt.Fprintf(out, "Restore complete: %d runs restored, %d skipped (%d spikes)\n",
				result.RunsRestored, result.RunsSkipped, result.SpikesRestored)
			return nil
		},
	}
}

// checkBackupPath confines user supplied backup paths to the backup
// directories.
func checkBackupPath(cmd *cobra.Command, cfg *config.BrunelConfig, path string) error {
	root, _ := cmd.Flags().GetString("root")
	allowed, err := pathutil.AllowedBackupDirs(root, cfg.Backup.Dir)
	if err != nil {
		return err
	}
	return pathutil.ValidatePath(path, allowed)
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1fGB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1fMB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1fKB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%dB", b)
	}
}
