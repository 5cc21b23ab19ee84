package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/brunel/internal/export"
	"github.com/nvandessel/brunel/internal/figure"
	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
	"github.com/nvandessel/brunel/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored simulation runs",
		Long: `List runs persisted in the run store, newest first.

Examples:
  brunel runs               # Last 20 runs
  brunel runs --limit 0     # Every run
  brunel runs --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			list, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				return printJSON(out, map[string]any{"runs": list, "count": len(list)})
			}
			if len(list) == 0 {
				fmt.Fprintf(out, "No runs stored in %s\n", storeRecordsDir(cfg))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCENARIO\tCREATED\tNEURONS\tSTEPS\tSPIKES\tRATE (Hz)")
			for _, r := range list {
				rate := "-"
				if r.Rate != nil {
					rate = fmt.Sprintf("%.6g", *r.Rate)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.Scenario,
					r.CreatedAt.Local().Format(time.DateTime), r.Params.Neurons, r.Steps, r.SpikeCount, rate)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 = all)")
	return cmd
}

func newRateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate <run-id> <begin> <end>",
		Short: "Mean population firing rate of a stored run",
		Long: `Compute the mean firing rate, in Hz, of a stored run over the step
interval [begin, end]. Both ends are inclusive.

Example:
  brunel rate run-1a2b3c4d5e6f 2000 12000`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			begin, end, err := parseInterval(args[1], args[2])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			rate, err := store.MeanSpikeRate(cmd.Context(), runs, args[0], begin, end)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out, map[string]any{"run_id": args[0], "begin": begin, "end": end, "rate_hz": rate})
			}
			fmt.Fprintf(out, "The neurons have a mean firing frequency of %.6g Hz in [%d, %d].\n", rate, begin, end)
			return nil
		},
	}
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id> <path>",
		Short: "Write the spikes of a stored run to a file",
		Long: `Export the spike record of a stored run as text or Arrow IPC.

The format follows --format, or the file extension (.arrow) when the flag
is not given. --begin and --end restrict the export to a step window.

Examples:
  brunel export run-1a2b3c4d5e6f spikes.txt
  brunel export run-1a2b3c4d5e6f spikes.arrow --begin 10000 --end 12000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			formatFlag, _ := cmd.Flags().GetString("format")
			out := cmd.OutOrStdout()
			id, path := args[0], args[1]

			window, err := windowFlags(cmd)
			if err != nil {
				return err
			}
			format := export.FormatText
			if cmd.Flags().Changed("format") {
				if format, err = export.ParseFormat(formatFlag); err != nil {
					return err
				}
			} else if strings.EqualFold(filepath.Ext(path), export.FormatArrow.Extension()) {
				format = export.FormatArrow
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			run, err := runs.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run not found: %s", id)
			}
			spikes, err := runs.Spikes(cmd.Context(), id, window)
			if err != nil {
				return err
			}

			written, err := export.WriteFile(path, format, slices.Values(spikes), run.Params.StepSize)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out, map[string]any{"run_id": id, "path": path, "format": format, "records": written, "window": window.String()})
			}
			fmt.Fprintf(out, "Wrote %d spikes of %s to %s (%s)\n", written, id, path, format)
			return nil
		},
	}

	cmd.Flags().String("format", string(export.FormatText), "Output format: text or arrow")
	cmd.Flags().Int("begin", -1, "First step to export (default: whole record)")
	cmd.Flags().Int("end", -1, "Last step to export")
	return cmd
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <spike-file>",
		Short: "Render a raster and a histogram from a spike file",
		Long: `Read a text or Arrow spike file and render two PNG figures next to it:
a raster plot of the first 30 neurons and a histogram of spike counts per
time step.

Examples:
  brunel plot simulationData.txt
  brunel plot spikes.arrow --out figures/ --step-size 0.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, _ := cmd.Flags().GetString("out")
			stepSize, _ := cmd.Flags().GetFloat64("step-size")
			out := cmd.OutOrStdout()
			path := args[0]

			records, err := export.ReadFile(path, "", stepSize)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = filepath.Dir(path)
			}
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			paths, err := figure.SaveAll(dir, base, records, stepSize)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(out, map[string]any{"records": len(records), "figures": paths})
			}
			fmt.Fprintf(out, "Plotted %d spikes: %s, %s\n", len(records), paths.Raster, paths.Histogram)
			return nil
		},
	}

	cmd.Flags().String("out", "", "Output directory (default: next to the spike file)")
	cmd.Flags().Float64("step-size", params.DefaultStepSize, "Step size in ms the file was written with")
	return cmd
}

func parseInterval(b, e string) (int, int, error) {
	begin, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid begin step %q", b)
	}
	end, err := strconv.Atoi(e)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end step %q", e)
	}
	if begin < 0 || end < begin {
		return 0, 0, fmt.Errorf("interval [%d, %d] is empty or negative", begin, end)
	}
	return begin, end, nil
}

// windowFlags builds a window from --begin and --end. Neither flag selects
// the whole record.
func windowFlags(cmd *cobra.Command) (network.Window, error) {
	begin, _ := cmd.Flags().GetInt("begin")
	end, _ := cmd.Flags().GetInt("end")
	if !cmd.Flags().Changed("begin") && !cmd.Flags().Changed("end") {
		return network.All(), nil
	}
	if !cmd.Flags().Changed("begin") || !cmd.Flags().Changed("end") {
		return network.Window{}, fmt.Errorf("--begin and --end must be given together")
	}
	if begin < 0 || end < begin {
		return network.Window{}, fmt.Errorf("window [%d, %d] is empty or negative", begin, end)
	}
	return network.Interval(begin, end), nil
}
