package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/brunel/internal/config"
	"github.com/nvandessel/brunel/internal/export"
	"github.com/nvandessel/brunel/internal/params"
	"github.com/nvandessel/brunel/internal/simulation"
	"github.com/nvandessel/brunel/internal/store"
)

var errNoScenario = errors.New("no scenario chosen")

// runFlagKeys maps run flags onto the configuration keys they override.
var runFlagKeys = map[string]string{
	"neurons":    "model.neurons",
	"workers":    "network.workers",
	"seed":       "network.seed",
	"noise-seed": "network.noise_seed",
	"plot":       "output.plot",
	"format":     "output.format",
	"output":     "output.dir",
	"file":       "output.file",
	"store":      "store.enabled",
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [A|B|C|D]",
		Short: "Reproduce one panel of Brunel's figure 8",
		Long: `Simulate the network in one of the four states of Brunel (2000), figure 8.

  A  g=3,   vext/vthr=2    synchronous regular
  B  g=6,   vext/vthr=4    synchronous irregular, fast oscillation
  C  g=5,   vext/vthr=2    asynchronous irregular
  D  g=4.5, vext/vthr=0.9  synchronous irregular, slow oscillation

Without an argument the scenario is read from standard input. Spikes in
the scenario's window are written to the output file; B, C and D also
report the mean firing rate over steps [2000, 12000].

Examples:
  brunel run C                      # Reproduce panel C
  brunel run D --workers 8 --plot   # Parallel steps, raster and histogram
  brunel run B --format arrow       # Arrow IPC spike file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}

			var choice string
			if len(args) == 1 {
				choice = args[0]
			} else {
				choice = promptScenario(cmd.InOrStdin(), out)
			}
			sc, ok := lookupChoice(choice)
			if !ok {
				fmt.Fprintln(out, "You did not choose a graph to be generated.")
				return errNoScenario
			}

			logger := newLogger(cmd, cfg)
			events := newEventLogger(cmd, cfg)
			defer events.Close()

			opts := simulation.RunnerOptions{
				Network: cfg.Network.Options(),
				Output: simulation.Output{
					Dir:    cfg.Output.Dir,
					File:   outputFile(cfg),
					Format: cfg.OutputFormat(),
					Plot:   cfg.Output.Plot,
				},
				Logger: logger,
				Events: events,
			}
			if cfg.Store.Enabled {
				runs, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer runs.Close()
				opts.Store = runs
			}

			if !jsonOut {
				fmt.Fprintln(out, "The desired simulation gets executed. This can take a moment. Please be patient!")
			}
			res, err := simulation.NewRunner(cfg.Model, opts).Run(cmd.Context(), sc)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(out, res)
			}
			fmt.Fprintln(out, res.Summary())
			if res.OutputPath != "" {
				fmt.Fprintf(out, "Wrote %d spikes to %s\n", res.Written, res.OutputPath)
			}
			if res.Figures.Raster != "" {
				fmt.Fprintf(out, "Figures: %s, %s\n", res.Figures.Raster, res.Figures.Histogram)
			}
			if res.RunID != "" {
				fmt.Fprintf(out, "Stored as %s\n", res.RunID)
			}
			return nil
		},
	}

	cmd.Flags().Int("neurons", params.DefaultNeurons, "Number of neurons")
	cmd.Flags().Int("workers", 1, "Goroutines per simulation step")
	cmd.Flags().Uint64("seed", params.DefaultConnectivitySeed, "Connectivity seed")
	cmd.Flags().Uint64("noise-seed", 0, "Background noise seed (0 = random)")
	cmd.Flags().Bool("plot", false, "Render raster and histogram PNGs")
	cmd.Flags().String("format", string(export.FormatText), "Spike file format: text or arrow")
	cmd.Flags().String("output", ".", "Directory for the spike file and figures")
	cmd.Flags().String("file", params.DefaultOutputFileName, "Spike file name")
	cmd.Flags().Bool("store", true, "Persist the run in the run store")

	return cmd
}

// applyRunFlags overrides cfg with every run flag given on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.BrunelConfig) error {
	for flag, key := range runFlagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := cfg.Set(key, f.Value.String()); err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// promptScenario asks for a scenario on in and returns the first word read.
func promptScenario(in io.Reader, out io.Writer) string {
	fmt.Fprintln(out, "Please indicate the graph that you would like to reproduce. [A,B,C,D]")
	fmt.Fprintln(out, "(Enter anything else to leave the program without running the simulation.)")

	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// lookupChoice resolves a menu answer. Only its first character counts.
func lookupChoice(choice string) (simulation.Scenario, bool) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return simulation.Scenario{}, false
	}
	return simulation.Lookup(choice[:1])
}

// outputFile returns the spike file name, matching the default name's
// extension to the chosen format.
func outputFile(cfg *config.BrunelConfig) string {
	name := cfg.Output.File
	if name == params.DefaultOutputFileName {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + cfg.OutputFormat().Extension()
	}
	return name
}

// storeRecordsDir reports where runs are kept, for messages.
func storeRecordsDir(cfg *config.BrunelConfig) string {
	if cfg.Store.Dir != "" {
		return cfg.Store.Dir
	}
	dir, err := store.GlobalBrunelPath()
	if err != nil {
		return "~/.brunel"
	}
	return dir
}
