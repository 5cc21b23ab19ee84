package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/brunel/internal/export"
	"github.com/nvandessel/brunel/internal/neuron"
)

// neuronReport is the JSON shape of the neuron command.
type neuronReport struct {
	Current    float64   `json:"current"`
	Steps      int       `json:"steps"`
	SpikeSteps []int     `json:"spike_steps"`
	SpikeTimes []float64 `json:"spike_times_ms"`
	Final      float64   `json:"final_potential_mv"`
}

func newNeuronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neuron",
		Short: "Drive a single unconnected neuron with a constant current",
		Long: `Simulate one excitatory neuron without background noise, driven by a
constant external current, and print its spike times.

With the default parameters and a current of 1.01 the neuron fires at
steps 924, 1868, 2812 and 3756.

Examples:
  brunel neuron                          # 4000 steps at 1.01
  brunel neuron --current 1.5 --steps 10000
  brunel neuron --trace potential.txt    # Write "<ms>\t<mV>" per step`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			current, _ := cmd.Flags().GetFloat64("current")
			steps, _ := cmd.Flags().GetInt("steps")
			tracePath, _ := cmd.Flags().GetString("trace")
			out := cmd.OutOrStdout()

			if steps < 0 {
				return fmt.Errorf("steps must be non-negative, got %d", steps)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p := cfg.Model

			n := neuron.New(neuron.Excitatory, neuron.NewModel(p))
			n.SetInputCurrent(current)

			var trace *bufio.Writer
			if tracePath != "" {
				f, err := os.Create(tracePath)
				if err != nil {
					return fmt.Errorf("failed to create trace file: %w", err)
				}
				defer f.Close()
				trace = bufio.NewWriter(f)
			}

			for i := 0; i < steps; i++ {
				// An unconnected neuron never delivers, so no sink is needed.
				n.UpdateWithoutBackgroundNoise(nil)
				if trace != nil {
					line := export.FormatTime(n.Clock(), p.StepSize) + "\t" +
						strconv.FormatFloat(n.MembranePotential(), 'g', 12, 64) + "\n"
					if _, err := trace.WriteString(line); err != nil {
						return fmt.Errorf("failed to write trace: %w", err)
					}
				}
			}
			if trace != nil {
				if err := trace.Flush(); err != nil {
					return fmt.Errorf("failed to write trace: %w", err)
				}
			}

			report := neuronReport{
				Current:    current,
				Steps:      steps,
				SpikeSteps: append([]int{}, n.Spikes()...),
				SpikeTimes: make([]float64, 0, n.SpikeCount()),
				Final:      n.MembranePotential(),
			}
			for _, s := range report.SpikeSteps {
				report.SpikeTimes = append(report.SpikeTimes, p.StepToMillis(s))
			}

			if jsonOut {
				return printJSON(out, report)
			}
			fmt.Fprintf(out, "The neuron spiked %d times in %d steps:\n", len(report.SpikeSteps), steps)
			for _, s := range report.SpikeSteps {
				fmt.Fprintf(out, "  step %d (%s ms)\n", s, export.FormatTime(s, p.StepSize))
			}
			fmt.Fprintf(out, "Final membrane potential: %.4f mV\n", report.Final)
			return nil
		},
	}

	cmd.Flags().Float64("current", 1.01, "External current")
	cmd.Flags().Int("steps", 4000, "Number of steps to simulate")
	cmd.Flags().String("trace", "", "Write the membrane potential of every step to this file")

	return cmd
}
