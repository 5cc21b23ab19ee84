package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/brunel/internal/export"
	"github.com/nvandessel/brunel/internal/figure"
	"github.com/nvandessel/brunel/internal/logging"
	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
	"github.com/nvandessel/brunel/internal/store"
)

// Output controls what a Runner writes after a scenario.
type Output struct {
	// Dir holds the spike file and figures. Empty means the working directory.
	Dir string
	// File is the spike file name. Empty selects params.DefaultOutputFileName.
	File string
	// Format selects the spike file encoding. Empty selects text.
	Format export.Format
	// Plot renders a raster and a histogram next to the spike file.
	Plot bool
	// Skip disables the spike file entirely.
	Skip bool
}

// Path returns the spike file location.
func (o Output) Path() string {
	name := o.File
	if name == "" {
		name = params.DefaultOutputFileName
	}
	return filepath.Join(o.Dir, name)
}

// RunnerOptions carries the collaborators of a Runner. Every field is
// optional.
type RunnerOptions struct {
	Network network.Options
	Output  Output
	Store   store.RunStore
	Logger  *slog.Logger
	Events  *logging.EventLogger
}

// Result reports the outcome of one scenario run.
type Result struct {
	Scenario Scenario      `json:"scenario"`
	RunID    string        `json:"run_id,omitempty"`
	Steps    int           `json:"steps"`
	Neurons  int           `json:"neurons"`
	Spikes   int           `json:"spikes"`
	Rate     *float64      `json:"rate_hz,omitempty"`
	Duration time.Duration `json:"duration_ns"`

	// NoiseSeed is the background seed the run used, drawn when none was
	// configured.
	NoiseSeed uint64 `json:"noise_seed"`

	OutputPath string       `json:"output_path,omitempty"`
	Written    int          `json:"written"`
	Figures    figure.Paths `json:"figures"`

	// Failures lists output side errors that did not stop the run.
	Failures []string `json:"failures,omitempty"`

	sim *Simulation
}

// Simulation returns the simulation that produced the result.
func (r *Result) Simulation() *Simulation { return r.sim }

// Summary renders the result the way the interactive menu reports it.
func (r *Result) Summary() string {
	if r.Rate == nil {
		return fmt.Sprintf("Scenario %s finished after %d steps with %d spikes.", r.Scenario.Name, r.Steps, r.Spikes)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The neurons have a mean firing frequency of %.6g Hz.\n", *r.Rate)
	b.WriteString(r.Scenario.Reference())
	return b.String()
}

// Runner executes scenarios against a base parameter set.
type Runner struct {
	base   params.Params
	opts   RunnerOptions
	logger *slog.Logger
}

// NewRunner returns a runner that applies each scenario to base.
func NewRunner(base params.Params, opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{base: base, opts: opts, logger: logger}
}

// Run simulates sc until its export window closes, measures its rate and
// writes its outputs. Parameter errors and cancellation are returned;
// output failures are recorded on the Result.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	p := sc.Apply(r.base)
	netOpts := r.opts.Network
	if netOpts.NoiseSeed == 0 {
		netOpts.NoiseSeed = rand.Uint64() | 1
	}
	sim, err := New(p, Options{Network: netOpts, Logger: r.logger})
	if err != nil {
		return nil, err
	}

	r.logger.Info("running scenario", "scenario", sc.Name, "g", sc.InhibitoryRatio,
		"vext", sc.ExternalRatio, "neurons", p.Neurons, "steps", sc.Duration())
	r.opts.Events.Log("run_started", map[string]any{
		"scenario":   sc.Name,
		"params":     p,
		"seed":       r.opts.Network.Seed,
		"noise_seed": netOpts.NoiseSeed,
		"workers":    r.opts.Network.Workers,
	})

	start := time.Now()
	if err := sim.RunContext(ctx, sc.Duration()); err != nil {
		r.opts.Events.Log("run_cancelled", map[string]any{"scenario": sc.Name, "step": sim.Time()})
		return nil, err
	}
	net := sim.Network()
	res := &Result{
		Scenario:  sc,
		Steps:     net.Time(),
		Neurons:   net.Size(),
		Spikes:    net.CountSpikes(network.All()),
		Duration:  time.Since(start),
		NoiseSeed: netOpts.NoiseSeed,
		sim:       sim,
	}
	if sc.MeasureRate {
		rate := net.MeanSpikeRateInInterval(sc.RateBegin, sc.RateEnd)
		res.Rate = &rate
	}
	r.logger.Debug("scenario simulated", "scenario", sc.Name, "spikes", res.Spikes, "duration", res.Duration)

	r.writeOutputs(ctx, res, p)

	fields := map[string]any{
		"scenario":    sc.Name,
		"steps":       res.Steps,
		"spikes":      res.Spikes,
		"duration_ms": res.Duration.Milliseconds(),
		"run_id":      res.RunID,
	}
	if res.Rate != nil {
		fields["rate_hz"] = *res.Rate
	}
	if len(res.Failures) > 0 {
		fields["failures"] = res.Failures
	}
	r.opts.Events.Log("run_finished", fields)
	return res, nil
}

// writeOutputs writes the spike file, figures and store record of res.
func (r *Runner) writeOutputs(ctx context.Context, res *Result, p params.Params) {
	net := res.sim.Network()
	window := network.Interval(p.WindowBegin, p.WindowEnd)
	out := r.opts.Output

	if !out.Skip {
		path := out.Path()
		written, err := export.WriteFile(path, out.Format, net.Spikes(window), p.StepSize)
		if err != nil {
			r.fail(res, "export", err)
		} else {
			res.OutputPath, res.Written = path, written
			r.logger.Info("spike file written", "path", path, "records", written, "window", window.String())
		}
	}

	if out.Plot {
		records := make([]export.Record, 0, net.CountSpikes(window))
		for s := range net.Spikes(window) {
			records = append(records, export.Record{TimeMS: p.StepToMillis(s.Step), Neuron: s.Neuron, Step: s.Step})
		}
		paths, err := figure.SaveAll(out.Dir, "scenario_"+res.Scenario.Name, records, p.StepSize)
		if err != nil {
			r.fail(res, "figure", err)
		} else {
			res.Figures = paths
			r.logger.Info("figures written", "raster", paths.Raster, "histogram", paths.Histogram)
		}
	}

	if r.opts.Store != nil {
		run := store.Run{
			Scenario:   res.Scenario.Name,
			Params:     p,
			Seed:       r.opts.Network.Seed,
			NoiseSeed:  res.NoiseSeed,
			Workers:    max(r.opts.Network.Workers, 1),
			Steps:      res.Steps,
			Rate:       res.Rate,
			RateBegin:  res.Scenario.RateBegin,
			RateEnd:    res.Scenario.RateEnd,
			OutputPath: res.OutputPath,
			Duration:   res.Duration,
		}
		if run.Seed == 0 {
			run.Seed = network.DefaultSeed
		}
		id, err := r.opts.Store.SaveRun(ctx, run, net.Spikes(network.All()))
		if err != nil {
			r.fail(res, "store", err)
		} else {
			res.RunID = id
			r.logger.Debug("run stored", "id", id)
		}
	}
}

func (r *Runner) fail(res *Result, stage string, err error) {
	r.logger.Error("scenario output failed", "scenario", res.Scenario.Name, "stage", stage, "error", err)
	res.Failures = append(res.Failures, stage+": "+err.Error())
}
