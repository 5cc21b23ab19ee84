package simulation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nvandessel/brunel/internal/export"
	"github.com/nvandessel/brunel/internal/logging"
	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
	"github.com/nvandessel/brunel/internal/store"
)

func smallParams(t *testing.T) params.Params {
	t.Helper()
	p := params.Default()
	p.Neurons = 500
	return p
}

// shortScenario is scenario C compressed to a few hundred steps.
func shortScenario() Scenario {
	sc := ScenarioC
	sc.Name = "C-short"
	sc.WindowBegin, sc.WindowEnd = 200, 600
	sc.RateBegin, sc.RateEnd = 200, 600
	return sc
}

func TestLookup(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"A", "A", true},
		{" b ", "B", true},
		{"d", "D", true},
		{"E", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sc, ok := Lookup(tt.in)
			if ok != tt.ok || sc.Name != tt.want {
				t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.in, sc.Name, ok, tt.want, tt.ok)
			}
		})
	}
	if !slices.Equal(Names(), []string{"A", "B", "C", "D"}) {
		t.Errorf("Names() = %v", Names())
	}
}

func TestScenario_Apply(t *testing.T) {
	tests := []struct {
		sc       Scenario
		g, vext  float64
		duration int
	}{
		{ScenarioA, 3, 2, 6000},
		{ScenarioB, 6, 4, 12000},
		{ScenarioC, 5, 2, 12000},
		{ScenarioD, 4.5, 0.9, 12000},
	}
	for _, tt := range tests {
		t.Run(tt.sc.Name, func(t *testing.T) {
			p := tt.sc.Apply(params.Default())
			if p.InhibitoryRatio != tt.g || p.ExternalRatio != tt.vext {
				t.Errorf("g, vext = %v, %v; want %v, %v", p.InhibitoryRatio, p.ExternalRatio, tt.g, tt.vext)
			}
			if p.FinalTime != tt.duration || tt.sc.Duration() != tt.duration {
				t.Errorf("duration = %d, want %d", p.FinalTime, tt.duration)
			}
			if err := p.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
	if ScenarioA.MeasureRate || ScenarioA.Reference() != "" {
		t.Error("scenario A should not measure a rate")
	}
	if !strings.Contains(ScenarioB.Reference(), "Theory: 55.8 Hz and in Simulation: 60.7 Hz") {
		t.Errorf("Reference() = %q", ScenarioB.Reference())
	}
}

func TestNew_RejectsInvalidParams(t *testing.T) {
	p := smallParams(t)
	p.TimeConstant = 0
	_, err := New(p, Options{})
	if !errors.Is(err, params.ErrInvalid) {
		t.Fatalf("New() error = %v, want ErrInvalid", err)
	}
}

func TestSimulation_RunAndMeasure(t *testing.T) {
	p := smallParams(t)
	p.InhibitoryRatio, p.ExternalRatio = 5, 2
	sim, err := New(p, Options{Network: network.Options{NoiseSeed: 3}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sim.Run(100)
	sim.Run(50)
	if sim.Time() != 150 {
		t.Fatalf("Time() = %d, want 150", sim.Time())
	}
	sim.RunUntil(100) // already past
	if sim.Time() != 150 {
		t.Errorf("RunUntil moved backwards: %d", sim.Time())
	}

	rate := sim.MeanSpikeRateInInterval(100, 400)
	if sim.Time() != 400 {
		t.Errorf("Time() = %d after measuring to 400", sim.Time())
	}
	if rate <= 0 || math.IsNaN(rate) {
		t.Errorf("rate = %v, want a positive rate", rate)
	}
	if got := sim.Network().MeanSpikeRateInInterval(100, 400); got != rate {
		t.Errorf("network rate %v differs from simulation rate %v", got, rate)
	}
}

func TestSimulation_RunContextCancelled(t *testing.T) {
	sim, err := New(smallParams(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sim.RunContext(ctx, 5000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunContext() error = %v, want context.Canceled", err)
	}
	if sim.Time() != progressEvery {
		t.Errorf("stopped at %d, want %d", sim.Time(), progressEvery)
	}
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	runs := store.NewInMemoryRunStore()
	events := logging.NewEventLogger(filepath.Join(dir, ".brunel"), "debug")
	defer events.Close()

	r := NewRunner(smallParams(t), RunnerOptions{
		Network: network.Options{NoiseSeed: 8},
		Output:  Output{Dir: dir, File: "spikes.txt", Plot: true},
		Store:   runs,
		Events:  events,
	})
	sc := shortScenario()
	res, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if res.Steps != 600 || res.Rate == nil {
		t.Fatalf("Steps = %d, Rate = %v", res.Steps, res.Rate)
	}
	if res.NoiseSeed != 8 {
		t.Errorf("NoiseSeed = %d, want the configured 8", res.NoiseSeed)
	}

	// The exported window reproduces the measured rate.
	records, err := export.ReadFile(res.OutputPath, export.FormatText, 0.1)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(records) != res.Written {
		t.Errorf("file has %d records, Written = %d", len(records), res.Written)
	}
	fromFile := float64(len(records)) / network.RateNormalizer(res.Neurons, sc.RateBegin, sc.RateEnd, 0.1)
	if math.Abs(fromFile-*res.Rate) > 1e-9 {
		t.Errorf("rate from file = %v, measured = %v", fromFile, *res.Rate)
	}

	for _, path := range []string{res.Figures.Raster, res.Figures.Histogram} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("figure missing: %v", err)
		}
	}

	stored, err := runs.GetRun(context.Background(), res.RunID)
	if err != nil || stored == nil {
		t.Fatalf("GetRun(%q) = %v, %v", res.RunID, stored, err)
	}
	if stored.SpikeCount != res.Spikes || *stored.Rate != *res.Rate {
		t.Errorf("stored run = %+v", stored)
	}
	rate, err := store.MeanSpikeRate(context.Background(), runs, res.RunID, sc.RateBegin, sc.RateEnd)
	if err != nil {
		t.Fatalf("MeanSpikeRate() error = %v", err)
	}
	if math.Abs(rate-*res.Rate) > 1e-9 {
		t.Errorf("stored rate = %v, measured = %v", rate, *res.Rate)
	}

	data, err := os.ReadFile(events.Path())
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	for _, name := range []string{"run_started", "run_finished"} {
		if !strings.Contains(string(data), `"event":"`+name+`"`) {
			t.Errorf("event log lacks %s: %s", name, data)
		}
	}

	if !strings.Contains(res.Summary(), "mean firing frequency") {
		t.Errorf("Summary() = %q", res.Summary())
	}
}

func TestRunner_OutputFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(smallParams(t), RunnerOptions{
		Output: Output{Dir: filepath.Join(blocker, "sub")},
	})
	sc := shortScenario()
	sc.WindowBegin, sc.WindowEnd = 0, 100
	sc.RateBegin, sc.RateEnd = 0, 100
	res, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Failures) != 1 || !strings.HasPrefix(res.Failures[0], "export:") {
		t.Errorf("Failures = %v, want one export failure", res.Failures)
	}
	if res.Rate == nil || res.OutputPath != "" {
		t.Errorf("Rate = %v, OutputPath = %q", res.Rate, res.OutputPath)
	}
	if res.NoiseSeed == 0 {
		t.Error("an unset noise seed should be drawn and reported")
	}
}

func TestRunner_ScenarioWithoutRate(t *testing.T) {
	sc := ScenarioA
	sc.WindowBegin, sc.WindowEnd = 50, 150
	r := NewRunner(smallParams(t), RunnerOptions{Output: Output{Skip: true}})

	res, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Rate != nil {
		t.Errorf("Rate = %v, want nil", *res.Rate)
	}
	if res.Steps != 150 || res.OutputPath != "" {
		t.Errorf("Steps = %d, OutputPath = %q", res.Steps, res.OutputPath)
	}
	if !strings.HasPrefix(res.Summary(), "Scenario A finished") {
		t.Errorf("Summary() = %q", res.Summary())
	}
}

func TestRunner_RejectsBadScenario(t *testing.T) {
	sc := shortScenario()
	sc.RateBegin, sc.RateEnd = 10, 5
	r := NewRunner(smallParams(t), RunnerOptions{Output: Output{Skip: true}})
	if _, err := r.Run(context.Background(), sc); err == nil {
		t.Error("expected error for inverted rate interval")
	}
}
