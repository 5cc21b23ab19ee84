package mcp

import (
	"time"
)

// BrunelRunInput defines the input for the brunel_run tool.
type BrunelRunInput struct {
	Scenario  string `json:"scenario" jsonschema:"Figure 8 panel to reproduce: A, B, C or D"`
	Neurons   int    `json:"neurons,omitempty" jsonschema:"Network size (default from configuration, 12500)"`
	Seed      uint64 `json:"seed,omitempty" jsonschema:"Connectivity seed (default 5489)"`
	NoiseSeed uint64 `json:"noise_seed,omitempty" jsonschema:"Background noise seed; 0 draws a random seed"`
	Workers   int    `json:"workers,omitempty" jsonschema:"Goroutines per simulation step (default from configuration)"`
}

// BrunelRunOutput defines the output for the brunel_run tool.
type BrunelRunOutput struct {
	RunID      string   `json:"run_id" jsonschema:"ID of the stored run"`
	Scenario   string   `json:"scenario"`
	Neurons    int      `json:"neurons"`
	Steps      int      `json:"steps" jsonschema:"Number of simulated steps"`
	Spikes     int      `json:"spikes" jsonschema:"Total spikes emitted"`
	RateHz     *float64 `json:"rate_hz,omitempty" jsonschema:"Mean population rate over the scenario's measurement interval"`
	TheoryHz   float64  `json:"theory_hz,omitempty" jsonschema:"Rate predicted by mean-field theory"`
	PaperHz    float64  `json:"paper_hz,omitempty" jsonschema:"Rate reported by the original simulation"`
	DurationMs int64    `json:"duration_ms"`
	Failures   []string `json:"failures,omitempty" jsonschema:"Output stages that failed without stopping the run"`
	Message    string   `json:"message" jsonschema:"Human-readable result message"`
}

// BrunelRateInput defines the input for the brunel_rate tool.
type BrunelRateInput struct {
	RunID string `json:"run_id" jsonschema:"ID of a stored run"`
	Begin int    `json:"begin" jsonschema:"First step of the interval (inclusive)"`
	End   int    `json:"end" jsonschema:"Last step of the interval (inclusive)"`
}

// BrunelRateOutput defines the output for the brunel_rate tool.
type BrunelRateOutput struct {
	RunID  string  `json:"run_id"`
	Begin  int     `json:"begin"`
	End    int     `json:"end"`
	Spikes int     `json:"spikes" jsonschema:"Spikes inside the interval"`
	RateHz float64 `json:"rate_hz" jsonschema:"Mean population rate in Hz"`
}

// BrunelRunsInput defines the input for the brunel_runs tool.
type BrunelRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return, newest first (default 20)"`
}

// BrunelRunsOutput defines the output for the brunel_runs tool.
type BrunelRunsOutput struct {
	Runs  []RunListItem `json:"runs"`
	Count int           `json:"count"`
}

// RunListItem provides a list view of a stored run.
type RunListItem struct {
	ID         string    `json:"id"`
	Scenario   string    `json:"scenario"`
	CreatedAt  time.Time `json:"created_at"`
	Neurons    int       `json:"neurons"`
	Steps      int       `json:"steps"`
	SpikeCount int       `json:"spike_count"`
	RateHz     *float64  `json:"rate_hz,omitempty"`
}

// BrunelScenariosInput defines the input for the brunel_scenarios tool.
type BrunelScenariosInput struct{}

// BrunelScenariosOutput defines the output for the brunel_scenarios tool.
type BrunelScenariosOutput struct {
	Scenarios []ScenarioItem `json:"scenarios"`
}

// ScenarioItem describes one figure panel.
type ScenarioItem struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	InhibitoryRatio float64 `json:"g"`
	ExternalRatio   float64 `json:"vext_over_vthr"`
	Steps           int     `json:"steps"`
	TheoryHz        float64 `json:"theory_hz,omitempty"`
	PaperHz         float64 `json:"paper_hz,omitempty"`
}
