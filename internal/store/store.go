// Package store defines the RunStore interface for persisting simulation
// runs and their spike records.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"time"

	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
)

// Run describes one completed simulation.
type Run struct {
	ID        string        `json:"id"`
	Scenario  string        `json:"scenario"`
	CreatedAt time.Time     `json:"created_at"`
	Params    params.Params `json:"params"`

	Seed      uint64 `json:"seed"`
	NoiseSeed uint64 `json:"noise_seed"`
	Workers   int    `json:"workers"`

	// Steps is the number of steps simulated.
	Steps int `json:"steps"`
	// SpikeCount is the number of spikes in the full record.
	SpikeCount int `json:"spike_count"`

	// Rate is the mean population rate over [RateBegin, RateEnd], in Hz,
	// when the scenario measures one.
	Rate      *float64 `json:"rate_hz,omitempty"`
	RateBegin int      `json:"rate_begin,omitempty"`
	RateEnd   int      `json:"rate_end,omitempty"`

	OutputPath string        `json:"output_path,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// RunStore persists runs and their spikes.
type RunStore interface {
	// SaveRun stores run together with its spike record and returns the run
	// ID, assigning one when run.ID is empty.
	SaveRun(ctx context.Context, run Run, spikes iter.Seq[network.Spike]) (string, error)

	// GetRun returns the run with the given ID, or nil if none exists.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns stored runs, newest first. A limit of zero or less
	// returns every run.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Spikes returns the stored spikes of a run inside w, neuron-major.
	Spikes(ctx context.Context, id string, w network.Window) ([]network.Spike, error)

	// CountSpikes returns how many stored spikes of a run fall inside w.
	CountSpikes(ctx context.Context, id string, w network.Window) (int, error)

	Close() error
}

// MeanSpikeRate recomputes the population rate of a stored run over
// [begin, end] from its persisted spikes.
func MeanSpikeRate(ctx context.Context, s RunStore, id string, begin, end int) (float64, error) {
	if end < begin {
		return 0, fmt.Errorf("interval end %d before begin %d", end, begin)
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return 0, err
	}
	if run == nil {
		return 0, fmt.Errorf("run not found: %s", id)
	}
	if end > run.Steps {
		return 0, fmt.Errorf("interval end %d beyond simulated time %d", end, run.Steps)
	}
	if end == begin {
		return 0, nil
	}
	count, err := s.CountSpikes(ctx, id, network.Interval(begin, end))
	if err != nil {
		return 0, err
	}
	return float64(count) / network.RateNormalizer(run.Params.Neurons, begin, end, run.Params.StepSize), nil
}

// NewRunID derives a short run identifier from the scenario and start time.
func NewRunID(scenario string, at time.Time) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s@%d", scenario, at.UnixNano())))
	return "run-" + hex.EncodeToString(hash[:6])
}
