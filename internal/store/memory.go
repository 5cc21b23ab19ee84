package store

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/nvandessel/brunel/internal/network"
)

// InMemoryRunStore implements RunStore for testing and short-lived
// sessions.
type InMemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]Run
	spikes map[string][]network.Spike
}

// NewInMemoryRunStore creates an empty in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs:   make(map[string]Run),
		spikes: make(map[string][]network.Spike),
	}
}

// SaveRun stores run and a copy of its spikes.
func (s *InMemoryRunStore) SaveRun(ctx context.Context, run Run, spikes iter.Seq[network.Spike]) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.ID == "" {
		run.ID = NewRunID(run.Scenario, run.CreatedAt)
	}
	if _, exists := s.runs[run.ID]; exists {
		return "", fmt.Errorf("run already exists: %s", run.ID)
	}

	var recorded []network.Spike
	if spikes != nil {
		recorded = slices.Collect(spikes)
	}
	slices.SortFunc(recorded, func(a, b network.Spike) int {
		if a.Neuron != b.Neuron {
			return cmp.Compare(a.Neuron, b.Neuron)
		}
		return cmp.Compare(a.Step, b.Step)
	})
	run.SpikeCount = len(recorded)
	s.runs[run.ID] = run
	s.spikes[run.ID] = recorded
	return run.ID, nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Spikes returns the stored spikes of a run inside w.
func (s *InMemoryRunStore) Spikes(ctx context.Context, id string, w network.Window) ([]network.Spike, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []network.Spike
	for _, sp := range s.spikes[id] {
		if w.Contains(sp.Step) {
			out = append(out, sp)
		}
	}
	return out, nil
}

// CountSpikes counts the stored spikes of a run inside w.
func (s *InMemoryRunStore) CountSpikes(ctx context.Context, id string, w network.Window) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sp := range s.spikes[id] {
		if w.Contains(sp.Step) {
			count++
		}
	}
	return count, nil
}

// Close is a no-op.
func (s *InMemoryRunStore) Close() error { return nil }
