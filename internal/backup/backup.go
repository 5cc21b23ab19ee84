// Package backup provides backup and restore of the brunel run store.
package backup

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"time"

	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/store"
)

// Snapshot is the payload of a backup file: every stored run with its full
// spike record.
type Snapshot struct {
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	Runs      []RunRecord `json:"runs"`
}

// RunRecord is a run and its spikes, stored as [neuron, step] pairs.
type RunRecord struct {
	store.Run
	Spikes [][2]int `json:"spikes"`
}

// SpikeCount returns the number of spikes across all runs.
func (s *Snapshot) SpikeCount() int {
	total := 0
	for _, r := range s.Runs {
		total += len(r.Spikes)
	}
	return total
}

func (r RunRecord) spikes() iter.Seq[network.Spike] {
	return func(yield func(network.Spike) bool) {
		for _, p := range r.Spikes {
			if !yield(network.Spike{Neuron: p[0], Step: p[1]}) {
				return
			}
		}
	}
}

// DefaultBackupDir returns the default backup directory (~/.brunel/backups/).
func DefaultBackupDir() (string, error) {
	dir, err := store.GlobalBrunelPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// Dir returns configured when set, else the default backup directory.
func Dir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return DefaultBackupDir()
}

// Backup writes every run in s, with its spikes, to outputPath.
func Backup(ctx context.Context, s store.RunStore, outputPath string) (*Snapshot, error) {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	snap := &Snapshot{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]RunRecord, 0, len(runs)),
	}
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spikes, err := s.Spikes(ctx, run.ID, network.All())
		if err != nil {
			return nil, fmt.Errorf("failed to read spikes of %s: %w", run.ID, err)
		}
		rec := RunRecord{Run: run, Spikes: make([][2]int, len(spikes))}
		for i, sp := range spikes {
			rec.Spikes[i] = [2]int{sp.Neuron, sp.Step}
		}
		snap.Runs = append(snap.Runs, rec)
	}

	if err := Write(outputPath, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	RunsRestored   int `json:"runs_restored"`
	RunsSkipped    int `json:"runs_skipped"`
	SpikesRestored int `json:"spikes_restored"`
}

// Restore imports the runs of a backup file into s. Runs whose ID is
// already stored are skipped.
func Restore(ctx context.Context, s store.RunStore, inputPath string) (*RestoreResult, error) {
	snap, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, rec := range snap.Runs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		existing, err := s.GetRun(ctx, rec.ID)
		if err != nil {
			return result, fmt.Errorf("failed to check existing run %s: %w", rec.ID, err)
		}
		if existing != nil {
			result.RunsSkipped++
			continue
		}
		if _, err := s.SaveRun(ctx, rec.Run, rec.spikes()); err != nil {
			return result, fmt.Errorf("failed to restore run %s: %w", rec.ID, err)
		}
		result.RunsRestored++
		result.SpikesRestored += len(rec.Spikes)
	}
	return result, nil
}

// GenerateBackupPath returns a timestamped backup file name in dir.
func GenerateBackupPath(dir string, at time.Time) string {
	return filepath.Join(dir, filePrefix+at.UTC().Format("20060102-150405")+fileSuffix)
}
