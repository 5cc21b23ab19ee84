package backup

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
	"github.com/nvandessel/brunel/internal/store"
)

func createTestStore(t *testing.T) *store.SQLiteRunStore {
	t.Helper()
	s, err := store.NewSQLiteRunStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestRuns(t *testing.T, s store.RunStore) []string {
	t.Helper()
	ctx := context.Background()
	p := params.Default()
	p.Neurons = 3

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i, scenario := range []string{"A", "B"} {
		rate := 40.5 + float64(i)
		spikes := []network.Spike{{Neuron: 0, Step: 10 + i}, {Neuron: 2, Step: 99}}
		id, err := s.SaveRun(ctx, store.Run{
			Scenario:  scenario,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Params:    p,
			Seed:      network.DefaultSeed,
			NoiseSeed: uint64(i + 1),
			Workers:   1,
			Steps:     100,
			Rate:      &rate,
			RateBegin: 0,
			RateEnd:   100,
		}, slices.Values(spikes))
		if err != nil {
			t.Fatalf("SaveRun(%s) error = %v", scenario, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	src := createTestStore(t)
	ids := addTestRuns(t, src)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "brunel-backup-test.json.gz")

	snap, err := Backup(ctx, src, path)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if len(snap.Runs) != 2 {
		t.Errorf("Backup() captured %d runs, want 2", len(snap.Runs))
	}
	if snap.SpikeCount() != 4 {
		t.Errorf("SpikeCount() = %d, want 4", snap.SpikeCount())
	}

	dst := store.NewInMemoryRunStore()
	result, err := Restore(ctx, dst, path)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsRestored != 2 || result.RunsSkipped != 0 || result.SpikesRestored != 4 {
		t.Errorf("Restore() = %+v, want 2 restored, 0 skipped, 4 spikes", result)
	}

	for _, id := range ids {
		want, _ := src.GetRun(ctx, id)
		got, err := dst.GetRun(ctx, id)
		if err != nil || got == nil {
			t.Fatalf("GetRun(%s) after restore = %v, %v", id, got, err)
		}
		if got.Scenario != want.Scenario || got.NoiseSeed != want.NoiseSeed || got.Params != want.Params {
			t.Errorf("restored run %s = %+v, want %+v", id, got, want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("restored CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
		}
		if got.Rate == nil || *got.Rate != *want.Rate {
			t.Errorf("restored rate = %v, want %v", got.Rate, *want.Rate)
		}

		wantSpikes, _ := src.Spikes(ctx, id, network.All())
		gotSpikes, _ := dst.Spikes(ctx, id, network.All())
		if !slices.Equal(gotSpikes, wantSpikes) {
			t.Errorf("restored spikes = %v, want %v", gotSpikes, wantSpikes)
		}
	}
}

func TestRestore_SkipsExistingRuns(t *testing.T) {
	src := createTestStore(t)
	addTestRuns(t, src)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup.json.gz")
	if _, err := Backup(ctx, src, path); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	// Restoring into the source store finds every run already present.
	result, err := Restore(ctx, src, path)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsRestored != 0 || result.RunsSkipped != 2 {
		t.Errorf("Restore() = %+v, want 0 restored and 2 skipped", result)
	}
}

func TestBackup_EmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json.gz")
	snap, err := Backup(context.Background(), store.NewInMemoryRunStore(), path)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if len(snap.Runs) != 0 {
		t.Errorf("expected no runs, got %d", len(snap.Runs))
	}
	read, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if read.Runs == nil || len(read.Runs) != 0 {
		t.Errorf("Read() runs = %v, want empty", read.Runs)
	}
}

func TestBackup_Cancelled(t *testing.T) {
	src := store.NewInMemoryRunStore()
	addTestRuns(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Backup(ctx, src, filepath.Join(t.TempDir(), "b.json.gz")); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRestore_MissingFile(t *testing.T) {
	_, err := Restore(context.Background(), store.NewInMemoryRunStore(), filepath.Join(t.TempDir(), "nope.json.gz"))
	if err == nil {
		t.Fatal("expected error for missing backup file")
	}
}

func TestGenerateBackupPath(t *testing.T) {
	at := time.Date(2026, 2, 6, 12, 30, 45, 0, time.UTC)
	got := GenerateBackupPath("/backups", at)
	want := filepath.Join("/backups", "brunel-backup-20260206-123045.json.gz")
	if got != want {
		t.Errorf("GenerateBackupPath() = %s, want %s", got, want)
	}
}

func TestDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got, _ := Dir("/custom"); got != "/custom" {
		t.Errorf("Dir(/custom) = %s", got)
	}
	got, err := Dir("")
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if !strings.HasPrefix(got, home) || filepath.Base(got) != "backups" {
		t.Errorf("Dir(\"\") = %s, want <home>/.brunel/backups", got)
	}
}
