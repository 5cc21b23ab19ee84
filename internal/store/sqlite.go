package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// spikeBatch is the number of spike rows inserted per statement batch.
const spikeBatch = 500

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens, creating if needed, the run database inside dir.
func NewSQLiteRunStore(dir string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	dbPath := DatabasePath(dir)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file location.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun stores run and its spikes in one transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run, spikes iter.Seq[network.Spike]) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.ID == "" {
		run.ID = NewRunID(run.Scenario, run.CreatedAt)
	}
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rate any
	if run.Rate != nil {
		rate = *run.Rate
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, scenario, created_at, params, seed, noise_seed, workers,
			neurons, step_size_ms, steps, spike_count,
			rate_hz, rate_begin, rate_end, output_path, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.CreatedAt.UTC().Format(timeLayout), string(paramsJSON),
		int64(run.Seed), int64(run.NoiseSeed), run.Workers,
		run.Params.Neurons, run.Params.StepSize, run.Steps, 0,
		rate, run.RateBegin, run.RateEnd, run.OutputPath, int64(run.Duration),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spikes (run_id, neuron, step) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare spike insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	if spikes != nil {
		for sp := range spikes {
			if _, err := stmt.ExecContext(ctx, run.ID, sp.Neuron, sp.Step); err != nil {
				return "", fmt.Errorf("failed to insert spike: %w", err)
			}
			count++
			if count%spikeBatch == 0 {
				if err := ctx.Err(); err != nil {
					return "", err
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE runs SET spike_count = ? WHERE id = ?`, count, run.ID); err != nil {
		return "", fmt.Errorf("failed to update spike count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

const runColumns = `id, scenario, created_at, params, seed, noise_seed, workers,
	steps, spike_count, rate_hz, rate_begin, rate_end, output_path, duration_ns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                 Run
		createdAt, paramsJS string
		seed, noiseSeed     int64
		rate                sql.NullFloat64
		rateBegin, rateEnd  sql.NullInt64
		outputPath          sql.NullString
		duration            int64
	)
	if err := row.Scan(&run.ID, &run.Scenario, &createdAt, &paramsJS, &seed, &noiseSeed, &run.Workers,
		&run.Steps, &run.SpikeCount, &rate, &rateBegin, &rateEnd, &outputPath, &duration); err != nil {
		return nil, err
	}

	var p params.Params
	if err := json.Unmarshal([]byte(paramsJS), &p); err != nil {
		return nil, fmt.Errorf("failed to decode params of run %s: %w", run.ID, err)
	}
	run.Params = p
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		run.CreatedAt = t
	}
	run.Seed, run.NoiseSeed = uint64(seed), uint64(noiseSeed)
	if rate.Valid {
		v := rate.Float64
		run.Rate = &v
	}
	run.RateBegin, run.RateEnd = int(rateBegin.Int64), int(rateEnd.Int64)
	run.OutputPath = outputPath.String
	run.Duration = time.Duration(duration)
	return &run, nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// windowClause returns the SQL condition and arguments restricting steps to w.
func windowClause(w network.Window) (string, []any) {
	if !w.Bounded() {
		return "", nil
	}
	begin, end := w.Bounds()
	return ` AND step BETWEEN ? AND ?`, []any{begin, end}
}

// Spikes returns the stored spikes of a run inside w.
func (s *SQLiteRunStore) Spikes(ctx context.Context, id string, w network.Window) ([]network.Spike, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, args := windowClause(w)
	rows, err := s.db.QueryContext(ctx,
		`SELECT neuron, step FROM spikes WHERE run_id = ?`+clause+` ORDER BY neuron, step`,
		append([]any{id}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spikes: %w", err)
	}
	defer rows.Close()

	var spikes []network.Spike
	for rows.Next() {
		var sp network.Spike
		if err := rows.Scan(&sp.Neuron, &sp.Step); err != nil {
			return nil, fmt.Errorf("failed to scan spike: %w", err)
		}
		spikes = append(spikes, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spikes: %w", err)
	}
	return spikes, nil
}

// CountSpikes counts the stored spikes of a run inside w.
func (s *SQLiteRunStore) CountSpikes(ctx context.Context, id string, w network.Window) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, args := windowClause(w)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spikes WHERE run_id = ?`+clause,
		append([]any{id}, args...)...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count spikes: %w", err)
	}
	return count, nil
}

// DeleteRun removes a run and, through the foreign key, its spikes.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// Validate checks the database integrity.
func (s *SQLiteRunStore) Validate(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ValidateIntegrity(ctx, s.db)
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

// OpenDefault opens the run store in dir, or in the global .brunel
// directory when dir is empty.
func OpenDefault(dir string) (*SQLiteRunStore, error) {
	if dir == "" {
		global, err := GlobalBrunelPath()
		if err != nil {
			return nil, err
		}
		dir = global
	}
	return NewSQLiteRunStore(filepath.Clean(dir))
}
