// Package report persists planning-run records and exports analysis
// archives. The store is write-only from the scheduler's perspective:
// nothing here is ever read back to influence planning.
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS planning_runs (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	patient_count INTEGER NOT NULL,
	strategy TEXT NOT NULL,
	expected_value REAL NOT NULL,
	total_iterations INTEGER NOT NULL,
	cumulative_regret REAL NOT NULL,
	nash_distance REAL NOT NULL,
	average_policy TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS regret_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	cumulative_regret REAL NOT NULL,
	nash_distance REAL NOT NULL,
	FOREIGN KEY(run_id) REFERENCES planning_runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_regret_history_run ON regret_history(run_id, iteration);
`

// RunRecord is one completed planning call.
type RunRecord struct {
	ID               string
	CreatedAt        time.Time
	PatientCount     int
	Strategy         string
	ExpectedValue    float64
	TotalIterations  int
	CumulativeRegret float64
	NashDistance     float64
	AveragePolicy    map[string]float64

	// Parallel per-iteration series; equal length.
	RegretHistory   []float64
	DistanceHistory []float64
}

// Store records planning runs in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one planning run with its per-iteration history and
// returns the generated run id.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	policy, err := json.Marshal(run.AveragePolicy)
	if err != nil {
		return "", fmt.Errorf("marshal average policy: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO planning_runs(
			id, created_at, patient_count, strategy, expected_value,
			total_iterations, cumulative_regret, nash_distance, average_policy
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Unix(), run.PatientCount, run.Strategy, run.ExpectedValue,
		run.TotalIterations, run.CumulativeRegret, run.NashDistance, string(policy),
	)
	if err != nil {
		return "", fmt.Errorf("insert planning run: %w", err)
	}

	for i, regret := range run.RegretHistory {
		distance := 0.0
		if i < len(run.DistanceHistory) {
			distance = run.DistanceHistory[i]
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO regret_history(run_id, iteration, cumulative_regret, nash_distance)
			VALUES(?, ?, ?, ?)`,
			run.ID, i, regret, distance,
		)
		if err != nil {
			return "", fmt.Errorf("insert regret history row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

// GetRun reads one planning run back, including its history series.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, created_at, patient_count, strategy, expected_value,
			total_iterations, cumulative_regret, nash_distance, average_policy
		FROM planning_runs WHERE id = ?`,
		id,
	)
	var run RunRecord
	var created int64
	var policy string
	if err := row.Scan(
		&run.ID, &created, &run.PatientCount, &run.Strategy, &run.ExpectedValue,
		&run.TotalIterations, &run.CumulativeRegret, &run.NashDistance, &policy,
	); err != nil {
		return RunRecord{}, fmt.Errorf("get planning run: %w", err)
	}
	run.CreatedAt = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(policy), &run.AveragePolicy); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal average policy: %w", err)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT cumulative_regret, nash_distance FROM regret_history
		WHERE run_id = ? ORDER BY iteration`,
		id,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("query regret history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var regret, distance float64
		if err := rows.Scan(&regret, &distance); err != nil {
			return RunRecord{}, fmt.Errorf("scan regret history: %w", err)
		}
		run.RegretHistory = append(run.RegretHistory, regret)
		run.DistanceHistory = append(run.DistanceHistory, distance)
	}
	return run, rows.Err()
}

// CountRuns reports the number of recorded planning runs.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM planning_runs`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count planning runs: %w", err)
	}
	return n, nil
}
