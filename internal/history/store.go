// Package history persists run results in a local SQLite database so past
// verdicts can be listed and inspected. The database is always a record,
// never a source of truth: verdicts are computed from outcomes at run time
// and stored here afterwards.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/keller/dunesmoke/internal/report"
)

// RunRecord is one harness run as stored in the database.
type RunRecord struct {
	ID           int64
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	OCamlVersion string
	DuneVersion  string
	Arch         string
	GCWorkaround bool

	Classification string
	ExitCode       int

	// PassedCount and FailedCount summarize the scenario results.
	// Populated by ListRuns and GetRun.
	PassedCount int
	FailedCount int

	// Scenarios holds the per-scenario rows. Populated by GetRun.
	Scenarios []ScenarioRecord

	CreatedAt time.Time
}

// ScenarioRecord is one scenario result within a stored run.
type ScenarioRecord struct {
	ID         int64
	RunID      string
	Suite      string
	Scenario   string
	Passed     bool
	Message    string
	DurationMS int64
}

// FromReport flattens a run artifact into a RunRecord ready for RecordRun.
func FromReport(r *report.Report) *RunRecord {
	rec := &RunRecord{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		OCamlVersion:   r.OCamlVersion,
		DuneVersion:    r.DuneVersion,
		Arch:           r.Arch,
		GCWorkaround:   r.GCWorkaround,
		Classification: string(r.Classification),
		ExitCode:       r.ExitCode,
	}
	for _, suite := range r.Suites {
		for _, sc := range suite.Scenarios {
			rec.Scenarios = append(rec.Scenarios, ScenarioRecord{
				RunID:      r.RunID,
				Suite:      suite.Name,
				Scenario:   sc.Name,
				Passed:     sc.Passed,
				Message:    sc.Message,
				DurationMS: sc.DurationMS,
			})
		}
	}
	return rec
}

// Store manages the SQLite database for run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	// Handle in-memory database
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	// Ensure parent directory exists for file-based databases
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

// openAndInitStore opens the database connection and initializes schema
func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure SQLite for concurrent access. busy_timeout goes first so
	// the remaining pragmas wait on locks instead of failing, and lock
	// errors during concurrent initialization are retried with backoff.
	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000", // 64MB cache
	}

	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, sql string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(sql)
		if err == nil {
			return nil
		}

		// Only retry on "database is locked" errors
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		delay := baseDelay * time.Duration(1<<attempt)
		time.Sleep(delay)
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// tableExists checks if a table exists in the database
func (s *Store) tableExists(tableName string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	err := s.db.QueryRow(query, tableName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table existence: %w", err)
	}
	return count > 0, nil
}

// indexExists checks if an index exists in the database
func (s *Store) indexExists(indexName string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?`
	err := s.db.QueryRow(query, indexName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check index existence: %w", err)
	}
	return count > 0, nil
}

// RecordRun stores a run and its scenario results in one transaction.
func (s *Store) RecordRun(ctx context.Context, rec *RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	runQuery := `INSERT INTO runs
		(run_id, started_at, finished_at, ocaml_version, dune_version, architecture, classification, exit_code, gc_workaround)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, runQuery,
		rec.RunID,
		rec.StartedAt,
		rec.FinishedAt,
		rec.OCamlVersion,
		rec.DuneVersion,
		rec.Arch,
		rec.Classification,
		rec.ExitCode,
		rec.GCWorkaround,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	rec.ID = id

	if len(rec.Scenarios) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO scenario_results
			(run_id, suite, scenario, passed, message, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare scenario statement: %w", err)
		}
		defer stmt.Close()

		for _, sc := range rec.Scenarios {
			_, err := stmt.ExecContext(ctx, rec.RunID, sc.Suite, sc.Scenario,
				sc.Passed, sc.Message, sc.DurationMS)
			if err != nil {
				return fmt.Errorf("insert scenario result: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListRuns retrieves the most recent runs, newest first. A limit of 0 or
// less returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT r.id, r.run_id, r.started_at, r.finished_at,
		r.ocaml_version, r.dune_version, r.architecture,
		r.classification, r.exit_code, r.gc_workaround, r.created_at,
		(SELECT COUNT(*) FROM scenario_results sr WHERE sr.run_id = r.run_id AND sr.passed = 1),
		(SELECT COUNT(*) FROM scenario_results sr WHERE sr.run_id = r.run_id AND sr.passed = 0)
		FROM runs r
		ORDER BY r.id DESC`

	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a single run with its scenario results.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `SELECT r.id, r.run_id, r.started_at, r.finished_at,
		r.ocaml_version, r.dune_version, r.architecture,
		r.classification, r.exit_code, r.gc_workaround, r.created_at,
		(SELECT COUNT(*) FROM scenario_results sr WHERE sr.run_id = r.run_id AND sr.passed = 1),
		(SELECT COUNT(*) FROM scenario_results sr WHERE sr.run_id = r.run_id AND sr.passed = 0)
		FROM runs r
		WHERE r.run_id = ?`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query run: %w", err)
		}
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	rec, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	scQuery := `SELECT id, run_id, suite, scenario, passed, message, duration_ms
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY id ASC`

	scRows, err := s.db.QueryContext(ctx, scQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("query scenario results: %w", err)
	}
	defer scRows.Close()

	for scRows.Next() {
		var sc ScenarioRecord
		var message sql.NullString
		var durationMS sql.NullInt64
		if err := scRows.Scan(&sc.ID, &sc.RunID, &sc.Suite, &sc.Scenario,
			&sc.Passed, &message, &durationMS); err != nil {
			return nil, fmt.Errorf("scan scenario row: %w", err)
		}
		if message.Valid {
			sc.Message = message.String
		}
		if durationMS.Valid {
			sc.DurationMS = durationMS.Int64
		}
		rec.Scenarios = append(rec.Scenarios, sc)
	}

	if err := scRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario rows: %w", err)
	}

	return rec, nil
}

// scanRun scans one run row produced by the run queries.
func scanRun(rows *sql.Rows) (*RunRecord, error) {
	rec := &RunRecord{}
	var finishedAt sql.NullTime
	var ocamlVersion, duneVersion, arch sql.NullString
	var gcWorkaround sql.NullBool

	err := rows.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.StartedAt,
		&finishedAt,
		&ocamlVersion,
		&duneVersion,
		&arch,
		&rec.Classification,
		&rec.ExitCode,
		&gcWorkaround,
		&rec.CreatedAt,
		&rec.PassedCount,
		&rec.FailedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}

	if finishedAt.Valid {
		rec.FinishedAt = finishedAt.Time
	}
	if ocamlVersion.Valid {
		rec.OCamlVersion = ocamlVersion.String
	}
	if duneVersion.Valid {
		rec.DuneVersion = duneVersion.String
	}
	if arch.Valid {
		rec.Arch = arch.String
	}
	if gcWorkaround.Valid {
		rec.GCWorkaround = gcWorkaround.Bool
	}

	return rec, nil
}

// Prune deletes all but the most recent keepRuns runs, along with their
// scenario results. A keepRuns of 0 or less keeps everything.
// Returns the number of deleted runs.
func (s *Store) Prune(ctx context.Context, keepRuns int) (int64, error) {
	if keepRuns <= 0 {
		return 0, nil // 0 or negative means keep forever
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete children first; the cascade is not relied on because
	// foreign key enforcement is off by default in SQLite.
	scQuery := `DELETE FROM scenario_results WHERE run_id IN (
		SELECT run_id FROM runs ORDER BY id DESC LIMIT -1 OFFSET ?
	)`
	if _, err := tx.ExecContext(ctx, scQuery, keepRuns); err != nil {
		return 0, fmt.Errorf("prune scenario results: %w", err)
	}

	runQuery := `DELETE FROM runs WHERE run_id IN (
		SELECT run_id FROM runs ORDER BY id DESC LIMIT -1 OFFSET ?
	)`
	result, err := tx.ExecContext(ctx, runQuery, keepRuns)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return deleted, nil
}
