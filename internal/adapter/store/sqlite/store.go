// Package sqlite persists fix-loop run history to a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/fixloop"
)

// Store implements the fixloop persistence port backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and ensures the schema
// exists. Use ":memory:" for an ephemeral store.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id         TEXT PRIMARY KEY,
		study_id       TEXT NOT NULL,
		timestamp      TEXT NOT NULL,
		max_iterations INTEGER NOT NULL,
		iterations_run INTEGER NOT NULL,
		converged      INTEGER NOT NULL,
		total_fixed    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS iterations (
		run_id                 TEXT NOT NULL,
		iteration              INTEGER NOT NULL,
		issues_found           INTEGER NOT NULL,
		auto_fixed             INTEGER NOT NULL,
		remaining_auto_fixable INTEGER NOT NULL,
		needs_human            INTEGER NOT NULL,
		PRIMARY KEY (run_id, iteration),
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE TABLE IF NOT EXISTS fix_actions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id         TEXT NOT NULL,
		rule_id        TEXT NOT NULL,
		domain         TEXT NOT NULL,
		variable       TEXT,
		fix_type       TEXT NOT NULL,
		before_value   TEXT,
		after_value    TEXT,
		affected_count INTEGER NOT NULL,
		timestamp      TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE TABLE IF NOT EXISTS findings (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id         TEXT NOT NULL,
		fingerprint    TEXT NOT NULL,
		rule_id        TEXT NOT NULL,
		severity       TEXT NOT NULL,
		category       TEXT NOT NULL,
		domain         TEXT NOT NULL,
		variable       TEXT,
		message        TEXT,
		affected_count INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_study ON runs(study_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_fix_actions_run ON fix_actions(run_id);
	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists the run-level record.
func (s *Store) SaveRun(ctx context.Context, run fixloop.StoreRun) error {
	query := `INSERT INTO runs (run_id, study_id, timestamp, max_iterations, iterations_run, converged, total_fixed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		run.RunID,
		run.StudyID,
		run.Timestamp.UTC().Format(time.RFC3339),
		run.MaxIterations,
		run.IterationsRun,
		boolToInt(run.Converged),
		run.TotalFixed,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveIterations persists the per-iteration records for a run.
func (s *Store) SaveIterations(ctx context.Context, runID string, iterations []domain.IterationRecord) error {
	query := `INSERT INTO iterations (run_id, iteration, issues_found, auto_fixed, remaining_auto_fixable, needs_human)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, it := range iterations {
		_, err := s.db.ExecContext(ctx, query,
			runID,
			it.Iteration,
			it.IssuesFound,
			it.AutoFixed,
			it.RemainingAutoFixable,
			it.NeedsHuman,
		)
		if err != nil {
			return fmt.Errorf("failed to save iteration %d: %w", it.Iteration, err)
		}
	}
	return nil
}

// SaveFixActions persists the audit trail of applied fixes for a run.
func (s *Store) SaveFixActions(ctx context.Context, runID string, actions []domain.FixAction) error {
	query := `INSERT INTO fix_actions (run_id, rule_id, domain, variable, fix_type, before_value, after_value, affected_count, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, a := range actions {
		_, err := s.db.ExecContext(ctx, query,
			runID,
			a.RuleID,
			a.Domain,
			a.Variable,
			string(a.FixType),
			a.BeforeValue,
			a.AfterValue,
			a.AffectedCount,
			a.Timestamp.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to save fix action: %w", err)
		}
	}
	return nil
}

// SaveFindings persists the findings remaining after the final pass.
func (s *Store) SaveFindings(ctx context.Context, runID string, findings []domain.Finding) error {
	query := `INSERT INTO findings (run_id, fingerprint, rule_id, severity, category, domain, variable, message, affected_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, f := range findings {
		_, err := s.db.ExecContext(ctx, query,
			runID,
			f.Fingerprint(),
			f.RuleID,
			string(f.Severity),
			string(f.Category),
			f.Domain,
			f.Variable,
			f.Message,
			f.AffectedCount,
		)
		if err != nil {
			return fmt.Errorf("failed to save finding: %w", err)
		}
	}
	return nil
}

// CountRuns returns the number of persisted runs for a study.
func (s *Store) CountRuns(ctx context.Context, studyID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE study_id = ?`, studyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
