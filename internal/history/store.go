// Package history keeps a SQLite record of past walks and their entries.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/pipeline"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded walk
type Run struct {
	ID          string        `json:"id"`
	Root        string        `json:"root"`
	StartedAt   time.Time     `json:"started_at"`
	Entries     int           `json:"entries"`
	Matched     int           `json:"matched"`
	ReportLines int           `json:"report_lines"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration_ns"`
	EntryList   []EntryRecord `json:"entry_list,omitempty"`
}

// EntryRecord is one entry's outcome within a run
type EntryRecord struct {
	ID            int64          `json:"id"`
	RunID         string         `json:"run_id"`
	Name          string         `json:"name"`
	Kind          string         `json:"kind"`
	Topology      string         `json:"topology"`
	Matched       int            `json:"matched"`
	ReportLines   int            `json:"report_lines"`
	ConvertFailed bool           `json:"convert_failed"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Workers       []WorkerRecord `json:"workers,omitempty"`
	Duration      time.Duration  `json:"duration_ns"`
}

// WorkerRecord is the stored form of models.WorkerStatus
type WorkerRecord struct {
	Role     string `json:"role"`
	PID      int    `json:"pid"`
	ExitCode int    `json:"exit_code"`
}

// Store manages the run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a Store, creating the parent directory and schema as needed
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return openAndInitStore(dbPath)
}

func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
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

// RecordRun stores a walk summary and every entry result in one transaction
func (s *Store) RecordRun(ctx context.Context, summary models.Summary) error {
	if summary.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, root, started_at, entries, matched, report_lines, failed, skipped, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.Root,
		summary.StartedAt.UTC(),
		summary.Entries,
		summary.Matched,
		summary.ReportLines,
		summary.Failed,
		summary.Skipped,
		summary.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries
		(run_id, name, kind, topology, matched, report_lines, convert_failed, error_kind, error_message, workers, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range summary.Results {
		workers := make([]WorkerRecord, 0, len(r.Workers))
		for _, w := range r.Workers {
			workers = append(workers, WorkerRecord{Role: w.Role, PID: w.PID, ExitCode: w.ExitCode})
		}
		workersJSON, err := json.Marshal(workers)
		if err != nil {
			return fmt.Errorf("marshal workers: %w", err)
		}

		var errKind, errMsg sql.NullString
		if r.Err != nil {
			errKind = sql.NullString{String: pipeline.ErrorKind(r.Err), Valid: true}
			errMsg = sql.NullString{String: r.Err.Error(), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			summary.RunID,
			r.Name,
			r.Kind.String(),
			r.Topology.Kind.String(),
			r.Matched,
			r.ReportLines,
			r.ConvertFailed,
			errKind,
			errMsg,
			string(workersJSON),
			r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert entry %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, root, started_at, entries, matched, report_lines, failed, skipped, duration_ms`

func scanRun(scanner interface{ Scan(...interface{}) error }) (*Run, error) {
	run := &Run{}
	var durationMS int64
	if err := scanner.Scan(
		&run.ID,
		&run.Root,
		&run.StartedAt,
		&run.Entries,
		&run.Matched,
		&run.ReportLines,
		&run.Failed,
		&run.Skipped,
		&durationMS,
	); err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// RecentRuns returns up to limit runs, most recent first (limit <= 0 = all)
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its entries, or ErrRunNotFound
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	entries, err := s.EntriesForRun(ctx, id)
	if err != nil {
		return nil, err
	}
	run.EntryList = entries
	return run, nil
}

// EntriesForRun returns the entries of a run in insertion (name) order
func (s *Store) EntriesForRun(ctx context.Context, runID string) ([]EntryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, name, kind, topology, matched, report_lines,
		convert_failed, error_kind, error_message, workers, duration_ms
		FROM entries WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []EntryRecord
	for rows.Next() {
		var e EntryRecord
		var errKind, errMsg, workers sql.NullString
		var durationMS int64
		if err := rows.Scan(
			&e.ID,
			&e.RunID,
			&e.Name,
			&e.Kind,
			&e.Topology,
			&e.Matched,
			&e.ReportLines,
			&e.ConvertFailed,
			&errKind,
			&errMsg,
			&workers,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.ErrorKind = errKind.String
		e.ErrorMessage = errMsg.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if workers.Valid && workers.String != "" {
			if err := json.Unmarshal([]byte(workers.String), &e.Workers); err != nil {
				return nil, fmt.Errorf("unmarshal workers of %s: %w", e.Name, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
