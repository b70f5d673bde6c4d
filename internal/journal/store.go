package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ignite/internal/config"
)

// Outcome values recorded for an attempt.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeRollback = "rollback"
)

// Entry is one journaled bootstrap attempt.
type Entry struct {
	ID             int64     `json:"id" yaml:"id"`
	AttemptID      string    `json:"attempt_id" yaml:"attempt_id"`
	Trigger        string    `json:"trigger" yaml:"trigger"`
	Outcome        string    `json:"outcome" yaml:"outcome"`
	ErrorKind      string    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Category       string    `json:"category,omitempty" yaml:"category,omitempty"`
	Action         string    `json:"action,omitempty" yaml:"action,omitempty"`
	Message        string    `json:"message,omitempty" yaml:"message,omitempty"`
	StepsCompleted int       `json:"steps_completed" yaml:"steps_completed"`
	Retries        int       `json:"retries" yaml:"retries"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time `json:"finished_at" yaml:"finished_at"`
}

// Duration returns how long the attempt ran.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JournalPath())
}

// OpenPath opens the journal at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts an attempt and returns it with its assigned ID.
func (s *Store) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.AttemptID == "" {
		return entry, fmt.Errorf("record attempt: attempt id is required")
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = entry.StartedAt
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO attempts (
            attempt_id, trigger, outcome, error_kind, category, action, message,
            steps_completed, retries, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.AttemptID,
		entry.Trigger,
		entry.Outcome,
		nullableString(entry.ErrorKind),
		nullableString(entry.Category),
		nullableString(entry.Action),
		nullableString(entry.Message),
		entry.StepsCompleted,
		entry.Retries,
		entry.StartedAt.UTC().Format(time.RFC3339Nano),
		entry.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return entry, fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entry, fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// List returns up to limit attempts, newest first. A limit of zero or less
// returns every attempt.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, attempt_id, trigger, outcome, error_kind, category, action, message,
        steps_completed, retries, started_at, finished_at
        FROM attempts ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return entries, nil
}

// Clear removes every attempt and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM attempts")
	if err != nil {
		return 0, fmt.Errorf("clear attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry                                Entry
		errorKind, category, action, message sql.NullString
		startedAt, finishedAt                string
	)
	if err := rows.Scan(
		&entry.ID,
		&entry.AttemptID,
		&entry.Trigger,
		&entry.Outcome,
		&errorKind,
		&category,
		&action,
		&message,
		&entry.StepsCompleted,
		&entry.Retries,
		&startedAt,
		&finishedAt,
	); err != nil {
		return entry, fmt.Errorf("scan attempt: %w", err)
	}
	entry.ErrorKind = errorKind.String
	entry.Category = category.String
	entry.Action = action.String
	entry.Message = message.String
	entry.StartedAt = parseTime(startedAt)
	entry.FinishedAt = parseTime(finishedAt)
	return entry, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
