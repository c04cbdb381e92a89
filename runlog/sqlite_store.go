package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by SQLite (modernc.org/sqlite, no cgo).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (or creates) the SQLite file at path and prepares the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore initializes the schema in db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("runlog: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			decision TEXT NOT NULL,
			overall_score REAL NOT NULL,
			revisions INTEGER NOT NULL,
			published INTEGER NOT NULL,
			pieces INTEGER NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			state BLOB
		);`,
	); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts run, replacing any row with the same ID.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	published := 0
	if run.Published {
		published = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, topic, decision, overall_score, revisions, published, pieces, error, started_at, finished_at, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Topic,
		run.Decision,
		run.OverallScore,
		run.Revisions,
		published,
		run.Pieces,
		run.Error,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		[]byte(run.State),
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, topic, decision, overall_score, revisions, published, pieces, error, started_at, finished_at, state
		FROM runs
		WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// List returns the most recent runs first. limit <= 0 means no limit.
// Stored state is omitted; use Get for a single run's state.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, decision, overall_score, revisions, published, pieces, error, started_at, finished_at, NULL
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                 Run
		published           int
		errStr              sql.NullString
		startedAt, finished string
		state               []byte
	)
	if err := row.Scan(
		&run.ID, &run.Topic, &run.Decision, &run.OverallScore, &run.Revisions,
		&published, &run.Pieces, &errStr, &startedAt, &finished, &state,
	); err != nil {
		return Run{}, err
	}
	run.Published = published != 0
	run.Error = errStr.String
	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	if len(state) > 0 {
		run.State = state
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("runlog: bad timestamp %q: %w", s, err)
	}
	return t, nil
}
