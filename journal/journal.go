// Package journal keeps a SQLite log of ingestion attempts so degraded
// sources can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one recorded ingestion event.
type Entry struct {
	ID         string        `json:"id"`
	Provider   string        `json:"provider"`
	Stage      string        `json:"stage"`
	URL        string        `json:"url,omitempty"`
	Posts      int           `json:"posts"`
	Kind       string        `json:"kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"durationNs"`
	RecordedAt time.Time     `json:"recordedAt"`
}

// Failed reports whether the entry carries an error.
func (e Entry) Failed() bool { return e.Error != "" }

// Store persists entries in SQLite.
type Store struct {
	db *sql.DB
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS ingestion_events (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	stage TEXT NOT NULL,
	url TEXT,
	posts INTEGER NOT NULL DEFAULT 0,
	kind TEXT,
	error TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	recorded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingestion_events_recorded_at ON ingestion_events (recorded_at);
`

// New opens the SQLite database at dbPath, creates tables if they don't
// exist, and returns a Store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts e. A missing ID or RecordedAt is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_events (id, provider, stage, url, posts, kind, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Provider, e.Stage, e.URL, e.Posts, e.Kind, e.Error, e.Duration.Milliseconds(), e.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal: record %s/%s event: %w", e.Provider, e.Stage, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, stage, url, posts, kind, error, duration_ms, recorded_at
		 FROM ingestion_events ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                 Entry
			url, kind, errMsg sql.NullString
			durationMs, atMs  int64
		)
		if err := rows.Scan(&e.ID, &e.Provider, &e.Stage, &url, &e.Posts, &kind, &errMsg, &durationMs, &atMs); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		e.URL = url.String
		e.Kind = kind.String
		e.Error = errMsg.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.RecordedAt = time.UnixMilli(atMs).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate events: %w", err)
	}
	return entries, nil
}

// FailureCounts returns the number of failed events per error kind recorded
// at or after since.
func (s *Store) FailureCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM ingestion_events
		 WHERE error IS NOT NULL AND error != '' AND recorded_at >= ?
		 GROUP BY kind`, since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query failure counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			kind sql.NullString
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("journal: scan failure count: %w", err)
		}
		counts[kind.String] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate failure counts: %w", err)
	}
	return counts, nil
}

// Prune deletes entries recorded before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ingestion_events WHERE recorded_at < ?`, cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune events: %w", err)
	}
	return n, nil
}
