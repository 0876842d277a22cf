/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Outcome values for entries that were not rejected with a failure kind
const (
	OutcomeOK = "ok"
)

// Entry is one audited statement
type Entry struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Tool         string    `json:"tool"`
	Client       string    `json:"client,omitempty"` // token ID on authenticated HTTP
	Role         string    `json:"role"`
	SQL          string    `json:"sql"`
	Fingerprint  string    `json:"fingerprint"`
	Outcome      string    `json:"outcome"`
	Message      string    `json:"message,omitempty"`
	RowCount     int64     `json:"row_count"`
	AffectedRows int64     `json:"affected_rows"`
	DurationMS   float64   `json:"duration_ms"`
}

// Recorder accepts audit entries
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store manages the audit trail using SQLite
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewStore opens (creating if needed) the audit database at path
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables
func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS statements (
        id TEXT PRIMARY KEY,
        recorded_at DATETIME NOT NULL,
        tool TEXT NOT NULL,
        client TEXT NOT NULL DEFAULT '',
        role TEXT NOT NULL DEFAULT '',
        sql_text TEXT NOT NULL,
        fingerprint TEXT NOT NULL,
        outcome TEXT NOT NULL,
        message TEXT NOT NULL DEFAULT '',
        row_count INTEGER NOT NULL DEFAULT 0,
        affected_rows INTEGER NOT NULL DEFAULT 0,
        duration_ms REAL NOT NULL DEFAULT 0
    );

    CREATE INDEX IF NOT EXISTS idx_statements_recorded_at
        ON statements(recorded_at DESC);

    CREATE INDEX IF NOT EXISTS idx_statements_fingerprint
        ON statements(fingerprint);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e, filling in ID, Time and Fingerprint when unset
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if e.Fingerprint == "" {
		e.Fingerprint = Fingerprint(e.SQL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statements (id, recorded_at, tool, client, role, sql_text, fingerprint, outcome, message,
                                 row_count, affected_rows, duration_ms)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time, e.Tool, e.Client, e.Role, e.SQL, e.Fingerprint, e.Outcome, e.Message,
		e.RowCount, e.AffectedRows, e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, tool, client, role, sql_text, fingerprint, outcome, message,
                row_count, affected_rows, duration_ms
         FROM statements
         ORDER BY recorded_at DESC, rowid DESC
         LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Time, &e.Tool, &e.Client, &e.Role, &e.SQL, &e.Fingerprint, &e.Outcome,
			&e.Message, &e.RowCount, &e.AffectedRows, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// CountByOutcome returns the number of entries per outcome
func (s *Store) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM statements GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan audit count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
