// Package store provides SQLite persistence for journal entries and the
// small key-value state the filter engine keeps between runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/rangefilter/internal/daterange"
	"github.com/abelbrown/rangefilter/internal/logging"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Entry is one stored journal entry.
type Entry struct {
	ID          string
	DateKey     daterange.Key // may be empty or malformed until repaired
	DisplayDate string        // human-readable date shown in the list
	Title       string
	Metrics     map[string]float64
	Hidden      bool
	Created     time.Time
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logging.Debug("Database opened", "path", dbPath)
	return s, nil
}

// migrate creates the schema if needed and records its version.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		date_key TEXT NOT NULL DEFAULT '',
		display_date TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		metrics TEXT,
		hidden INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_date_key ON entries(date_key);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveEntries stores entries, returning count of new entries inserted.
// Duplicates (by ID) are silently ignored via INSERT OR IGNORE.
// Thread-safe: acquires write lock.
func (s *Store) SaveEntries(ctx context.Context, entries []Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO entries (
			id, date_key, display_date, title, metrics, hidden, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	newCount := 0
	for _, e := range entries {
		metrics, err := encodeMetrics(e.Metrics)
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		created := e.Created
		if created.IsZero() {
			created = now
		}
		result, err := stmt.ExecContext(ctx,
			e.ID,
			string(e.DateKey),
			e.DisplayDate,
			e.Title,
			metrics,
			boolToInt(e.Hidden),
			created,
		)
		if err != nil {
			return 0, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected > 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newCount, nil
}

// Entries returns every entry in insertion order.
// Thread-safe: acquires read lock.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date_key, display_date, title, metrics, hidden, created_at
		FROM entries
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var key string
		var metrics sql.NullString
		var hidden int
		if err := rows.Scan(&e.ID, &key, &e.DisplayDate, &e.Title, &metrics, &hidden, &e.Created); err != nil {
			return nil, err
		}
		e.DateKey = daterange.Key(key)
		e.Hidden = hidden != 0
		if metrics.Valid && metrics.String != "" {
			if err := json.Unmarshal([]byte(metrics.String), &e.Metrics); err != nil {
				logging.Warn("Ignoring corrupt metrics", "id", e.ID, "error", err)
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored entries and how many are hidden.
// Thread-safe: acquires read lock.
func (s *Store) Count(ctx context.Context) (total, hidden int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(hidden), 0) FROM entries").Scan(&total, &hidden)
	return total, hidden, err
}

// UpdateDateKey persists a repaired date key.
// Thread-safe: acquires write lock.
func (s *Store) UpdateDateKey(ctx context.Context, id string, key daterange.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "UPDATE entries SET date_key = ? WHERE id = ?", string(key), id)
	return err
}

// SetHidden sets the hidden flag of an entry.
// Thread-safe: acquires write lock.
func (s *Store) SetHidden(ctx context.Context, id string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE entries SET hidden = ? WHERE id = ?", boolToInt(hidden), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// encodeMetrics returns nil for an empty map so the column stays NULL.
func encodeMetrics(m map[string]float64) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
