// Package history persists the lines entered at the interactive prompt so
// that they can be recalled in later sessions.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Entry is one recorded line.
type Entry struct {
	Seq       int64     `db:"seq"`
	ID        string    `db:"id"`
	Session   string    `db:"session"`
	Line      string    `db:"line"`
	CreatedAt time.Time `db:"created_at"`
}

// SQLiteStore keeps history entries in a local SQLite database.
type SQLiteStore struct {
	db      *sqlx.DB
	session string
}

// DefaultPath returns ~/.local/state/nmail/history.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "nmail-history.db")
	}
	return filepath.Join(home, ".local", "state", "nmail", "history.db")
}

// NewSQLiteStore opens (or creates) the database at dbPath, enables WAL
// mode and runs any pending schema migrations. Every store gets a fresh
// session id.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// every connection to :memory: would see its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, session: uuid.New().String()}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Session returns the id stamped on entries appended through this store.
func (s *SQLiteStore) Session() string {
	return s.session
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Append records line.
func (s *SQLiteStore) Append(ctx context.Context, line string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, session, line, created_at)
		VALUES (?, ?, ?, ?)`,
		uuid.New().String(), s.session, line, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending history entry: %w", err)
	}
	return nil
}

// Recent returns at most limit entries, oldest first. limit <= 0 returns
// everything.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT seq, id, session, line, created_at FROM history ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Trim deletes all but the newest keep entries.
func (s *SQLiteStore) Trim(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM history WHERE seq NOT IN (
			SELECT seq FROM history ORDER BY seq DESC LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	return nil
}

// Clear deletes every entry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
