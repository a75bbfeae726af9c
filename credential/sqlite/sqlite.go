// Package sqlite implements credential.Store on SQLite via modernc.org/sqlite.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/MrEthical07/authcore/credential"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_credentials (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_enabled    INTEGER NOT NULL DEFAULT 1
);
`

// Store persists credentials in a single SQLite file.
type Store struct {
	sqlDB    *sql.DB
	verifier *credential.Verifier
	logger   *slog.Logger
}

var _ credential.Store = (*Store)(nil)

// Open opens the database at path and applies the schema.
func Open(path string, v *credential.Verifier, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w: %v", credential.ErrUnavailable, err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB, verifier: v, logger: logger}, nil
}

// WithVerifier returns a Store over the same database that hashes with v.
func (s *Store) WithVerifier(v *credential.Verifier) credential.Store {
	return &Store{sqlDB: s.sqlDB, verifier: v, logger: s.logger}
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, credential.ErrUserNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, credential.ErrDuplicateUsername)
	default:
		return fmt.Errorf("%s: %w: %v", op, credential.ErrUnavailable, err)
	}
}
