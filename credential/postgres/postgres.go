// Package postgres implements credential.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/credential"
)

//go:embed migrations/1_init_user_credentials.up.sql
var initSchema string

// Options tunes the connection pool. Zero values keep pgx defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	Logger          *slog.Logger
}

// Storage is a PostgreSQL-backed credential.Store.
type Storage struct {
	db       *pgxpool.Pool
	verifier *credential.Verifier
	logger   *slog.Logger
}

var _ credential.Store = (*Storage)(nil)

// New connects to dbURL and verifies the connection.
func New(ctx context.Context, dbURL string, v *credential.Verifier, opts Options) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, credential.ErrUnavailable, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w: %v", op, credential.ErrUnavailable, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{db: db, verifier: v, logger: logger}, nil
}

// Migrate creates the user_credentials table if it does not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := s.db.Exec(ctx, initSchema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WithVerifier returns a Storage sharing the pool that hashes with v.
func (s *Storage) WithVerifier(v *credential.Verifier) credential.Store {
	return &Storage{db: s.db, verifier: v, logger: s.logger}
}

// Close closes the connection pool.
func (s *Storage) Close() error {
	s.db.Close()
	return nil
}
