// Package backends builds the credential and token stores named in the
// process configuration. It is the only place that knows the closed set of
// backend implementations.
package backends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/credential/postgres"
	"github.com/MrEthical07/authcore/credential/sqlite"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

const (
	authNamespace    = "auth"
	refreshNamespace = "refresh"
)

// Set holds the stores for one process. The access and refresh stores share
// one Redis client or Badger DB; Set owns that shared resource.
type Set struct {
	Credentials credential.Store
	Auth        tokenstore.Store[token.Auth]
	Refresh     tokenstore.Store[token.Refresh]

	shared []func() error
}

// Build opens every configured backend. On error, anything already opened is
// closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Set, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Set{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Credentials, err = openCredentials(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err = s.openTokens(ctx, cfg, logger); err != nil {
		return nil, err
	}

	logger.Info("backends ready",
		slog.String("credentials", cfg.CredentialBackend),
		slog.String("tokens", cfg.TokenBackend),
	)
	return s, nil
}

// Apply installs the stores on b.
func (s *Set) Apply(b *authcore.Builder) *authcore.Builder {
	return b.WithCredentialStore(s.Credentials).
		WithAuthStore(s.Auth).
		WithRefreshStore(s.Refresh)
}

// CloseShared releases the shared client or DB. Use it after the Provider
// has closed the stores themselves.
func (s *Set) CloseShared() error {
	var errs []error
	for i := len(s.shared) - 1; i >= 0; i-- {
		errs = append(errs, s.shared[i]())
	}
	s.shared = nil
	return errors.Join(errs...)
}

// Close closes the stores and the shared resources. Use it when no Provider
// took ownership.
func (s *Set) Close() error {
	var errs []error
	if s.Credentials != nil {
		errs = append(errs, s.Credentials.Close())
	}
	if s.Auth != nil {
		errs = append(errs, s.Auth.Close())
	}
	if s.Refresh != nil {
		errs = append(errs, s.Refresh.Close())
	}
	errs = append(errs, s.CloseShared())
	return errors.Join(errs...)
}

func openCredentials(ctx context.Context, cfg *config.Config, logger *slog.Logger) (credential.Store, error) {
	v, err := authcore.NewVerifier(cfg.ProviderConfig().Password)
	if err != nil {
		return nil, fmt.Errorf("backends: verifier: %w", err)
	}

	switch cfg.CredentialBackend {
	case config.BackendMemory:
		return credential.NewMemory(v), nil
	case config.BackendSQLite:
		st, err := sqlite.Open(cfg.SQLite.Path, v, logger)
		if err != nil {
			return nil, fmt.Errorf("backends: sqlite: %w", err)
		}
		return st, nil
	case config.BackendPostgres:
		st, err := openPostgres(ctx, cfg, v, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				_ = st.Close()
				return nil, fmt.Errorf("backends: postgres migrate: %w", err)
			}
		}
		return st, nil
	default:
		return nil, fmt.Errorf("backends: unknown credential backend %q", cfg.CredentialBackend)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, v *credential.Verifier, logger *slog.Logger) (*postgres.Storage, error) {
	st, err := postgres.New(ctx, cfg.Postgres.URL, v, postgres.Options{
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("backends: postgres: %w", err)
	}
	return st, nil
}

func (s *Set) openTokens(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.TokenBackend {
	case config.BackendMemory:
		s.Auth = tokenstore.NewMemory[token.Auth]()
		s.Refresh = tokenstore.NewMemory[token.Refresh]()
		return nil

	case config.BackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		s.shared = append(s.shared, client.Close)
		s.Auth = tokenstore.NewRedis[token.Auth](client, cfg.Redis.Prefix+":"+authNamespace)
		s.Refresh = tokenstore.NewRedis[token.Refresh](client, cfg.Redis.Prefix+":"+refreshNamespace)
		return nil

	case config.BackendBadger:
		db, err := tokenstore.OpenBadgerDB(tokenstore.BadgerOptions{
			Dir:        cfg.Badger.Dir,
			InMemory:   cfg.Badger.InMemory,
			SyncWrites: cfg.Badger.SyncWrites,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("backends: %w", err)
		}
		s.shared = append(s.shared, closeBadger(db))
		s.Auth = tokenstore.NewBadgerWithDB[token.Auth](db, authNamespace+"/", logger)
		s.Refresh = tokenstore.NewBadgerWithDB[token.Refresh](db, refreshNamespace+"/", logger)
		return nil

	default:
		return fmt.Errorf("backends: unknown token backend %q", cfg.TokenBackend)
	}
}

// NewRedisClient parses the configured URL, applies pool settings and pings
// the server.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("backends: redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("backends: redis ping: %w: %v", tokenstore.ErrUnavailable, err)
	}
	return client, nil
}

func closeBadger(db *badger.DB) func() error {
	return func() error {
		if db.IsClosed() {
			return nil
		}
		return db.Close()
	}
}

// Migrate applies the relational schema for the configured credential
// backend. Memory needs none.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.CredentialBackend {
	case config.BackendMemory:
		logger.Info("memory credential backend has no schema")
		return nil
	case config.BackendSQLite:
		// Open applies the schema.
		st, err := sqlite.Open(cfg.SQLite.Path, nil, logger)
		if err != nil {
			return fmt.Errorf("backends: sqlite: %w", err)
		}
		return st.Close()
	case config.BackendPostgres:
		st, err := openPostgres(ctx, cfg, nil, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		return st.Migrate(ctx)
	default:
		return fmt.Errorf("backends: unknown credential backend %q", cfg.CredentialBackend)
	}
}
