//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/backends"
	"github.com/MrEthical07/authcore/internal/config"
)

type combo struct {
	credentials string
	tokens      string
}

func (c combo) String() string { return c.credentials + "+" + c.tokens }

func combos() []combo {
	out := []combo{
		{config.BackendMemory, config.BackendMemory},
		{config.BackendMemory, config.BackendRedis},
		{config.BackendSQLite, config.BackendBadger},
		{config.BackendSQLite, config.BackendRedis},
	}
	if os.Getenv("AUTHCORE_INTEGRATION") != "" {
		out = append(out, combo{config.BackendPostgres, config.BackendRedis})
	}
	return out
}

// harness is one running Provider; mr is set for redis combinations.
type harness struct {
	provider *authcore.Provider
	mr       *miniredis.Miniredis
}

func newHarness(t *testing.T, c combo) *harness {
	t.Helper()

	cfg := &config.Config{
		CredentialBackend: c.credentials,
		TokenBackend:      c.tokens,
		Log:               config.LogConfig{Level: "info", Format: "text"},
		SQLite:            config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "auth.db")},
		Badger:            config.BadgerConfig{InMemory: true},
		Redis:             config.RedisConfig{Prefix: "it"},
		Password:          config.PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1},
		Postgres:          config.PostgresConfig{AutoMigrate: true, MaxConns: 8},
	}

	h := &harness{}
	if c.tokens == config.BackendRedis {
		h.mr = miniredis.RunT(t)
		cfg.Redis.URL = "redis://" + h.mr.Addr()
	}
	if c.credentials == config.BackendPostgres {
		cfg.Postgres.URL = startPostgres(t)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	set, err := backends.Build(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("backends: %v", err)
	}
	p, err := set.Apply(authcore.New()).WithConfig(cfg.ProviderConfig()).WithLogger(logger).Build()
	if err != nil {
		_ = set.Close()
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() {
		_ = p.Close()
		_ = set.CloseShared()
	})
	h.provider = p
	return h
}

func startPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())
}

func mustLogin(t *testing.T, p *authcore.Provider, username, password string) *authcore.TokenPair {
	t.Helper()
	pair, err := p.Login(context.Background(), username, password, 0, 0)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair == nil {
		t.Fatalf("login %q: no pair", username)
	}
	return pair
}
