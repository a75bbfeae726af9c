package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/internal/backends"
	"github.com/MrEthical07/authcore/internal/config"
	authotel "github.com/MrEthical07/authcore/metrics/export/otel"
	authprom "github.com/MrEthical07/authcore/metrics/export/prometheus"
)

const backendConnectTimeout = 10 * time.Second

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the session API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "seed-user",
				Usage:   "register username:password at startup if it does not exist",
				EnvVars: []string{"AUTHCORE_SEED_USER"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	log.Info("starting", slog.String("env", cfg.Env), slog.String("version", Version))

	rootCtx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, set, err := openProvider(rootCtx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			log.Error("provider close failed", slog.String("err", err.Error()))
		}
		if err := set.CloseShared(); err != nil {
			log.Error("backend close failed", slog.String("err", err.Error()))
		}
	}()

	if seed := c.String("seed-user"); seed != "" {
		if err := seedUser(rootCtx, provider, seed, log); err != nil {
			return err
		}
	}

	var metrics http.Handler
	if cfg.ProviderConfig().Metrics.Enabled {
		metrics = authprom.NewCollector(provider).Handler()
	}

	stopOTel, err := startOTelPipeline(cfg, provider, log)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		stopOTel(ctx)
	}()

	srv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httpapi.NewRouter(provider, httpapi.Options{
			Logger:   log,
			Timeout:  cfg.HTTP.RequestTimeout,
			Metrics:  metrics,
			BasePath: cfg.HTTP.BasePath,
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http forced shutdown", slog.String("err", err.Error()))
	}
	log.Info("stopped")
	return nil
}

// openProvider builds the configured backends and a Provider over them.
func openProvider(ctx context.Context, cfg *config.Config, log *slog.Logger) (*authcore.Provider, *backends.Set, error) {
	connectCtx, cancel := context.WithTimeout(ctx, backendConnectTimeout)
	defer cancel()

	set, err := backends.Build(connectCtx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	provider, err := set.Apply(authcore.New()).
		WithConfig(cfg.ProviderConfig()).
		WithLogger(log).
		WithAuditSink(authcore.NewSlogSink(log.With(slog.String("component", "audit")))).
		Build()
	if err != nil {
		_ = set.Close()
		return nil, nil, fmt.Errorf("build provider: %w", err)
	}
	return provider, set, nil
}

// startOTelPipeline starts the OpenTelemetry log pipeline when
// metrics.otel_log_interval is set and metrics are enabled. The returned stop
// func is never nil.
func startOTelPipeline(cfg *config.Config, provider *authcore.Provider, log *slog.Logger) (func(context.Context), error) {
	interval := cfg.Metrics.OTelLogInterval
	if interval <= 0 || !cfg.ProviderConfig().Metrics.Enabled {
		return func(context.Context) {}, nil
	}

	pipe, err := authotel.NewLogPipeline(provider, log.With(slog.String("component", "metrics")), interval)
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	log.Info("otel metrics pipeline started", slog.Duration("interval", interval))
	return func(ctx context.Context) {
		if err := pipe.Shutdown(ctx); err != nil {
			log.Warn("otel metrics shutdown failed", slog.String("err", err.Error()))
		}
	}, nil
}

// seedUser registers name:password unless the name is taken.
func seedUser(ctx context.Context, p *authcore.Provider, userpass string, log *slog.Logger) error {
	name, password, ok := strings.Cut(userpass, ":")
	if !ok || name == "" {
		return cli.Exit("seed-user must be username:password", 2)
	}

	id, err := p.Register(ctx, name, password)
	switch {
	case errors.Is(err, authcore.ErrDuplicateUsername):
		log.Info("seed user exists", slog.String("username", name))
		return nil
	case err != nil:
		return fmt.Errorf("seed user: %w", err)
	}
	log.Info("seed user created", slog.String("username", name), slog.String("user_id", id.String()))
	return nil
}
