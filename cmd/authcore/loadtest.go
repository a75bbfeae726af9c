package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/urfave/cli/v2"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/backends"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/token"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	backend     string
	redisAddr   string
	badgerDir   string
}

// sessionState is one logged-in user. mu serializes rotations of its pair.
type sessionState struct {
	mu      sync.Mutex
	auth    token.Auth
	refresh token.Refresh
}

func LoadtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "loadtest",
		Usage: "measure whoami and refresh latency against a token backend",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "users", Value: 1000, Usage: "number of users to register and log in"},
			&cli.IntFlag{Name: "concurrency", Value: 64, Usage: "number of concurrent workers"},
			&cli.IntFlag{Name: "ops", Value: 20000, Usage: "operations per phase (whoami, refresh)"},
			&cli.StringFlag{Name: "token-backend", Value: config.BackendMemory, Usage: "memory, redis or badger"},
			&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}, Usage: "redis address; miniredis when empty"},
			&cli.StringFlag{Name: "badger-dir", Usage: "badger data dir; in-memory when empty"},
		},
		Action: func(c *cli.Context) error {
			opts := loadtestOptions{
				users:       c.Int("users"),
				concurrency: c.Int("concurrency"),
				ops:         c.Int("ops"),
				backend:     c.String("token-backend"),
				redisAddr:   c.String("redis-addr"),
				badgerDir:   c.String("badger-dir"),
			}
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return cli.Exit("users, concurrency, and ops must be > 0", 2)
			}
			_, err := runLoadtest(c.Context, opts, c.App.Writer)
			return err
		},
	}
}

type loadtestReport struct {
	whoami  phaseStats
	refresh phaseStats
}

func runLoadtest(ctx context.Context, opts loadtestOptions, out io.Writer) (loadtestReport, error) {
	cfg := &config.Config{
		CredentialBackend: config.BackendMemory,
		TokenBackend:      opts.backend,
		Redis:             config.RedisConfig{URL: "redis://" + opts.redisAddr, Prefix: "loadtest"},
		Badger:            config.BadgerConfig{Dir: opts.badgerDir, InMemory: opts.badgerDir == ""},
		// cheapest hashing the verifier accepts; logins are not measured
		Password: config.PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1},
	}

	if opts.backend == config.BackendRedis && opts.redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return loadtestReport{}, fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		cfg.Redis.URL = "redis://" + mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	set, err := backends.Build(ctx, cfg, quiet)
	if err != nil {
		return loadtestReport{}, err
	}
	provider, err := set.Apply(authcore.New()).
		WithConfig(cfg.ProviderConfig()).
		WithLogger(quiet).
		Build()
	if err != nil {
		_ = set.Close()
		return loadtestReport{}, err
	}
	defer func() {
		_ = provider.Close()
		_ = set.CloseShared()
	}()

	fmt.Fprintf(out, "seeding %d sessions on %s...\n", opts.users, opts.backend)
	startSeed := time.Now()
	states := make([]sessionState, opts.users)
	for i := range states {
		name := fmt.Sprintf("user-%d", i)
		if _, err := provider.Register(ctx, name, "loadtest-password"); err != nil {
			return loadtestReport{}, fmt.Errorf("register %s: %w", name, err)
		}
		pair, err := provider.Login(ctx, name, "loadtest-password", 0, 0)
		if err != nil || pair == nil {
			return loadtestReport{}, fmt.Errorf("login %s: %v", name, err)
		}
		states[i].auth, states[i].refresh = pair.Auth, pair.Refresh
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	report := loadtestReport{
		whoami: runPhase(opts.ops, opts.concurrency, len(states), func(idx int) bool {
			s := &states[idx]
			s.mu.Lock()
			tok := s.auth
			s.mu.Unlock()
			user, err := provider.Whoami(ctx, tok)
			return err == nil && user != nil
		}),
		refresh: runPhase(opts.ops, opts.concurrency, len(states), func(idx int) bool {
			s := &states[idx]
			s.mu.Lock()
			defer s.mu.Unlock()
			pair, err := provider.Refresh(ctx, s.refresh, 0, 0)
			if err != nil || pair == nil {
				return false
			}
			s.auth, s.refresh = pair.Auth, pair.Refresh
			return true
		}),
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "whoami", report.whoami)
	printStats(out, "refresh", report.refresh)
	return report, nil
}

// runPhase runs ops calls of op over random session indexes in [0, n).
func runPhase(ops, concurrency, n int, op func(idx int) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if atomic.AddInt64(&cursor, 1) > int64(ops) {
					return
				}
				t0 := time.Now()
				ok := op(r.Intn(n))
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
