// Package config loads the authcore process configuration from a YAML file
// with an environment overlay.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/MrEthical07/authcore"
)

// Backend names accepted by CredentialBackend and TokenBackend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
)

// Config is the root process configuration.
// Sources, highest priority first:
//  1. explicit path (--config);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only.
//
// Environment variables always overlay values read from a file.
type Config struct {
	Env               string `yaml:"env" env:"AUTHCORE_ENV" env-default:"local"`
	CredentialBackend string `yaml:"credential_backend" env:"AUTHCORE_CREDENTIAL_BACKEND" env-default:"memory"`
	TokenBackend      string `yaml:"token_backend" env:"AUTHCORE_TOKEN_BACKEND" env-default:"memory"`

	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Badger   BadgerConfig   `yaml:"badger"`
	Tokens   TokensConfig   `yaml:"tokens"`
	Password PasswordConfig `yaml:"password"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"AUTHCORE_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"AUTHCORE_LOG_FORMAT" env-default:"json"`
}

// HTTPConfig holds listener settings for the serve command.
type HTTPConfig struct {
	Host            string        `yaml:"host" env:"AUTHCORE_HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"AUTHCORE_HTTP_PORT" env-default:"8080"`
	BasePath        string        `yaml:"base_path" env:"AUTHCORE_HTTP_BASE_PATH"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"AUTHCORE_HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"AUTHCORE_HTTP_WRITE_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"AUTHCORE_HTTP_REQUEST_TIMEOUT" env-default:"5s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"AUTHCORE_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type PostgresConfig struct {
	URL             string        `yaml:"url" env:"AUTHCORE_POSTGRES_URL"`
	MaxConns        int32         `yaml:"max_conns" env:"AUTHCORE_POSTGRES_MAX_CONNS" env-default:"10"`
	MinConns        int32         `yaml:"min_conns" env:"AUTHCORE_POSTGRES_MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"AUTHCORE_POSTGRES_MAX_CONN_LIFETIME" env-default:"30m"`
	// AutoMigrate applies the schema on serve startup.
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTHCORE_POSTGRES_AUTO_MIGRATE"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"AUTHCORE_SQLITE_PATH" env-default:"authcore.db"`
}

type RedisConfig struct {
	URL          string        `yaml:"url" env:"AUTHCORE_REDIS_URL"`
	Prefix       string        `yaml:"prefix" env:"AUTHCORE_REDIS_PREFIX" env-default:"authcore"`
	PoolSize     int           `yaml:"pool_size" env:"AUTHCORE_REDIS_POOL_SIZE"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"AUTHCORE_REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"AUTHCORE_REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"AUTHCORE_REDIS_WRITE_TIMEOUT" env-default:"3s"`
}

type BadgerConfig struct {
	Dir        string `yaml:"dir" env:"AUTHCORE_BADGER_DIR" env-default:"authcore-badger"`
	InMemory   bool   `yaml:"in_memory" env:"AUTHCORE_BADGER_IN_MEMORY"`
	SyncWrites bool   `yaml:"sync_writes" env:"AUTHCORE_BADGER_SYNC_WRITES"`
}

// TokensConfig mirrors authcore.TokenConfig. Zero values keep the library
// defaults.
type TokensConfig struct {
	AuthSize    int           `yaml:"auth_size" env:"AUTHCORE_TOKEN_AUTH_SIZE"`
	RefreshSize int           `yaml:"refresh_size" env:"AUTHCORE_TOKEN_REFRESH_SIZE"`
	AuthTTL     time.Duration `yaml:"auth_ttl" env:"AUTHCORE_TOKEN_AUTH_TTL"`
	RefreshTTL  time.Duration `yaml:"refresh_ttl" env:"AUTHCORE_TOKEN_REFRESH_TTL"`
}

type PasswordConfig struct {
	Memory         uint32 `yaml:"memory_kb" env:"AUTHCORE_PASSWORD_MEMORY_KB"`
	Time           uint32 `yaml:"time" env:"AUTHCORE_PASSWORD_TIME"`
	Parallelism    uint8  `yaml:"parallelism" env:"AUTHCORE_PASSWORD_PARALLELISM"`
	MinLength      int    `yaml:"min_length" env:"AUTHCORE_PASSWORD_MIN_LENGTH"`
	MaxLength      int    `yaml:"max_length" env:"AUTHCORE_PASSWORD_MAX_LENGTH"`
	// PinParameters disables re-hashing stored hashes with weaker parameters
	// on login.
	PinParameters bool `yaml:"pin_parameters" env:"AUTHCORE_PASSWORD_PIN_PARAMETERS"`
}

type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUTHCORE_AUDIT_ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"AUTHCORE_AUDIT_BUFFER_SIZE" env-default:"1024"`
	// BlockIfFull makes emitters wait for buffer space instead of dropping.
	BlockIfFull bool `yaml:"block_if_full" env:"AUTHCORE_AUDIT_BLOCK_IF_FULL"`
}

// MetricsConfig uses negative switches since cleanenv cannot tell an
// explicit false from an unset field.
type MetricsConfig struct {
	Disabled          bool `yaml:"disabled" env:"AUTHCORE_METRICS_DISABLED"`
	LatencyHistograms bool `yaml:"latency_histograms" env:"AUTHCORE_METRICS_LATENCY_HISTOGRAMS"`
	// OTelLogInterval enables the OpenTelemetry log pipeline when positive.
	OTelLogInterval time.Duration `yaml:"otel_log_interval" env:"AUTHCORE_METRICS_OTEL_LOG_INTERVAL"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration in priority order and validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	switch {
	case path != "":
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH"), &cfg); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := readFile("local.yaml", &cfg); err != nil {
				return nil, err
			}
		} else if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readFile reads p and overlays the environment on top of it.
func readFile(p string, cfg *Config) error {
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("config: file %q: %w", p, err)
	}
	if err := cleanenv.ReadConfig(p, cfg); err != nil {
		return fmt.Errorf("config: read %q: %w", p, err)
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: overlay env: %w", err)
	}
	return nil
}

// Validate checks backend selection and the settings each backend needs.
func (c *Config) Validate() error {
	switch c.CredentialBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("config: postgres.url is required for the postgres credential backend")
		}
	default:
		return fmt.Errorf("config: unknown credential_backend %q", c.CredentialBackend)
	}

	switch c.TokenBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("config: redis.url is required for the redis token backend")
		}
	case BackendBadger:
		if !c.Badger.InMemory && c.Badger.Dir == "" {
			return errors.New("config: badger.dir is required unless badger.in_memory is set")
		}
	default:
		return fmt.Errorf("config: unknown token_backend %q", c.TokenBackend)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}

	if c.Metrics.OTelLogInterval < 0 {
		return errors.New("config: metrics.otel_log_interval must not be negative")
	}

	pc := c.ProviderConfig()
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ProviderConfig converts the process settings into an authcore.Config,
// starting from authcore.DefaultConfig and applying every non-zero field.
func (c *Config) ProviderConfig() authcore.Config {
	out := authcore.DefaultConfig()

	if c.Tokens.AuthSize != 0 {
		out.Token.AuthSize = c.Tokens.AuthSize
	}
	if c.Tokens.RefreshSize != 0 {
		out.Token.RefreshSize = c.Tokens.RefreshSize
	}
	if c.Tokens.AuthTTL != 0 {
		out.Token.AuthTTL = c.Tokens.AuthTTL
	}
	if c.Tokens.RefreshTTL != 0 {
		out.Token.RefreshTTL = c.Tokens.RefreshTTL
	}

	if c.Password.Memory != 0 {
		out.Password.Memory = c.Password.Memory
	}
	if c.Password.Time != 0 {
		out.Password.Time = c.Password.Time
	}
	if c.Password.Parallelism != 0 {
		out.Password.Parallelism = c.Password.Parallelism
	}
	if c.Password.MinLength != 0 {
		out.Password.MinPasswordBytes = c.Password.MinLength
	}
	if c.Password.MaxLength != 0 {
		out.Password.MaxPasswordBytes = c.Password.MaxLength
	}
	out.Password.UpgradeOnLogin = !c.Password.PinParameters

	out.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize != 0 {
		out.Audit.BufferSize = c.Audit.BufferSize
	}
	out.Audit.DropIfFull = !c.Audit.BlockIfFull

	out.Metrics.Enabled = !c.Metrics.Disabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms
	return out
}
