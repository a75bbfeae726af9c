package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/password"
)

// Config is the explicit configuration of a Provider. It is built once at
// startup and passed to the Builder; the Provider never reads the environment.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sets token sizes in bytes and default lifetimes per kind.
// A zero TTL passed to Login or Refresh selects these defaults.
type TokenConfig struct {
	AuthSize    int
	RefreshSize int
	AuthTTL     time.Duration
	RefreshTTL  time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters and length bounds used for
// the default credential verifier.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	minTokenSize = 16
	maxTokenSize = 512
)

// DefaultConfig returns production defaults: 32-byte tokens, one hour access
// lifetime, seven day refresh lifetime.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Token: TokenConfig{
			AuthSize:    32,
			RefreshSize: 32,
			AuthTTL:     time.Hour,
			RefreshTTL:  7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MinPasswordBytes: pw.MinPasswordBytes,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks c for values the Provider cannot run with.
func (c *Config) Validate() error {
	// Token
	if c.Token.AuthSize < minTokenSize || c.Token.AuthSize > maxTokenSize {
		return errors.New("Token AuthSize must be between 16 and 512 bytes")
	}
	if c.Token.RefreshSize < minTokenSize || c.Token.RefreshSize > maxTokenSize {
		return errors.New("Token RefreshSize must be between 16 and 512 bytes")
	}
	if c.Token.AuthTTL <= 0 {
		return errors.New("Token AuthTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AuthTTL {
		return errors.New("Token RefreshTTL must be >= AuthTTL")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinPasswordBytes < 0 || c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password length bounds must be >= 0")
	}
	if c.Password.MaxPasswordBytes > 0 && c.Password.MinPasswordBytes > c.Password.MaxPasswordBytes {
		return errors.New("Password MinPasswordBytes must be <= MaxPasswordBytes")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

// NewVerifier builds the Argon2id credential verifier described by cfg.
// Relational credential backends take it at construction.
func NewVerifier(cfg PasswordConfig) (*credential.Verifier, error) {
	h, err := password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MinPasswordBytes: cfg.MinPasswordBytes,
		MaxPasswordBytes: cfg.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	var hasher password.Hasher = h
	if !cfg.UpgradeOnLogin {
		hasher = pinnedHasher{h}
	}
	return credential.NewVerifier(hasher)
}

// pinnedHasher never requests a re-hash.
type pinnedHasher struct {
	password.Hasher
}

func (pinnedHasher) NeedsUpgrade(string) (bool, error) { return false, nil }
