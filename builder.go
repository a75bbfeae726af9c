package authcore

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// Builder assembles a Provider. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config

	credentials  credential.Store
	authStore    tokenstore.Store[token.Auth]
	refreshStore tokenstore.Store[token.Refresh]

	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithCredentialStore sets the credential backend. Without one, Build creates
// an in-memory store hashing with the configured Argon2id parameters.
func (b *Builder) WithCredentialStore(s credential.Store) *Builder {
	b.credentials = s
	return b
}

// WithAuthStore sets the access token backend. Defaults to in-memory.
func (b *Builder) WithAuthStore(s tokenstore.Store[token.Auth]) *Builder {
	b.authStore = s
	return b
}

// WithRefreshStore sets the refresh token backend. Defaults to in-memory.
func (b *Builder) WithRefreshStore(s tokenstore.Store[token.Refresh]) *Builder {
	b.refreshStore = s
	return b
}

// WithAuditSink sets the audit destination. It only receives events when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Provider. A Builder can
// be used once.
func (b *Builder) Build() (*Provider, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- STORES --------
	creds := b.credentials
	if creds == nil {
		v, err := NewVerifier(cfg.Password)
		if err != nil {
			return nil, err
		}
		creds = credential.NewMemory(v)
	}

	authStore := b.authStore
	if authStore == nil {
		authStore = tokenstore.NewMemory[token.Auth]()
	}
	refreshStore := b.refreshStore
	if refreshStore == nil {
		refreshStore = tokenstore.NewMemory[token.Refresh]()
	}

	// -------- FLOWS --------
	warn := func(msg string, args ...any) { logger.Warn(msg, args...) }
	stores := flows.Stores{Auth: authStore, Refresh: refreshStore}
	issue := flows.IssueDeps{
		AuthSize:    cfg.Token.AuthSize,
		RefreshSize: cfg.Token.RefreshSize,
		Stores:      stores,
		Warn:        warn,
	}

	p := &Provider{
		config:       cfg,
		credentials:  creds,
		authStore:    authStore,
		refreshStore: refreshStore,
		flows: flows.New(flows.Deps{
			Register: flows.RegisterDeps{Credentials: creds},
			Issue:    issue,
			Login:    flows.LoginDeps{Credentials: creds, Issue: issue},
			Refresh:  flows.RefreshDeps{Credentials: creds, Issue: issue},
			Logout:   flows.LogoutDeps{Stores: stores, Warn: warn},
			Whoami:   flows.WhoamiDeps{Credentials: creds, AuthStore: authStore},
		}),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
	}

	b.built = true
	logger.Debug("authcore provider built",
		"auth_store", string(authStore.Kind()),
		"refresh_store", string(refreshStore.Kind()),
		"metrics", cfg.Metrics.Enabled,
		"audit", cfg.Audit.Enabled,
	)
	return p, nil
}
