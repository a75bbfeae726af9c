package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// Provider orchestrates one credential store and two token stores (access
// and refresh). Methods are safe for concurrent use; there is no
// provider-wide lock and no cross-store transaction.
//
// Domain misses (bad password, unknown, revoked or expired token, deleted
// user) are reported as a nil result with a nil error. A non-nil error is an
// infrastructure failure ([ErrStorageUnavailable], [ErrCryptoFailure]) or, for
// Register, a rejected username or password.
type Provider struct {
	config       Config
	credentials  credential.Store
	authStore    tokenstore.Store[token.Auth]
	refreshStore tokenstore.Store[token.Refresh]
	flows        flows.Service
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (p *Provider) ready() bool {
	return p != nil && !p.closed.Load() && p.flows.Initialized()
}

// Config returns a copy of the configuration the provider was built with.
func (p *Provider) Config() Config {
	if p == nil {
		return Config{}
	}
	return p.config
}

// Credentials exposes the credential store for administrative operations
// (update, password change, delete) that sit outside the session lifecycle.
func (p *Provider) Credentials() credential.Store {
	if p == nil {
		return nil
	}
	return p.credentials
}

// Register creates a user and returns its id. Duplicate usernames return
// [ErrDuplicateUsername]; invalid usernames and passwords return
// [ErrInvalidUsername] or [ErrPasswordPolicy].
func (p *Provider) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	if !p.ready() {
		return uuid.Nil, ErrEngineNotReady
	}

	id, err := p.flows.Register(ctx, username, password)
	if err != nil {
		err = classify(err)
		switch {
		case errors.Is(err, ErrDuplicateUsername):
			p.metricInc(MetricRegisterDuplicate)
		case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrPasswordPolicy):
			p.metricInc(MetricRegisterRejected)
		default:
			p.recordFailure(err)
		}
		p.logger.InfoContext(ctx, "register rejected", "username", username, "kind", string(KindOf(err)))
		p.emitAudit(ctx, AuditEvent{
			EventType: AuditEventRegister,
			Username:  username,
			Error:     string(KindOf(err)),
		})
		return uuid.Nil, err
	}

	p.metricInc(MetricRegisterSuccess)
	p.logger.InfoContext(ctx, "user registered", "username", username, "user_id", id.String())
	p.emitAudit(ctx, AuditEvent{
		EventType: AuditEventRegister,
		UserID:    id.String(),
		Username:  username,
		Success:   true,
	})
	return id, nil
}

// Login verifies the credentials and issues a new token pair. Existing
// sessions of the user stay valid. A zero ttl selects the configured default.
func (p *Provider) Login(ctx context.Context, username, password string, authTTL, refreshTTL time.Duration) (*TokenPair, error) {
	if !p.ready() {
		return nil, ErrEngineNotReady
	}
	authTTL, refreshTTL = p.ttls(authTTL, refreshTTL)

	start := time.Now()
	res, err := p.flows.Login(ctx, username, password, authTTL, refreshTTL)
	if p.metrics.LatencyEnabled() {
		p.metrics.Observe(MetricLoginLatency, time.Since(start))
	}
	if err != nil {
		err = classify(err)
		p.recordFailure(err)
		p.logger.WarnContext(ctx, "login failed on backend", "username", username, "kind", string(KindOf(err)))
		p.emitAudit(ctx, AuditEvent{EventType: AuditEventLogin, Username: username, Error: string(KindOf(err))})
		return nil, err
	}
	if res == nil {
		p.metricInc(MetricLoginFailure)
		p.logger.InfoContext(ctx, "login rejected", "username", username)
		p.emitAudit(ctx, AuditEvent{EventType: AuditEventLogin, Username: username, Error: "invalid_credentials"})
		return nil, nil
	}

	p.metricInc(MetricLoginSuccess)
	p.metricInc(MetricSessionCreated)
	p.logger.InfoContext(ctx, "login succeeded", "username", username, "user_id", res.User.ID.String())
	p.emitAudit(ctx, AuditEvent{
		EventType: AuditEventLogin,
		UserID:    res.User.ID.String(),
		Username:  username,
		Success:   true,
	})
	return pairFrom(res.Issued), nil
}

// Refresh exchanges a refresh token for a new pair. The refresh token is
// single-use and every access token issued with it is revoked first. Unknown,
// expired and already used tokens return (nil, nil). A zero ttl selects the
// configured default.
func (p *Provider) Refresh(ctx context.Context, tok token.Refresh, authTTL, refreshTTL time.Duration) (*TokenPair, error) {
	if !p.ready() {
		return nil, ErrEngineNotReady
	}
	if tok.IsZero() {
		p.metricInc(MetricRefreshFailure)
		return nil, nil
	}
	authTTL, refreshTTL = p.ttls(authTTL, refreshTTL)

	res := p.flows.Refresh(ctx, tok, authTTL, refreshTTL)
	p.metrics.Add(MetricSessionInvalidated, uint64(res.RevokedAuths))

	if res.Err != nil {
		err := classify(res.Err)
		p.recordFailure(err)
		if res.Failure == flows.RefreshFailureIssue {
			// The old pair is gone and no new one exists; the session ends.
			p.metricInc(MetricSessionInvalidated)
		}
		p.logger.WarnContext(ctx, "refresh failed on backend", "kind", string(KindOf(err)))
		p.emitAudit(ctx, AuditEvent{
			EventType: AuditEventRefresh,
			UserID:    ownerString(res.Owner),
			Error:     string(KindOf(err)),
		})
		return nil, err
	}

	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureLostRace:
		p.metricInc(MetricRefreshRaceLost)
		p.emitAudit(ctx, AuditEvent{EventType: AuditEventRefresh, UserID: ownerString(res.Owner), Error: "refresh_race_lost"})
		return nil, nil
	default:
		p.metricInc(MetricRefreshFailure)
		p.emitAudit(ctx, AuditEvent{EventType: AuditEventRefresh, Error: "invalid_refresh_token"})
		return nil, nil
	}

	p.metricInc(MetricRefreshSuccess)
	p.metricInc(MetricSessionInvalidated)
	p.metricInc(MetricSessionCreated)
	p.emitAudit(ctx, AuditEvent{
		EventType: AuditEventRefresh,
		UserID:    res.Owner.String(),
		Success:   true,
		Metadata:  map[string]string{"revoked_auth_tokens": strconv.Itoa(res.RevokedAuths)},
	})
	return pairFrom(res.Issued), nil
}

// Logout revokes an access token and its paired refresh token. Logging out a
// token that is unknown, expired or already revoked succeeds. Only storage
// failures are returned.
func (p *Provider) Logout(ctx context.Context, tok token.Auth) error {
	if !p.ready() {
		return ErrEngineNotReady
	}
	if tok.IsZero() {
		return nil
	}

	res, err := p.flows.Logout(ctx, tok)
	if err != nil {
		err = classify(err)
		p.recordFailure(err)
		p.logger.WarnContext(ctx, "logout failed on backend", "kind", string(KindOf(err)))
		p.emitAudit(ctx, AuditEvent{EventType: AuditEventLogout, UserID: ownerString(res.Owner), Error: string(KindOf(err))})
		return err
	}

	p.metricInc(MetricLogout)
	if res.AuthWasResolved {
		p.metricInc(MetricSessionInvalidated)
		p.logger.InfoContext(ctx, "user logged out", "user_id", res.Owner.String())
	}
	p.metrics.Add(MetricSessionInvalidated, uint64(res.RevokedRefresh))
	p.emitAudit(ctx, AuditEvent{
		EventType: AuditEventLogout,
		UserID:    ownerString(res.Owner),
		Success:   true,
	})
	return nil
}

// Whoami resolves the user behind an access token. A revoked or expired
// token and a deleted user are indistinguishable: both return (nil, nil).
func (p *Provider) Whoami(ctx context.Context, tok token.Auth) (*UserInfo, error) {
	if !p.ready() {
		return nil, ErrEngineNotReady
	}
	if tok.IsZero() {
		p.metricInc(MetricWhoamiMiss)
		return nil, nil
	}

	start := time.Now()
	user, err := p.flows.Whoami(ctx, tok)
	if p.metrics.LatencyEnabled() {
		p.metrics.Observe(MetricWhoamiLatency, time.Since(start))
	}
	if err != nil {
		err = classify(err)
		p.recordFailure(err)
		p.emitAudit(ctx, AuditEvent{EventType: AuditEventWhoamiErr, Error: string(KindOf(err))})
		return nil, err
	}
	if user == nil {
		p.metricInc(MetricWhoamiMiss)
		return nil, nil
	}

	p.metricInc(MetricWhoamiHit)
	return &UserInfo{ID: user.ID, Username: user.Username}, nil
}

// Close stops the audit dispatcher, flushing queued events, then closes the
// credential store and both token stores. It is safe to call more than once.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.audit.Close()

		var errs []error
		if p.credentials != nil {
			errs = append(errs, p.credentials.Close())
		}
		if p.authStore != nil {
			errs = append(errs, p.authStore.Close())
		}
		if p.refreshStore != nil {
			errs = append(errs, p.refreshStore.Close())
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// AuditDropped reports how many audit events were dropped by backpressure.
func (p *Provider) AuditDropped() uint64 {
	if p == nil {
		return 0
	}
	return p.audit.Dropped()
}

// MetricsSnapshot returns a copy of the provider counters and histograms.
func (p *Provider) MetricsSnapshot() MetricsSnapshot {
	if p == nil || p.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return p.metrics.Snapshot()
}

func (p *Provider) metricInc(id MetricID) {
	if p == nil || p.metrics == nil {
		return
	}
	p.metrics.Inc(id)
}

func (p *Provider) recordFailure(err error) {
	switch {
	case errors.Is(err, ErrCryptoFailure):
		p.metricInc(MetricCryptoError)
	case errors.Is(err, ErrStorageUnavailable):
		p.metricInc(MetricStorageError)
	}
}

func (p *Provider) ttls(authTTL, refreshTTL time.Duration) (time.Duration, time.Duration) {
	if authTTL == 0 {
		authTTL = p.config.Token.AuthTTL
	}
	if refreshTTL == 0 {
		refreshTTL = p.config.Token.RefreshTTL
	}
	return authTTL, refreshTTL
}

func pairFrom(issued *flows.IssuedPair) *TokenPair {
	return &TokenPair{
		Auth:             issued.Pair.Auth,
		Refresh:          issued.Pair.Refresh,
		AuthExpiresAt:    issued.AuthExpiresAt,
		RefreshExpiresAt: issued.RefreshExpiresAt,
	}
}

func ownerString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
