package flows

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/token"
)

// Service is the centralized flow runner built once by the Provider.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.Credentials != nil && s.deps.Issue.Stores.Auth != nil && s.deps.Issue.Stores.Refresh != nil
}

func (s Service) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	return RunRegister(ctx, username, password, s.deps.Register)
}

func (s Service) Login(ctx context.Context, username, password string, authTTL, refreshTTL time.Duration) (*LoginResult, error) {
	return RunLogin(ctx, username, password, authTTL, refreshTTL, s.deps.Login)
}

func (s Service) Issue(ctx context.Context, owner uuid.UUID, authTTL, refreshTTL time.Duration) (*IssuedPair, error) {
	return RunIssue(ctx, owner, authTTL, refreshTTL, s.deps.Issue)
}

func (s Service) Refresh(ctx context.Context, tok token.Refresh, authTTL, refreshTTL time.Duration) RefreshResult {
	return RunRefresh(ctx, tok, authTTL, refreshTTL, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, tok token.Auth) (LogoutResult, error) {
	return RunLogout(ctx, tok, s.deps.Logout)
}

func (s Service) Whoami(ctx context.Context, tok token.Auth) (*credential.User, error) {
	return RunWhoami(ctx, tok, s.deps.Whoami)
}
