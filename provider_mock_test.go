package authcore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/credential/mocks"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// brokenTokenStore fails every call with ErrUnavailable.
type brokenTokenStore[T token.Kind] struct {
	tokenstore.Store[T]
}

func (brokenTokenStore[T]) Put(context.Context, T, uuid.UUID, tokenstore.Tags, time.Duration) error {
	return tokenstore.ErrUnavailable
}

func (brokenTokenStore[T]) Get(context.Context, T) (uuid.UUID, error) {
	return uuid.Nil, tokenstore.ErrUnavailable
}

func (brokenTokenStore[T]) GetTag(context.Context, T, string) ([]byte, error) {
	return nil, tokenstore.ErrUnavailable
}

func (brokenTokenStore[T]) Delete(context.Context, T) error { return tokenstore.ErrUnavailable }

func (brokenTokenStore[T]) DeleteByTag(context.Context, string, []byte) (int, error) {
	return 0, tokenstore.ErrUnavailable
}

func (brokenTokenStore[T]) Kind() tokenstore.Backend { return tokenstore.BackendMemory }

func (brokenTokenStore[T]) Close() error { return nil }

func newMockProvider(t *testing.T, creds credential.Store, b *Builder) *Provider {
	t.Helper()
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	p, err := b.WithConfig(cfg).WithCredentialStore(creds).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}

func TestProviderCredentialFailurePropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockStore(ctrl)
	creds.EXPECT().Close().Return(nil)
	p := newMockProvider(t, creds, New())
	defer p.Close()

	ctx := context.Background()
	backendErr := fmt.Errorf("%w: connection refused", credential.ErrUnavailable)

	creds.EXPECT().CheckPassword(gomock.Any(), "alice", "correct-horse").Return(nil, backendErr)
	pair, err := p.Login(ctx, "alice", "correct-horse", 0, 0)
	if pair != nil || !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got pair=%v err=%v", pair, err)
	}
	if !errors.Is(err, credential.ErrUnavailable) {
		t.Fatalf("cause must stay in the chain: %v", err)
	}

	creds.EXPECT().Create(gomock.Any(), "bob", "correct-horse").Return(uuid.Nil, credential.ErrHashFailure)
	if _, err := p.Register(ctx, "bob", "correct-horse"); !errors.Is(err, ErrCryptoFailure) {
		t.Fatalf("expected ErrCryptoFailure, got %v", err)
	}

	snap := p.MetricsSnapshot()
	if snap.Counters[MetricStorageError] != 1 || snap.Counters[MetricCryptoError] != 1 {
		t.Fatalf("unexpected error counters: %+v", snap.Counters)
	}
}

func TestProviderWhoamiUserLookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockStore(ctrl)
	creds.EXPECT().Close().Return(nil)
	p := newMockProvider(t, creds, New())
	defer p.Close()

	ctx := context.Background()
	owner := uuid.New()
	creds.EXPECT().CheckPassword(gomock.Any(), "alice", "correct-horse").
		Return(&credential.User{ID: owner, Username: "alice", Enabled: true}, nil)
	pair, err := p.Login(ctx, "alice", "correct-horse", 0, 0)
	if err != nil || pair == nil {
		t.Fatalf("login: pair=%v err=%v", pair, err)
	}

	creds.EXPECT().Get(gomock.Any(), owner).Return(nil, credential.ErrUnavailable)
	if _, err := p.Whoami(ctx, pair.Auth); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	creds.EXPECT().Get(gomock.Any(), owner).Return(nil, credential.ErrUserNotFound)
	if info, err := p.Whoami(ctx, pair.Auth); err != nil || info != nil {
		t.Fatalf("deleted user must fold to nil: info=%+v err=%v", info, err)
	}
}

func TestProviderTokenStoreFailurePropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockStore(ctrl)
	creds.EXPECT().Close().Return(nil)
	b := New().
		WithAuthStore(brokenTokenStore[token.Auth]{}).
		WithRefreshStore(brokenTokenStore[token.Refresh]{})
	p := newMockProvider(t, creds, b)
	defer p.Close()

	ctx := context.Background()
	creds.EXPECT().CheckPassword(gomock.Any(), "alice", "correct-horse").
		Return(&credential.User{ID: uuid.New(), Username: "alice", Enabled: true}, nil)

	if _, err := p.Login(ctx, "alice", "correct-horse", 0, 0); KindOf(err) != KindStorageUnavailable {
		t.Fatalf("login: expected storage_unavailable, got %v", err)
	}

	auth, _ := token.GenerateAuth(32)
	refresh, _ := token.GenerateRefresh(32)

	if _, err := p.Whoami(ctx, auth); KindOf(err) != KindStorageUnavailable {
		t.Fatalf("whoami: expected storage_unavailable, got %v", err)
	}
	if _, err := p.Refresh(ctx, refresh, 0, 0); KindOf(err) != KindStorageUnavailable {
		t.Fatalf("refresh: expected storage_unavailable, got %v", err)
	}
	if err := p.Logout(ctx, auth); KindOf(err) != KindStorageUnavailable {
		t.Fatalf("logout: expected storage_unavailable, got %v", err)
	}
}
