package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// IssueDeps captures force-issue dependencies shared by login and refresh.
type IssueDeps struct {
	AuthSize    int
	RefreshSize int
	Stores      Stores
	Now         func() time.Time
	Warn        func(msg string, args ...any)
}

// IssuedPair is a freshly stored token pair.
type IssuedPair struct {
	Owner            uuid.UUID
	Pair             token.Pair
	AuthExpiresAt    time.Time
	RefreshExpiresAt time.Time
}

// RunIssue generates a new pair for owner without re-verifying anything.
// Each token is inserted already tagged with its partner, so a stored token
// is never observable without its link. If the second insert fails the first
// is removed and the error returned.
func RunIssue(ctx context.Context, owner uuid.UUID, authTTL, refreshTTL time.Duration, deps IssueDeps) (*IssuedPair, error) {
	auth, err := token.GenerateAuth(deps.AuthSize)
	if err != nil {
		return nil, err
	}
	refresh, err := token.GenerateRefresh(deps.RefreshSize)
	if err != nil {
		return nil, err
	}

	now := nowOr(deps.Now)

	authTags := tokenstore.Tags{token.TagRefreshToken: refresh.Value().Bytes()}
	if err := deps.Stores.Auth.Put(ctx, auth, owner, authTags, authTTL); err != nil {
		return nil, fmt.Errorf("store auth token: %w", err)
	}

	refreshTags := tokenstore.Tags{token.TagAuthToken: auth.Value().Bytes()}
	if err := deps.Stores.Refresh.Put(ctx, refresh, owner, refreshTags, refreshTTL); err != nil {
		if delErr := deps.Stores.Auth.Delete(ctx, auth); delErr != nil && deps.Warn != nil {
			deps.Warn("authcore: rollback of auth token failed", "error", delErr)
		}
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &IssuedPair{
		Owner:            owner,
		Pair:             token.Pair{Auth: auth, Refresh: refresh},
		AuthExpiresAt:    now.Add(authTTL),
		RefreshExpiresAt: now.Add(refreshTTL),
	}, nil
}
