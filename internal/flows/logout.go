package flows

import (
	"context"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Stores Stores
	Warn   func(msg string, args ...any)
}

// LogoutResult reports what logout found. Owner is uuid.Nil when the access
// token could not be resolved.
type LogoutResult struct {
	Owner           uuid.UUID
	RevokedRefresh  int
	AuthWasResolved bool
}

// RunLogout revokes an access token and its paired refresh token. Reads that
// only serve auditing are best-effort; only delete failures are returned.
// Logging out an unknown or already revoked token succeeds.
func RunLogout(ctx context.Context, tok token.Auth, deps LogoutDeps) (LogoutResult, error) {
	stores := deps.Stores
	var res LogoutResult

	// The tag must be read before the access record is deleted.
	paired, tagErr := stores.Auth.GetTag(ctx, tok, token.TagRefreshToken)
	if tagErr != nil && !tokenstore.IsMiss(tagErr) && deps.Warn != nil {
		deps.Warn("authcore: logout refresh tag lookup failed", "error", tagErr)
	}

	if owner, err := stores.Auth.Get(ctx, tok); err == nil {
		res.Owner = owner
		res.AuthWasResolved = true
	} else if !tokenstore.IsMiss(err) && deps.Warn != nil {
		deps.Warn("authcore: logout owner lookup failed", "error", err)
	}

	if err := stores.Auth.Delete(ctx, tok); err != nil {
		return res, err
	}

	if tagErr == nil {
		if err := stores.Refresh.Delete(ctx, token.NewRefresh(token.FromBytes(paired))); err != nil {
			return res, err
		}
		res.RevokedRefresh++
	}

	// Covers pairs whose access record already expired and lost its tag.
	n, err := stores.Refresh.DeleteByTag(ctx, token.TagAuthToken, tok.Value().Bytes())
	if err != nil {
		return res, err
	}
	res.RevokedRefresh += n
	return res, nil
}
