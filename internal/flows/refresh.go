package flows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// RefreshFailureKind classifies refresh outcomes for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	// RefreshFailureUnknown means the refresh token was absent or expired, or
	// its owner no longer exists or is disabled.
	RefreshFailureUnknown
	// RefreshFailureLostRace means another caller consumed the token first.
	RefreshFailureLostRace
	RefreshFailureRevokeAuth
	RefreshFailureConsume
	RefreshFailureIssue
)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Credentials CredentialStore
	Issue       IssueDeps
}

// RefreshResult carries either the issued pair or failure metadata.
// Err is set only for infrastructure failures.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	Owner        uuid.UUID
	RevokedAuths int
	Issued       *IssuedPair
}

// RunRefresh rotates a pair:
//
//  1. resolve the owner of the refresh token and check the account is
//     still enabled;
//  2. delete every access token linked to it, found through the refresh
//     token's auth-token tag and the access store's reverse index;
//  3. consume the refresh token (first caller wins);
//  4. force-issue a new pair for the same owner.
//
// Access tokens are revoked before the refresh token is consumed, so a
// failure in step 2 leaves the refresh token usable for a retry. A failure
// after step 3 leaves the session revoked without a replacement.
func RunRefresh(ctx context.Context, tok token.Refresh, authTTL, refreshTTL time.Duration, deps RefreshDeps) RefreshResult {
	stores := deps.Issue.Stores

	owner, err := stores.Refresh.Get(ctx, tok)
	if err != nil {
		if tokenstore.IsMiss(err) {
			return RefreshResult{Failure: RefreshFailureUnknown}
		}
		return RefreshResult{Failure: RefreshFailureUnknown, Err: err}
	}

	user, err := deps.Credentials.Get(ctx, owner)
	switch {
	case errors.Is(err, credential.ErrUserNotFound):
		return RefreshResult{Failure: RefreshFailureUnknown, Owner: owner}
	case err != nil:
		return RefreshResult{Failure: RefreshFailureUnknown, Err: err, Owner: owner}
	case !user.Enabled:
		return RefreshResult{Failure: RefreshFailureUnknown, Owner: owner}
	}

	revoked := 0
	paired, err := stores.Refresh.GetTag(ctx, tok, token.TagAuthToken)
	switch {
	case err == nil:
		if err := stores.Auth.Delete(ctx, token.NewAuth(token.FromBytes(paired))); err != nil {
			return RefreshResult{Failure: RefreshFailureRevokeAuth, Err: err, Owner: owner}
		}
		revoked++
	case tokenstore.IsMiss(err):
	default:
		return RefreshResult{Failure: RefreshFailureRevokeAuth, Err: err, Owner: owner}
	}

	n, err := stores.Auth.DeleteByTag(ctx, token.TagRefreshToken, tok.Value().Bytes())
	if err != nil {
		return RefreshResult{Failure: RefreshFailureRevokeAuth, Err: err, Owner: owner, RevokedAuths: revoked}
	}
	revoked += n

	if _, err := stores.Refresh.Take(ctx, tok); err != nil {
		if errors.Is(err, tokenstore.ErrTokenExpired) {
			return RefreshResult{Failure: RefreshFailureUnknown, Owner: owner, RevokedAuths: revoked}
		}
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			return RefreshResult{Failure: RefreshFailureLostRace, Owner: owner, RevokedAuths: revoked}
		}
		return RefreshResult{Failure: RefreshFailureConsume, Err: err, Owner: owner, RevokedAuths: revoked}
	}

	issued, err := RunIssue(ctx, owner, authTTL, refreshTTL, deps.Issue)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Owner: owner, RevokedAuths: revoked}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		Owner:        owner,
		RevokedAuths: revoked,
		Issued:       issued,
	}
}
