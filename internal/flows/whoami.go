package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// WhoamiDeps captures whoami flow dependencies.
type WhoamiDeps struct {
	Credentials CredentialStore
	AuthStore   tokenstore.Store[token.Auth]
}

// RunWhoami resolves the user behind an access token. A revoked or expired
// token and a deleted or disabled user all return (nil, nil).
func RunWhoami(ctx context.Context, tok token.Auth, deps WhoamiDeps) (*credential.User, error) {
	owner, err := deps.AuthStore.Get(ctx, tok)
	if err != nil {
		if tokenstore.IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}

	user, err := deps.Credentials.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, credential.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, nil
	}
	return user, nil
}
