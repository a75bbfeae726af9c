package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/credential"
)

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Credentials CredentialStore
	Issue       IssueDeps
}

// LoginResult is a successful login.
type LoginResult struct {
	User   *credential.User
	Issued *IssuedPair
}

// RunLogin verifies credentials and force-issues a new pair on success.
// A mismatch, unknown user or disabled account returns (nil, nil).
// Existing sessions of the user are left untouched.
func RunLogin(ctx context.Context, username, password string, authTTL, refreshTTL time.Duration, deps LoginDeps) (*LoginResult, error) {
	user, err := deps.Credentials.CheckPassword(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	issued, err := RunIssue(ctx, user.ID, authTTL, refreshTTL, deps.Issue)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Issued: issued}, nil
}
