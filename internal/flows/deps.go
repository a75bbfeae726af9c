package flows

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

// CredentialStore is the subset of credential.Store the flows call.
type CredentialStore interface {
	CheckPassword(ctx context.Context, username, password string) (*credential.User, error)
	Create(ctx context.Context, username, password string) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*credential.User, error)
}

// Deps groups flow dependency sets. The Provider builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Register RegisterDeps
	Issue    IssueDeps
	Login    LoginDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Whoami   WhoamiDeps
}

// Stores bundles the two token stores.
type Stores struct {
	Auth    tokenstore.Store[token.Auth]
	Refresh tokenstore.Store[token.Refresh]
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
