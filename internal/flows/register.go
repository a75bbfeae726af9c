package flows

import (
	"context"

	"github.com/google/uuid"
)

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	Credentials CredentialStore
}

// RunRegister creates a user. Duplicate usernames and policy violations are
// returned as errors; the caller classifies them.
func RunRegister(ctx context.Context, username, password string, deps RegisterDeps) (uuid.UUID, error) {
	return deps.Credentials.Create(ctx, username, password)
}
