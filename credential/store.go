package credential

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/MrEthical07/authcore/credential Store

var (
	// ErrUserNotFound is returned when no user matches the id or username.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("duplicate username")
	// ErrInvalidUsername is returned for empty or oversized usernames.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrPasswordPolicy is returned when a password fails length checks.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrHashFailure is returned when the password hash engine fails.
	ErrHashFailure = errors.New("password hash failure")
	// ErrUnavailable wraps backend connection and query failures.
	ErrUnavailable = errors.New("credential store unavailable")
)

// MaxUsernameBytes bounds usernames across backends.
const MaxUsernameBytes = 255

// User is a stored account.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Enabled      bool
}

// UpdateUser holds optional field changes; nil fields are left untouched.
type UpdateUser struct {
	Username *string
	Enabled  *bool
}

// Store is the credential contract.
type Store interface {
	// CheckPassword returns the user when username exists, is enabled and
	// password matches. Any other outcome is (nil, nil).
	CheckPassword(ctx context.Context, username, password string) (*User, error)
	// Create hashes password and stores a new enabled user.
	Create(ctx context.Context, username, password string) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, id uuid.UUID, upd UpdateUser) error
	// UpdatePassword re-hashes and replaces the stored password.
	UpdatePassword(ctx context.Context, id uuid.UUID, password string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}

// ValidateUsername rejects empty, oversized or NUL-containing usernames.
// Usernames are compared byte for byte.
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameBytes || strings.ContainsRune(username, 0) {
		return ErrInvalidUsername
	}
	return nil
}
