package authcore

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/token"
	"github.com/MrEthical07/authcore/tokenstore"
)

var (
	// ErrCryptoFailure reports a random source or password hash engine failure.
	// It is never retried internally.
	ErrCryptoFailure = errors.New("crypto failure")
	// ErrStorageUnavailable reports a credential or token backend failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrEngineNotReady is returned by a zero or closed Provider.
	ErrEngineNotReady = errors.New("provider not initialized")

	ErrTokenNotFound     = tokenstore.ErrTokenNotFound
	ErrTokenExpired      = tokenstore.ErrTokenExpired
	ErrTokenInvalid      = tokenstore.ErrTokenInvalid
	ErrUserNotFound      = credential.ErrUserNotFound
	ErrDuplicateUsername = credential.ErrDuplicateUsername
	ErrInvalidUsername   = credential.ErrInvalidUsername
	ErrPasswordPolicy    = credential.ErrPasswordPolicy
)

// ErrorKind is the externally observable classification of an error.
// Serving layers expose the kind, never the error text.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindCryptoFailure      ErrorKind = "crypto_failure"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindTokenNotFound      ErrorKind = "token_not_found"
	KindTokenExpired       ErrorKind = "token_expired"
	KindTokenInvalid       ErrorKind = "token_invalid"
	KindUserNotFound       ErrorKind = "user_not_found"
	KindDuplicateUsername  ErrorKind = "duplicate_username"
	KindInvalidUsername    ErrorKind = "invalid_username"
	KindPasswordPolicy     ErrorKind = "password_policy"
	KindNotReady           ErrorKind = "not_ready"
	KindInternal           ErrorKind = "internal"
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCryptoFailure):
		return KindCryptoFailure
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrDuplicateUsername):
		return KindDuplicateUsername
	case errors.Is(err, ErrInvalidUsername):
		return KindInvalidUsername
	case errors.Is(err, ErrPasswordPolicy):
		return KindPasswordPolicy
	case errors.Is(err, ErrEngineNotReady):
		return KindNotReady
	case errors.Is(err, ErrTokenExpired):
		return KindTokenExpired
	case errors.Is(err, ErrTokenNotFound):
		return KindTokenNotFound
	case errors.Is(err, ErrTokenInvalid):
		return KindTokenInvalid
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	default:
		return KindInternal
	}
}

// classify wraps an error escaping a store or flow into the root taxonomy.
// Domain errors that callers act on pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCryptoFailure), errors.Is(err, ErrStorageUnavailable):
		return err
	case errors.Is(err, token.ErrCryptoFailure),
		errors.Is(err, credential.ErrHashFailure),
		errors.Is(err, password.ErrHashFailure):
		return fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	case errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrPasswordPolicy):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}
