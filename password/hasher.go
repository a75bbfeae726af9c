package password

import "errors"

var (
	// ErrPasswordTooShort is returned by Hash when the password is below the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when the password exceeds the maximum length.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedAlgorithm is returned for hashes of an unknown scheme.
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
	// ErrHashFailure is returned when the hash engine or its salt source fails.
	ErrHashFailure = errors.New("password hash failure")
)

// Hasher hashes and verifies passwords. Implementations are safe for concurrent use.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// IsPolicyError reports whether err rejects the password itself rather than
// signalling an engine failure.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) || errors.Is(err, ErrPasswordTooLong)
}
