package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/password"
)

// Verifier applies the password policy shared by every backend.
type Verifier struct {
	hasher    password.Hasher
	dummyHash string
}

// NewVerifier returns a Verifier over h. It hashes one random password up
// front so lookups of unknown usernames cost the same as real checks.
func NewVerifier(h password.Hasher) (*Verifier, error) {
	if h == nil {
		return nil, errors.New("credential: nil password hasher")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashFailure, err)
	}
	dummy, err := h.Hash(base64.RawURLEncoding.EncodeToString(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashFailure, err)
	}
	return &Verifier{hasher: h, dummyHash: dummy}, nil
}

// Hash hashes a new password, mapping length violations to ErrPasswordPolicy.
func (v *Verifier) Hash(pw string) (string, error) {
	h, err := v.hasher.Hash(pw)
	if err != nil {
		if password.IsPolicyError(err) {
			return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return "", fmt.Errorf("%w: %v", ErrHashFailure, err)
	}
	return h, nil
}

// Check verifies pw against u. It returns ok=false for a nil or disabled user
// and for a mismatch. When the stored hash is outdated, rehash holds a fresh
// hash the caller should persist.
func (v *Verifier) Check(u *User, pw string) (ok bool, rehash string, err error) {
	if u == nil {
		_, _ = v.hasher.Verify(pw, v.dummyHash)
		return false, "", nil
	}

	match, err := v.hasher.Verify(pw, u.PasswordHash)
	if err != nil {
		// Unparseable stored hashes and oversized inputs can never match.
		if errors.Is(err, password.ErrMalformedHash) ||
			errors.Is(err, password.ErrUnsupportedAlgorithm) ||
			errors.Is(err, password.ErrPasswordTooLong) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("%w: %v", ErrHashFailure, err)
	}
	if !match || !u.Enabled {
		return false, "", nil
	}

	if up, err := v.hasher.NeedsUpgrade(u.PasswordHash); err == nil && up {
		if h, err := v.hasher.Hash(pw); err == nil {
			rehash = h
		}
	}
	return true, rehash, nil
}
