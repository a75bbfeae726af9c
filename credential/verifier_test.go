package credential

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/password"
)

type failingHasher struct {
	password.Hasher
	verifyErr error
}

func (f failingHasher) Verify(string, string) (bool, error) { return false, f.verifyErr }

func cheapHasher(t *testing.T) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestVerifierMalformedStoredHashIsMismatch(t *testing.T) {
	v, err := NewVerifier(cheapHasher(t))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	ok, _, err := v.Check(&User{ID: uuid.New(), PasswordHash: "garbage", Enabled: true}, "correct-horse")
	if err != nil || ok {
		t.Fatalf("expected silent mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestVerifierEngineFailureSurfaces(t *testing.T) {
	base := cheapHasher(t)
	v, err := NewVerifier(failingHasher{Hasher: base, verifyErr: errors.New("engine down")})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	_, _, err = v.Check(&User{ID: uuid.New(), PasswordHash: "x", Enabled: true}, "correct-horse")
	if !errors.Is(err, ErrHashFailure) {
		t.Fatalf("expected ErrHashFailure, got %v", err)
	}
}

func TestVerifierNilUserSpendsWork(t *testing.T) {
	v, err := NewVerifier(cheapHasher(t))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if v.dummyHash == "" {
		t.Fatal("dummy hash not prepared")
	}
	ok, rehash, err := v.Check(nil, "anything-at-all")
	if ok || rehash != "" || err != nil {
		t.Fatalf("nil user must be a silent miss, got ok=%v rehash=%q err=%v", ok, rehash, err)
	}
}
