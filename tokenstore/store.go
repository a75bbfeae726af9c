package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/token"
)

var (
	// ErrTokenNotFound is returned when the token, or a requested tag, is absent.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is returned when a read finds a record past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned when a stored record cannot be decoded.
	ErrTokenInvalid = errors.New("token record invalid")
	// ErrUnavailable wraps backend connection and I/O failures.
	ErrUnavailable = errors.New("token store unavailable")
)

// NoExpiry keeps a record until it is deleted.
const NoExpiry time.Duration = 0

// Tags maps tag names to opaque byte values.
type Tags map[string][]byte

// Clone returns a deep copy of t.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// Backend identifies a store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendBadger Backend = "badger"
)

// Store is the token record contract shared by all backends. T fixes the token
// kind so an access-token store never accepts a refresh token.
type Store[T token.Kind] interface {
	// Put inserts or replaces the record for tok.
	Put(ctx context.Context, tok T, owner uuid.UUID, tags Tags, ttl time.Duration) error
	// Get returns the owner of tok.
	Get(ctx context.Context, tok T) (uuid.UUID, error)
	// Take atomically reads and removes tok. Of several concurrent callers
	// for the same token, exactly one receives the owner.
	Take(ctx context.Context, tok T) (uuid.UUID, error)
	// Delete removes tok. Deleting an absent token succeeds.
	Delete(ctx context.Context, tok T) error
	// PutTag sets one tag on an existing record.
	PutTag(ctx context.Context, tok T, name string, value []byte) error
	// GetTag returns one tag of tok.
	GetTag(ctx context.Context, tok T, name string) ([]byte, error)
	// GetByTag returns every live token whose tag name equals value.
	GetByTag(ctx context.Context, name string, value []byte) ([]T, error)
	// DeleteByTag removes every token carrying the tag and reports how many
	// of them were live.
	DeleteByTag(ctx context.Context, name string, value []byte) (int, error)
	// Kind reports the backend implementation.
	Kind() Backend
	// Close releases backend resources the store owns.
	Close() error
}

// IsMiss reports whether err is a domain miss rather than a failure.
func IsMiss(err error) bool {
	return errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenExpired)
}

func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl == NoExpiry {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(exp, now time.Time) bool {
	return !exp.IsZero() && !now.Before(exp)
}
