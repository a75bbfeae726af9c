package authcore

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/token"
)

// TokenPair is the result of a successful Login or Refresh.
type TokenPair struct {
	Auth             token.Auth
	Refresh          token.Refresh
	AuthExpiresAt    time.Time
	RefreshExpiresAt time.Time
}

// AuthExpiresAtUnix returns the access token expiry in epoch seconds.
func (p *TokenPair) AuthExpiresAtUnix() int64 { return p.AuthExpiresAt.Unix() }

// RefreshExpiresAtUnix returns the refresh token expiry in epoch seconds.
func (p *TokenPair) RefreshExpiresAtUnix() int64 { return p.RefreshExpiresAt.Unix() }

// UserInfo is the identity resolved by Whoami.
type UserInfo struct {
	ID       uuid.UUID
	Username string
}
