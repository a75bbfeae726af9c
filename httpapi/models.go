package httpapi

import (
	"github.com/MrEthical07/authcore"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type tokenPairResponse struct {
	AuthToken           string `json:"auth_token"`
	AuthTokenExpires    int64  `json:"auth_token_expires"`
	RefreshToken        string `json:"refresh_token"`
	RefreshTokenExpires int64  `json:"refresh_token_expires"`
}

type whoamiResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func pairResponse(p *authcore.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AuthToken:           p.Auth.Encode(),
		AuthTokenExpires:    p.AuthExpiresAtUnix(),
		RefreshToken:        p.Refresh.Encode(),
		RefreshTokenExpires: p.RefreshExpiresAtUnix(),
	}
}
