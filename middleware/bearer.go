package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore/token"
)

type authTokenContextKey struct{}

// AuthTokenFromContext returns the access token extracted by [Bearer].
// ok is false for anonymous requests.
func AuthTokenFromContext(ctx context.Context) (token.Auth, bool) {
	tok, ok := ctx.Value(authTokenContextKey{}).(token.Auth)
	return tok, ok && !tok.IsZero()
}

// Bearer decodes an "Authorization: Bearer <token>" header into the request
// context. A missing or malformed header leaves the request anonymous; it is
// never rejected here.
func Bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := ParseBearer(r.Header.Get("Authorization")); ok {
			r = r.WithContext(context.WithValue(r.Context(), authTokenContextKey{}, tok))
		}
		next.ServeHTTP(w, r)
	})
}

// ParseBearer decodes a header value of the form "Bearer <text>".
func ParseBearer(value string) (token.Auth, bool) {
	text, ok := bearerToken(value)
	if !ok {
		return token.Auth{}, false
	}
	tok, err := token.ParseAuth(text)
	if err != nil || tok.IsZero() {
		return token.Auth{}, false
	}
	return tok, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	text := strings.TrimSpace(value[len(bearer):])
	if text == "" {
		return "", false
	}

	return text, true
}
