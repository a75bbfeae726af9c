package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore"
)

type userContextKey struct{}

// UserFromContext returns the identity resolved by [RequireUser].
func UserFromContext(ctx context.Context) (*authcore.UserInfo, bool) {
	u, ok := ctx.Value(userContextKey{}).(*authcore.UserInfo)
	return u, ok
}

// RequireUser rejects requests whose bearer token does not resolve to a user.
// It must run after [Bearer]. Domain misses answer 401; backend failures
// answer 503 with only the error kind in the body.
func RequireUser(provider *authcore.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := AuthTokenFromContext(r.Context())
			if !ok || provider == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := provider.Whoami(r.Context(), tok)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, string(authcore.KindOf(err)))
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + kind + `"}` + "\n"))
}
