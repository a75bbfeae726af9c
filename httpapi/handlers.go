package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/token"
)

const maxBodyBytes = 1 << 16

const kindUnauthorized = "unauthorized"

// Handlers maps HTTP requests to Provider calls.
type Handlers struct {
	provider *authcore.Provider
}

func New(p *authcore.Provider) *Handlers {
	return &Handlers{provider: p}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(w, r, &in); err != nil {
		writeKind(w, http.StatusBadRequest, "invalid_request")
		return
	}

	id, err := h.provider.Register(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{ID: id.String()})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(w, r, &in); err != nil {
		writeKind(w, http.StatusBadRequest, "invalid_request")
		return
	}

	pair, err := h.provider.Login(r.Context(), in.Username, in.Password, 0, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if pair == nil {
		writeKind(w, http.StatusUnauthorized, kindUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil {
		writeKind(w, http.StatusBadRequest, "invalid_request")
		return
	}

	// A malformed token is just an unknown one.
	tok, err := token.ParseRefresh(in.RefreshToken)
	if err != nil || tok.IsZero() {
		writeKind(w, http.StatusUnauthorized, kindUnauthorized)
		return
	}

	pair, err := h.provider.Refresh(r.Context(), tok, 0, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if pair == nil {
		writeKind(w, http.StatusUnauthorized, kindUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

// Logout is idempotent: anonymous requests and revoked tokens also get 204.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := middleware.AuthTokenFromContext(r.Context()); ok {
		if err := h.provider.Logout(r.Context(), tok); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Whoami(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeKind(w, http.StatusUnauthorized, kindUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, whoamiResponse{ID: user.ID.String(), Username: user.Username})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeKind(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, errorResponse{Error: kind})
}

// writeError exposes only the error kind.
func writeError(w http.ResponseWriter, err error) {
	kind := authcore.KindOf(err)
	writeKind(w, statusFor(kind), string(kind))
}

func statusFor(kind authcore.ErrorKind) int {
	switch kind {
	case authcore.KindDuplicateUsername:
		return http.StatusConflict
	case authcore.KindInvalidUsername, authcore.KindPasswordPolicy:
		return http.StatusBadRequest
	case authcore.KindStorageUnavailable, authcore.KindNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeStrict rejects unknown fields, trailing data and oversized bodies.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
