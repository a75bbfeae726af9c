package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := authcore.New().WithConfig(cfg).WithLogger(logger).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	if opts.Logger == nil {
		opts.Logger = logger
	}
	srv := httptest.NewServer(NewRouter(p, opts))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, bearer string, body any) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func login(t *testing.T, srv *httptest.Server, username, password string) tokenPairResponse {
	t.Helper()
	resp, body := doJSON(t, srv, http.MethodPost, "/auth/login", "", credentialsRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var pair tokenPairResponse
	require.NoError(t, json.Unmarshal(body, &pair))
	require.NotEmpty(t, pair.AuthToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Greater(t, pair.RefreshTokenExpires, pair.AuthTokenExpires)
	return pair
}

func errorKind(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Error
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, body := doJSON(t, srv, http.MethodPost, "/auth/register", "", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var reg registerResponse
	require.NoError(t, json.Unmarshal(body, &reg))
	require.NotEmpty(t, reg.ID)

	pair := login(t, srv, "alice", "correct horse")

	resp, body = doJSON(t, srv, http.MethodGet, "/auth/whoami", pair.AuthToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var who whoamiResponse
	require.NoError(t, json.Unmarshal(body, &who))
	require.Equal(t, reg.ID, who.ID)
	require.Equal(t, "alice", who.Username)

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var rotated tokenPairResponse
	require.NoError(t, json.Unmarshal(body, &rotated))
	require.NotEqual(t, pair.AuthToken, rotated.AuthToken)

	// the old pair is gone
	resp, _ = doJSON(t, srv, http.MethodGet, "/auth/whoami", pair.AuthToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/auth/logout", rotated.AuthToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/auth/whoami", rotated.AuthToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: rotated.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// logout again is still fine
	resp, _ = doJSON(t, srv, http.MethodPost, "/auth/logout", rotated.AuthToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRegisterErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, _ := doJSON(t, srv, http.MethodPost, "/auth/register", "", credentialsRequest{Username: "bob", Password: "long enough pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodPost, "/auth/register", "", credentialsRequest{Username: "bob", Password: "another password"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, string(authcore.KindDuplicateUsername), errorKind(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/register", "", credentialsRequest{Username: "", Password: "long enough pw"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, string(authcore.KindInvalidUsername), errorKind(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/register", "", credentialsRequest{Username: "carol", Password: "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, string(authcore.KindPasswordPolicy), errorKind(t, body))
}

func TestMalformedBodies(t *testing.T) {
	srv := newTestServer(t, Options{})

	cases := map[string]string{
		"not json":      "{",
		"unknown field": `{"username":"a","password":"b","admin":true}`,
		"trailing":      `{"username":"a","password":"b"} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, out := doJSON(t, srv, http.MethodPost, "/auth/login", "", body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, "invalid_request", errorKind(t, out))
		})
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, _ := doJSON(t, srv, http.MethodPost, "/auth/register", "", credentialsRequest{Username: "dave", Password: "right password"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, in := range []credentialsRequest{
		{Username: "dave", Password: "wrong password"},
		{Username: "nobody", Password: "right password"},
	} {
		resp, body := doJSON(t, srv, http.MethodPost, "/auth/login", "", in)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, kindUnauthorized, errorKind(t, body))
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, tok := range []string{"", "!!not-base64!!", "AAAA"} {
		resp, _ := doJSON(t, srv, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: tok})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, tok)
	}
}

func TestAnonymousRequests(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, _ := doJSON(t, srv, http.MethodGet, "/auth/whoami", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRequestIDAndHealth(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, body := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "ok")
	require.Len(t, resp.Header.Get("X-Request-Id"), 26)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "caller-chosen")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "caller-chosen", resp.Header.Get("X-Request-Id"))
}

func TestBasePathAndMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("metrics here"))
	})
	srv := newTestServer(t, Options{BasePath: "/api", Metrics: metrics})

	resp, _ := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", credentialsRequest{Username: "erin", Password: "long enough pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/auth/register", "", credentialsRequest{Username: "erin2", Password: "long enough pw"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "metrics here", string(body))
}

func TestRecoverHidesPanic(t *testing.T) {
	var logs bytes.Buffer
	h := Recover(slog.New(slog.NewTextHandler(&logs, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret detail")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret detail")
	require.Contains(t, logs.String(), "secret detail")
}

func TestStatusForKinds(t *testing.T) {
	cases := map[authcore.ErrorKind]int{
		authcore.KindDuplicateUsername:  http.StatusConflict,
		authcore.KindInvalidUsername:    http.StatusBadRequest,
		authcore.KindPasswordPolicy:     http.StatusBadRequest,
		authcore.KindStorageUnavailable: http.StatusServiceUnavailable,
		authcore.KindNotReady:           http.StatusServiceUnavailable,
		authcore.KindCryptoFailure:      http.StatusInternalServerError,
		authcore.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, statusFor(kind), string(kind))
	}
}
