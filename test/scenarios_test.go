//go:build integration
// +build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/token"
)

func TestHTTPLifecycle(t *testing.T) {
	for _, c := range combos() {
		t.Run(c.String(), func(t *testing.T) {
			h := newHarness(t, c)
			srv := httptest.NewServer(httpapi.NewRouter(h.provider, httpapi.Options{}))
			defer srv.Close()

			post := func(path, bearer string, body any) *http.Response {
				raw, _ := json.Marshal(body)
				req, _ := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
				if bearer != "" {
					req.Header.Set("Authorization", "Bearer "+bearer)
				}
				resp, err := srv.Client().Do(req)
				if err != nil {
					t.Fatalf("%s: %v", path, err)
				}
				return resp
			}

			resp := post("/auth/register", "", map[string]string{"username": "alice", "password": "correct horse"})
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("register status %d", resp.StatusCode)
			}

			resp = post("/auth/login", "", map[string]string{"username": "alice", "password": "correct horse"})
			var pair struct {
				AuthToken    string `json:"auth_token"`
				RefreshToken string `json:"refresh_token"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
				t.Fatalf("decode: %v", err)
			}
			resp.Body.Close()

			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/whoami", nil)
			req.Header.Set("Authorization", "Bearer "+pair.AuthToken)
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("whoami: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("whoami status %d", resp.StatusCode)
			}

			resp = post("/auth/logout", pair.AuthToken, nil)
			resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				t.Fatalf("logout status %d", resp.StatusCode)
			}

			resp = post("/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("refresh after logout: status %d", resp.StatusCode)
			}
		})
	}
}

func TestRefreshRaceSingleWinner(t *testing.T) {
	for _, c := range combos() {
		t.Run(c.String(), func(t *testing.T) {
			h := newHarness(t, c)
			ctx := context.Background()
			if _, err := h.provider.Register(ctx, "racer", "correct horse"); err != nil {
				t.Fatalf("register: %v", err)
			}
			pair := mustLogin(t, h.provider, "racer", "correct horse")

			const workers = 16
			start := make(chan struct{})
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					next, err := h.provider.Refresh(ctx, pair.Refresh, 0, 0)
					if err != nil {
						t.Errorf("refresh: %v", err)
						return
					}
					if next != nil {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}()
			}
			close(start)
			wg.Wait()

			if winners != 1 {
				t.Fatalf("expected exactly one winner, got %d", winners)
			}
		})
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	for _, c := range combos() {
		t.Run(c.String(), func(t *testing.T) {
			h := newHarness(t, c)
			ctx := context.Background()
			if _, err := h.provider.Register(ctx, "multi", "correct horse"); err != nil {
				t.Fatalf("register: %v", err)
			}

			phone := mustLogin(t, h.provider, "multi", "correct horse")
			laptop := mustLogin(t, h.provider, "multi", "correct horse")

			if err := h.provider.Logout(ctx, phone.Auth); err != nil {
				t.Fatalf("logout: %v", err)
			}

			if who, err := h.provider.Whoami(ctx, phone.Auth); err != nil || who != nil {
				t.Fatalf("phone session should be gone: %v %v", who, err)
			}
			if who, err := h.provider.Whoami(ctx, laptop.Auth); err != nil || who == nil {
				t.Fatalf("laptop session should survive: %v %v", who, err)
			}
			if next, err := h.provider.Refresh(ctx, laptop.Refresh, 0, 0); err != nil || next == nil {
				t.Fatalf("laptop refresh: %v %v", next, err)
			}
		})
	}
}

func TestRedisNativeExpiry(t *testing.T) {
	h := newHarness(t, combo{credentials: "memory", tokens: "redis"})
	ctx := context.Background()
	if _, err := h.provider.Register(ctx, "short", "correct horse"); err != nil {
		t.Fatalf("register: %v", err)
	}

	pair, err := h.provider.Login(ctx, "short", "correct horse", time.Minute, 2*time.Minute)
	if err != nil || pair == nil {
		t.Fatalf("login: %v", err)
	}

	h.mr.FastForward(90 * time.Second)

	if who, err := h.provider.Whoami(ctx, pair.Auth); err != nil || who != nil {
		t.Fatalf("expired auth token resolved: %v %v", who, err)
	}
	next, err := h.provider.Refresh(ctx, pair.Refresh, 0, 0)
	if err != nil || next == nil {
		t.Fatalf("refresh within lifetime: %v %v", next, err)
	}

	h.mr.FastForward(3 * time.Hour)
	if who, err := h.provider.Whoami(ctx, next.Auth); err != nil || who != nil {
		t.Fatalf("default ttl did not expire: %v %v", who, err)
	}
}

func TestGarbageTokensAreMisses(t *testing.T) {
	for _, c := range combos() {
		t.Run(c.String(), func(t *testing.T) {
			h := newHarness(t, c)
			ctx := context.Background()

			auth, err := token.GenerateAuth(32)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if who, err := h.provider.Whoami(ctx, auth); err != nil || who != nil {
				t.Fatalf("unknown token: %v %v", who, err)
			}
			if err := h.provider.Logout(ctx, auth); err != nil {
				t.Fatalf("logout unknown token: %v", err)
			}
			refresh, _ := token.GenerateRefresh(32)
			if next, err := h.provider.Refresh(ctx, refresh, 0, 0); err != nil || next != nil {
				t.Fatalf("unknown refresh: %v %v", next, err)
			}
		})
	}
}
