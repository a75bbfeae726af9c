package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

// Options configures the HTTP router.
type Options struct {
	Logger *slog.Logger
	// Timeout bounds each request; zero disables it.
	Timeout time.Duration
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	// BasePath prefixes every route, e.g. "/api".
	BasePath string
}

// NewRouter builds the chi router serving the Provider.
func NewRouter(provider *authcore.Provider, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	root := chi.NewRouter()

	// outermost first
	root.Use(
		Recover(opts.Logger),
		RequestID(),
		Logging(opts.Logger),
		withClientInfo,
		middleware.Bearer,
	)
	if opts.Timeout > 0 {
		root.Use(chimw.Timeout(opts.Timeout))
	}

	h := New(provider)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, provider)
		root.Mount(opts.BasePath, sub)
	} else {
		registerRoutes(root, h, provider)
	}

	root.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return root
}

func registerRoutes(r chi.Router, h *Handlers, provider *authcore.Provider) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)

	r.With(middleware.RequireUser(provider)).Get("/auth/whoami", h.Whoami)
}

// withClientInfo copies the client address and user agent into the context
// for audit events.
func withClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authcore.WithClientIP(r.Context(), clientIP(r))
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
