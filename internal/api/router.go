package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/starford/folderdb/internal/docservice"
	"github.com/starford/folderdb/internal/journal"
)

// RouterOption configures NewRouter.
type RouterOption func(*routerConfig)

type routerConfig struct {
	authEnabled bool
	token       string
	sse         http.Handler
	journal     *journal.DB
	limiter     *rate.Limiter
}

// WithAuth enforces Bearer token auth on every route.
func WithAuth(token string) RouterOption {
	return func(c *routerConfig) {
		c.authEnabled = true
		c.token = token
	}
}

// WithSSE mounts h at GET /events inside the auth group.
func WithSSE(h http.Handler) RouterOption {
	return func(c *routerConfig) {
		c.sse = h
	}
}

// WithJournal enables GET /journal.
func WithJournal(db *journal.DB) RouterOption {
	return func(c *routerConfig) {
		c.journal = db
	}
}

// WithRateLimit allows rps requests per second with the given burst across
// all clients. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(c *routerConfig) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *docservice.Service, opts ...RouterOption) chi.Router {
	cfg := &routerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	h := NewHandler(svc, cfg.journal)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.authEnabled, cfg.token))
	r.Use(RateLimitMiddleware(cfg.limiter))

	// Documents.
	r.Get("/docs", h.GetDoc)
	r.Get("/docs/*", h.GetDoc)
	r.Put("/docs/*", h.PutDoc)
	r.Post("/docs", h.CreateDoc)
	r.Post("/docs/*", h.CreateDoc)
	r.Patch("/docs/*", h.PatchDoc)
	r.Delete("/docs/*", h.DeleteDoc)
	r.Get("/raw/*", h.RawDoc)
	r.Post("/upload/*", h.Upload)

	// Directories.
	r.Post("/dirs/*", h.MakeDir)
	r.Delete("/dirs/*", h.RemoveDir)

	r.Post("/rename", h.Rename)

	// Search.
	r.Get("/search", h.Search)
	r.Get("/search/*", h.Search)

	if cfg.journal != nil {
		r.Get("/journal", h.Journal)
	}

	// SSE endpoint (protected by same auth middleware).
	if cfg.sse != nil {
		r.Get("/events", cfg.sse.ServeHTTP)
	}

	return r
}
