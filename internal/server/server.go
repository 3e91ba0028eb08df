package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/albertopd/secureprompt/internal/access"
	"github.com/albertopd/secureprompt/internal/audit"
	spotel "github.com/albertopd/secureprompt/internal/otel"
	"github.com/albertopd/secureprompt/internal/scrub"
)

const defaultTimeout = 30 * time.Second

// Server holds all dependencies for the HTTP API.
type Server struct {
	router       *chi.Mux
	engine       *scrub.Engine
	accessEngine *access.Engine
	auditStore   *audit.Store
	apiKeys      map[string]string
	limiter      *RateLimiter
	startTime    time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter sets the per-corp rate limiter (nil disables limiting).
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// NewServer builds a Server with the required dependencies.
func NewServer(
	engine *scrub.Engine,
	accessEngine *access.Engine,
	auditStore *audit.Store,
	apiKeys map[string]string,
	opts ...Option,
) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		engine:       engine,
		accessEngine: accessEngine,
		auditStore:   auditStore,
		apiKeys:      apiKeys,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKeys == nil {
		s.apiKeys = make(map[string]string)
	}
	return s
}

// Routes returns the configured http.Handler (chi router with all middleware
// and routes).
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(spotel.Middleware())

	// Unauthenticated
	r.Get("/health", s.handleHealth)

	// Authenticated API group
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/text/scrub", s.handleScrub)
		r.Post("/v1/text/descrub", s.handleDescrub)

		r.Get("/v1/audit", s.handleAuditList)
		r.Get("/v1/audit/export", s.handleAuditExport)
		r.Get("/v1/audit/{id}", s.handleAuditGet)
		r.Get("/v1/audit/{id}/verify", s.handleAuditVerify)
	})

	return r
}
