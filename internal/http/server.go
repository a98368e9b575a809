// Package http exposes the calendar engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/projection"
	"cashflow/internal/services"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

type Server struct {
	http.Server

	engine      *services.Engine
	toggle      *projection.Toggle
	invalidator services.Invalidator
	screens     *screenRegistry
	limiter     *ratelimit.Limiter
	tracer      *trace.Middleware
	logger      *log.Logger

	allowedOrigins []string
	rateLimit      int
	maxScreens     int
}

// Option configures a Server.
type Option func(*Server)

// WithInvalidator broadcasts cache invalidations from screen rule mutations.
func WithInvalidator(inv services.Invalidator) Option {
	return func(s *Server) { s.invalidator = inv }
}

// WithAllowedOrigins sets the CORS allow list. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithRateLimit caps requests per client per minute. Zero disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithMaxScreens caps concurrently mounted screens.
func WithMaxScreens(n int) Option {
	return func(s *Server) { s.maxScreens = n }
}

func NewServer(addr string, engine *services.Engine, toggle *projection.Toggle, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		engine:         engine,
		toggle:         toggle,
		logger:         logger.WithComponent(log.ComponentHTTP),
		allowedOrigins: []string{"*"},
		maxScreens:     256,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.screens = newScreenRegistry(s.maxScreens)

	extractor, err := security.NewIPExtractor()
	if err != nil {
		// Only the built-in CIDRs are parsed here.
		panic(err)
	}
	s.tracer = trace.NewMiddleware(logger, extractor.ClientIP)
	if s.rateLimit > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.rateLimit})
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(extractor.ClientIP),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(clientIP func(*http.Request) string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Handler)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		if s.limiter != nil {
			r.Use(s.limiter.Middleware(clientIP, func(w http.ResponseWriter, _ *http.Request) {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}))
		}

		r.Post("/calendar", s.handleCalendar)
		r.Post("/calendar/day", s.handleDayDetail)
		r.Post("/upcoming", s.handleUpcoming)
		r.Post("/projection", s.handleProjection)
		r.Post("/budget", s.handleBudget)
		r.Post("/budget/income", s.handleIncome)

		r.Get("/preferences/projection", s.handleGetProjectionPreference)
		r.Put("/preferences/projection", s.handlePutProjectionPreference)

		r.Post("/screens", s.handleCreateScreen)
		r.Route("/screens/{screenID}", func(r chi.Router) {
			r.Use(s.screenCtx)
			r.Delete("/", s.handleDeleteScreen)
			r.Post("/calendar", s.handleScreenCalendar)
			r.Get("/calendar", s.handleScreenCurrent)
			r.Post("/projection", s.handleScreenProjection)
			r.Put("/projection", s.handleScreenToggle)
			r.Post("/bind/{container}", s.handleBind)

			r.Route("/browse", func(r chi.Router) {
				r.Post("/", s.handleOpenBrowse)
				r.Get("/", s.handleGetBrowse)
				r.Post("/next", s.handleBrowseNext)
				r.Post("/prev", s.handleBrowsePrev)
				r.Post("/rules", s.handleApplyRule)
				r.Post("/detail", s.handleOpenDetail)
				r.Delete("/detail", s.handleCloseDetail)
			})
		})
	})

	return r
}

// RateLimiter returns the limiter, or nil when limiting is disabled.
func (s *Server) RateLimiter() *ratelimit.Limiter {
	return s.limiter
}

// Shutdown stops accepting requests, then tears down every mounted screen.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	n := s.screens.closeAll()
	s.logger.InfoContext(ctx, "HTTP server stopped",
		"screens_closed", n,
		"requests_served", s.tracer.Metrics().TotalRequests)
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks the preference store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.toggle.Enabled(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		respondError(w, http.StatusServiceUnavailable, "preferences unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
