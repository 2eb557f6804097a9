// Package api exposes the staged-import saga, hybrid search and the admin
// sweep over HTTP. Handlers are thin: they authenticate, validate and hand
// off to the staging coordinator or the search merger.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/stagehand/internal/auth"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/ratelimit"
	"github.com/listenupapp/stagehand/internal/search"
	"github.com/listenupapp/stagehand/internal/staging"
	"github.com/listenupapp/stagehand/internal/store"
	"github.com/listenupapp/stagehand/internal/validation"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Services groups the components handlers call into.
type Services struct {
	Staging *staging.Coordinator
	Search  *search.Merger
	Index   *search.Index
	Tokens  *auth.TokenService
	Metrics *metrics.Metrics
}

// Options tunes the HTTP surface. Zero values take defaults.
type Options struct {
	AllowedOrigins []string
	SweepThreshold time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     store.Store
	services  *Services
	router    *chi.Mux
	api       huma.API
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	opts      Options
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st store.Store, services *Services, opts Options, logger *slog.Logger) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.SweepThreshold <= 0 {
		opts.SweepThreshold = staging.DefaultSweepThreshold
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 20
	}

	s := &Server{
		store:     st,
		services:  services,
		router:    chi.NewRouter(),
		validator: validation.New(),
		limiter:   ratelimit.New(opts.RateLimitRPS, opts.RateLimitBurst),
		opts:      opts,
		logger:    logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Stagehand API", Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerStagingRoutes()
	s.registerSearchRoutes()
	s.registerAdminRoutes()

	if services.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", services.Metrics.Handler())
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// setupMiddleware configures the middleware stack. chi requires it to be in
// place before any route is registered.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(authMiddleware(s.services.Tokens))
	s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
}

// requestLogger logs one line per request at debug, or warn for 5xx.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
