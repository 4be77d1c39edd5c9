// Package api exposes the licensing services over HTTP using huma on a chi router.
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

	"github.com/beatvault/beatvault-server/internal/logger"
	"github.com/beatvault/beatvault-server/internal/ratelimit"
	"github.com/beatvault/beatvault-server/internal/sse"
)

// APIVersion is reported in the OpenAPI document.
const APIVersion = "1.0.0"

// Config holds the HTTP surface settings.
type Config struct {
	Name               string
	CORSOrigins        []string
	IssueRatePerMinute int // 0 disables issuance rate limiting
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services     *Services
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
	issueLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, sseHandler *sse.Handler, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Name == "" {
		cfg.Name = "BeatVault"
	}

	router := chi.NewRouter()

	s := &Server{
		services: services,
		router:   router,
		logger:   logger,
	}
	if cfg.IssueRatePerMinute > 0 {
		s.issueLimiter = ratelimit.PerMinute(cfg.IssueRatePerMinute)
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig(cfg.Name+" API", APIVersion)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerLicenseRoutes()
	s.registerBeatRoutes()

	if sseHandler != nil {
		router.Get("/api/v1/events", sseHandler.ServeHTTP)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the underlying huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.issueLimiter != nil {
		s.issueLimiter.Stop()
	}
}

// setupMiddleware configures the middleware stack. No compression: it would
// buffer the event stream.
func (s *Server) setupMiddleware(cfg Config) {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

// requestLogger puts a request-scoped logger in the context and logs each
// request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		reqLogger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(logger.IntoContext(r.Context(), reqLogger)))

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}
