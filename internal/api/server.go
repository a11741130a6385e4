// Package api provides the HTTP API server and handlers for the mirror.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ffmirror/ffserve/internal/config"
	"github.com/ffmirror/ffserve/internal/ratelimit"
)

// Pinger reports whether a backing component is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    Pinger
	queue    Pinger
	services *Services
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger

	favoriteLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store, queue Pinger, services *Services, cfg config.ServerConfig, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		store:    store,
		queue:    queue,
		services: services,
		router:   router,
		logger:   logger,
	}

	if cfg.FavoriteRate > 0 {
		s.favoriteLimiter = ratelimit.New(cfg.FavoriteRate, cfg.FavoriteBurst, 0)
	}

	s.setupMiddleware(cfg.AllowedOrigins)

	s.api = humachi.New(router, newHumaConfig())
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

func newHumaConfig() huma.Config {
	humaConfig := huma.DefaultConfig("ffserve API", "1.0.0")
	humaConfig.Info.Description = "Read-only browser for a local fan-fiction mirror"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	return humaConfig
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.favoriteLimiter != nil {
		s.favoriteLimiter.Stop()
	}
}

// API exposes the huma API, mostly for tests.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	if len(allowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthorRoutes()
	s.registerStoryRoutes()
	s.registerTagRoutes()
	s.registerFavoriteRoutes()
}
