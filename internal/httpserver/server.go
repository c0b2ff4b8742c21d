package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Pinger is implemented by clients the readiness check depends on besides
// Postgres and Redis (the embedding backend), so Server does not need to
// import pkg/embedding directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig holds the settings NewServer needs beyond its infrastructure
// handles.
type ServerConfig struct {
	CORSAllowedOrigins []string
}

// Server holds the HTTP server dependencies. Router is the top-level mux
// every route mounts onto, per spec §6's flat (non-/api/v1-prefixed) path
// layout. Every route runs behind optionalAuth (resolves an Identity into
// the request context when credentials are present, passes through
// anonymously otherwise); routes that require authentication or a specific
// role apply auth.RequireAuth/auth.RequireAdmin at the mount point, since
// several resource roots (workspace creation, feedback) intentionally serve
// both authenticated and anonymous callers.
type Server struct {
	Router    *chi.Mux
	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     *redis.Client
	embedding Pinger
	startedAt time.Time
}

// NewServer creates an HTTP server with the global middleware chain and
// health/readyz/metrics endpoints. embedding may be nil, in which case
// readyz skips the embedding backend check. Domain handlers are mounted on
// Router after this call returns.
func NewServer(cfg ServerConfig, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, embedding Pinger, optionalAuth func(http.Handler) http.Handler) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		logger:    logger,
		db:        db,
		redis:     rdb,
		embedding: embedding,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Use(optionalAuth)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz checks every downstream dependency the query pipeline
// touches: Postgres, Redis, and (when configured) the embedding backend.
// The teacher's readyz checked a Zammad connection the same way; this
// swaps in the dependencies specific to the query path.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.redis.Ping(ctx).Err(); err != nil {
		s.logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	if s.embedding != nil {
		if err := s.embedding.Ping(ctx); err != nil {
			s.logger.Error("readiness check: embedding backend ping failed", "error", err)
			RespondError(w, http.StatusServiceUnavailable, "unavailable", "embedding backend not ready")
			return
		}
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
