// Package server wires the FleetMate HTTP API: middleware, health probes,
// the OpenAPI document and the entity routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/config"
	"github.com/smartgistics/fleetmate-sub000/internal/handler"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/openapi"
	"github.com/smartgistics/fleetmate-sub000/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	RateLimit       int   // requests per minute per client, 0 disables

	// JWTSecret enables bearer verification on /api/v1 when set.
	JWTSecret string
	JWTIssuer string

	Version     string
	PublicURL   string        // server URL advertised in the OpenAPI document
	SearchDelay time.Duration // debounce for live session searches
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20,
		RateLimit:       600,
		Version:         "dev",
		SearchDelay:     listview.DefaultDebounce,
	}
}

// ConfigFrom maps the loaded application configuration onto a server
// Config.
func ConfigFrom(c *config.Config, version string) Config {
	cfg := DefaultConfig()
	cfg.Host = c.Server.Host
	cfg.Port = c.Server.Port
	cfg.ShutdownTimeout = c.Server.ShutdownTimeout
	cfg.CORSOrigins = c.Server.CORSOrigins
	cfg.MaxBodySize = c.Server.MaxBodySize
	cfg.RateLimit = c.Server.RateLimit
	cfg.JWTSecret = c.Auth.JWTSecret
	cfg.JWTIssuer = c.Auth.Issuer
	cfg.Version = version
	return cfg
}

// Server is the top-level HTTP server for FleetMate. It owns the Chi router
// and serves every entity from a single backend.
type Server struct {
	cfg        Config
	router     chi.Router
	backend    backend.Backend
	verifier   *middleware.Verifier
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, b backend.Backend, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		backend: b,
		logger:  logger,
	}
	if cfg.JWTSecret != "" {
		s.verifier = middleware.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	sysHandler := handler.NewSystemHandler(s.backend, s.cfg.Version, s.verifier != nil)

	// --- Health checks (no auth required) ---
	r.Get("/healthz", sysHandler.Healthz)
	r.Get("/readyz", sysHandler.Readyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(openapi.Options{
		BaseURL: s.cfg.PublicURL,
		Version: s.cfg.Version,
		Auth:    s.verifier != nil,
	}).ServeSpec)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))
		r.Use(middleware.RequireBearer(s.verifier))
		r.Use(middleware.MaxBodySize(s.cfg.MaxBodySize))

		entityHandler := handler.NewEntityHandler(s.backend)
		sessionHandler := handler.NewSessionHandler(s.backend, handler.SessionOptions{
			AllowedOrigins: s.cfg.CORSOrigins,
			SearchDelay:    s.cfg.SearchDelay,
		})

		r.Get("/", entityHandler.ListEntities)
		r.Get("/_system", sysHandler.Info)
		r.Get("/_system/me", sysHandler.Me)

		r.Route("/{entity}", func(r chi.Router) {
			r.Get("/", entityHandler.List)
			r.Post("/", entityHandler.Create)
			r.Get("/_schema", entityHandler.Describe)
			r.Get("/_live", sessionHandler.Live)
			r.Get("/{id}", entityHandler.Get)
		})
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str("backend", s.backend.Name()).Bool("auth", s.verifier != nil).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
