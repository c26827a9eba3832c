package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "optpricer/internal/errors"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ServerConfig configures the status server
type ServerConfig struct {
	Addr    string
	Version string
	// Metrics serves GET /metrics; nil leaves the route unregistered.
	Metrics http.Handler
	Tracker RunTracker
}

// Server serves the status endpoints next to a pipeline run
type Server struct {
	srv      *http.Server
	router   chi.Router
	listener net.Listener
	logger   *slog.Logger
}

// NewServer creates the router and the underlying http.Server
func NewServer(cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "status_server"))

	s := &Server{logger: logger}
	s.router = s.setupRouter(cfg)
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func (s *Server) setupRouter(cfg ServerConfig) chi.Router {
	r := chi.NewRouter()
	errs := apperrors.NewErrorHandler(s.logger)

	r.Use(middleware.RequestID)
	r.Use(TraceContext)
	r.Use(middleware.RealIP)
	r.Use(StructuredLogger(s.logger))
	r.Use(Recoverer(s.logger))

	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.MethodNotAllowed)

	health := NewHealthHandler(cfg.Tracker, cfg.Version, s.logger)
	r.Get("/health", health.HealthCheck)
	r.Get("/health/run", health.RunStatus)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	return r
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once Start has returned, else the configured one
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Start binds the listen address and serves in the background. Serve errors
// after a successful bind are logged.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return apperrors.NewNetworkError("status server listen failed", err)
	}
	s.listener = ln

	s.logger.InfoContext(ctx, "status server listening", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "status server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown stops the server, waiting at most a few seconds for open requests
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return apperrors.NewNetworkError("status server shutdown failed", err)
	}
	s.logger.InfoContext(ctx, "status server stopped")
	return nil
}
