package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/inboxtasks/internal/google"
	"github.com/teemow/inboxtasks/internal/instrumentation"
	"github.com/teemow/inboxtasks/internal/pipeline"
	"github.com/teemow/inboxtasks/internal/store"
)

const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":5001"

	// DefaultReadHeaderTimeout bounds how long a client may take to send
	// request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultShutdownTimeout is the timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// ProcessorFactory builds a pipeline processor on demand. The processor
// needs an authenticated Gmail client, so it can only be constructed
// once an OAuth token exists for the account.
type ProcessorFactory func(ctx context.Context) (*pipeline.Processor, error)

// Config holds the dependencies and settings of the API server.
type Config struct {
	// Addr is the listen address, DefaultAddr when empty.
	Addr string

	// Account is the Google account name used for token lookups.
	Account string

	// OAuth is the Google OAuth client configuration.
	OAuth google.OAuthConfig

	// Tokens persists OAuth tokens between restarts.
	Tokens *google.TokenStore

	// Settings persists the user's fetch defaults.
	Settings *store.SettingsStore

	// History holds created tasks and calendar events.
	History *store.HistoryStore

	// NewProcessor builds the processing pipeline for fetch requests.
	NewProcessor ProcessorFactory

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server is the HTTP API server that exposes the email processing
// pipeline, the task and event history, and the OAuth flow.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	health  *HealthChecker

	httpServer *http.Server
}

// New creates a Server from the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if cfg.NewProcessor == nil {
		return nil, fmt.Errorf("processor factory is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Account == "" {
		cfg.Account = "default"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		health:  NewHealthChecker(),
	}, nil
}

// Router builds the chi router with all API routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/fetch-emails", s.handleFetchEmails)
		r.Post("/fetch-emails", s.handleFetchEmails)

		r.Get("/tasks", s.handleListTasks)
		r.Delete("/tasks/{id}", s.handleDeleteTask)

		r.Get("/calendar-events", s.handleListEvents)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Post("/settings", s.handlePutSettings)

		r.Get("/auth/status", s.handleAuthStatus)
	})

	r.Get("/authorize", s.handleAuthorize)
	r.Get("/oauth2callback", s.handleOAuthCallback)
	r.Get("/logout", s.handleLogout)
	r.Post("/logout", s.handleLogout)

	r.Get("/healthz", s.health.LivenessHandler().ServeHTTP)
	r.Get("/readyz", s.health.ReadinessHandler().ServeHTTP)
	r.Get("/healthz/detailed", s.health.DetailedHealthHandler().ServeHTTP)

	return r
}

// Health returns the server's health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the listener fails. On cancellation the server drains in-flight
// requests within DefaultShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", slog.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.health.SetShuttingDown(true)
	s.logger.Info("shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}

// requestLogger logs each request and records HTTP metrics using the
// chi route pattern to keep label cardinality bounded.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, ww.Status(), duration)
		s.logger.Debug("request handled",
			slog.String("method", r.Method),
			slog.String("path", pattern),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", duration),
		)
	})
}
