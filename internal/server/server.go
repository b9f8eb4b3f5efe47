// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/service"
	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

// Server exposes agent runs over HTTP.
type Server struct {
	cfg      config.Interface
	logger   *zap.Logger
	runner   *Runner
	handlers *Handlers
	router   http.Handler
}

// New builds the server. Components are created per run by the factory.
func New(cfg config.Interface, factory service.ComponentFactory, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")

	runner := NewRunner(cfg, factory, logger)
	registry := service.NewRegistry(cfg.Browser())
	tools := registry.Set().Without(cfg.LLM().ExcludedFunctions...)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		runner:   runner,
		handlers: NewHandlers(logger, runner, toolschema.NewSet(tools...)),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Close cancels active runs and waits for them, for callers that mounted
// Handler themselves instead of calling Serve.
func (s *Server) Close(ctx context.Context) error { return s.runner.Shutdown(ctx) }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// WebSocket routes go first, outside the wrapping middlewares, so the
	// connection can be hijacked.
	r.Get("/api/v1/runs/{runID}/events", s.handleRunEvents())

	r.Group(func(r chi.Router) {
		r.Use(processTime)
		r.Use(requestLogger(s.logger))
		s.handlers.RegisterRoutes(r)
	})
	return r
}

// ListenAndServe listens on the configured address until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Server().ListenAddr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then stops taking
// requests, cancels active runs and waits for them to release their browsers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Server starting", zap.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down gracefully...")

		timeout := s.cfg.Server().ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Cancel runs first so blocked sync requests return promptly.
		runErr := s.runner.Shutdown(shutdownCtx)
		if runErr != nil {
			s.logger.Warn("Runs did not stop before the shutdown deadline.", zap.Error(runErr))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
			return err
		}
		return runErr
	})

	err := g.Wait()
	s.logger.Info("Server stopped.")
	return err
}
