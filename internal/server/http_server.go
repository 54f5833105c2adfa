package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oggyb/pulse/internal/config"
)

const shutdownTimeout = 10 * time.Second

// HTTPServer runs the REST API.
type HTTPServer struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewHTTPServer(cfg *config.Config, handler http.Handler, log *slog.Logger) *HTTPServer {
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port),
			Handler:           handler,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			MaxHeaderBytes:    1 << 20,
		},
		log: log.With("component", "http"),
	}
}

// Start blocks until the server is shut down.
func (s *HTTPServer) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests, at most shutdownTimeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}
