// Package server exposes the model registry over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/YuminosukeSato/mindscope/internal/config"
	"github.com/YuminosukeSato/mindscope/internal/registry"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// Server wires the registry into a chi router and an http.Server.
type Server struct {
	cfg      config.ServerSettings
	registry *registry.Registry
	router   chi.Router
	http     *http.Server
	logger   log.Logger
}

// New builds the router. The registry must already be built.
func New(cfg config.ServerSettings, reg *registry.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		registry: reg,
		logger:   log.GetLoggerWithName("server"),
	}
	s.setupRoutes()
	s.http = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.http.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		serverErrors <- s.http.Serve(ln)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")
	case sig := <-shutdown:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(sctx); err != nil {
		if closeErr := s.http.Close(); closeErr != nil {
			s.logger.Error("failed to close server", closeErr)
		}
		return errors.Wrap(err, "could not stop server gracefully")
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
