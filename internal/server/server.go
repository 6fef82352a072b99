// Package server binds the external port and wires the supervisor, route
// table, proxy router, and health aggregator together into one process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evaltools/evalgate/internal/config"
	"github.com/evaltools/evalgate/internal/proxy"
	"github.com/evaltools/evalgate/internal/supervisor"
)

// Server is the top-level component: it launches the backend processes,
// serves the external HTTP surface, and drives orderly shutdown when a
// termination signal arrives.
type Server struct {
	cfg    *config.Config
	sup    *supervisor.Supervisor
	router *proxy.Router
	health *proxy.HealthAggregator
	info   *proxy.InfoHandler
	logger *slog.Logger

	httpServer *http.Server
}

// New wires a Server from its components. The route table is built here so
// that it is fully constructed before the first request is accepted and is
// never mutated afterward.
func New(cfg *config.Config, sup *supervisor.Supervisor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	rest := proxy.Target{Host: "127.0.0.1", Port: cfg.RESTPort}
	wrapper := proxy.Target{Host: "127.0.0.1", Port: cfg.WrapperPort}
	table := proxy.NewTable(cfg.Mode, rest, wrapper)

	return &Server{
		cfg:    cfg,
		sup:    sup,
		router: proxy.NewRouter(table, cfg.ProxyTimeout, logger),
		health: proxy.NewHealthAggregator(rest, cfg.HealthTimeout, logger),
		info:   proxy.NewInfoHandler(cfg),
		logger: logger.With("component", "Server"),
	}
}

// handleRequest dispatches by path: the info document and health endpoint are
// served locally and accept only GET, everything else goes through the proxy
// router.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		s.serveLocal(s.info, w, r)
	case "/health":
		s.serveLocal(s.health, w, r)
	default:
		s.router.ServeHTTP(w, r)
	}
}

func (s *Server) serveLocal(h http.Handler, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	h.ServeHTTP(w, r)
}

// Run launches the backend processes and serves until a termination signal
// arrives or the listener fails. It returns nil on a clean signal-driven
// shutdown; the caller maps a non-nil error to a non-zero exit.
func (s *Server) Run(ctx context.Context) error {
	if err := s.sup.Launch(ctx); err != nil {
		// A launch failure still tears down whatever did start.
		s.sup.Shutdown(context.Background())
		return fmt.Errorf("backend launch failed: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.ExternalPort),
		Handler: http.HandlerFunc(s.handleRequest),
		// No WriteTimeout: the wrapper backend streams SSE responses of
		// unbounded duration through the proxy.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Serving external HTTP", "addr", s.httpServer.Addr, "mode", s.cfg.Mode)
		errChan <- s.httpServer.ListenAndServe()
	}()

	signals := NewSignalCoordinator()
	defer signals.Stop()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.sup.Shutdown(context.Background())
			return fmt.Errorf("external server failed: %w", err)
		}
	case sig := <-signals.C():
		s.logger.Info("Received termination signal", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("Context cancelled")
	}

	return s.shutdown()
}

// shutdown stops accepting new connections, gives in-flight requests a
// bounded grace period, then terminates the backend processes in reverse
// launch order.
func (s *Server) shutdown() error {
	s.logger.Info("Shutting down")

	httpCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(httpCtx); err != nil {
		s.logger.Warn("External server shutdown was cut short", "error", err)
	}

	supCtx, cancelSup := context.WithTimeout(context.Background(), 2*s.cfg.ShutdownGrace)
	defer cancelSup()
	if err := s.sup.Shutdown(supCtx); err != nil {
		return fmt.Errorf("backend shutdown failed: %w", err)
	}

	s.logger.Info("Shutdown complete")
	return nil
}
