// Package server exposes the agent layer over HTTP with graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dotcommander/agentd/internal/agent"
	"github.com/dotcommander/agentd/internal/config"
)

// Server routes API requests to pre-built agent variants.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	chat   *agent.Agent
	search *agent.Agent
	http   *http.Server
}

// New builds the server and its agents. Registering the search agent's
// default web server can fail on malformed configured descriptors.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	search, err := agent.NewSearch(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithAgents(cfg, logger, agent.NewChat(cfg), search), nil
}

// NewWithAgents builds the server around pre-built agent variants.
func NewWithAgents(cfg *config.Config, logger *slog.Logger, chat, search *agent.Agent) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		chat:   chat,
		search: search,
	}
	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout.Std() + 30*time.Second,
	}
	return s
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Get("/healthz", s.handleHealth)
		r.Post("/chat", s.handleChat)
		r.Post("/search", s.handleSearch)
		r.Get("/agents/capabilities", s.handleCapabilities)
	})

	return r
}

// ListenAndServe blocks until ctx is canceled, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Std())
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
