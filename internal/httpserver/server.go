// Package httpserver serves the scheduler's tick status over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/refreshd/pkg/refresh"
)

// StatusSource reports the most recent tick.
type StatusSource interface {
	Status() refresh.TickStatus
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http    *http.Server
	logger  *log.Logger
	started time.Time
}

// New builds the router and the HTTP server listening on addr.
func New(addr string, src StatusSource, logger *log.Logger) *Server {
	started := time.Now()
	s := &Server{logger: logger, started: started}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           Router(src, logger, started),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Router returns the status routes: GET /status and GET /healthz.
func Router(src StatusSource, logger *log.Logger, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Second))
	r.Use(accessLog(logger))

	r.Get("/status", statusHandler(src))
	r.Get("/healthz", healthHandler(started))
	return r
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("status server listening", "addr", ln.Addr().String())
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("status server shutting down")
	return s.http.Shutdown(ctx)
}

func statusHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.Status())
	}
}

func healthHandler(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
