// Package server exposes the job registry over HTTP: a small JSON API for
// job control plus SSE and WebSocket push channels for live log streaming.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jobstream/internal/jobstream/hub"
	"jobstream/internal/jobstream/registry"
	"jobstream/pkg/config"
	"jobstream/pkg/logger"
)

// Server is the HTTP boundary of the job streaming service.
type Server struct {
	registry  *registry.Registry
	hub       *hub.Hub
	keepAlive time.Duration
	httpSrv   *http.Server
	log       *logger.Logger
}

// New creates a server. keepAlive is the push-channel ping interval.
func New(reg *registry.Registry, h *hub.Hub, cfg *config.Config) *Server {
	s := &Server{
		registry:  reg,
		hub:       h,
		keepAlive: cfg.Stream.KeepAlive,
		log:       logger.WithField("component", "server"),
	}
	s.httpSrv = &http.Server{
		Addr:        cfg.GetServerAddress(),
		Handler:     s.Routes(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	return s
}

// Routes builds the router. Exposed for httptest use.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", s.handleStartJob)
		r.Get("/", s.handleListJobs)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleJobStatus)
			r.Post("/cancel", s.handleCancelJob)
			r.Get("/stream", s.handleStream)
			r.Get("/ws", s.handleWebSocket)
		})
	})
	return r
}

// ListenAndServe runs the HTTP listener until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "address", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

// corsMiddleware mirrors the browser-facing behavior of the demo UI: any
// origin may call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
