// Package api provides the HTTP surface of CrewDesk.
//
// It exposes RESTful endpoints for creating back-office records, inspecting
// the job queue, and forcing retries of failed jobs. Writes that need ledger
// work enqueue jobs instead of calling the ledger inline.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crewdeskhq/crewdesk/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds how long Run waits for in-flight requests
// after its context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the CrewDesk admin and back-office API.
type Server struct {
	addr    string
	st      store.Store
	handler http.Handler
}

// NewServer creates an API server over the given store.
func NewServer(st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{addr: cfg.Addr, st: st}
	s.handler = s.routes()
	return s
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthHandler)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", s.listJobsHandler)
		r.Get("/jobs/{jobID}", s.getJobHandler)
		r.Post("/jobs/{jobID}/retry", s.retryJobHandler)
		r.Post("/customers", s.createCustomerHandler)
		r.Get("/customers", s.listCustomersHandler)
		r.Post("/projects", s.createProjectHandler)
		r.Post("/time-entries", s.createTimeEntryHandler)
	})
	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
