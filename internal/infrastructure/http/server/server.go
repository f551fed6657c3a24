// Package server assembles the chi router and the HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	healthhandler "praxisdesk/ms_invoicing/internal/adapters/http/health"
	invoicehandler "praxisdesk/ms_invoicing/internal/adapters/http/invoice"
	"praxisdesk/ms_invoicing/internal/infrastructure/config"
	"praxisdesk/ms_invoicing/internal/infrastructure/http/middleware"
)

// Server wraps the HTTP server and its router.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
}

// Options carries everything needed to wire the routes.
type Options struct {
	HTTP    config.HTTPSettings
	Logger  *slog.Logger
	Auth    *middleware.JWTAuthenticator
	Health  *healthhandler.Handler
	Invoice *invoicehandler.Handler
}

// New builds the router and the HTTP server around it.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Health == nil || opts.Invoice == nil {
		return nil, errors.New("health and invoice handlers are required")
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))
	if opts.Auth != nil {
		r.Use(opts.Auth.Middleware)
	}

	r.Get("/health", opts.Health.Status)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/invoices/build", opts.Invoice.Build)
		// Batch builds run a long linear call sequence per invoice and get
		// the extended timeout instead of the default write timeout.
		r.With(middleware.ExtendedTimeout(opts.HTTP)).Post("/invoices/build/batch", opts.Invoice.BuildBatch)
		r.Post("/responses/parse", opts.Invoice.Parse)
		r.Post("/responses/print", opts.Invoice.Print)
	})

	writeTimeout := opts.HTTP.WriteTimeout
	if opts.HTTP.WriteTimeoutBulk > writeTimeout {
		// The server-level write timeout must not cut off batch responses;
		// per-route timeouts bound the normal endpoints via their contexts.
		writeTimeout = opts.HTTP.WriteTimeoutBulk
	}

	return &Server{
		log: opts.Logger,
		httpServer: &http.Server{
			Addr:         opts.HTTP.Address(),
			Handler:      r,
			ReadTimeout:  opts.HTTP.ReadTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  opts.HTTP.IdleTimeout,
		},
	}, nil
}

// Start blocks serving requests until the listener fails or is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
