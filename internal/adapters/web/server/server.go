// Package server wires the read-only certificate API into an HTTP server.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/lcalzada-xor/certmap/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/certmap/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
	"github.com/lcalzada-xor/certmap/internal/core/services/graph"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Defaults for the per-client request budget.
const (
	DefaultRequestsPerSecond = 20
	DefaultBurst             = 40
)

// Server serves the dataset over HTTP.
type Server struct {
	Addr    string
	Limiter *middleware.RateLimiter

	CertificateHandler *handlers.CertificateHandler
	GraphHandler       *handlers.GraphHandler
	SummaryHandler     *handlers.SummaryHandler
	ExportHandler      *handlers.ExportHandler
	srv                *http.Server
}

// NewServer creates a new web server over the dataset.
func NewServer(addr string, dataset ports.DatasetReader) *Server {
	return &Server{
		Addr:    addr,
		Limiter: middleware.NewRateLimiter(DefaultRequestsPerSecond, DefaultBurst),

		CertificateHandler: handlers.NewCertificateHandler(dataset),
		GraphHandler:       handlers.NewGraphHandler(graph.NewBuilder(dataset)),
		SummaryHandler:     handlers.NewSummaryHandler(dataset),
		ExportHandler:      handlers.NewExportHandler(dataset),
	}
}

// Handler returns the instrumented, rate limited route tree.
func (s *Server) Handler() http.Handler {
	handler := middleware.RateLimitMiddleware(s.Limiter)(SetupRoutes(s))
	return otelhttp.NewHandler(handler, "certmap-server")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Web Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web Server shutdown error: %v", err)
		}
	}()

	log.Printf("Web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
