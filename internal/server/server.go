package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides HTTP server for Prometheus metrics.
type Server struct {
	addr   string
	path   string
	server *http.Server
	mux    *http.ServeMux
}

// New creates a new HTTP server. With internalMetrics the promhttp handler
// metrics are registered in registry and served along.
func New(port int, path string, registry *prometheus.Registry, internalMetrics bool) *Server {
	mux := http.NewServeMux()

	var handler http.Handler = promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
	if internalMetrics {
		handler = promhttp.InstrumentMetricHandler(registry, handler)
		slog.Info("enabled prometheus internal metrics",
			"metrics", []string{
				"promhttp_metric_handler_requests_total",
				"promhttp_metric_handler_requests_in_flight",
			})
	}
	mux.Handle(path, loggingMiddleware(handler))

	addr := fmt.Sprintf(":%d", port)

	return &Server{
		addr: addr,
		path: path,
		mux:  mux,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves HTTP requests until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		slog.Info("starting server", "addr", s.addr, "path", s.path)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

// shutdown gracefully stops the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs scrape requests when debug logging is enabled
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("prometheus scrape", "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
