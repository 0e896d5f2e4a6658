package server

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linera-io/linera-chainclient/pkg/localnode"
)

// Server serves read-only chain queries and Prometheus metrics.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	metrics    *Metrics
}

// New builds the HTTP mux: query endpoints backed by node, plus /metrics
// and /healthz. It registers this process's counters into reg. Pass the
// *Metrics returned by Server.Metrics into whatever ChainClient/
// Communicator instances the caller constructs, or /metrics reports a
// registry nothing ever writes to.
func New(addr string, node *localnode.LocalNode, reg *prometheus.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	handlers := NewQueryHandlers(node)
	metrics := NewMetrics(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chains", handlers.HandleChainInfo)
	mux.HandleFunc("/api/chains/application", handlers.HandleApplicationState)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		logger:     logger,
		metrics:    metrics,
	}
}

// Metrics returns the counters this server registered into its registry,
// for wiring into the ChainClient/Communicator instances whose activity
// they report.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe blocks until the server is shut down or fails to start.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("[server] listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
