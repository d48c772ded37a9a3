// Package status serves the operator endpoints: Prometheus metrics, a
// liveness probe and a JSON view of the polling loop.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kiwiot/faceometer/agent/internal/poller"
)

// Server is the status HTTP server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewRouter builds the routes. Kept separate from Server for tests.
func NewRouter(st *poller.Status, gatherer prometheus.Gatherer, version string) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		body := struct {
			Version string `json:"version"`
			poller.Snapshot
		}{Version: version, Snapshot: st.Snapshot()}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}).Methods(http.MethodGet)
	return r
}

// New creates a server listening on addr.
func New(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Listen errors are logged, never fatal:
// the telemetry loop does not depend on this server.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Status server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
