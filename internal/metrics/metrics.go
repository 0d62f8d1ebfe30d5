// Package metrics exposes the staging engine's Prometheus instrumentation.
// Registration happens at package init so every Worker goroutine can
// increment the same counters; serving them over HTTP is optional and only
// happens when the Orchestrator is configured with a metrics address.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts terminal Worker outcomes by status (ok/skipped/reject).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optostage_runs_total",
			Help: "Total number of ingestion runs by terminal status",
		},
		[]string{"status"},
	)

	// WorkerDuration measures end-to-end per-file processing time.
	WorkerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optostage_worker_duration_seconds",
			Help:    "Time spent processing a single input file",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ManifestRows reports the row count of the last written manifest.
	ManifestRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "optostage_manifest_rows",
			Help: "Row count of the most recently written manifest",
		},
	)

	// ManifestMergeDuration measures Manifest Merger wall-clock time.
	ManifestMergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optostage_manifest_merge_duration_seconds",
			Help:    "Time spent merging event records into the manifest",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Server serves /health and /metrics while an orchestration run is active.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a Server bound to addr. It does not start listening
// until Start is called.
func NewServer(addr string) *Server {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &Server{httpServer: &http.Server{Addr: addr, Handler: router}}
}

// Start begins serving in a background goroutine. Listen errors other than
// a clean shutdown are ignored here because a metrics endpoint is a
// best-effort observability surface, not load-bearing for ingestion.
func (s *Server) Start() {
	go func() {
		_ = s.httpServer.ListenAndServe()
	}()
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
