// Package metrics exposes Prometheus collectors for uploads, queries and batch runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inventory_analyzer"

// Recorder owns a registry so several instances can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	rowsProcessed  *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	queries        *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	batchFiles     *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// New registers all collectors plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploaded files by outcome.",
		}, []string{"outcome"}),
		rowsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows seen by the normalizer, split into kept and dropped.",
		}, []string{"state"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent decoding and analyzing an upload.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Session queries by kind.",
		}, []string{"query"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Session cache lookups by result.",
		}, []string{"result"}),
		batchFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_files_total",
			Help:      "Files handled by batch runs by outcome.",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Unexpired sessions at the last stats read.",
		}),
	}

	r.registry.MustRegister(
		r.uploads,
		r.rowsProcessed,
		r.uploadDuration,
		r.queries,
		r.cacheLookups,
		r.batchFiles,
		r.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) UploadSucceeded(kept, dropped int, took time.Duration) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues("ok").Inc()
	r.rowsProcessed.WithLabelValues("kept").Add(float64(kept))
	r.rowsProcessed.WithLabelValues("dropped").Add(float64(dropped))
	r.uploadDuration.Observe(took.Seconds())
}

func (r *Recorder) UploadFailed(reason string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(reason).Inc()
}

func (r *Recorder) Query(name string) {
	if r == nil {
		return
	}
	r.queries.WithLabelValues(name).Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) BatchFile(ok bool) {
	if r == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "ok"
	}
	r.batchFiles.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.activeSessions.Set(float64(n))
}
