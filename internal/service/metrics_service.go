package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the waitlist
// engine. All methods are nil-safe so wiring stays optional.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	reorderTotal     *prometheus.CounterVec
	reorderConflicts prometheus.Counter
	renormalized     prometheus.Counter
	queueReads       *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	reorderTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_reorders_total",
		Help: "Total waitlist reorder attempts by outcome",
	}, []string{"outcome"})

	reorderConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_reorder_conflicts_total",
		Help: "Reorder transactions retried after partition contention",
	})

	renormalized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_renormalized_entries_total",
		Help: "Entries whose position was repaired by a renormalization pass",
	})

	queueReads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_queue_reads_total",
		Help: "Queue view reads by view kind",
	}, []string{"view"})

	registry.MustRegister(requestDuration, requestTotal, reorderTotal, reorderConflicts, renormalized, queueReads)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		reorderTotal:     reorderTotal,
		reorderConflicts: reorderConflicts,
		renormalized:     renormalized,
		queueReads:       queueReads,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordReorder tracks a reorder attempt outcome ("success", "invalid",
// "not_found", "conflict", "error").
func (m *MetricsService) RecordReorder(outcome string) {
	if m == nil {
		return
	}
	m.reorderTotal.WithLabelValues(outcome).Inc()
}

// RecordReorderConflict tracks a retried partition conflict.
func (m *MetricsService) RecordReorderConflict() {
	if m == nil {
		return
	}
	m.reorderConflicts.Inc()
}

// AddRenormalizedEntries tracks position repairs performed by a pass.
func (m *MetricsService) AddRenormalizedEntries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.renormalized.Add(float64(n))
}

// RecordQueueRead tracks a queue view read ("staff" or "parent").
func (m *MetricsService) RecordQueueRead(view string) {
	if m == nil {
		return
	}
	m.queueReads.WithLabelValues(view).Inc()
}
