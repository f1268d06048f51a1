package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the domain counters. All
// record methods are nil-safe so callers can run without metrics wired.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	runsTotal        *prometheus.CounterVec
	conflictsTotal   prometheus.Counter
	ticketsIssued    prometheus.Counter
	allocationsTotal *prometheus.CounterVec
	cacheOps         *prometheus.CounterVec
}

// NewMetricsService registers all collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_http_requests_total",
			Help: "HTTP requests processed, partitioned by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_runs_total",
			Help: "Orchestrator runs, partitioned by outcome.",
		}, []string{"status"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_schedule_conflicts_total",
			Help: "Scheduling conflicts surfaced across all runs.",
		}),
		ticketsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_hall_tickets_issued_total",
			Help: "Hall tickets issued across all runs.",
		}),
		allocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_room_allocations_total",
			Help: "Room request resolutions, partitioned by outcome.",
		}, []string{"outcome"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_cache_operations_total",
			Help: "Run summary cache lookups, partitioned by result.",
		}, []string{"result"}),
	}
	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.runsTotal,
		m.conflictsTotal,
		m.ticketsIssued,
		m.allocationsTotal,
		m.cacheOps,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one completed HTTP request.
func (m *MetricsService) ObserveHTTP(method, path string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordRun records one orchestrator execution.
func (m *MetricsService) RecordRun(status string, conflicts, tickets int) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.conflictsTotal.Add(float64(conflicts))
	m.ticketsIssued.Add(float64(tickets))
}

// AllocationResolved implements AllocationObserver.
func (m *MetricsService) AllocationResolved(allocated, failed int) {
	if m == nil {
		return
	}
	m.allocationsTotal.WithLabelValues("allocated").Add(float64(allocated))
	m.allocationsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordCache records a run summary cache lookup result.
func (m *MetricsService) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheOps.WithLabelValues(result).Inc()
}
