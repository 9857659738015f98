package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. A nil
// *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	replanRuns      *prometheus.CounterVec
	replanSessions  *prometheus.CounterVec
	replanDuration  prometheus.Histogram
	lockContention  prometheus.Counter
	historyWrites   *prometheus.CounterVec
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	replanRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replan_runs_total",
		Help: "Executed rescheduling runs by outcome",
	}, []string{"outcome"})

	replanSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replan_sessions_total",
		Help: "Overdue sessions processed by rescheduling runs",
	}, []string{"result"})

	replanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replan_run_duration_seconds",
		Help:    "Wall time of rescheduling runs including persistence",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replan_lock_contention_total",
		Help: "Runs rejected because another run held the plan lock",
	})

	historyWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replan_history_writes_total",
		Help: "Run history writes by status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		replanRuns, replanSessions, replanDuration, lockContention, historyWrites, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		replanRuns:      replanRuns,
		replanSessions:  replanSessions,
		replanDuration:  replanDuration,
		lockContention:  lockContention,
		historyWrites:   historyWrites,
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
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveReplanRun records one executed run.
func (m *MetricsService) ObserveReplanRun(outcome string, rescheduled, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.replanRuns.WithLabelValues(outcome).Inc()
	m.replanSessions.WithLabelValues("rescheduled").Add(float64(rescheduled))
	m.replanSessions.WithLabelValues("failed").Add(float64(failed))
	m.replanDuration.Observe(duration.Seconds())
}

// RecordLockContention counts a run rejected by the plan lock.
func (m *MetricsService) RecordLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

// RecordHistoryWrite counts a run history write attempt.
func (m *MetricsService) RecordHistoryWrite(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.historyWrites.WithLabelValues(status).Inc()
}
