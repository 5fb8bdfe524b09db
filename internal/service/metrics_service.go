package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// cache usage and the points ledger.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	scoreWrites     prometheus.Counter
	recomputes      *prometheus.CounterVec
	claimEvents     *prometheus.CounterVec
	reconcileJobs   *prometheus.HistogramVec
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	scoreWrites := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_score_writes_total",
		Help: "Lesson scores written",
	})

	recomputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_recomputes_total",
		Help: "Balance recomputations by whether the stored total changed",
	}, []string{"result"})

	claimEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "discount_claim_events_total",
		Help: "Discount claim operations by action and outcome",
	}, []string{"action", "outcome"})

	reconcileJobs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_reconcile_job_seconds",
		Help:    "Duration of background reconciliation jobs",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheLatency, scoreWrites, recomputes, claimEvents, reconcileJobs, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
		scoreWrites:     scoreWrites,
		recomputes:      recomputes,
		claimEvents:     claimEvents,
		reconcileJobs:   reconcileJobs,
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordScoreWrite counts a committed score upsert.
func (m *MetricsService) RecordScoreWrite() {
	if m == nil {
		return
	}
	m.scoreWrites.Inc()
}

// RecordRecompute counts a balance recomputation.
func (m *MetricsService) RecordRecompute(changed bool) {
	if m == nil {
		return
	}
	result := "unchanged"
	if changed {
		result = "changed"
	}
	m.recomputes.WithLabelValues(result).Inc()
}

// RecordClaimEvent counts a claim submission or decision with its outcome code.
func (m *MetricsService) RecordClaimEvent(action, outcome string) {
	if m == nil {
		return
	}
	m.claimEvents.WithLabelValues(action, outcome).Inc()
}

// ObserveReconcileJob records one background reconciliation job.
func (m *MetricsService) ObserveReconcileJob(err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.reconcileJobs.WithLabelValues(outcome).Observe(duration.Seconds())
}
