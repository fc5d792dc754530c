package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "uni"

// MetricsService owns the registrar's Prometheus registry. Every method is safe on a nil receiver.
type MetricsService struct {
	registry      *prometheus.Registry
	handler       http.Handler
	httpLatency   *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	aggregates    *prometheus.CounterVec
	aggregateLoad *prometheus.HistogramVec
	registrations *prometheus.CounterVec
	gradeJobs     *prometheus.CounterVec
	lifecycle     *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "API requests by route template.",
		}, []string{"method", "route", "status"}),
		aggregates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "grade_aggregate_cache_total",
			Help:      "Cached final grade and GPA lookups by result.",
		}, []string{"aggregate", "result"}),
		aggregateLoad: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "grade_aggregate_cache_seconds",
			Help:      "Latency of cache reads and writes for grade aggregates.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"op"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registrations_total",
			Help:      "Course and lecture registration attempts by outcome.",
		}, []string{"kind", "outcome"}),
		gradeJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "grade_record_jobs_total",
			Help:      "Grade record jobs by outcome.",
		}, []string{"outcome"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "student_lifecycle_changes_total",
			Help:      "Students changed by scheduled lifecycle jobs.",
		}, []string{"job"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.httpLatency, m.httpRequests,
		m.aggregates, m.aggregateLoad,
		m.registrations, m.gradeJobs, m.lifecycle,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry is exposed for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records one finished request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpLatency.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, route, code).Inc()
}

// RecordAggregateLookup counts a cached aggregate read. result is hit, miss or error.
func (m *MetricsService) RecordAggregateLookup(aggregate, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.aggregates.WithLabelValues(aggregate, result).Inc()
	m.aggregateLoad.WithLabelValues("read").Observe(duration.Seconds())
}

// ObserveAggregateWrite tracks cache write latency.
func (m *MetricsService) ObserveAggregateWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.aggregateLoad.WithLabelValues("write").Observe(duration.Seconds())
}

// RecordRegistration counts a registration attempt. outcome is the action taken or the rejection code.
func (m *MetricsService) RecordRegistration(kind, outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(kind, outcome).Inc()
}

// RecordGradeRecordJob counts a settled or failed grade record job.
func (m *MetricsService) RecordGradeRecordJob(outcome string) {
	if m == nil {
		return
	}
	m.gradeJobs.WithLabelValues(outcome).Inc()
}

// RecordLifecycleChange adds n students changed by a scheduled job.
func (m *MetricsService) RecordLifecycleChange(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lifecycle.WithLabelValues(job).Add(float64(n))
}
