// Package metrics provides Prometheus metrics for the talentflow API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns a private registry and every collector registered on it. All
// Record* methods are safe on a nil *Manager so callers can run without
// metrics.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	injectedFailures    *prometheus.CounterVec
	errorsByKind        *prometheus.CounterVec

	jobsReordered        prometheus.Counter
	stageChanges         *prometheus.CounterVec
	assessmentSubmission *prometheus.CounterVec
}

type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry registers the collectors on r instead of a fresh registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

func New(opts ...Option) *Manager {
	m := &Manager{
		namespace: "talentflow",
		buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration including simulated latency.",
		Buckets:   m.buckets,
	}, []string{"route", "method"})

	m.injectedFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "transport",
		Name:      "injected_failures_total",
		Help:      "Requests failed on purpose by the transport simulation.",
	}, []string{"method"})

	m.errorsByKind = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "errors_total",
		Help:      "Errors returned to clients by kind.",
	}, []string{"kind"})

	m.jobsReordered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "jobs",
		Name:      "reordered_total",
		Help:      "Committed job reorders.",
	})

	m.stageChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "candidates",
		Name:      "stage_changes_total",
		Help:      "Committed candidate stage transitions by target stage.",
	}, []string{"to"})

	m.assessmentSubmission = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "assessments",
		Name:      "submissions_total",
		Help:      "Assessment submissions by outcome.",
	}, []string{"outcome"})

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Manager) RecordInjectedFailure(method string) {
	if m == nil {
		return
	}
	m.injectedFailures.WithLabelValues(method).Inc()
}

func (m *Manager) RecordError(kind string) {
	if m == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

func (m *Manager) RecordReorder() {
	if m == nil {
		return
	}
	m.jobsReordered.Inc()
}

func (m *Manager) RecordStageChange(to string) {
	if m == nil {
		return
	}
	m.stageChanges.WithLabelValues(to).Inc()
}

// RecordSubmission counts an assessment submission; outcome is "accepted" or
// "rejected".
func (m *Manager) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.assessmentSubmission.WithLabelValues(outcome).Inc()
}
