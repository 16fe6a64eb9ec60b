// Package metrics exposes Prometheus collectors for the mentorship service.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pittstate_connect"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	transitions    *prometheus.CounterVec
	rewardFailures *prometheus.CounterVec
	scores         prometheus.Histogram

	eventsPublished *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	handlerErrors   *prometheus.CounterVec

	wsConnections prometheus.Gauge

	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	capacityDrifts prometheus.Counter
}

// New creates and registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Mentorship lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),

		rewardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_failures_total",
			Help:      "Point awards that could not be written after a committed transition",
		}, []string{"reason"}),

		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compatibility_score",
			Help:      "Compatibility scores of returned recommendations",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),

		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published on the bus",
		}, []string{"event_type"}),

		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler execution time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),

		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_errors_total",
			Help:      "Event handlers that returned an error or panicked",
		}, []string{"event_type"}),

		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open notification websocket connections",
		}),

		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Background job executions by result",
		}, []string{"job", "result"}),

		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job execution time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),

		capacityDrifts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentor_capacity_drifts_total",
			Help:      "Mentor current_mentees counters corrected by reconciliation",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.transitions,
		m.rewardFailures,
		m.scores,
		m.eventsPublished,
		m.handlerDuration,
		m.handlerErrors,
		m.wsConnections,
		m.jobRuns,
		m.jobDuration,
		m.capacityDrifts,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle and scoring
// ─────────────────────────────────────────────────────────────────────────────

// RecordTransition counts one lifecycle operation.
func (m *Metrics) RecordTransition(operation, outcome string) {
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

// RecordRewardFailure counts one failed award.
func (m *Metrics) RecordRewardFailure(reason string) {
	m.rewardFailures.WithLabelValues(reason).Inc()
}

// ObserveScore records a recommendation score.
func (m *Metrics) ObserveScore(score int) {
	m.scores.Observe(float64(score))
}

// ─────────────────────────────────────────────────────────────────────────────
// Event bus
// ─────────────────────────────────────────────────────────────────────────────

// EventPublished counts a published event.
func (m *Metrics) EventPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// HandlerFinished records handler latency and failures.
func (m *Metrics) HandlerFinished(eventType string, d time.Duration, err error) {
	m.handlerDuration.WithLabelValues(eventType).Observe(d.Seconds())
	if err != nil {
		m.handlerErrors.WithLabelValues(eventType).Inc()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Websocket
// ─────────────────────────────────────────────────────────────────────────────

// ConnectionOpened increments the websocket gauge.
func (m *Metrics) ConnectionOpened() { m.wsConnections.Inc() }

// ConnectionClosed decrements the websocket gauge.
func (m *Metrics) ConnectionClosed() { m.wsConnections.Dec() }

// ─────────────────────────────────────────────────────────────────────────────
// Background jobs
// ─────────────────────────────────────────────────────────────────────────────

// JobFinished records one scheduler run.
func (m *Metrics) JobFinished(job string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// RecordCapacityDrifts counts corrected mentor counters.
func (m *Metrics) RecordCapacityDrifts(n int) {
	m.capacityDrifts.Add(float64(n))
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP
// ─────────────────────────────────────────────────────────────────────────────

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and latency, labelled by the matched
// ServeMux pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
