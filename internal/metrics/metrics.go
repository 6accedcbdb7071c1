// Package metrics exposes Prometheus collectors for file-field sagas, blob
// storage calls, deliveries and HTTP requests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/cardkeeper/internal/saga"
)

const namespace = "cardkeeper"

// Metrics owns a private registry so tests and multiple apps don't collide.
type Metrics struct {
	registry *prometheus.Registry

	sagaTotal    *prometheus.CounterVec
	sagaDuration *prometheus.HistogramVec
	orphanTotal  *prometheus.CounterVec

	blobOpsTotal    *prometheus.CounterVec
	blobOpsDuration *prometheus.HistogramVec

	deliveryTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	uploadsInFlight     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		sagaTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "saga",
				Name:      "finished_total",
				Help:      "File-field operations by terminal outcome",
			},
			[]string{"op", "field", "outcome"},
		),
		sagaDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "saga",
				Name:      "duration_seconds",
				Help:      "Time from validation to terminal state",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "field"},
		),
		orphanTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "saga",
				Name:      "orphaned_blobs_total",
				Help:      "Blobs left behind because a cleanup or compensation delete failed",
			},
			[]string{"field", "phase"},
		),

		blobOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "blobstore",
				Name:      "operations_total",
				Help:      "Blob store calls by backend, operation and result",
			},
			[]string{"backend", "op", "result"},
		),
		blobOpsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "blobstore",
				Name:      "operation_duration_seconds",
				Help:      "Blob store call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "op"},
		),

		deliveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "delivery",
				Name:      "responses_total",
				Help:      "File deliveries by mode (stream, redirect) and status code",
			},
			[]string{"mode", "code"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		uploadsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "uploads_in_flight",
				Help:      "Upload requests currently holding a limiter slot",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sagaTotal,
		m.sagaDuration,
		m.orphanTotal,
		m.blobOpsTotal,
		m.blobOpsDuration,
		m.deliveryTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.uploadsInFlight,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// SagaFinished implements saga.Observer.
func (m *Metrics) SagaFinished(op, field string, state saga.State, kind saga.Kind, elapsed time.Duration) {
	outcome := state.String()
	if kind != 0 {
		outcome = kind.String() + "_error"
	}
	m.sagaTotal.WithLabelValues(op, field, outcome).Inc()
	m.sagaDuration.WithLabelValues(op, field).Observe(elapsed.Seconds())
}

// BlobOrphaned implements saga.Observer.
func (m *Metrics) BlobOrphaned(field, phase string) {
	m.orphanTotal.WithLabelValues(field, phase).Inc()
}

// Delivered counts one delivery response.
func (m *Metrics) Delivered(mode string, code int) {
	m.deliveryTotal.WithLabelValues(mode, statusLabel(code)).Inc()
}

// ObserveHTTP records one finished request. route is the mux pattern, not
// the raw path, to keep cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, statusLabel(code)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// UploadStarted and UploadFinished track limiter occupancy.
func (m *Metrics) UploadStarted()  { m.uploadsInFlight.Inc() }
func (m *Metrics) UploadFinished() { m.uploadsInFlight.Dec() }

var _ saga.Observer = (*Metrics)(nil)
