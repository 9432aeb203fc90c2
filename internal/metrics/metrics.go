// Package metrics exposes Prometheus collectors for the workflow and HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shivanand-hulikatti/event-portal/internal/apperr"
)

const namespace = "eventportal"

// Metrics holds the collectors registered on one registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	httpTiming *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_operations_total",
			Help:      "Event and registration operations by outcome.",
		}, []string{"operation", "outcome"}),
		httpTiming: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveOperation counts one operation. The outcome label is "ok" or the
// lower-cased error kind.
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = outcomeLabel(apperr.KindOf(err))
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpTiming.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func outcomeLabel(k apperr.Kind) string {
	switch k {
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindCapacityExceeded:
		return "capacity_exceeded"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindUnauthorized:
		return "unauthorized"
	case apperr.KindValidation:
		return "validation"
	default:
		return "internal"
	}
}
