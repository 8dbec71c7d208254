// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

type Metrics struct {
	registry     *prometheus.Registry
	operations   *prometheus.CounterVec
	quantity     *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spicechain",
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		quantity: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spicechain",
			Name:      "ledger_quantity_kg_total",
			Help:      "Kilograms moved by successful ledger operations.",
		}, []string{"operation"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spicechain",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spicechain",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Operation counts one ledger operation. kg is added to the moved-quantity
// counter on success.
func (m *Metrics) Operation(op string, kg float64, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	if err == nil && kg > 0 {
		m.quantity.WithLabelValues(op).Add(kg)
	}
}

// Request records one served HTTP request.
func (m *Metrics) Request(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Outcome classifies err into a low-cardinality label.
func Outcome(err error) string {
	var (
		vErr     *core.ValidationError
		nfErr    *core.NotFoundError
		conflict *core.ConflictError
		stateErr *core.StateError
		authErr  *core.AuthorizationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.As(err, &nfErr):
		return "not_found"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &stateErr):
		return "state"
	case errors.As(err, &authErr):
		return "forbidden"
	}
	return "error"
}
