package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notes-dapp/solana"
)

const namespace = "notes_dapp"

// Metrics holds Prometheus metrics for one server instance
type Metrics struct {
	Registry *prometheus.Registry

	RPCRequests      *prometheus.CounterVec
	RPCDuration      *prometheus.HistogramVec
	NoteOperations   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
	DBConnPoolStats  *prometheus.GaugeVec
}

// NewMetrics registers every series on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of Solana JSON-RPC calls",
			},
			[]string{"method", "status"},
		),
		RPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "Solana JSON-RPC call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		NoteOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "note_operations_total",
				Help:      "Notes page operations by outcome",
			},
			[]string{"op", "result"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "code"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		DBConnPoolStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"},
		),
	}
}

// ObserveRPC implements solana.Observer.
func (m *Metrics) ObserveRPC(method string, err error, elapsed time.Duration) {
	m.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	m.RPCRequests.WithLabelValues(method, rpcStatus(err)).Inc()
}

func rpcStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) {
		return strconv.Itoa(rpcErr.Code)
	}
	return "error"
}

// ObserveOperation counts one page operation; result is "ok", "invalid",
// "busy" or "failed".
func (m *Metrics) ObserveOperation(op, result string) {
	m.NoteOperations.WithLabelValues(op, result).Inc()
}

// RecordDBPoolStats records database connection pool statistics
func (m *Metrics) RecordDBPoolStats(stats sql.DBStats) {
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(stats.Idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(stats.WaitDuration.Milliseconds()))
}

// Middleware tracks in-flight requests and counts responses by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
