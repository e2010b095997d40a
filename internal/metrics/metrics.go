// Package metrics exposes Prometheus collectors and chi middleware for the
// HTTP server. Cycle-level metrics live in the progress Prometheus sink;
// this package only instruments the request surface.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	once sync.Once
)

// Init registers the HTTP collectors on the default registerer. Calling it
// again is a no-op, so every server constructor may call it defensively.
func Init() {
	once.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jobradar",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served, labeled by method and status code.",
			},
			[]string{"method", "code"},
		)

		// The top buckets are sized for POST /v1/sync, which holds the
		// connection for a full aggregation cycle.
		requestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "jobradar",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency, labeled by method and matched route.",
				Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records one served request. Init must have run first.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records per-request metrics, labeling latency by the matched
// chi route pattern so path parameters do not explode the cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		ObserveHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}
