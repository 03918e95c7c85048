// Package metrics exposes Prometheus collectors for search cycles and the
// HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Completed cycles partitioned by trigger (scheduled, manual)
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsjacker_cycles_total",
			Help: "Total number of search cycles run",
		},
		[]string{"trigger"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsjacker_cycle_duration_seconds",
			Help:    "Search cycle latencies in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"trigger"},
	)

	// Per (owner, term) outcomes partitioned by kind (ok, search, embedding, ...)
	triplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsjacker_triples_total",
			Help: "Total number of (owner, term) searches processed",
		},
		[]string{"kind"},
	)

	// Ranked candidates partitioned by result (created, existing, dropped)
	candidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsjacker_candidates_total",
			Help: "Total number of search candidates handled",
		},
		[]string{"result"},
	)

	briefsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsjacker_briefs_total",
			Help: "Total number of AI briefs generated",
		},
		[]string{"status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsjacker_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsjacker_http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// ObserveCycle records a finished cycle.
func ObserveCycle(trigger string, d time.Duration) {
	cyclesTotal.WithLabelValues(trigger).Inc()
	cycleDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// ObserveTriple records one (owner, term) outcome and its candidate counts.
func ObserveTriple(kind string, created, existing, dropped int) {
	triplesTotal.WithLabelValues(kind).Inc()
	candidatesTotal.WithLabelValues("created").Add(float64(created))
	candidatesTotal.WithLabelValues("existing").Add(float64(existing))
	candidatesTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// ObserveBrief records a brief generation attempt.
func ObserveBrief(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	briefsTotal.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts requests by method, route pattern and status. Routes use
// the mux pattern to keep label cardinality low.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
