package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lexora_ready",
		Help: "Whether the service currently passes its readiness probe.",
	})
)

// Authorization-core metrics.
var (
	loginDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexora_login_decisions_total",
			Help: "Login decisions by verdict (allow, invalid_credentials, pending, rejected, blocked, firm_not_found, error).",
		},
		[]string{"verdict"},
	)

	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexora_registrations_total",
			Help: "Completed registrations by account kind.",
		},
		[]string{"kind"},
	)
)

var initOnce sync.Once

// Init registers all metrics in the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			ready, loginDecisions, registrations)
	})
}

// SetReady records the most recent readiness probe outcome.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

// ObserveLoginDecision counts one login verdict.
func ObserveLoginDecision(verdict string) {
	loginDecisions.WithLabelValues(verdict).Inc()
}

// ObserveRegistration counts one completed registration.
func ObserveRegistration(kind string) {
	registrations.WithLabelValues(kind).Inc()
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CanonicalPath collapses member ids out of the path so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	const prefix = "/v1/firm/members/"
	if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" {
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		switch {
		case len(parts) == 1:
			return prefix + ":id"
		case len(parts) == 2 && (parts[1] == "status" || parts[1] == "permissions"):
			return prefix + ":id/" + parts[1]
		}
	}
	return path
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
