package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
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
)

// Pipeline and pool metrics.
var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_queries_total",
			Help: "Queries executed against Doris, by outcome.",
		},
		[]string{"status"},
	)

	queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_query_duration_seconds",
		Help:    "Doris query latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_pipeline_rejections_total",
			Help: "Requests rejected by a pipeline stage.",
		},
		[]string{"stage"},
	)

	poolInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_pool_connections_in_use",
		Help: "Doris connections currently held by requests or the session cache.",
	})

	poolIdle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_pool_connections_idle",
		Help: "Idle Doris connections parked in the pool.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		queriesTotal, queryDuration, rejectionsTotal,
		poolInUse, poolIdle,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveQuery records one executed query.
func ObserveQuery(status string, d time.Duration) {
	queriesTotal.WithLabelValues(status).Inc()
	queryDuration.Observe(d.Seconds())
}

// IncRejection counts a request stopped at the named pipeline stage.
func IncRejection(stage string) {
	rejectionsTotal.WithLabelValues(stage).Inc()
}

// SetPoolGauges publishes the pool's current occupancy.
func SetPoolGauges(inUse, idle int) {
	poolInUse.Set(float64(inUse))
	poolIdle.Set(float64(idle))
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

// CanonicalPath collapses id-bearing paths so metric cardinality stays
// bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// /token/revoke/{token_id}
	if len(parts) == 4 && parts[1] == "token" && parts[2] == "revoke" {
		return "/token/revoke/:id"
	}
	return path
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
