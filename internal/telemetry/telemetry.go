// Package telemetry exposes Prometheus metrics for the search-and-fetch service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchfetch_search_requests_total",
			Help: "Total number of search requests, labeled by result source.",
		},
		[]string{"source"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchfetch_cache_lookups_total",
			Help: "Total number of cache lookups, labeled by cache and outcome.",
		},
		[]string{"cache", "outcome"},
	)

	cacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchfetch_cache_evictions_total",
			Help: "Total number of cache evictions, labeled by cache and reason.",
		},
		[]string{"cache", "reason"},
	)

	outboundRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchfetch_outbound_requests_total",
			Help: "Total number of outbound network requests, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	gateWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchfetch_gate_wait_seconds",
			Help:    "Histogram of time spent waiting for a concurrency permit.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchfetch_rate_limit_delay_seconds",
			Help:    "Histogram of per-domain rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchfetch_http_requests_total",
			Help: "Total number of HTTP requests served, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchfetch_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveSearch records a search request and where it was answered from.
func ObserveSearch(source string) {
	searchRequestsTotal.WithLabelValues(source).Inc()
}

// ObserveCacheLookup records a cache read outcome ("hit" or "miss").
func ObserveCacheLookup(cache, outcome string) {
	cacheLookupsTotal.WithLabelValues(cache, outcome).Inc()
}

// ObserveCacheEviction records an entry removal ("lru" or "expired").
func ObserveCacheEviction(cache, reason string) {
	cacheEvictionsTotal.WithLabelValues(cache, reason).Inc()
}

// ObserveOutbound records an outbound request by kind (search, content,
// reader, fallback) and outcome.
func ObserveOutbound(kind, outcome string) {
	outboundRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveGateWait records how long a caller waited for a concurrency permit.
func ObserveGateWait(duration time.Duration) {
	gateWaitSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records metrics for a served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
