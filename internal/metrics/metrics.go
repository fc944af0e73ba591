// Package metrics registers the Prometheus collectors shared by the cache, provider and HTTP layers.
//
// Collectors are registered once on the default registry through promauto; the server exposes them at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbridge_cache_hits_total",
		Help: "Cache lookups that returned a live entry.",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbridge_cache_misses_total",
		Help: "Cache lookups that found nothing or an expired entry.",
	}, []string{"cache"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbridge_cache_evictions_total",
		Help: "Entries removed by LRU pressure or TTL expiry.",
	}, []string{"cache", "reason"})

	DedupShared = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbridge_dedup_shared_total",
		Help: "Callers that received the result of another caller's in-flight request.",
	}, []string{"cache"})

	ProviderAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbridge_provider_attempts_total",
		Help: "Upstream call attempts by provider, operation and outcome kind.",
	}, []string{"provider", "op", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "songbridge_provider_latency_seconds",
		Help:    "Latency of individual upstream call attempts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "op"})

	ProviderSuccessRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "songbridge_provider_success_rate",
		Help: "Exponential moving average of provider success.",
	}, []string{"provider"})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbridge_resolutions_total",
		Help: "Orchestrated resolutions by operation and outcome.",
	}, []string{"op", "outcome"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbridge_http_requests_total",
		Help: "HTTP requests served by the API.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "songbridge_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ObserveAttempt records one upstream attempt.
func ObserveAttempt(provider, op, outcome string, d time.Duration) {
	ProviderAttempts.WithLabelValues(provider, op, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, op).Observe(d.Seconds())
}

// Middleware records request counts and latency.
//
// Paths are labelled with the matched chi route pattern so provider IDs in URLs don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
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

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
