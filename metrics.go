package fetchkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// the resilience layers. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimiterTokens *prometheus.GaugeVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec
	cacheEvictions *prometheus.CounterVec

	deduplicationHits *prometheus.CounterVec

	batchesTotal *prometheus.CounterVec
	batchSize    *prometheus.HistogramVec

	networkOnline *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_requests_total",
				Help: "Total number of HTTP requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchkit_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_rate_limiter_tokens",
				Help: "Current number of available rate limiter tokens",
			},
			[]string{"name"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_cache_size",
				Help: "Current number of entries in cache",
			},
			[]string{"name"},
		),
		cacheEvictions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_cache_evictions_total",
				Help: "Total number of entries evicted because the cache was full",
			},
			[]string{"name"},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_deduplication_hits_total",
				Help: "Total number of requests that joined an in-flight call",
			},
			[]string{"key"},
		),
		batchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_batches_total",
				Help: "Total number of batch windows executed",
			},
			[]string{"batch_key"},
		),
		batchSize: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchkit_batch_size",
				Help:    "Number of requests accumulated per batch window",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"batch_key"},
		),
		networkOnline: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_network_online",
				Help: "Whether the client currently believes it is online (1) or offline (0)",
			},
			[]string{"name"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"kind", "method", "endpoint"},
		),
	}

	if r, ok := registry.(*prometheus.Registry); ok {
		mc.registry = r
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}

	attemptStr := strconv.Itoa(attempt)
	mc.retriesTotal.WithLabelValues(method, endpoint, attemptStr).Inc()
}

// RecordCircuitBreakerState sets gauge to breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}

	var stateValue float64
	switch state {
	case StateClosed:
		stateValue = 0
	case StateOpen:
		stateValue = 1
	case StateHalfOpen:
		stateValue = 2
	}

	mc.circuitBreakerState.WithLabelValues(name).Set(stateValue)
}

// RecordRateLimiterTokens sets available token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens int) {
	if mc == nil {
		return
	}

	mc.rateLimiterTokens.WithLabelValues(name).Set(float64(tokens))
}

// RecordCacheHit increments cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(key string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(key).Inc()
}

// RecordCacheMiss increments cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(key string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(key).Inc()
}

// RecordCacheSize sets cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}

	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordCacheEviction increments the eviction counter.
func (mc *MetricsCollector) RecordCacheEviction(name string) {
	if mc == nil {
		return
	}

	mc.cacheEvictions.WithLabelValues(name).Inc()
}

// RecordDeduplicationHit increments de-dup hit counter.
func (mc *MetricsCollector) RecordDeduplicationHit(key string) {
	if mc == nil {
		return
	}

	mc.deduplicationHits.WithLabelValues(key).Inc()
}

// RecordBatchFlush records one executed batch window and its size.
func (mc *MetricsCollector) RecordBatchFlush(batchKey string, size int) {
	if mc == nil {
		return
	}

	mc.batchesTotal.WithLabelValues(batchKey).Inc()
	mc.batchSize.WithLabelValues(batchKey).Observe(float64(size))
}

// RecordNetworkOnline sets the online gauge.
func (mc *MetricsCollector) RecordNetworkOnline(name string, online bool) {
	if mc == nil {
		return
	}

	value := 0.0
	if online {
		value = 1.0
	}
	mc.networkOnline.WithLabelValues(name).Set(value)
}

// RecordError increments error counter by kind.
func (mc *MetricsCollector) RecordError(kind, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(kind, method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry when the collector
// was built on one.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
