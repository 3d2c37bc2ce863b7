package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmeda07-gh/SkyGuard/internal/health"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Flight feed call rate by status. Watch for: error vs success ratio.
	FlightFeedCallsTotal *prometheus.CounterVec

	// Flight feed latency. Watch for: p95 near the 8s timeout (upstream degradation).
	FlightFeedDurationSeconds *prometheus.HistogramVec

	// METAR fetch rate by status.
	MetarCallsTotal *prometheus.CounterVec

	// METAR fetch latency.
	MetarDurationSeconds *prometheus.HistogramVec

	// Cache hits by cache (flights, weather). Miss rate drives upstream call volume.
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend failures by operation (get, set). Nonzero with memcached/redis
	// backends means the external store is unhealthy.
	CacheErrorsTotal *prometheus.CounterVec

	// Flight responses served from the synthetic generator, by reason
	// (upstream_error, empty, breaker_open). Sustained nonzero rate means the
	// dashboard is running on simulated data.
	FlightFallbacksTotal *prometheus.CounterVec

	// Weather responses degraded to an empty report.
	WeatherFallbacksTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Panics recovered by the top-level guard. Should stay at zero.
	PanicsRecoveredTotal prometheus.Counter

	// Connected websocket stream clients.
	StreamClientsConnected prometheus.Gauge

	// Cache warming runs for tracked airports.
	CacheWarmingTotal prometheus.Counter

	// Duration of one warming pass across all tracked airports.
	CacheWarmingDurationSeconds prometheus.Histogram

	// Circuit breaker transitions per component.
	breakerTransitionsTotal *prometheus.CounterVec

	// Circuit breaker state per component (0 closed, 1 open, 2 half-open).
	breakerStateGauge *prometheus.GaugeVec

	// In-flight requests remaining when shutdown began.
	shutdownInFlightGauge prometheus.Gauge

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	FlightFeedCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightFeedCallsTotal",
			Help: "Total number of aircraft state feed calls",
		},
		[]string{"status"},
	)
	FlightFeedDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flightFeedDurationSeconds",
			Help:    "Aircraft state feed latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	MetarCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metarCallsTotal",
			Help: "Total number of METAR text resource fetches",
		},
		[]string{"status"},
	)
	MetarDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metarDurationSeconds",
			Help:    "METAR fetch latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of freshness cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache backend failures",
		},
		[]string{"operation"},
	)
	FlightFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightFallbacksTotal",
			Help: "Flight responses served from the synthetic generator",
		},
		[]string{"reason"},
	)
	WeatherFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherFallbacksTotal",
			Help: "Weather responses degraded to an empty report",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	PanicsRecoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "panicsRecoveredTotal",
			Help: "Handler panics caught by the recovery middleware",
		},
	)
	StreamClientsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamClientsConnected",
			Help: "Connected websocket stream clients",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming passes for tracked airports",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Duration of one warming pass across all tracked airports",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	breakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	breakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half_open)",
		},
		[]string{"component"},
	)
	shutdownInFlightGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests remaining when graceful shutdown began",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		FlightFeedCallsTotal, FlightFeedDurationSeconds,
		MetarCallsTotal, MetarDurationSeconds,
		CacheHitsTotal, CacheErrorsTotal,
		FlightFallbacksTotal, WeatherFallbacksTotal,
		RateLimitDeniedTotal, PanicsRecoveredTotal,
		CacheWarmingTotal, CacheWarmingDurationSeconds,
		StreamClientsConnected,
		breakerTransitionsTotal, breakerStateGauge,
		shutdownInFlightGauge,
	)
}

// RegisterTrafficGauges registers request and denial gauges over the sliding
// window. Call from main after config load; uses the same window as the
// health endpoint's overload check.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting the rate-limited path in the sliding window",
				},
				func() float64 { return float64(health.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(health.DenialCount(window)) },
			),
		)
	})
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(component, from, to string) {
	breakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetBreakerState sets the numeric breaker state gauge for a component.
func SetBreakerState(component string, state int) {
	breakerStateGauge.WithLabelValues(component).Set(float64(state))
}

// RecordShutdownInFlight records how many requests were still in flight
// when graceful shutdown was triggered.
func RecordShutdownInFlight(count int64) {
	shutdownInFlightGauge.Set(float64(count))
}

// MetricsHandler returns the promhttp handler bound to the private registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
