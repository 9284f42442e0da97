package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Control API request rate by route template.
	HTTPRequestsTotal *prometheus.CounterVec

	// Control API latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent control API requests.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo calls per api (forecast, air_quality, geocoding). Watch for: error vs success ratio.
	ForecastAPICallsTotal *prometheus.CounterVec

	// Open-Meteo latency per request. Watch for: p95 approaching the client timeout.
	ForecastAPIDuration *prometheus.HistogramVec

	// Retry attempts per api. Watch for: high retries = unstable upstream.
	ForecastAPIRetriesTotal *prometheus.CounterVec

	// Circuit breaker state changes per api.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Cache slot reads by domain and result (hit, miss, decode_error, error).
	CacheReadsTotal *prometheus.CounterVec

	// Cache slot writes by domain and result (success, error).
	CacheWritesTotal *prometheus.CounterVec

	// Completed fetch cycles by outcome. Watch for: permission_denied or failed dominating.
	FetchCyclesTotal *prometheus.CounterVec

	// Wall time of a fetch cycle from coordinate resolution to cache write.
	FetchCycleDuration prometheus.Histogram

	// Fetch triggers received, by trigger (mount, settings, foreground, refetch, schedule).
	FetchTriggersTotal *prometheus.CounterVec

	// Triggers dropped because a fetch cycle was already running.
	FetchTriggersDroppedTotal *prometheus.CounterVec

	// Unix time of the last successful weather fetch.
	LastUpdatedTimestamp prometheus.Gauge

	// Refresh requests denied by the control API rate limiter (429).
	RateLimitDeniedTotal prometheus.Counter
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
			Help: "Total number of control API requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "Control API latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of control API requests currently being served",
		},
	)
	ForecastAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"api", "status"},
	)
	ForecastAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastApiDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)
	ForecastAPIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiRetriesTotal",
			Help: "Total number of retry attempts for Open-Meteo API calls",
		},
		[]string{"api"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions per api",
		},
		[]string{"api", "from", "to"},
	)
	CacheReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheReadsTotal",
			Help: "Cache slot reads by domain and result",
		},
		[]string{"domain", "result"},
	)
	CacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheWritesTotal",
			Help: "Cache slot writes by domain and result",
		},
		[]string{"domain", "result"},
	)
	FetchCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchCyclesTotal",
			Help: "Completed fetch cycles by outcome",
		},
		[]string{"outcome"},
	)
	FetchCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetchCycleDurationSeconds",
			Help:    "Fetch cycle wall time in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	FetchTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchTriggersTotal",
			Help: "Fetch triggers received by trigger",
		},
		[]string{"trigger"},
	)
	FetchTriggersDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchTriggersDroppedTotal",
			Help: "Fetch triggers dropped because a cycle was in flight",
		},
		[]string{"trigger"},
	)
	LastUpdatedTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lastUpdatedTimestampSeconds",
			Help: "Unix time of the last successful weather fetch",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of refresh requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ForecastAPICallsTotal, ForecastAPIDuration, ForecastAPIRetriesTotal,
		CircuitBreakerTransitionsTotal,
		CacheReadsTotal, CacheWritesTotal,
		FetchCyclesTotal, FetchCycleDuration, FetchTriggersTotal, FetchTriggersDroppedTotal,
		LastUpdatedTimestamp,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
