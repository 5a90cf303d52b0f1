package flightdata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch attempt outcomes used as Prometheus label values.
const (
	outcomeSuccess     = "success"
	outcomeNoData      = "no_data"
	outcomeError       = "error"
	outcomeTimeout     = "timeout"
	outcomeRateLimited = "rate_limited"
)

// Circuit breaker transitions used as Prometheus label values.
const (
	transitionOpened = "opened"
	transitionClosed = "closed"
	transitionReset  = "reset"
)

var (
	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aerosentry",
		Subsystem: "flightdata",
		Name:      "fetch_attempts_total",
		Help:      "Provider fetch attempts partitioned by outcome.",
	}, []string{"provider", "outcome"})

	providerResponseSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aerosentry",
		Subsystem: "flightdata",
		Name:      "provider_response_seconds",
		Help:      "Response time of successful provider calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aerosentry",
		Subsystem: "flightdata",
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state transitions per provider.",
	}, []string{"provider", "transition"})

	batchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aerosentry",
		Subsystem: "flightdata",
		Name:      "batch_fallbacks_total",
		Help:      "Batch lookups that fell back to per-flight failover.",
	})

	providerUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aerosentry",
		Subsystem: "flightdata",
		Name:      "provider_up",
		Help:      "Result of the last health check per provider (1 healthy, 0 unhealthy).",
	}, []string{"provider"})
)
