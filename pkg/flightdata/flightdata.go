// Package flightdata provides access to external flight status sources with
// automatic failover, per-provider circuit breakers and performance tracking.
package flightdata

import (
	"context"
	"time"
)

// ProviderStatus describes the current availability of a flight data provider.
type ProviderStatus string

const (
	// StatusAvailable means the provider is healthy and accepting requests.
	StatusAvailable ProviderStatus = "available"
	// StatusUnavailable means the provider cannot serve requests (for example
	// missing or rejected credentials).
	StatusUnavailable ProviderStatus = "unavailable"
	// StatusRateLimited means the provider rejected the last request with a
	// rate limit response and should be left alone for a while.
	StatusRateLimited ProviderStatus = "rate_limited"
	// StatusDegraded means the provider is reachable but unreliable (server
	// errors, network flapping). Degraded providers are only retried after
	// a configurable interval.
	StatusDegraded ProviderStatus = "degraded"
	// StatusMaintenance means the provider is administratively disabled.
	StatusMaintenance ProviderStatus = "maintenance"
)

// DisruptionType classifies a flight disruption.
type DisruptionType string

const (
	// DisruptionNone marks an undisrupted flight.
	DisruptionNone DisruptionType = ""
	// DisruptionCancelled marks a cancelled flight.
	DisruptionCancelled DisruptionType = "CANCELLED"
	// DisruptionDelayed marks a flight delayed beyond the tolerance window.
	DisruptionDelayed DisruptionType = "DELAYED"
	// DisruptionDiverted marks a flight that landed somewhere else.
	DisruptionDiverted DisruptionType = "DIVERTED"
	// DisruptionOverbooked marks a denied-boarding event. Providers never
	// report this; it enters the system through booking workflows.
	DisruptionOverbooked DisruptionType = "OVERBOOKED"
)

// FlightStatus is the normalized flight status record shared by all
// providers. The Source field names the provider that produced it and
// ConfidenceScore (0.0-1.0) states how much that provider trusts the data.
type FlightStatus struct {
	FlightID           string                 `json:"flight_id"`
	Status             string                 `json:"status"`
	DelayMinutes       int                    `json:"delay_minutes"`
	ScheduledDeparture time.Time              `json:"scheduled_departure"`
	ActualDeparture    *time.Time             `json:"actual_departure,omitempty"`
	ScheduledArrival   time.Time              `json:"scheduled_arrival"`
	ActualArrival      *time.Time             `json:"actual_arrival,omitempty"`
	Gate               string                 `json:"gate,omitempty"`
	Terminal           string                 `json:"terminal,omitempty"`
	IsDisrupted        bool                   `json:"is_disrupted"`
	DisruptionType     DisruptionType         `json:"disruption_type,omitempty"`
	LastUpdated        time.Time              `json:"last_updated"`
	Source             string                 `json:"source"`
	ConfidenceScore    float64                `json:"confidence_score"`
	Raw                map[string]interface{} `json:"raw_data,omitempty"`
}

// StatusRequest identifies one flight lookup in a batch request.
type StatusRequest struct {
	FlightNumber  string    `json:"flight_number"`
	DepartureDate time.Time `json:"departure_date"`
}

// FlightDataProvider is implemented by every flight status source.
//
// GetFlightStatus returns (nil, nil) when the provider answered but had no
// data for the flight; typed errors (RateLimitError, TimeoutError,
// AuthenticationError, ProviderError) signal failures the failover manager
// reacts to. Each provider owns its metrics record; implementations must be
// safe for concurrent use.
type FlightDataProvider interface {
	// Name returns the unique provider name.
	Name() string
	// Priority orders providers for failover: higher is tried first.
	Priority() int
	// Status reports the provider's self-assessed availability.
	Status() ProviderStatus
	// GetFlightStatus fetches the status of a single flight.
	GetFlightStatus(ctx context.Context, flightNumber string, departureDate time.Time) (*FlightStatus, error)
	// GetMultipleFlights fetches several flights, mapping flight number to
	// status. Flights the provider could not resolve map to nil.
	GetMultipleFlights(ctx context.Context, requests []StatusRequest) (map[string]*FlightStatus, error)
	// HealthCheck probes the provider and updates its status. A nil return
	// means healthy.
	HealthCheck(ctx context.Context) error
	// Metrics returns a point-in-time copy of the provider's metrics.
	Metrics() MetricsSnapshot
}
