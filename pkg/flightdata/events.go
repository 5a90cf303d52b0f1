package flightdata

import (
	"context"
	"time"
)

// EventType classifies failover lifecycle events.
type EventType string

const (
	// EventBreakerOpened fires when a provider's circuit breaker opens.
	EventBreakerOpened EventType = "breaker_opened"
	// EventBreakerRecovered fires when a successful call closes an open breaker.
	EventBreakerRecovered EventType = "breaker_recovered"
	// EventProviderRecovered fires when a health check resets an open breaker.
	EventProviderRecovered EventType = "provider_recovered"
	// EventAllProvidersFailed fires when a lookup exhausted every provider.
	EventAllProvidersFailed EventType = "all_providers_failed"
)

// Event describes a failover state change worth surfacing to operators.
type Event struct {
	Type     EventType `json:"type"`
	Provider string    `json:"provider,omitempty"`
	Flight   string    `json:"flight,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// EventSink receives failover events. Publish is called inline from the
// request path, so implementations must not block; slow consumers should
// buffer internally and drop on overflow.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// NoopSink discards all events.
type NoopSink struct{}

// Publish implements EventSink.
func (NoopSink) Publish(context.Context, Event) {}
