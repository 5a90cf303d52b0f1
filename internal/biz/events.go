package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/conf"
	"AeroSentry/internal/model"
	"AeroSentry/pkg/flightdata"
)

// failoverEventSink fans failover lifecycle events out to the audit trail
// and the alert service. Publish is called inline from lookup paths, so
// both targets must be non-blocking (the audit logger enqueues, the alert
// service only logs).
type failoverEventSink struct {
	audit  AuditLogger
	alerts AlertService
	logger *log.Helper

	// breakerThreshold is the consecutive failure count that opens a
	// breaker; events do not carry it, the config does.
	breakerThreshold int
	providerCount    int
}

// NewFailoverEventSink creates the event sink wired into the failover manager.
func NewFailoverEventSink(c *conf.Bootstrap, audit AuditLogger, alerts AlertService, logger log.Logger) flightdata.EventSink {
	threshold := 0
	if c.Failover != nil {
		threshold = c.Failover.CircuitBreakerThreshold
	}
	return &failoverEventSink{
		audit:            audit,
		alerts:           alerts,
		logger:           log.NewHelper(logger),
		breakerThreshold: threshold,
		providerCount:    len(c.Providers),
	}
}

// Publish implements flightdata.EventSink.
func (s *failoverEventSink) Publish(ctx context.Context, event flightdata.Event) {
	switch event.Type {
	case flightdata.EventBreakerOpened:
		s.audit.LogCircuitOpened(ctx, event.Provider, s.breakerThreshold, event.Message, event.At)
		if err := s.alerts.NotifyCircuitOpened(ctx, &model.BreakerOpenedEvent{
			Provider:     event.Provider,
			FailureCount: s.breakerThreshold,
			LastError:    event.Message,
			OpenedAt:     event.At,
		}); err != nil {
			s.logger.Warnw("Circuit opened alert failed",
				"provider", event.Provider,
				"error", err)
		}
	case flightdata.EventBreakerRecovered:
		s.audit.LogCircuitClosed(ctx, event.Provider, event.At)
		s.notifyClosed(ctx, event)
	case flightdata.EventProviderRecovered:
		s.audit.LogProviderRecovered(ctx, event.Provider)
		s.notifyClosed(ctx, event)
	case flightdata.EventAllProvidersFailed:
		s.audit.LogAllProvidersFailed(ctx, event.Flight, s.providerCount)
	default:
		s.logger.Debugw("Unhandled failover event", "event_type", event.Type)
	}
}

func (s *failoverEventSink) notifyClosed(ctx context.Context, event flightdata.Event) {
	if err := s.alerts.NotifyCircuitClosed(ctx, &model.BreakerClosedEvent{
		Provider: event.Provider,
		ClosedAt: event.At,
	}); err != nil {
		s.logger.Warnw("Circuit closed alert failed",
			"provider", event.Provider,
			"error", err)
	}
}
