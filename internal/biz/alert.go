package biz

import (
	"context"

	"AeroSentry/internal/model"
)

// AlertService defines the interface for disruption and breaker notifications
type AlertService interface {
	// NotifyDisruption sends notification when a flight disruption is detected
	NotifyDisruption(ctx context.Context, alert *model.DisruptionAlert) error

	// NotifyCircuitOpened sends notification when a provider circuit breaker trips
	NotifyCircuitOpened(ctx context.Context, event *model.BreakerOpenedEvent) error

	// NotifyCircuitClosed sends notification when a provider circuit breaker recovers
	NotifyCircuitClosed(ctx context.Context, event *model.BreakerClosedEvent) error
}
