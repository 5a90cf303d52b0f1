package biz

import (
	"context"
	"time"
)

// AuditLogger defines the interface for the provider audit trail
type AuditLogger interface {
	// LogCircuitOpened logs a circuit breaker trip for a provider
	LogCircuitOpened(ctx context.Context, provider string, failureCount int, lastError string, openedAt time.Time)

	// LogCircuitClosed logs a circuit breaker closing for a provider
	LogCircuitClosed(ctx context.Context, provider string, closedAt time.Time)

	// LogProviderDegraded logs a provider entering DEGRADED status
	LogProviderDegraded(ctx context.Context, provider string, reason string)

	// LogProviderRecovered logs a provider returning to ACTIVE status
	LogProviderRecovered(ctx context.Context, provider string)

	// LogHealthCheckFailed logs a failed provider health probe
	LogHealthCheckFailed(ctx context.Context, provider string, probeErr string)

	// LogAllProvidersFailed logs a lookup that exhausted every provider
	LogAllProvidersFailed(ctx context.Context, flightNumber string, attempted int)
}
