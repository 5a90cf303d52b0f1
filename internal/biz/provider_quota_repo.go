package biz

import (
	"context"
)

// ProviderQuotaRepo defines the interface for provider request budget
// tracking. Following Kratos v2 DDD architecture, interfaces are defined in
// biz layer. Implementation is in data layer (data.ProviderQuotaRepo).
type ProviderQuotaRepo interface {
	// Fixed-window request counters.
	IncrementMinute(ctx context.Context, provider string) (int64, error)
	IncrementDay(ctx context.Context, provider string) (int64, error)
	GetMinuteCount(ctx context.Context, provider string) (int64, error)
	GetDayCount(ctx context.Context, provider string) (int64, error)

	// In-flight request ledger.
	AddInFlight(ctx context.Context, provider, requestID string, timestamp int64) error
	RemoveInFlight(ctx context.Context, provider, requestID string) error
	GetInFlightCount(ctx context.Context, provider string) (int64, error)
	CleanupStaleInFlight(ctx context.Context, provider string, staleBefore int64) error
}
