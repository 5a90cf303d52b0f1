package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"AeroSentry/pkg/flightdata"
)

// ProviderBudget is the configured request budget for one upstream
// provider. Zero values disable the corresponding check.
type ProviderBudget struct {
	RequestsPerMinute int64
	RequestsPerDay    int64
}

// QuotaGuardUseCase enforces client-side request budgets against metered
// flight data providers. It uses Redis fixed-window counters per minute
// and per day, plus a sorted-set ledger of in-flight requests.
// Redis degradation: on Redis failure, requests are allowed.
type QuotaGuardUseCase struct {
	repo   ProviderQuotaRepo
	logger *log.Helper
}

// NewQuotaGuardUseCase creates a new quota guard use case.
func NewQuotaGuardUseCase(repo ProviderQuotaRepo, logger log.Logger) *QuotaGuardUseCase {
	return &QuotaGuardUseCase{
		repo:   repo,
		logger: log.NewHelper(logger),
	}
}

// CheckBudget consumes one request from the provider's minute and day
// windows. It returns a *flightdata.RateLimitError when either budget is
// exhausted, so callers short-circuit before any HTTP call is made.
func (uc *QuotaGuardUseCase) CheckBudget(ctx context.Context, provider string, budget ProviderBudget) error {
	if budget.RequestsPerMinute > 0 {
		count, err := uc.repo.IncrementMinute(ctx, provider)
		if err != nil {
			uc.logger.Warnf("Redis minute budget check failed for provider %s: %v (request allowed)", provider, err)
		} else if count > budget.RequestsPerMinute {
			uc.logger.Warnw("Provider minute budget exhausted",
				"provider", provider,
				"current", count,
				"limit", budget.RequestsPerMinute)
			return &flightdata.RateLimitError{Provider: provider, RetryAfter: time.Minute}
		}
	}

	if budget.RequestsPerDay > 0 {
		count, err := uc.repo.IncrementDay(ctx, provider)
		if err != nil {
			uc.logger.Warnf("Redis day budget check failed for provider %s: %v (request allowed)", provider, err)
		} else if count > budget.RequestsPerDay {
			uc.logger.Warnw("Provider day budget exhausted",
				"provider", provider,
				"current", count,
				"limit", budget.RequestsPerDay)
			return &flightdata.RateLimitError{Provider: provider, RetryAfter: 24 * time.Hour}
		}
	}

	return nil
}

// AcquireSlot registers an in-flight request for the provider and returns
// its request ID. Best effort: Redis failures only log.
func (uc *QuotaGuardUseCase) AcquireSlot(ctx context.Context, provider string) string {
	requestID := uuid.NewString()
	if err := uc.repo.AddInFlight(ctx, provider, requestID, time.Now().Unix()); err != nil {
		uc.logger.Warnf("Redis in-flight add failed for provider %s: %v", provider, err)
	}
	return requestID
}

// ReleaseSlot removes an in-flight request from the provider's ledger.
// This should be called with defer to ensure cleanup even on errors.
func (uc *QuotaGuardUseCase) ReleaseSlot(ctx context.Context, provider, requestID string) {
	if err := uc.repo.RemoveInFlight(ctx, provider, requestID); err != nil {
		uc.logger.Warnf("Failed to release in-flight slot for provider %s request %s: %v",
			provider, requestID, err)
	}
}

// Usage returns the provider's current minute count, day count, and
// in-flight count for the stats endpoint. Redis failures report zeroes.
func (uc *QuotaGuardUseCase) Usage(ctx context.Context, provider string) (minute, day, inFlight int64) {
	var err error
	if minute, err = uc.repo.GetMinuteCount(ctx, provider); err != nil {
		uc.logger.Debugf("Minute count lookup failed for provider %s: %v", provider, err)
	}
	if day, err = uc.repo.GetDayCount(ctx, provider); err != nil {
		uc.logger.Debugf("Day count lookup failed for provider %s: %v", provider, err)
	}
	if inFlight, err = uc.repo.GetInFlightCount(ctx, provider); err != nil {
		uc.logger.Debugf("In-flight count lookup failed for provider %s: %v", provider, err)
	}
	return minute, day, inFlight
}

// CleanupStale removes in-flight entries older than 10 minutes for the
// given providers. Called periodically by the cron job.
func (uc *QuotaGuardUseCase) CleanupStale(ctx context.Context, providers []string) (int, error) {
	const staleMinutes = 10
	staleBefore := time.Now().Add(-staleMinutes * time.Minute).Unix()

	cleaned := 0
	for _, provider := range providers {
		if err := uc.repo.CleanupStaleInFlight(ctx, provider, staleBefore); err != nil {
			uc.logger.Warnf("Failed to cleanup stale in-flight entries for provider %s: %v", provider, err)
			continue
		}
		cleaned++
	}

	uc.logger.Infow("In-flight cleanup completed",
		"total_providers", len(providers),
		"cleaned", cleaned)

	return cleaned, nil
}

// quotaProvider decorates a flight data provider with budget enforcement.
// Budget exhaustion surfaces as a RateLimitError before any HTTP call, so
// the failover manager treats it exactly like an upstream 429 and moves on
// to the next provider.
type quotaProvider struct {
	flightdata.FlightDataProvider
	guard  *QuotaGuardUseCase
	budget ProviderBudget
}

// WithQuotaGuard wraps a provider with budget enforcement. A zero budget
// returns the provider unchanged.
func WithQuotaGuard(p flightdata.FlightDataProvider, guard *QuotaGuardUseCase, budget ProviderBudget) flightdata.FlightDataProvider {
	if budget.RequestsPerMinute <= 0 && budget.RequestsPerDay <= 0 {
		return p
	}
	return &quotaProvider{
		FlightDataProvider: p,
		guard:              guard,
		budget:             budget,
	}
}

// GetFlightStatus checks the budget before delegating to the wrapped provider.
func (q *quotaProvider) GetFlightStatus(ctx context.Context, flightNumber string, departureDate time.Time) (*flightdata.FlightStatus, error) {
	if err := q.guard.CheckBudget(ctx, q.Name(), q.budget); err != nil {
		return nil, err
	}

	requestID := q.guard.AcquireSlot(ctx, q.Name())
	defer q.guard.ReleaseSlot(ctx, q.Name(), requestID)

	return q.FlightDataProvider.GetFlightStatus(ctx, flightNumber, departureDate)
}

// GetMultipleFlights checks the budget once per batch call before delegating.
func (q *quotaProvider) GetMultipleFlights(ctx context.Context, requests []flightdata.StatusRequest) (map[string]*flightdata.FlightStatus, error) {
	if err := q.guard.CheckBudget(ctx, q.Name(), q.budget); err != nil {
		return nil, err
	}

	requestID := q.guard.AcquireSlot(ctx, q.Name())
	defer q.guard.ReleaseSlot(ctx, q.Name(), requestID)

	return q.FlightDataProvider.GetMultipleFlights(ctx, requests)
}

var _ flightdata.FlightDataProvider = (*quotaProvider)(nil)
