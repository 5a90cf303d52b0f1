package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// ProviderQuotaRepo implements biz.ProviderQuotaRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
// Counters live in Redis fixed windows so every replica shares one budget.
type ProviderQuotaRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewProviderQuotaRepo creates a new provider quota repository.
func NewProviderQuotaRepo(rdb *redis.Client, logger log.Logger) *ProviderQuotaRepo {
	return &ProviderQuotaRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// IncrementMinute increments the per-minute request counter for a provider.
// Uses Redis INCR with automatic expiration (60 seconds) on first increment.
// Returns the new count and any error.
func (r *ProviderQuotaRepo) IncrementMinute(ctx context.Context, provider string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := getQuotaKey(provider, "minute")

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment minute quota: %w", err)
	}

	// Set expiration on first increment (atomic operation)
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, 60*time.Second).Err(); err != nil {
			r.logger.Warnf("Failed to set minute quota expiration for provider %s: %v", provider, err)
			// Don't return error, counter is still incremented
		}
	}

	return count, nil
}

// IncrementDay increments the per-day request counter for a provider.
// The window expires 24h after its first request.
func (r *ProviderQuotaRepo) IncrementDay(ctx context.Context, provider string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := getQuotaKey(provider, "day")

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment day quota: %w", err)
	}

	if count == 1 {
		if err := r.rdb.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
			r.logger.Warnf("Failed to set day quota expiration for provider %s: %v", provider, err)
		}
	}

	return count, nil
}

// GetMinuteCount retrieves the current minute-window count for a provider.
// Returns 0 if key doesn't exist.
func (r *ProviderQuotaRepo) GetMinuteCount(ctx context.Context, provider string) (int64, error) {
	return r.getCount(ctx, getQuotaKey(provider, "minute"))
}

// GetDayCount retrieves the current day-window count for a provider.
// Returns 0 if key doesn't exist.
func (r *ProviderQuotaRepo) GetDayCount(ctx context.Context, provider string) (int64, error) {
	return r.getCount(ctx, getQuotaKey(provider, "day"))
}

func (r *ProviderQuotaRepo) getCount(ctx context.Context, key string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	count, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		// Key doesn't exist, return 0
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get quota count: %w", err)
	}

	countInt, err := strconv.ParseInt(count, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse quota count: %w", err)
	}

	return countInt, nil
}

// AddInFlight adds a request to the in-flight tracking sorted set.
// Uses Redis ZADD with the timestamp as score.
func (r *ProviderQuotaRepo) AddInFlight(ctx context.Context, provider, requestID string, timestamp int64) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	key := getInFlightKey(provider)

	if err := r.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(timestamp),
		Member: requestID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add in-flight request: %w", err)
	}

	return nil
}

// RemoveInFlight removes a request from the in-flight tracking sorted set.
// Uses Redis ZREM.
func (r *ProviderQuotaRepo) RemoveInFlight(ctx context.Context, provider, requestID string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	key := getInFlightKey(provider)

	if err := r.rdb.ZRem(ctx, key, requestID).Err(); err != nil {
		return fmt.Errorf("failed to remove in-flight request: %w", err)
	}

	return nil
}

// GetInFlightCount retrieves the current in-flight count for a provider.
// Uses Redis ZCARD to count members in the sorted set.
func (r *ProviderQuotaRepo) GetInFlightCount(ctx context.Context, provider string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := getInFlightKey(provider)

	count, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get in-flight count: %w", err)
	}

	return count, nil
}

// CleanupStaleInFlight removes abandoned entries from the in-flight sorted set.
// Uses Redis ZREMRANGEBYSCORE to remove requests older than staleBefore timestamp.
func (r *ProviderQuotaRepo) CleanupStaleInFlight(ctx context.Context, provider string, staleBefore int64) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	key := getInFlightKey(provider)

	removedCount, err := r.rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(staleBefore, 10)).Result()
	if err != nil {
		return fmt.Errorf("failed to cleanup stale in-flight requests: %w", err)
	}

	if removedCount > 0 {
		r.logger.Debugw("Cleaned up stale in-flight requests",
			"provider", provider,
			"removed_count", removedCount)
	}

	return nil
}

// getQuotaKey generates a Redis key for a quota window.
// Format: quota:{provider}:{window}
// Example: quota:FlightAware:minute or quota:FlightAware:day
func getQuotaKey(provider, window string) string {
	return fmt.Sprintf("%s:%s:%s", CacheKeyQuota, provider, window)
}

// getInFlightKey generates a Redis key for in-flight request tracking.
// Format: quota:{provider}:inflight
func getInFlightKey(provider string) string {
	return fmt.Sprintf("%s:%s:inflight", CacheKeyQuota, provider)
}
