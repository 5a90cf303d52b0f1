// Package main provides a manual test utility for provider quota guarding.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"AeroSentry/internal/biz"
	"AeroSentry/internal/data"
	"AeroSentry/pkg/flightdata"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// Manual integration test for provider request budgets
// This exercises the QuotaGuardUseCase directly against a real Redis instance

func main() {
	logger := log.NewStdLogger(os.Stdout)

	fmt.Println("==========================================")
	fmt.Println("AeroSentry Provider Quota Integration Test")
	fmt.Println("==========================================")
	fmt.Println()

	fmt.Println("Step 1: Connect to Redis")
	fmt.Println("------------------------------------------")

	rdb := redis.NewClient(&redis.Options{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("✗ Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Connected to Redis successfully")
	fmt.Println()

	repo := data.NewProviderQuotaRepo(rdb, logger)
	guard := biz.NewQuotaGuardUseCase(repo, logger)

	const provider = "quota-guard-manual-test"
	budget := biz.ProviderBudget{RequestsPerMinute: 3, RequestsPerDay: 100}

	// Clean up test data
	defer func() {
		fmt.Println()
		fmt.Println("==========================================")
		fmt.Println("Cleanup")
		fmt.Println("==========================================")
		keys, err := rdb.Keys(ctx, fmt.Sprintf("%s:%s:*", data.CacheKeyQuota, provider)).Result()
		if err == nil && len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
		fmt.Printf("✓ Removed %d test keys\n", len(keys))
		_ = rdb.Close()
	}()

	fmt.Println("Step 2: Consume the minute budget")
	fmt.Println("------------------------------------------")
	for i := 1; i <= int(budget.RequestsPerMinute); i++ {
		if err := guard.CheckBudget(ctx, provider, budget); err != nil {
			fmt.Printf("✗ Request %d unexpectedly rejected: %v\n", i, err)
			os.Exit(1)
		}
		fmt.Printf("✓ Request %d allowed\n", i)
	}
	fmt.Println()

	fmt.Println("Step 3: Next request must be rate limited")
	fmt.Println("------------------------------------------")
	err := guard.CheckBudget(ctx, provider, budget)
	if err == nil {
		fmt.Println("✗ Request over budget was allowed")
		os.Exit(1)
	}
	if !flightdata.IsRateLimit(err) {
		fmt.Printf("✗ Expected a rate limit error, got: %v\n", err)
		os.Exit(1)
	}
	retryAfter, _ := flightdata.RetryAfter(err)
	fmt.Printf("✓ Rejected with RetryAfter = %v\n", retryAfter)
	fmt.Println()

	fmt.Println("Step 4: In-flight ledger")
	fmt.Println("------------------------------------------")
	requestID := guard.AcquireSlot(ctx, provider)
	minute, day, inFlight := guard.Usage(ctx, provider)
	fmt.Printf("✓ Usage: minute=%d day=%d in_flight=%d\n", minute, day, inFlight)
	guard.ReleaseSlot(ctx, provider, requestID)
	_, _, inFlight = guard.Usage(ctx, provider)
	if inFlight != 0 {
		fmt.Printf("✗ Expected 0 in-flight after release, got %d\n", inFlight)
		os.Exit(1)
	}
	fmt.Println("✓ Slot released")
	fmt.Println()

	fmt.Println("Step 5: Stale in-flight cleanup")
	fmt.Println("------------------------------------------")
	// Plant an entry 20 minutes in the past, beyond the 10-minute cutoff.
	if err := repo.AddInFlight(ctx, provider, "stale-request", time.Now().Add(-20*time.Minute).Unix()); err != nil {
		fmt.Printf("✗ Failed to plant stale entry: %v\n", err)
		os.Exit(1)
	}
	if _, err := guard.CleanupStale(ctx, []string{provider}); err != nil {
		fmt.Printf("✗ Cleanup failed: %v\n", err)
		os.Exit(1)
	}
	_, _, inFlight = guard.Usage(ctx, provider)
	if inFlight != 0 {
		fmt.Printf("✗ Expected stale entry removed, in_flight=%d\n", inFlight)
		os.Exit(1)
	}
	fmt.Println("✓ Stale entry removed")

	fmt.Println()
	fmt.Println("All quota guard checks passed ✓")
}
