//go:build ignore
// +build ignore

package main

import (
	"context"

	"AeroSentry/internal/conf"
	pkglog "AeroSentry/pkg/log"
)

func main() {
	logConf := &conf.Log{
		Level:  "debug",
		Format: "console", // console format enables the emoji encoder
		Env:    "development",
	}

	zapLogger, err := pkglog.NewZapLogger(logConf)
	if err != nil {
		panic(err)
	}

	kratosLogger := pkglog.NewKratosAdapter(zapLogger)
	helper := pkglog.NewLogHelper(kratosLogger)

	println("=== log output format check ===\n")

	helper.Startup("AeroSentry service starting", "version", "1.0.0", "port", 8080)
	helper.API("Processing API request", "endpoint", "/v1/flights/AA123/status", "method", "GET")
	helper.Auth("Request authenticated successfully", "api_key_masked", "sk-12345***", "duration_ms", 2)
	helper.Request("GET", "/v1/flights/AA123/status", 200, 42, "ip", "192.168.1.100", "user_agent", "curl/8.5.0")
	helper.Database("Query executed successfully", "table", "bookings", "duration_ms", 5)
	helper.Redis("Cache hit", "key", "flight_status:AA123:20260901", "ttl", 300)
	helper.Provider("Flight status fetched", "provider", "FlightAware", "flight", "AA123", "duration_ms", 120)
	helper.Failover("Provider failed, trying next", "failed", "FlightAware", "next", "MockProvider")
	helper.Breaker("Circuit breaker opened", "provider", "FlightAware", "failures", 5)
	helper.Monitor("Booking sweep started", "bookings", 42, "window_hours", 48)
	helper.Health("Health check passed", "provider", "MockProvider")
	helper.Disruption("Disruption detected", "flight", "UA456", "type", "DELAYED", "delay_minutes", 45)
	helper.Compensation("Rule matched", "rule", "SEVERE_DELAY_6H", "amount", 300.0)
	helper.Wallet("Compensation credited", "user_id", 7, "amount", 300.0, "reference", "comp:evt-123")
	helper.Booking("Booking imported", "pnr", "ABC123", "flight", "AA123")
	helper.Scheduler("Sweep job scheduled", "schedule", "0 */5 * * * *")
	helper.Performance("Batch lookup completed", "flights", 10, "duration_ms", 250)
	helper.Audit("Provider breaker reset", "admin", "ops", "provider", "FlightAware")
	helper.Security("Rejected request with invalid API key", "ip", "10.0.0.1")
	helper.RateLimit("Provider budget exhausted", "provider", "FlightAware", "limit", 60, "current", 63)
	helper.Success("Request completed successfully", "request_id", "req-789")

	helper.AuthWithDuration("ops", "e076810a-6651-4b08-8b6c-649658e61396", 2)
	helper.SweepCompleted(42, 3, 1840)
	helper.FetchCompleted(context.Background(), "FlightAware", "AA123", 120, 0.95)

	println("\n=== log output complete ===")
}
