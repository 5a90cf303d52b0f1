package log

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// LogHelper extends the Kratos log.Helper with typed convenience methods.
// Each method attaches a "type" field that drives the EmojiConsoleEncoder
// emoji mapping.
type LogHelper struct {
	*log.Helper
}

// NewLogHelper creates an enhanced log helper
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{
		Helper: log.NewHelper(logger),
	}
}

// API logs API related messages (emoji: 🔗)
func (h *LogHelper) API(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "api")
	h.Infow(allKvs...)
}

// Auth logs authentication related messages (emoji: 🔓)
func (h *LogHelper) Auth(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "auth")
	h.Infow(allKvs...)
}

// Request logs HTTP request messages (emoji: 🌐 or status based)
func (h *LogHelper) Request(method, url string, status int, durationMs int64, kvs ...interface{}) {
	msg := fmt.Sprintf("%s %s - %d (%dms)", method, url, status, durationMs)
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs,
		"type", "request",
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", durationMs,
	)
	h.Infow(allKvs...)
}

// RateLimit logs rate limiting messages (emoji: 🚦)
func (h *LogHelper) RateLimit(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "rate_limit")
	h.Warnw(allKvs...)
}

// Success logs successful operations (emoji: ✅)
func (h *LogHelper) Success(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "success")
	h.Infow(allKvs...)
}

// Database logs database operations (emoji: 💾)
func (h *LogHelper) Database(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "database")
	h.Debugw(allKvs...)
}

// Redis logs Redis operations (emoji: 📦)
func (h *LogHelper) Redis(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "redis")
	h.Debugw(allKvs...)
}

// Provider logs flight data provider calls (emoji: ✈️)
func (h *LogHelper) Provider(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "provider")
	h.Infow(allKvs...)
}

// Failover logs provider failover events (emoji: 🔀)
func (h *LogHelper) Failover(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "failover")
	h.Warnw(allKvs...)
}

// Breaker logs circuit breaker transitions (emoji: ⚡)
func (h *LogHelper) Breaker(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "breaker")
	h.Warnw(allKvs...)
}

// Monitor logs disruption monitor activity (emoji: 📡)
func (h *LogHelper) Monitor(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "monitor")
	h.Infow(allKvs...)
}

// Health logs provider health checks (emoji: 🩺)
func (h *LogHelper) Health(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "health")
	h.Infow(allKvs...)
}

// Disruption logs detected flight disruptions (emoji: 🚨)
func (h *LogHelper) Disruption(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "disruption")
	h.Warnw(allKvs...)
}

// Compensation logs compensation calculations (emoji: 💰)
func (h *LogHelper) Compensation(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "compensation")
	h.Infow(allKvs...)
}

// Wallet logs wallet credit operations (emoji: 👛)
func (h *LogHelper) Wallet(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "wallet")
	h.Infow(allKvs...)
}

// Booking logs booking import and lookup (emoji: 🎫)
func (h *LogHelper) Booking(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "booking")
	h.Infow(allKvs...)
}

// Scheduler logs scheduler activity (emoji: 🎯)
func (h *LogHelper) Scheduler(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "scheduler")
	h.Infow(allKvs...)
}

// Startup logs startup messages (emoji: 🚀)
func (h *LogHelper) Startup(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "startup")
	h.Infow(allKvs...)
}

// Performance logs performance measurements (emoji: ⏱️)
func (h *LogHelper) Performance(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "performance")
	h.Infow(allKvs...)
}

// Audit logs audit trail entries (emoji: 📋)
func (h *LogHelper) Audit(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "audit")
	h.Infow(allKvs...)
}

// Security logs security events (emoji: 🔒)
func (h *LogHelper) Security(msg string, kvs ...interface{}) {
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "type", "security")
	h.Warnw(allKvs...)
}

// AuthWithDuration logs an authenticated request with its duration (convenience method)
func (h *LogHelper) AuthWithDuration(keyName, keyID string, durationMs int64, kvs ...interface{}) {
	msg := fmt.Sprintf("Authenticated request from key: %s (%s) in %dms", keyName, keyID, durationMs)
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs, "key_name", keyName, "key_id", keyID, "duration_ms", durationMs, "type", "auth")
	h.Infow(allKvs...)
}

// SweepCompleted logs a finished monitor sweep (convenience method)
func (h *LogHelper) SweepCompleted(checked, disrupted int, durationMs int64, kvs ...interface{}) {
	msg := fmt.Sprintf("Monitor sweep completed - Checked: %d flights, Disruptions: %d (%s)",
		checked, disrupted, formatDuration(durationMs))
	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs,
		"flights_checked", checked,
		"disruptions_found", disrupted,
		"duration_ms", durationMs,
		"type", "monitor",
	)
	h.Infow(allKvs...)
}

// ========== Context-aware methods ==========
// These methods extract tracing information (request ID, key name, user ID)
// from the Context automatically.

// FetchCompleted logs a completed provider fetch with its outcome (emoji: ✈️).
// Extracts the request ID from the Context.
func (h *LogHelper) FetchCompleted(ctx context.Context, provider, flightNumber string, durationMs int64, confidence float64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("[%s] Flight data fetched - Provider: %s, Flight: %s (%s, confidence %.2f)",
		reqCtx.RequestID, provider, flightNumber, formatDuration(durationMs), confidence)

	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs,
		"request_id", reqCtx.RequestID,
		"provider", provider,
		"flight_number", flightNumber,
		"duration_ms", durationMs,
		"confidence", confidence,
		"type", "provider",
	)
	h.Infow(allKvs...)
}

// SlowRequest logs a slow request warning (emoji: 🐌).
// threshold: the slow request threshold in milliseconds.
func (h *LogHelper) SlowRequest(ctx context.Context, method, url string, duration, threshold int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("[%s] Slow request detected | %s %s | %dms (threshold: %dms)",
		reqCtx.RequestID, method, url, duration, threshold)

	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs,
		"request_id", reqCtx.RequestID,
		"key_name", reqCtx.KeyName,
		"method", method,
		"url", url,
		"duration_ms", duration,
		"threshold_ms", threshold,
		"type", "slow_request",
	)
	h.Warnw(allKvs...)
}

// RequestWithContext logs an HTTP request with Context tracing.
// Extracts the request ID from the Context and flags slow requests.
func (h *LogHelper) RequestWithContext(ctx context.Context, method, url string, status int, durationMs int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("%s %s - %d (%dms) | RequestID: %s",
		method, url, status, durationMs, reqCtx.RequestID)

	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs,
		"type", "request",
		"request_id", reqCtx.RequestID,
		"key_name", reqCtx.KeyName,
		"user_id", reqCtx.UserID,
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", durationMs,
	)
	h.Infow(allKvs...)

	// Flag slow requests automatically (1000ms threshold)
	if durationMs > 1000 {
		h.SlowRequest(ctx, method, url, durationMs, 1000)
	}
}

// CacheStats logs cache statistics (emoji: 🧹)
func (h *LogHelper) CacheStats(ctx context.Context, cacheName string, size, maxSize, hits, misses, evictions int64, kvs ...interface{}) {
	var hitRate float64
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	msg := fmt.Sprintf("Cache stats - %s | Size: %d/%d, Hit Rate: %.2f%%, Evictions: %d",
		cacheName, size, maxSize, hitRate, evictions)

	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs,
		"cache_name", cacheName,
		"size", size,
		"max_size", maxSize,
		"hits", hits,
		"misses", misses,
		"evictions", evictions,
		"hit_rate", fmt.Sprintf("%.2f%%", hitRate),
		"total_requests", total,
		"type", "cache_stats",
	)
	h.Infow(allKvs...)
}

// ErrorCount logs an error counter (emoji: ⚠️)
func (h *LogHelper) ErrorCount(ctx context.Context, errorType string, count int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("[%s] Error count - Type: %s, Count: %d",
		reqCtx.RequestID, errorType, count)

	allKvs := append([]interface{}{"msg", msg}, kvs...)
	allKvs = append(allKvs,
		"request_id", reqCtx.RequestID,
		"user_id", reqCtx.UserID,
		"error_type", errorType,
		"count", count,
		"type", "error_count",
	)
	h.Warnw(allKvs...)
}

// APIWithContext logs an API message with Context tracing
func (h *LogHelper) APIWithContext(ctx context.Context, msg string, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	fullMsg := fmt.Sprintf("[%s] %s", reqCtx.RequestID, msg)

	allKvs := append([]interface{}{"msg", fullMsg}, kvs...)
	allKvs = append(allKvs,
		"request_id", reqCtx.RequestID,
		"key_name", reqCtx.KeyName,
		"type", "api",
	)
	h.Infow(allKvs...)
}
