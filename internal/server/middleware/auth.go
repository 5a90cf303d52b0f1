// Package middleware provides HTTP middleware for authentication and
// request logging.
package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkglog "AeroSentry/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// apiKeyContextKey is the context key for storing the API key
	apiKeyContextKey contextKey = "api_key"
	// apiKeyMaskedContextKey is the context key for storing the masked API key
	apiKeyMaskedContextKey contextKey = "api_key_masked"
)

// ErrUnauthorized is returned when the request carries a missing or
// wrong API key.
var ErrUnauthorized = errors.Unauthorized("UNAUTHORIZED", "missing or invalid API key")

// Auth returns an HTTP middleware that enforces the configured API key.
//
// The key is accepted either as "Authorization: Bearer {key}" or in the
// X-API-Key header. An empty configured key disables enforcement, and
// health probes are always let through.
//
// Example log output:
//
//	🔗 🔓 Authenticated request (sk-12345***) in 2ms | {"type":"auth","api_key_masked":"...","duration_ms":2}
//	🔗    User-Agent: "curl/8.5.0" | {"type":"api","user_agent":"..."}
func Auth(apiKey string, logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				presented string
				userAgent string
				path      string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					path = httpReq.URL.Path

					authHeader := httpReq.Header.Get("Authorization")
					if authHeader != "" {
						presented = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
					}
					if presented == "" {
						presented = httpReq.Header.Get("X-API-Key")
					}

					userAgent = httpReq.Header.Get("User-Agent")
				}
			}

			if apiKey != "" && !isPublicPath(path) {
				if presented != apiKey {
					logger.Auth(
						"Rejected request with invalid API key ("+maskAPIKey(presented)+")",
						"api_key_masked", maskAPIKey(presented),
						"path", path,
					)
					return nil, ErrUnauthorized
				}

				authDuration := time.Since(startTime).Milliseconds()
				maskedKey := maskAPIKey(presented)

				logger.Auth(
					"Authenticated request ("+maskedKey+") in "+formatDuration(authDuration),
					"api_key_masked", maskedKey,
					"duration_ms", authDuration,
				)
				if userAgent != "" {
					logger.API(
						"   User-Agent: \""+userAgent+"\"",
						"user_agent", userAgent,
					)
				}

				ctx = context.WithValue(ctx, apiKeyContextKey, presented)
				ctx = context.WithValue(ctx, apiKeyMaskedContextKey, maskedKey)

				// Reuse the request context if the logging middleware
				// already created one.
				reqCtx := pkglog.GetRequestContext(ctx)
				if reqCtx.RequestID != "unknown" {
					pkglog.SetMetadata(ctx, "api_key_masked", maskedKey)
				}
			}

			return handler(ctx, req)
		}
	}
}

// isPublicPath reports whether a path is exempt from authentication.
func isPublicPath(path string) bool {
	return path == "/healthz" || path == "/metrics"
}

// maskAPIKey hides all but the first 8 characters of a key.
// Example: "sk-1234567890abcdef" -> "sk-12345***"
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "***"
}

// formatDuration renders a millisecond count as 5ms, 150ms or 2.5s.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.1fs", seconds)
}
