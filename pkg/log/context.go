package log

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// contextKey is the private key type for storing RequestContext
type contextKey string

const requestContextKey contextKey = "aerosentry_request_context"

// RequestContext carries request tracing information.
// It travels through Context so every layer of a request can log
// with the same identifiers.
type RequestContext struct {
	RequestID string                 // unique request ID (10 chars, e.g. mgrn0zfqda)
	KeyName   string                 // API key name
	KeyID     string                 // API key ID
	UserID    string                 // user ID
	StartTime time.Time              // request start time
	Metadata  map[string]interface{} // extension metadata
}

var (
	randSource = rand.NewSource(time.Now().UnixNano())
	randMutex  sync.Mutex
	// base36 alphabet (lowercase letters + digits)
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateRequestID generates a 10 character random request ID.
// Format: lowercase letters and digits, e.g. mgrn0zfqda.
// base36 keeps it short and avoids the cost of a full UUID.
func GenerateRequestID() string {
	randMutex.Lock()
	defer randMutex.Unlock()

	b := make([]byte, 10)
	for i := range b {
		b[i] = base36Chars[randSource.Int63()%36]
	}
	return string(b)
}

// WithRequestContext injects a RequestContext into the Context.
// Usually called from middleware so the whole request lifecycle shares
// the same tracing identifiers.
func WithRequestContext(ctx context.Context, requestID, keyName, keyID, userID string) context.Context {
	reqCtx := &RequestContext{
		RequestID: requestID,
		KeyName:   keyName,
		KeyID:     keyID,
		UserID:    userID,
		StartTime: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
	return context.WithValue(ctx, requestContextKey, reqCtx)
}

// GetRequestContext extracts the RequestContext from a Context.
// Returns a default empty RequestContext when none is present.
func GetRequestContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return &RequestContext{
			RequestID: "unknown",
			Metadata:  make(map[string]interface{}),
		}
	}

	if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
		return reqCtx
	}

	// Default value, saves callers a nil check
	return &RequestContext{
		RequestID: "unknown",
		Metadata:  make(map[string]interface{}),
	}
}

// GetRequestID extracts the request ID from a Context.
// Convenience method so callers do not handle the RequestContext struct.
func GetRequestID(ctx context.Context) string {
	return GetRequestContext(ctx).RequestID
}

// GetKeyName extracts the API key name from a Context
func GetKeyName(ctx context.Context) string {
	return GetRequestContext(ctx).KeyName
}

// GetUserID extracts the user ID from a Context
func GetUserID(ctx context.Context) string {
	return GetRequestContext(ctx).UserID
}

// SetMetadata sets a metadata entry on the RequestContext.
// Used to attach extra tracing information while a request is handled.
func SetMetadata(ctx context.Context, key string, value interface{}) {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.Metadata == nil {
		reqCtx.Metadata = make(map[string]interface{})
	}
	reqCtx.Metadata[key] = value
}

// GetMetadata reads a metadata entry from the RequestContext
func GetMetadata(ctx context.Context, key string) (interface{}, bool) {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.Metadata == nil {
		return nil, false
	}
	value, ok := reqCtx.Metadata[key]
	return value, ok
}

// GetElapsedTime returns the elapsed request time in milliseconds
func GetElapsedTime(ctx context.Context) int64 {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.StartTime.IsZero() {
		return 0
	}
	return time.Since(reqCtx.StartTime).Milliseconds()
}
