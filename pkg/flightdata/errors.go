package flightdata

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError is the generic failure reported by a provider. The failover
// manager does not retry the same provider after a ProviderError; it records
// the failure and moves on to the next source.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimitError signals that the provider rejected the request because of
// rate limiting. RetryAfter carries the provider's hint for when requests may
// resume. The failover manager never retries a rate limited provider within
// the same lookup.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded, retry after %s", e.Provider, e.RetryAfter)
}

// TimeoutError signals that a provider request exceeded its deadline.
// Timeouts are the only failures retried against the same provider, with
// exponential backoff between attempts.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out after %s", e.Provider, e.Timeout)
}

// AuthenticationError signals rejected credentials. It is persistent until
// the credentials change, so the provider marks itself unavailable.
type AuthenticationError struct {
	Provider string
	Message  string
}

func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "authentication failed"
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

// IsRateLimit reports whether err is or wraps a RateLimitError.
func IsRateLimit(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// IsAuthentication reports whether err is or wraps an AuthenticationError.
func IsAuthentication(err error) bool {
	var e *AuthenticationError
	return errors.As(err, &e)
}

// RetryAfter extracts the retry-after hint from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var e *RateLimitError
	if errors.As(err, &e) {
		return e.RetryAfter, true
	}
	return 0, false
}
