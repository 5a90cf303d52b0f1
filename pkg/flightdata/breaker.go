package flightdata

import (
	"sync"
	"time"
)

// BreakerSnapshot is a point-in-time copy of one circuit breaker's state.
type BreakerSnapshot struct {
	IsOpen       bool       `json:"is_open"`
	FailureCount int        `json:"failure_count"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
}

// CircuitBreaker guards one provider against repeated failures. It opens
// after threshold consecutive failures and stays open until cooldown has
// elapsed since the last failure. The first Allow call after the cooldown
// closes the breaker again and lets the request through as a half-open probe.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failureCount int
	open         bool
	lastFailure  time.Time
	lastSuccess  time.Time

	now func() time.Time
}

// NewCircuitBreaker returns a closed breaker that opens after threshold
// consecutive failures and allows a retry once cooldown has elapsed.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a request may be sent. When an open breaker's
// cooldown has elapsed, Allow closes it, resets the failure counter and
// returns true so the caller can probe the provider again.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if !b.lastFailure.IsZero() && b.now().Sub(b.lastFailure) > b.cooldown {
		b.open = false
		b.failureCount = 0
		return true
	}
	return false
}

// RecordFailure counts one failure and returns true when this failure opened
// the breaker.
func (b *CircuitBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = b.now()
	if b.failureCount >= b.threshold && !b.open {
		b.open = true
		return true
	}
	return false
}

// RecordSuccess resets the failure counter and closes the breaker. It returns
// true when the breaker was open, meaning the provider just recovered.
func (b *CircuitBreaker) RecordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasOpen := b.open
	b.failureCount = 0
	b.lastSuccess = b.now()
	b.open = false
	return wasOpen
}

// Reset closes the breaker and clears the failure counter without touching
// the success and failure timestamps.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.open = false
	b.failureCount = 0
}

// Snapshot returns a copy of the breaker state.
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := BreakerSnapshot{
		IsOpen:       b.open,
		FailureCount: b.failureCount,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		snap.LastFailure = &t
	}
	if !b.lastSuccess.IsZero() {
		t := b.lastSuccess
		snap.LastSuccess = &t
	}
	return snap
}
