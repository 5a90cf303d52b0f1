package flightdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test breaker stays closed below the failure threshold
func TestCircuitBreaker_ClosedBelowThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute)

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.Allow())

	snap := b.Snapshot()
	assert.False(t, snap.IsOpen)
	assert.Equal(t, 2, snap.FailureCount)
}

// Test breaker opens exactly at the threshold
func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute)

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.RecordFailure(), "third failure should open the breaker")

	assert.False(t, b.Allow())
	assert.True(t, b.Snapshot().IsOpen)
}

// Test an open breaker allows a probe once the cooldown has elapsed
func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker(1, 5*time.Minute)

	current := time.Now()
	b.now = func() time.Time { return current }

	require.True(t, b.RecordFailure())
	assert.False(t, b.Allow())

	// Just inside the cooldown: still blocked.
	current = current.Add(5 * time.Minute)
	assert.False(t, b.Allow())

	// Past the cooldown: the next call goes through as a probe and the
	// breaker closes.
	current = current.Add(time.Second)
	assert.True(t, b.Allow())

	snap := b.Snapshot()
	assert.False(t, snap.IsOpen)
	assert.Equal(t, 0, snap.FailureCount)
}

// Test a single success resets the failure counter and closes the breaker
func TestCircuitBreaker_SuccessResets(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute)

	require.False(t, b.RecordFailure())
	require.True(t, b.RecordFailure())
	require.True(t, b.Snapshot().IsOpen)

	recovered := b.RecordSuccess()
	assert.True(t, recovered, "success on an open breaker reports recovery")

	snap := b.Snapshot()
	assert.False(t, snap.IsOpen)
	assert.Equal(t, 0, snap.FailureCount)
	require.NotNil(t, snap.LastSuccess)
}

// Test success on a closed breaker does not report a recovery
func TestCircuitBreaker_SuccessOnClosedBreaker(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute)

	b.RecordFailure()
	assert.False(t, b.RecordSuccess())
	assert.Equal(t, 0, b.Snapshot().FailureCount)
}

// Test Reset closes the breaker but keeps the timestamps
func TestCircuitBreaker_Reset(t *testing.T) {
	b := NewCircuitBreaker(1, time.Minute)

	require.True(t, b.RecordFailure())
	b.Reset()

	snap := b.Snapshot()
	assert.False(t, snap.IsOpen)
	assert.Equal(t, 0, snap.FailureCount)
	assert.NotNil(t, snap.LastFailure, "reset keeps the failure timestamp")
}
