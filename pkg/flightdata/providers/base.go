// Package providers contains the concrete flight data sources wired into the
// failover manager: the FlightAware AeroAPI client and a mock source for
// development and tests.
package providers

import (
	"sync"
	"time"

	"AeroSentry/pkg/flightdata"
	pkglog "AeroSentry/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

// BaseProvider carries the identity, status and metrics shared by every
// provider implementation. Each instance owns its metrics recorder.
type BaseProvider struct {
	name     string
	priority int
	timeout  time.Duration
	log      *pkglog.LogHelper
	metrics  *flightdata.MetricsRecorder

	mu     sync.Mutex
	status flightdata.ProviderStatus
}

// NewBaseProvider builds the shared provider core. New providers start in
// the available state.
func NewBaseProvider(name string, priority int, timeout time.Duration, logger log.Logger) *BaseProvider {
	return &BaseProvider{
		name:     name,
		priority: priority,
		timeout:  timeout,
		log:      pkglog.NewLogHelper(logger),
		metrics:  flightdata.NewMetricsRecorder(),
		status:   flightdata.StatusAvailable,
	}
}

// Name returns the provider name.
func (b *BaseProvider) Name() string { return b.name }

// Priority returns the failover priority; higher is tried first.
func (b *BaseProvider) Priority() int { return b.priority }

// Timeout returns the per-request timeout.
func (b *BaseProvider) Timeout() time.Duration { return b.timeout }

// Status returns the provider's current availability.
func (b *BaseProvider) Status() flightdata.ProviderStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// SetStatus updates availability. A non-empty reason for a non-available
// status is remembered as the provider's last error.
func (b *BaseProvider) SetStatus(status flightdata.ProviderStatus, reason string) {
	b.mu.Lock()
	b.status = status
	b.mu.Unlock()

	if reason != "" && status != flightdata.StatusAvailable {
		b.metrics.SetLastError(reason)
	}
}

// Available reports whether the provider is in the available state.
func (b *BaseProvider) Available() bool {
	return b.Status() == flightdata.StatusAvailable
}

// Metrics returns a point-in-time copy of the provider metrics.
func (b *BaseProvider) Metrics() flightdata.MetricsSnapshot {
	return b.metrics.Snapshot()
}

// ResetMetrics clears the provider metrics, used by tests and the mock
// provider's scenario tooling.
func (b *BaseProvider) ResetMetrics() {
	b.metrics.Reset()
}
