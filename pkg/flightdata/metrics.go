package flightdata

import (
	"sync"
	"time"
)

// MetricsSnapshot is a point-in-time copy of one provider's metrics.
type MetricsSnapshot struct {
	SuccessRate         float64       `json:"success_rate"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	LastSuccessfulCall  *time.Time    `json:"last_successful_call,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
	TotalRequests       int64         `json:"total_requests"`
	FailedRequests      int64         `json:"failed_requests"`
	RateLimitHits       int64         `json:"rate_limit_hits"`
}

// MetricsRecorder tracks request outcomes for one provider. Every provider
// instance owns exactly one recorder.
type MetricsRecorder struct {
	mu sync.Mutex

	totalRequests   int64
	failedRequests  int64
	rateLimitHits   int64
	successRate     float64
	avgResponseTime time.Duration
	lastSuccess     time.Time
	lastError       string
}

// NewMetricsRecorder returns an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordSuccess counts a successful request and folds its response time into
// the rolling average (90% history, 10% new sample).
func (m *MetricsRecorder) RecordSuccess(responseTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.lastSuccess = time.Now().UTC()
	if m.totalRequests == 1 {
		m.avgResponseTime = responseTime
	} else {
		m.avgResponseTime = time.Duration(float64(m.avgResponseTime)*0.9 + float64(responseTime)*0.1)
	}
	m.recalcSuccessRate()
}

// RecordFailure counts a failed request and remembers the error message.
func (m *MetricsRecorder) RecordFailure(errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.failedRequests++
	m.lastError = errMsg
	m.recalcSuccessRate()
}

// RecordRateLimitHit counts a rate limit response. Rate limit hits are
// tracked separately and do not count toward the request totals.
func (m *MetricsRecorder) RecordRateLimitHit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimitHits++
}

// SetLastError records an error message without counting a request, used for
// status changes that happen outside the request path.
func (m *MetricsRecorder) SetLastError(errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = errMsg
}

// Reset clears all recorded metrics.
func (m *MetricsRecorder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests = 0
	m.failedRequests = 0
	m.rateLimitHits = 0
	m.successRate = 0
	m.avgResponseTime = 0
	m.lastSuccess = time.Time{}
	m.lastError = ""
}

// Snapshot returns a copy of the current metrics.
func (m *MetricsRecorder) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		SuccessRate:         m.successRate,
		AverageResponseTime: m.avgResponseTime,
		LastError:           m.lastError,
		TotalRequests:       m.totalRequests,
		FailedRequests:      m.failedRequests,
		RateLimitHits:       m.rateLimitHits,
	}
	if !m.lastSuccess.IsZero() {
		t := m.lastSuccess
		snap.LastSuccessfulCall = &t
	}
	return snap
}

func (m *MetricsRecorder) recalcSuccessRate() {
	if m.totalRequests == 0 {
		m.successRate = 0
		return
	}
	m.successRate = float64(m.totalRequests-m.failedRequests) / float64(m.totalRequests)
}
