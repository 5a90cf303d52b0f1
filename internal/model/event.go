package model

import "time"

// BreakerOpenedEvent describes a provider circuit breaker tripping open.
type BreakerOpenedEvent struct {
	Provider     string
	FailureCount int
	LastError    string
	OpenedAt     time.Time
}

// BreakerClosedEvent describes a provider circuit breaker closing again,
// either through a successful call or a healthy health check probe.
type BreakerClosedEvent struct {
	Provider string
	ClosedAt time.Time
}

// DisruptionAlert describes a newly detected flight disruption for a
// monitored booking.
type DisruptionAlert struct {
	EventID        string
	BookingID      int64
	UserID         int64
	FlightNumber   string
	DisruptionType string
	DelayMinutes   int
	DetectedAt     time.Time
}
