package data

import (
	"context"

	"AeroSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// LogAlertService delivers alerts as structured log events. It is the seam
// where an SMTP or webhook sender would plug in.
type LogAlertService struct {
	logger *log.Helper
}

// NewLogAlertService creates a new log-backed alert service
func NewLogAlertService(logger log.Logger) *LogAlertService {
	return &LogAlertService{
		logger: log.NewHelper(logger),
	}
}

// NotifyDisruption logs a detected flight disruption for a monitored booking
func (s *LogAlertService) NotifyDisruption(ctx context.Context, alert *model.DisruptionAlert) error {
	s.logger.Infow("disruption alert",
		"event_id", alert.EventID,
		"booking_id", alert.BookingID,
		"user_id", alert.UserID,
		"flight_number", alert.FlightNumber,
		"disruption_type", alert.DisruptionType,
		"delay_minutes", alert.DelayMinutes,
		"detected_at", alert.DetectedAt)
	return nil
}

// NotifyCircuitOpened logs a provider circuit breaker trip
func (s *LogAlertService) NotifyCircuitOpened(ctx context.Context, event *model.BreakerOpenedEvent) error {
	s.logger.Warnw("provider circuit opened",
		"provider", event.Provider,
		"failure_count", event.FailureCount,
		"last_error", event.LastError,
		"opened_at", event.OpenedAt)
	return nil
}

// NotifyCircuitClosed logs a provider circuit breaker recovery
func (s *LogAlertService) NotifyCircuitClosed(ctx context.Context, event *model.BreakerClosedEvent) error {
	s.logger.Infow("provider circuit closed",
		"provider", event.Provider,
		"closed_at", event.ClosedAt)
	return nil
}
