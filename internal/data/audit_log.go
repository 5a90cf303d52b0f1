package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// AuditLog is the GORM model for provider_audit_logs table
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Provider  string    `gorm:"column:provider;size:50;not null;index"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null"`
	Details   string    `gorm:"column:details;type:json"` // JSON string
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "provider_audit_logs"
}

// AuditLoggerImpl implements biz.AuditLogger interface
type AuditLoggerImpl struct {
	db      *gorm.DB
	logChan chan *AuditLog
	logger  *log.Helper
}

// NewAuditLogger creates a new audit logger with async channel
func NewAuditLogger(db *gorm.DB, logger log.Logger) *AuditLoggerImpl {
	al := &AuditLoggerImpl{
		db:      db,
		logChan: make(chan *AuditLog, 1000), // Buffer size 1000 to prevent blocking
		logger:  log.NewHelper(logger),
	}

	// Start background goroutine for async logging
	go al.start()

	return al
}

// start processes audit log events from channel
func (a *AuditLoggerImpl) start() {
	for event := range a.logChan {
		ctx := context.Background()
		if err := a.db.WithContext(ctx).Create(event).Error; err != nil {
			a.logger.Errorw("failed to write audit log",
				"provider", event.Provider,
				"event_type", event.EventType,
				"error", err)
		} else {
			a.logger.Debugw("audit log written",
				"provider", event.Provider,
				"event_type", event.EventType)
		}
	}
}

// enqueue sends an event to the writer goroutine without blocking the caller.
func (a *AuditLoggerImpl) enqueue(event *AuditLog) {
	select {
	case a.logChan <- event:
		// Successfully queued
	default:
		a.logger.Warnw("audit log channel full, dropping event",
			"provider", event.Provider,
			"event_type", event.EventType)
	}
}

func (a *AuditLoggerImpl) log(provider string, eventType AuditEventType, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return
	}

	a.enqueue(&AuditLog{
		Provider:  provider,
		EventType: eventType.String(),
		Details:   string(detailsJSON),
	})
}

// LogCircuitOpened logs a circuit breaker trip for a provider
func (a *AuditLoggerImpl) LogCircuitOpened(ctx context.Context, provider string, failureCount int, lastError string, openedAt time.Time) {
	a.log(provider, AuditEventCircuitOpened, map[string]interface{}{
		"failure_count": failureCount,
		"last_error":    lastError,
		"opened_at":     openedAt.Format(time.RFC3339),
	})
}

// LogCircuitClosed logs a circuit breaker closing for a provider
func (a *AuditLoggerImpl) LogCircuitClosed(ctx context.Context, provider string, closedAt time.Time) {
	a.log(provider, AuditEventCircuitClosed, map[string]interface{}{
		"closed_at": closedAt.Format(time.RFC3339),
	})
}

// LogProviderDegraded logs a provider entering DEGRADED status
func (a *AuditLoggerImpl) LogProviderDegraded(ctx context.Context, provider string, reason string) {
	a.log(provider, AuditEventProviderDegraded, map[string]interface{}{
		"reason": reason,
	})
}

// LogProviderRecovered logs a provider returning to ACTIVE status
func (a *AuditLoggerImpl) LogProviderRecovered(ctx context.Context, provider string) {
	a.log(provider, AuditEventProviderRecovered, nil)
}

// LogHealthCheckFailed logs a failed provider health probe
func (a *AuditLoggerImpl) LogHealthCheckFailed(ctx context.Context, provider string, probeErr string) {
	a.log(provider, AuditEventHealthCheckFailed, map[string]interface{}{
		"error": probeErr,
	})
}

// LogAllProvidersFailed logs a lookup that exhausted every provider
func (a *AuditLoggerImpl) LogAllProvidersFailed(ctx context.Context, flightNumber string, attempted int) {
	a.log("all", AuditEventAllProvidersFailed, map[string]interface{}{
		"flight_number": flightNumber,
		"attempted":     attempted,
	})
}
