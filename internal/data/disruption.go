package data

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompensationStatus represents the database ENUM type for event compensation state.
type CompensationStatus string

// Compensation status constants.
const (
	CompensationPending    CompensationStatus = "PENDING"
	CompensationPaid       CompensationStatus = "PAID"
	CompensationIneligible CompensationStatus = "INELIGIBLE"
)

// DisruptionEvent is the GORM model for disruption_events table.
type DisruptionEvent struct {
	ID                 int64              `gorm:"primaryKey;column:id"`
	EventID            string             `gorm:"column:event_id;size:40;uniqueIndex;not null"`
	BookingID          int64              `gorm:"column:booking_id;not null;index"`
	Type               string             `gorm:"column:type;size:20;not null"`
	DelayMinutes       int                `gorm:"column:delay_minutes;default:0;not null"`
	OriginalDeparture  *time.Time         `gorm:"column:original_departure"`
	NewDeparture       *time.Time         `gorm:"column:new_departure"`
	CompensationStatus CompensationStatus `gorm:"column:compensation_status;type:enum('PENDING','PAID','INELIGIBLE');default:'PENDING';not null"`
	UserNotified       bool               `gorm:"column:user_notified;default:false;not null"`
	DetectedAt         time.Time          `gorm:"column:detected_at;not null"`
	ResolvedAt         *time.Time         `gorm:"column:resolved_at"`
	Raw                *string            `gorm:"column:raw;type:json"` // provider status snapshot (pointer for NULL support)
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (DisruptionEvent) TableName() string {
	return "disruption_events"
}

// Scan implements sql.Scanner interface for CompensationStatus.
func (s *CompensationStatus) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = CompensationStatus(v)
	case string:
		*s = CompensationStatus(v)
	default:
		return fmt.Errorf("cannot scan type %T into CompensationStatus", value)
	}
	return nil
}

// Value implements driver.Valuer interface for CompensationStatus.
func (s CompensationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// NewEventID generates a disruption event identifier.
func NewEventID() string {
	return "evt_" + uuid.NewString()
}

// DisruptionRepo implements biz.DisruptionRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
type DisruptionRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewDisruptionRepo creates a new disruption event repository.
func NewDisruptionRepo(db *gorm.DB, logger log.Logger) *DisruptionRepo {
	return &DisruptionRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// CreateEvent persists a disruption event. At most one unresolved event per
// (booking, type) exists: when one is already open the existing row is
// returned with created=false so repeated sweeps do not duplicate alerts.
func (r *DisruptionRepo) CreateEvent(ctx context.Context, event *DisruptionEvent) (created bool, err error) {
	var existing DisruptionEvent
	findErr := r.db.WithContext(ctx).
		Where("booking_id = ? AND type = ?", event.BookingID, event.Type).
		Where("resolved_at IS NULL").
		First(&existing).Error
	if findErr == nil {
		*event = existing
		r.logger.Debugw("disruption event already open",
			"event_id", existing.EventID,
			"booking_id", existing.BookingID,
			"type", existing.Type)
		return false, nil
	}
	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to check open disruption events: %w", findErr)
	}

	if event.EventID == "" {
		event.EventID = NewEventID()
	}
	if event.DetectedAt.IsZero() {
		event.DetectedAt = time.Now()
	}
	if event.CompensationStatus == "" {
		event.CompensationStatus = CompensationPending
	}

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.logger.Errorw("failed to create disruption event",
			"booking_id", event.BookingID,
			"type", event.Type,
			"error", err)
		return false, fmt.Errorf("failed to create disruption event: %w", err)
	}

	r.logger.Infow("disruption event created",
		"event_id", event.EventID,
		"booking_id", event.BookingID,
		"type", event.Type,
		"delay_minutes", event.DelayMinutes)
	return true, nil
}

// GetEvent retrieves a disruption event by its public event ID.
func (r *DisruptionRepo) GetEvent(ctx context.Context, eventID string) (*DisruptionEvent, error) {
	var event DisruptionEvent
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("disruption event not found: event_id=%s", eventID)
		}
		r.logger.Errorf("failed to get disruption event: %v", err)
		return nil, fmt.Errorf("failed to get disruption event: %w", err)
	}
	return &event, nil
}

// ListOpenEvents returns unresolved events, oldest first.
func (r *DisruptionRepo) ListOpenEvents(ctx context.Context) ([]*DisruptionEvent, error) {
	var events []*DisruptionEvent
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("detected_at ASC").
		Find(&events).Error
	if err != nil {
		r.logger.Errorf("failed to list open disruption events: %v", err)
		return nil, fmt.Errorf("failed to list open disruption events: %w", err)
	}
	return events, nil
}

// UpdateCompensationStatus moves an event through the compensation lifecycle.
func (r *DisruptionRepo) UpdateCompensationStatus(ctx context.Context, eventID string, status CompensationStatus) error {
	result := r.db.WithContext(ctx).
		Model(&DisruptionEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"compensation_status": status,
			"updated_at":          time.Now(),
		})

	if result.Error != nil {
		r.logger.Errorf("failed to update compensation status: %v", result.Error)
		return fmt.Errorf("failed to update compensation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("disruption event not found: event_id=%s", eventID)
	}

	r.logger.Infow("compensation status updated", "event_id", eventID, "status", status)
	return nil
}

// MarkNotified flags an event as having produced a user alert.
func (r *DisruptionRepo) MarkNotified(ctx context.Context, eventID string) error {
	result := r.db.WithContext(ctx).
		Model(&DisruptionEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"user_notified": true,
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark event notified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("disruption event not found: event_id=%s", eventID)
	}
	return nil
}

// ResolveEvent closes an event, ending its booking+type dedupe window.
func (r *DisruptionRepo) ResolveEvent(ctx context.Context, eventID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&DisruptionEvent{}).
		Where("event_id = ?", eventID).
		Where("resolved_at IS NULL").
		Updates(map[string]interface{}{
			"resolved_at": now,
			"updated_at":  now,
		})

	if result.Error != nil {
		r.logger.Errorf("failed to resolve disruption event: %v", result.Error)
		return fmt.Errorf("failed to resolve disruption event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("open disruption event not found: event_id=%s", eventID)
	}

	r.logger.Infow("disruption event resolved", "event_id", eventID)
	return nil
}
