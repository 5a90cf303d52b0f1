package data

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"time"

	pkgerrors "AeroSentry/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// BookingClass represents the database ENUM type for cabin class.
type BookingClass string

// Booking class constants.
const (
	ClassEconomy  BookingClass = "Economy"
	ClassBusiness BookingClass = "Business"
	ClassFirst    BookingClass = "First"
)

// BookingStatus represents the database ENUM type for booking status.
type BookingStatus string

// Booking status constants.
const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Booking is the GORM model for bookings table.
type Booking struct {
	ID            int64         `gorm:"primaryKey;column:id"`
	UserID        int64         `gorm:"column:user_id;not null;index"`
	PNR           string        `gorm:"column:pnr;size:10;not null;uniqueIndex:uq_pnr_flight,priority:1"`
	Airline       string        `gorm:"column:airline;size:100"`
	FlightNumber  string        `gorm:"column:flight_number;size:10;not null;uniqueIndex:uq_pnr_flight,priority:2"`
	DepartureDate time.Time     `gorm:"column:departure_date;not null;index"`
	Origin        string        `gorm:"column:origin;size:3"`
	Destination   string        `gorm:"column:destination;size:3"`
	BookingClass  BookingClass  `gorm:"column:booking_class;type:enum('Economy','Business','First');default:'Economy';not null"`
	Seat          string        `gorm:"column:seat;size:5"`
	Status        BookingStatus `gorm:"column:status;type:enum('CONFIRMED','CANCELLED','COMPLETED');default:'CONFIRMED';not null"`
	Raw           *string       `gorm:"column:raw;type:json"` // original import payload (pointer for NULL support)
	LastChecked   *time.Time    `gorm:"column:last_checked"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Booking) TableName() string {
	return "bookings"
}

// Scan implements sql.Scanner interface for BookingClass.
func (c *BookingClass) Scan(value interface{}) error {
	if value == nil {
		*c = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*c = BookingClass(v)
	case string:
		*c = BookingClass(v)
	default:
		return fmt.Errorf("cannot scan type %T into BookingClass", value)
	}
	return nil
}

// Value implements driver.Valuer interface for BookingClass.
func (c BookingClass) Value() (driver.Value, error) {
	return string(c), nil
}

// Scan implements sql.Scanner interface for BookingStatus.
func (s *BookingStatus) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = BookingStatus(v)
	case string:
		*s = BookingStatus(v)
	default:
		return fmt.Errorf("cannot scan type %T into BookingStatus", value)
	}
	return nil
}

// Value implements driver.Valuer interface for BookingStatus.
func (s BookingStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// BookingRepo implements biz.BookingRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
type BookingRepo struct {
	data   *Data
	db     *gorm.DB
	cache  CacheClient
	logger *log.Helper
}

// NewBookingRepo creates a new booking repository.
func NewBookingRepo(data *Data, db *gorm.DB, logger log.Logger) *BookingRepo {
	return &BookingRepo{
		data:   data,
		db:     db,
		cache:  data.GetCache(),
		logger: log.NewHelper(logger),
	}
}

// CreateBooking inserts a booking. The (pnr, flight_number) unique index
// dedupes re-imports: a duplicate returns the existing row with created=false
// instead of an error.
func (r *BookingRepo) CreateBooking(ctx context.Context, booking *Booking) (created bool, err error) {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)
		if dbErr.Type == pkgerrors.ErrorTypeDuplicateKey {
			var existing Booking
			findErr := r.db.WithContext(ctx).
				Where("pnr = ? AND flight_number = ?", booking.PNR, booking.FlightNumber).
				First(&existing).Error
			if findErr != nil {
				return false, fmt.Errorf("failed to load existing booking: %w", findErr)
			}
			*booking = existing
			r.logger.Debugw("booking already imported",
				"pnr", booking.PNR,
				"flight_number", booking.FlightNumber,
				"id", booking.ID)
			return false, nil
		}

		r.logger.Errorw("failed to create booking",
			"pnr", booking.PNR,
			"flight_number", booking.FlightNumber,
			"error", dbErr.Error())
		return false, dbErr
	}

	r.logger.Infow("booking created",
		"id", booking.ID,
		"user_id", booking.UserID,
		"pnr", booking.PNR,
		"flight_number", booking.FlightNumber)
	return true, nil
}

// GetBooking retrieves a booking by ID with caching.
// Cache key: "booking:{id}", TTL: 5 minutes
func (r *BookingRepo) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	cacheKey := BuildCacheKey(CacheKeyBooking, strconv.FormatInt(id, 10))

	var cached Booking
	if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
		r.logger.Debugw("booking cache hit", "id", id)
		return &cached, nil
	}

	var booking Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("booking not found: id=%d", id)
		}
		r.logger.Errorf("failed to get booking: %v", err)
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if err := r.cache.Set(ctx, cacheKey, &booking, TTLBooking); err != nil {
		r.logger.Warnw("failed to cache booking", "id", id, "error", err)
		// Cache failure doesn't affect the operation
	}

	return &booking, nil
}

// ListUpcoming returns CONFIRMED bookings departing between now and
// now+window, ordered by departure.
func (r *BookingRepo) ListUpcoming(ctx context.Context, window time.Duration) ([]*Booking, error) {
	now := time.Now()
	until := now.Add(window)

	var bookings []*Booking
	err := r.db.WithContext(ctx).
		Where("status = ?", BookingConfirmed).
		Where("departure_date >= ? AND departure_date <= ?", now, until).
		Order("departure_date ASC").
		Find(&bookings).Error
	if err != nil {
		r.logger.Errorf("failed to list upcoming bookings: %v", err)
		return nil, fmt.Errorf("failed to list upcoming bookings: %w", err)
	}

	r.logger.Debugw("upcoming bookings listed", "count", len(bookings), "window", window)
	return bookings, nil
}

// ListByUser returns a user's bookings, newest departure first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID int64) ([]*Booking, error) {
	var bookings []*Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("departure_date DESC").
		Find(&bookings).Error
	if err != nil {
		r.logger.Errorf("failed to list bookings by user: %v", err)
		return nil, fmt.Errorf("failed to list bookings by user: %w", err)
	}
	return bookings, nil
}

// UpdateLastChecked records the time a booking's flight was last swept.
func (r *BookingRepo) UpdateLastChecked(ctx context.Context, id int64, checkedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_checked": checkedAt,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		r.logger.Errorf("failed to update last_checked: %v", result.Error)
		return fmt.Errorf("failed to update last_checked: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("booking not found: id=%d", id)
	}

	cacheKey := BuildCacheKey(CacheKeyBooking, strconv.FormatInt(id, 10))
	if err := r.cache.Delete(ctx, cacheKey); err != nil {
		r.logger.Warnw("failed to delete booking cache", "id", id, "error", err)
	}

	return nil
}

// UpdateStatus changes a booking's status and clears its cache.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id int64, status BookingStatus) error {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		r.logger.Errorf("failed to update booking status: %v", result.Error)
		return fmt.Errorf("failed to update booking status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("booking not found: id=%d", id)
	}

	cacheKey := BuildCacheKey(CacheKeyBooking, strconv.FormatInt(id, 10))
	if err := r.cache.Delete(ctx, cacheKey); err != nil {
		r.logger.Warnw("failed to delete booking cache", "id", id, "error", err)
	}

	r.logger.Infow("booking status updated", "id", id, "status", status)
	return nil
}
