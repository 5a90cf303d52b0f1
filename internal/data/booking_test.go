package data

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqldriver "github.com/go-sql-driver/mysql"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupBookingRepo creates a test BookingRepo instance
func setupBookingRepo(t *testing.T) (*BookingRepo, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	repo := &BookingRepo{
		db:     gormDB,
		cache:  NewCacheClient(nil), // cache degrades gracefully without Redis
		logger: log.NewHelper(log.DefaultLogger),
	}

	cleanup := func() {
		sqlDB.Close()
	}

	return repo, mock, cleanup
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "pnr", "airline", "flight_number", "departure_date",
		"origin", "destination", "booking_class", "seat", "status", "raw",
		"last_checked", "created_at", "updated_at",
	})
}

// TestCreateBooking_New inserts and reports created=true
func TestCreateBooking_New(t *testing.T) {
	repo, mock, cleanup := setupBookingRepo(t)
	defer cleanup()

	departure := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `bookings`")).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	booking := &Booking{
		UserID:        42,
		PNR:           "ABC123",
		Airline:       "American Airlines",
		FlightNumber:  "AA100",
		DepartureDate: departure,
		Origin:        "JFK",
		Destination:   "LAX",
		BookingClass:  ClassEconomy,
		Status:        BookingConfirmed,
	}

	created, err := repo.CreateBooking(context.Background(), booking)

	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(11), booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_DuplicateReturnsExisting dedupes on (pnr, flight_number)
func TestCreateBooking_DuplicateReturnsExisting(t *testing.T) {
	repo, mock, cleanup := setupBookingRepo(t)
	defer cleanup()

	departure := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `bookings`")).
		WillReturnError(&sqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'ABC123-AA100' for key 'uq_pnr_flight'"})
	mock.ExpectRollback()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `bookings` WHERE pnr = ? AND flight_number = ?")).
		WithArgs("ABC123", "AA100", 1).
		WillReturnRows(bookingRows().AddRow(
			11, 42, "ABC123", "American Airlines", "AA100", departure,
			"JFK", "LAX", "Economy", "12A", "CONFIRMED", nil,
			nil, time.Now(), time.Now()))

	booking := &Booking{
		UserID:        42,
		PNR:           "ABC123",
		FlightNumber:  "AA100",
		DepartureDate: departure,
	}

	created, err := repo.CreateBooking(context.Background(), booking)

	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(11), booking.ID)
	assert.Equal(t, "12A", booking.Seat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestListUpcoming filters by CONFIRMED status and the departure window
func TestListUpcoming(t *testing.T) {
	repo, mock, cleanup := setupBookingRepo(t)
	defer cleanup()

	departure := time.Now().Add(5 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `bookings` WHERE status = ? AND (departure_date >= ? AND departure_date <= ?)")).
		WithArgs(string(BookingConfirmed), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(bookingRows().AddRow(
			11, 42, "ABC123", "American Airlines", "AA100", departure,
			"JFK", "LAX", "Economy", "12A", "CONFIRMED", nil,
			nil, time.Now(), time.Now()))

	bookings, err := repo.ListUpcoming(context.Background(), 48*time.Hour)

	assert.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "AA100", bookings[0].FlightNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateLastChecked records sweep time
func TestUpdateLastChecked(t *testing.T) {
	repo, mock, cleanup := setupBookingRepo(t)
	defer cleanup()

	checkedAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `bookings` SET")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateLastChecked(context.Background(), 11, checkedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateLastChecked_NotFound reports missing booking
func TestUpdateLastChecked_NotFound(t *testing.T) {
	repo, mock, cleanup := setupBookingRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `bookings` SET")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateLastChecked(context.Background(), 999, time.Now())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "booking not found")
}

// TestUpdateStatus moves a booking through its lifecycle
func TestUpdateStatus(t *testing.T) {
	repo, mock, cleanup := setupBookingRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `bookings` SET")).
		WithArgs(string(BookingCancelled), sqlmock.AnyArg(), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), 11, BookingCancelled)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
