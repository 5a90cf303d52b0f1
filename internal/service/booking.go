package service

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/biz"
	"AeroSentry/internal/data"
)

// defaultUpcomingHours bounds the upcoming-bookings listing when no
// window is given.
const defaultUpcomingHours = 48

// ImportEmailRequest carries one raw booking confirmation email.
type ImportEmailRequest struct {
	UserID   int64  `json:"user_id"`
	RawEmail string `json:"raw_email"`
}

// ImportEmailReply reports the booking parsed out of an email.
type ImportEmailReply struct {
	Created bool          `json:"created"`
	Booking *data.Booking `json:"booking"`
}

// LinkEmailRequest registers an inbox for booking ingestion.
type LinkEmailRequest struct {
	UserID       int64  `json:"user_id"`
	Provider     string `json:"provider"`
	EmailAddress string `json:"email_address"`
	AccessToken  string `json:"access_token"`
}

// LinkEmailReply acknowledges a linked inbox.
type LinkEmailReply struct {
	Linked bool `json:"linked"`
}

// BookingsReply lists bookings.
type BookingsReply struct {
	Bookings []*data.Booking `json:"bookings"`
	Total    int             `json:"total"`
}

// BookingService handles booking import and listing.
type BookingService struct {
	bookings *biz.BookingUseCase
	logger   *log.Helper
}

// NewBookingService creates the booking import service.
func NewBookingService(bookings *biz.BookingUseCase, logger log.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		logger:   log.NewHelper(logger),
	}
}

// ImportCSV ingests a CSV document of bookings for one user.
func (s *BookingService) ImportCSV(ctx context.Context, userID int64, body io.Reader) (*biz.ImportResult, error) {
	if userID <= 0 {
		return nil, errors.BadRequest("INVALID_USER_ID", "user_id is required")
	}
	return s.bookings.ImportCSV(ctx, userID, body)
}

// ImportEmail parses a booking out of one raw confirmation email.
func (s *BookingService) ImportEmail(ctx context.Context, req *ImportEmailRequest) (*ImportEmailReply, error) {
	if req.UserID <= 0 {
		return nil, errors.BadRequest("INVALID_USER_ID", "user_id is required")
	}
	if req.RawEmail == "" {
		return nil, errors.BadRequest("EMPTY_EMAIL", "raw_email is required")
	}

	booking, created, err := s.bookings.ImportEmail(ctx, req.UserID, req.RawEmail)
	if err != nil {
		return nil, err
	}
	return &ImportEmailReply{Created: created, Booking: booking}, nil
}

// LinkEmail registers an inbox connection for automatic imports.
func (s *BookingService) LinkEmail(ctx context.Context, req *LinkEmailRequest) (*LinkEmailReply, error) {
	if req.UserID <= 0 {
		return nil, errors.BadRequest("INVALID_USER_ID", "user_id is required")
	}
	if err := s.bookings.LinkEmailAccount(ctx, req.UserID, req.Provider, req.EmailAddress, req.AccessToken); err != nil {
		return nil, err
	}
	return &LinkEmailReply{Linked: true}, nil
}

// ListUpcoming returns bookings departing inside the requested window.
func (s *BookingService) ListUpcoming(ctx context.Context, hours string) (*BookingsReply, error) {
	window := defaultUpcomingHours
	if hours != "" {
		parsed, err := strconv.Atoi(hours)
		if err != nil || parsed <= 0 {
			return nil, errors.BadRequest("INVALID_HOURS", "hours must be a positive integer")
		}
		window = parsed
	}

	bookings, err := s.bookings.ListUpcoming(ctx, time.Duration(window)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &BookingsReply{Bookings: bookings, Total: len(bookings)}, nil
}

// ListByUser returns all bookings belonging to one user.
func (s *BookingService) ListByUser(ctx context.Context, userID int64) (*BookingsReply, error) {
	if userID <= 0 {
		return nil, errors.BadRequest("INVALID_USER_ID", "user_id is required")
	}
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BookingsReply{Bookings: bookings, Total: len(bookings)}, nil
}
