package biz

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/data"
	pkglog "AeroSentry/pkg/log"
)

// ErrEventNotFound is returned when a disruption event ID is unknown.
var ErrEventNotFound = errors.NotFound("EVENT_NOT_FOUND", "disruption event not found")

// CompensationOutcome reports the result of processing a disruption event.
type CompensationOutcome struct {
	EventID     string             `json:"event_id"`
	Calculation *CalculationResult `json:"calculation"`
	Credited    bool               `json:"credited"`
	// AlreadyProcessed is set when the event had been paid out before,
	// or the wallet reference already existed.
	AlreadyProcessed bool   `json:"already_processed"`
	Reference        string `json:"reference,omitempty"`
}

// WalletUseCase pays out compensation into passenger wallets and serves
// balance and history lookups.
type WalletUseCase struct {
	wallets  WalletRepo
	events   DisruptionRepo
	bookings BookingRepo
	engine   *CompensationEngine
	logger   *pkglog.LogHelper
}

// NewWalletUseCase creates a new wallet use case.
func NewWalletUseCase(wallets WalletRepo, events DisruptionRepo, bookings BookingRepo, engine *CompensationEngine, logger log.Logger) *WalletUseCase {
	return &WalletUseCase{
		wallets:  wallets,
		events:   events,
		bookings: bookings,
		engine:   engine,
		logger:   pkglog.NewLogHelper(logger),
	}
}

// compensationReference is the idempotency key for one event's payout.
func compensationReference(eventID string) string {
	return "comp:" + eventID
}

// ProcessCompensation calculates compensation for a disruption event and
// credits the booking holder's wallet when eligible. Processing the same
// event twice is safe: the credit is keyed by a unique reference and the
// event's compensation status tracks the outcome.
func (uc *WalletUseCase) ProcessCompensation(ctx context.Context, eventID string) (*CompensationOutcome, error) {
	event, err := uc.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	booking, err := uc.bookings.GetBooking(ctx, event.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d for event %s: %w", event.BookingID, eventID, err)
	}

	calcCtx := &CalculationContext{
		DisruptionType: event.Type,
		BookingClass:   string(booking.BookingClass),
		Airline:        booking.Airline,
	}
	if event.DelayMinutes > 0 {
		hours := float64(event.DelayMinutes) / 60.0
		calcCtx.DelayHours = &hours
	}

	result := uc.engine.Calculate(ctx, calcCtx)
	outcome := &CompensationOutcome{
		EventID:     eventID,
		Calculation: result,
	}

	if event.CompensationStatus == data.CompensationPaid {
		outcome.AlreadyProcessed = true
		outcome.Reference = compensationReference(eventID)
		return outcome, nil
	}

	if !result.Eligible {
		if err := uc.events.UpdateCompensationStatus(ctx, eventID, data.CompensationIneligible); err != nil {
			uc.logger.Warnw("Failed to mark event ineligible",
				"event_id", eventID,
				"error", err)
		}
		uc.logger.Compensation("Disruption not eligible for compensation",
			"event_id", eventID,
			"reason", result.Reason)
		return outcome, nil
	}

	reference := compensationReference(eventID)
	description := fmt.Sprintf("Compensation for %s on flight %s (%s)",
		event.Type, booking.FlightNumber, result.RuleApplied)

	credited, err := uc.wallets.Credit(ctx, booking.UserID, result.Amount,
		data.TxnTypeCompensation, reference, description)
	if err != nil {
		return nil, fmt.Errorf("failed to credit wallet for event %s: %w", eventID, err)
	}

	outcome.Credited = credited
	outcome.AlreadyProcessed = !credited
	outcome.Reference = reference

	if err := uc.events.UpdateCompensationStatus(ctx, eventID, data.CompensationPaid); err != nil {
		uc.logger.Warnw("Wallet credited but event status update failed",
			"event_id", eventID,
			"error", err)
	}

	uc.logger.Wallet("Compensation processed",
		"event_id", eventID,
		"user_id", booking.UserID,
		"amount", result.Amount,
		"rule", result.RuleApplied,
		"credited", credited)

	return outcome, nil
}

// GetBalance returns the user's wallet, creating it on first access.
func (uc *WalletUseCase) GetBalance(ctx context.Context, userID int64) (*data.Wallet, error) {
	return uc.wallets.GetOrCreateWallet(ctx, userID)
}

// ListTransactions returns one page of the user's wallet history plus the
// total transaction count.
func (uc *WalletUseCase) ListTransactions(ctx context.Context, userID int64, page, pageSize int32) ([]*data.WalletTransaction, int32, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return uc.wallets.ListTransactions(ctx, userID, page, pageSize)
}
