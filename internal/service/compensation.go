package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/biz"
)

// CalculateRequest carries the disruption facts for a dry-run calculation.
type CalculateRequest struct {
	Context biz.CalculationContext `json:"context"`
}

// ProcessRequest names the disruption event to settle.
type ProcessRequest struct {
	EventID string `json:"event_id"`
}

// ProcessReply reports the settlement outcome for a disruption event.
type ProcessReply struct {
	EventID          string                 `json:"event_id"`
	Credited         bool                   `json:"credited"`
	AlreadyProcessed bool                   `json:"already_processed"`
	Reference        string                 `json:"reference,omitempty"`
	Calculation      *biz.CalculationResult `json:"calculation"`
}

// CompensationService exposes the rule engine over HTTP.
type CompensationService struct {
	engine *biz.CompensationEngine
	wallet *biz.WalletUseCase
	logger *log.Helper
}

// NewCompensationService creates the compensation calculation service.
func NewCompensationService(engine *biz.CompensationEngine, wallet *biz.WalletUseCase, logger log.Logger) *CompensationService {
	return &CompensationService{
		engine: engine,
		wallet: wallet,
		logger: log.NewHelper(logger),
	}
}

// Calculate runs the rule engine against the supplied context without
// touching any wallet.
func (s *CompensationService) Calculate(ctx context.Context, req *CalculateRequest) (*biz.CalculationResult, error) {
	return s.engine.Calculate(ctx, &req.Context), nil
}

// Process settles a detected disruption event into the passenger wallet.
func (s *CompensationService) Process(ctx context.Context, req *ProcessRequest) (*ProcessReply, error) {
	if req.EventID == "" {
		return nil, errors.BadRequest("INVALID_EVENT_ID", "event_id is required")
	}

	outcome, err := s.wallet.ProcessCompensation(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	return &ProcessReply{
		EventID:          outcome.EventID,
		Credited:         outcome.Credited,
		AlreadyProcessed: outcome.AlreadyProcessed,
		Reference:        outcome.Reference,
		Calculation:      outcome.Calculation,
	}, nil
}
