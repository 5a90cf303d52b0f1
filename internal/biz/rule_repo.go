package biz

import (
	"context"

	"AeroSentry/internal/data"
)

// RuleRepo defines the interface for compensation rule storage.
// Following Kratos v2 DDD architecture, interfaces are defined in biz layer.
// Implementation is in data layer (data.RuleRepo).
type RuleRepo interface {
	// ListActiveRules returns active rules ordered by priority descending.
	ListActiveRules(ctx context.Context) ([]*data.CompensationRule, error)
}
