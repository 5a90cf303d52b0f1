// Package biz contains business logic layer implementations.
// This layer holds the core business rules and domain models.
package biz

import (
	"github.com/google/wire"

	"AeroSentry/internal/data"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCompensationEngine,
	NewDBRuleSource,
	NewQuotaGuardUseCase,
	NewFlightProviders,
	NewFailoverEventSink,
	NewFlightSource,
	NewFlightUseCase,
	NewMonitorUseCase,
	NewWalletUseCase,
	NewBookingUseCase,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(RuleSource), new(*DBRuleSource)),
	wire.Bind(new(RuleRepo), new(*data.RuleRepo)),
	wire.Bind(new(BookingRepo), new(*data.BookingRepo)),
	wire.Bind(new(DisruptionRepo), new(*data.DisruptionRepo)),
	wire.Bind(new(WalletRepo), new(*data.WalletRepo)),
	wire.Bind(new(EmailConnectionRepo), new(*data.EmailConnectionRepo)),
	wire.Bind(new(ProviderQuotaRepo), new(*data.ProviderQuotaRepo)),
	wire.Bind(new(AuditLogger), new(*data.AuditLoggerImpl)),
	wire.Bind(new(AlertService), new(*data.LogAlertService)),
)
