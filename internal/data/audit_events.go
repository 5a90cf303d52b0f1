package data

import "AeroSentry/internal/model"

// AuditEventType defines audit event type constants.
// These constants are used for audit logging in provider_audit_logs table.
type AuditEventType string

const (
	// AuditEventCircuitOpened is logged when a provider circuit breaker trips
	AuditEventCircuitOpened AuditEventType = AuditEventType(model.AuditEventCircuitOpened)

	// AuditEventCircuitClosed is logged when a provider circuit breaker closes
	AuditEventCircuitClosed AuditEventType = AuditEventType(model.AuditEventCircuitClosed)

	// AuditEventProviderDegraded is logged when a provider enters DEGRADED status
	AuditEventProviderDegraded AuditEventType = AuditEventType(model.AuditEventProviderDegraded)

	// AuditEventProviderRecovered is logged when a provider returns to ACTIVE status
	AuditEventProviderRecovered AuditEventType = AuditEventType(model.AuditEventProviderRecovered)

	// AuditEventHealthCheckFailed is logged when a provider health probe fails
	AuditEventHealthCheckFailed AuditEventType = AuditEventType(model.AuditEventHealthCheckFailed)

	// AuditEventAllProvidersFailed is logged when a lookup exhausts every provider
	AuditEventAllProvidersFailed AuditEventType = AuditEventType(model.AuditEventAllProvidersFailed)
)

// String returns the string representation of AuditEventType
func (e AuditEventType) String() string {
	return string(e)
}
