package model

// Audit event type constants
const (
	AuditEventCircuitOpened      = "CIRCUIT_OPENED"
	AuditEventCircuitClosed      = "CIRCUIT_CLOSED"
	AuditEventProviderDegraded   = "PROVIDER_DEGRADED"
	AuditEventProviderRecovered  = "PROVIDER_RECOVERED"
	AuditEventHealthCheckFailed  = "HEALTH_CHECK_FAILED"
	AuditEventAllProvidersFailed = "ALL_PROVIDERS_FAILED"
)
