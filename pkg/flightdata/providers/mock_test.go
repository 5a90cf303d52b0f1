package providers

import (
	"context"
	"os"
	"testing"
	"time"

	"AeroSentry/pkg/flightdata"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMock(t *testing.T, cfg MockConfig) *MockProvider {
	t.Helper()
	return NewMockProvider(cfg, log.NewStdLogger(os.Stdout))
}

// Test the scripted scenarios behave as documented
func TestMockProvider_ScriptedScenarios(t *testing.T) {
	p := newTestMock(t, MockConfig{Seed: 1})
	ctx := context.Background()
	date := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		flight    string
		status    string
		disrupted bool
		dtype     flightdata.DisruptionType
		delay     int
	}{
		{"AA123", "ON TIME", false, flightdata.DisruptionNone, 0},
		{"UA456", "DELAYED", true, flightdata.DisruptionDelayed, 45},
		{"DL789", "CANCELLED", true, flightdata.DisruptionCancelled, 0},
		{"SW111", "DIVERTED", true, flightdata.DisruptionDiverted, 0},
	}
	for _, tt := range tests {
		status, err := p.GetFlightStatus(ctx, tt.flight, date)
		require.NoError(t, err, tt.flight)
		require.NotNil(t, status, tt.flight)
		assert.Equal(t, tt.status, status.Status)
		assert.Equal(t, tt.disrupted, status.IsDisrupted)
		assert.Equal(t, tt.dtype, status.DisruptionType)
		assert.Equal(t, tt.delay, status.DelayMinutes)
		assert.Equal(t, tt.flight+"_20260301", status.FlightID)
		assert.Equal(t, DefaultMockName, status.Source)
		assert.GreaterOrEqual(t, status.ConfidenceScore, 0.85)
		assert.LessOrEqual(t, status.ConfidenceScore, 1.0)
	}
}

// Test AA999 always fails with a provider error
func TestMockProvider_ErrorScenario(t *testing.T) {
	p := newTestMock(t, MockConfig{Seed: 1})

	status, err := p.GetFlightStatus(context.Background(), "AA999", time.Now())
	assert.Nil(t, status)
	require.Error(t, err)

	var perr *flightdata.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(1), p.Metrics().FailedRequests)
}

// Test unscripted flights resolve deterministically per flight and date
func TestMockProvider_DeterministicRandomScenario(t *testing.T) {
	p := newTestMock(t, MockConfig{Seed: 1})
	ctx := context.Background()
	date := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := p.GetFlightStatus(ctx, "ZZ742", date)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := p.GetFlightStatus(ctx, "ZZ742", date)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.DelayMinutes, second.DelayMinutes)
	assert.Equal(t, first.Gate, second.Gate)
	assert.Equal(t, first.Terminal, second.Terminal)
	assert.InDelta(t, first.ConfidenceScore, second.ConfidenceScore, 1e-9)
}

// Test a failure rate of 1.0 makes every lookup fail
func TestMockProvider_FullFailureRate(t *testing.T) {
	p := newTestMock(t, MockConfig{FailureRate: 1.0, Seed: 1})

	for i := 0; i < 3; i++ {
		status, err := p.GetFlightStatus(context.Background(), "AA123", time.Now())
		assert.Nil(t, status)
		assert.Error(t, err)
	}
	assert.Equal(t, int64(3), p.Metrics().FailedRequests)
}

// Test batch lookups map error scenarios to nil without failing the batch
func TestMockProvider_BatchLookup(t *testing.T) {
	p := newTestMock(t, MockConfig{Seed: 1})
	date := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	results, err := p.GetMultipleFlights(context.Background(), []flightdata.StatusRequest{
		{FlightNumber: "AA123", DepartureDate: date},
		{FlightNumber: "AA999", DepartureDate: date},
		{FlightNumber: "DL789", DepartureDate: date},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NotNil(t, results["AA123"])
	assert.Nil(t, results["AA999"])
	require.NotNil(t, results["DL789"])
	assert.Equal(t, flightdata.DisruptionCancelled, results["DL789"].DisruptionType)
}

// Test AddScenario overrides the generated outcome
func TestMockProvider_AddScenario(t *testing.T) {
	p := newTestMock(t, MockConfig{Seed: 1})
	p.AddScenario("XX1", Scenario{
		Status:       "DELAYED",
		Disrupted:    true,
		Type:         flightdata.DisruptionDelayed,
		DelayMinutes: 200,
	})

	status, err := p.GetFlightStatus(context.Background(), "XX1", time.Now())
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 200, status.DelayMinutes)
}

// Test health check passes without error simulation and sets availability
func TestMockProvider_HealthCheck(t *testing.T) {
	p := newTestMock(t, MockConfig{Seed: 1})

	require.NoError(t, p.HealthCheck(context.Background()))
	assert.Equal(t, flightdata.StatusAvailable, p.Status())
}
