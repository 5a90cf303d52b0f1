package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"

	"AeroSentry/internal/biz"
	"AeroSentry/internal/conf"
	"AeroSentry/internal/data"
)

// newTestFlightService builds the service over a single mock provider
// and a miniredis-backed cache.
func newTestFlightService(t *testing.T) *FlightService {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := log.NewStdLogger(os.Stdout)

	bc := &conf.Bootstrap{
		Providers: []*conf.Provider{
			{Name: "mock-primary", Type: "mock", Priority: 100, RequestsPerMinute: 10},
		},
		Failover: &conf.Failover{
			MaxRetriesPerProvider:   1,
			CircuitBreakerThreshold: 5,
		},
		Monitor: &conf.Monitor{
			CacheTTL: durationpb.New(time.Minute),
		},
	}

	quotaRepo := data.NewProviderQuotaRepo(rdb, logger)
	guard := biz.NewQuotaGuardUseCase(quotaRepo, logger)

	provs, err := biz.NewFlightProviders(bc, guard, logger)
	require.NoError(t, err)

	source := biz.NewFlightSource(bc, provs, nil, logger)
	cache := data.NewCacheClient(rdb)
	flights := biz.NewFlightUseCase(bc, source, cache, logger)

	return NewFlightService(bc, flights, guard, logger)
}

// TestGetFlightStatus_Found resolves a scripted flight.
func TestGetFlightStatus_Found(t *testing.T) {
	svc := newTestFlightService(t)

	reply, err := svc.GetFlightStatus(context.Background(), "AA123", "2026-09-01")
	require.NoError(t, err)

	assert.True(t, reply.Found)
	assert.Equal(t, "2026-09-01", reply.Date)
	require.NotNil(t, reply.Status)
	assert.Equal(t, "mock", reply.Status.Source)
}

// TestGetFlightStatus_NotFoundIsNotAnError reports found=false when every
// provider fails instead of returning an HTTP error.
func TestGetFlightStatus_NotFoundIsNotAnError(t *testing.T) {
	svc := newTestFlightService(t)

	reply, err := svc.GetFlightStatus(context.Background(), "AA999", "2026-09-01")
	require.NoError(t, err)

	assert.False(t, reply.Found)
	assert.Nil(t, reply.Status)
}

// TestGetFlightStatus_InvalidDate rejects malformed date parameters.
func TestGetFlightStatus_InvalidDate(t *testing.T) {
	svc := newTestFlightService(t)

	_, err := svc.GetFlightStatus(context.Background(), "AA123", "09/01/2026")
	require.Error(t, err)
	assert.True(t, kerrors.IsBadRequest(err))
}

// TestGetFlightStatus_EmptyFlightNumber rejects a blank flight number.
func TestGetFlightStatus_EmptyFlightNumber(t *testing.T) {
	svc := newTestFlightService(t)

	_, err := svc.GetFlightStatus(context.Background(), "", "2026-09-01")
	require.Error(t, err)
	assert.True(t, kerrors.IsBadRequest(err))
}

// TestGetBatchStatus resolves multiple flights in one call.
func TestGetBatchStatus(t *testing.T) {
	svc := newTestFlightService(t)

	reply, err := svc.GetBatchStatus(context.Background(), &BatchStatusRequest{
		Requests: []BatchStatusItem{
			{FlightNumber: "AA123", Date: "2026-09-01"},
			{FlightNumber: "UA456", Date: "2026-09-01"},
		},
	})
	require.NoError(t, err)

	require.Len(t, reply.Results, 2)
	assert.True(t, reply.Results["AA123"].Found)
	require.NotNil(t, reply.Results["UA456"].Status)
	assert.Equal(t, 45, reply.Results["UA456"].Status.DelayMinutes)
}

// TestGetBatchStatus_EmptyBatch rejects an empty request list.
func TestGetBatchStatus_EmptyBatch(t *testing.T) {
	svc := newTestFlightService(t)

	_, err := svc.GetBatchStatus(context.Background(), &BatchStatusRequest{})
	require.Error(t, err)
	assert.True(t, kerrors.IsBadRequest(err))
}

// TestListProviders reports configuration, breaker state and quota usage.
func TestListProviders(t *testing.T) {
	svc := newTestFlightService(t)

	_, err := svc.GetFlightStatus(context.Background(), "AA123", "2026-09-01")
	require.NoError(t, err)

	reply, err := svc.ListProviders(context.Background())
	require.NoError(t, err)

	require.Len(t, reply.Providers, 1)
	report := reply.Providers[0]
	assert.Equal(t, "mock-primary", report.Name)
	assert.Equal(t, "mock", report.Type)
	require.NotNil(t, report.QuotaUsage)
	assert.Equal(t, int64(10), report.QuotaUsage.MinuteLimit)
	assert.Equal(t, int64(1), report.QuotaUsage.MinuteCount)
}

// TestResetProvider_Unknown returns not found for an unknown provider.
func TestResetProvider_Unknown(t *testing.T) {
	svc := newTestFlightService(t)

	_, err := svc.ResetProvider(context.Background(), "no-such-provider")
	require.Error(t, err)
	assert.True(t, kerrors.IsNotFound(err))
}

// TestResetProvider closes the breaker of a known provider.
func TestResetProvider(t *testing.T) {
	svc := newTestFlightService(t)

	reply, err := svc.ResetProvider(context.Background(), "mock-primary")
	require.NoError(t, err)
	assert.True(t, reply.Reset)
}
