package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/conf"
	"AeroSentry/internal/data"
	"AeroSentry/pkg/flightdata"
	"AeroSentry/pkg/flightdata/providers"
	pkglog "AeroSentry/pkg/log"
	"AeroSentry/pkg/metadata"
)

// defaultBatchSize bounds one provider batch call when no size is configured.
const defaultBatchSize = 10

// FlightSource is the failover lookup surface the use cases depend on.
// *flightdata.FailoverManager satisfies it; tests substitute fakes.
type FlightSource interface {
	GetFlightStatus(ctx context.Context, flightNumber string, departureDate time.Time) *flightdata.FlightStatus
	GetMultipleFlights(ctx context.Context, requests []flightdata.StatusRequest) map[string]*flightdata.FlightStatus
	HealthCheckAll(ctx context.Context) map[string]bool
	Stats() flightdata.ProviderStats
	ResetBreaker(name string) bool
}

var _ FlightSource = (*flightdata.FailoverManager)(nil)

// NewFlightProviders builds the configured provider chain, each wrapped
// with budget enforcement. Unknown provider types fail construction so a
// config typo cannot silently drop a data source.
func NewFlightProviders(c *conf.Bootstrap, guard *QuotaGuardUseCase, logger log.Logger) ([]flightdata.FlightDataProvider, error) {
	built := make([]flightdata.FlightDataProvider, 0, len(c.Providers))
	for _, pc := range c.Providers {
		var provider flightdata.FlightDataProvider

		switch pc.Type {
		case "aeroapi":
			meta, err := metadata.Parse(pc.Metadata)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			proxyURL := ""
			if meta.ProxyEnabled {
				proxyURL = meta.ProxyURL
			}
			p, err := providers.NewAeroAPIProvider(providers.AeroAPIConfig{
				Name:     pc.Name,
				APIKey:   pc.APIKey,
				BaseURL:  pc.BaseURL,
				Priority: pc.Priority,
				Timeout:  pc.Timeout,
				ProxyURL: proxyURL,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			provider = p
		case "mock":
			provider = providers.NewMockProvider(providers.MockConfig{
				Name:          pc.Name,
				Priority:      pc.Priority,
				FailureRate:   pc.FailureRate,
				ResponseDelay: pc.ResponseDelay,
			}, logger)
		default:
			return nil, fmt.Errorf("provider %s: unknown type %q", pc.Name, pc.Type)
		}

		built = append(built, WithQuotaGuard(provider, guard, ProviderBudget{
			RequestsPerMinute: int64(pc.RequestsPerMinute),
			RequestsPerDay:    int64(pc.RequestsPerDay),
		}))
	}
	return built, nil
}

// NewFlightSource assembles the failover manager from configuration.
func NewFlightSource(c *conf.Bootstrap, provs []flightdata.FlightDataProvider, sink flightdata.EventSink, logger log.Logger) FlightSource {
	cfg := flightdata.Config{}
	if fc := c.Failover; fc != nil {
		cfg.MaxRetriesPerProvider = fc.MaxRetriesPerProvider
		cfg.BreakerThreshold = fc.CircuitBreakerThreshold
		if fc.TimeoutBetweenRetries != nil {
			cfg.RetryBackoff = fc.TimeoutBetweenRetries.AsDuration()
		}
		if fc.CircuitBreakerTimeout != nil {
			cfg.BreakerCooldown = fc.CircuitBreakerTimeout.AsDuration()
		}
		if fc.DegradedProviderRetryInterval != nil {
			cfg.DegradedRetryInterval = fc.DegradedProviderRetryInterval.AsDuration()
		}
	}
	return flightdata.NewFailoverManager(provs, cfg, sink, logger)
}

// FlightUseCase serves flight status lookups through the failover chain
// with a Redis cache in front. Cache failures are invisible to callers:
// a broken cache degrades to direct provider lookups.
type FlightUseCase struct {
	source    FlightSource
	cache     data.CacheClient
	cacheTTL  time.Duration
	batchSize int
	logger    *pkglog.LogHelper
}

// NewFlightUseCase creates a new flight lookup use case.
func NewFlightUseCase(c *conf.Bootstrap, source FlightSource, cache data.CacheClient, logger log.Logger) *FlightUseCase {
	ttl := data.TTLFlightStatus
	batchSize := defaultBatchSize
	if mc := c.Monitor; mc != nil {
		if mc.CacheTTL != nil && mc.CacheTTL.AsDuration() > 0 {
			ttl = mc.CacheTTL.AsDuration()
		}
		if mc.BatchSize > 0 {
			batchSize = mc.BatchSize
		}
	}
	return &FlightUseCase{
		source:    source,
		cache:     cache,
		cacheTTL:  ttl,
		batchSize: batchSize,
		logger:    pkglog.NewLogHelper(logger),
	}
}

// GetStatus resolves one flight's status, cache first. The second return
// reports whether the cache served the result. A nil status means no
// provider could resolve the flight; that is not an error.
func (uc *FlightUseCase) GetStatus(ctx context.Context, flightNumber string, departureDate time.Time) (*flightdata.FlightStatus, bool) {
	key := data.FlightStatusCacheKey(flightNumber, departureDate)

	var cached flightdata.FlightStatus
	if err := uc.cache.Get(ctx, key, &cached); err == nil {
		return &cached, true
	} else if err != data.ErrCacheNotFound {
		uc.logger.Debugw("Flight status cache read failed",
			"flight_number", flightNumber,
			"error", err)
	}

	status := uc.source.GetFlightStatus(ctx, flightNumber, departureDate)
	if status != nil {
		if err := uc.cache.Set(ctx, key, status, uc.cacheTTL); err != nil {
			uc.logger.Debugw("Flight status cache write failed",
				"flight_number", flightNumber,
				"error", err)
		}
	}
	return status, false
}

// GetStatusBatch resolves several flights, serving what it can from cache
// and batching the misses through the failover chain in bounded chunks.
// Every requested flight number appears in the result, nil when unresolved.
// The second return is the number of cache hits.
func (uc *FlightUseCase) GetStatusBatch(ctx context.Context, requests []flightdata.StatusRequest) (map[string]*flightdata.FlightStatus, int) {
	results := make(map[string]*flightdata.FlightStatus, len(requests))
	misses := make([]flightdata.StatusRequest, 0, len(requests))

	for _, req := range requests {
		key := data.FlightStatusCacheKey(req.FlightNumber, req.DepartureDate)
		var cached flightdata.FlightStatus
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			results[req.FlightNumber] = &cached
			continue
		}
		misses = append(misses, req)
	}

	for start := 0; start < len(misses); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(misses) {
			end = len(misses)
		}
		chunk := misses[start:end]

		fetched := uc.source.GetMultipleFlights(ctx, chunk)
		for _, req := range chunk {
			status := fetched[req.FlightNumber]
			results[req.FlightNumber] = status
			if status == nil {
				continue
			}
			key := data.FlightStatusCacheKey(req.FlightNumber, req.DepartureDate)
			if err := uc.cache.Set(ctx, key, status, uc.cacheTTL); err != nil {
				uc.logger.Debugw("Flight status cache write failed",
					"flight_number", req.FlightNumber,
					"error", err)
			}
		}
	}

	cacheHits := len(requests) - len(misses)
	uc.logger.Provider("Batch flight lookup completed",
		"requested", len(requests),
		"cache_hits", cacheHits,
		"fetched", len(misses))

	return results, cacheHits
}

// ProviderStats snapshots provider metrics, breaker states and
// performance summaries for the admin endpoint.
func (uc *FlightUseCase) ProviderStats() flightdata.ProviderStats {
	return uc.source.Stats()
}

// RunHealthCheck probes every provider now and reports per-provider health.
func (uc *FlightUseCase) RunHealthCheck(ctx context.Context) map[string]bool {
	return uc.source.HealthCheckAll(ctx)
}

// ResetProvider closes a provider's circuit breaker. It reports whether
// the provider was known.
func (uc *FlightUseCase) ResetProvider(name string) bool {
	ok := uc.source.ResetBreaker(name)
	if ok {
		uc.logger.Provider("Provider breaker reset", "provider", name)
	}
	return ok
}
