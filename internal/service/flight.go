package service

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/biz"
	"AeroSentry/internal/conf"
	"AeroSentry/pkg/flightdata"
	"AeroSentry/pkg/metadata"
)

// departureDateLayout is the accepted date format on flight lookups.
const departureDateLayout = "2006-01-02"

// FlightStatusReply wraps one flight lookup. Found is false when no
// provider could resolve the flight; that is a 200, not an error.
type FlightStatusReply struct {
	FlightNumber string                   `json:"flight_number"`
	Date         string                   `json:"date"`
	Found        bool                     `json:"found"`
	FromCache    bool                     `json:"from_cache"`
	Status       *flightdata.FlightStatus `json:"status,omitempty"`
}

// BatchStatusRequest is the body of a batch lookup.
type BatchStatusRequest struct {
	Requests []BatchStatusItem `json:"requests"`
}

// BatchStatusItem names one flight in a batch lookup.
type BatchStatusItem struct {
	FlightNumber string `json:"flight_number"`
	Date         string `json:"date"`
}

// BatchStatusReply maps flight numbers to lookup results.
type BatchStatusReply struct {
	Results map[string]*FlightStatusReply `json:"results"`
}

// ProviderReport is the admin view of one configured provider.
type ProviderReport struct {
	Name        string                         `json:"name"`
	Type        string                         `json:"type"`
	Priority    int                            `json:"priority"`
	BaseURL     string                         `json:"base_url,omitempty"`
	Metadata    *metadata.ProviderMetadata     `json:"metadata,omitempty"`
	Info        *flightdata.ProviderInfo       `json:"info,omitempty"`
	Breaker     *flightdata.BreakerSnapshot    `json:"breaker,omitempty"`
	Performance *flightdata.PerformanceSummary `json:"performance,omitempty"`
	QuotaUsage  *QuotaUsage                    `json:"quota_usage,omitempty"`
}

// QuotaUsage reports a provider's consumed request budget.
type QuotaUsage struct {
	MinuteCount   int64 `json:"minute_count"`
	DayCount      int64 `json:"day_count"`
	InFlightCount int64 `json:"in_flight_count"`
	MinuteLimit   int64 `json:"minute_limit,omitempty"`
	DayLimit      int64 `json:"day_limit,omitempty"`
}

// ProvidersReply is the full provider stats report.
type ProvidersReply struct {
	Providers []*ProviderReport `json:"providers"`
}

// HealthCheckReply reports a manual provider health sweep.
type HealthCheckReply struct {
	Results map[string]bool `json:"results"`
}

// ResetProviderReply reports a breaker reset.
type ResetProviderReply struct {
	Provider string `json:"provider"`
	Reset    bool   `json:"reset"`
}

// FlightService serves flight status lookups and provider administration.
type FlightService struct {
	flights   *biz.FlightUseCase
	quota     *biz.QuotaGuardUseCase
	providers []*conf.Provider
	logger    *log.Helper
}

// NewFlightService creates the flight status and provider admin service.
func NewFlightService(c *conf.Bootstrap, flights *biz.FlightUseCase, quota *biz.QuotaGuardUseCase, logger log.Logger) *FlightService {
	return &FlightService{
		flights:   flights,
		quota:     quota,
		providers: c.Providers,
		logger:    log.NewHelper(logger),
	}
}

// parseDepartureDate validates the date query parameter. An empty value
// defaults to today.
func parseDepartureDate(value string) (time.Time, error) {
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(departureDateLayout, value)
	if err != nil {
		return time.Time{}, errors.BadRequest("INVALID_DATE", "date must be formatted YYYY-MM-DD")
	}
	return t, nil
}

// GetFlightStatus resolves one flight through the failover chain.
func (s *FlightService) GetFlightStatus(ctx context.Context, flightNumber, date string) (*FlightStatusReply, error) {
	if flightNumber == "" {
		return nil, errors.BadRequest("INVALID_FLIGHT_NUMBER", "flight_number is required")
	}
	departure, err := parseDepartureDate(date)
	if err != nil {
		return nil, err
	}

	status, fromCache := s.flights.GetStatus(ctx, flightNumber, departure)
	return &FlightStatusReply{
		FlightNumber: flightNumber,
		Date:         departure.Format(departureDateLayout),
		Found:        status != nil,
		FromCache:    fromCache,
		Status:       status,
	}, nil
}

// GetBatchStatus resolves several flights in one call.
func (s *FlightService) GetBatchStatus(ctx context.Context, req *BatchStatusRequest) (*BatchStatusReply, error) {
	if len(req.Requests) == 0 {
		return nil, errors.BadRequest("EMPTY_BATCH", "requests must not be empty")
	}

	lookups := make([]flightdata.StatusRequest, 0, len(req.Requests))
	dates := make(map[string]string, len(req.Requests))
	for _, item := range req.Requests {
		if item.FlightNumber == "" {
			return nil, errors.BadRequest("INVALID_FLIGHT_NUMBER", "flight_number is required on every request")
		}
		departure, err := parseDepartureDate(item.Date)
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, flightdata.StatusRequest{
			FlightNumber:  item.FlightNumber,
			DepartureDate: departure,
		})
		dates[item.FlightNumber] = departure.Format(departureDateLayout)
	}

	statuses, _ := s.flights.GetStatusBatch(ctx, lookups)

	reply := &BatchStatusReply{Results: make(map[string]*FlightStatusReply, len(statuses))}
	for flightNumber, status := range statuses {
		reply.Results[flightNumber] = &FlightStatusReply{
			FlightNumber: flightNumber,
			Date:         dates[flightNumber],
			Found:        status != nil,
			Status:       status,
		}
	}
	return reply, nil
}

// ListProviders reports provider metrics, breaker state, quota usage and
// masked configuration.
func (s *FlightService) ListProviders(ctx context.Context) (*ProvidersReply, error) {
	stats := s.flights.ProviderStats()

	reply := &ProvidersReply{Providers: make([]*ProviderReport, 0, len(s.providers))}
	for _, pc := range s.providers {
		report := &ProviderReport{
			Name:     pc.Name,
			Type:     pc.Type,
			Priority: pc.Priority,
			BaseURL:  pc.BaseURL,
		}

		if meta, err := metadata.Parse(pc.Metadata); err == nil {
			report.Metadata = meta.MaskSensitive()
		}

		if info, ok := stats.Providers[pc.Name]; ok {
			report.Info = &info
		}
		if breaker, ok := stats.CircuitBreakers[pc.Name]; ok {
			report.Breaker = &breaker
		}
		if perf, ok := stats.PerformanceSummary[pc.Name]; ok {
			report.Performance = &perf
		}

		minute, day, inFlight := s.quota.Usage(ctx, pc.Name)
		report.QuotaUsage = &QuotaUsage{
			MinuteCount:   minute,
			DayCount:      day,
			InFlightCount: inFlight,
			MinuteLimit:   int64(pc.RequestsPerMinute),
			DayLimit:      int64(pc.RequestsPerDay),
		}

		reply.Providers = append(reply.Providers, report)
	}
	return reply, nil
}

// RunHealthCheck probes all providers immediately.
func (s *FlightService) RunHealthCheck(ctx context.Context) (*HealthCheckReply, error) {
	return &HealthCheckReply{Results: s.flights.RunHealthCheck(ctx)}, nil
}

// ResetProvider closes a provider's circuit breaker.
func (s *FlightService) ResetProvider(_ context.Context, name string) (*ResetProviderReply, error) {
	if name == "" {
		return nil, errors.BadRequest("INVALID_PROVIDER", "provider name is required")
	}
	reset := s.flights.ResetProvider(name)
	if !reset {
		return nil, errors.NotFound("PROVIDER_NOT_FOUND", "unknown provider: "+name)
	}
	return &ResetProviderReply{Provider: name, Reset: true}, nil
}
