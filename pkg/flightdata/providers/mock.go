package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"AeroSentry/pkg/flightdata"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// DefaultMockName is the provider name used when none is configured.
	DefaultMockName = "MockProvider"
	// DefaultMockPriority ranks the mock below every real source.
	DefaultMockPriority = 1
	// DefaultMockTimeout bounds one simulated lookup.
	DefaultMockTimeout = 5 * time.Second

	// healthCheckFailureRate is the chance a health check fails when error
	// simulation is on.
	healthCheckFailureRate = 0.05
	// mockBatchDelayPerFlight simulates batch efficiency: cheaper per flight
	// than individual lookups, capped at one second total.
	mockBatchDelayPerFlight = 50 * time.Millisecond
	maxMockBatchDelay       = time.Second
)

// Outcome probabilities for flights without a predefined scenario.
const (
	onTimeShare    = 0.70
	delayedShare   = 0.15
	cancelledShare = 0.10
	// the remaining 5% is diverted
)

var (
	mockGates     = []string{"A1", "A12", "B5", "B23", "C7", "C14", "D3", "D18"}
	mockTerminals = []string{"1", "2", "3", "North", "South", "International"}
)

// Scenario scripts the outcome for one flight number in the mock provider.
type Scenario struct {
	Status       string
	Disrupted    bool
	Type         flightdata.DisruptionType
	DelayMinutes int
	// Err makes every lookup for this flight fail with a provider error.
	Err bool
}

// defaultScenarios are the fixed flights used across tests and demos.
func defaultScenarios() map[string]Scenario {
	return map[string]Scenario{
		"AA123": {Status: "ON TIME"},
		"UA456": {Status: "DELAYED", Disrupted: true, Type: flightdata.DisruptionDelayed, DelayMinutes: 45},
		"DL789": {Status: "CANCELLED", Disrupted: true, Type: flightdata.DisruptionCancelled},
		"SW111": {Status: "DIVERTED", Disrupted: true, Type: flightdata.DisruptionDiverted},
		"AA999": {Status: "ERROR", Err: true},
	}
}

// MockConfig configures the simulated provider. Zero fields fall back to the
// package defaults.
type MockConfig struct {
	Name     string
	Priority int
	// FailureRate is the probability (0.0-1.0) that a lookup fails with a
	// simulated provider error. Zero disables error simulation.
	FailureRate float64
	// ResponseDelay is the simulated base network latency per lookup, with
	// up to 500ms of jitter on top. Zero disables delay simulation.
	ResponseDelay time.Duration
	// Seed makes the jitter and error rolls reproducible. Zero seeds from
	// the clock.
	Seed int64
}

// MockProvider simulates a flight data source for development and tests.
// Flights with a scripted scenario always behave the same way; everything
// else gets a pseudo-random outcome derived from the flight number and date,
// so repeated lookups for the same flight agree with each other.
type MockProvider struct {
	*BaseProvider

	failureRate   float64
	responseDelay time.Duration

	mu        sync.Mutex
	scenarios map[string]Scenario
	rng       *rand.Rand
}

// NewMockProvider builds the mock provider with the default scenario table.
func NewMockProvider(cfg MockConfig, logger log.Logger) *MockProvider {
	if cfg.Name == "" {
		cfg.Name = DefaultMockName
	}
	if cfg.Priority <= 0 {
		cfg.Priority = DefaultMockPriority
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &MockProvider{
		BaseProvider:  NewBaseProvider(cfg.Name, cfg.Priority, DefaultMockTimeout, logger),
		failureRate:   cfg.FailureRate,
		responseDelay: cfg.ResponseDelay,
		scenarios:     defaultScenarios(),
		rng:           rand.New(rand.NewSource(cfg.Seed)), // #nosec G404 -- simulation only
	}
}

// GetFlightStatus returns simulated status data for one flight.
func (p *MockProvider) GetFlightStatus(ctx context.Context, flightNumber string, departureDate time.Time) (*flightdata.FlightStatus, error) {
	start := time.Now()

	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}

	if p.failureRate > 0 && p.roll() < p.failureRate {
		msg := "simulated random error"
		p.metrics.RecordFailure(msg)
		return nil, &flightdata.ProviderError{Provider: p.Name(), Message: msg}
	}

	scenario, scripted := p.scenarioFor(flightNumber)
	if scripted && scenario.Err {
		msg := fmt.Sprintf("mock error for %s", flightNumber)
		p.metrics.RecordFailure(msg)
		return nil, &flightdata.ProviderError{Provider: p.Name(), Message: msg}
	}
	if !scripted {
		scenario = randomScenario(flightNumber, departureDate)
	}

	status := p.buildStatus(flightNumber, departureDate, scenario)
	p.metrics.RecordSuccess(time.Since(start))
	return status, nil
}

// GetMultipleFlights resolves a batch of simulated lookups. Batch processing
// skips per-flight latency and charges a single bounded delay instead.
func (p *MockProvider) GetMultipleFlights(ctx context.Context, requests []flightdata.StatusRequest) (map[string]*flightdata.FlightStatus, error) {
	if p.responseDelay > 0 {
		delay := time.Duration(len(requests)) * mockBatchDelayPerFlight
		if delay > maxMockBatchDelay {
			delay = maxMockBatchDelay
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &flightdata.TimeoutError{Provider: p.Name(), Timeout: p.Timeout()}
		case <-timer.C:
		}
	}

	results := make(map[string]*flightdata.FlightStatus, len(requests))
	for _, req := range requests {
		start := time.Now()

		scenario, scripted := p.scenarioFor(req.FlightNumber)
		switch {
		case scripted && scenario.Err:
			p.metrics.RecordFailure(fmt.Sprintf("mock error for %s", req.FlightNumber))
			results[req.FlightNumber] = nil
			continue
		case !scripted:
			scenario = randomScenario(req.FlightNumber, req.DepartureDate)
		}

		results[req.FlightNumber] = p.buildStatus(req.FlightNumber, req.DepartureDate, scenario)
		p.metrics.RecordSuccess(time.Since(start))
	}
	return results, nil
}

// HealthCheck simulates a health probe. With error simulation enabled a small
// share of checks fail so failover paths get exercised.
func (p *MockProvider) HealthCheck(ctx context.Context) error {
	if p.responseDelay > 0 {
		timer := time.NewTimer(100 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if p.failureRate > 0 && p.roll() < healthCheckFailureRate {
		p.SetStatus(flightdata.StatusUnavailable, "mock health check failed")
		return &flightdata.ProviderError{Provider: p.Name(), Message: "mock health check failed"}
	}

	p.SetStatus(flightdata.StatusAvailable, "")
	return nil
}

// AddScenario scripts the outcome for a flight number, overriding the random
// generator. Used by tests and demo tooling.
func (p *MockProvider) AddScenario(flightNumber string, scenario Scenario) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenarios[flightNumber] = scenario
}

// SetFailureRate updates the simulated error probability, clamped to [0, 1].
func (p *MockProvider) SetFailureRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	p.failureRate = rate
}

func (p *MockProvider) scenarioFor(flightNumber string) (Scenario, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scenarios[flightNumber]
	return s, ok
}

func (p *MockProvider) roll() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func (p *MockProvider) simulateLatency(ctx context.Context) error {
	if p.responseDelay <= 0 {
		return nil
	}

	p.mu.Lock()
	jitter := time.Duration(p.rng.Int63n(int64(500 * time.Millisecond)))
	p.mu.Unlock()

	timer := time.NewTimer(p.responseDelay + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &flightdata.TimeoutError{Provider: p.Name(), Timeout: p.Timeout()}
	case <-timer.C:
		return nil
	}
}

// buildStatus renders one scenario into a full status record. Gate, terminal,
// flight duration and confidence come from a flight-seeded generator so the
// same flight and date reproduce the same record.
func (p *MockProvider) buildStatus(flightNumber string, departureDate time.Time, scenario Scenario) *flightdata.FlightStatus {
	rng := seededRand(flightNumber, departureDate)
	now := time.Now().UTC()

	// Assume a flight between 1.5 and 4 hours.
	duration := time.Duration(90+rng.Intn(151)) * time.Minute
	scheduledArrival := departureDate.Add(duration)

	var actualDeparture, actualArrival *time.Time
	switch {
	case scenario.Disrupted && scenario.Type == flightdata.DisruptionDelayed:
		dep := departureDate.Add(time.Duration(scenario.DelayMinutes) * time.Minute)
		arr := scheduledArrival.Add(time.Duration(scenario.DelayMinutes) * time.Minute)
		actualDeparture, actualArrival = &dep, &arr
	case scenario.Disrupted && scenario.Type == flightdata.DisruptionDiverted:
		dep := departureDate
		arr := scheduledArrival.Add(time.Duration(30+rng.Intn(91)) * time.Minute)
		actualDeparture, actualArrival = &dep, &arr
	case !scenario.Disrupted && rng.Float64() < 0.3:
		// Slightly early or late but inside the tolerance window.
		variance := time.Duration(rng.Intn(26)-10) * time.Minute
		dep := departureDate.Add(variance)
		arr := scheduledArrival.Add(variance)
		actualDeparture, actualArrival = &dep, &arr
	}

	gate := ""
	if rng.Float64() < 0.8 {
		gate = mockGates[rng.Intn(len(mockGates))]
	}
	terminal := ""
	if rng.Float64() < 0.9 {
		terminal = mockTerminals[rng.Intn(len(mockTerminals))]
	}

	return &flightdata.FlightStatus{
		FlightID:           fmt.Sprintf("%s_%s", flightNumber, departureDate.Format("20060102")),
		Status:             scenario.Status,
		DelayMinutes:       scenario.DelayMinutes,
		ScheduledDeparture: departureDate,
		ActualDeparture:    actualDeparture,
		ScheduledArrival:   scheduledArrival,
		ActualArrival:      actualArrival,
		Gate:               gate,
		Terminal:           terminal,
		IsDisrupted:        scenario.Disrupted,
		DisruptionType:     scenario.Type,
		LastUpdated:        now,
		Source:             p.Name(),
		ConfidenceScore:    0.85 + rng.Float64()*0.15,
		Raw: map[string]interface{}{
			"mock":         true,
			"status":       scenario.Status,
			"generated_at": now.Format(time.RFC3339),
		},
	}
}

// randomScenario derives a stable outcome from the flight number and date:
// 70% on time, 15% delayed 15-180 minutes, 10% cancelled, 5% diverted.
func randomScenario(flightNumber string, departureDate time.Time) Scenario {
	rng := seededRand(flightNumber, departureDate)

	switch roll := rng.Float64(); {
	case roll < onTimeShare:
		return Scenario{Status: "ON TIME"}
	case roll < onTimeShare+delayedShare:
		return Scenario{
			Status:       "DELAYED",
			Disrupted:    true,
			Type:         flightdata.DisruptionDelayed,
			DelayMinutes: 15 + rng.Intn(166),
		}
	case roll < onTimeShare+delayedShare+cancelledShare:
		return Scenario{Status: "CANCELLED", Disrupted: true, Type: flightdata.DisruptionCancelled}
	default:
		return Scenario{Status: "DIVERTED", Disrupted: true, Type: flightdata.DisruptionDiverted}
	}
}

func seededRand(flightNumber string, departureDate time.Time) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(flightNumber))
	_, _ = h.Write([]byte(departureDate.Format("20060102")))
	return rand.New(rand.NewSource(int64(h.Sum64()))) // #nosec G404 -- simulation only
}
