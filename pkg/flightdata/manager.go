package flightdata

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	pkglog "AeroSentry/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

const (
	// performanceWindow caps the per-provider confidence history.
	performanceWindow = 100
	// healthCheckDedupWindow suppresses repeat health checks for a provider
	// that was probed recently.
	healthCheckDedupWindow = time.Minute
	// fallbackBatchSize bounds how many per-flight fallback lookups run
	// concurrently when a batch request fails.
	fallbackBatchSize = 10

	// Batch provider scoring: success rate dominates, response speed breaks
	// near-ties. Response times are capped so a single fast outlier cannot
	// dwarf the success component.
	successWeight          = 0.7
	speedWeight            = 0.3
	responseTimeCapSeconds = 10.0
)

// Config tunes failover behavior. Zero fields fall back to the defaults.
type Config struct {
	// MaxRetriesPerProvider is the total number of attempts against one
	// provider before failing over, including the first.
	MaxRetriesPerProvider int
	// RetryBackoff is the wait before the second attempt after a timeout.
	// It doubles with each further attempt.
	RetryBackoff time.Duration
	// BreakerThreshold is the consecutive failure count that opens a
	// provider's circuit breaker.
	BreakerThreshold int
	// BreakerCooldown is how long an open breaker blocks a provider before
	// the next call is allowed through as a probe.
	BreakerCooldown time.Duration
	// DegradedRetryInterval is how long a degraded provider is left alone
	// after its last health check before the manager tries it again.
	DegradedRetryInterval time.Duration
}

// DefaultConfig returns the stock failover tuning.
func DefaultConfig() Config {
	return Config{
		MaxRetriesPerProvider: 2,
		RetryBackoff:          time.Second,
		BreakerThreshold:      5,
		BreakerCooldown:       5 * time.Minute,
		DegradedRetryInterval: 10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRetriesPerProvider <= 0 {
		c.MaxRetriesPerProvider = def.MaxRetriesPerProvider
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = def.BreakerThreshold
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = def.BreakerCooldown
	}
	if c.DegradedRetryInterval <= 0 {
		c.DegradedRetryInterval = def.DegradedRetryInterval
	}
	return c
}

// ProviderInfo describes one provider in a stats report.
type ProviderInfo struct {
	Priority    int             `json:"priority"`
	Status      ProviderStatus  `json:"status"`
	IsAvailable bool            `json:"is_available"`
	Metrics     MetricsSnapshot `json:"metrics"`
}

// PerformanceSummary aggregates the recent confidence scores of one provider.
type PerformanceSummary struct {
	AverageConfidence float64 `json:"average_confidence"`
	RecentOperations  int     `json:"recent_operations"`
}

// ProviderStats is a full report over all registered providers.
type ProviderStats struct {
	Providers          map[string]ProviderInfo       `json:"providers"`
	CircuitBreakers    map[string]BreakerSnapshot    `json:"circuit_breakers"`
	PerformanceSummary map[string]PerformanceSummary `json:"performance_summary"`
}

// FailoverManager routes flight status lookups across multiple providers.
// Providers are tried in descending priority order; each provider is guarded
// by its own circuit breaker owned by the manager. Lookups never return an
// error: when every provider is exhausted the caller gets nil and the
// failure is logged and published to the event sink.
type FailoverManager struct {
	mu              sync.Mutex
	providers       []FlightDataProvider
	breakers        map[string]*CircuitBreaker
	lastHealthCheck map[string]time.Time
	performance     map[string][]float64

	cfg  Config
	log  *pkglog.LogHelper
	sink EventSink

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFailoverManager builds a manager over the given providers. The sink may
// be nil when nobody consumes failover events.
func NewFailoverManager(providers []FlightDataProvider, cfg Config, sink EventSink, logger log.Logger) *FailoverManager {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = NoopSink{}
	}

	sorted := make([]FlightDataProvider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})

	m := &FailoverManager{
		providers:       sorted,
		breakers:        make(map[string]*CircuitBreaker, len(sorted)),
		lastHealthCheck: make(map[string]time.Time, len(sorted)),
		performance:     make(map[string][]float64, len(sorted)),
		cfg:             cfg,
		log:             pkglog.NewLogHelper(logger),
		sink:            sink,
		now:             time.Now,
		sleep:           sleepContext,
	}
	for _, p := range sorted {
		m.breakers[p.Name()] = NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}

	m.log.Startup("failover manager initialized", "providers", len(sorted))
	return m
}

// GetFlightStatus fetches the status of one flight, trying providers in
// priority order with per-provider retries and circuit breaker protection.
// It returns nil when every provider is exhausted; provider failures never
// surface to the caller.
func (m *FailoverManager) GetFlightStatus(ctx context.Context, flightNumber string, departureDate time.Time) *FlightStatus {
	var lastErr error

	for _, provider := range m.availableProviders() {
		name := provider.Name()

	attempts:
		for attempt := 0; attempt < m.cfg.MaxRetriesPerProvider; attempt++ {
			start := time.Now()
			result, err := provider.GetFlightStatus(ctx, flightNumber, departureDate)
			elapsed := time.Since(start)

			if err == nil {
				if result != nil {
					m.recordSuccess(ctx, name)
					m.observeConfidence(name, result.ConfidenceScore)
					fetchAttempts.WithLabelValues(name, outcomeSuccess).Inc()
					providerResponseSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
					m.log.FetchCompleted(ctx, name, flightNumber, elapsed.Milliseconds(), result.ConfidenceScore)
					return result
				}
				fetchAttempts.WithLabelValues(name, outcomeNoData).Inc()
				m.log.Debugw("provider returned no data",
					"type", "provider",
					"provider", name,
					"flight_number", flightNumber,
					"attempt", attempt+1)
				continue
			}

			lastErr = err
			switch {
			case IsRateLimit(err):
				fetchAttempts.WithLabelValues(name, outcomeRateLimited).Inc()
				m.recordFailure(ctx, name, err)
				m.log.RateLimit("provider rate limited, trying next provider",
					"provider", name,
					"flight_number", flightNumber,
					"error", err.Error())
				break attempts

			case IsTimeout(err):
				fetchAttempts.WithLabelValues(name, outcomeTimeout).Inc()
				if attempt < m.cfg.MaxRetriesPerProvider-1 {
					backoff := m.cfg.RetryBackoff << uint(attempt)
					m.log.Warnw("provider timed out, backing off",
						"type", "provider",
						"provider", name,
						"flight_number", flightNumber,
						"attempt", attempt+1,
						"backoff", backoff.String())
					if err := m.sleep(ctx, backoff); err != nil {
						return nil
					}
					continue
				}
				m.recordFailure(ctx, name, err)
				m.log.Failover("provider timed out, failing over",
					"provider", name,
					"flight_number", flightNumber,
					"attempts", m.cfg.MaxRetriesPerProvider)

			default:
				fetchAttempts.WithLabelValues(name, outcomeError).Inc()
				m.recordFailure(ctx, name, err)
				m.log.Errorw("provider request failed",
					"type", "provider",
					"provider", name,
					"flight_number", flightNumber,
					"error", err.Error())
				break attempts
			}
		}
	}

	kvs := []interface{}{
		"msg", "all providers failed",
		"type", "failover",
		"flight_number", flightNumber,
	}
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
		kvs = append(kvs, "last_error", msg)
	}
	m.log.Errorw(kvs...)
	m.publish(ctx, Event{Type: EventAllProvidersFailed, Flight: flightNumber, Message: msg})
	return nil
}

// GetMultipleFlights resolves a batch of flights. The whole batch goes to
// the best performing available provider first; if that fails, each flight
// falls back to individual failover lookups in bounded concurrent chunks.
// The result maps every requested flight number, with nil for flights no
// provider could resolve.
func (m *FailoverManager) GetMultipleFlights(ctx context.Context, requests []StatusRequest) map[string]*FlightStatus {
	results := make(map[string]*FlightStatus, len(requests))
	if len(requests) == 0 {
		return results
	}

	if best := m.selectBestProvider(); best != nil {
		name := best.Name()
		m.log.Provider("dispatching batch request",
			"provider", name,
			"flights", len(requests))

		batch, err := best.GetMultipleFlights(ctx, requests)
		if err == nil {
			m.recordSuccess(ctx, name)
			return batch
		}
		m.recordFailure(ctx, name, err)
		m.log.Failover("batch request failed, falling back to individual lookups",
			"provider", name,
			"flights", len(requests),
			"error", err.Error())
		batchFallbacks.Inc()
	} else {
		m.log.Failover("no provider available for batch request, resolving individually",
			"flights", len(requests))
	}

	var rmu sync.Mutex
	for start := 0; start < len(requests); start += fallbackBatchSize {
		end := min(start+fallbackBatchSize, len(requests))

		g, gctx := errgroup.WithContext(ctx)
		for _, req := range requests[start:end] {
			g.Go(func() error {
				status := m.GetFlightStatus(gctx, req.FlightNumber, req.DepartureDate)
				rmu.Lock()
				results[req.FlightNumber] = status
				rmu.Unlock()
				// Lookup failures are captured as nil results so one bad
				// flight never cancels its siblings.
				return nil
			})
		}
		_ = g.Wait()
	}
	return results
}

// HealthCheckAll probes every provider concurrently, skipping providers that
// were checked within the last minute. A healthy result resets the
// provider's circuit breaker if it was open.
func (m *FailoverManager) HealthCheckAll(ctx context.Context) map[string]bool {
	m.mu.Lock()
	providers := make([]FlightDataProvider, len(m.providers))
	copy(providers, m.providers)
	m.mu.Unlock()

	results := make(map[string]bool, len(providers))
	var rmu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, provider := range providers {
		name := provider.Name()

		m.mu.Lock()
		last, checked := m.lastHealthCheck[name]
		m.mu.Unlock()
		if checked && m.now().Sub(last) < healthCheckDedupWindow {
			healthy := provider.Status() == StatusAvailable
			rmu.Lock()
			results[name] = healthy
			rmu.Unlock()
			setProviderUp(name, healthy)
			continue
		}

		g.Go(func() error {
			err := provider.HealthCheck(gctx)

			m.mu.Lock()
			m.lastHealthCheck[name] = m.now()
			m.mu.Unlock()

			healthy := err == nil
			if healthy {
				breaker := m.breakerFor(name)
				if breaker.Snapshot().IsOpen {
					breaker.Reset()
					breakerTransitions.WithLabelValues(name, transitionReset).Inc()
					m.log.Health("provider recovered, circuit breaker reset", "provider", name)
					m.publish(gctx, Event{Type: EventProviderRecovered, Provider: name})
				}
			} else {
				m.log.Warnw("provider health check failed",
					"type", "health",
					"provider", name,
					"error", err.Error())
			}
			setProviderUp(name, healthy)

			rmu.Lock()
			results[name] = healthy
			rmu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Stats reports provider metrics, circuit breaker state and recent
// confidence history for every registered provider.
func (m *FailoverManager) Stats() ProviderStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ProviderStats{
		Providers:          make(map[string]ProviderInfo, len(m.providers)),
		CircuitBreakers:    make(map[string]BreakerSnapshot, len(m.providers)),
		PerformanceSummary: make(map[string]PerformanceSummary, len(m.providers)),
	}

	for _, provider := range m.providers {
		name := provider.Name()
		status := provider.Status()

		stats.Providers[name] = ProviderInfo{
			Priority:    provider.Priority(),
			Status:      status,
			IsAvailable: status == StatusAvailable,
			Metrics:     provider.Metrics(),
		}
		if breaker, ok := m.breakers[name]; ok {
			stats.CircuitBreakers[name] = breaker.Snapshot()
		}

		summary := PerformanceSummary{}
		if history := m.performance[name]; len(history) > 0 {
			var sum float64
			for _, score := range history {
				sum += score
			}
			summary.AverageConfidence = sum / float64(len(history))
			summary.RecentOperations = len(history)
		}
		stats.PerformanceSummary[name] = summary
	}
	return stats
}

// AddProvider registers a new provider at runtime and re-sorts the failover
// order. Registering a name that already exists resets its breaker state.
func (m *FailoverManager) AddProvider(provider FlightDataProvider) {
	name := provider.Name()

	m.mu.Lock()
	m.providers = append(m.providers, provider)
	sort.SliceStable(m.providers, func(i, j int) bool {
		return m.providers[i].Priority() > m.providers[j].Priority()
	})
	m.breakers[name] = NewCircuitBreaker(m.cfg.BreakerThreshold, m.cfg.BreakerCooldown)
	m.performance[name] = nil
	m.mu.Unlock()

	m.log.Provider("provider added", "provider", name, "priority", provider.Priority())
}

// RemoveProvider unregisters a provider and drops its breaker, health check
// and performance state. It reports whether the provider was registered.
func (m *FailoverManager) RemoveProvider(name string) bool {
	m.mu.Lock()
	found := false
	kept := m.providers[:0]
	for _, p := range m.providers {
		if p.Name() == name {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	m.providers = kept
	delete(m.breakers, name)
	delete(m.performance, name)
	delete(m.lastHealthCheck, name)
	m.mu.Unlock()

	if found {
		m.log.Provider("provider removed", "provider", name)
	}
	return found
}

// ResetBreaker force-closes a provider's circuit breaker. It reports whether
// the provider was registered.
func (m *FailoverManager) ResetBreaker(name string) bool {
	m.mu.Lock()
	breaker, ok := m.breakers[name]
	m.mu.Unlock()
	if !ok {
		return false
	}

	breaker.Reset()
	breakerTransitions.WithLabelValues(name, transitionReset).Inc()
	m.log.Breaker("circuit breaker reset manually", "provider", name)
	return true
}

// availableProviders returns the providers eligible for the next lookup in
// priority order. Providers behind an open breaker are skipped, and degraded
// providers are only included once DegradedRetryInterval has passed since
// their last health check. Unavailable and rate limited providers stay in
// the rotation; they decline requests themselves by returning no data.
func (m *FailoverManager) availableProviders() []FlightDataProvider {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := make([]FlightDataProvider, 0, len(m.providers))
	for _, provider := range m.providers {
		name := provider.Name()
		breaker, ok := m.breakers[name]
		if ok && !breaker.Allow() {
			m.log.Debugw("circuit breaker open, skipping provider",
				"type", "breaker",
				"provider", name)
			continue
		}
		if provider.Status() == StatusDegraded {
			last, checked := m.lastHealthCheck[name]
			if !checked || m.now().Sub(last) <= m.cfg.DegradedRetryInterval {
				continue
			}
		}
		available = append(available, provider)
	}
	return available
}

// selectBestProvider picks the provider for a batch request: the available
// provider with the best composite of success rate and response speed, or
// the highest priority one when nobody has history yet. Returns nil when no
// provider is available.
func (m *FailoverManager) selectBestProvider() FlightDataProvider {
	available := m.availableProviders()
	if len(available) == 0 {
		return nil
	}

	var best FlightDataProvider
	bestScore := 0.0
	for _, provider := range available {
		snap := provider.Metrics()
		if snap.TotalRequests == 0 {
			continue
		}

		score := snap.SuccessRate * successWeight
		if rt := snap.AverageResponseTime.Seconds(); rt > 0 {
			score += speedWeight * (1 - math.Min(rt, responseTimeCapSeconds)/responseTimeCapSeconds)
		} else {
			score += speedWeight
		}

		if score > bestScore {
			bestScore = score
			best = provider
		}
	}
	if best == nil {
		best = available[0]
	}
	return best
}

func (m *FailoverManager) breakerFor(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	breaker, ok := m.breakers[name]
	if !ok {
		breaker = NewCircuitBreaker(m.cfg.BreakerThreshold, m.cfg.BreakerCooldown)
		m.breakers[name] = breaker
	}
	return breaker
}

func (m *FailoverManager) recordSuccess(ctx context.Context, name string) {
	if m.breakerFor(name).RecordSuccess() {
		breakerTransitions.WithLabelValues(name, transitionClosed).Inc()
		m.log.Health("circuit breaker closed after successful call", "provider", name)
		m.publish(ctx, Event{Type: EventBreakerRecovered, Provider: name})
	}
}

func (m *FailoverManager) recordFailure(ctx context.Context, name string, cause error) {
	breaker := m.breakerFor(name)
	if breaker.RecordFailure() {
		breakerTransitions.WithLabelValues(name, transitionOpened).Inc()
		m.log.Breaker("circuit breaker opened",
			"provider", name,
			"failures", breaker.Snapshot().FailureCount,
			"error", cause.Error())
		m.publish(ctx, Event{Type: EventBreakerOpened, Provider: name, Message: cause.Error()})
	}
}

func (m *FailoverManager) observeConfidence(name string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.performance[name], score)
	if len(history) > performanceWindow {
		history = history[len(history)-performanceWindow:]
	}
	m.performance[name] = history
}

func (m *FailoverManager) publish(ctx context.Context, event Event) {
	if m.sink == nil {
		return
	}
	event.At = m.now()
	m.sink.Publish(ctx, event)
}

func setProviderUp(name string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	providerUp.WithLabelValues(name).Set(value)
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
