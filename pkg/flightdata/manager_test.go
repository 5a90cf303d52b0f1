package flightdata

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider is a scriptable provider for manager tests. Each call pops
// the next scripted outcome; when the script runs out the last entry repeats.
type fakeProvider struct {
	name     string
	priority int
	status   ProviderStatus
	metrics  *MetricsRecorder

	mu       sync.Mutex
	script   []fakeOutcome
	calls    int
	batchErr error
	health   error
}

type fakeOutcome struct {
	status *FlightStatus
	err    error
}

func newFakeProvider(name string, priority int, script ...fakeOutcome) *fakeProvider {
	return &fakeProvider{
		name:     name,
		priority: priority,
		status:   StatusAvailable,
		metrics:  NewMetricsRecorder(),
		script:   script,
	}
}

func okOutcome(source string) fakeOutcome {
	return fakeOutcome{status: &FlightStatus{FlightID: "AA100_20260301", Source: source, ConfidenceScore: 0.9}}
}

func (f *fakeProvider) Name() string           { return f.name }
func (f *fakeProvider) Priority() int          { return f.priority }
func (f *fakeProvider) Status() ProviderStatus { return f.status }

func (f *fakeProvider) GetFlightStatus(context.Context, string, time.Time) (*FlightStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++

	out := f.script[idx]
	if out.err != nil {
		f.metrics.RecordFailure(out.err.Error())
		return nil, out.err
	}
	f.metrics.RecordSuccess(10 * time.Millisecond)
	return out.status, nil
}

func (f *fakeProvider) GetMultipleFlights(ctx context.Context, requests []StatusRequest) (map[string]*FlightStatus, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	results := make(map[string]*FlightStatus, len(requests))
	for _, req := range requests {
		status, err := f.GetFlightStatus(ctx, req.FlightNumber, req.DepartureDate)
		if err != nil {
			status = nil
		}
		results[req.FlightNumber] = status
	}
	return results, nil
}

func (f *fakeProvider) HealthCheck(context.Context) error {
	if f.health == nil {
		f.status = StatusAvailable
	}
	return f.health
}

func (f *fakeProvider) Metrics() MetricsSnapshot { return f.metrics.Snapshot() }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingSink captures published failover events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) byType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestManager(cfg Config, sink EventSink, providers ...FlightDataProvider) *FailoverManager {
	m := NewFailoverManager(providers, cfg, sink, log.NewStdLogger(os.Stdout))
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

// Test providers are attempted in descending priority order
func TestFailoverManager_PriorityOrder(t *testing.T) {
	low := newFakeProvider("low", 1, okOutcome("low"))
	high := newFakeProvider("high", 10, okOutcome("high"))
	mid := newFakeProvider("mid", 5, okOutcome("mid"))

	// Registration order deliberately scrambled.
	m := newTestManager(Config{}, nil, low, high, mid)

	status := m.GetFlightStatus(context.Background(), "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, "high", status.Source)
	assert.Equal(t, 1, high.callCount())
	assert.Equal(t, 0, mid.callCount())
	assert.Equal(t, 0, low.callCount())
}

// Test a failing primary fails over to the next provider
func TestFailoverManager_FailsOverOnError(t *testing.T) {
	primary := newFakeProvider("primary", 10, fakeOutcome{err: &ProviderError{Provider: "primary", Message: "boom"}})
	secondary := newFakeProvider("secondary", 5, okOutcome("secondary"))

	m := newTestManager(Config{}, nil, primary, secondary)

	status := m.GetFlightStatus(context.Background(), "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, "secondary", status.Source)
	// Generic provider errors are never retried against the same provider.
	assert.Equal(t, 1, primary.callCount())
}

// Test a rate limited provider is never retried within one lookup
func TestFailoverManager_RateLimitSkipsRetry(t *testing.T) {
	limited := newFakeProvider("limited", 10, fakeOutcome{err: &RateLimitError{Provider: "limited", RetryAfter: time.Minute}})
	backup := newFakeProvider("backup", 1, okOutcome("backup"))

	m := newTestManager(Config{MaxRetriesPerProvider: 3}, nil, limited, backup)

	status := m.GetFlightStatus(context.Background(), "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, "backup", status.Source)
	assert.Equal(t, 1, limited.callCount())
}

// Test timeouts are retried with backoff up to the configured limit
func TestFailoverManager_TimeoutRetries(t *testing.T) {
	flaky := newFakeProvider("flaky", 10,
		fakeOutcome{err: &TimeoutError{Provider: "flaky", Timeout: time.Second}},
		okOutcome("flaky"),
	)

	var waits []time.Duration
	m := newTestManager(Config{MaxRetriesPerProvider: 2}, nil, flaky)
	m.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	status := m.GetFlightStatus(context.Background(), "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, "flaky", status.Source)
	assert.Equal(t, 2, flaky.callCount())
	require.Len(t, waits, 1)
	assert.Equal(t, time.Second, waits[0])
}

// Test timeout backoff doubles between attempts
func TestFailoverManager_TimeoutBackoffDoubles(t *testing.T) {
	alwaysTimeout := newFakeProvider("slow", 10, fakeOutcome{err: &TimeoutError{Provider: "slow", Timeout: time.Second}})

	var waits []time.Duration
	m := newTestManager(Config{MaxRetriesPerProvider: 3, RetryBackoff: time.Second}, nil, alwaysTimeout)
	m.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	status := m.GetFlightStatus(context.Background(), "AA100", time.Now())
	assert.Nil(t, status)
	assert.Equal(t, 3, alwaysTimeout.callCount())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

// Test total exhaustion returns nil and publishes an event, never an error
func TestFailoverManager_AllProvidersExhausted(t *testing.T) {
	sink := &recordingSink{}
	bad := newFakeProvider("bad", 10, fakeOutcome{err: &ProviderError{Provider: "bad", Message: "down"}})

	m := newTestManager(Config{}, sink, bad)

	status := m.GetFlightStatus(context.Background(), "AA100", time.Now())
	assert.Nil(t, status)
	require.Len(t, sink.byType(EventAllProvidersFailed), 1)
	assert.Equal(t, "AA100", sink.byType(EventAllProvidersFailed)[0].Flight)
}

// Test the breaker opens after threshold consecutive failures and the
// provider is then skipped without being called
func TestFailoverManager_BreakerOpensAndSkips(t *testing.T) {
	sink := &recordingSink{}
	failing := newFakeProvider("failing", 10, fakeOutcome{err: &ProviderError{Provider: "failing", Message: "down"}})
	healthy := newFakeProvider("healthy", 5, okOutcome("healthy"))

	m := newTestManager(Config{BreakerThreshold: 5}, sink, failing, healthy)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		status := m.GetFlightStatus(ctx, "AA100", time.Now())
		require.NotNil(t, status)
		assert.Equal(t, "healthy", status.Source)
	}
	assert.Equal(t, 5, failing.callCount())
	assert.True(t, m.Stats().CircuitBreakers["failing"].IsOpen)
	require.Len(t, sink.byType(EventBreakerOpened), 1)

	// Sixth lookup: failing provider is skipped entirely.
	status := m.GetFlightStatus(ctx, "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, 5, failing.callCount())
}

// Test an open breaker allows a probe after the cooldown and a success
// closes it again
func TestFailoverManager_BreakerHalfOpenProbe(t *testing.T) {
	sink := &recordingSink{}
	flaky := newFakeProvider("flaky", 10,
		fakeOutcome{err: &ProviderError{Provider: "flaky", Message: "down"}},
		okOutcome("flaky"),
	)

	m := newTestManager(Config{BreakerThreshold: 1, BreakerCooldown: 5 * time.Minute}, sink, flaky)

	ctx := context.Background()
	assert.Nil(t, m.GetFlightStatus(ctx, "AA100", time.Now()))
	require.True(t, m.Stats().CircuitBreakers["flaky"].IsOpen)

	// Cooldown not elapsed: provider stays skipped.
	assert.Nil(t, m.GetFlightStatus(ctx, "AA100", time.Now()))
	assert.Equal(t, 1, flaky.callCount())

	// Move the breaker clock past the cooldown.
	m.breakerFor("flaky").now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	status := m.GetFlightStatus(ctx, "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, "flaky", status.Source)
	snap := m.Stats().CircuitBreakers["flaky"]
	assert.False(t, snap.IsOpen)
	assert.Equal(t, 0, snap.FailureCount)
}

// Test batch lookups go to the provider with the best weighted score
func TestFailoverManager_BatchPicksBestProvider(t *testing.T) {
	// Higher priority but poor history.
	slow := newFakeProvider("slow", 10, okOutcome("slow"))
	slow.metrics.RecordFailure("x")
	slow.metrics.RecordFailure("x")
	slow.metrics.RecordSuccess(2 * time.Second)

	fast := newFakeProvider("fast", 1, okOutcome("fast"))
	fast.metrics.RecordSuccess(50 * time.Millisecond)
	fast.metrics.RecordSuccess(50 * time.Millisecond)

	m := newTestManager(Config{}, nil, slow, fast)

	results := m.GetMultipleFlights(context.Background(), []StatusRequest{
		{FlightNumber: "AA100", DepartureDate: time.Now()},
		{FlightNumber: "UA200", DepartureDate: time.Now()},
	})

	require.Len(t, results, 2)
	require.NotNil(t, results["AA100"])
	assert.Equal(t, "fast", results["AA100"].Source)
	assert.Equal(t, 0, slow.callCount())
}

// Test providers without history defer to priority order for batches
func TestFailoverManager_BatchNoHistoryUsesPriority(t *testing.T) {
	first := newFakeProvider("first", 10, okOutcome("first"))
	second := newFakeProvider("second", 1, okOutcome("second"))

	m := newTestManager(Config{}, nil, first, second)

	results := m.GetMultipleFlights(context.Background(), []StatusRequest{
		{FlightNumber: "AA100", DepartureDate: time.Now()},
	})
	require.NotNil(t, results["AA100"])
	assert.Equal(t, "first", results["AA100"].Source)
}

// Test a failed batch call falls back to per-flight failover lookups
func TestFailoverManager_BatchFallsBackPerFlight(t *testing.T) {
	broken := newFakeProvider("broken", 10, okOutcome("broken"))
	broken.metrics.RecordSuccess(10 * time.Millisecond)
	broken.batchErr = &ProviderError{Provider: "broken", Message: "batch unsupported"}
	// Per-flight lookups against the primary fail too, pushing singles to
	// the backup.
	broken.script = []fakeOutcome{{err: &ProviderError{Provider: "broken", Message: "down"}}}

	backup := newFakeProvider("backup", 1, okOutcome("backup"))

	m := newTestManager(Config{}, nil, broken, backup)

	requests := make([]StatusRequest, 0, 12)
	for _, fn := range []string{"AA1", "AA2", "AA3", "AA4", "AA5", "AA6", "AA7", "AA8", "AA9", "AA10", "AA11", "AA12"} {
		requests = append(requests, StatusRequest{FlightNumber: fn, DepartureDate: time.Now()})
	}

	results := m.GetMultipleFlights(context.Background(), requests)
	require.Len(t, results, 12)
	for fn, status := range results {
		require.NotNil(t, status, "flight %s should resolve via fallback", fn)
		assert.Equal(t, "backup", status.Source)
	}
}

// Test a healthy report from a health check resets an open breaker
func TestFailoverManager_HealthCheckResetsBreaker(t *testing.T) {
	sink := &recordingSink{}
	flaky := newFakeProvider("flaky", 10, fakeOutcome{err: &ProviderError{Provider: "flaky", Message: "down"}})

	m := newTestManager(Config{BreakerThreshold: 1}, sink, flaky)

	assert.Nil(t, m.GetFlightStatus(context.Background(), "AA100", time.Now()))
	require.True(t, m.Stats().CircuitBreakers["flaky"].IsOpen)

	results := m.HealthCheckAll(context.Background())
	assert.True(t, results["flaky"])
	assert.False(t, m.Stats().CircuitBreakers["flaky"].IsOpen)
	require.Len(t, sink.byType(EventProviderRecovered), 1)
}

// Test health checks inside the dedup window are skipped
func TestFailoverManager_HealthCheckDedup(t *testing.T) {
	p := newFakeProvider("p", 10, okOutcome("p"))
	m := newTestManager(Config{}, nil, p)

	m.HealthCheckAll(context.Background())
	// Second sweep right away: the provider was checked under a minute ago,
	// so the cached status is reported instead of probing again.
	results := m.HealthCheckAll(context.Background())
	assert.True(t, results["p"])
}

// Test AddProvider and RemoveProvider maintain the failover rotation
func TestFailoverManager_AddRemoveProvider(t *testing.T) {
	base := newFakeProvider("base", 1, okOutcome("base"))
	m := newTestManager(Config{}, nil, base)

	added := newFakeProvider("added", 10, okOutcome("added"))
	m.AddProvider(added)

	status := m.GetFlightStatus(context.Background(), "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, "added", status.Source)

	assert.True(t, m.RemoveProvider("added"))
	assert.False(t, m.RemoveProvider("added"))

	status = m.GetFlightStatus(context.Background(), "AA100", time.Now())
	require.NotNil(t, status)
	assert.Equal(t, "base", status.Source)
}

// Test ResetBreaker force-closes a provider's breaker
func TestFailoverManager_ResetBreaker(t *testing.T) {
	failing := newFakeProvider("failing", 10, fakeOutcome{err: &ProviderError{Provider: "failing", Message: "down"}})
	m := newTestManager(Config{BreakerThreshold: 1}, nil, failing)

	assert.Nil(t, m.GetFlightStatus(context.Background(), "AA100", time.Now()))
	require.True(t, m.Stats().CircuitBreakers["failing"].IsOpen)

	assert.True(t, m.ResetBreaker("failing"))
	assert.False(t, m.Stats().CircuitBreakers["failing"].IsOpen)
	assert.False(t, m.ResetBreaker("unknown"))
}

// Test Stats aggregates provider metrics and confidence history
func TestFailoverManager_Stats(t *testing.T) {
	p := newFakeProvider("p", 10, okOutcome("p"))
	m := newTestManager(Config{}, nil, p)

	require.NotNil(t, m.GetFlightStatus(context.Background(), "AA100", time.Now()))

	stats := m.Stats()
	info, ok := stats.Providers["p"]
	require.True(t, ok)
	assert.Equal(t, 10, info.Priority)
	assert.True(t, info.IsAvailable)
	assert.Equal(t, int64(1), info.Metrics.TotalRequests)

	perf := stats.PerformanceSummary["p"]
	assert.Equal(t, 1, perf.RecentOperations)
	assert.InDelta(t, 0.9, perf.AverageConfidence, 1e-9)
}
