package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"AeroSentry/pkg/flightdata"
	"AeroSentry/pkg/httpclient"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAeroAPIName is the provider name used when none is configured.
	DefaultAeroAPIName = "FlightAware"
	// DefaultAeroAPIBaseURL is FlightAware's AeroAPI endpoint.
	DefaultAeroAPIBaseURL = "https://aeroapi.flightaware.com/aeroapi"
	// DefaultAeroAPIPriority ranks AeroAPI above the fallback sources.
	DefaultAeroAPIPriority = 10
	// DefaultAeroAPITimeout bounds one flight lookup.
	DefaultAeroAPITimeout = 10 * time.Second

	// healthCheckTimeout bounds the lightweight airport probe.
	healthCheckTimeout = 5 * time.Second
	// healthCheckAirport is a well-known airport used to probe reachability.
	healthCheckAirport = "LAX"
	// defaultRetryAfter applies when a 429 carries no usable Retry-After header.
	defaultRetryAfter = 300 * time.Second
	// batchConcurrency caps concurrent single-flight lookups in a batch.
	batchConcurrency = 5
	// rateLimitRetryDelay is the wait before the single batch retry after a 429.
	rateLimitRetryDelay = time.Second
	// lowRateLimitWatermark marks the provider degraded when the remaining
	// request budget reported by the API drops below it.
	lowRateLimitWatermark = 10
	// aeroAPIConfidence is the confidence score attached to AeroAPI data.
	aeroAPIConfidence = 0.95
	// maxErrorBodyBytes bounds how much of an error response is kept.
	maxErrorBodyBytes = 2048
)

// AeroAPIConfig configures the FlightAware AeroAPI provider. Zero fields
// fall back to the package defaults.
type AeroAPIConfig struct {
	Name     string
	APIKey   string
	BaseURL  string
	Priority int
	Timeout  time.Duration
	// ProxyURL optionally routes outbound traffic through a SOCKS5 or HTTP
	// proxy.
	ProxyURL string
}

// AeroAPIProvider fetches flight status from FlightAware's AeroAPI. Without
// an API key the provider constructs fine but starts unavailable, declining
// every lookup until a key arrives through configuration.
type AeroAPIProvider struct {
	*BaseProvider

	apiKey  string
	baseURL string
	client  *http.Client

	rlMu               sync.Mutex
	rateLimitRemaining *int
	rateLimitReset     *time.Time
}

// RateLimitStatus reports the request budget the API advertised last.
type RateLimitStatus struct {
	Remaining *int                      `json:"remaining,omitempty"`
	ResetTime *time.Time                `json:"reset_time,omitempty"`
	Status    flightdata.ProviderStatus `json:"status"`
}

// NewAeroAPIProvider builds the AeroAPI provider. It fails only when the
// configured proxy URL cannot be parsed.
func NewAeroAPIProvider(cfg AeroAPIConfig, logger log.Logger) (*AeroAPIProvider, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultAeroAPIName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAeroAPIBaseURL
	}
	if cfg.Priority <= 0 {
		cfg.Priority = DefaultAeroAPIPriority
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAeroAPITimeout
	}

	client, err := httpclient.New(cfg.ProxyURL, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("build aeroapi http client: %w", err)
	}

	p := &AeroAPIProvider{
		BaseProvider: NewBaseProvider(cfg.Name, cfg.Priority, cfg.Timeout, logger),
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		client:       client,
	}
	if p.apiKey == "" {
		p.SetStatus(flightdata.StatusUnavailable, "API key not configured")
		p.log.Warnw("aeroapi key not configured, provider starts unavailable",
			"type", "provider",
			"provider", p.Name())
	}
	return p, nil
}

// GetFlightStatus queries AeroAPI for one flight. When the provider is not
// in the available state it declines with (nil, nil) so the failover manager
// moves on without charging a failure.
func (p *AeroAPIProvider) GetFlightStatus(ctx context.Context, flightNumber string, departureDate time.Time) (*flightdata.FlightStatus, error) {
	if !p.Available() {
		return nil, nil
	}

	start := time.Now()

	endpoint := fmt.Sprintf("%s/flights/%s", p.baseURL, url.PathEscape(flightNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		msg := "build request: " + err.Error()
		p.metrics.RecordFailure(msg)
		return nil, &flightdata.ProviderError{Provider: p.Name(), Message: msg, Err: err}
	}
	req.Header.Set("x-apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if !departureDate.IsZero() {
		query := req.URL.Query()
		query.Set("start", departureDate.Format("2006-01-02"))
		query.Set("end", departureDate.AddDate(0, 0, 1).Format("2006-01-02"))
		req.URL.RawQuery = query.Encode()
	}

	resp, err := p.client.Do(req)
	if err != nil {
		var netErr net.Error
		if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			msg := fmt.Sprintf("request timeout after %s", p.Timeout())
			p.metrics.RecordFailure(msg)
			return nil, &flightdata.TimeoutError{Provider: p.Name(), Timeout: p.Timeout()}
		}
		msg := "network error: " + err.Error()
		p.metrics.RecordFailure(msg)
		p.SetStatus(flightdata.StatusDegraded, msg)
		return nil, &flightdata.ProviderError{Provider: p.Name(), Message: msg, Err: err}
	}
	defer resp.Body.Close()

	p.updateRateLimitInfo(resp.Header)
	elapsed := time.Since(start)

	switch {
	case resp.StatusCode == http.StatusOK:
		var payload struct {
			Flights []json.RawMessage `json:"flights"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			p.metrics.RecordFailure("decode response: " + err.Error())
			return nil, nil
		}
		status := p.parseFlightData(flightNumber, payload.Flights, departureDate)
		if status == nil {
			p.metrics.RecordFailure("no flight data in response")
			return nil, nil
		}
		p.metrics.RecordSuccess(elapsed)
		return status, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		p.SetStatus(flightdata.StatusRateLimited, "rate limit exceeded")
		p.metrics.RecordRateLimitHit()
		return nil, &flightdata.RateLimitError{
			Provider:   p.Name(),
			RetryAfter: retryAfterHint(resp.Header),
		}

	case resp.StatusCode == http.StatusUnauthorized:
		p.SetStatus(flightdata.StatusUnavailable, "authentication failed")
		return nil, &flightdata.AuthenticationError{Provider: p.Name(), Message: "invalid AeroAPI key"}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		p.metrics.RecordFailure(msg)
		if resp.StatusCode >= http.StatusInternalServerError {
			p.SetStatus(flightdata.StatusDegraded, "server error")
		}
		return nil, &flightdata.ProviderError{Provider: p.Name(), Message: msg}
	}
}

// HealthCheck probes a fixed airport endpoint and refreshes the provider
// status from the result.
func (p *AeroAPIProvider) HealthCheck(ctx context.Context) error {
	if p.apiKey == "" {
		return &flightdata.AuthenticationError{Provider: p.Name(), Message: "API key not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/airports/%s", p.baseURL, healthCheckAirport)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &flightdata.ProviderError{Provider: p.Name(), Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("x-apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		msg := "health check failed: " + err.Error()
		p.SetStatus(flightdata.StatusUnavailable, msg)
		return &flightdata.ProviderError{Provider: p.Name(), Message: msg, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	p.updateRateLimitInfo(resp.Header)

	switch resp.StatusCode {
	case http.StatusOK:
		p.SetStatus(flightdata.StatusAvailable, "")
		return nil
	case http.StatusUnauthorized:
		p.SetStatus(flightdata.StatusUnavailable, "authentication failed")
		return &flightdata.AuthenticationError{Provider: p.Name(), Message: "invalid AeroAPI key"}
	case http.StatusTooManyRequests:
		p.SetStatus(flightdata.StatusRateLimited, "rate limited")
		return &flightdata.RateLimitError{Provider: p.Name(), RetryAfter: retryAfterHint(resp.Header)}
	default:
		reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
		p.SetStatus(flightdata.StatusDegraded, reason)
		return &flightdata.ProviderError{Provider: p.Name(), Message: "health check failed: " + reason}
	}
}

// GetMultipleFlights resolves a batch by issuing bounded concurrent single
// lookups; AeroAPI has no native batch endpoint. A rate limited lookup waits
// briefly and retries once; all other failures map the flight to nil. The
// returned error is always nil.
func (p *AeroAPIProvider) GetMultipleFlights(ctx context.Context, requests []flightdata.StatusRequest) (map[string]*flightdata.FlightStatus, error) {
	results := make(map[string]*flightdata.FlightStatus, len(requests))
	var rmu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, req := range requests {
		g.Go(func() error {
			status, err := p.GetFlightStatus(gctx, req.FlightNumber, req.DepartureDate)
			if err != nil && flightdata.IsRateLimit(err) {
				select {
				case <-gctx.Done():
				case <-time.After(rateLimitRetryDelay):
					status, err = p.GetFlightStatus(gctx, req.FlightNumber, req.DepartureDate)
				}
			}
			if err != nil {
				status = nil
			}
			rmu.Lock()
			results[req.FlightNumber] = status
			rmu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// RateLimitStatus reports the most recent rate limit headers seen.
func (p *AeroAPIProvider) RateLimitStatus() RateLimitStatus {
	p.rlMu.Lock()
	defer p.rlMu.Unlock()

	return RateLimitStatus{
		Remaining: p.rateLimitRemaining,
		ResetTime: p.rateLimitReset,
		Status:    p.Status(),
	}
}

type aeroAPIFlight struct {
	ScheduledOut string `json:"scheduled_out"`
	ActualOut    string `json:"actual_out"`
	ScheduledIn  string `json:"scheduled_in"`
	ActualIn     string `json:"actual_in"`
	Status       string `json:"status"`
	Cancelled    bool   `json:"cancelled"`
	Diverted     bool   `json:"diverted"`
	GateDest     string `json:"gate_dest"`
	TerminalDest string `json:"terminal_dest"`
}

// parseFlightData normalizes the AeroAPI flight list, picking the leg whose
// scheduled departure is closest to the requested date. It returns nil when
// the response holds no usable flight.
func (p *AeroAPIProvider) parseFlightData(flightNumber string, flights []json.RawMessage, departureDate time.Time) *flightdata.FlightStatus {
	var (
		target      *aeroAPIFlight
		targetRaw   json.RawMessage
		minTimeDiff time.Duration
	)
	for _, raw := range flights {
		var flight aeroAPIFlight
		if err := json.Unmarshal(raw, &flight); err != nil {
			continue
		}
		scheduledOut := parseTimestamp(flight.ScheduledOut)
		if scheduledOut == nil {
			continue
		}
		diff := scheduledOut.Sub(departureDate)
		if diff < 0 {
			diff = -diff
		}
		if target == nil || diff < minTimeDiff {
			minTimeDiff = diff
			target = &flight
			targetRaw = raw
		}
	}
	if target == nil {
		return nil
	}

	scheduledDeparture := parseTimestamp(target.ScheduledOut)
	actualDeparture := parseTimestamp(target.ActualOut)
	scheduledArrival := parseTimestamp(target.ScheduledIn)
	actualArrival := parseTimestamp(target.ActualIn)

	delayMinutes := 0
	if actualDeparture != nil && scheduledDeparture != nil {
		delayMinutes = int(actualDeparture.Sub(*scheduledDeparture).Minutes())
	}

	isDisrupted := false
	disruptionType := flightdata.DisruptionNone
	switch {
	case target.Cancelled:
		isDisrupted = true
		disruptionType = flightdata.DisruptionCancelled
	case delayMinutes > 15:
		isDisrupted = true
		disruptionType = flightdata.DisruptionDelayed
	case target.Diverted:
		isDisrupted = true
		disruptionType = flightdata.DisruptionDiverted
	}

	status := target.Status
	if status == "" {
		status = "Unknown"
	}

	var rawData map[string]interface{}
	_ = json.Unmarshal(targetRaw, &rawData)

	result := &flightdata.FlightStatus{
		FlightID:        fmt.Sprintf("%s_%s", flightNumber, departureDate.Format("20060102")),
		Status:          status,
		DelayMinutes:    delayMinutes,
		ActualDeparture: actualDeparture,
		ActualArrival:   actualArrival,
		Gate:            target.GateDest,
		Terminal:        target.TerminalDest,
		IsDisrupted:     isDisrupted,
		DisruptionType:  disruptionType,
		LastUpdated:     time.Now().UTC(),
		Source:          p.Name(),
		ConfidenceScore: aeroAPIConfidence,
		Raw:             rawData,
	}
	if scheduledDeparture != nil {
		result.ScheduledDeparture = *scheduledDeparture
	}
	if scheduledArrival != nil {
		result.ScheduledArrival = *scheduledArrival
	}
	return result
}

func (p *AeroAPIProvider) updateRateLimitInfo(header http.Header) {
	if v := header.Get("X-RateLimit-Remaining"); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			p.rlMu.Lock()
			p.rateLimitRemaining = &remaining
			p.rlMu.Unlock()
			if remaining < lowRateLimitWatermark {
				p.SetStatus(flightdata.StatusDegraded, "rate limit approaching")
			}
		}
	}
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			reset := time.Unix(unix, 0).UTC()
			p.rlMu.Lock()
			p.rateLimitReset = &reset
			p.rlMu.Unlock()
		}
	}
}

// retryAfterHint reads the Retry-After header in seconds, falling back to
// the stock cooldown when absent or malformed.
func retryAfterHint(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}

// parseTimestamp parses AeroAPI's RFC 3339 timestamps, returning nil for
// absent or malformed values.
func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
