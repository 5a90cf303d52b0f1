package biz

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/conf"
	"AeroSentry/internal/data"
	"AeroSentry/internal/model"
	"AeroSentry/pkg/flightdata"
	pkglog "AeroSentry/pkg/log"
)

// defaultMonitorWindow is how far ahead bookings are swept when no window
// is configured.
const defaultMonitorWindow = 48 * time.Hour

// MonitorStats is a point-in-time snapshot of the sweep counters.
type MonitorStats struct {
	TotalChecks      int64     `json:"total_checks"`
	CacheHits        int64     `json:"cache_hits"`
	CacheMisses      int64     `json:"cache_misses"`
	DisruptionsFound int64     `json:"disruptions_found"`
	ProviderFailures int64     `json:"provider_failures"`
	LastSweep        time.Time `json:"last_sweep"`
}

// MonitorUseCase sweeps upcoming bookings for flight disruptions. Each
// sweep fetches statuses through the cached failover lookup, persists a
// disruption event per disrupted booking, and notifies the alert service
// exactly once per open event.
type MonitorUseCase struct {
	flights  *FlightUseCase
	bookings BookingRepo
	events   DisruptionRepo
	alerts   AlertService
	window   time.Duration
	logger   *pkglog.LogHelper

	mu    sync.Mutex
	stats MonitorStats
}

// NewMonitorUseCase creates a new disruption monitor use case.
func NewMonitorUseCase(c *conf.Bootstrap, flights *FlightUseCase, bookings BookingRepo, events DisruptionRepo, alerts AlertService, logger log.Logger) *MonitorUseCase {
	window := defaultMonitorWindow
	if c.Monitor != nil && c.Monitor.Window != nil && c.Monitor.Window.AsDuration() > 0 {
		window = c.Monitor.Window.AsDuration()
	}
	return &MonitorUseCase{
		flights:  flights,
		bookings: bookings,
		events:   events,
		alerts:   alerts,
		window:   window,
		logger:   pkglog.NewLogHelper(logger),
	}
}

// Sweep checks every confirmed booking departing within the monitoring
// window. Per-booking failures are counted and skipped, never aborting
// the sweep; only the initial booking query can fail it.
func (uc *MonitorUseCase) Sweep(ctx context.Context) error {
	start := time.Now()

	bookings, err := uc.bookings.ListUpcoming(ctx, uc.window)
	if err != nil {
		uc.logger.Errorw("Monitor sweep aborted, booking query failed", "error", err)
		return err
	}
	if len(bookings) == 0 {
		uc.mu.Lock()
		uc.stats.LastSweep = start
		uc.mu.Unlock()
		uc.logger.Monitor("Monitor sweep found no upcoming bookings")
		return nil
	}

	// One lookup per distinct flight and date, however many bookings
	// share it. Batch results are keyed by flight number alone, so the
	// lookups are grouped by departure date and the combined results
	// keyed by flight and date to keep a number flying on two dates in
	// the window from colliding.
	type dateGroup struct {
		date     time.Time
		requests []flightdata.StatusRequest
	}
	groups := make(map[string]*dateGroup)
	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		key := data.FlightStatusCacheKey(b.FlightNumber, b.DepartureDate)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		day := b.DepartureDate.Format("20060102")
		g := groups[day]
		if g == nil {
			g = &dateGroup{date: b.DepartureDate}
			groups[day] = g
		}
		g.requests = append(g.requests, flightdata.StatusRequest{
			FlightNumber:  b.FlightNumber,
			DepartureDate: b.DepartureDate,
		})
	}

	statuses := make(map[string]*flightdata.FlightStatus, len(seen))
	var cacheHits, totalRequests int
	for _, g := range groups {
		batch, hits := uc.flights.GetStatusBatch(ctx, g.requests)
		cacheHits += hits
		totalRequests += len(g.requests)
		for number, status := range batch {
			statuses[data.FlightStatusCacheKey(number, g.date)] = status
		}
	}

	var disruptions, failures int64
	for _, b := range bookings {
		status := statuses[data.FlightStatusCacheKey(b.FlightNumber, b.DepartureDate)]
		if status == nil {
			failures++
		} else if status.IsDisrupted {
			if uc.recordDisruption(ctx, b, status) {
				disruptions++
			}
		}

		if err := uc.bookings.UpdateLastChecked(ctx, b.ID, start); err != nil {
			uc.logger.Warnw("Failed to update booking last_checked",
				"booking_id", b.ID,
				"error", err)
		}
	}

	uc.mu.Lock()
	uc.stats.TotalChecks += int64(len(bookings))
	uc.stats.CacheHits += int64(cacheHits)
	uc.stats.CacheMisses += int64(totalRequests - cacheHits)
	uc.stats.DisruptionsFound += disruptions
	uc.stats.ProviderFailures += failures
	uc.stats.LastSweep = start
	uc.mu.Unlock()

	uc.logger.SweepCompleted(len(bookings), int(disruptions), time.Since(start).Milliseconds())
	return nil
}

// recordDisruption persists the event for a disrupted booking and alerts
// on first detection. It reports whether a new event was created.
func (uc *MonitorUseCase) recordDisruption(ctx context.Context, b *data.Booking, status *flightdata.FlightStatus) bool {
	event := &data.DisruptionEvent{
		BookingID:         b.ID,
		Type:              string(status.DisruptionType),
		DelayMinutes:      status.DelayMinutes,
		OriginalDeparture: &status.ScheduledDeparture,
		NewDeparture:      status.ActualDeparture,
	}
	if raw, err := json.Marshal(status); err == nil {
		s := string(raw)
		event.Raw = &s
	}

	created, err := uc.events.CreateEvent(ctx, event)
	if err != nil {
		uc.logger.Errorw("Failed to persist disruption event",
			"booking_id", b.ID,
			"type", event.Type,
			"error", err)
		return false
	}
	if !created {
		// Already tracked as an open event; no repeat alert.
		return false
	}

	uc.logger.Disruption("Flight disruption detected",
		"event_id", event.EventID,
		"booking_id", b.ID,
		"flight_number", b.FlightNumber,
		"type", event.Type,
		"delay_minutes", event.DelayMinutes)

	alert := &model.DisruptionAlert{
		EventID:        event.EventID,
		BookingID:      b.ID,
		UserID:         b.UserID,
		FlightNumber:   b.FlightNumber,
		DisruptionType: event.Type,
		DelayMinutes:   event.DelayMinutes,
		DetectedAt:     event.DetectedAt,
	}
	if err := uc.alerts.NotifyDisruption(ctx, alert); err != nil {
		uc.logger.Warnw("Disruption alert failed",
			"event_id", event.EventID,
			"error", err)
		return true
	}
	if err := uc.events.MarkNotified(ctx, event.EventID); err != nil {
		uc.logger.Warnw("Failed to mark disruption event notified",
			"event_id", event.EventID,
			"error", err)
	}
	return true
}

// Stats returns a copy of the sweep counters.
func (uc *MonitorUseCase) Stats() MonitorStats {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.stats
}

// OpenEvents lists unresolved disruption events for the API.
func (uc *MonitorUseCase) OpenEvents(ctx context.Context) ([]*data.DisruptionEvent, error) {
	return uc.events.ListOpenEvents(ctx)
}
