package main

import (
	"context"
	"time"

	"AeroSentry/internal/biz"
	"AeroSentry/internal/conf"
	"AeroSentry/pkg/flightdata"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// Default cron expressions (with seconds) used when the monitor section
// leaves a schedule empty.
const (
	defaultSweepSchedule        = "0 */5 * * * *"
	defaultHealthCheckSchedule  = "0 */10 * * * *"
	defaultQuotaCleanupSchedule = "0 */10 * * * *"
)

// sweepTimeout bounds one disruption sweep, covering slow providers.
const sweepTimeout = 10 * time.Minute

// CronServer runs the background monitoring jobs as a Kratos transport
// server so scheduling starts and stops with the application.
type CronServer struct {
	cron   *cron.Cron
	helper *log.Helper
}

// NewCronServer registers the disruption sweep, the provider health
// check and the quota ledger cleanup on their configured schedules.
func NewCronServer(
	bc *conf.Bootstrap,
	monitor *biz.MonitorUseCase,
	flights *biz.FlightUseCase,
	quota *biz.QuotaGuardUseCase,
	audit biz.AuditLogger,
	logger log.Logger,
) (*CronServer, error) {
	helper := log.NewHelper(logger)
	c := cron.New(cron.WithSeconds())

	sweepSchedule := defaultSweepSchedule
	healthSchedule := defaultHealthCheckSchedule
	cleanupSchedule := defaultQuotaCleanupSchedule
	if bc.Monitor != nil {
		if bc.Monitor.SweepSchedule != "" {
			sweepSchedule = bc.Monitor.SweepSchedule
		}
		if bc.Monitor.HealthCheckSchedule != "" {
			healthSchedule = bc.Monitor.HealthCheckSchedule
		}
		if bc.Monitor.QuotaCleanupSchedule != "" {
			cleanupSchedule = bc.Monitor.QuotaCleanupSchedule
		}
	}

	providerNames := make([]string, 0, len(bc.Providers))
	for _, p := range bc.Providers {
		providerNames = append(providerNames, p.Name)
	}

	if _, err := c.AddFunc(sweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if err := monitor.Sweep(ctx); err != nil {
			helper.Errorw("msg", "disruption sweep failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(healthSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		results := flights.RunHealthCheck(ctx)
		for name, healthy := range results {
			if !healthy {
				helper.Warnw("msg", "provider health check failed", "provider", name)
				audit.LogHealthCheckFailed(ctx, name, "scheduled health probe failed")
			}
		}

		stats := flights.ProviderStats()
		for name, info := range stats.Providers {
			if info.Status == flightdata.StatusDegraded {
				audit.LogProviderDegraded(ctx, name, "unreliable responses, retrying after cooldown")
			}
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(cleanupSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := quota.CleanupStale(ctx, providerNames); err != nil {
			helper.Errorw("msg", "quota ledger cleanup failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	helper.Infow(
		"msg", "monitoring scheduler configured",
		"sweep_schedule", sweepSchedule,
		"health_check_schedule", healthSchedule,
		"quota_cleanup_schedule", cleanupSchedule,
	)

	return &CronServer{cron: c, helper: helper}, nil
}

// Start begins running the scheduled jobs.
func (s *CronServer) Start(_ context.Context) error {
	s.helper.Info("monitoring scheduler started")
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *CronServer) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.helper.Info("monitoring scheduler stopped")
	return nil
}
