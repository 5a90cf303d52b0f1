package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/biz"
	"AeroSentry/internal/data"
)

// OpenEventsReply lists disruption events still awaiting settlement.
type OpenEventsReply struct {
	Events []*data.DisruptionEvent `json:"events"`
	Total  int                     `json:"total"`
}

// MonitorService exposes sweep statistics and open disruption events.
type MonitorService struct {
	monitor *biz.MonitorUseCase
	logger  *log.Helper
}

// NewMonitorService creates the monitoring admin service.
func NewMonitorService(monitor *biz.MonitorUseCase, logger log.Logger) *MonitorService {
	return &MonitorService{
		monitor: monitor,
		logger:  log.NewHelper(logger),
	}
}

// Stats returns counters accumulated by the disruption sweeps.
func (s *MonitorService) Stats(_ context.Context) (*biz.MonitorStats, error) {
	stats := s.monitor.Stats()
	return &stats, nil
}

// Sweep runs one disruption sweep immediately.
func (s *MonitorService) Sweep(ctx context.Context) error {
	return s.monitor.Sweep(ctx)
}

// OpenEvents lists disruption events that have not been settled yet.
func (s *MonitorService) OpenEvents(ctx context.Context) (*OpenEventsReply, error) {
	events, err := s.monitor.OpenEvents(ctx)
	if err != nil {
		return nil, err
	}
	return &OpenEventsReply{Events: events, Total: len(events)}, nil
}
