package jobs

import (
	"context"
	"fmt"

	"macropulse/internal/indicator"
	"macropulse/internal/snapshot"
	"macropulse/pkg/logger"
)

// Broadcaster pushes refreshed summaries to connected dashboards.
type Broadcaster interface {
	Broadcast(v interface{})
}

// IndicatorRefreshJob recomputes all indicators on a schedule, persists
// snapshots, and pushes the summary to connected dashboards.
type IndicatorRefreshJob struct {
	service   *indicator.Service
	snapshots *snapshot.Repository // nil when the database is disabled
	hub       Broadcaster          // nil when running headless
	schedule  string
	logger    *logger.Logger
}

// NewIndicatorRefreshJob creates the refresh job.
func NewIndicatorRefreshJob(service *indicator.Service, snapshots *snapshot.Repository, hub Broadcaster, schedule string, log *logger.Logger) *IndicatorRefreshJob {
	return &IndicatorRefreshJob{
		service:   service,
		snapshots: snapshots,
		hub:       hub,
		schedule:  schedule,
		logger:    log,
	}
}

func (j *IndicatorRefreshJob) Name() string {
	return "indicator_refresh"
}

func (j *IndicatorRefreshJob) Schedule() string {
	return j.schedule
}

// Run invalidates the cache and recomputes every indicator.
func (j *IndicatorRefreshJob) Run(ctx context.Context) error {
	j.service.Invalidate("")

	summary, err := j.service.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh indicators: %w", err)
	}

	if len(summary.Errors) > 0 {
		j.logger.WithField("errors", summary.Errors).Warn("Indicator refresh finished with failures")
	}

	if j.snapshots != nil {
		if err := j.snapshots.SaveSummary(ctx, summary); err != nil {
			j.logger.WithError(err).Error("Failed to persist indicator snapshots")
		}
	}

	if j.hub != nil {
		j.hub.Broadcast(summary)
	}

	return nil
}
