package jobs

import (
	"context"

	"macropulse/internal/indicator"
	"macropulse/pkg/logger"
)

// CacheCleanupJob sweeps expired entries from the disk cache.
type CacheCleanupJob struct {
	service  *indicator.Service
	schedule string
	logger   *logger.Logger
}

// NewCacheCleanupJob creates the cleanup job.
func NewCacheCleanupJob(service *indicator.Service, schedule string, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		service:  service,
		schedule: schedule,
		logger:   log,
	}
}

func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

func (j *CacheCleanupJob) Schedule() string {
	return j.schedule
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	result := j.service.CleanupCache()
	j.logger.WithField("removed", result.ExpiredDiskEntriesRemoved).Info("Cache cleanup completed")
	return nil
}
