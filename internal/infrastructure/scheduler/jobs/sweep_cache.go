package jobs

import (
	"context"
	"log/slog"
)

// ExpiringCache is a cache that needs explicit sweeping (the in-memory
// recommendation cache).
type ExpiringCache interface {
	PurgeExpired() int
}

// SweepCacheJob removes expired recommendation lists.
type SweepCacheJob struct {
	cache  ExpiringCache
	logger *slog.Logger
}

// NewSweepCacheJob creates the job.
func NewSweepCacheJob(cache ExpiringCache, logger *slog.Logger) *SweepCacheJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepCacheJob{cache: cache, logger: logger}
}

func (j *SweepCacheJob) Name() string { return "sweep_recommendation_cache" }

func (j *SweepCacheJob) Description() string {
	return "Drops expired entries from the in-memory recommendation cache"
}

func (j *SweepCacheJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.cache.PurgeExpired(); n > 0 {
		j.logger.Debug("recommendation cache swept", "removed", n)
	}
	return nil
}
