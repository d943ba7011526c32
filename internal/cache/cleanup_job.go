package cache

import (
	"github.com/rs/zerolog"
)

// CleanupJob proactively sweeps expired entries from both cache tiers.
// Scheduled every 5 minutes (SweepSchedule).
type CleanupJob struct {
	manager *Manager
	log     zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(manager *Manager, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		manager: manager,
		log:     log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	evicted := j.manager.SweepExpired()
	if evicted > 0 {
		j.log.Info().Int("evicted", evicted).Msg("Swept expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
