package cache

import "time"

// TTL constants for cached provider responses.
const (
	// TTLDefault applies when Set is called without an explicit TTL.
	TTLDefault = 5 * time.Minute

	// TTLDemo is longer than normal to reduce repeated demo generation
	// while providers stay unreachable.
	TTLDemo = 10 * time.Minute
)

// SweepSchedule is the cron expression for the background eviction sweep.
const SweepSchedule = "@every 5m"
