package dispatch

import "time"

// Config holds engine tuning knobs.
type Config struct {
	// StaleClaimAfterSeconds is how long a request may sit in "processing"
	// before a fresh initiation from the owner is allowed to reclaim it.
	// A claim goes stale only when the process holding it died between the
	// claim and the final status write.
	StaleClaimAfterSeconds int `json:"staleClaimAfterSeconds"`
}

const defaultStaleClaimAfter = 5 * time.Minute

// StaleClaimAfter returns the configured reclaim window.
func (c Config) StaleClaimAfter() time.Duration {
	if c.StaleClaimAfterSeconds <= 0 {
		return defaultStaleClaimAfter
	}
	return time.Duration(c.StaleClaimAfterSeconds) * time.Second
}
