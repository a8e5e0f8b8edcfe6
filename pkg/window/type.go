package window

import "time"

const (
	DefaultMaxBatchDuration = 30 * time.Second
	DefaultStartGranularity = 10 * time.Second
	DefaultEndGranularity   = 5 * time.Second
)

// Normalizer turns a requested window into the bounds actually sent to the database.
type Normalizer struct {
	// Upper bound on the time covered by any single batch.
	MaxBatchDuration time.Duration
	StartGranularity time.Duration
	EndGranularity   time.Duration
}

// Bounds are the normalized, inclusive query bounds for one request.
type Bounds struct {
	QueryStart time.Time
	QueryEnd   time.Time
}
