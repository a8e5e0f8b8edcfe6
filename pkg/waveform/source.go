package waveform

import (
	"context"
	"time"
)

// DataSource is the read-only store batches come from.
// Implementations must use parameterized queries and return failures as *DataSourceError.
type DataSource interface {
	// QueryBatches returns batches of the stream whose start time lies in [from, to],
	// ordered by start time ascending.
	QueryBatches(ctx context.Context, key StreamKey, from, to time.Time) ([]Batch, error)

	// QueryMinMaxTime returns nil if the stream has no batches.
	QueryMinMaxTime(ctx context.Context, key StreamKey) (*TimeBounds, error)

	QueryDistinctStreams(ctx context.Context) ([]StreamDescriptor, error)
}
