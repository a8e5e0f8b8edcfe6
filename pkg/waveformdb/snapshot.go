package waveformdb

import (
	"context"
	"fmt"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"go.uber.org/zap"
)

// Snapshot copies every stream of from into to, optionally limited to one source location.
// Streams already in to are replaced, so repeated snapshots do not pile up.
// It returns the number of batches written.
func Snapshot(ctx context.Context, from waveform.DataSource, to *SQLiteSource, location string, logger *zap.SugaredLogger) (int, error) {
	descriptors, err := from.QueryDistinctStreams(ctx)
	if err != nil {
		return 0, err
	}

	copied := 0
	done := make(map[waveform.StreamKey]bool)
	for _, d := range descriptors {
		if location != "" && d.Key.SourceLocation != location {
			continue
		}
		// The last name seen wins for ambiguous types
		if err := to.InsertObservationType(ctx, d.Key.ObservationTypeID, d.DisplayName); err != nil {
			return copied, fmt.Errorf("failed to store observation type %d: %w", d.Key.ObservationTypeID, err)
		}
		if done[d.Key] {
			continue
		}
		done[d.Key] = true

		bounds, err := from.QueryMinMaxTime(ctx, d.Key)
		if err != nil {
			return copied, err
		}
		if bounds == nil {
			continue
		}
		batches, err := from.QueryBatches(ctx, d.Key, bounds.Min, bounds.Max)
		if err != nil {
			return copied, err
		}
		if err := to.ReplaceStream(ctx, d.Key, batches); err != nil {
			return copied, fmt.Errorf("failed to store stream %s: %w", d.Key, err)
		}
		copied += len(batches)
		logger.Infof("Copied %d batches of stream %s", len(batches), d.Key)
	}
	return copied, nil
}
