// Package window expands and quantizes requested time windows into database query bounds.
//
// Batch rows are indexed by the time of their first sample, so a batch that started
// before the requested start can still hold samples inside the window. The query start
// is therefore pulled back by the longest possible batch, then both ends are rounded
// so that similar requests produce identical, cacheable queries.
package window

import (
	"fmt"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
)

func NewNormalizer() Normalizer {
	return Normalizer{
		MaxBatchDuration: DefaultMaxBatchDuration,
		StartGranularity: DefaultStartGranularity,
		EndGranularity:   DefaultEndGranularity,
	}
}

// Normalize returns query bounds with QueryStart <= start and QueryEnd >= end.
// A zero-width window (start == end) is valid.
func (n Normalizer) Normalize(start, end time.Time) (Bounds, error) {
	if end.Before(start) {
		return Bounds{}, fmt.Errorf("%w: end %s is before start %s",
			waveform.ErrInvalidWindow, end.Format(time.RFC3339Nano), start.Format(time.RFC3339Nano))
	}
	return Bounds{
		QueryStart: floorTo(start.Add(-n.MaxBatchDuration), n.StartGranularity),
		QueryEnd:   ceilTo(end, n.EndGranularity),
	}, nil
}

// floorTo rounds down to a multiple of granularity, dropping sub-second parts.
func floorTo(t time.Time, granularity time.Duration) time.Time {
	if granularity <= 0 {
		return t.Truncate(time.Second)
	}
	return t.Truncate(granularity)
}

// ceilTo rounds up to a multiple of granularity. A time already on a boundary is returned
// as is; anything past a boundary, even by a nanosecond, moves to the next one.
func ceilTo(t time.Time, granularity time.Duration) time.Time {
	if granularity <= 0 {
		return t
	}
	floor := t.Truncate(granularity)
	if floor.Before(t) {
		return floor.Add(granularity)
	}
	return floor
}
