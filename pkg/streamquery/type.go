package streamquery

import (
	"slices"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/window"
)

// StreamList is every known stream plus any data quality warnings found while listing them.
type StreamList struct {
	Streams  []waveform.Stream
	Warnings []error
}

// Locations returns the distinct source locations in sorted order.
func (l *StreamList) Locations() []string {
	var locations []string
	for _, s := range l.Streams {
		if !slices.Contains(locations, s.Key.SourceLocation) {
			locations = append(locations, s.Key.SourceLocation)
		}
	}
	slices.Sort(locations)
	return locations
}

func (l *StreamList) ForLocation(location string) []waveform.Stream {
	var streams []waveform.Stream
	for _, s := range l.Streams {
		if s.Key.SourceLocation == location {
			streams = append(streams, s)
		}
	}
	return streams
}

// Window holds the samples of one stream with start <= Time <= end.
type Window struct {
	Key     waveform.StreamKey
	Start   time.Time
	End     time.Time
	Query   window.Bounds
	Samples []waveform.Sample
	// waveform.NotAvailable unless the samples carry exactly one unit
	Unit     string
	Warnings []error
}

func (w *Window) Empty() bool {
	return len(w.Samples) == 0
}

type batchQueryKey struct {
	key  waveform.StreamKey
	from int64
	to   int64
}

type Options struct {
	Normalizer window.Normalizer
	// Default start for a stream is this far before its latest batch.
	DefaultLookback time.Duration
	MinWidth        time.Duration
	MaxWidth        time.Duration
}

func DefaultOptions() Options {
	return Options{
		Normalizer:      window.NewNormalizer(),
		DefaultLookback: 15 * time.Second,
		MinWidth:        time.Second,
		MaxWidth:        30 * time.Second,
	}
}
