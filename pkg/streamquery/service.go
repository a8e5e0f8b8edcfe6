// Package streamquery answers "samples of stream S between A and B" on top of a data source.
package streamquery

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/metrics"
	"github.com/NotCoffee418/waveform_explorer/pkg/querycache"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"go.uber.org/zap"
)

type Service struct {
	source waveform.DataSource
	opts   Options
	logger *zap.SugaredLogger

	streams *querycache.Cache[struct{}, []waveform.StreamDescriptor]
	bounds  *querycache.Cache[waveform.StreamKey, *waveform.TimeBounds]
	batches *querycache.Cache[batchQueryKey, []waveform.Batch]
}

func NewService(source waveform.DataSource, opts Options, logger *zap.SugaredLogger) *Service {
	return &Service{
		source:  source,
		opts:    opts,
		logger:  logger,
		streams: querycache.New[struct{}, []waveform.StreamDescriptor]("distinct_streams"),
		bounds:  querycache.New[waveform.StreamKey, *waveform.TimeBounds]("stream_bounds"),
		batches: querycache.New[batchQueryKey, []waveform.Batch]("stream_batches"),
	}
}

// ListStreams returns each distinct stream with its display name, sorted by location then type.
// An observation type with several names is reported as a warning and shown as waveform.NotAvailable.
func (s *Service) ListStreams(ctx context.Context) (*StreamList, error) {
	descriptors, err := s.streams.GetOrCompute(struct{}{}, func() ([]waveform.StreamDescriptor, error) {
		defer observe("distinct_streams")()
		d, err := s.source.QueryDistinctStreams(ctx)
		return d, countError("distinct_streams", err)
	})
	if err != nil {
		return nil, err
	}

	namesByType := make(map[int64][]string)
	for _, d := range descriptors {
		if !slices.Contains(namesByType[d.Key.ObservationTypeID], d.DisplayName) {
			namesByType[d.Key.ObservationTypeID] = append(namesByType[d.Key.ObservationTypeID], d.DisplayName)
		}
	}

	list := &StreamList{}
	typeIDs := make([]int64, 0, len(namesByType))
	for id := range namesByType {
		typeIDs = append(typeIDs, id)
	}
	slices.Sort(typeIDs)
	for _, id := range typeIDs {
		names := namesByType[id]
		if len(names) > 1 {
			slices.Sort(names)
			warning := &waveform.AmbiguousMappingError{ObservationTypeID: id, Names: names}
			s.logger.Warnf("WARNING: %v", warning)
			list.Warnings = append(list.Warnings, warning)
		}
	}

	seen := make(map[waveform.StreamKey]bool)
	for _, d := range descriptors {
		if seen[d.Key] {
			continue
		}
		seen[d.Key] = true
		name := d.DisplayName
		if len(namesByType[d.Key.ObservationTypeID]) > 1 {
			name = waveform.NotAvailable
		}
		list.Streams = append(list.Streams, waveform.Stream{Key: d.Key, DisplayName: name})
	}
	slices.SortFunc(list.Streams, func(a, b waveform.Stream) int {
		return waveform.CompareStreamKeys(a.Key, b.Key)
	})
	return list, nil
}

// GetBounds returns nil when the stream has no data. The result stays cached until ClearCache.
func (s *Service) GetBounds(ctx context.Context, key waveform.StreamKey) (*waveform.TimeBounds, error) {
	return s.bounds.GetOrCompute(key, func() (*waveform.TimeBounds, error) {
		defer observe("min_max_time")()
		s.logger.Debugf("getting bounds for stream = %d, location = %s", key.ObservationTypeID, key.SourceLocation)
		b, err := s.source.QueryMinMaxTime(ctx, key)
		return b, countError("min_max_time", err)
	})
}

// GetWindow returns the samples of a stream observed between start and end inclusive.
// The data source is queried over a wider, rounded range; samples outside the
// requested window are trimmed before returning.
func (s *Service) GetWindow(ctx context.Context, key waveform.StreamKey, start, end time.Time) (*Window, error) {
	bounds, err := s.opts.Normalizer.Normalize(start, end)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("Adjusted min time %s -> %s", start, bounds.QueryStart)
	s.logger.Debugf("Adjusted max time %s -> %s", end, bounds.QueryEnd)

	cacheKey := batchQueryKey{key: key, from: bounds.QueryStart.UnixNano(), to: bounds.QueryEnd.UnixNano()}
	batches, err := s.batches.GetOrCompute(cacheKey, func() ([]waveform.Batch, error) {
		defer observe("batches")()
		b, err := s.source.QueryBatches(ctx, key, bounds.QueryStart, bounds.QueryEnd)
		return b, countError("batches", err)
	})
	if err != nil {
		return nil, err
	}

	w := &Window{Key: key, Start: start, End: end, Query: bounds}
	var units []string
	for _, batch := range batches {
		seq, err := waveform.Expand(batch)
		if err != nil {
			return nil, err
		}
		for sample := range seq {
			if sample.Time.Before(start) {
				continue
			}
			if sample.Time.After(end) {
				break
			}
			w.Samples = append(w.Samples, sample)
			if !slices.Contains(units, sample.Unit) {
				units = append(units, sample.Unit)
			}
		}
	}
	metrics.SamplesServed.Add(float64(len(w.Samples)))
	if w.Empty() {
		s.logger.Debugf("no samples for stream %s between %s and %s", key, start, end)
	}

	switch len(units) {
	case 0:
		w.Unit = waveform.NotAvailable
	case 1:
		w.Unit = units[0]
	default:
		slices.Sort(units)
		warning := &waveform.AmbiguousUnitError{Key: key, Units: units}
		s.logger.Warnf("%v", warning)
		w.Unit = waveform.NotAvailable
		w.Warnings = append(w.Warnings, warning)
	}
	return w, nil
}

// GetWindowWidth is GetWindow for a start time and a width within the configured limits.
func (s *Service) GetWindowWidth(ctx context.Context, key waveform.StreamKey, start time.Time, width time.Duration) (*Window, error) {
	if err := s.CheckWidth(width); err != nil {
		return nil, err
	}
	return s.GetWindow(ctx, key, start, start.Add(width))
}

func (s *Service) CheckWidth(width time.Duration) error {
	if width < s.opts.MinWidth || width > s.opts.MaxWidth {
		return fmt.Errorf("%w: width %s outside %s..%s", waveform.ErrInvalidWindow, width, s.opts.MinWidth, s.opts.MaxWidth)
	}
	return nil
}

// DefaultStart is where a view of the stream opens: shortly before its latest batch,
// but never before its first.
func (s *Service) DefaultStart(bounds *waveform.TimeBounds) time.Time {
	start := bounds.Max.Add(-s.opts.DefaultLookback)
	if start.Before(bounds.Min) {
		return bounds.Min
	}
	return start
}

// DefaultWidth is what a view opens with when no width is asked for.
func (s *Service) DefaultWidth() time.Duration {
	return s.opts.MaxWidth
}

// ClearCache forgets every cached query so the next calls see new data.
func (s *Service) ClearCache() {
	s.streams.Clear()
	s.bounds.Clear()
	s.batches.Clear()
	s.logger.Info("query caches cleared")
}

func observe(query string) func() {
	started := time.Now()
	return func() {
		metrics.SourceQueryDuration.WithLabelValues(query).Observe(time.Since(started).Seconds())
	}
}

func countError(query string, err error) error {
	if err != nil {
		metrics.SourceQueryErrors.WithLabelValues(query).Inc()
	}
	return err
}
