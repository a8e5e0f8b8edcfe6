// Package waveformtest provides an in-memory waveform.DataSource for tests.
package waveformtest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
)

// Source serves batches from memory and counts calls per query.
type Source struct {
	mu      sync.Mutex
	batches []waveform.Batch
	names   map[int64][]string

	// Returned, wrapped as a data source error, by every query when set.
	Err error

	BatchCalls   int
	MinMaxCalls  int
	StreamsCalls int
}

func NewSource() *Source {
	return &Source{names: make(map[int64][]string)}
}

// Add stores batches. Order does not matter.
func (s *Source) Add(batches ...waveform.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batches...)
	slices.SortStableFunc(s.batches, func(a, b waveform.Batch) int {
		return a.StartTime.Compare(b.StartTime)
	})
}

// Name registers a display name for an observation type. Registering several
// names for one type produces an ambiguous mapping.
func (s *Source) Name(observationTypeID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[observationTypeID] = append(s.names[observationTypeID], name)
}

func (s *Source) QueryBatches(_ context.Context, key waveform.StreamKey, from, to time.Time) ([]waveform.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BatchCalls++
	if s.Err != nil {
		return nil, waveform.WrapSourceError("query batches", s.Err)
	}
	var out []waveform.Batch
	for _, b := range s.batches {
		if b.Key == key && !b.StartTime.Before(from) && !b.StartTime.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Source) QueryMinMaxTime(_ context.Context, key waveform.StreamKey) (*waveform.TimeBounds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MinMaxCalls++
	if s.Err != nil {
		return nil, waveform.WrapSourceError("query min max time", s.Err)
	}
	var bounds *waveform.TimeBounds
	for _, b := range s.batches {
		if b.Key != key {
			continue
		}
		if bounds == nil {
			bounds = &waveform.TimeBounds{Min: b.StartTime, Max: b.StartTime}
			continue
		}
		if b.StartTime.Before(bounds.Min) {
			bounds.Min = b.StartTime
		}
		if b.StartTime.After(bounds.Max) {
			bounds.Max = b.StartTime
		}
	}
	return bounds, nil
}

func (s *Source) QueryDistinctStreams(_ context.Context) ([]waveform.StreamDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StreamsCalls++
	if s.Err != nil {
		return nil, waveform.WrapSourceError("query distinct streams", s.Err)
	}
	var out []waveform.StreamDescriptor
	for _, b := range s.batches {
		names := s.names[b.Key.ObservationTypeID]
		if len(names) == 0 {
			names = []string{""}
		}
		for _, name := range names {
			d := waveform.StreamDescriptor{Key: b.Key, DisplayName: name, Unit: b.Unit}
			if !slices.Contains(out, d) {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

// Calls returns the counters under the lock.
func (s *Source) Calls() (batches, minMax, streams int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.BatchCalls, s.MinMaxCalls, s.StreamsCalls
}

// Contiguous builds n back to back batches of size values each, starting at start.
func Contiguous(key waveform.StreamKey, start time.Time, rate float64, n, size int) []waveform.Batch {
	batches := make([]waveform.Batch, 0, n)
	visit := int64(1)
	t := start
	for i := 0; i < n; i++ {
		values := make([]float64, size)
		for j := range values {
			values[j] = float64(i*size + j)
		}
		b := waveform.Batch{
			ID:              int64(i + 1),
			Key:             key,
			StartTime:       t,
			SamplingRate:    rate,
			Values:          values,
			Unit:            "uV",
			LocationVisitID: &visit,
		}
		batches = append(batches, b)
		t = b.EndTime()
	}
	return batches
}
