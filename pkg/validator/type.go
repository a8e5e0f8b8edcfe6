package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/wfutils"
	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
)

const DefaultTolerance = time.Millisecond

type Options struct {
	// Gaps and overlaps up to this size are accepted.
	Tolerance time.Duration
	// Streams checked at once by CheckAll.
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Tolerance:   DefaultTolerance,
		Concurrency: 4,
	}
}

// Gap is the distance between the calculated end of one batch and the start of the next.
// Negative values are overlaps.
type Gap struct {
	Index         int           `json:"index"`
	BatchID       int64         `json:"batch_id"`
	PreviousEnd   time.Time     `json:"previous_end"`
	Start         time.Time     `json:"start"`
	SinceLast     time.Duration `json:"gap_ns"`
	SinceLastSecs float64       `json:"gap_seconds"`
}

// Report collects every finding for one stream. Nothing is dropped after the first violation.
type Report struct {
	Key          waveform.StreamKey `json:"key"`
	Tolerance    time.Duration      `json:"tolerance_ns"`
	BatchCount   int                `json:"batch_count"`
	TotalSamples int                `json:"total_samples"`

	SamplingRates []float64 `json:"sampling_rates"`
	Units         []string  `json:"units"`

	// Batch indices (in start time order) whose gap to the previous batch exceeds the tolerance.
	GapIndices []int         `json:"gap_indices"`
	Gaps       []Gap         `json:"gaps"`
	MaxAbsGap  time.Duration `json:"max_abs_gap_ns"`
	MeanAbsGap time.Duration `json:"mean_abs_gap_ns"`

	// Should match when there are no gaps or overlaps.
	TotalActiveTime   time.Duration `json:"total_active_time_ns"`
	TotalCalendarTime time.Duration `json:"total_calendar_time_ns"`

	OrphanedBatches  int   `json:"orphaned_batches"`
	DuplicateIndices []int `json:"duplicate_indices"`
	// Batches with a non-positive sampling rate or no values. Skipped for timing.
	InvalidIndices   []int `json:"invalid_indices"`
}

// newReport starts with empty lists so JSON output never carries null.
func newReport(key waveform.StreamKey, tolerance time.Duration) *Report {
	return &Report{
		Key:              key,
		Tolerance:        tolerance,
		SamplingRates:    []float64{},
		Units:            []string{},
		GapIndices:       []int{},
		Gaps:             []Gap{},
		DuplicateIndices: []int{},
		InvalidIndices:   []int{},
	}
}

// Err combines every violation in the report, or returns nil if the stream is clean.
func (r *Report) Err() error {
	var errs error
	for _, g := range r.Gaps {
		errs = multierr.Append(errs, fmt.Errorf("stream %s: gap of %s before batch %d (index %d)",
			r.Key, g.SinceLast, g.BatchID, g.Index))
	}
	if diff := wfutils.AbsDuration(r.TotalActiveTime - r.TotalCalendarTime); r.BatchCount > 0 && diff > 0 && diff >= r.Tolerance {
		errs = multierr.Append(errs, fmt.Errorf("stream %s: active time %s differs from calendar time %s",
			r.Key, r.TotalActiveTime, r.TotalCalendarTime))
	}
	if len(r.SamplingRates) > 1 {
		errs = multierr.Append(errs, fmt.Errorf("stream %s: %d distinct sampling rates %v",
			r.Key, len(r.SamplingRates), r.SamplingRates))
	}
	if len(r.Units) > 1 {
		errs = multierr.Append(errs, &waveform.AmbiguousUnitError{Key: r.Key, Units: r.Units})
	}
	if r.OrphanedBatches > 0 {
		errs = multierr.Append(errs, fmt.Errorf("stream %s: %d batches have no location visit",
			r.Key, r.OrphanedBatches))
	}
	if len(r.DuplicateIndices) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("stream %s: duplicate batches at indices %v",
			r.Key, r.DuplicateIndices))
	}
	for _, i := range r.InvalidIndices {
		errs = multierr.Append(errs, fmt.Errorf("stream %s: %w at index %d", r.Key, waveform.ErrInvalidBatch, i))
	}
	return errs
}

func (r *Report) Passed() bool {
	return r.Err() == nil
}

func (r *Report) String() string {
	var sb strings.Builder
	status := "OK"
	if !r.Passed() {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "Stream %s: %s\n", r.Key, status)
	fmt.Fprintf(&sb, "  Batches = %s, Total samples = %s @%vHz, Units = %v\n",
		humanize.Comma(int64(r.BatchCount)), humanize.Comma(int64(r.TotalSamples)), r.SamplingRates, r.Units)
	fmt.Fprintf(&sb, "  Total active time = %s, total calendar = %s\n", r.TotalActiveTime, r.TotalCalendarTime)
	fmt.Fprintf(&sb, "  Indexes with gap: %v (max |gap| %s, mean |gap| %s, tolerance %s)\n",
		r.GapIndices, r.MaxAbsGap, r.MeanAbsGap, r.Tolerance)
	fmt.Fprintf(&sb, "  Orphaned batches = %s, duplicates = %v, invalid = %v\n",
		humanize.Comma(int64(r.OrphanedBatches)), r.DuplicateIndices, r.InvalidIndices)
	if err := r.Err(); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintf(&sb, "  - %v\n", e)
		}
	}
	return sb.String()
}
