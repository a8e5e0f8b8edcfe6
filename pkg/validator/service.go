// Package validator checks that the batches of a stream fit together without gaps or overlaps.
package validator

import (
	"context"
	"encoding/binary"
	"math"
	"slices"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/metrics"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/wfutils"
	"github.com/montanaflynn/stats"
	"github.com/sigurn/crc16"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

type Validator struct {
	source waveform.DataSource
	opts   Options
	logger *zap.SugaredLogger
}

func NewValidator(source waveform.DataSource, opts Options, logger *zap.SugaredLogger) *Validator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Validator{source: source, opts: opts, logger: logger}
}

// CheckStream reads every batch of the stream and reports all violations found.
// Only data source failures are returned as errors.
func (v *Validator) CheckStream(ctx context.Context, key waveform.StreamKey) (*Report, error) {
	bounds, err := v.source.QueryMinMaxTime(ctx, key)
	if err != nil {
		return nil, err
	}
	if bounds == nil {
		v.logger.Infof("stream %s has no data", key)
		return newReport(key, v.opts.Tolerance), nil
	}

	batches, err := v.source.QueryBatches(ctx, key, bounds.Min, bounds.Max)
	if err != nil {
		return nil, err
	}
	report := Analyze(key, batches, v.opts.Tolerance)
	v.logger.Infof("Total samples = %d @%vHz, Total active time = %s, total calendar = %s",
		report.TotalSamples, report.SamplingRates, report.TotalActiveTime, report.TotalCalendarTime)
	if len(report.GapIndices) > 0 {
		v.logger.Warnf("Indexes with gap: %v", report.GapIndices)
	}
	countViolations(report)
	return report, nil
}

// CheckAll validates every distinct stream, a few at a time.
// Reports come back sorted by stream key.
func (v *Validator) CheckAll(ctx context.Context) ([]*Report, error) {
	descriptors, err := v.source.QueryDistinctStreams(ctx)
	if err != nil {
		return nil, err
	}
	var keys []waveform.StreamKey
	for _, d := range descriptors {
		if !slices.Contains(keys, d.Key) {
			keys = append(keys, d.Key)
		}
	}
	slices.SortFunc(keys, waveform.CompareStreamKeys)
	v.logger.Infof("validating %d streams", len(keys))

	reports := make([]*Report, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Concurrency)
	for i, key := range keys {
		g.Go(func() error {
			r, err := v.CheckStream(ctx, key)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Analyze builds the report for batches already ordered by start time.
func Analyze(key waveform.StreamKey, batches []waveform.Batch, tolerance time.Duration) *Report {
	r := newReport(key, tolerance)
	r.BatchCount = len(batches)

	type fingerprint struct {
		start int64
		n     int
		crc   uint16
	}
	seen := make(map[fingerprint]bool)

	var absGaps stats.Float64Data
	var prev *waveform.Batch
	var first, last *waveform.Batch
	for i := range batches {
		b := &batches[i]
		r.TotalSamples += len(b.Values)
		if b.Orphaned() {
			r.OrphanedBatches++
		}
		if !slices.Contains(r.Units, b.Unit) {
			r.Units = append(r.Units, b.Unit)
		}
		if err := b.Validate(); err != nil {
			r.InvalidIndices = append(r.InvalidIndices, i)
			continue
		}
		if !slices.Contains(r.SamplingRates, b.SamplingRate) {
			r.SamplingRates = append(r.SamplingRates, b.SamplingRate)
		}

		fp := fingerprint{start: b.StartTime.UnixNano(), n: len(b.Values), crc: checksum(b.Values)}
		if seen[fp] {
			r.DuplicateIndices = append(r.DuplicateIndices, i)
		}
		seen[fp] = true

		r.TotalActiveTime += b.Duration()
		if prev != nil {
			gap := b.StartTime.Sub(prev.EndTime())
			absGaps = append(absGaps, wfutils.DurationToSeconds(wfutils.AbsDuration(gap)))
			if wfutils.AbsDuration(gap) > tolerance {
				r.GapIndices = append(r.GapIndices, i)
				r.Gaps = append(r.Gaps, Gap{
					Index:         i,
					BatchID:       b.ID,
					PreviousEnd:   prev.EndTime(),
					Start:         b.StartTime,
					SinceLast:     gap,
					SinceLastSecs: wfutils.DurationToSeconds(gap),
				})
			}
		}
		if first == nil {
			first = b
		}
		last = b
		prev = b
	}

	if first != nil {
		r.TotalCalendarTime = last.EndTime().Sub(first.StartTime)
	}
	if len(absGaps) > 0 {
		if maxGap, err := stats.Max(absGaps); err == nil {
			r.MaxAbsGap = secondsToDuration(maxGap)
		}
		if meanGap, err := stats.Mean(absGaps); err == nil {
			r.MeanAbsGap = secondsToDuration(meanGap)
		}
	}
	return r
}

func checksum(values []float64) uint16 {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return crc16.Checksum(buf, crcTable)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func countViolations(r *Report) {
	add := func(kind string, n int) {
		if n > 0 {
			metrics.ValidationViolations.WithLabelValues(kind).Add(float64(n))
		}
	}
	add("gap", len(r.GapIndices))
	add("orphaned", r.OrphanedBatches)
	add("duplicate", len(r.DuplicateIndices))
	add("invalid", len(r.InvalidIndices))
	if len(r.SamplingRates) > 1 {
		add("sampling_rate", 1)
	}
	if len(r.Units) > 1 {
		add("unit", 1)
	}
}
