package waveform

import (
	"fmt"
	"iter"
	"math"

	"github.com/NotCoffee418/waveform_explorer/pkg/wfutils"
)

// Validate checks the batch can be expanded.
func (b *Batch) Validate() error {
	if math.IsNaN(b.SamplingRate) || math.IsInf(b.SamplingRate, 0) || b.SamplingRate <= 0 {
		return fmt.Errorf("%w: batch %d has sampling rate %v", ErrInvalidBatch, b.ID, b.SamplingRate)
	}
	if len(b.Values) == 0 {
		return fmt.Errorf("%w: batch %d has no values", ErrInvalidBatch, b.ID)
	}
	return nil
}

// Expand returns the samples of a batch in ascending time order.
// Sample i is observed at StartTime + i/SamplingRate seconds, i counted from zero.
// The sequence is lazy and can be iterated any number of times.
func Expand(b Batch) (iter.Seq[Sample], error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return func(yield func(Sample) bool) {
		for i, v := range b.Values {
			s := Sample{
				Key:          b.Key,
				BatchID:      b.ID,
				Index:        i,
				Time:         b.StartTime.Add(wfutils.SampleOffset(i, b.SamplingRate)),
				Value:        v,
				SamplingRate: b.SamplingRate,
				Unit:         b.Unit,
			}
			if !yield(s) {
				return
			}
		}
	}, nil
}
