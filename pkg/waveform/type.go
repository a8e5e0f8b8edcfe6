// Package waveform holds the batch and sample model shared by every other package,
// and the expansion of stored batches into individually timestamped samples.
package waveform

import (
	"cmp"
	"fmt"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/wfutils"
)

// Display value used whenever a unit or name cannot be resolved unambiguously.
const NotAvailable = "n/a"

// StreamKey identifies one logical timeseries.
type StreamKey struct {
	ObservationTypeID int64  `json:"observation_type_id"`
	SourceLocation    string `json:"source_location"`
}

func (k StreamKey) String() string {
	return fmt.Sprintf("%d@%s", k.ObservationTypeID, k.SourceLocation)
}

// CompareStreamKeys orders by source location, then observation type.
func CompareStreamKeys(a, b StreamKey) int {
	return cmp.Or(
		cmp.Compare(a.SourceLocation, b.SourceLocation),
		cmp.Compare(a.ObservationTypeID, b.ObservationTypeID),
	)
}

// Batch is one stored row: a contiguous run of samples captured at a fixed rate.
// StartTime is the time of the first sample, not the time the row was written.
type Batch struct {
	ID           int64
	Key          StreamKey
	StartTime    time.Time
	SamplingRate float64 // samples per second
	Values       []float64
	Unit         string

	// Nil when the batch is not associated with a hospital visit.
	LocationVisitID *int64
}

// Duration is the time covered by all samples in the batch.
func (b *Batch) Duration() time.Duration {
	return wfutils.SamplesDuration(len(b.Values), b.SamplingRate)
}

// EndTime is where the next batch of a contiguous stream is expected to start.
func (b *Batch) EndTime() time.Time {
	return b.StartTime.Add(b.Duration())
}

func (b *Batch) Orphaned() bool {
	return b.LocationVisitID == nil
}

// Sample is a single reconstructed point. Never persisted.
type Sample struct {
	Key          StreamKey `json:"-"`
	BatchID      int64     `json:"batch_id"`
	Index        int       `json:"index"`
	Time         time.Time `json:"time"`
	Value        float64   `json:"value"`
	SamplingRate float64   `json:"-"`
	Unit         string    `json:"-"`
}

// StreamDescriptor is one distinct stream as reported by a data source.
type StreamDescriptor struct {
	Key         StreamKey
	DisplayName string
	Unit        string
}

// Stream is a stream with the name it should be shown under.
type Stream struct {
	Key         StreamKey `json:"key"`
	DisplayName string    `json:"display_name"`
}

// TimeBounds are the earliest and latest batch start times of a stream.
// Min == Max is a valid single-point range.
type TimeBounds struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}
