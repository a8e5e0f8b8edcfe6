package wfutils

import (
	"math"
	"time"
)

// SampleOffset is the time between the first sample of a batch and the sample at
// the given zero-based index. Rounded to the nearest nanosecond.
func SampleOffset(index int, samplingRate float64) time.Duration {
	return time.Duration(math.Round(float64(index) * float64(time.Second) / samplingRate))
}

// Time covered by n samples at the given rate
func SamplesDuration(n int, samplingRate float64) time.Duration {
	return SampleOffset(n, samplingRate)
}

func SecondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Fractional seconds for API payloads
func DurationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}

// AbsDuration returns |d|. math.MinInt64 saturates to the max duration.
func AbsDuration(d time.Duration) time.Duration {
	if d >= 0 {
		return d
	}
	if d == math.MinInt64 {
		return math.MaxInt64
	}
	return -d
}
