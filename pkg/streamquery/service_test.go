package streamquery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/logging"
	"github.com/NotCoffee418/waveform_explorer/pkg/streamquery"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform/waveformtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ecg   = waveform.StreamKey{ObservationTypeID: 27, SourceLocation: "UCHT03ICURM08"}
	pleth = waveform.StreamKey{ObservationTypeID: 28, SourceLocation: "UCHT03ICURM08"}
	t0    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newService(src *waveformtest.Source) *streamquery.Service {
	return streamquery.NewService(src, streamquery.DefaultOptions(), logging.Nop())
}

func TestGetWindowTrimsOverFetch(t *testing.T) {
	src := waveformtest.NewSource()
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	src.Add(waveform.Batch{ID: 1, Key: ecg, StartTime: t0.Add(-5 * time.Second), SamplingRate: 1, Values: values, Unit: "mV"})
	svc := newService(src)

	w, err := svc.GetWindow(context.Background(), ecg, t0, t0.Add(2*time.Second))
	require.NoError(t, err)

	require.Len(t, w.Samples, 3)
	for i, s := range w.Samples {
		assert.Equal(t, t0.Add(time.Duration(i)*time.Second), s.Time)
		assert.Equal(t, float64(5+i), s.Value)
		assert.False(t, s.Time.Before(w.Start))
		assert.False(t, s.Time.After(w.End))
	}
	assert.Equal(t, "mV", w.Unit)
	assert.Empty(t, w.Warnings)
	assert.True(t, w.Query.QueryStart.Before(t0.Add(-5*time.Second)))
}

func TestGetWindowAcrossBatches(t *testing.T) {
	src := waveformtest.NewSource()
	src.Add(waveformtest.Contiguous(ecg, t0.Add(-20*time.Second), 10, 8, 50)...)
	svc := newService(src)

	w, err := svc.GetWindowWidth(context.Background(), ecg, t0, 3*time.Second)
	require.NoError(t, err)
	// inclusive at both ends: 3s at 10Hz plus the end point
	require.Len(t, w.Samples, 31)
	assert.Equal(t, t0, w.Samples[0].Time)
	assert.Equal(t, t0.Add(3*time.Second), w.Samples[30].Time)
	for i := 1; i < len(w.Samples); i++ {
		assert.Equal(t, 100*time.Millisecond, w.Samples[i].Time.Sub(w.Samples[i-1].Time))
	}
}

func TestGetWindowZeroWidth(t *testing.T) {
	src := waveformtest.NewSource()
	src.Add(waveform.Batch{ID: 1, Key: ecg, StartTime: t0, SamplingRate: 2, Values: []float64{1, 2, 3}, Unit: "mV"})
	svc := newService(src)

	w, err := svc.GetWindow(context.Background(), ecg, t0.Add(500*time.Millisecond), t0.Add(500*time.Millisecond))
	require.NoError(t, err)
	require.Len(t, w.Samples, 1)
	assert.Equal(t, 2.0, w.Samples[0].Value)
}

func TestGetWindowEmpty(t *testing.T) {
	svc := newService(waveformtest.NewSource())
	w, err := svc.GetWindow(context.Background(), ecg, t0, t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, w.Empty())
	assert.Equal(t, waveform.NotAvailable, w.Unit)
	assert.Empty(t, w.Warnings)
}

func TestGetWindowAmbiguousUnit(t *testing.T) {
	src := waveformtest.NewSource()
	src.Add(
		waveform.Batch{ID: 1, Key: ecg, StartTime: t0, SamplingRate: 1, Values: []float64{1, 2}, Unit: "mV"},
		waveform.Batch{ID: 2, Key: ecg, StartTime: t0.Add(2 * time.Second), SamplingRate: 1, Values: []float64{3, 4}, Unit: "uV"},
	)
	svc := newService(src)

	w, err := svc.GetWindow(context.Background(), ecg, t0, t0.Add(4*time.Second))
	require.NoError(t, err)
	assert.Len(t, w.Samples, 4)
	assert.Equal(t, waveform.NotAvailable, w.Unit)
	require.Len(t, w.Warnings, 1)
	var unitErr *waveform.AmbiguousUnitError
	require.ErrorAs(t, w.Warnings[0], &unitErr)
	assert.Equal(t, []string{"mV", "uV"}, unitErr.Units)

	// the unit only counts when its samples are inside the window
	w, err = svc.GetWindow(context.Background(), ecg, t0, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "mV", w.Unit)
	assert.Empty(t, w.Warnings)
}

func TestGetWindowInvalid(t *testing.T) {
	src := waveformtest.NewSource()
	src.Add(waveform.Batch{ID: 1, Key: ecg, StartTime: t0, SamplingRate: 0, Values: []float64{1}})
	svc := newService(src)

	_, err := svc.GetWindow(context.Background(), ecg, t0.Add(time.Second), t0)
	assert.ErrorIs(t, err, waveform.ErrInvalidWindow)

	_, err = svc.GetWindow(context.Background(), ecg, t0, t0.Add(time.Second))
	assert.ErrorIs(t, err, waveform.ErrInvalidBatch)

	_, err = svc.GetWindowWidth(context.Background(), ecg, t0, 31*time.Second)
	assert.ErrorIs(t, err, waveform.ErrInvalidWindow)
	_, err = svc.GetWindowWidth(context.Background(), ecg, t0, 0)
	assert.ErrorIs(t, err, waveform.ErrInvalidWindow)
}

func TestGetWindowReusesNormalizedQuery(t *testing.T) {
	src := waveformtest.NewSource()
	src.Add(waveformtest.Contiguous(ecg, t0.Add(-30*time.Second), 1, 10, 10)...)
	svc := newService(src)
	ctx := context.Background()

	_, err := svc.GetWindow(ctx, ecg, t0.Add(5*time.Second), t0.Add(6*time.Second))
	require.NoError(t, err)
	_, err = svc.GetWindow(ctx, ecg, t0.Add(9*time.Second), t0.Add(10*time.Second))
	require.NoError(t, err)
	batches, _, _ := src.Calls()
	assert.Equal(t, 1, batches)

	_, err = svc.GetWindow(ctx, pleth, t0.Add(9*time.Second), t0.Add(10*time.Second))
	require.NoError(t, err)
	batches, _, _ = src.Calls()
	assert.Equal(t, 2, batches)
}

func TestGetBoundsCachedUntilCleared(t *testing.T) {
	src := waveformtest.NewSource()
	src.Add(waveformtest.Contiguous(ecg, t0, 1, 3, 5)...)
	svc := newService(src)
	ctx := context.Background()

	b1, err := svc.GetBounds(ctx, ecg)
	require.NoError(t, err)
	b2, err := svc.GetBounds(ctx, ecg)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
	_, minMax, _ := src.Calls()
	assert.Equal(t, 1, minMax)

	svc.ClearCache()
	_, err = svc.GetBounds(ctx, ecg)
	require.NoError(t, err)
	_, minMax, _ = src.Calls()
	assert.Equal(t, 2, minMax)

	assert.Equal(t, t0, b1.Min)
	assert.Equal(t, t0.Add(10*time.Second), b1.Max)
}

func TestGetBoundsNoData(t *testing.T) {
	svc := newService(waveformtest.NewSource())
	b, err := svc.GetBounds(context.Background(), ecg)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestDataSourceErrorPropagates(t *testing.T) {
	src := waveformtest.NewSource()
	src.Err = errors.New("connection refused")
	svc := newService(src)
	ctx := context.Background()

	var dsErr *waveform.DataSourceError
	_, err := svc.GetWindow(ctx, ecg, t0, t0.Add(time.Second))
	assert.ErrorAs(t, err, &dsErr)
	_, err = svc.GetBounds(ctx, ecg)
	assert.ErrorAs(t, err, &dsErr)
	_, err = svc.ListStreams(ctx)
	assert.ErrorAs(t, err, &dsErr)

	// no retry, and failures are not cached
	src.Err = nil
	_, err = svc.GetBounds(ctx, ecg)
	require.NoError(t, err)
	_, minMax, _ := src.Calls()
	assert.Equal(t, 2, minMax)
}

func TestListStreams(t *testing.T) {
	src := waveformtest.NewSource()
	bed2 := waveform.StreamKey{ObservationTypeID: 27, SourceLocation: "UCHT03ICURM02"}
	src.Add(waveformtest.Contiguous(ecg, t0, 1, 1, 5)...)
	src.Add(waveformtest.Contiguous(pleth, t0, 1, 1, 5)...)
	src.Add(waveformtest.Contiguous(bed2, t0, 1, 1, 5)...)
	src.Name(27, "ECG")
	src.Name(28, "Pleth")
	svc := newService(src)

	list, err := svc.ListStreams(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list.Warnings)
	assert.Equal(t, []waveform.Stream{
		{Key: bed2, DisplayName: "ECG"},
		{Key: ecg, DisplayName: "ECG"},
		{Key: pleth, DisplayName: "Pleth"},
	}, list.Streams)
	assert.Equal(t, []string{"UCHT03ICURM02", "UCHT03ICURM08"}, list.Locations())
	assert.Len(t, list.ForLocation("UCHT03ICURM08"), 2)

	_, err = svc.ListStreams(context.Background())
	require.NoError(t, err)
	_, _, streams := src.Calls()
	assert.Equal(t, 1, streams)
}

func TestListStreamsAmbiguousMapping(t *testing.T) {
	src := waveformtest.NewSource()
	src.Add(waveformtest.Contiguous(ecg, t0, 1, 1, 5)...)
	src.Add(waveformtest.Contiguous(pleth, t0, 1, 1, 5)...)
	src.Name(27, "ECG lead II")
	src.Name(27, "ECG")
	src.Name(28, "Pleth")
	svc := newService(src)

	list, err := svc.ListStreams(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Warnings, 1)
	var mapping *waveform.AmbiguousMappingError
	require.ErrorAs(t, list.Warnings[0], &mapping)
	assert.Equal(t, int64(27), mapping.ObservationTypeID)
	assert.Equal(t, []string{"ECG", "ECG lead II"}, mapping.Names)

	assert.Equal(t, []waveform.Stream{
		{Key: ecg, DisplayName: waveform.NotAvailable},
		{Key: pleth, DisplayName: "Pleth"},
	}, list.Streams)
}

func TestDefaultStart(t *testing.T) {
	svc := newService(waveformtest.NewSource())
	assert.Equal(t, t0.Add(45*time.Second), svc.DefaultStart(&waveform.TimeBounds{Min: t0, Max: t0.Add(time.Minute)}))
	assert.Equal(t, t0, svc.DefaultStart(&waveform.TimeBounds{Min: t0, Max: t0.Add(5 * time.Second)}))
	// single point stream
	assert.Equal(t, t0, svc.DefaultStart(&waveform.TimeBounds{Min: t0, Max: t0}))
	assert.Equal(t, 30*time.Second, svc.DefaultWidth())
}
