package window_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m, s, ns int) time.Time {
	return time.Date(2024, 3, 1, h, m, s, ns, time.UTC)
}

func TestNormalizeExample(t *testing.T) {
	n := window.NewNormalizer()
	b, err := n.Normalize(at(12, 0, 5, 250_000_000), at(12, 0, 35, 250_000_000))
	require.NoError(t, err)
	// 12:00:05.25 - 30s = 11:59:35.25 -> 11:59:30
	assert.Equal(t, at(11, 59, 30, 0), b.QueryStart)
	assert.Equal(t, at(12, 0, 40, 0), b.QueryEnd)
}

func TestNormalizeSameBucket(t *testing.T) {
	n := window.NewNormalizer()
	b1, err := n.Normalize(at(12, 0, 5, 0), at(12, 0, 6, 0))
	require.NoError(t, err)
	b2, err := n.Normalize(at(12, 0, 9, 0), at(12, 0, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, b1.QueryStart, b2.QueryStart)
	assert.Equal(t, at(11, 59, 30, 0), b1.QueryStart)

	// 12:00:09.999 still shares the bucket
	b3, err := n.Normalize(at(12, 0, 9, 999_000_000), at(12, 0, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, b1.QueryStart, b3.QueryStart)

	// 12:00:10 starts the next one
	b4, err := n.Normalize(at(12, 0, 10, 0), at(12, 0, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(11, 59, 40, 0), b4.QueryStart)
}

func TestNormalizeEndCeiling(t *testing.T) {
	n := window.NewNormalizer()
	start := at(12, 0, 0, 0)
	cases := []struct {
		end  time.Time
		want time.Time
	}{
		{at(12, 0, 5, 0), at(12, 0, 5, 0)},
		{at(12, 0, 5, 1), at(12, 0, 10, 0)},
		{at(12, 0, 5, 500_000_000), at(12, 0, 10, 0)},
		{at(12, 0, 6, 0), at(12, 0, 10, 0)},
		{at(12, 0, 57, 0), at(12, 1, 0, 0)},
		{at(23, 59, 59, 0), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		b, err := n.Normalize(start, c.end)
		require.NoError(t, err)
		assert.Equal(t, c.want, b.QueryEnd, "end %s", c.end)
		assert.False(t, b.QueryEnd.Before(c.end))
	}
}

func TestNormalizeZeroWidth(t *testing.T) {
	n := window.NewNormalizer()
	p := at(12, 0, 7, 0)
	b, err := n.Normalize(p, p)
	require.NoError(t, err)
	assert.True(t, !b.QueryStart.After(p))
	assert.True(t, !b.QueryEnd.Before(p))
}

func TestNormalizeRejectsInvertedWindow(t *testing.T) {
	n := window.NewNormalizer()
	_, err := n.Normalize(at(12, 0, 10, 0), at(12, 0, 9, 0))
	assert.ErrorIs(t, err, waveform.ErrInvalidWindow)
}

func TestNormalizeCoversRequest(t *testing.T) {
	n := window.NewNormalizer()
	r := rand.New(rand.NewSource(42))
	base := at(0, 0, 0, 0)
	for i := 0; i < 1000; i++ {
		start := base.Add(time.Duration(r.Int63n(int64(24 * time.Hour))))
		end := start.Add(time.Duration(r.Int63n(int64(30 * time.Second))))
		b, err := n.Normalize(start, end)
		require.NoError(t, err)
		assert.False(t, b.QueryStart.After(start.Add(-n.MaxBatchDuration)))
		assert.False(t, b.QueryEnd.Before(end))
		assert.Equal(t, 0, b.QueryStart.Nanosecond())

		again, err := n.Normalize(start, end)
		require.NoError(t, err)
		assert.Equal(t, b, again)
	}
}

func TestNormalizeCustomGranularity(t *testing.T) {
	n := window.Normalizer{MaxBatchDuration: 5 * time.Second, StartGranularity: time.Minute, EndGranularity: time.Minute}
	b, err := n.Normalize(at(12, 1, 3, 0), at(12, 1, 30, 0))
	require.NoError(t, err)
	assert.Equal(t, at(12, 0, 0, 0), b.QueryStart)
	assert.Equal(t, at(12, 2, 0, 0), b.QueryEnd)
}
