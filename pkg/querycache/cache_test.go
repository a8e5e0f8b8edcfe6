package querycache_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/NotCoffee418/waveform_explorer/pkg/metrics"
	"github.com/NotCoffee418/waveform_explorer/pkg/querycache"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boundsKey struct {
	typeID   int64
	location string
}

func TestGetOrComputeMemoizes(t *testing.T) {
	c := querycache.New[boundsKey, int]("test_memo")
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrCompute(boundsKey{1, "bed1"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrCompute(boundsKey{1, "bed1"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	// different arguments are a different entry
	_, err = c.GetOrCompute(boundsKey{1, "bed2"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, c.Len())
}

func TestClear(t *testing.T) {
	c := querycache.New[string, string]("test_clear")
	calls := 0
	compute := func() (string, error) {
		calls++
		return fmt.Sprintf("v%d", calls), nil
	}

	v, _ := c.GetOrCompute("k", compute)
	assert.Equal(t, "v1", v)
	v, _ = c.GetOrCompute("k", compute)
	assert.Equal(t, "v1", v)

	c.Clear()
	assert.Equal(t, 0, c.Len())

	v, _ = c.GetOrCompute("k", compute)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 2, calls)
}

func TestErrorsAreNotCached(t *testing.T) {
	c := querycache.New[string, int]("test_errors")
	boom := errors.New("boom")
	calls := 0

	_, err := c.GetOrCompute("k", func() (int, error) {
		calls++
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("k")
	assert.False(t, ok)

	v, err := c.GetOrCompute("k", func() (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestConcurrentAccess(t *testing.T) {
	c := querycache.New[int, int]("test_concurrent")
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(i%4, func() (int, error) {
				calls.Add(1)
				return (i % 4) * 10, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, (i%4)*10, v)
			if i%16 == 0 {
				c.Clear()
			}
		}(i)
	}
	wg.Wait()
	assert.GreaterOrEqual(t, int(calls.Load()), 4)
	assert.LessOrEqual(t, c.Len(), 4)
}

func TestEntriesGauge(t *testing.T) {
	c := querycache.New[string, int]("test_entries")
	entries := func() float64 {
		var m dto.Metric
		require.NoError(t, metrics.CacheEntries.WithLabelValues("test_entries").Write(&m))
		return m.GetGauge().GetValue()
	}

	for _, k := range []string{"a", "b", "a"} {
		_, err := c.GetOrCompute(k, func() (int, error) { return 1, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, float64(2), entries())

	c.Clear()
	assert.Equal(t, float64(0), entries())
}
