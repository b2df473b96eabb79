package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babyriver/internal/curve"
	"babyriver/internal/model"
)

func riverGeometry() curve.Geometry {
	return curve.Geometry{
		CenterX:       200,
		Amplitude:     120,
		HourHeight:    40,
		DaySeparator:  24,
		ZeroCrossings: 2,
	}
}

func measuredDays(t *testing.T, n int) *curve.Measured {
	t.Helper()
	g := riverGeometry()
	days := make([]model.Day, n)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range days {
		days[i] = model.Day{
			Date:        base.AddDate(0, 0, i),
			Index:       i,
			StartOffset: float64(i) * (g.DayHeight() + g.DaySeparator),
		}
	}
	m := curve.Measure(curve.BuildPath(days, g))
	require.Greater(t, m.Length(), 0.0)
	return m
}

func TestSampleCountBounds(t *testing.T) {
	assert.Equal(t, minSamples, sampleCount(0))
	assert.Equal(t, minSamples, sampleCount(300))
	assert.Equal(t, 250, sampleCount(1000))
	assert.Equal(t, maxSamples, sampleCount(1e6))
}

func TestBuildMonotonicKeys(t *testing.T) {
	s := Build(measuredDays(t, 3), 200)
	require.False(t, s.Empty())

	for i := 1; i < len(s.ys); i++ {
		assert.Greater(t, s.ys[i], s.ys[i-1], "keys must strictly increase")
	}
}

func TestLookupExactKey(t *testing.T) {
	s := Build(measuredDays(t, 1), 200)
	require.False(t, s.Empty())

	for i, y := range s.ys {
		got := s.Lookup(float64(y))
		assert.Equal(t, s.xs[i], got, "exact key %d must return recorded x", y)
	}
}

func TestLookupInterpolatesBetweenNeighbors(t *testing.T) {
	s := Build(measuredDays(t, 1), 200)
	require.Greater(t, s.Len(), 2)

	// Probe halfway between two adjacent keys that are more than 1 apart,
	// so rounding cannot produce an exact hit.
	for i := 1; i < len(s.ys); i++ {
		if s.ys[i]-s.ys[i-1] < 2 {
			continue
		}
		y := (float64(s.ys[i-1]) + float64(s.ys[i])) / 2
		got := s.Lookup(y)
		lo, hi := s.xs[i-1], s.xs[i]
		if lo > hi {
			lo, hi = hi, lo
		}
		assert.GreaterOrEqual(t, got, lo, "no overshoot below")
		assert.LessOrEqual(t, got, hi, "no overshoot above")
		return
	}
	t.Skip("no adjacent keys more than 1px apart")
}

func TestLookupSaturatesAtEnds(t *testing.T) {
	s := Build(measuredDays(t, 1), 200)
	require.False(t, s.Empty())

	assert.Equal(t, s.xs[0], s.Lookup(float64(s.ys[0])-500))
	assert.Equal(t, s.xs[len(s.xs)-1], s.Lookup(float64(s.ys[len(s.ys)-1])+500))
}

func TestLookupEmptyFallback(t *testing.T) {
	s := Build(nil, 123)
	assert.True(t, s.Empty())
	assert.Equal(t, 123.0, s.Lookup(50))

	var nilSample *CoordinateSample
	assert.Equal(t, 0.0, nilSample.Lookup(50))
}

func TestCacheEvictsOldest(t *testing.T) {
	c := newSampleCache(2)
	k1 := cacheKey{lengthCentiPx: 1, count: 100}
	k2 := cacheKey{lengthCentiPx: 2, count: 100}
	k3 := cacheKey{lengthCentiPx: 3, count: 100}

	c.put(k1, &CoordinateSample{})
	c.put(k2, &CoordinateSample{})
	c.put(k3, &CoordinateSample{})

	assert.Equal(t, 2, c.len())
	_, ok := c.get(k1)
	assert.False(t, ok, "oldest entry must be evicted")
	_, ok = c.get(k3)
	assert.True(t, ok)
}

func TestCachePutSameKeyDoesNotGrow(t *testing.T) {
	c := newSampleCache(2)
	k := cacheKey{lengthCentiPx: 1, count: 100}
	c.put(k, &CoordinateSample{})
	c.put(k, &CoordinateSample{})
	assert.Equal(t, 1, c.len())
}

func TestSamplerFallbackBeforeFirstBuild(t *testing.T) {
	s := NewSampler(Options{FallbackX: 200})
	defer s.Close()

	assert.Equal(t, 200.0, s.Lookup(1234))
}

func TestSamplerRebuildNow(t *testing.T) {
	s := NewSampler(Options{FallbackX: 200})
	defer s.Close()

	got := s.RebuildNow(measuredDays(t, 2))
	require.False(t, got.Empty())
	assert.Same(t, got, s.Current())
}

func TestSamplerDebounceCoalesces(t *testing.T) {
	var published int
	s := NewSampler(Options{
		FallbackX: 200,
		Debounce:  20 * time.Millisecond,
		OnReady:   func(*CoordinateSample) { published++ },
	})
	defer s.Close()

	one := measuredDays(t, 1)
	three := measuredDays(t, 3)

	// Rapid successive requests within the debounce window build once,
	// against the most recent path.
	s.Request(one)
	s.Request(three)

	require.Eventually(t, func() bool {
		return !s.Current().Empty()
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, published)
	// The three-day path is much longer, so its sample map carries a far
	// larger final key than the one-day path's would.
	last := s.Current().ys[s.Current().Len()-1]
	assert.Greater(t, float64(last), one.Length())
}

func TestSamplerCacheHitRepublishes(t *testing.T) {
	s := NewSampler(Options{FallbackX: 200})
	defer s.Close()

	m := measuredDays(t, 2)
	first := s.RebuildNow(m)
	second := s.RebuildNow(m)
	assert.Same(t, first, second, "identical geometry must be served from cache")
}

func TestSamplerCloseCancelsPending(t *testing.T) {
	var published int
	s := NewSampler(Options{
		FallbackX: 200,
		Debounce:  10 * time.Millisecond,
		OnReady:   func(*CoordinateSample) { published++ },
	})

	s.Request(measuredDays(t, 1))
	s.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, published)
	assert.True(t, s.Current().Empty())
}
