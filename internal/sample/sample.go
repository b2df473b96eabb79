// Package sample inverts the rendered timeline path: given a vertical
// (time) position it answers the horizontal coordinate the curve actually
// occupies there. The analytic control-point math only approximates what a
// rasterizer draws, so lookups are served from an arc-length sampling of
// the measured path, not from the control points.
package sample

import (
	"math"
	"sort"

	"babyriver/internal/curve"
)

const (
	// sampleStepPx is the target arc-length distance between samples.
	sampleStepPx = 4.0

	// minSamples / maxSamples bound the sample count regardless of path
	// length, keeping rebuild cost predictable on large windows.
	minSamples = 100
	maxSamples = 500
)

// sampleCount scales the number of samples with the path length, clamped
// to [minSamples, maxSamples].
func sampleCount(length float64) int {
	n := int(length / sampleStepPx)
	if n < minSamples {
		return minSamples
	}
	if n > maxSamples {
		return maxSamples
	}
	return n
}

// CoordinateSample is an immutable rounded-Y -> X lookup table.
//
// Keys are strictly increasing: Y grows monotonically with elapsed time
// within a day and across days, which is what makes binary search valid.
type CoordinateSample struct {
	ys        []int
	xs        []float64
	fallbackX float64
}

// Empty reports whether the sample holds no data points.
func (s *CoordinateSample) Empty() bool {
	return s == nil || len(s.ys) == 0
}

// Len returns the number of recorded samples.
func (s *CoordinateSample) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ys)
}

// Lookup returns the on-screen X for vertical position y.
//
// Exact key hits return the recorded X; misses interpolate linearly
// between the nearest samples below and above. Beyond either end the
// nearest recorded X is returned, and an empty sample yields the fallback
// (curve center) so markers are placed imprecisely rather than omitted.
func (s *CoordinateSample) Lookup(y float64) float64 {
	if s.Empty() {
		if s == nil {
			return 0
		}
		return s.fallbackX
	}

	key := int(math.Round(y))
	idx := sort.SearchInts(s.ys, key)
	if idx < len(s.ys) && s.ys[idx] == key {
		return s.xs[idx]
	}

	// key sorts between ys[idx-1] and ys[idx].
	if idx == 0 {
		return s.xs[0]
	}
	if idx == len(s.ys) {
		return s.xs[len(s.xs)-1]
	}

	loY, hiY := float64(s.ys[idx-1]), float64(s.ys[idx])
	t := (y - loY) / (hiY - loY)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return s.xs[idx-1] + (s.xs[idx]-s.xs[idx-1])*t
}

// Build samples the measured path synchronously. Use Sampler for the
// debounced, chunked variant.
func Build(m *curve.Measured, fallbackX float64) *CoordinateSample {
	out, _ := build(m, fallbackX, nil)
	return out
}

// build walks the path at evenly spaced arc-length steps, recording
// (round(y), x) per step and skipping keys that would break monotonicity.
// shouldAbort, when non-nil, is consulted periodically; a true return
// abandons the build (second return false).
func build(m *curve.Measured, fallbackX float64, shouldAbort func(done int) bool) (*CoordinateSample, bool) {
	s := &CoordinateSample{fallbackX: fallbackX}
	if m == nil || m.Length() == 0 {
		return s, true
	}

	n := sampleCount(m.Length())
	step := m.Length() / float64(n)
	s.ys = make([]int, 0, n+1)
	s.xs = make([]float64, 0, n+1)

	lastKey := math.MinInt
	for i := 0; i <= n; i++ {
		if shouldAbort != nil && i%buildChunkSize == 0 && shouldAbort(i) {
			return nil, false
		}
		x, y := m.PointAt(float64(i) * step)
		key := int(math.Round(y))
		if key <= lastKey {
			continue
		}
		s.ys = append(s.ys, key)
		s.xs = append(s.xs, x)
		lastKey = key
	}
	return s, true
}
