package curve

import "math"

// flattenTolerance is the maximum distance, in pixels, a tessellated chord
// may deviate from the true Bezier segment.
const flattenTolerance = 0.25

// maxSubdivisionDepth bounds De Casteljau recursion; 2^16 chords per
// segment is far beyond what any on-screen curve needs.
const maxSubdivisionDepth = 16

type vec struct{ x, y float64 }

func lerp(a, b vec, t float64) vec {
	return vec{a.x + (b.x-a.x)*t, a.y + (b.y-a.y)*t}
}

func dist(a, b vec) float64 {
	return math.Hypot(b.x-a.x, b.y-a.y)
}

// Measured is the tessellated form of a Path: a polyline with cumulative
// arc lengths, supporting length queries and point-at-length sampling.
// It is the standalone equivalent of a drawing surface's getTotalLength /
// getPointAtLength pair, built from internal De Casteljau subdivision so
// it does not depend on any rendering backend.
//
// A Measured is immutable after construction and safe for concurrent reads.
type Measured struct {
	pts []vec
	cum []float64 // cum[i] is the arc length from pts[0] to pts[i]
}

// Measure tessellates the path. Smooth commands are resolved against the
// running previous control point exactly as a conforming SVG renderer
// would, so the measured geometry matches what gets drawn.
func Measure(p Path) *Measured {
	m := &Measured{}
	var cur vec
	var prevCubicCtrl, prevQuadCtrl vec
	var havePrevCubic, havePrevQuad bool

	push := func(v vec) {
		if n := len(m.pts); n > 0 {
			last := m.pts[n-1]
			if last == v {
				return
			}
			m.cum = append(m.cum, m.cum[n-1]+dist(last, v))
		} else {
			m.cum = append(m.cum, 0)
		}
		m.pts = append(m.pts, v)
	}

	for _, c := range p.Commands {
		switch c.Op {
		case MoveTo:
			cur = vec{c.X, c.Y}
			push(cur)
			havePrevCubic, havePrevQuad = false, false

		case CubicTo, SmoothCubicTo:
			var c1 vec
			if c.Op == CubicTo {
				c1 = vec{c.X1, c.Y1}
			} else if havePrevCubic {
				c1 = vec{2*cur.x - prevCubicCtrl.x, 2*cur.y - prevCubicCtrl.y}
			} else {
				c1 = cur
			}
			c2 := vec{c.X2, c.Y2}
			end := vec{c.X, c.Y}
			flattenCubic(cur, c1, c2, end, 0, push)
			cur = end
			prevCubicCtrl = c2
			havePrevCubic, havePrevQuad = true, false

		case QuadTo, SmoothQuadTo:
			var q vec
			if c.Op == QuadTo {
				q = vec{c.X1, c.Y1}
			} else if havePrevQuad {
				q = vec{2*cur.x - prevQuadCtrl.x, 2*cur.y - prevQuadCtrl.y}
			} else {
				q = cur
			}
			end := vec{c.X, c.Y}
			// Raise to cubic so one flattener serves both degrees.
			c1 := lerp(cur, q, 2.0/3.0)
			c2 := lerp(end, q, 2.0/3.0)
			flattenCubic(cur, c1, c2, end, 0, push)
			cur = end
			prevQuadCtrl = q
			havePrevQuad, havePrevCubic = true, false
		}
	}
	return m
}

// flattenCubic recursively subdivides until the control polygon is within
// flattenTolerance of the chord, then emits the endpoint.
func flattenCubic(p0, p1, p2, p3 vec, depth int, push func(vec)) {
	if depth >= maxSubdivisionDepth || cubicFlat(p0, p1, p2, p3) {
		push(p3)
		return
	}
	// De Casteljau split at t=0.5.
	p01 := lerp(p0, p1, 0.5)
	p12 := lerp(p1, p2, 0.5)
	p23 := lerp(p2, p3, 0.5)
	p012 := lerp(p01, p12, 0.5)
	p123 := lerp(p12, p23, 0.5)
	mid := lerp(p012, p123, 0.5)

	flattenCubic(p0, p01, p012, mid, depth+1, push)
	flattenCubic(mid, p123, p23, p3, depth+1, push)
}

// cubicFlat tests whether both control points lie within tolerance of the
// p0-p3 chord.
func cubicFlat(p0, p1, p2, p3 vec) bool {
	return pointChordDist(p1, p0, p3) <= flattenTolerance &&
		pointChordDist(p2, p0, p3) <= flattenTolerance
}

func pointChordDist(p, a, b vec) float64 {
	dx, dy := b.x-a.x, b.y-a.y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return dist(p, a)
	}
	// Perpendicular distance to the infinite line through a and b.
	return math.Abs(dx*(a.y-p.y)-dy*(a.x-p.x)) / l
}

// Length returns the total arc length of the measured path.
func (m *Measured) Length() float64 {
	if len(m.cum) == 0 {
		return 0
	}
	return m.cum[len(m.cum)-1]
}

// PointAt returns the coordinate at the given arc-length distance from the
// path start. The distance is clamped to [0, Length()].
func (m *Measured) PointAt(d float64) (x, y float64) {
	n := len(m.pts)
	if n == 0 {
		return 0, 0
	}
	if n == 1 || d <= 0 {
		return m.pts[0].x, m.pts[0].y
	}
	total := m.cum[n-1]
	if d >= total {
		return m.pts[n-1].x, m.pts[n-1].y
	}

	// Binary search for the chord containing d.
	lo, hi := 0, n-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if m.cum[mid] <= d {
			lo = mid
		} else {
			hi = mid
		}
	}

	segLen := m.cum[hi] - m.cum[lo]
	t := 0.0
	if segLen > 0 {
		t = (d - m.cum[lo]) / segLen
	}
	p := lerp(m.pts[lo], m.pts[hi], t)
	return p.x, p.y
}
