// Package curve generates the continuous "river of time" path that the
// timeline draws down the page, and measures it so that vertical positions
// can be mapped back to the horizontal coordinate actually drawn.
package curve

import (
	"math"
	"strconv"
	"strings"

	"babyriver/internal/model"
)

// Geometry holds the curve parameters shared by path generation and
// event placement.
type Geometry struct {
	// CenterX is the horizontal centerline of the river in pixels.
	CenterX float64

	// Amplitude is the maximum horizontal deflection from the centerline.
	Amplitude float64

	// HourHeight is the vertical extent of one hour in pixels.
	HourHeight float64

	// DaySeparator is the vertical gap between consecutive day bands.
	DaySeparator float64

	// ZeroCrossings selects the control-point template: how many times the
	// curve swings across the centerline within 24 hours (1..4).
	ZeroCrossings int
}

// DayHeight returns the vertical extent of a full day band.
func (g Geometry) DayHeight() float64 {
	return 24 * g.HourHeight
}

// ControlPoint defines the curve's relative deflection at a given hour of
// the day. Deflect is in [-1, 1] and is scaled by Geometry.Amplitude.
type ControlPoint struct {
	Hour    float64
	Deflect float64
}

// templates maps zero-crossings-per-day to a periodic control-point set.
//
// Every template must start and end at deflection 0: the last point of day
// i and the first point of day i+1 land on the same x, so consecutive days
// join without a visible kink. TestTemplateSeams enforces this.
var templates = map[int][]ControlPoint{
	1: {
		{Hour: 0, Deflect: 0},
		{Hour: 6, Deflect: 1},
		{Hour: 18, Deflect: -1},
		{Hour: 24, Deflect: 0},
	},
	2: {
		{Hour: 0, Deflect: 0},
		{Hour: 4, Deflect: 1},
		{Hour: 12, Deflect: -1},
		{Hour: 20, Deflect: 1},
		{Hour: 24, Deflect: 0},
	},
	3: {
		{Hour: 0, Deflect: 0},
		{Hour: 3, Deflect: 1},
		{Hour: 9, Deflect: -1},
		{Hour: 15, Deflect: 1},
		{Hour: 21, Deflect: -1},
		{Hour: 24, Deflect: 0},
	},
	4: {
		{Hour: 0, Deflect: 0},
		{Hour: 2.4, Deflect: 1},
		{Hour: 7.2, Deflect: -1},
		{Hour: 12, Deflect: 1},
		{Hour: 16.8, Deflect: -1},
		{Hour: 21.6, Deflect: 1},
		{Hour: 24, Deflect: 0},
	},
}

// Template returns the control points for the given zero-crossing count.
// Unknown counts fall back to the 2-crossing template.
func Template(zeroCrossings int) []ControlPoint {
	if t, ok := templates[zeroCrossings]; ok {
		return t
	}
	return templates[2]
}

// Op identifies a path drawing command.
type Op int

const (
	// MoveTo starts a subpath at (X, Y).
	MoveTo Op = iota
	// CubicTo draws a cubic Bezier with controls (X1,Y1), (X2,Y2) to (X,Y).
	CubicTo
	// SmoothCubicTo draws a cubic whose first control is the reflection of
	// the previous segment's second control, with (X2,Y2) and endpoint (X,Y).
	SmoothCubicTo
	// QuadTo draws a quadratic Bezier with control (X1,Y1) to (X,Y).
	QuadTo
	// SmoothQuadTo draws a quadratic whose control is the reflection of the
	// previous quadratic's control, to (X,Y).
	SmoothQuadTo
)

// Command is one drawing instruction of a Path.
type Command struct {
	Op             Op
	X1, Y1, X2, Y2 float64
	X, Y           float64
}

// Path is an analytic path description: a sequence of drawing commands
// consumable by any vector surface (SVG "d" syntax via D()).
type Path struct {
	Commands []Command
}

// Empty reports whether the path draws nothing.
func (p Path) Empty() bool {
	return len(p.Commands) == 0
}

// D renders the path in SVG path-data syntax.
func (p Path) D() string {
	var b strings.Builder
	for i, c := range p.Commands {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c.Op {
		case MoveTo:
			b.WriteString("M ")
			writeCoord(&b, c.X, c.Y)
		case CubicTo:
			b.WriteString("C ")
			writeCoord(&b, c.X1, c.Y1)
			b.WriteByte(' ')
			writeCoord(&b, c.X2, c.Y2)
			b.WriteByte(' ')
			writeCoord(&b, c.X, c.Y)
		case SmoothCubicTo:
			b.WriteString("S ")
			writeCoord(&b, c.X2, c.Y2)
			b.WriteByte(' ')
			writeCoord(&b, c.X, c.Y)
		case QuadTo:
			b.WriteString("Q ")
			writeCoord(&b, c.X1, c.Y1)
			b.WriteByte(' ')
			writeCoord(&b, c.X, c.Y)
		case SmoothQuadTo:
			b.WriteString("T ")
			writeCoord(&b, c.X, c.Y)
		}
	}
	return b.String()
}

func writeCoord(b *strings.Builder, x, y float64) {
	b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(y, 'f', -1, 64))
}

// Round2 rounds a coordinate to 0.01px. All path coordinates run through
// this before emission so repeated renders of identical inputs produce
// byte-identical paths and deterministic downstream sampling.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildPath produces one continuous path spanning all given days
// back-to-back. An empty day list yields an empty path ("nothing to draw",
// not an error).
//
// The first segment is an explicit cubic; every following segment is a
// smooth continuation, so the whole multi-day curve is C1-continuous,
// including across the day-separator gap between hour 24 of one day and
// hour 0 of the next.
func BuildPath(days []model.Day, g Geometry) Path {
	if len(days) == 0 {
		return Path{}
	}

	tpl := Template(g.ZeroCrossings)

	type pt struct{ x, y float64 }
	pts := make([]pt, 0, len(days)*len(tpl))
	for _, day := range days {
		for _, cp := range tpl {
			pts = append(pts, pt{
				x: Round2(g.CenterX + cp.Deflect*g.Amplitude),
				y: Round2(day.StartOffset + cp.Hour*g.HourHeight),
			})
		}
	}

	cmds := make([]Command, 0, len(pts))
	cmds = append(cmds, Command{Op: MoveTo, X: pts[0].x, Y: pts[0].y})
	for i := 1; i < len(pts); i++ {
		prev, cur := pts[i-1], pts[i]
		midY := Round2((prev.y + cur.y) / 2)
		if i == 1 {
			// Vertical tangent handles: the river enters and leaves every
			// control point flowing straight down.
			cmds = append(cmds, Command{
				Op: CubicTo,
				X1: prev.x, Y1: midY,
				X2: cur.x, Y2: midY,
				X: cur.x, Y: cur.y,
			})
			continue
		}
		cmds = append(cmds, Command{
			Op: SmoothCubicTo,
			X2: cur.x, Y2: midY,
			X: cur.x, Y: cur.y,
		})
	}

	return Path{Commands: cmds}
}

// TotalHeight returns the vertical extent covered by n day bands,
// including the separators between them.
func TotalHeight(n int, g Geometry) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n)*g.DayHeight() + float64(n-1)*g.DaySeparator
}
