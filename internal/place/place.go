// Package place converts domain events into screen placements on the
// timeline curve, using the current day window and the coordinate sample
// built from the rendered path.
package place

import (
	"time"

	"babyriver/internal/curve"
	"babyriver/internal/log"
	"babyriver/internal/model"
)

// DurationThresholdMinutes separates point markers from duration spans.
// Events at or below the threshold are always points.
const DurationThresholdMinutes = 60

// Connector sampling bounds: the vertical step between connector samples
// adapts to the span but stays within these limits.
const (
	minConnectorStepPx = 5.0
	maxConnectorStepPx = 20.0
	connectorStepRatio = 16.0 // step target is span/ratio before clamping
)

// Kind distinguishes placement shapes.
type Kind int

const (
	// Point is a single marker at the event's time.
	Point Kind = iota
	// Duration is a start and end marker joined by a connector path.
	Duration
)

// Placement is the computed screen position of one event.
type Placement struct {
	EventID string
	Type    model.EventType
	Kind    Kind

	// X, Y is the marker position; for Duration placements it is the
	// start coordinate.
	X, Y float64

	// EndX, EndY and Connector are set only for Duration placements.
	EndX, EndY float64
	Connector  curve.Path
}

// Lookup resolves a vertical position to the horizontal coordinate of the
// rendered curve. *sample.CoordinateSample and *sample.Sampler both
// satisfy it.
type Lookup interface {
	Lookup(y float64) float64
}

// Events computes placements for all events against the given day window.
//
// Failure handling follows the timeline's degrade-don't-crash policy:
// events with unparseable dates or times are logged and skipped, events
// whose day is outside the window are silently excluded (they return once
// their day scrolls in), and nothing here returns an error.
func Events(events []model.Event, days []model.Day, lk Lookup, g curve.Geometry) []Placement {
	out := make([]Placement, 0, len(events))
	for _, e := range events {
		p, ok := placeOne(e, days, lk, g)
		if !ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

func placeOne(e model.Event, days []model.Day, lk Lookup, g curve.Geometry) (Placement, bool) {
	date, err := model.ParseDate(e.Date)
	if err != nil {
		log.Warn("skipping event with unparseable date", "event_id", e.ID, "date", e.Date)
		return Placement{}, false
	}

	day, ok := findDay(days, date)
	if !ok {
		// Outside the visible window; expected during scrolling.
		return Placement{}, false
	}

	startMin, err := e.StartClock()
	if err != nil {
		log.Warn("skipping event with unparseable time",
			"event_id", e.ID,
			"time", e.Time,
			"start_time", e.Detail.StartTime,
		)
		return Placement{}, false
	}

	dur := e.EffectiveDuration()
	startY := clockY(day, startMin, g)

	if dur <= DurationThresholdMinutes {
		return Placement{
			EventID: e.ID,
			Type:    e.Type,
			Kind:    Point,
			X:       curve.Round2(lk.Lookup(startY)),
			Y:       curve.Round2(startY),
		}, true
	}

	endY := spanEndY(days, day, startMin+dur, g)
	return Placement{
		EventID:   e.ID,
		Type:      e.Type,
		Kind:      Duration,
		X:         curve.Round2(lk.Lookup(startY)),
		Y:         curve.Round2(startY),
		EndX:      curve.Round2(lk.Lookup(endY)),
		EndY:      curve.Round2(endY),
		Connector: connectorPath(startY, endY, lk),
	}, true
}

func findDay(days []model.Day, date time.Time) (model.Day, bool) {
	for _, d := range days {
		if d.SameDate(date) {
			return d, true
		}
	}
	return model.Day{}, false
}

// clockY maps minutes-since-midnight to a vertical position inside the
// day's band, blending between the hour and next-hour positions by the
// minute fraction. Y is linear in time, so the blend is a straight lerp.
func clockY(day model.Day, minutes int, g curve.Geometry) float64 {
	hour := minutes / 60
	frac := float64(minutes%60) / 60
	return day.StartOffset + (float64(hour)+frac)*g.HourHeight
}

// spanEndY resolves the end of a duration span that may roll past
// midnight into the next day's band. When the next day is not loaded the
// end saturates at the bottom of the current day's band.
func spanEndY(days []model.Day, day model.Day, endMinutes int, g curve.Geometry) float64 {
	const dayMinutes = 24 * 60
	if endMinutes <= dayMinutes {
		return clockY(day, endMinutes, g)
	}
	next := day.Index + 1
	if next < len(days) {
		return clockY(days[next], endMinutes-dayMinutes, g)
	}
	return day.StartOffset + g.DayHeight()
}

// connectorPath samples intermediate Y positions between the two
// endpoints at an adaptive step and joins them with quadratic segments
// whose controls are the sampled curve points, so the connector visually
// tracks the main curve instead of cutting a chord across it.
func connectorPath(startY, endY float64, lk Lookup) curve.Path {
	span := endY - startY
	if span <= 0 {
		return curve.Path{}
	}

	step := span / connectorStepRatio
	if step < minConnectorStepPx {
		step = minConnectorStepPx
	} else if step > maxConnectorStepPx {
		step = maxConnectorStepPx
	}

	type pt struct{ x, y float64 }
	var pts []pt
	for y := startY; y < endY; y += step {
		pts = append(pts, pt{curve.Round2(lk.Lookup(y)), curve.Round2(y)})
	}
	pts = append(pts, pt{curve.Round2(lk.Lookup(endY)), curve.Round2(endY)})

	cmds := make([]curve.Command, 0, len(pts))
	cmds = append(cmds, curve.Command{Op: curve.MoveTo, X: pts[0].x, Y: pts[0].y})
	if len(pts) == 2 {
		cmds = append(cmds, curve.Command{
			Op: curve.QuadTo,
			X1: curve.Round2((pts[0].x + pts[1].x) / 2),
			Y1: curve.Round2((pts[0].y + pts[1].y) / 2),
			X:  pts[1].x, Y: pts[1].y,
		})
		return curve.Path{Commands: cmds}
	}

	// Quadratics through midpoints with the sampled points as controls,
	// closed by a smooth continuation to the final point.
	for i := 1; i < len(pts)-1; i++ {
		cmds = append(cmds, curve.Command{
			Op: curve.QuadTo,
			X1: pts[i].x, Y1: pts[i].y,
			X:  curve.Round2((pts[i].x + pts[i+1].x) / 2),
			Y:  curve.Round2((pts[i].y + pts[i+1].y) / 2),
		})
	}
	last := pts[len(pts)-1]
	cmds = append(cmds, curve.Command{Op: curve.SmoothQuadTo, X: last.x, Y: last.y})
	return curve.Path{Commands: cmds}
}
