package place

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babyriver/internal/curve"
	"babyriver/internal/model"
	"babyriver/internal/sample"
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

func windowOf(n int) []model.Day {
	g := riverGeometry()
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	days := make([]model.Day, n)
	for i := range days {
		days[i] = model.Day{
			Date:        base.AddDate(0, 0, i),
			Index:       i,
			StartOffset: float64(i) * (g.DayHeight() + g.DaySeparator),
		}
	}
	return days
}

func lookupFor(t *testing.T, days []model.Day) Lookup {
	t.Helper()
	g := riverGeometry()
	m := curve.Measure(curve.BuildPath(days, g))
	s := sample.Build(m, g.CenterX)
	require.False(t, s.Empty())
	return s
}

// centerLookup always answers the curve center; handy when a test only
// cares about vertical placement.
type centerLookup float64

func (c centerLookup) Lookup(float64) float64 { return float64(c) }

func TestPointPlacementAtInterpolatedY(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := lookupFor(t, days)

	// Feeding at 07:30, no duration: a point halfway between the hour-7
	// and hour-8 vertical positions.
	events := []model.Event{{
		ID:   "feed-1",
		Type: model.TypeFeeding,
		Date: "2025-03-10",
		Time: "07:30",
	}}
	placed := Events(events, days, lk, g)
	require.Len(t, placed, 1)

	p := placed[0]
	assert.Equal(t, Point, p.Kind)
	assert.InDelta(t, 7.5*g.HourHeight, p.Y, 0.01)
	assert.True(t, p.Connector.Empty())
	assert.Equal(t, lk.Lookup(7.5*g.HourHeight), p.X)
}

func TestDurationThreshold(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := centerLookup(g.CenterX)

	at := func(minutes int) Placement {
		events := []model.Event{{
			ID:     "sleep-1",
			Type:   model.TypeSleep,
			Date:   "2025-03-10",
			Time:   "13:00",
			Detail: model.Detail{DurationMinutes: minutes},
		}}
		placed := Events(events, days, lk, g)
		require.Len(t, placed, 1)
		return placed[0]
	}

	assert.Equal(t, Point, at(60).Kind, "exactly at threshold stays a point")
	assert.Equal(t, Duration, at(61).Kind, "one minute above becomes a span")
}

func TestMidnightRollover(t *testing.T) {
	g := riverGeometry()
	days := windowOf(2)
	lk := lookupFor(t, days)

	events := []model.Event{{
		ID:     "sleep-night",
		Type:   model.TypeSleep,
		Date:   "2025-03-10",
		Time:   "22:00",
		Detail: model.Detail{StartTime: "22:00", EndTime: "06:00"},
	}}
	placed := Events(events, days, lk, g)
	require.Len(t, placed, 1)

	p := placed[0]
	assert.Equal(t, Duration, p.Kind)
	assert.InDelta(t, 22*g.HourHeight, p.Y, 0.01)

	// 480 minutes later: 6 hours into the next day's band.
	wantEnd := days[1].StartOffset + 6*g.HourHeight
	assert.InDelta(t, wantEnd, p.EndY, 0.01)
	assert.Greater(t, p.EndY, p.Y)
	assert.False(t, p.Connector.Empty())
}

func TestRolloverClampsWithoutNextDay(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := centerLookup(g.CenterX)

	events := []model.Event{{
		ID:     "sleep-edge",
		Type:   model.TypeSleep,
		Date:   "2025-03-10",
		Detail: model.Detail{StartTime: "23:00", EndTime: "03:00"},
		Time:   "23:00",
	}}
	placed := Events(events, days, lk, g)
	require.Len(t, placed, 1)

	// Next day is not loaded: the end saturates at the band bottom.
	assert.InDelta(t, g.DayHeight(), placed[0].EndY, 0.01)
}

func TestExplicitStartOverridesNominalTime(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := centerLookup(g.CenterX)

	events := []model.Event{{
		ID:     "sleep-exp",
		Type:   model.TypeSleep,
		Date:   "2025-03-10",
		Time:   "14:00", // nominal, differs from the actual span start
		Detail: model.Detail{StartTime: "13:00", EndTime: "15:30"},
	}}
	placed := Events(events, days, lk, g)
	require.Len(t, placed, 1)
	assert.InDelta(t, 13*g.HourHeight, placed[0].Y, 0.01)
	assert.InDelta(t, 15.5*g.HourHeight, placed[0].EndY, 0.01)
}

func TestMalformedEventsAreSkipped(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := centerLookup(g.CenterX)

	events := []model.Event{
		{ID: "bad-date", Type: model.TypeDiaper, Date: "not-a-date", Time: "10:00"},
		{ID: "bad-time", Type: model.TypeDiaper, Date: "2025-03-10", Time: "25:99"},
		{ID: "ok", Type: model.TypeDiaper, Date: "2025-03-10", Time: "10:00"},
	}
	placed := Events(events, days, lk, g)
	require.Len(t, placed, 1)
	assert.Equal(t, "ok", placed[0].EventID)
}

func TestOutOfWindowEventsExcluded(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := centerLookup(g.CenterX)

	events := []model.Event{
		{ID: "past", Type: model.TypeOther, Date: "2024-01-01", Time: "10:00"},
		{ID: "future", Type: model.TypeOther, Date: "2025-06-01", Time: "10:00"},
	}
	assert.Empty(t, Events(events, days, lk, g))
}

func TestConnectorTracksCurve(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := lookupFor(t, days)

	events := []model.Event{{
		ID:     "nap",
		Type:   model.TypeSleep,
		Date:   "2025-03-10",
		Time:   "09:00",
		Detail: model.Detail{DurationMinutes: 180},
	}}
	placed := Events(events, days, lk, g)
	require.Len(t, placed, 1)
	conn := placed[0].Connector
	require.False(t, conn.Empty())

	assert.Equal(t, curve.MoveTo, conn.Commands[0].Op)
	// Span is 3*40=120px; step clamps within [5,20], so the connector
	// carries at least 120/20 = 6 sampled segments.
	assert.GreaterOrEqual(t, len(conn.Commands), 6)

	// Every sampled control point must sit on the lookup's answer for its
	// Y, i.e. the connector hugs the rendered curve.
	for _, c := range conn.Commands[1 : len(conn.Commands)-1] {
		assert.InDelta(t, lk.Lookup(c.Y1), c.X1, 0.51)
	}
}

func TestConnectorStepBounds(t *testing.T) {
	lk := centerLookup(200)

	short := connectorPath(0, 70, lk) // 70/16 < 5 -> min step 5
	long := connectorPath(0, 1000, lk)

	// 70px at 5px steps: 14 interior samples + endpoint.
	assert.GreaterOrEqual(t, len(short.Commands), 14)
	// 1000px clamps at 20px steps: 50 interior samples + endpoint, far
	// fewer than the unclamped 1000/16*... unbounded fine version.
	assert.LessOrEqual(t, len(long.Commands), 52)
	assert.GreaterOrEqual(t, len(long.Commands), 50)
}

func TestOverlappingDurationsStayIndependent(t *testing.T) {
	g := riverGeometry()
	days := windowOf(1)
	lk := centerLookup(g.CenterX)

	events := []model.Event{
		{ID: "a", Type: model.TypeSleep, Date: "2025-03-10", Time: "09:00", Detail: model.Detail{DurationMinutes: 120}},
		{ID: "b", Type: model.TypeSleep, Date: "2025-03-10", Time: "09:30", Detail: model.Detail{DurationMinutes: 120}},
	}
	placed := Events(events, days, lk, g)
	require.Len(t, placed, 2)
	// No stacking or collision shifting: each is placed as if alone.
	assert.InDelta(t, 9*g.HourHeight, placed[0].Y, 0.01)
	assert.InDelta(t, 9.5*g.HourHeight, placed[1].Y, 0.01)
}
