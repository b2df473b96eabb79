package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babyriver/internal/curve"
	"babyriver/internal/model"
	"babyriver/internal/place"
	"babyriver/internal/window"
)

var engineToday = time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)

func engineConfig() Config {
	return Config{
		Geometry: curve.Geometry{
			CenterX:       200,
			Amplitude:     120,
			HourHeight:    40,
			DaySeparator:  24,
			ZeroCrossings: 2,
		},
		Window: window.Policy{
			BufferDays:        3,
			BatchSize:         3,
			MaxDays:           9,
			ScrollThresholdPx: 600,
			MinInterval:       time.Millisecond,
			DayHeight:         960,
			SeparatorHeight:   24,
		},
	}
}

func startedTimeline(t *testing.T) *Timeline {
	t.Helper()
	tl := New(engineConfig(), Callbacks{})
	t.Cleanup(tl.Close)
	tl.Start(engineToday)
	tl.RebuildSampleNow()
	return tl
}

func TestSnapshotBasics(t *testing.T) {
	tl := startedTimeline(t)
	tl.SetEvents([]model.Event{
		{ID: "f1", Type: model.TypeFeeding, Date: "2025-03-15", Time: "07:30"},
	})

	snap := tl.Snapshot()
	require.Len(t, snap.Days, 7)
	assert.True(t, snap.SampleReady)
	assert.NotEmpty(t, snap.PathD)
	require.Len(t, snap.Placements, 1)
	assert.Equal(t, place.Point, snap.Placements[0].Kind)
	assert.Equal(t, 7*960+6*24.0, snap.TotalHeight)
}

func TestSnapshotMemoized(t *testing.T) {
	tl := startedTimeline(t)
	tl.SetEvents([]model.Event{
		{ID: "f1", Type: model.TypeFeeding, Date: "2025-03-15", Time: "07:30"},
	})

	first := tl.Snapshot()
	before := tl.computes.Load()
	second := tl.Snapshot()

	assert.Equal(t, before, tl.computes.Load(), "unchanged inputs must not recompute")
	assert.Equal(t, first.PathD, second.PathD)
}

func TestSnapshotRecomputesOnEventChange(t *testing.T) {
	tl := startedTimeline(t)
	tl.SetEvents([]model.Event{{ID: "a", Type: model.TypeDiaper, Date: "2025-03-15", Time: "10:00"}})
	tl.Snapshot()
	before := tl.computes.Load()

	tl.SetEvents([]model.Event{
		{ID: "a", Type: model.TypeDiaper, Date: "2025-03-15", Time: "10:00"},
		{ID: "b", Type: model.TypeDiaper, Date: "2025-03-15", Time: "11:00"},
	})
	snap := tl.Snapshot()
	assert.Equal(t, before+1, tl.computes.Load())
	assert.Len(t, snap.Placements, 2)
}

func TestSnapshotRecomputesOnWindowShift(t *testing.T) {
	tl := startedTimeline(t)
	tl.Snapshot()
	before := tl.computes.Load()

	time.Sleep(2 * time.Millisecond) // clear the anti-thrash guard
	tl.Scroll(0, 800)                // at the top edge: extend up
	tl.RebuildSampleNow()

	snap := tl.Snapshot()
	assert.Greater(t, tl.computes.Load(), before)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), snap.Days[0].Date)
}

func TestSnapshotRecomputesOnGeometryChange(t *testing.T) {
	tl := startedTimeline(t)
	first := tl.Snapshot()

	g := engineConfig().Geometry
	g.Amplitude = 60
	tl.SetGeometry(g)
	tl.RebuildSampleNow()

	second := tl.Snapshot()
	assert.NotEqual(t, first.PathD, second.PathD)
}

func TestPlacementsBeforeFirstSampleFallBackToCenter(t *testing.T) {
	cfg := engineConfig()
	cfg.SampleDebounce = time.Hour // keep the debounced build from firing
	tl := New(cfg, Callbacks{})
	defer tl.Close()
	tl.Start(engineToday)
	tl.SetEvents([]model.Event{
		{ID: "f1", Type: model.TypeFeeding, Date: "2025-03-15", Time: "12:00"},
	})

	snap := tl.Snapshot()
	require.Len(t, snap.Placements, 1)
	assert.False(t, snap.SampleReady)
	assert.Equal(t, 200.0, snap.Placements[0].X, "fallback is the curve center")
}

func TestCallbacks(t *testing.T) {
	var hovered []string
	var clicked []string
	tl := New(engineConfig(), Callbacks{
		OnEventHover: func(id string) { hovered = append(hovered, id) },
		OnEventClick: func(e model.Event) { clicked = append(clicked, e.ID) },
	})
	defer tl.Close()
	tl.Start(engineToday)
	tl.SetEvents([]model.Event{{ID: "x", Type: model.TypeOther, Date: "2025-03-15", Time: "09:00"}})

	tl.Hover("x")
	tl.Hover("")
	tl.Click("x")
	tl.Click("unknown")

	assert.Equal(t, []string{"x", ""}, hovered)
	assert.Equal(t, []string{"x"}, clicked)
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	tl := startedTimeline(t)
	snap := tl.Snapshot()
	require.NotEmpty(t, snap.Days)
	snap.Days[0].Index = 999

	fresh := tl.win.Days()
	assert.Equal(t, 0, fresh[0].Index)
}
