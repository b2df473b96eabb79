// Package timeline ties the curve generator, coordinate sampler, day
// window and placement engine together behind one instance with an
// explicit create -> use -> dispose lifecycle. Nothing here is an ambient
// singleton; independent timelines own independent state and caches.
package timeline

import (
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"babyriver/internal/curve"
	"babyriver/internal/log"
	"babyriver/internal/model"
	"babyriver/internal/place"
	"babyriver/internal/sample"
	"babyriver/internal/window"
)

// Config configures one timeline instance.
type Config struct {
	Geometry curve.Geometry
	Window   window.Policy

	// SampleDebounce and SampleCacheSize pass through to the Sampler;
	// zero values get that package's defaults.
	SampleDebounce  time.Duration
	SampleCacheSize int
}

// Callbacks are the outward notification hooks. Both are optional and
// expected to return quickly; they run on the caller's goroutine.
type Callbacks struct {
	// OnEventHover receives the hovered event ID, or "" when the pointer
	// leaves a marker.
	OnEventHover func(eventID string)

	// OnEventClick receives the full event for edit/delete flows.
	OnEventClick func(model.Event)
}

// Snapshot is the derived render state handed to presentation layers.
// It is an immutable value; a new one is produced whenever any input
// changes.
type Snapshot struct {
	Days        []model.Day
	Path        curve.Path
	PathD       string
	TotalHeight float64
	Placements  []place.Placement

	// SampleReady is false until the first coordinate sample has been
	// published; until then placements sit on the curve centerline.
	SampleReady bool
}

// Timeline is the engine instance.
type Timeline struct {
	cfg Config
	cbs Callbacks

	win     *window.Manager
	sampler *sample.Sampler

	mu         sync.Mutex
	measured   *curve.Measured
	path       curve.Path
	events     []model.Event
	eventsByID map[string]model.Event

	snapKey  uint64
	snap     Snapshot
	hasSnap  bool
	computes atomic.Uint64 // recompute count, exposed for tests

	sampleGen atomic.Uint64
	closed    bool
}

// New constructs a Timeline. Call Start to seed the day window, and Close
// when done.
func New(cfg Config, cbs Callbacks) *Timeline {
	t := &Timeline{
		cfg:        cfg,
		cbs:        cbs,
		win:        window.NewManager(cfg.Window),
		eventsByID: make(map[string]model.Event),
	}
	t.sampler = sample.NewSampler(sample.Options{
		Debounce:  cfg.SampleDebounce,
		CacheSize: cfg.SampleCacheSize,
		FallbackX: cfg.Geometry.CenterX,
		OnReady: func(*sample.CoordinateSample) {
			// Invalidate the memoized snapshot; the next Snapshot call
			// recomputes placements against the fresh sample.
			t.sampleGen.Add(1)
		},
	})
	return t
}

// Start seeds the window around today and generates the initial path.
func (t *Timeline) Start(today time.Time) {
	t.win.Initialize(today)
	t.regenerate()
}

// SetEvents replaces the domain event list.
func (t *Timeline) SetEvents(events []model.Event) {
	t.mu.Lock()
	t.events = make([]model.Event, len(events))
	copy(t.events, events)
	t.eventsByID = make(map[string]model.Event, len(events))
	for _, e := range events {
		t.eventsByID[e.ID] = e
	}
	t.mu.Unlock()
}

// SetGeometry applies new curve parameters (amplitude, width changes) and
// rebuilds the derived path.
func (t *Timeline) SetGeometry(g curve.Geometry) {
	t.mu.Lock()
	t.cfg.Geometry = g
	t.mu.Unlock()
	t.regenerate()
}

// Scroll feeds a viewport scroll position through the window manager and
// regenerates geometry when the window actually shifted.
func (t *Timeline) Scroll(scrollTop, viewportHeight float64) {
	_, extended := t.win.HandleScroll(scrollTop, viewportHeight)
	if extended {
		t.regenerate()
	}
}

// regenerate rebuilds the path for the current window and schedules a
// sample rebuild against it. The sampler discards any pending rebuild
// that targeted the previous path, so no stale-path sampling is
// observable.
func (t *Timeline) regenerate() {
	days := t.win.Days()

	t.mu.Lock()
	g := t.cfg.Geometry
	t.path = curve.BuildPath(days, g)
	t.measured = curve.Measure(t.path)
	m := t.measured
	t.mu.Unlock()

	t.sampler.Request(m)
}

// RebuildSampleNow forces a synchronous sample rebuild. Single-shot
// renders use this instead of waiting out the debounce interval.
func (t *Timeline) RebuildSampleNow() {
	t.mu.Lock()
	m := t.measured
	t.mu.Unlock()
	t.sampler.RebuildNow(m)
}

// Snapshot returns the derived render state, recomputing only when an
// input (window, geometry, events, published sample) changed since the
// previous call.
func (t *Timeline) Snapshot() Snapshot {
	days := t.win.Days()

	t.mu.Lock()
	defer t.mu.Unlock()

	key := t.inputKey(days)
	if t.hasSnap && key == t.snapKey {
		return t.snap
	}

	cur := t.sampler.Current()
	snap := Snapshot{
		Days:        days,
		Path:        t.path,
		PathD:       t.path.D(),
		TotalHeight: curve.TotalHeight(len(days), t.cfg.Geometry),
		Placements:  place.Events(t.events, days, cur, t.cfg.Geometry),
		SampleReady: !cur.Empty(),
	}

	t.snap = snap
	t.snapKey = key
	t.hasSnap = true
	t.computes.Add(1)
	return snap
}

// inputKey fingerprints everything the snapshot is derived from.
func (t *Timeline) inputKey(days []model.Day) uint64 {
	h := fnv.New64a()
	w := func(s string) { _, _ = h.Write([]byte(s)) }

	g := t.cfg.Geometry
	w(strconv.FormatFloat(g.CenterX, 'f', -1, 64))
	w(strconv.FormatFloat(g.Amplitude, 'f', -1, 64))
	w(strconv.FormatFloat(g.HourHeight, 'f', -1, 64))
	w(strconv.FormatFloat(g.DaySeparator, 'f', -1, 64))
	w(strconv.Itoa(g.ZeroCrossings))

	for _, d := range days {
		w(d.Date.Format("2006-01-02"))
		w(strconv.FormatFloat(d.StartOffset, 'f', -1, 64))
	}
	for _, e := range t.events {
		w(e.ID)
		w(string(e.Type))
		w(e.Date)
		w(e.Time)
		w(strconv.Itoa(e.Detail.DurationMinutes))
		w(e.Detail.StartTime)
		w(e.Detail.EndTime)
	}
	w(strconv.FormatUint(t.sampleGen.Load(), 10))
	return h.Sum64()
}

// Events returns a copy of the current domain event list.
func (t *Timeline) Events() []model.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Event, len(t.events))
	copy(out, t.events)
	return out
}

// Hover dispatches the hover callback. id is "" when the pointer leaves.
func (t *Timeline) Hover(id string) {
	if t.cbs.OnEventHover != nil {
		t.cbs.OnEventHover(id)
	}
}

// Click dispatches the click callback for a known event ID; unknown IDs
// are ignored.
func (t *Timeline) Click(id string) {
	if t.cbs.OnEventClick == nil {
		return
	}
	t.mu.Lock()
	e, ok := t.eventsByID[id]
	t.mu.Unlock()
	if !ok {
		log.Debug("click on unknown event", "event_id", id)
		return
	}
	t.cbs.OnEventClick(e)
}

// Window exposes the day window manager (read-style access for hosts).
func (t *Timeline) Window() *window.Manager {
	return t.win
}

// Close releases the sampler and any pending rebuild.
func (t *Timeline) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	t.sampler.Close()
}
