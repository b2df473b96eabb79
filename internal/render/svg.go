// Package render turns a timeline snapshot into an SVG document: the
// river path, day bands, hour ticks, and event markers.
package render

import (
	"fmt"
	"strings"

	"babyriver/internal/curve"
	"babyriver/internal/model"
	"babyriver/internal/place"
	"babyriver/internal/timeline"
)

// Options controls document appearance.
type Options struct {
	// Width is the SVG width in pixels.
	Width float64

	// MarkerRadius is the radius of point and span-end markers.
	MarkerRadius float64

	// RiverWidth is the stroke width of the main path.
	RiverWidth float64

	// HourTickStep draws a tick label every N hours; 0 disables ticks.
	HourTickStep int
}

// DefaultOptions returns the values used when fields are left zero.
func DefaultOptions() Options {
	return Options{
		Width:        420,
		MarkerRadius: 7,
		RiverWidth:   10,
		HourTickStep: 6,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.MarkerRadius <= 0 {
		o.MarkerRadius = d.MarkerRadius
	}
	if o.RiverWidth <= 0 {
		o.RiverWidth = d.RiverWidth
	}
	if o.HourTickStep < 0 {
		o.HourTickStep = d.HourTickStep
	}
	return o
}

// markerClass maps event types to CSS classes declared in the document.
func markerClass(t model.EventType) string {
	switch t {
	case model.TypeFeeding:
		return "marker-feeding"
	case model.TypeDiaper:
		return "marker-diaper"
	case model.TypeSleep:
		return "marker-sleep"
	default:
		return "marker-other"
	}
}

// SVG renders the snapshot as a complete SVG document. The root element
// carries data-ready="true" once a coordinate sample has been published,
// which is what the capture pipeline waits on before screenshotting.
func SVG(snap timeline.Snapshot, g curve.Geometry, opts Options) string {
	opts = opts.normalized()

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" data-ready="%t">`,
		opts.Width, snap.TotalHeight, snap.SampleReady)
	b.WriteByte('\n')
	b.WriteString(`<defs><style>
.river { fill: none; stroke: #7fb3d5; stroke-linecap: round; }
.connector { fill: none; stroke-width: 4; stroke-linecap: round; opacity: 0.55; }
.day-label { font-family: sans-serif; font-size: 13px; fill: #555; }
.hour-tick { font-family: sans-serif; font-size: 10px; fill: #aaa; }
.marker-feeding { fill: #4285f4; stroke: #fff; stroke-width: 2; }
.marker-diaper { fill: #f4b400; stroke: #fff; stroke-width: 2; }
.marker-sleep { fill: #673ab7; stroke: #fff; stroke-width: 2; }
.marker-other { fill: #9e9e9e; stroke: #fff; stroke-width: 2; }
</style></defs>
`)

	writeDayBands(&b, snap, g, opts)

	if !snap.Path.Empty() {
		fmt.Fprintf(&b, `<path class="river" stroke-width="%.0f" d="%s"/>`, opts.RiverWidth, snap.PathD)
		b.WriteByte('\n')
	}

	writePlacements(&b, snap, opts)

	b.WriteString("</svg>\n")
	return b.String()
}

func writeDayBands(b *strings.Builder, snap timeline.Snapshot, g curve.Geometry, opts Options) {
	for _, d := range snap.Days {
		fmt.Fprintf(b, `<text class="day-label" x="8" y="%.2f">%s</text>`,
			d.StartOffset+16, d.Date.Format("Mon Jan 2"))
		b.WriteByte('\n')

		if opts.HourTickStep > 0 {
			for h := opts.HourTickStep; h < 24; h += opts.HourTickStep {
				y := d.StartOffset + float64(h)*g.HourHeight
				fmt.Fprintf(b, `<line class="hour-tick" x1="0" y1="%.2f" x2="%.0f" y2="%.2f" stroke="#eee"/>`,
					y, opts.Width, y)
				b.WriteByte('\n')
				fmt.Fprintf(b, `<text class="hour-tick" x="4" y="%.2f">%02d:00</text>`, y-3, h)
				b.WriteByte('\n')
			}
		}
	}
}

func writePlacements(b *strings.Builder, snap timeline.Snapshot, opts Options) {
	for _, p := range snap.Placements {
		class := markerClass(p.Type)
		if p.Kind == place.Duration {
			if !p.Connector.Empty() {
				fmt.Fprintf(b, `<path class="connector %s" stroke="currentColor" data-event-id="%s" d="%s"/>`,
					class, p.EventID, p.Connector.D())
				b.WriteByte('\n')
			}
			fmt.Fprintf(b, `<circle class="%s" data-event-id="%s" cx="%.2f" cy="%.2f" r="%.1f"/>`,
				class, p.EventID, p.EndX, p.EndY, opts.MarkerRadius)
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, `<circle class="%s" data-event-id="%s" cx="%.2f" cy="%.2f" r="%.1f"/>`,
			class, p.EventID, p.X, p.Y, opts.MarkerRadius)
		b.WriteByte('\n')
	}
}
