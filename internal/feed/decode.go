package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/samber/lo"

	appLog "babyriver/internal/log"
	"babyriver/internal/model"
)

// eventIDNamespace makes synthesized IDs stable across fetches: the same
// source payload always maps to the same event ID.
var eventIDNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("babyriver/feed"))

// DecodeJSON parses the tracker's JSON export ({"events": [...]} or a bare
// array) into events. Entries with a bad date, clock or type are logged and
// skipped; one malformed entry never poisons the feed. Entries without an ID
// get a deterministic one derived from their content.
func DecodeJSON(src Source, body []byte) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty feed body")
	}

	var events []model.Event
	var wrapper struct {
		Events []model.Event `json:"events"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Events != nil {
		events = wrapper.Events
	} else if err := json.Unmarshal(body, &events); err != nil {
		appLog.Error("feed decode failed", err, "id", src.ID)
		return nil, fmt.Errorf("feed: decode %s: %w", src.ID, err)
	}

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if err := validateEvent(ev); err != nil {
			appLog.Warn("feed event skipped", "id", src.ID, "event_id", ev.ID, "reason", err.Error())
			continue
		}
		if ev.Type == "" {
			ev.Type = model.TypeOther
		}
		if ev.ID == "" {
			ev.ID = synthesizeID(src.ID, ev)
		}
		out = append(out, ev)
	}

	appLog.Info("feed decode completed", "id", src.ID, "event_count", len(out))
	return out, nil
}

func validateEvent(ev model.Event) error {
	if _, err := model.ParseDate(ev.Date); err != nil {
		return err
	}
	if _, err := ev.StartClock(); err != nil {
		return err
	}
	if ev.Type != "" && !ev.Type.Valid() {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

func synthesizeID(sourceID string, ev model.Event) string {
	seed := strings.Join([]string{sourceID, string(ev.Type), ev.Date, ev.Time, ev.Notes}, "|")
	return uuid.NewSHA1(eventIDNamespace, []byte(seed)).String()
}

// ImportICS converts an ICS calendar payload into events of type "other":
// pediatrician visits, vaccination appointments and the like, placed on the
// timeline alongside the tracked activities. All-day items are skipped; a
// timeline of clock positions has nowhere to put them.
func ImportICS(src Source, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID)
		return nil, err
	}

	out := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, ok := importVEvent(src, ve, loc)
		if !ok {
			continue
		}
		out = append(out, ev)
	}

	appLog.Info("ics import completed", "id", src.ID, "event_count", len(out))
	return out, nil
}

func importVEvent(src Source, ve *ical.VEvent, loc *time.Location) (model.Event, bool) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		appLog.Warn("ics event skipped", "id", src.ID, "reason", "missing UID")
		return model.Event{}, false
	}

	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if allDay(dtStart) {
			return model.Event{}, false
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		appLog.Warn("ics event skipped", "id", src.ID, "uid", uidProp.Value, "reason", "unparseable DTSTART")
		return model.Event{}, false
	}
	start = start.In(loc)

	ev := model.Event{
		ID:   src.ID + ":" + uidProp.Value,
		Type: model.TypeOther,
		Date: start.Format("2006-01-02"),
		Time: start.Format("15:04"),
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Notes = p.Value
	}
	if end, err := ve.GetEndAt(); err == nil && end.After(start) {
		ev.Detail.DurationMinutes = int(end.Sub(start) / time.Minute)
	}
	return ev, true
}

func allDay(dtStart *ical.IANAProperty) bool {
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(dtStart.Value, "T")
}

// Merge combines events from several sources into one deduplicated list
// sorted by date and start clock. Later sources win on ID collisions, so a
// schedule occurrence overridden by a real tracked event disappears.
func Merge(batches ...[]model.Event) []model.Event {
	flat := lo.Flatten(batches)

	// Reverse so lo.UniqBy (keep-first) prefers later batches.
	lo.Reverse(flat)
	merged := lo.UniqBy(flat, func(ev model.Event) string { return ev.ID })

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date < merged[j].Date
		}
		ci, _ := merged[i].StartClock()
		cj, _ := merged[j].StartClock()
		return ci < cj
	})
	return merged
}
