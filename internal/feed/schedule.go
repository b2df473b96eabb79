package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "babyriver/internal/log"
	"babyriver/internal/model"
)

// maxOccurrencesPerSchedule caps runaway rules (FREQ=MINUTELY without an
// UNTIL, say) so one bad schedule cannot flood the timeline.
const maxOccurrencesPerSchedule = 5000

// Schedule is a recurring planned care activity: "feeding every 3 hours",
// "vitamin D drops daily at 09:00". Occurrences materialize as ordinary
// events so the placement layer needs no special case for them.
type Schedule struct {
	ID    string          `yaml:"id" json:"id"`
	Type  model.EventType `yaml:"type" json:"type"`
	Notes string          `yaml:"notes,omitempty" json:"notes,omitempty"`

	// RRule is an RFC 5545 recurrence rule, e.g. "FREQ=DAILY;INTERVAL=1".
	RRule string `yaml:"rrule" json:"rrule"`

	// Time is the wall-clock start of each occurrence, "15:04".
	Time string `yaml:"time" json:"time"`

	// DurationMinutes marks occurrences as spans when above zero.
	DurationMinutes int `yaml:"duration_minutes,omitempty" json:"duration_minutes,omitempty"`
}

// ExpandSchedules materializes every schedule's occurrences inside
// [rangeStart, rangeEnd] as events. Schedules with a bad rule or clock are
// logged and skipped. Occurrence IDs are deterministic, so re-expanding the
// same range yields the same events and the engine's memoization holds.
func ExpandSchedules(schedules []Schedule, rangeStart, rangeEnd time.Time, loc *time.Location) ([]model.Event, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("feed: schedule range end before start")
	}
	if loc == nil {
		loc = time.Local
	}

	out := make([]model.Event, 0)
	for _, s := range schedules {
		evs, err := expandSchedule(s, rangeStart, rangeEnd, loc)
		if err != nil {
			appLog.Error("schedule expand failed", err, "schedule_id", s.ID)
			continue
		}
		out = append(out, evs...)
	}
	return out, nil
}

func expandSchedule(s Schedule, rangeStart, rangeEnd time.Time, loc *time.Location) ([]model.Event, error) {
	if s.RRule == "" {
		return nil, errors.New("empty rrule")
	}
	clock, err := model.ParseClock(s.Time)
	if err != nil {
		return nil, err
	}
	if s.Type != "" && !s.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", s.Type)
	}

	r, err := rrule.StrToRRule(s.RRule)
	if err != nil {
		return nil, err
	}

	// Anchor the rule at the schedule's wall clock on the range's first day.
	anchor := time.Date(rangeStart.Year(), rangeStart.Month(), rangeStart.Day(),
		clock/60, clock%60, 0, 0, loc)
	r.DTStart(anchor)

	times := r.Between(rangeStart.In(loc), rangeEnd.In(loc), true)
	if len(times) > maxOccurrencesPerSchedule {
		appLog.Warn("schedule occurrences truncated", "schedule_id", s.ID, "cap", maxOccurrencesPerSchedule)
		times = times[:maxOccurrencesPerSchedule]
	}

	typ := s.Type
	if typ == "" {
		typ = model.TypeOther
	}

	out := make([]model.Event, 0, len(times))
	for _, t := range times {
		t = t.In(loc)
		ev := model.Event{
			ID:    occurrenceID(s.ID, t),
			Type:  typ,
			Date:  t.Format("2006-01-02"),
			Time:  t.Format("15:04"),
			Notes: s.Notes,
		}
		if s.DurationMinutes > 0 {
			ev.Detail.DurationMinutes = s.DurationMinutes
		}
		out = append(out, ev)
	}
	return out, nil
}

func occurrenceID(scheduleID string, t time.Time) string {
	seed := scheduleID + "|" + t.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(eventIDNamespace, []byte(seed)).String()
}
