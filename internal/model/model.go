package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType classifies a tracked activity.
type EventType string

const (
	TypeFeeding EventType = "feeding"
	TypeDiaper  EventType = "diaper"
	TypeSleep   EventType = "sleep"
	TypeOther   EventType = "other"
)

// ValidTypes lists all known event types.
var ValidTypes = []EventType{TypeFeeding, TypeDiaper, TypeSleep, TypeOther}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case TypeFeeding, TypeDiaper, TypeSleep, TypeOther:
		return true
	}
	return false
}

// Detail carries the type-specific payload of an event. Only the fields
// relevant to the event's type are populated.
type Detail struct {
	// DurationMinutes is an explicit duration, if the tracker recorded one.
	DurationMinutes int `json:"duration_minutes,omitempty"`

	// StartTime / EndTime are explicit HH:mm bounds (sleep, long feedings).
	// EndTime before StartTime means the activity crossed midnight.
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	// AmountMl is the fed amount for bottle feedings.
	AmountMl int `json:"amount_ml,omitempty"`

	// DiaperKind is "wet", "dirty" or "both".
	DiaperKind string `json:"diaper_kind,omitempty"`

	// Images holds attachment references (photo IDs in the backend).
	Images []string `json:"images,omitempty"`
}

// Event is a single tracked activity as delivered by the data layer.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	Date   string    `json:"date"` // ISO date, "2006-01-02"
	Time   string    `json:"time"` // wall clock, "15:04"
	Notes  string    `json:"notes,omitempty"`
	Detail Detail    `json:"detail"`
}

// ParseDate parses an event's ISO date field.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("model: invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseClock parses an "HH:mm" wall-clock string into minutes since
// midnight. It rejects out-of-range values rather than normalizing them.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("model: invalid clock %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("model: invalid clock %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("model: invalid clock %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("model: clock %q out of range", s)
	}
	return hour*60 + minute, nil
}

// EffectiveDuration resolves the event's duration in minutes.
//
// Preference order: explicit DurationMinutes, then StartTime/EndTime (an end
// before the start is treated as crossing midnight, adding 24h), else zero.
func (e Event) EffectiveDuration() int {
	if e.Detail.DurationMinutes > 0 {
		return e.Detail.DurationMinutes
	}
	if e.Detail.StartTime != "" && e.Detail.EndTime != "" {
		start, err := ParseClock(e.Detail.StartTime)
		if err != nil {
			return 0
		}
		end, err := ParseClock(e.Detail.EndTime)
		if err != nil {
			return 0
		}
		d := end - start
		if d < 0 {
			d += 24 * 60
		}
		return d
	}
	return 0
}

// StartClock resolves the minutes-since-midnight the event actually starts
// at: the explicit StartTime when given, otherwise the nominal Time field.
func (e Event) StartClock() (int, error) {
	if e.Detail.StartTime != "" {
		return ParseClock(e.Detail.StartTime)
	}
	return ParseClock(e.Time)
}
