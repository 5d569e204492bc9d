package models

import (
	"fmt"
	"strings"
	"time"
)

// Recurrence is the rule governing how a reminder's anchor time repeats.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence maps user or storage text to a Recurrence. The empty string
// means RecurrenceNone. Unknown values are returned unchanged together with an
// error so callers can decide whether to reject or store them.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case "":
		return RecurrenceNone, nil
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r, nil
	default:
		return r, fmt.Errorf("unknown recurrence %q", s)
	}
}

// IsRecurring reports whether the rule produces more than one occurrence.
func (r Recurrence) IsRecurring() bool {
	return r != RecurrenceNone && r != ""
}

// WallClockLayout is the zone-less layout reminder fire times are stored in.
const WallClockLayout = "2006-01-02T15:04:05"

// Reminder is a logical reminder attached to an entry.
type Reminder struct {
	// ID is assigned by the store on first persistence; zero before that.
	ID int64

	EntryID string

	// FireAt is the anchor fire time with wall-clock semantics: only the
	// date and time of day matter, the location is ignored. Use At to place it
	// in a concrete zone.
	FireAt time.Time

	Active     bool
	Recurrence Recurrence

	// Sound optionally references a custom notification sound.
	Sound string
}

// At interprets the reminder's wall-clock fire time in loc.
func (r Reminder) At(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	f := r.FireAt
	return time.Date(f.Year(), f.Month(), f.Day(), f.Hour(), f.Minute(), f.Second(), 0, loc)
}

// WallClock returns the zone-less textual form of FireAt.
func (r Reminder) WallClock() string {
	return r.FireAt.Format(WallClockLayout)
}

// ParseWallClock parses a time stored with WallClockLayout. The result is in
// UTC only as a carrier; callers must use Reminder.At to pick the real zone.
func ParseWallClock(s string) (time.Time, error) {
	return time.ParseInLocation(WallClockLayout, s, time.UTC)
}
