// Package recurrence expands a reminder's anchor time into the finite list of
// concrete occurrences that get materialized as platform jobs.
package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/models"
)

var (
	// ErrConfiguration is returned for a rule the expander does not know.
	ErrConfiguration = errors.New("unsupported recurrence rule")

	// ErrNotRecurring is returned for RecurrenceNone; the caller schedules the
	// anchor itself.
	ErrNotRecurring = errors.New("rule does not recur")
)

// Policy values.
const (
	DefaultHorizon     = 30
	DefaultMaxAttempts = 100
)

// Expander turns (anchor, rule) into at most Horizon future occurrences.
// MaxAttempts bounds how many candidates are examined, so an anchor far in the
// past cannot make expansion run unbounded.
type Expander struct {
	Horizon     int
	MaxAttempts int
}

// New returns an Expander, replacing non-positive values with the defaults.
func New(horizon, maxAttempts int) Expander {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Expander{Horizon: horizon, MaxAttempts: maxAttempts}
}

// Expand returns the occurrences of rule starting at anchor that fall strictly
// after now, in increasing order. The sequence is lazy and restartable: every
// range over it starts again from the anchor.
func (e Expander) Expand(anchor time.Time, rule models.Recurrence, now time.Time) (iter.Seq[time.Time], error) {
	step, err := stepFor(rule)
	if err != nil {
		return nil, err
	}

	horizon, attempts := e.Horizon, e.MaxAttempts
	return func(yield func(time.Time) bool) {
		emitted := 0
		for k := 0; k < attempts && emitted < horizon; k++ {
			t := step(anchor, k)
			if !t.After(now) {
				continue
			}
			if !yield(t) {
				return
			}
			emitted++
		}
	}, nil
}

// Nth returns the k-th candidate (k = 0 is the anchor) for rule, regardless of
// now.
func Nth(anchor time.Time, rule models.Recurrence, k int) (time.Time, error) {
	step, err := stepFor(rule)
	if err != nil {
		return time.Time{}, err
	}
	return step(anchor, k), nil
}

type stepFunc func(anchor time.Time, k int) time.Time

func stepFor(rule models.Recurrence) (stepFunc, error) {
	switch rule {
	case models.RecurrenceDaily:
		return func(a time.Time, k int) time.Time { return addDays(a, k) }, nil
	case models.RecurrenceWeekly:
		return func(a time.Time, k int) time.Time { return addDays(a, 7*k) }, nil
	case models.RecurrenceMonthly:
		return addMonthsClamped, nil
	case models.RecurrenceNone, "":
		return nil, ErrNotRecurring
	default:
		return nil, fmt.Errorf("%w: %q", ErrConfiguration, rule)
	}
}

// addDays moves by calendar days keeping the wall-clock time, so DST changes
// in the anchor's location do not shift the hour.
func addDays(a time.Time, days int) time.Time {
	return time.Date(a.Year(), a.Month(), a.Day()+days, a.Hour(), a.Minute(), a.Second(), a.Nanosecond(), a.Location())
}

// addMonthsClamped moves k months from the anchor and clamps the anchor's
// day-of-month to the length of the target month (Jan 31 -> Feb 28/29).
func addMonthsClamped(a time.Time, k int) time.Time {
	months := int(a.Month()) - 1 + k
	year := a.Year() + months/12
	month := time.Month(months%12 + 1)

	day := min(a.Day(), daysIn(year, month))
	return time.Date(year, month, day, a.Hour(), a.Minute(), a.Second(), a.Nanosecond(), a.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
