package period

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kobo/internal/core"
)

const (
	LastWeek    Lookback = "week"
	LastMonth   Lookback = "month"
	LastQuarter Lookback = "quarter"
	LastYear    Lookback = "year"
	AllTime     Lookback = "all"
)

var ErrInvalidLookback = errors.New("invalid lookback")

// Lookback is a rolling analytics window anchored at now. It is unrelated to
// the calendar-aligned budgeting periods.
type Lookback string

func (l Lookback) IsValid() bool {
	switch l {
	case LastWeek, LastMonth, LastQuarter, LastYear, AllTime:
		return true
	}
	return false
}

func ParseLookback(s string) (Lookback, error) {
	l := Lookback(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLookback, s)
	}
	return l, nil
}

// start returns the beginning of the rolling window ending at now.
func (l Lookback) start(now time.Time) time.Time {
	switch l {
	case LastWeek:
		return now.AddDate(0, 0, -7)
	case LastMonth:
		return now.AddDate(0, -1, 0)
	case LastQuarter:
		return now.AddDate(0, -3, 0)
	case LastYear:
		return now.AddDate(-1, 0, 0)
	}
	return time.Time{}
}

// Window returns [now-length, now]. bounded is false for AllTime, in which
// case the returned period is the zero value.
func (l Lookback) Window(now time.Time) (p core.Period, bounded bool) {
	now = now.UTC()
	if l == AllTime || !l.IsValid() {
		return core.Period{}, false
	}
	return core.Period{Start: l.start(now), End: now}, true
}

// Comparison holds the windows used to compare a lookback with the window
// right before it. Current is closed; Previous excludes its End instant.
type Comparison struct {
	Current  core.Period
	Previous core.Period
}

// InPrevious reports whether t falls in the half-open previous window.
func (c Comparison) InPrevious(t time.Time) bool {
	return !t.Before(c.Previous.Start) && t.Before(c.Previous.End)
}

// Compare returns the current window and the immediately preceding window of
// the same length. AllTime compares the current calendar year to date with
// the whole previous calendar year.
func (l Lookback) Compare(now time.Time) Comparison {
	now = now.UTC()
	if l == AllTime || !l.IsValid() {
		thisYear := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Comparison{
			Current:  core.Period{Start: thisYear, End: now},
			Previous: core.Period{Start: thisYear.AddDate(-1, 0, 0), End: thisYear},
		}
	}
	start := l.start(now)
	return Comparison{
		Current:  core.Period{Start: start, End: now},
		Previous: core.Period{Start: l.start(start), End: start},
	}
}

// BucketLabel returns the chart bucket label for t at this lookback's
// granularity: weekday for a week, day for month and quarter, month for a
// year and month plus two-digit year otherwise.
func (l Lookback) BucketLabel(t time.Time) string {
	t = t.UTC()
	switch l {
	case LastWeek:
		return t.Format("Mon")
	case LastMonth, LastQuarter:
		return t.Format("Jan 2")
	case LastYear:
		return t.Format("Jan")
	default:
		return t.Format("Jan 06")
	}
}
