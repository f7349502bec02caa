// Package period resolves budgeting periods and analytics lookback windows.
//
// Budgeting periods are calendar aligned (week starting Sunday, month, year)
// and always computed in UTC. Lookback windows are rolling intervals anchored
// at "now" and are a separate type so the two are never mixed up.
package period

import (
	"fmt"
	"sync"
	"time"

	"kobo/internal/core"
)

// lastInstant is the offset from the start of a day to its inclusive end.
const lastInstant = 24*time.Hour - time.Millisecond

// Stepper is the strategy interface for one budgeting duration.
type Stepper interface {
	// Current returns the period containing now.
	Current(now time.Time) core.Period
	// Next returns the period immediately after p.
	Next(p core.Period) core.Period
	// Previous returns the period immediately before p.
	Previous(p core.Period) core.Period
}

var (
	registryMu sync.RWMutex
	registry   = map[core.BudgetDuration]Stepper{
		core.Weekly:  WeeklyStepper{},
		core.Monthly: MonthlyStepper{},
		core.Yearly:  YearlyStepper{},
	}
)

// Register installs or replaces the stepper for a duration.
func Register(d core.BudgetDuration, s Stepper) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d] = s
}

// Lookup returns the stepper registered for d.
func Lookup(d core.BudgetDuration) (Stepper, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidDuration, d)
	}
	return s, nil
}

// Current returns the budgeting period of duration d that contains now.
func Current(d core.BudgetDuration, now time.Time) (core.Period, error) {
	s, err := Lookup(d)
	if err != nil {
		return core.Period{}, err
	}
	return s.Current(now), nil
}

// Next steps p forward by one unit of d.
func Next(d core.BudgetDuration, p core.Period) (core.Period, error) {
	s, err := Lookup(d)
	if err != nil {
		return core.Period{}, err
	}
	return s.Next(p), nil
}

// Previous steps p back by one unit of d.
func Previous(d core.BudgetDuration, p core.Period) (core.Period, error) {
	s, err := Lookup(d)
	if err != nil {
		return core.Period{}, err
	}
	return s.Previous(p), nil
}

// WeeklyStepper handles Sunday..Saturday weeks.
type WeeklyStepper struct{}

func (WeeklyStepper) Current(now time.Time) core.Period {
	day := startOfDay(now)
	start := day.AddDate(0, 0, -int(day.Weekday()))
	return core.Period{Start: start, End: start.AddDate(0, 0, 6).Add(lastInstant)}
}

// Next shifts both bounds by exactly seven days.
func (WeeklyStepper) Next(p core.Period) core.Period {
	return core.Period{Start: p.Start.UTC().AddDate(0, 0, 7), End: p.End.UTC().AddDate(0, 0, 7)}
}

func (WeeklyStepper) Previous(p core.Period) core.Period {
	return core.Period{Start: p.Start.UTC().AddDate(0, 0, -7), End: p.End.UTC().AddDate(0, 0, -7)}
}

// MonthlyStepper handles calendar months. The end bound is recomputed for
// every month instead of shifted.
type MonthlyStepper struct{}

func (MonthlyStepper) Current(now time.Time) core.Period {
	now = now.UTC()
	return month(now.Year(), now.Month())
}

func (MonthlyStepper) Next(p core.Period) core.Period {
	s := p.Start.UTC()
	return month(s.Year(), s.Month()+1)
}

func (MonthlyStepper) Previous(p core.Period) core.Period {
	s := p.Start.UTC()
	return month(s.Year(), s.Month()-1)
}

// YearlyStepper handles calendar years.
type YearlyStepper struct{}

func (YearlyStepper) Current(now time.Time) core.Period {
	return year(now.UTC().Year())
}

func (YearlyStepper) Next(p core.Period) core.Period {
	return year(p.Start.UTC().Year() + 1)
}

func (YearlyStepper) Previous(p core.Period) core.Period {
	return year(p.Start.UTC().Year() - 1)
}

// month normalizes overflowing months, so month(2025, 13) is January 2026.
func month(y int, m time.Month) core.Period {
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
	return core.Period{Start: start, End: last.Add(lastInstant)}
}

func year(y int) core.Period {
	return core.Period{
		Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC).Add(lastInstant),
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) core.Period {
	t = t.UTC()
	return month(t.Year(), t.Month())
}

// Label renders a period for humans, e.g. "March 2025" or "Mar 2 - Mar 8, 2025".
func Label(d core.BudgetDuration, p core.Period) string {
	s, e := p.Start.UTC(), p.End.UTC()
	switch d {
	case core.Monthly:
		return s.Format("January 2006")
	case core.Yearly:
		return s.Format("2006")
	default:
		return fmt.Sprintf("%s - %s", s.Format("Jan 2"), e.Format("Jan 2, 2006"))
	}
}

// ParseDuration validates a budgeting duration name.
func ParseDuration(s string) (core.BudgetDuration, error) {
	return core.ParseBudgetDuration(s)
}
