package aggregate

import (
	"sort"
	"time"

	"kobo/internal/core"
	"kobo/internal/period"
)

const (
	Up      Direction = "up"
	Down    Direction = "down"
	Neutral Direction = "neutral"
)

type Direction string

// CategoryTrend compares one category's spend in the current and previous
// calendar month.
type CategoryTrend struct {
	Name      string     `json:"name"`
	Current   core.Money `json:"current"`
	Previous  core.Money `json:"previous"`
	Change    float64    `json:"change"`
	Direction Direction  `json:"direction"`
}

// Trend compares expense totals per category between the calendar month
// containing now and the month before it, both in UTC.
func Trend(txs []core.Transaction, now time.Time) []CategoryTrend {
	cur := period.MonthOf(now)
	prev := period.MonthOf(cur.Start.Add(-time.Millisecond))

	current := make(map[string]core.Money)
	previous := make(map[string]core.Money)
	for _, tx := range expensesOnly(txs) {
		d := tx.Date.UTC()
		name := categoryName(tx)
		switch {
		case !d.Before(cur.Start):
			current[name] = current[name].Add(tx.Amount)
		case prev.Contains(d):
			previous[name] = previous[name].Add(tx.Amount)
		}
	}

	names := make(map[string]struct{}, len(current)+len(previous))
	for n := range current {
		names[n] = struct{}{}
	}
	for n := range previous {
		names[n] = struct{}{}
	}

	out := make([]CategoryTrend, 0, len(names))
	for n := range names {
		change := core.PercentChange(current[n], previous[n])
		out = append(out, CategoryTrend{
			Name:      n,
			Current:   current[n],
			Previous:  previous[n],
			Change:    change,
			Direction: directionOf(change),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Current.Cents != out[j].Current.Cents {
			return out[i].Current.Cents > out[j].Current.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func directionOf(change float64) Direction {
	switch {
	case change > 0:
		return Up
	case change < 0:
		return Down
	}
	return Neutral
}
