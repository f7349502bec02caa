package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kobo/internal/core"
)

func TestMatchOverrideTieBreak(t *testing.T) {
	p := core.Period{
		Start: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC),
	}
	older := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	overrides := []core.BudgetOverride{
		{ID: "far", CategoryID: "c", PeriodStart: p.Start.Add(2 * time.Hour), PeriodEnd: p.End, CreatedAt: newer},
		{ID: "b", CategoryID: "c", PeriodStart: p.Start.Add(time.Hour), PeriodEnd: p.End, CreatedAt: older},
		{ID: "a", CategoryID: "c", PeriodStart: p.Start.Add(-time.Hour), PeriodEnd: p.End, CreatedAt: older},
		{ID: "new", CategoryID: "c", PeriodStart: p.Start, PeriodEnd: p.End.Add(time.Hour), CreatedAt: newer},
		{ID: "other", CategoryID: "x", PeriodStart: p.Start, PeriodEnd: p.End},
	}

	got, ok := MatchOverride(overrides, "c", p, DefaultOverrideTolerance)
	assert.True(t, ok)
	assert.Equal(t, "new", got.ID, "equal drift prefers the newest")

	got, ok = MatchOverride(overrides[:3], "c", p, DefaultOverrideTolerance)
	assert.True(t, ok)
	assert.Equal(t, "a", got.ID, "equal drift and age prefers the lowest id")

	_, ok = MatchOverride(overrides, "missing", p, DefaultOverrideTolerance)
	assert.False(t, ok)

	_, ok = MatchOverride(overrides, "c", p, 30*time.Minute)
	assert.False(t, ok)
}

func TestMatchOverrideRequiresBothBounds(t *testing.T) {
	p := core.Period{
		Start: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC),
	}
	o := core.BudgetOverride{ID: "o", CategoryID: "c", PeriodStart: p.Start, PeriodEnd: p.End.AddDate(0, 0, 2)}
	_, ok := MatchOverride([]core.BudgetOverride{o}, "c", p, DefaultOverrideTolerance)
	assert.False(t, ok)
}

func TestMatchOverrideRejectsShiftedPeriod(t *testing.T) {
	jan := core.Period{
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.January, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC),
	}
	shifted := core.BudgetOverride{ID: "o", CategoryID: "c", PeriodStart: jan.Start.AddDate(0, 0, 1), PeriodEnd: jan.End.AddDate(0, 0, 1)}
	_, ok := MatchOverride([]core.BudgetOverride{shifted}, "c", jan, DefaultOverrideTolerance)
	assert.False(t, ok, "a period one day later belongs to the neighbour")
}
