package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobo/internal/core"
	"kobo/internal/period"
)

func TestParseReport(t *testing.T) {
	r, err := ParseReport(" Breakdown ")
	require.NoError(t, err)
	assert.Equal(t, ReportBreakdown, r)

	_, err = ParseReport("pie")
	assert.ErrorIs(t, err, ErrUnknownReport)
}

func TestComputeComparisonIgnoresLookbackForInput(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Food", 30000, day(time.May, 10)),
		tx(core.Expense, "Food", 20000, day(time.April, 10)),
	}
	// Filtering by the lookback first would drop the April row.
	c, ok := Compute(ReportComparison, txs, Filter{Lookback: period.LastMonth}, now).(Comparison)
	require.True(t, ok)
	assert.Equal(t, int64(30000), c.Current.Expense.Cents)
	assert.Equal(t, int64(20000), c.Previous.Expense.Cents)
}

func TestComputeDefaultsWindow(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Food", 500, day(time.May, 3)),
		tx(core.Expense, "Food", 900, day(time.January, 3)),
	}
	points, ok := Compute(ReportSeries, txs, Filter{}, now).([]Point)
	require.True(t, ok)
	require.Len(t, points, 1)
	assert.Equal(t, "May 3", points[0].Label)

	// Summary has no implied window.
	s, ok := Compute(ReportSummary, txs, Filter{}, now).(Summary)
	require.True(t, ok)
	assert.Equal(t, 2, s.Count)
}

func TestComputeAppliesTypeFilter(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Income, "Salary", 100000, day(time.May, 1)),
		tx(core.Expense, "Food", 15000, day(time.May, 2)),
	}
	s := Compute(ReportSummary, txs, Filter{Type: core.Income}, now).(Summary)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, int64(100000), s.Income.Cents)
	assert.Zero(t, s.Expense.Cents)
}
