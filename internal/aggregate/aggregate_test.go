package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobo/internal/core"
	"kobo/internal/period"
)

var now = time.Date(2025, time.May, 20, 12, 0, 0, 0, time.UTC)

func tx(typ core.TransactionType, category string, cents int64, date time.Time) core.Transaction {
	return core.Transaction{
		Type:     typ,
		Category: category,
		Amount:   core.Money{Cents: cents},
		Date:     date,
		Payee:    "p",
	}
}

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 10, 0, 0, 0, time.UTC)
}

func TestTotals(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Income, "Salary", 100000, day(time.May, 1)),
		tx(core.Expense, "Food", 15000, day(time.May, 2)),
		tx(core.Expense, "Rent", 50000, day(time.May, 3)),
	}
	s := Totals(txs)
	assert.Equal(t, int64(100000), s.Income.Cents)
	assert.Equal(t, int64(65000), s.Expense.Cents)
	assert.Equal(t, int64(35000), s.Net.Cents)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, int64(55000), s.Average.Cents)

	assert.Equal(t, Summary{}, Totals(nil))
	assert.Equal(t, int64(65000), SumByType(txs, core.Expense).Cents)
}

func TestBreakdownSingleCategory(t *testing.T) {
	shares := Breakdown([]core.Transaction{
		tx(core.Expense, "Food", 10000, day(time.May, 1)),
		tx(core.Expense, "Food", 5000, day(time.May, 2)),
		tx(core.Income, "Salary", 90000, day(time.May, 2)),
	})
	require.Len(t, shares, 1)
	assert.Equal(t, "Food", shares[0].Name)
	assert.Equal(t, int64(15000), shares[0].Amount.Cents)
	assert.Equal(t, 100.0, shares[0].Percent)
}

func TestBreakdownOrderingAndSum(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Transport", 3000, day(time.May, 1)),
		tx(core.Expense, "", 2000, day(time.May, 1)),
		tx(core.Expense, "Food", 5000, day(time.May, 1)),
		tx(core.Expense, "Books", 3000, day(time.May, 1)),
	}
	shares := Breakdown(txs)
	require.Len(t, shares, 4)

	names := []string{shares[0].Name, shares[1].Name, shares[2].Name, shares[3].Name}
	assert.Equal(t, []string{"Food", "Books", "Transport", core.Uncategorized}, names)

	var sum int64
	for _, s := range shares {
		sum += s.Amount.Cents
	}
	assert.Equal(t, SumByType(txs, core.Expense).Cents, sum)
}

func TestBreakdownEmpty(t *testing.T) {
	assert.Empty(t, Breakdown(nil))
	assert.Empty(t, Breakdown([]core.Transaction{tx(core.Income, "Salary", 100, day(time.May, 1))}))
}

func TestTrend(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Food", 15000, day(time.May, 5)),
		tx(core.Expense, "Food", 10000, day(time.April, 5)),
		tx(core.Expense, "Rent", 50000, day(time.April, 1)),
		tx(core.Expense, "Fun", 2000, day(time.May, 2)),
		tx(core.Expense, "Old", 9999, day(time.March, 31)),
		tx(core.Income, "Salary", 100000, day(time.May, 1)),
	}
	trends := Trend(txs, now)
	require.Len(t, trends, 3)

	byName := map[string]CategoryTrend{}
	for _, tr := range trends {
		byName[tr.Name] = tr
	}
	assert.Equal(t, 50.0, byName["Food"].Change)
	assert.Equal(t, Up, byName["Food"].Direction)

	assert.Equal(t, -100.0, byName["Rent"].Change)
	assert.Equal(t, Down, byName["Rent"].Direction)

	// No previous spend: change is exactly zero, never infinite.
	assert.Equal(t, 0.0, byName["Fun"].Change)
	assert.Equal(t, Neutral, byName["Fun"].Direction)

	assert.Equal(t, "Food", trends[0].Name)
	assert.Equal(t, "Rent", trends[2].Name)
}

func TestCompare(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Food", 30000, day(time.May, 10)),
		tx(core.Income, "Salary", 100000, day(time.May, 1)),
		tx(core.Expense, "Food", 20000, day(time.April, 10)),
		tx(core.Expense, "Food", 7000, day(time.January, 10)),
	}
	c := Compare(txs, period.LastMonth, now)
	assert.Equal(t, int64(30000), c.Current.Expense.Cents)
	assert.Equal(t, int64(100000), c.Current.Income.Cents)
	assert.Equal(t, 2, c.Current.Count)
	assert.Equal(t, int64(20000), c.Previous.Expense.Cents)
	assert.Equal(t, 1, c.Previous.Count)
	assert.Equal(t, 50.0, c.ExpenseChange)
	assert.Equal(t, 0.0, c.IncomeChange)
}

func TestCompareBoundaryBelongsToCurrent(t *testing.T) {
	w := period.LastWeek.Compare(now)
	c := Compare([]core.Transaction{tx(core.Expense, "Food", 100, w.Current.Start)}, period.LastWeek, now)
	assert.Equal(t, 1, c.Current.Count)
	assert.Equal(t, 0, c.Previous.Count)
}

func TestSeries(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Food", 500, day(time.May, 3)),
		tx(core.Income, "Salary", 1000, day(time.May, 1)),
		tx(core.Expense, "Food", 300, day(time.May, 1)),
	}
	points := Series(txs, period.LastMonth)
	require.Len(t, points, 2)
	assert.Equal(t, "May 1", points[0].Label)
	assert.Equal(t, int64(1000), points[0].Income.Cents)
	assert.Equal(t, int64(300), points[0].Expense.Cents)
	assert.Equal(t, "May 3", points[1].Label)
}

func TestSeriesKeepsLastTenAscending(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 15; i++ {
		txs = append(txs, tx(core.Expense, "Food", 100, day(time.May, 20-i)))
	}
	points := Series(txs, period.LastMonth)
	require.Len(t, points, MaxSeriesPoints)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i-1].Time.Before(points[i].Time))
	}
	assert.Equal(t, "May 20", points[len(points)-1].Label)
	assert.Equal(t, "May 11", points[0].Label)
}

func TestFilter(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Food", 100, day(time.May, 18)),
		tx(core.Income, "Salary", 100, day(time.May, 15)),
		tx(core.Expense, "Rent", 100, day(time.May, 10)),
		tx(core.Expense, "Food", 100, day(time.January, 10)),
	}

	got := Filter{Lookback: period.LastMonth}.Apply(txs, now)
	assert.Len(t, got, 3)

	got = Filter{Lookback: period.AllTime, Type: core.Expense, Category: "Food"}.Apply(txs, now)
	assert.Len(t, got, 2)

	got = Filter{From: day(time.May, 12), To: day(time.May, 16)}.Apply(txs, now)
	require.Len(t, got, 1)
	assert.Equal(t, "Salary", got[0].Category)
}
