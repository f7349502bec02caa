package aggregate

import (
	"time"

	"kobo/internal/core"
	"kobo/internal/period"
)

// WindowTotals are the figures for one side of a comparison.
type WindowTotals struct {
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Count   int        `json:"count"`
}

type Comparison struct {
	Current       WindowTotals `json:"current"`
	Previous      WindowTotals `json:"previous"`
	IncomeChange  float64      `json:"income_change"`
	ExpenseChange float64      `json:"expense_change"`
}

// Compare totals the lookback window ending at now against the window of the
// same length right before it. Percent changes are 0 when the previous side
// is 0.
func Compare(txs []core.Transaction, l period.Lookback, now time.Time) Comparison {
	w := l.Compare(now)
	c := Comparison{
		Current:  WindowTotals{Start: w.Current.Start, End: w.Current.End},
		Previous: WindowTotals{Start: w.Previous.Start, End: w.Previous.End},
	}
	for _, tx := range txs {
		d := tx.Date.UTC()
		switch {
		case w.Current.Contains(d):
			c.Current.add(tx)
		case w.InPrevious(d):
			c.Previous.add(tx)
		}
	}
	c.IncomeChange = core.PercentChange(c.Current.Income, c.Previous.Income)
	c.ExpenseChange = core.PercentChange(c.Current.Expense, c.Previous.Expense)
	return c
}

func (w *WindowTotals) add(tx core.Transaction) {
	switch tx.Type {
	case core.Income:
		w.Income = w.Income.Add(tx.Amount)
	case core.Expense:
		w.Expense = w.Expense.Add(tx.Amount)
	}
	w.Count++
}
