// Package aggregate reduces transaction slices into dashboard and analytics
// figures. Every function is pure: no I/O, no clocks other than the now
// passed in, and no errors.
package aggregate

import "kobo/internal/core"

// Summary holds the headline figures of a transaction set.
type Summary struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Net     core.Money `json:"net"`
	Count   int        `json:"count"`
	// Average is the mean amount over all transactions regardless of type.
	Average core.Money `json:"average"`
}

// SumByType adds up the amounts of transactions of type t.
func SumByType(txs []core.Transaction, t core.TransactionType) core.Money {
	var sum core.Money
	for _, tx := range txs {
		if tx.Type == t {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// Totals computes income, expense, net balance, count and average amount.
func Totals(txs []core.Transaction) Summary {
	var s Summary
	var all core.Money
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.Income = s.Income.Add(tx.Amount)
		case core.Expense:
			s.Expense = s.Expense.Add(tx.Amount)
		}
		all = all.Add(tx.Amount)
	}
	s.Count = len(txs)
	s.Net = s.Income.Sub(s.Expense)
	if s.Count > 0 {
		s.Average = core.MoneyFromDecimal(all.Decimal().Div(decimalInt(int64(s.Count))))
	}
	return s
}
