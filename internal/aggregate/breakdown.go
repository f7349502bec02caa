package aggregate

import (
	"sort"

	"kobo/internal/core"
)

// CategoryShare is one slice of the expense breakdown.
type CategoryShare struct {
	Name    string     `json:"name"`
	Amount  core.Money `json:"amount"`
	Percent float64    `json:"percent"`
}

// Breakdown groups expenses by category name. Shares are sorted by amount
// descending, ties by name, and their amounts always sum to the expense total.
func Breakdown(txs []core.Transaction) []CategoryShare {
	grouped := make(map[string]core.Money)
	var total core.Money
	for _, tx := range expensesOnly(txs) {
		name := categoryName(tx)
		grouped[name] = grouped[name].Add(tx.Amount)
		total = total.Add(tx.Amount)
	}

	shares := make([]CategoryShare, 0, len(grouped))
	for name, amount := range grouped {
		shares = append(shares, CategoryShare{
			Name:    name,
			Amount:  amount,
			Percent: core.Percent(amount, total),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Amount.Cents != shares[j].Amount.Cents {
			return shares[i].Amount.Cents > shares[j].Amount.Cents
		}
		return shares[i].Name < shares[j].Name
	})
	return shares
}
