package aggregate

import (
	"strings"

	"github.com/shopspring/decimal"

	"kobo/internal/core"
)

func decimalInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// categoryName returns the bucket name for a transaction.
func categoryName(tx core.Transaction) string {
	if strings.TrimSpace(tx.Category) == "" {
		return core.Uncategorized
	}
	return tx.Category
}

func expensesOnly(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Type == core.Expense {
			out = append(out, tx)
		}
	}
	return out
}
