package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kobo/internal/core"
)

var (
	TransactionHeader = []any{"Date", "Type", "Category", "Payee", "Description", "Amount", "ID", "Account"}
	AlertHeader       = []any{"Timestamp", "Account", "Category", "Spent", "Limit", "Period Start", "Period End", "Transaction"}
)

// TransactionRow renders a transaction in TransactionHeader column order.
func TransactionRow(tx core.Transaction) []any {
	return []any{
		tx.Date.UTC().Format("2006-01-02"),
		string(tx.Type),
		categoryOrDefault(tx.Category),
		tx.Payee,
		tx.Description,
		tx.Amount.Float(),
		tx.ID,
		string(tx.AccountID),
	}
}

// AlertRow renders a budget.exceeded event in AlertHeader column order.
func AlertRow(e core.Event) []any {
	d := e.Detail
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		string(e.AccountID),
		d["category"],
		amount(d["spent"]),
		amount(d["limit"]),
		day(d["period_start"]),
		day(d["period_end"]),
		d["transaction_id"],
	}
}

func categoryOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return core.Uncategorized
	}
	return name
}

// amount keeps numeric cells numeric so sheet formulas can sum them.
func amount(s string) any {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return s
	}
	return f
}

func day(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("2006-01-02")
}

// YearPrefixedName returns "<year> <base>" unless base already starts with a
// 4-digit year.
func YearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
