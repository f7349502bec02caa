package aggregate

import (
	"time"

	"kobo/internal/core"
	"kobo/internal/period"
)

// Filter narrows a transaction list for the analytics views. Zero values
// disable a criterion.
type Filter struct {
	Lookback period.Lookback
	Type     core.TransactionType
	Category string
	From     time.Time
	To       time.Time
}

// Apply returns the transactions matching every criterion, keeping order.
// Criteria apply in order: lookback window, type, category, explicit range.
func (f Filter) Apply(txs []core.Transaction, now time.Time) []core.Transaction {
	var since time.Time
	if f.Lookback != "" {
		if w, bounded := f.Lookback.Window(now); bounded {
			since = w.Start
		}
	}

	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		d := tx.Date.UTC()
		if !since.IsZero() && d.Before(since) {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if f.Category != "" && tx.Category != f.Category {
			continue
		}
		if !f.From.IsZero() && d.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && d.After(f.To) {
			continue
		}
		out = append(out, tx)
	}
	return out
}
