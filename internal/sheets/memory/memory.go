// Package memory is an in-process mirror used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "kobo/internal/sheets"

	"kobo/internal/core"
)

type Mirror struct {
	mu           sync.Mutex
	transactions [][]any
	alerts       [][]any
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

// AppendTransaction stores the rendered row and returns a synthetic reference.
func (m *Mirror) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", core.ErrEmptyID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, ports.TransactionRow(tx))
	return fmt.Sprintf("mem:transactions:%d", len(m.transactions)), nil
}

func (m *Mirror) AppendAlert(_ context.Context, e core.Event) (string, error) {
	if e.Kind != core.EventBudgetExceeded {
		return "", fmt.Errorf("unexpected event kind %q", e.Kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, ports.AlertRow(e))
	return fmt.Sprintf("mem:alerts:%d", len(m.alerts)), nil
}

// Transactions returns a copy of the mirrored transaction rows.
func (m *Mirror) Transactions() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.transactions...)
}

func (m *Mirror) Alerts() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.alerts...)
}
