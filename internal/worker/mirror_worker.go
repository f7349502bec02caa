package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kobo/internal/core"
	"kobo/internal/sheets"
	"kobo/internal/store"
)

// MirrorWorker copies recorded transactions and budget alerts to a
// spreadsheet as events arrive.
type MirrorWorker struct {
	store  store.TransactionStore
	mirror sheets.Mirror
}

func NewMirrorWorker(s store.TransactionStore, m sheets.Mirror) *MirrorWorker {
	return &MirrorWorker{store: s, mirror: m}
}

// HandleEvent processes a single event. A returned error asks the broker to
// redeliver; events that can never succeed are logged and dropped.
func (w *MirrorWorker) HandleEvent(ctx context.Context, e core.Event) error {
	switch e.Kind {
	case core.EventTransactionRecorded:
		return w.mirrorTransaction(ctx, e)
	case core.EventBudgetExceeded:
		return w.mirrorAlert(ctx, e)
	default:
		slog.DebugContext(ctx, "Ignoring event", "kind", e.Kind, "account_id", e.AccountID)
		return nil
	}
}

func (w *MirrorWorker) mirrorTransaction(ctx context.Context, e core.Event) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"account_id", e.AccountID,
		"transaction_id", e.EntityID,
		"version", e.Version)

	tx, err := w.store.GetTransaction(ctx, e.AccountID, e.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction no longer exists, skipping mirror",
			"account_id", e.AccountID,
			"transaction_id", e.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from store: %w", err)
	}

	ref, err := w.mirror.AppendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("append transaction to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully mirrored transaction",
		"transaction_id", tx.ID,
		"sheets_ref", ref,
		"amount", tx.Amount.String())
	return nil
}

func (w *MirrorWorker) mirrorAlert(ctx context.Context, e core.Event) error {
	ref, err := w.mirror.AppendAlert(ctx, e)
	if err != nil {
		return fmt.Errorf("append alert to sheets: %w", err)
	}
	slog.InfoContext(ctx, "Successfully mirrored budget alert",
		"account_id", e.AccountID,
		"category", e.Detail["category"],
		"sheets_ref", ref)
	return nil
}
