// Package sheets declares the spreadsheet mirror written by the worker.
package sheets

import (
	"context"

	"kobo/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	AlertWriter interface {
		AppendAlert(ctx context.Context, e core.Event) (rowRef string, err error)
	}

	Mirror interface {
		TransactionWriter
		AlertWriter
	}
)
