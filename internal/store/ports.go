// Package store declares the persistence ports of the budgeting core.
// Adapters live in the memory, sqlite and postgres subpackages.
package store

import (
	"context"
	"errors"

	"kobo/internal/core"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	// ErrRelationMissing reports a table that does not exist yet, for example
	// budget overrides on a database that predates them.
	ErrRelationMissing = errors.New("relation missing")
)

type (
	TransactionStore interface {
		// ListTransactions returns the account's transactions ordered by date
		// descending. A nil period lists everything.
		ListTransactions(ctx context.Context, account core.AccountID, p *core.Period) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, account core.AccountID, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context, account core.AccountID) ([]core.Category, error)
		// UpsertCategory inserts when ID is empty and replaces otherwise.
		// Names are unique per account.
		UpsertCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, account core.AccountID, id string) error
	}

	BudgetStore interface {
		// ListOverrides returns overrides whose period overlaps p.
		ListOverrides(ctx context.Context, account core.AccountID, p core.Period) ([]core.BudgetOverride, error)
		// FindOverride looks up the override stored for exactly these bounds.
		FindOverride(ctx context.Context, account core.AccountID, categoryID string, p core.Period) (core.BudgetOverride, error)
		// SaveOverride inserts when ID is empty and updates the amount otherwise.
		SaveOverride(ctx context.Context, o core.BudgetOverride) (core.BudgetOverride, error)
	}

	InvestmentStore interface {
		ListInvestments(ctx context.Context, account core.AccountID) ([]core.Investment, error)
		UpsertInvestment(ctx context.Context, i core.Investment) (core.Investment, error)
		DeleteInvestment(ctx context.Context, account core.AccountID, id string) error
	}

	SettingsStore interface {
		GetSettings(ctx context.Context, account core.AccountID) (core.Settings, error)
		SaveSettings(ctx context.Context, s core.Settings) error
	}

	Store interface {
		TransactionStore
		CategoryStore
		BudgetStore
		InvestmentStore
		SettingsStore
		Close() error
	}
)
