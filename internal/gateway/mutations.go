package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kobo/internal/core"
	"kobo/internal/period"
	"kobo/internal/store"
)

// TransactionInput is a new transaction as submitted by a user. Date
// defaults to now; CategoryID is resolved from the name when omitted.
type TransactionInput struct {
	Date        time.Time            `json:"date"`
	Amount      core.Money           `json:"amount"`
	Type        core.TransactionType `json:"type"`
	CategoryID  string               `json:"category_id,omitempty"`
	Category    string               `json:"category"`
	Payee       string               `json:"payee"`
	Description string               `json:"description,omitempty"`
}

// RecordTransaction validates and stores a transaction, then announces it.
// An expense that pushes its category past the limit of the current
// budgeting period also raises a budget.exceeded event.
func (g *Gateway) RecordTransaction(ctx context.Context, account core.AccountID, in TransactionInput) (core.Transaction, error) {
	if err := account.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		AccountID:   account,
		Date:        in.Date,
		Amount:      in.Amount,
		Type:        in.Type,
		CategoryID:  strings.TrimSpace(in.CategoryID),
		Category:    strings.TrimSpace(in.Category),
		Payee:       strings.TrimSpace(in.Payee),
		Description: strings.TrimSpace(in.Description),
	}
	if tx.Date.IsZero() {
		tx.Date = g.now()
	}
	tx.Date = tx.Date.UTC()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if tx.CategoryID == "" {
		id, err := g.resolveCategoryID(ctx, account, tx.Category)
		if err != nil {
			return core.Transaction{}, err
		}
		tx.CategoryID = id
	}

	saved, err := g.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	version := g.bump(account)

	g.logger.InfoContext(ctx, "Transaction recorded",
		"account_id", account,
		"transaction_id", saved.ID,
		"type", saved.Type,
		"amount", saved.Amount.String(),
		"category", saved.Category)

	g.publish(ctx, core.Event{
		Kind:      core.EventTransactionRecorded,
		AccountID: account,
		EntityID:  saved.ID,
		Version:   version,
	})

	if saved.Type == core.Expense {
		g.checkBudget(ctx, saved, version)
	}
	return saved, nil
}

func (g *Gateway) resolveCategoryID(ctx context.Context, account core.AccountID, name string) (string, error) {
	categories, err := g.store.ListCategories(ctx, account)
	if err != nil {
		return "", fmt.Errorf("resolve category: %w", err)
	}
	for _, c := range categories {
		if c.Name == name {
			return c.ID, nil
		}
	}
	return "", nil
}

// checkBudget publishes budget.exceeded when tx is the expense that moved
// its category over the effective limit. Failures only get logged.
func (g *Gateway) checkBudget(ctx context.Context, tx core.Transaction, version int64) {
	duration := g.budgetDuration(ctx, tx.AccountID)
	current, err := period.Current(duration, g.now())
	if err != nil || !current.Contains(tx.Date) {
		return
	}

	snap, err := g.FetchAll(ctx, tx.AccountID, &current)
	if err != nil {
		g.logger.WarnContext(ctx, "Budget check skipped", "account_id", tx.AccountID, "error", err)
		return
	}

	byID := make(map[string]int, len(snap.Categories))
	byName := make(map[string]int, len(snap.Categories))
	for i, c := range snap.Categories {
		byID[c.ID] = i
		if _, taken := byName[c.Name]; !taken {
			byName[c.Name] = i
		}
	}
	i, ok := attribute(tx, byID, byName)
	if !ok {
		return
	}
	view := snap.Categories[i]
	if !view.OverBudget() || view.CurrentSpent.Sub(tx.Amount).Cents > view.EffectiveLimit.Cents {
		return
	}

	g.logger.InfoContext(ctx, "Budget exceeded",
		"account_id", tx.AccountID,
		"category", view.Name,
		"spent", view.CurrentSpent.String(),
		"limit", view.EffectiveLimit.String())

	g.publish(ctx, core.Event{
		Kind:      core.EventBudgetExceeded,
		AccountID: tx.AccountID,
		EntityID:  view.ID,
		Version:   version,
		Detail: map[string]string{
			"category":       view.Name,
			"spent":          view.CurrentSpent.String(),
			"limit":          view.EffectiveLimit.String(),
			"period_start":   current.Start.Format(time.RFC3339),
			"period_end":     current.End.Format(time.RFC3339),
			"transaction_id": tx.ID,
		},
	})
}

func (g *Gateway) budgetDuration(ctx context.Context, account core.AccountID) core.BudgetDuration {
	st, err := g.store.GetSettings(ctx, account)
	if err != nil || !st.BudgetDuration.IsValid() {
		return core.DefaultBudgetDuration
	}
	return st.BudgetDuration
}

// UpsertCategory creates or replaces a category. Existing transactions keep
// their denormalized names.
func (g *Gateway) UpsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.AccountID.Validate(); err != nil {
		return core.Category{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	saved, err := g.store.UpsertCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	version := g.bump(c.AccountID)
	g.publish(ctx, core.Event{Kind: core.EventCategoryChanged, AccountID: c.AccountID, EntityID: saved.ID, Version: version})
	return saved, nil
}

// DeleteCategory removes a category. Transactions are never touched.
func (g *Gateway) DeleteCategory(ctx context.Context, account core.AccountID, id string) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	if err := g.store.DeleteCategory(ctx, account, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	version := g.bump(account)
	g.publish(ctx, core.Event{
		Kind: core.EventCategoryChanged, AccountID: account, EntityID: id, Version: version,
		Detail: map[string]string{"deleted": "true"},
	})
	return nil
}

// SetBudgetOverride stores the limit for a category over exactly p. Calling
// it again for the same bounds updates the amount in place.
func (g *Gateway) SetBudgetOverride(ctx context.Context, account core.AccountID, categoryID string, amount core.Money, p core.Period) (core.BudgetOverride, error) {
	if err := account.Validate(); err != nil {
		return core.BudgetOverride{}, err
	}
	p = p.UTC()
	o := core.BudgetOverride{
		AccountID:   account,
		CategoryID:  strings.TrimSpace(categoryID),
		Amount:      amount,
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
	}
	if err := o.Validate(); err != nil {
		return core.BudgetOverride{}, err
	}

	saved, err := g.saveOverride(ctx, o)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost an insert race; the row exists now.
		saved, err = g.saveOverride(ctx, o)
	}
	if err != nil {
		return core.BudgetOverride{}, fmt.Errorf("save budget override: %w", err)
	}

	version := g.bump(account)
	g.publish(ctx, core.Event{
		Kind: core.EventOverrideSet, AccountID: account, EntityID: saved.ID, Version: version,
		Detail: map[string]string{"category_id": saved.CategoryID, "amount": saved.Amount.String()},
	})
	return saved, nil
}

func (g *Gateway) saveOverride(ctx context.Context, o core.BudgetOverride) (core.BudgetOverride, error) {
	existing, err := g.store.FindOverride(ctx, o.AccountID, o.CategoryID, o.Period())
	switch {
	case err == nil:
		existing.Amount = o.Amount
		return g.store.SaveOverride(ctx, existing)
	case errors.Is(err, store.ErrNotFound):
		return g.store.SaveOverride(ctx, o)
	default:
		return core.BudgetOverride{}, err
	}
}

func (g *Gateway) UpsertInvestment(ctx context.Context, i core.Investment) (core.Investment, error) {
	if err := i.AccountID.Validate(); err != nil {
		return core.Investment{}, err
	}
	i.Category = strings.TrimSpace(i.Category)
	if err := i.Validate(); err != nil {
		return core.Investment{}, err
	}
	saved, err := g.store.UpsertInvestment(ctx, i)
	if err != nil {
		return core.Investment{}, fmt.Errorf("save investment: %w", err)
	}
	version := g.bump(i.AccountID)
	g.publish(ctx, core.Event{Kind: core.EventInvestmentChanged, AccountID: i.AccountID, EntityID: saved.ID, Version: version})
	return saved, nil
}

func (g *Gateway) DeleteInvestment(ctx context.Context, account core.AccountID, id string) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	if err := g.store.DeleteInvestment(ctx, account, id); err != nil {
		return fmt.Errorf("delete investment: %w", err)
	}
	version := g.bump(account)
	g.publish(ctx, core.Event{
		Kind: core.EventInvestmentChanged, AccountID: account, EntityID: id, Version: version,
		Detail: map[string]string{"deleted": "true"},
	})
	return nil
}

// EnsureDefaultCategories seeds the starter categories for an account that
// has none. It returns how many were created.
func (g *Gateway) EnsureDefaultCategories(ctx context.Context, account core.AccountID) (int, error) {
	if err := account.Validate(); err != nil {
		return 0, err
	}
	existing, err := g.store.ListCategories(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, c := range core.DefaultCategories() {
		c.AccountID = account
		_, err := g.store.UpsertCategory(ctx, c)
		switch {
		case err == nil:
			created++
		case errors.Is(err, store.ErrDuplicate):
		default:
			return created, fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	if created > 0 {
		g.bump(account)
	}
	return created, nil
}
