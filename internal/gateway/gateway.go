// Package gateway is the single entry point between request handlers and
// the store. It fetches and normalizes collections, derives per-category
// spend and effective limits, validates mutations and emits change events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kobo/internal/core"
	"kobo/internal/store"
)

// DefaultOverrideTolerance is how far a stored override's bounds may drift
// from the requested period and still apply.
const DefaultOverrideTolerance = 24 * time.Hour

// Publisher receives change events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e core.Event) error
}

type (
	// CategoryView is a category with its spend and limit for a period.
	CategoryView struct {
		core.Category
		CurrentSpent   core.Money           `json:"current_spent"`
		EffectiveLimit core.Money           `json:"effective_limit"`
		Override       *core.BudgetOverride `json:"override,omitempty"`
	}

	// Snapshot is everything a dashboard needs for one account and range.
	Snapshot struct {
		Period       *core.Period          `json:"period,omitempty"`
		Transactions []core.Transaction    `json:"transactions"`
		Categories   []CategoryView        `json:"categories"`
		Investments  []core.Investment     `json:"investments"`
		Overrides    []core.BudgetOverride `json:"overrides"`
		Version      int64                 `json:"version"`
	}
)

// Remaining returns the limit minus spend; negative when over budget.
func (v CategoryView) Remaining() core.Money {
	return v.EffectiveLimit.Sub(v.CurrentSpent)
}

// OverBudget reports whether spend passed a non-zero limit.
func (v CategoryView) OverBudget() bool {
	return v.EffectiveLimit.Cents > 0 && v.CurrentSpent.Cents > v.EffectiveLimit.Cents
}

// EmptySnapshot has every collection empty but non-nil, so it encodes as [].
func EmptySnapshot() Snapshot {
	return Snapshot{
		Transactions: []core.Transaction{},
		Categories:   []CategoryView{},
		Investments:  []core.Investment{},
		Overrides:    []core.BudgetOverride{},
	}
}

type Gateway struct {
	store     store.Store
	publisher Publisher
	tolerance time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	versions map[core.AccountID]int64
}

type Option func(*Gateway)

func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

func WithOverrideTolerance(d time.Duration) Option {
	return func(g *Gateway) { g.tolerance = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func New(s store.Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:     s,
		tolerance: DefaultOverrideTolerance,
		logger:    slog.Default(),
		now:       time.Now,
		versions:  make(map[core.AccountID]int64),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Version returns the account's data version. It increases on every
// successful mutation made through this gateway.
func (g *Gateway) Version(account core.AccountID) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.versions[account]
}

func (g *Gateway) bump(account core.AccountID) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.versions[account]++
	return g.versions[account]
}

// FetchAll loads the account's collections concurrently. With a range,
// transactions are restricted to it and overlapping overrides are loaded.
//
// A missing overrides relation degrades to "no overrides". Any other failure
// returns an empty snapshot together with the error, so callers can still
// render something and log the cause.
func (g *Gateway) FetchAll(ctx context.Context, account core.AccountID, p *core.Period) (Snapshot, error) {
	if err := account.Validate(); err != nil {
		return EmptySnapshot(), err
	}
	if p != nil {
		if err := p.Validate(); err != nil {
			return EmptySnapshot(), err
		}
		utc := p.UTC()
		p = &utc
	}

	var (
		txs         []core.Transaction
		categories  []core.Category
		investments []core.Investment
		overrides   []core.BudgetOverride
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		txs, err = g.store.ListTransactions(ctx, account, p)
		return err
	})
	eg.Go(func() error {
		var err error
		categories, err = g.store.ListCategories(ctx, account)
		return err
	})
	eg.Go(func() error {
		var err error
		investments, err = g.store.ListInvestments(ctx, account)
		return err
	})
	if p != nil {
		eg.Go(func() error {
			var err error
			overrides, err = g.store.ListOverrides(ctx, account, *p)
			if errors.Is(err, store.ErrRelationMissing) {
				g.logger.DebugContext(ctx, "Budget overrides relation missing, using default limits",
					"account_id", account)
				overrides, err = nil, nil
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return EmptySnapshot(), fmt.Errorf("fetch snapshot: %w", err)
	}

	snap := Snapshot{
		Period:       p,
		Transactions: nonNil(txs),
		Investments:  nonNil(investments),
		Overrides:    nonNil(overrides),
		Version:      g.Version(account),
	}
	snap.Categories = g.categoryViews(categories, snap.Transactions, overrides, p)
	return snap, nil
}

func (g *Gateway) categoryViews(categories []core.Category, txs []core.Transaction, overrides []core.BudgetOverride, p *core.Period) []CategoryView {
	byID := make(map[string]int, len(categories))
	byName := make(map[string]int, len(categories))
	views := make([]CategoryView, len(categories))
	for i, c := range categories {
		views[i] = CategoryView{Category: c, EffectiveLimit: c.DefaultLimit}
		byID[c.ID] = i
		if _, taken := byName[c.Name]; !taken {
			byName[c.Name] = i
		}
	}

	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		if p != nil && !p.Contains(tx.Date) {
			continue
		}
		i, ok := attribute(tx, byID, byName)
		if !ok {
			continue
		}
		views[i].CurrentSpent = views[i].CurrentSpent.Add(tx.Amount)
	}

	if p != nil {
		for i := range views {
			if o, ok := MatchOverride(overrides, views[i].ID, *p, g.tolerance); ok {
				views[i].EffectiveLimit = o.Amount
				views[i].Override = &o
			}
		}
	}
	return views
}

// attribute finds the category a transaction counts against: by durable id
// first, and by exact name only for rows without one.
func attribute(tx core.Transaction, byID, byName map[string]int) (int, bool) {
	if tx.CategoryID != "" {
		i, ok := byID[tx.CategoryID]
		return i, ok
	}
	i, ok := byName[tx.Category]
	return i, ok
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Transactions lists the account's transactions, optionally within p.
func (g *Gateway) Transactions(ctx context.Context, account core.AccountID, p *core.Period) ([]core.Transaction, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	txs, err := g.store.ListTransactions(ctx, account, p)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Transaction loads one transaction.
func (g *Gateway) Transaction(ctx context.Context, account core.AccountID, id string) (core.Transaction, error) {
	return g.store.GetTransaction(ctx, account, id)
}

func (g *Gateway) publish(ctx context.Context, e core.Event) {
	if g.publisher == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = g.now().UTC()
	}
	if err := g.publisher.Publish(ctx, e); err != nil {
		g.logger.ErrorContext(ctx, "Failed to publish event",
			"kind", e.Kind,
			"account_id", e.AccountID,
			"entity_id", e.EntityID,
			"error", err)
	}
}
