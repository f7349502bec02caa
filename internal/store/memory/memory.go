// Package memory is an in-process store used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kobo/internal/core"
	"kobo/internal/store"
)

// Store keeps every collection in maps guarded by one mutex.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]core.Transaction
	categories   map[string]core.Category
	overrides    map[string]core.BudgetOverride
	investments  map[string]core.Investment
	settings     map[core.AccountID]core.Settings
	now          func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		categories:   make(map[string]core.Category),
		overrides:    make(map[string]core.BudgetOverride),
		investments:  make(map[string]core.Investment),
		settings:     make(map[core.AccountID]core.Settings),
		now:          time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(_ context.Context, account core.AccountID, p *core.Period) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.AccountID != account {
			continue
		}
		if p != nil && !p.Contains(tx.Date) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, account core.AccountID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok || tx.AccountID != account {
		return core.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = uuid.NewString()
	tx.CreatedAt = s.now().UTC()
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) ListCategories(_ context.Context, account core.AccountID) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.AccountID == account {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpsertCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.categories {
		if existing.AccountID == c.AccountID && id != c.ID && existing.Name == c.Name {
			return core.Category{}, store.ErrDuplicate
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if existing, ok := s.categories[c.ID]; !ok || existing.AccountID != c.AccountID {
		return core.Category{}, store.ErrNotFound
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, account core.AccountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok || c.AccountID != account {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListOverrides(_ context.Context, account core.AccountID, p core.Period) ([]core.BudgetOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.BudgetOverride, 0)
	for _, o := range s.overrides {
		if o.AccountID == account && o.Period().Overlaps(p) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindOverride(_ context.Context, account core.AccountID, categoryID string, p core.Period) (core.BudgetOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.overrides {
		if o.AccountID == account && o.CategoryID == categoryID && o.Period().Equal(p) {
			return o, nil
		}
	}
	return core.BudgetOverride{}, store.ErrNotFound
}

func (s *Store) SaveOverride(_ context.Context, o core.BudgetOverride) (core.BudgetOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID != "" {
		existing, ok := s.overrides[o.ID]
		if !ok || existing.AccountID != o.AccountID {
			return core.BudgetOverride{}, store.ErrNotFound
		}
		existing.Amount = o.Amount
		s.overrides[o.ID] = existing
		return existing, nil
	}

	for _, existing := range s.overrides {
		if existing.AccountID == o.AccountID && existing.CategoryID == o.CategoryID && existing.Period().Equal(o.Period()) {
			return core.BudgetOverride{}, store.ErrDuplicate
		}
	}
	o.ID = uuid.NewString()
	o.CreatedAt = s.now().UTC()
	s.overrides[o.ID] = o
	return o, nil
}

func (s *Store) ListInvestments(_ context.Context, account core.AccountID) ([]core.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Investment, 0)
	for _, i := range s.investments {
		if i.AccountID == account {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Category < out[b].Category })
	return out, nil
}

func (s *Store) UpsertInvestment(_ context.Context, i core.Investment) (core.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i.ID == "" {
		i.ID = uuid.NewString()
	} else if existing, ok := s.investments[i.ID]; !ok || existing.AccountID != i.AccountID {
		return core.Investment{}, store.ErrNotFound
	}
	s.investments[i.ID] = i
	return i, nil
}

func (s *Store) DeleteInvestment(_ context.Context, account core.AccountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.investments[id]
	if !ok || i.AccountID != account {
		return store.ErrNotFound
	}
	delete(s.investments, id)
	return nil
}

func (s *Store) GetSettings(_ context.Context, account core.AccountID) (core.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settings[account]
	if !ok {
		return core.Settings{}, store.ErrNotFound
	}
	return st, nil
}

func (s *Store) SaveSettings(_ context.Context, st core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.UpdatedAt = s.now().UTC()
	s.settings[st.AccountID] = st
	return nil
}
