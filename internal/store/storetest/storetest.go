// Package storetest holds the behaviour every store adapter must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobo/internal/core"
	"kobo/internal/store"
)

// Run exercises s against the store contract. s must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	t.Run("Transactions", func(t *testing.T) { transactions(t, s) })
	t.Run("Categories", func(t *testing.T) { categories(t, s) })
	t.Run("Overrides", func(t *testing.T) { overrides(t, s) })
	t.Run("Investments", func(t *testing.T) { investments(t, s) })
	t.Run("Settings", func(t *testing.T) { settings(t, s) })
}

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 12, 0, 0, 0, time.UTC)
}

func transactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	const acct = core.AccountID("tx-acct")

	for i, d := range []time.Time{day(time.May, 1), day(time.May, 20), day(time.April, 3)} {
		_, err := s.CreateTransaction(ctx, core.Transaction{
			AccountID: acct,
			Date:      d,
			Amount:    core.Money{Cents: int64(100 * (i + 1))},
			Type:      core.Expense,
			Category:  "Food",
			Payee:     "Market",
		})
		require.NoError(t, err)
	}
	_, err := s.CreateTransaction(ctx, core.Transaction{
		AccountID: "someone-else", Date: day(time.May, 2), Amount: core.Money{Cents: 1},
		Type: core.Income, Category: "Salary", Payee: "Boss",
	})
	require.NoError(t, err)

	all, err := s.ListTransactions(ctx, acct, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Date.Equal(day(time.May, 20)), "newest first")
	assert.True(t, all[2].Date.Equal(day(time.April, 3)))
	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].CreatedAt.IsZero())

	may := core.Period{Start: day(time.May, 1).Add(-12 * time.Hour), End: day(time.May, 31)}
	inMay, err := s.ListTransactions(ctx, acct, &may)
	require.NoError(t, err)
	assert.Len(t, inMay, 2)

	got, err := s.GetTransaction(ctx, acct, all[1].ID)
	require.NoError(t, err)
	assert.Equal(t, all[1].Amount, got.Amount)
	assert.Equal(t, "Market", got.Payee)

	_, err = s.GetTransaction(ctx, "someone-else", all[1].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func categories(t *testing.T, s store.Store) {
	ctx := context.Background()
	const acct = core.AccountID("cat-acct")

	rent, err := s.UpsertCategory(ctx, core.Category{
		AccountID: acct, Name: "Rent", Type: core.ExpenseCategory, DefaultLimit: core.Money{Cents: 100000},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rent.ID)

	_, err = s.UpsertCategory(ctx, core.Category{AccountID: acct, Name: "Rent", Type: core.ExpenseCategory})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	// Same name on another account is fine.
	_, err = s.UpsertCategory(ctx, core.Category{AccountID: "other", Name: "Rent", Type: core.ExpenseCategory})
	require.NoError(t, err)

	rent.DefaultLimit = core.Money{Cents: 120000}
	rent.Icon = "🏠"
	_, err = s.UpsertCategory(ctx, rent)
	require.NoError(t, err)

	list, err := s.ListCategories(ctx, acct)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(120000), list[0].DefaultLimit.Cents)
	assert.Equal(t, "🏠", list[0].Icon)

	require.NoError(t, s.DeleteCategory(ctx, acct, rent.ID))
	assert.ErrorIs(t, s.DeleteCategory(ctx, acct, rent.ID), store.ErrNotFound)
}

func overrides(t *testing.T, s store.Store) {
	ctx := context.Background()
	const acct = core.AccountID("ovr-acct")
	jan := core.Period{
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.January, 31, 23, 59, 59, 999e6, time.UTC),
	}

	_, err := s.FindOverride(ctx, acct, "cat-1", jan)
	assert.ErrorIs(t, err, store.ErrNotFound)

	o, err := s.SaveOverride(ctx, core.BudgetOverride{
		AccountID: acct, CategoryID: "cat-1", Amount: core.Money{Cents: 50000},
		PeriodStart: jan.Start, PeriodEnd: jan.End,
	})
	require.NoError(t, err)
	require.NotEmpty(t, o.ID)

	_, err = s.SaveOverride(ctx, core.BudgetOverride{
		AccountID: acct, CategoryID: "cat-1", Amount: core.Money{Cents: 1},
		PeriodStart: jan.Start, PeriodEnd: jan.End,
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	o.Amount = core.Money{Cents: 70000}
	_, err = s.SaveOverride(ctx, o)
	require.NoError(t, err)

	found, err := s.FindOverride(ctx, acct, "cat-1", jan)
	require.NoError(t, err)
	assert.Equal(t, o.ID, found.ID)
	assert.Equal(t, int64(70000), found.Amount.Cents)

	overlapping, err := s.ListOverrides(ctx, acct, core.Period{Start: jan.End, End: jan.End.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.Len(t, overlapping, 1)

	disjoint, err := s.ListOverrides(ctx, acct, core.Period{Start: jan.End.Add(time.Millisecond), End: jan.End.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.Empty(t, disjoint)
}

func investments(t *testing.T, s store.Store) {
	ctx := context.Background()
	const acct = core.AccountID("inv-acct")

	i, err := s.UpsertInvestment(ctx, core.Investment{
		AccountID: acct, Category: "Stocks", TargetAmount: core.Money{Cents: 1000000},
	})
	require.NoError(t, err)

	i.CurrentBalance = core.Money{Cents: 250000}
	_, err = s.UpsertInvestment(ctx, i)
	require.NoError(t, err)

	list, err := s.ListInvestments(ctx, acct)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(250000), list[0].CurrentBalance.Cents)

	require.NoError(t, s.DeleteInvestment(ctx, acct, i.ID))
	list, err = s.ListInvestments(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func settings(t *testing.T, s store.Store) {
	ctx := context.Background()
	const acct = core.AccountID("set-acct")

	_, err := s.GetSettings(ctx, acct)
	assert.ErrorIs(t, err, store.ErrNotFound)

	st := core.DefaultSettings(acct)
	st.PINEnabled = true
	st.PINHash = "hash"
	st.LastVerifiedAt = time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveSettings(ctx, st))

	got, err := s.GetSettings(ctx, acct)
	require.NoError(t, err)
	assert.True(t, got.PINEnabled)
	assert.Equal(t, "hash", got.PINHash)
	assert.Equal(t, core.Monthly, got.BudgetDuration)
	assert.True(t, got.LastVerifiedAt.Equal(st.LastVerifiedAt))

	got.BudgetDuration = core.Weekly
	got.OnboardingCompleted = true
	require.NoError(t, s.SaveSettings(ctx, got))
	got, err = s.GetSettings(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, core.Weekly, got.BudgetDuration)
	assert.True(t, got.OnboardingCompleted)
}
