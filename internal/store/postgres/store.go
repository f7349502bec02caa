// Package postgres stores budgeting data in a hosted PostgreSQL database
// through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kobo/internal/core"
	"kobo/internal/store"
)

const (
	codeUndefinedTable  = "42P01"
	codeUniqueViolation = "23505"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New migrates the database at url and opens a connection pool on it.
func New(ctx context.Context, url string) (*Store, error) {
	if err := RunMigrations(url); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("Postgres store ready")
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// mapErr translates pgx errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedTable:
			return fmt.Errorf("%w: %s", store.ErrRelationMissing, pgErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.Message)
		}
	}
	return err
}

func affected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const transactionColumns = `id, account_id, date, amount, type, category_id, category, payee, description, created_at`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx            core.Transaction
		account, typ string
	)
	err := row.Scan(&tx.ID, &account, &tx.Date, &tx.Amount.Cents, &typ,
		&tx.CategoryID, &tx.Category, &tx.Payee, &tx.Description, &tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.AccountID = core.AccountID(account)
	tx.Type = core.TransactionType(typ)
	tx.Date = tx.Date.UTC()
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, account core.AccountID, p *core.Period) ([]core.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1`
	args := []any{string(account)}
	if p != nil {
		q += ` AND date >= $2 AND date <= $3`
		args = append(args, p.Start.UTC(), p.End.UTC())
	}
	q += ` ORDER BY date DESC, created_at DESC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, account core.AccountID, id string) (core.Transaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 AND id = $2`,
		string(account), id))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, mapErr(err))
	}
	return tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = uuid.NewString()
	tx.Date = tx.Date.UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO transactions (id, account_id, date, amount, type, category_id, category, payee, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		tx.ID, string(tx.AccountID), tx.Date, tx.Amount.Cents, string(tx.Type),
		tx.CategoryID, tx.Category, tx.Payee, tx.Description).Scan(&tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", mapErr(err))
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

func (s *Store) ListCategories(ctx context.Context, account core.AccountID) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, icon, budget_limit FROM categories WHERE account_id = $1 ORDER BY name`,
		string(account))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var (
			c   core.Category
			typ string
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Icon, &c.DefaultLimit.Cents); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.AccountID = account
		c.Type = core.CategoryType(typ)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) UpsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
		_, err := s.pool.Exec(ctx,
			`INSERT INTO categories (id, account_id, name, type, icon, budget_limit) VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, string(c.AccountID), c.Name, string(c.Type), c.Icon, c.DefaultLimit.Cents)
		if err != nil {
			return core.Category{}, fmt.Errorf("insert category: %w", mapErr(err))
		}
		return c, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE categories SET name = $1, type = $2, icon = $3, budget_limit = $4 WHERE id = $5 AND account_id = $6`,
		c.Name, string(c.Type), c.Icon, c.DefaultLimit.Cents, c.ID, string(c.AccountID))
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", mapErr(err))
	}
	if err := affected(tag); err != nil {
		return core.Category{}, fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, account core.AccountID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND account_id = $2`, id, string(account))
	if err != nil {
		return fmt.Errorf("delete category: %w", mapErr(err))
	}
	return affected(tag)
}

const overrideColumns = `id, account_id, category_id, amount, period_start, period_end, created_at`

func scanOverride(row pgx.Row) (core.BudgetOverride, error) {
	var (
		o       core.BudgetOverride
		account string
	)
	if err := row.Scan(&o.ID, &account, &o.CategoryID, &o.Amount.Cents, &o.PeriodStart, &o.PeriodEnd, &o.CreatedAt); err != nil {
		return core.BudgetOverride{}, err
	}
	o.AccountID = core.AccountID(account)
	o.PeriodStart, o.PeriodEnd, o.CreatedAt = o.PeriodStart.UTC(), o.PeriodEnd.UTC(), o.CreatedAt.UTC()
	return o, nil
}

func (s *Store) ListOverrides(ctx context.Context, account core.AccountID, p core.Period) ([]core.BudgetOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+overrideColumns+` FROM budget_overrides
		 WHERE account_id = $1 AND period_start <= $2 AND period_end >= $3
		 ORDER BY id`,
		string(account), p.End.UTC(), p.Start.UTC())
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]core.BudgetOverride, 0)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list overrides: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) FindOverride(ctx context.Context, account core.AccountID, categoryID string, p core.Period) (core.BudgetOverride, error) {
	o, err := scanOverride(s.pool.QueryRow(ctx,
		`SELECT `+overrideColumns+` FROM budget_overrides
		 WHERE account_id = $1 AND category_id = $2 AND period_start = $3 AND period_end = $4`,
		string(account), categoryID, p.Start.UTC(), p.End.UTC()))
	if err != nil {
		return core.BudgetOverride{}, fmt.Errorf("find override: %w", mapErr(err))
	}
	return o, nil
}

func (s *Store) SaveOverride(ctx context.Context, o core.BudgetOverride) (core.BudgetOverride, error) {
	if o.ID != "" {
		tag, err := s.pool.Exec(ctx,
			`UPDATE budget_overrides SET amount = $1 WHERE id = $2 AND account_id = $3`,
			o.Amount.Cents, o.ID, string(o.AccountID))
		if err != nil {
			return core.BudgetOverride{}, fmt.Errorf("update override: %w", mapErr(err))
		}
		if err := affected(tag); err != nil {
			return core.BudgetOverride{}, fmt.Errorf("update override %s: %w", o.ID, err)
		}
		return o, nil
	}

	o.ID = uuid.NewString()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO budget_overrides (id, account_id, category_id, amount, period_start, period_end)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		o.ID, string(o.AccountID), o.CategoryID, o.Amount.Cents, o.PeriodStart.UTC(), o.PeriodEnd.UTC()).
		Scan(&o.CreatedAt)
	if err != nil {
		return core.BudgetOverride{}, fmt.Errorf("insert override: %w", mapErr(err))
	}
	return o, nil
}

func (s *Store) ListInvestments(ctx context.Context, account core.AccountID) ([]core.Investment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, category, target_amount, current_balance FROM investments WHERE account_id = $1 ORDER BY category`,
		string(account))
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]core.Investment, 0)
	for rows.Next() {
		i := core.Investment{AccountID: account}
		if err := rows.Scan(&i.ID, &i.Category, &i.TargetAmount.Cents, &i.CurrentBalance.Cents); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list investments: %w", mapErr(err))
	}
	return out, nil
}

func (s *Store) UpsertInvestment(ctx context.Context, i core.Investment) (core.Investment, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
		_, err := s.pool.Exec(ctx,
			`INSERT INTO investments (id, account_id, category, target_amount, current_balance) VALUES ($1, $2, $3, $4, $5)`,
			i.ID, string(i.AccountID), i.Category, i.TargetAmount.Cents, i.CurrentBalance.Cents)
		if err != nil {
			return core.Investment{}, fmt.Errorf("insert investment: %w", mapErr(err))
		}
		return i, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE investments SET category = $1, target_amount = $2, current_balance = $3 WHERE id = $4 AND account_id = $5`,
		i.Category, i.TargetAmount.Cents, i.CurrentBalance.Cents, i.ID, string(i.AccountID))
	if err != nil {
		return core.Investment{}, fmt.Errorf("update investment: %w", mapErr(err))
	}
	if err := affected(tag); err != nil {
		return core.Investment{}, fmt.Errorf("update investment %s: %w", i.ID, err)
	}
	return i, nil
}

func (s *Store) DeleteInvestment(ctx context.Context, account core.AccountID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM investments WHERE id = $1 AND account_id = $2`, id, string(account))
	if err != nil {
		return fmt.Errorf("delete investment: %w", mapErr(err))
	}
	return affected(tag)
}

func (s *Store) GetSettings(ctx context.Context, account core.AccountID) (core.Settings, error) {
	var (
		st       = core.Settings{AccountID: account}
		verified *time.Time
		duration string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT pin_enabled, pin_hash, last_verified_at, budget_duration, onboarding_completed, updated_at
		 FROM settings WHERE account_id = $1`, string(account)).
		Scan(&st.PINEnabled, &st.PINHash, &verified, &duration, &st.OnboardingCompleted, &st.UpdatedAt)
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", mapErr(err))
	}
	if verified != nil {
		st.LastVerifiedAt = verified.UTC()
	}
	st.BudgetDuration = core.BudgetDuration(duration)
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

func (s *Store) SaveSettings(ctx context.Context, st core.Settings) error {
	var verified *time.Time
	if !st.LastVerifiedAt.IsZero() {
		v := st.LastVerifiedAt.UTC()
		verified = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (account_id, pin_enabled, pin_hash, last_verified_at, budget_duration, onboarding_completed, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (account_id) DO UPDATE SET
		   pin_enabled = EXCLUDED.pin_enabled,
		   pin_hash = EXCLUDED.pin_hash,
		   last_verified_at = EXCLUDED.last_verified_at,
		   budget_duration = EXCLUDED.budget_duration,
		   onboarding_completed = EXCLUDED.onboarding_completed,
		   updated_at = now()`,
		string(st.AccountID), st.PINEnabled, st.PINHash, verified, string(st.BudgetDuration), st.OnboardingCompleted)
	if err != nil {
		return fmt.Errorf("save settings: %w", mapErr(err))
	}
	return nil
}
