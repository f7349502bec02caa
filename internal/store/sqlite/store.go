// Package sqlite stores budgeting data in an embedded SQLite database.
// Instants are stored as UTC unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"kobo/internal/core"
	"kobo/internal/store"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store ready", "db_path", dbPath)
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func ms(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMS(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("%w: %v", store.ErrRelationMissing, err)
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

const transactionColumns = `id, account_id, date, amount, type, category_id, category, payee, description, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx            core.Transaction
		date, created int64
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &date, &tx.Amount.Cents, &tx.Type,
		&tx.CategoryID, &tx.Category, &tx.Payee, &tx.Description, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Date = fromMS(date)
	tx.CreatedAt = fromMS(created)
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, account core.AccountID, p *core.Period) ([]core.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = ?`
	args := []any{string(account)}
	if p != nil {
		q += ` AND date >= ? AND date <= ?`
		args = append(args, ms(p.Start), ms(p.End))
	}
	q += ` ORDER BY date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
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
	return out, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, account core.AccountID, id string) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? AND id = ?`,
		string(account), id)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, mapErr(err))
	}
	return tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = uuid.NewString()
	tx.Date = tx.Date.UTC()
	tx.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.AccountID), ms(tx.Date), tx.Amount.Cents, string(tx.Type),
		tx.CategoryID, tx.Category, tx.Payee, tx.Description, ms(tx.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", mapErr(err))
	}
	return tx, nil
}

func (s *Store) ListCategories(ctx context.Context, account core.AccountID) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, name, type, icon, budget_limit FROM categories WHERE account_id = ? ORDER BY name`,
		string(account))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Type, &c.Icon, &c.DefaultLimit.Cents); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO categories (id, account_id, name, type, icon, budget_limit) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, string(c.AccountID), c.Name, string(c.Type), c.Icon, c.DefaultLimit.Cents)
		if err != nil {
			return core.Category{}, fmt.Errorf("insert category: %w", mapErr(err))
		}
		return c, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, icon = ?, budget_limit = ? WHERE id = ? AND account_id = ?`,
		c.Name, string(c.Type), c.Icon, c.DefaultLimit.Cents, c.ID, string(c.AccountID))
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", mapErr(err))
	}
	if err := affected(res); err != nil {
		return core.Category{}, fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, account core.AccountID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND account_id = ?`, id, string(account))
	if err != nil {
		return fmt.Errorf("delete category: %w", mapErr(err))
	}
	return affected(res)
}

const overrideColumns = `id, account_id, category_id, amount, period_start, period_end, created_at`

func scanOverride(row scanner) (core.BudgetOverride, error) {
	var (
		o                   core.BudgetOverride
		start, end, created int64
	)
	if err := row.Scan(&o.ID, &o.AccountID, &o.CategoryID, &o.Amount.Cents, &start, &end, &created); err != nil {
		return core.BudgetOverride{}, err
	}
	o.PeriodStart, o.PeriodEnd, o.CreatedAt = fromMS(start), fromMS(end), fromMS(created)
	return o, nil
}

func (s *Store) ListOverrides(ctx context.Context, account core.AccountID, p core.Period) ([]core.BudgetOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+overrideColumns+` FROM budget_overrides
		 WHERE account_id = ? AND period_start <= ? AND period_end >= ?
		 ORDER BY id`,
		string(account), ms(p.End), ms(p.Start))
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
	return out, rows.Err()
}

func (s *Store) FindOverride(ctx context.Context, account core.AccountID, categoryID string, p core.Period) (core.BudgetOverride, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM budget_overrides
		 WHERE account_id = ? AND category_id = ? AND period_start = ? AND period_end = ?`,
		string(account), categoryID, ms(p.Start), ms(p.End))
	o, err := scanOverride(row)
	if err != nil {
		return core.BudgetOverride{}, fmt.Errorf("find override: %w", mapErr(err))
	}
	return o, nil
}

func (s *Store) SaveOverride(ctx context.Context, o core.BudgetOverride) (core.BudgetOverride, error) {
	if o.ID != "" {
		res, err := s.db.ExecContext(ctx,
			`UPDATE budget_overrides SET amount = ? WHERE id = ? AND account_id = ?`,
			o.Amount.Cents, o.ID, string(o.AccountID))
		if err != nil {
			return core.BudgetOverride{}, fmt.Errorf("update override: %w", mapErr(err))
		}
		if err := affected(res); err != nil {
			return core.BudgetOverride{}, fmt.Errorf("update override %s: %w", o.ID, err)
		}
		return o, nil
	}

	o.ID = uuid.NewString()
	o.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_overrides (`+overrideColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.AccountID), o.CategoryID, o.Amount.Cents, ms(o.PeriodStart), ms(o.PeriodEnd), ms(o.CreatedAt))
	if err != nil {
		return core.BudgetOverride{}, fmt.Errorf("insert override: %w", mapErr(err))
	}
	return o, nil
}

func (s *Store) ListInvestments(ctx context.Context, account core.AccountID) ([]core.Investment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, category, target_amount, current_balance FROM investments WHERE account_id = ? ORDER BY category`,
		string(account))
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]core.Investment, 0)
	for rows.Next() {
		var i core.Investment
		if err := rows.Scan(&i.ID, &i.AccountID, &i.Category, &i.TargetAmount.Cents, &i.CurrentBalance.Cents); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *Store) UpsertInvestment(ctx context.Context, i core.Investment) (core.Investment, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO investments (id, account_id, category, target_amount, current_balance) VALUES (?, ?, ?, ?, ?)`,
			i.ID, string(i.AccountID), i.Category, i.TargetAmount.Cents, i.CurrentBalance.Cents)
		if err != nil {
			return core.Investment{}, fmt.Errorf("insert investment: %w", mapErr(err))
		}
		return i, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE investments SET category = ?, target_amount = ?, current_balance = ? WHERE id = ? AND account_id = ?`,
		i.Category, i.TargetAmount.Cents, i.CurrentBalance.Cents, i.ID, string(i.AccountID))
	if err != nil {
		return core.Investment{}, fmt.Errorf("update investment: %w", mapErr(err))
	}
	if err := affected(res); err != nil {
		return core.Investment{}, fmt.Errorf("update investment %s: %w", i.ID, err)
	}
	return i, nil
}

func (s *Store) DeleteInvestment(ctx context.Context, account core.AccountID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM investments WHERE id = ? AND account_id = ?`, id, string(account))
	if err != nil {
		return fmt.Errorf("delete investment: %w", mapErr(err))
	}
	return affected(res)
}

func (s *Store) GetSettings(ctx context.Context, account core.AccountID) (core.Settings, error) {
	var (
		st       core.Settings
		verified sql.NullInt64
		updated  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id, pin_enabled, pin_hash, last_verified_at, budget_duration, onboarding_completed, updated_at
		 FROM settings WHERE account_id = ?`, string(account)).
		Scan(&st.AccountID, &st.PINEnabled, &st.PINHash, &verified, &st.BudgetDuration, &st.OnboardingCompleted, &updated)
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", mapErr(err))
	}
	if verified.Valid {
		st.LastVerifiedAt = fromMS(verified.Int64)
	}
	st.UpdatedAt = fromMS(updated)
	return st, nil
}

func (s *Store) SaveSettings(ctx context.Context, st core.Settings) error {
	var verified sql.NullInt64
	if !st.LastVerifiedAt.IsZero() {
		verified = sql.NullInt64{Int64: ms(st.LastVerifiedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (account_id, pin_enabled, pin_hash, last_verified_at, budget_duration, onboarding_completed, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
		   pin_enabled = excluded.pin_enabled,
		   pin_hash = excluded.pin_hash,
		   last_verified_at = excluded.last_verified_at,
		   budget_duration = excluded.budget_duration,
		   onboarding_completed = excluded.onboarding_completed,
		   updated_at = excluded.updated_at`,
		string(st.AccountID), st.PINEnabled, st.PINHash, verified, string(st.BudgetDuration),
		st.OnboardingCompleted, ms(s.now()))
	if err != nil {
		return fmt.Errorf("save settings: %w", mapErr(err))
	}
	return nil
}
