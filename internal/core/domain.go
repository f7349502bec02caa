package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense TransactionType = "Expense"
	Income  TransactionType = "Income"
)

const (
	ExpenseCategory    CategoryType = "Expense"
	IncomeCategory     CategoryType = "Income"
	InvestmentCategory CategoryType = "Investment"
)

// Uncategorized is the bucket used for transactions without a category name.
const Uncategorized = "Uncategorized"

type (
	AccountID string

	TransactionType string

	CategoryType string

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          string          `json:"id"`
		AccountID   AccountID       `json:"account_id"`
		Date        time.Time       `json:"date"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		CategoryID  string          `json:"category_id,omitempty"` // durable link, empty on legacy rows
		Category    string          `json:"category"`              // name denormalized at write time
		Payee       string          `json:"payee"`
		Description string          `json:"description,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	Category struct {
		ID           string       `json:"id"`
		AccountID    AccountID    `json:"account_id"`
		Name         string       `json:"name"`
		Type         CategoryType `json:"type"`
		Icon         string       `json:"icon,omitempty"`
		DefaultLimit Money        `json:"budget_limit"`
	}

	BudgetOverride struct {
		ID          string    `json:"id"`
		AccountID   AccountID `json:"account_id"`
		CategoryID  string    `json:"category_id"`
		Amount      Money     `json:"amount"`
		PeriodStart time.Time `json:"period_start"`
		PeriodEnd   time.Time `json:"period_end"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Investment struct {
		ID             string    `json:"id"`
		AccountID      AccountID `json:"account_id"`
		Category       string    `json:"category"`
		TargetAmount   Money     `json:"target_amount"`
		CurrentBalance Money     `json:"current_balance"`
	}
)

var (
	ErrEmptyAccount  = errors.New("empty account id")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrEmptyPayee    = errors.New("empty payee")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidType   = errors.New("invalid type")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrEmptyID       = errors.New("empty id")
)

func (a AccountID) Validate() error {
	if strings.TrimSpace(string(a)) == "" {
		return ErrEmptyAccount
	}
	return nil
}

func (t TransactionType) IsValid() bool {
	return t == Expense || t == Income
}

// ParseTransactionType accepts the canonical names case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense":
		return Expense, nil
	case "income":
		return Income, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t CategoryType) IsValid() bool {
	switch t {
	case ExpenseCategory, IncomeCategory, InvestmentCategory:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateLimit accepts zero, which is a valid "no budget" limit.
func (m Money) ValidateLimit() error {
	if m.Cents < 0 {
		return ErrInvalidLimit
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Payee) == "" {
		return ErrEmptyPayee
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !c.Type.IsValid() {
		return ErrInvalidType
	}
	return c.DefaultLimit.ValidateLimit()
}

func (o BudgetOverride) Validate() error {
	if strings.TrimSpace(o.CategoryID) == "" {
		return ErrEmptyID
	}
	if err := o.Amount.ValidateLimit(); err != nil {
		return err
	}
	return Period{Start: o.PeriodStart, End: o.PeriodEnd}.Validate()
}

func (i Investment) Validate() error {
	if strings.TrimSpace(i.Category) == "" {
		return ErrEmptyCategory
	}
	if err := i.TargetAmount.ValidateLimit(); err != nil {
		return err
	}
	return i.CurrentBalance.ValidateLimit()
}

// Period returns the bounds the override was stored for.
func (o BudgetOverride) Period() Period {
	return Period{Start: o.PeriodStart, End: o.PeriodEnd}
}
