package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Weekly  BudgetDuration = "weekly"
	Monthly BudgetDuration = "monthly"
	Yearly  BudgetDuration = "yearly"
)

// DefaultBudgetDuration applies to accounts that never chose one.
const DefaultBudgetDuration = Monthly

var (
	ErrInvalidDuration = errors.New("invalid budget duration")
	ErrInvalidPIN      = errors.New("invalid pin")
)

type (
	BudgetDuration string

	// Settings is the per-account settings aggregate. It is loaded and saved
	// explicitly for one account; nothing caches it process-wide.
	Settings struct {
		AccountID           AccountID      `json:"account_id"`
		PINEnabled          bool           `json:"pin_enabled"`
		PINHash             string         `json:"-"`
		LastVerifiedAt      time.Time      `json:"last_verified_at"` // zero when never verified
		BudgetDuration      BudgetDuration `json:"budget_duration"`
		OnboardingCompleted bool           `json:"onboarding_completed"`
		UpdatedAt           time.Time      `json:"updated_at"`
	}
)

func (d BudgetDuration) IsValid() bool {
	switch d {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (d BudgetDuration) String() string {
	return string(d)
}

func ParseBudgetDuration(s string) (BudgetDuration, error) {
	d := BudgetDuration(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return d, nil
}

// DefaultSettings returns the settings a new account starts with.
func DefaultSettings(account AccountID) Settings {
	return Settings{
		AccountID:      account,
		BudgetDuration: DefaultBudgetDuration,
	}
}

// HasPIN reports whether a PIN hash is configured.
func (s Settings) HasPIN() bool {
	return s.PINHash != ""
}
