// Package session holds the per-account settings aggregate and the PIN
// gate that protects an account after a period of inactivity.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kobo/internal/core"
	"kobo/internal/store"
)

// PINCost is the bcrypt cost used for PIN hashes.
const PINCost = 10

var (
	ErrPINNotSet = errors.New("pin not set")
	ErrWrongPIN  = errors.New("current pin does not match")
	ErrPINLength = fmt.Errorf("%w: must be exactly 4 digits", core.ErrInvalidPIN)
)

// SettingsService loads and saves one account's settings at a time.
type SettingsService struct {
	store store.SettingsStore
	now   func() time.Time
}

func NewSettingsService(s store.SettingsStore, now func() time.Time) *SettingsService {
	if now == nil {
		now = time.Now
	}
	return &SettingsService{store: s, now: now}
}

// Load returns the account's settings, creating the defaults on first use.
func (s *SettingsService) Load(ctx context.Context, account core.AccountID) (core.Settings, error) {
	if err := account.Validate(); err != nil {
		return core.Settings{}, err
	}
	st, err := s.store.GetSettings(ctx, account)
	if err == nil {
		if !st.BudgetDuration.IsValid() {
			st.BudgetDuration = core.DefaultBudgetDuration
		}
		return st, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return core.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	st = core.DefaultSettings(account)
	if err := s.save(ctx, &st); err != nil {
		return core.Settings{}, err
	}
	return st, nil
}

func (s *SettingsService) save(ctx context.Context, st *core.Settings) error {
	st.UpdatedAt = s.now().UTC()
	if err := s.store.SaveSettings(ctx, *st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *SettingsService) SetBudgetDuration(ctx context.Context, account core.AccountID, d core.BudgetDuration) (core.Settings, error) {
	if !d.IsValid() {
		return core.Settings{}, fmt.Errorf("%w: %q", core.ErrInvalidDuration, d)
	}
	st, err := s.Load(ctx, account)
	if err != nil {
		return core.Settings{}, err
	}
	st.BudgetDuration = d
	if err := s.save(ctx, &st); err != nil {
		return core.Settings{}, err
	}
	return st, nil
}

func (s *SettingsService) CompleteOnboarding(ctx context.Context, account core.AccountID) (core.Settings, error) {
	st, err := s.Load(ctx, account)
	if err != nil {
		return core.Settings{}, err
	}
	if st.OnboardingCompleted {
		return st, nil
	}
	st.OnboardingCompleted = true
	if err := s.save(ctx, &st); err != nil {
		return core.Settings{}, err
	}
	return st, nil
}

// SetPIN hashes and stores a new 4-digit PIN and enables the gate. When a
// PIN already exists, currentPIN must match it. Setting a PIN counts as a
// verification.
func (s *SettingsService) SetPIN(ctx context.Context, account core.AccountID, pin, currentPIN string) (core.Settings, error) {
	if !validPIN(pin) {
		return core.Settings{}, ErrPINLength
	}
	st, err := s.Load(ctx, account)
	if err != nil {
		return core.Settings{}, err
	}
	if st.HasPIN() {
		if bcrypt.CompareHashAndPassword([]byte(st.PINHash), []byte(currentPIN)) != nil {
			return core.Settings{}, ErrWrongPIN
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), PINCost)
	if err != nil {
		return core.Settings{}, fmt.Errorf("hash pin: %w", err)
	}
	st.PINHash = string(hash)
	st.PINEnabled = true
	st.LastVerifiedAt = s.now().UTC()
	if err := s.save(ctx, &st); err != nil {
		return core.Settings{}, err
	}
	return st, nil
}

// SetPINEnabled toggles the gate. Enabling requires a stored PIN.
func (s *SettingsService) SetPINEnabled(ctx context.Context, account core.AccountID, enabled bool) (core.Settings, error) {
	st, err := s.Load(ctx, account)
	if err != nil {
		return core.Settings{}, err
	}
	if enabled && !st.HasPIN() {
		return core.Settings{}, ErrPINNotSet
	}
	st.PINEnabled = enabled
	if err := s.save(ctx, &st); err != nil {
		return core.Settings{}, err
	}
	return st, nil
}

func (s *SettingsService) markVerified(ctx context.Context, st core.Settings) (core.Settings, error) {
	st.LastVerifiedAt = s.now().UTC()
	if err := s.save(ctx, &st); err != nil {
		return core.Settings{}, err
	}
	return st, nil
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
