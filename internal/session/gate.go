package session

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kobo/internal/core"
)

// DefaultTTL is how long a successful verification keeps an account unlocked.
const DefaultTTL = 2 * time.Hour

const (
	Locked   State = "locked"
	Unlocked State = "unlocked"
)

type State string

// Gate decides whether an account must re-enter its PIN.
type Gate struct {
	settings *SettingsService
	ttl      time.Duration
}

func NewGate(settings *SettingsService, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{settings: settings, ttl: ttl}
}

func (g *Gate) TTL() time.Duration { return g.ttl }

// Status is Unlocked when the PIN is disabled, or when the last verification
// is younger than the TTL.
func (g *Gate) Status(ctx context.Context, account core.AccountID) (State, error) {
	st, err := g.settings.Load(ctx, account)
	if err != nil {
		return Locked, err
	}
	return g.state(st), nil
}

func (g *Gate) state(st core.Settings) State {
	if !st.PINEnabled {
		return Unlocked
	}
	if st.LastVerifiedAt.IsZero() {
		return Locked
	}
	if g.settings.now().Sub(st.LastVerifiedAt) < g.ttl {
		return Unlocked
	}
	return Locked
}

// NeedsVerification reports whether the account is currently locked.
func (g *Gate) NeedsVerification(ctx context.Context, account core.AccountID) (bool, error) {
	s, err := g.Status(ctx, account)
	if err != nil {
		return true, err
	}
	return s == Locked, nil
}

// Verify checks pin against the stored hash. A mismatch returns false and no
// error. An account without a PIN fails with ErrPINNotSet.
func (g *Gate) Verify(ctx context.Context, account core.AccountID, pin string) (bool, error) {
	st, err := g.settings.Load(ctx, account)
	if err != nil {
		return false, err
	}
	if !st.HasPIN() {
		return false, ErrPINNotSet
	}
	if bcrypt.CompareHashAndPassword([]byte(st.PINHash), []byte(pin)) != nil {
		return false, nil
	}
	if _, err := g.settings.markVerified(ctx, st); err != nil {
		return false, err
	}
	return true, nil
}
