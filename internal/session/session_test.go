package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobo/internal/core"
	"kobo/internal/store/memory"
)

const acct core.AccountID = "acct-1"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newService() (*SettingsService, *clock) {
	c := &clock{t: time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)}
	return NewSettingsService(memory.New(), c.now), c
}

func TestLoadCreatesDefaults(t *testing.T) {
	svc, _ := newService()
	st, err := svc.Load(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, core.Monthly, st.BudgetDuration)
	assert.False(t, st.PINEnabled)
	assert.False(t, st.OnboardingCompleted)

	_, err = svc.Load(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrEmptyAccount)
}

func TestSetBudgetDuration(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	st, err := svc.SetBudgetDuration(ctx, acct, core.Weekly)
	require.NoError(t, err)
	assert.Equal(t, core.Weekly, st.BudgetDuration)

	_, err = svc.SetBudgetDuration(ctx, acct, "daily")
	assert.ErrorIs(t, err, core.ErrInvalidDuration)

	st, err = svc.Load(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, core.Weekly, st.BudgetDuration)
}

func TestCompleteOnboarding(t *testing.T) {
	svc, _ := newService()
	st, err := svc.CompleteOnboarding(context.Background(), acct)
	require.NoError(t, err)
	assert.True(t, st.OnboardingCompleted)
}

func TestSetPIN(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	for _, bad := range []string{"", "123", "12345", "12a4"} {
		_, err := svc.SetPIN(ctx, acct, bad, "")
		assert.ErrorIs(t, err, core.ErrInvalidPIN, bad)
	}

	st, err := svc.SetPIN(ctx, acct, "1234", "")
	require.NoError(t, err)
	assert.True(t, st.PINEnabled)
	assert.NotEqual(t, "1234", st.PINHash)

	_, err = svc.SetPIN(ctx, acct, "5678", "0000")
	assert.ErrorIs(t, err, ErrWrongPIN)

	_, err = svc.SetPIN(ctx, acct, "5678", "1234")
	require.NoError(t, err)
}

func TestSetPINEnabledRequiresPIN(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.SetPINEnabled(ctx, acct, true)
	assert.ErrorIs(t, err, ErrPINNotSet)

	_, err = svc.SetPIN(ctx, acct, "1234", "")
	require.NoError(t, err)
	st, err := svc.SetPINEnabled(ctx, acct, false)
	require.NoError(t, err)
	assert.False(t, st.PINEnabled)
	assert.True(t, st.HasPIN())
}

func TestGateStatus(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService()
	gate := NewGate(svc, DefaultTTL)

	s, err := gate.Status(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, Unlocked, s, "pin disabled")

	_, err = svc.SetPIN(ctx, acct, "1234", "")
	require.NoError(t, err)
	s, err = gate.Status(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, Unlocked, s, "just verified by setting the pin")

	clk.advance(DefaultTTL - time.Second)
	need, err := gate.NeedsVerification(ctx, acct)
	require.NoError(t, err)
	assert.False(t, need)

	clk.advance(time.Second)
	need, err = gate.NeedsVerification(ctx, acct)
	require.NoError(t, err)
	assert.True(t, need)
}

func TestGateVerify(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService()
	gate := NewGate(svc, DefaultTTL)

	_, err := gate.Verify(ctx, acct, "1234")
	assert.ErrorIs(t, err, ErrPINNotSet)

	_, err = svc.SetPIN(ctx, acct, "1234", "")
	require.NoError(t, err)
	clk.advance(3 * time.Hour)

	ok, err := gate.Verify(ctx, acct, "9999")
	require.NoError(t, err)
	assert.False(t, ok)
	s, _ := gate.Status(ctx, acct)
	assert.Equal(t, Locked, s)

	ok, err = gate.Verify(ctx, acct, "1234")
	require.NoError(t, err)
	assert.True(t, ok)
	s, _ = gate.Status(ctx, acct)
	assert.Equal(t, Unlocked, s)

	st, err := svc.Load(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, clk.now(), st.LastVerifiedAt)
}

func TestMonitorReportsExpiry(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService()
	gate := NewGate(svc, time.Hour)

	_, err := svc.SetPIN(ctx, acct, "1234", "")
	require.NoError(t, err)

	var mu sync.Mutex
	var fired []core.AccountID
	m := NewMonitor(gate, time.Minute, func(a core.AccountID) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, a)
	})
	m.Track(acct, Unlocked)

	assert.Empty(t, m.Check(ctx))

	clk.advance(time.Hour)
	assert.Equal(t, []core.AccountID{acct}, m.Check(ctx))
	s, ok := m.State(acct)
	require.True(t, ok)
	assert.Equal(t, Locked, s)

	// Already locked: no second transition.
	assert.Empty(t, m.Check(ctx))
	mu.Lock()
	assert.Len(t, fired, 1)
	mu.Unlock()
}

func TestMonitorStartStop(t *testing.T) {
	svc, _ := newService()
	m := NewMonitor(NewGate(svc, 0), 10*time.Millisecond, nil)
	m.Start()
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop()
}
