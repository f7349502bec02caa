package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kobo/internal/core"
)

// DefaultCheckInterval is how often the monitor re-evaluates accounts.
const DefaultCheckInterval = time.Minute

// Monitor periodically re-evaluates tracked accounts and reports the ones
// whose verification expired since the last check.
type Monitor struct {
	gate     *Gate
	interval time.Duration
	onLock   func(core.AccountID)
	logger   *slog.Logger

	mu      sync.Mutex
	tracked map[core.AccountID]State

	stop chan struct{}
	done chan struct{}
}

func NewMonitor(gate *Gate, interval time.Duration, onLock func(core.AccountID)) *Monitor {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Monitor{
		gate:     gate,
		interval: interval,
		onLock:   onLock,
		logger:   slog.Default().With("component", "session_monitor"),
		tracked:  make(map[core.AccountID]State),
	}
}

// Track adds an account with its last known state.
func (m *Monitor) Track(account core.AccountID, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[account] = s
}

func (m *Monitor) State(account core.AccountID) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.tracked[account]
	return s, ok
}

// Start runs the check loop until Stop is called.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Check(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Check evaluates every tracked account once and returns the accounts that
// went from Unlocked to Locked.
func (m *Monitor) Check(ctx context.Context) []core.AccountID {
	m.mu.Lock()
	accounts := make([]core.AccountID, 0, len(m.tracked))
	for a := range m.tracked {
		accounts = append(accounts, a)
	}
	m.mu.Unlock()

	var locked []core.AccountID
	for _, a := range accounts {
		s, err := m.gate.Status(ctx, a)
		if err != nil {
			m.logger.WarnContext(ctx, "Session check failed", "account_id", a, "error", err)
			continue
		}

		m.mu.Lock()
		prev, ok := m.tracked[a]
		if ok {
			m.tracked[a] = s
		}
		m.mu.Unlock()

		if ok && prev == Unlocked && s == Locked {
			locked = append(locked, a)
			m.logger.InfoContext(ctx, "Session locked", "account_id", a)
			if m.onLock != nil {
				m.onLock(a)
			}
		}
	}
	return locked
}
