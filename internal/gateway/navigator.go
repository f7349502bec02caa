package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kobo/internal/core"
	"kobo/internal/period"
	"kobo/internal/store"
)

// ErrSuperseded is returned for a fetch whose result arrived after a newer
// navigation started. The result is discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Sequencer orders overlapping fetches. Each Begin starts a new generation
// and cancels the context of the previous one; only the newest generation
// may commit.
type Sequencer struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func (s *Sequencer) Begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	return ctx, s.gen
}

// Commit runs fn when gen is still the newest generation and reports
// whether it did. A committed generation is finished, so its context is
// released.
func (s *Sequencer) Commit(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	if fn != nil {
		fn()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

func (s *Sequencer) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// View is the budgeting period an account is looking at, with its data.
type View struct {
	Duration core.BudgetDuration `json:"duration"`
	Period   core.Period         `json:"period"`
	Label    string              `json:"label"`
	Snapshot Snapshot            `json:"snapshot"`
}

type navState struct {
	duration core.BudgetDuration
	period   core.Period
	seq      Sequencer
	// committed is the last loaded period together with its data.
	committed *loaded
}

type loaded struct {
	period   core.Period
	snapshot Snapshot
}

// Navigator tracks the selected budgeting period per account and loads its
// snapshot. Rapid next/previous clicks never let an older response replace
// a newer one.
type Navigator struct {
	gw *Gateway

	mu     sync.Mutex
	states map[core.AccountID]*navState
}

func NewNavigator(gw *Gateway) *Navigator {
	return &Navigator{gw: gw, states: make(map[core.AccountID]*navState)}
}

// state returns the account's navigation state, resetting it to the current
// period whenever the stored budgeting duration differs from the tracked one.
func (n *Navigator) state(ctx context.Context, account core.AccountID) (*navState, error) {
	duration := core.DefaultBudgetDuration
	st, err := n.gw.store.GetSettings(ctx, account)
	switch {
	case err == nil && st.BudgetDuration.IsValid():
		duration = st.BudgetDuration
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load settings: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.states[account]
	if ok && s.duration == duration {
		return s, nil
	}
	p, err := period.Current(duration, n.gw.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		s = &navState{}
		n.states[account] = s
	}
	s.duration = duration
	s.period = p
	s.committed = nil
	return s, nil
}

// Current jumps back to the period containing now.
func (n *Navigator) Current(ctx context.Context, account core.AccountID) (View, error) {
	return n.move(ctx, account, func(s *navState) (core.Period, error) {
		return period.Current(s.duration, n.gw.now())
	})
}

func (n *Navigator) Next(ctx context.Context, account core.AccountID) (View, error) {
	return n.move(ctx, account, func(s *navState) (core.Period, error) {
		return period.Next(s.duration, s.period)
	})
}

func (n *Navigator) Previous(ctx context.Context, account core.AccountID) (View, error) {
	return n.move(ctx, account, func(s *navState) (core.Period, error) {
		return period.Previous(s.duration, s.period)
	})
}

// View reloads the currently selected period.
func (n *Navigator) View(ctx context.Context, account core.AccountID) (View, error) {
	return n.move(ctx, account, func(s *navState) (core.Period, error) {
		return s.period, nil
	})
}

// move updates the selected period right away, then fetches it. The fetch
// result is only kept when no later navigation started meanwhile.
//
// Lock order is n.mu before the sequencer's lock. Stepping and starting the
// generation happen under n.mu together, so generations follow step order.
func (n *Navigator) move(ctx context.Context, account core.AccountID, step func(*navState) (core.Period, error)) (View, error) {
	if err := account.Validate(); err != nil {
		return View{}, err
	}
	s, err := n.state(ctx, account)
	if err != nil {
		return View{}, err
	}

	n.mu.Lock()
	target, err := step(s)
	if err != nil {
		n.mu.Unlock()
		return View{}, err
	}
	s.period = target
	duration := s.duration
	fetchCtx, gen := s.seq.Begin(ctx)
	n.mu.Unlock()

	snap, fetchErr := n.gw.FetchAll(fetchCtx, account, &target)

	view := View{Duration: duration, Period: target, Label: period.Label(duration, target), Snapshot: snap}
	n.mu.Lock()
	committed := s.seq.Commit(gen, func() {
		if fetchErr == nil {
			s.committed = &loaded{period: target, snapshot: snap}
		}
	})
	n.mu.Unlock()
	if !committed {
		return View{}, ErrSuperseded
	}
	if fetchErr != nil {
		return view, fetchErr
	}
	return view, nil
}

// Selected returns the last committed period and its snapshot without
// fetching. ok is false when nothing was loaded yet.
func (n *Navigator) Selected(account core.AccountID) (p core.Period, snap Snapshot, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, found := n.states[account]
	if !found || s.committed == nil {
		return core.Period{}, Snapshot{}, false
	}
	return s.committed.period, s.committed.snapshot, true
}
