package gateway_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobo/internal/core"
	"kobo/internal/gateway"
	"kobo/internal/period"
	"kobo/internal/store/memory"
)

func TestSequencerOnlyNewestCommits(t *testing.T) {
	var seq gateway.Sequencer
	ctx1, g1 := seq.Begin(context.Background())
	ctx2, g2 := seq.Begin(context.Background())

	assert.ErrorIs(t, ctx1.Err(), context.Canceled)
	assert.NoError(t, ctx2.Err())
	assert.Equal(t, g2, seq.Current())

	ran := false
	assert.False(t, seq.Commit(g1, func() { ran = true }))
	assert.False(t, ran)
	assert.True(t, seq.Commit(g2, func() { ran = true }))
	assert.True(t, ran)
	assert.ErrorIs(t, ctx2.Err(), context.Canceled, "a committed generation releases its context")
}

func TestNavigatorSteps(t *testing.T) {
	ctx := context.Background()
	nav := gateway.NewNavigator(newGateway(memory.New()))

	v, err := nav.View(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, core.Monthly, v.Duration)
	assert.True(t, v.Period.Equal(march))
	assert.Equal(t, "March 2025", v.Label)

	v, err = nav.Next(ctx, acct)
	require.NoError(t, err)
	assert.True(t, v.Period.Equal(april))

	v, err = nav.Previous(ctx, acct)
	require.NoError(t, err)
	v, err = nav.Previous(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, "February 2025", v.Label)

	v, err = nav.Current(ctx, acct)
	require.NoError(t, err)
	assert.True(t, v.Period.Equal(march))

	p, snap, ok := nav.Selected(acct)
	require.True(t, ok)
	assert.True(t, p.Equal(march))
	assert.NotNil(t, snap.Period)
}

func TestNavigatorResetsOnDurationChange(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	nav := gateway.NewNavigator(newGateway(s))

	_, err := nav.Next(ctx, acct)
	require.NoError(t, err)

	st := core.DefaultSettings(acct)
	st.BudgetDuration = core.Weekly
	require.NoError(t, s.SaveSettings(ctx, st))

	v, err := nav.View(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, core.Weekly, v.Duration)
	assert.Equal(t, time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC), v.Period.Start)
}

type gatedStore struct {
	*memory.Store
	calls   atomic.Int32
	entered chan struct{}
}

func (g *gatedStore) ListTransactions(ctx context.Context, account core.AccountID, p *core.Period) ([]core.Transaction, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return g.Store.ListTransactions(ctx, account, p)
}

func TestNavigatorDiscardsStaleFetch(t *testing.T) {
	ctx := context.Background()
	s := &gatedStore{Store: memory.New(), entered: make(chan struct{})}
	nav := gateway.NewNavigator(newGateway(s))

	stale := make(chan error, 1)
	go func() {
		_, err := nav.Next(ctx, acct)
		stale <- err
	}()
	<-s.entered

	v, err := nav.Current(ctx, acct)
	require.NoError(t, err)
	assert.True(t, v.Period.Equal(march))

	select {
	case err := <-stale:
		assert.ErrorIs(t, err, gateway.ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("stale fetch never returned")
	}

	p, _, ok := nav.Selected(acct)
	require.True(t, ok)
	assert.True(t, p.Equal(march))
}

func TestNavigatorConcurrentStepsCommitLastTarget(t *testing.T) {
	ctx := context.Background()
	nav := gateway.NewNavigator(newGateway(memory.New()))
	_, err := nav.View(ctx, acct)
	require.NoError(t, err)

	const clicks = 24
	var wg sync.WaitGroup
	errs := make(chan error, clicks)
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := nav.Next(ctx, acct)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, gateway.ErrSuperseded)
		}
	}

	want := march
	for i := 0; i < clicks; i++ {
		want, err = period.Next(core.Monthly, want)
		require.NoError(t, err)
	}

	// The last step taken owns the newest generation, so its period and its
	// data are what stays selected.
	p, snap, ok := nav.Selected(acct)
	require.True(t, ok)
	assert.True(t, p.Equal(want), "selected %v, want %v", p, want)
	require.NotNil(t, snap.Period)
	assert.True(t, snap.Period.Equal(want))
}

func TestNavigatorRejectsEmptyAccount(t *testing.T) {
	nav := gateway.NewNavigator(newGateway(memory.New()))
	_, err := nav.Next(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrEmptyAccount)
}
