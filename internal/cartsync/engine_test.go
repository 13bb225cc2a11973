package cartsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/catering-cart/internal/domain/cart"
	"github.com/example/catering-cart/internal/testutil"
)

type upsertCall struct {
	Customer string
	Items    []cart.LineItem
}

type fakeRemote struct {
	mu      sync.Mutex
	calls   []upsertCall
	err     error
	orderID int64
	// during is invoked inside UpsertDraft, simulating work that happens
	// while the request is in flight
	during func()
}

func (r *fakeRemote) UpsertDraft(_ context.Context, customer string, items []cart.LineItem) (int64, error) {
	r.mu.Lock()
	r.calls = append(r.calls, upsertCall{Customer: customer, Items: items})
	during := r.during
	r.during = nil
	err := r.err
	id := r.orderID
	r.mu.Unlock()

	if during != nil {
		during()
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *fakeRemote) Calls() []upsertCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]upsertCall(nil), r.calls...)
}

type fakeSource struct {
	mu      sync.Mutex
	cart    *cart.Cart
	epoch   uint64
	applied []int64
}

func (s *fakeSource) SyncRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Request{Customer: "kitchen-1", Items: s.cart.Items(), Epoch: s.epoch}
}

func (s *fakeSource) ApplySync(_ context.Context, _ Request, orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, orderID)
}

func (s *fakeSource) add(id int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.cart.Add(cart.LineItem{ProductID: id, ProductName: "item", UnitPrice: 2}, qty)
}

func newTestEngine(t *testing.T) (*Engine, *fakeRemote, *fakeSource, *testutil.FakeClock) {
	clock := testutil.NewFakeClock()
	remote := &fakeRemote{orderID: 77}
	source := &fakeSource{cart: cart.New()}
	engine := NewEngine(remote, source,
		WithClock(clock),
		WithQuietPeriod(time.Second),
		WithLogger(zaptest.NewLogger(t)))
	return engine, remote, source, clock
}

// ============================================
// Debounce Tests
// ============================================

func TestEngine_BurstProducesSingleUpsert(t *testing.T) {
	engine, remote, source, clock := newTestEngine(t)

	for i := 0; i < 5; i++ {
		source.add(1, 1)
		engine.Schedule()
		clock.Advance(200 * time.Millisecond)
	}
	assert.Empty(t, remote.Calls(), "no upsert inside the quiet period")
	assert.Equal(t, StateDirty, engine.State())

	clock.Advance(time.Second)

	calls := remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "kitchen-1", calls[0].Customer)
	require.Len(t, calls[0].Items, 1)
	assert.Equal(t, 5, calls[0].Items[0].Quantity, "upsert carries the final state")
	assert.Equal(t, StateSynced, engine.State())
	assert.Equal(t, []int64{77}, source.applied)
	assert.False(t, engine.LastSyncedAt().IsZero())
	assert.False(t, engine.LastSyncedAt().After(clock.Now()))
}

func TestEngine_EmptyCartMakesNoCall(t *testing.T) {
	engine, remote, _, clock := newTestEngine(t)

	engine.Schedule()
	clock.Advance(2 * time.Second)

	assert.Empty(t, remote.Calls())
	assert.Equal(t, StateIdle, engine.State())
}

func TestEngine_FailureMarksFailedWithoutRetry(t *testing.T) {
	engine, remote, source, clock := newTestEngine(t)
	remote.err = errors.New("backend unavailable")

	source.add(1, 1)
	engine.Schedule()
	clock.Advance(time.Second)

	assert.Equal(t, StateFailed, engine.State())
	assert.EqualError(t, engine.LastError(), "backend unavailable")

	clock.Advance(time.Minute)
	assert.Len(t, remote.Calls(), 1, "failed sync is not retried automatically")
	assert.Empty(t, source.applied)

	remote.mu.Lock()
	remote.err = nil
	remote.mu.Unlock()
	source.add(2, 1)
	engine.Schedule()
	clock.Advance(time.Second)

	assert.Len(t, remote.Calls(), 2, "the next mutation retries")
	assert.Equal(t, StateSynced, engine.State())
	assert.NoError(t, engine.LastError())
}

func TestEngine_MutationDuringFlightRunsAgain(t *testing.T) {
	engine, remote, source, clock := newTestEngine(t)
	source.add(1, 1)

	// While the first upsert is in flight another mutation lands and its
	// quiet period elapses before the response returns.
	remote.during = func() {
		source.add(2, 1)
		engine.Schedule()
		assert.Equal(t, StateDirty, engine.State())
		clock.Advance(time.Second)
	}

	engine.Schedule()
	clock.Advance(time.Second)

	calls := remote.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[0].Items, 1)
	assert.Len(t, calls[1].Items, 2, "second upsert carries the newer cart")
	assert.Equal(t, []int64{77, 77}, source.applied)
	assert.Equal(t, StateSynced, engine.State())
}

func TestEngine_MutationDuringFlightStaysDirty(t *testing.T) {
	engine, remote, source, clock := newTestEngine(t)
	source.add(1, 1)

	remote.during = func() {
		source.add(2, 1)
		engine.Schedule()
	}

	engine.Schedule()
	clock.Advance(time.Second)

	require.Len(t, remote.Calls(), 1)
	assert.Equal(t, StateDirty, engine.State(), "a newer sync is still pending")

	clock.Advance(time.Second)
	assert.Len(t, remote.Calls(), 2)
	assert.Equal(t, StateSynced, engine.State())
}

// ============================================
// Cancel / Flush / Close Tests
// ============================================

func TestEngine_CancelDropsPendingSync(t *testing.T) {
	engine, remote, source, clock := newTestEngine(t)
	source.add(1, 1)

	engine.Schedule()
	engine.Cancel()
	clock.Advance(5 * time.Second)

	assert.Empty(t, remote.Calls())
	assert.Equal(t, StateIdle, engine.State())
	assert.Zero(t, clock.Pending())
}

func TestEngine_FlushRunsPendingSyncNow(t *testing.T) {
	engine, remote, source, _ := newTestEngine(t)
	source.add(1, 3)
	engine.Schedule()

	err := engine.Flush(context.Background())

	require.NoError(t, err)
	assert.Len(t, remote.Calls(), 1)
	assert.Equal(t, StateSynced, engine.State())
}

func TestEngine_FlushReturnsSyncError(t *testing.T) {
	engine, remote, source, _ := newTestEngine(t)
	remote.err = errors.New("boom")
	source.add(1, 3)
	engine.Schedule()

	err := engine.Flush(context.Background())

	assert.EqualError(t, err, "boom")
}

func TestEngine_FlushWithoutPendingIsNoop(t *testing.T) {
	engine, remote, _, _ := newTestEngine(t)

	require.NoError(t, engine.Flush(context.Background()))
	assert.Empty(t, remote.Calls())
}

// A timer that fired but whose callback has not reached run yet is no
// longer pending in the scheduler. Flush must still send the sync.
func TestEngine_FlushClaimsFiredTimer(t *testing.T) {
	engine, remote, source, _ := newTestEngine(t)
	source.add(1, 2)
	engine.Schedule()
	require.True(t, engine.sched.Cancel())

	require.NoError(t, engine.Flush(context.Background()))
	engine.Close()
	assert.Len(t, remote.Calls(), 1)
	assert.Equal(t, StateSynced, engine.State())

	// the late callback finds its run already claimed
	engine.run(context.Background(), true)
	assert.Len(t, remote.Calls(), 1)
}

func TestEngine_CancelDropsFiredTimer(t *testing.T) {
	engine, remote, source, _ := newTestEngine(t)
	source.add(1, 2)
	engine.Schedule()
	require.True(t, engine.sched.Cancel())

	engine.Cancel()
	engine.run(context.Background(), true)

	assert.Empty(t, remote.Calls())
	assert.Equal(t, StateIdle, engine.State())
}

func TestEngine_CloseStopsScheduling(t *testing.T) {
	engine, remote, source, clock := newTestEngine(t)
	source.add(1, 1)

	engine.Schedule()
	engine.Close()
	engine.Schedule()
	clock.Advance(5 * time.Second)

	assert.Empty(t, remote.Calls())
}

func TestEngine_MarkSynced(t *testing.T) {
	engine, _, _, clock := newTestEngine(t)

	engine.MarkSynced()

	assert.Equal(t, StateSynced, engine.State())
	assert.Equal(t, clock.Now(), engine.LastSyncedAt())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateDirty, "dirty"},
		{StateSyncing, "syncing"},
		{StateSynced, "synced"},
		{StateFailed, "sync-failed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
