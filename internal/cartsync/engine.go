package cartsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/domain/cart"
)

// State is the runtime sync state of a cart. It is never persisted.
type State int

const (
	StateIdle State = iota
	StateDirty
	StateSyncing
	StateSynced
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSyncing:
		return "syncing"
	case StateSynced:
		return "synced"
	case StateFailed:
		return "sync-failed"
	default:
		return "unknown"
	}
}

// Request is a snapshot of the cart taken when a sync fires. Epoch
// identifies the cart generation so that results for a cart that has
// since been cleared or switched can be discarded.
type Request struct {
	Customer string
	Items    []cart.LineItem
	Epoch    uint64
}

// Remote upserts the full line list of the draft order for a customer
// and returns the draft's identifier.
type Remote interface {
	UpsertDraft(ctx context.Context, customer string, items []cart.LineItem) (int64, error)
}

// Source supplies the cart to sync and receives the result
type Source interface {
	SyncRequest() Request
	ApplySync(ctx context.Context, req Request, orderID int64)
}

// Option configures an Engine
type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithQuietPeriod(d time.Duration) Option {
	return func(e *Engine) { e.quiet = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine coalesces bursts of mutations into a single upsert after a quiet
// period. At most one upsert is in flight; a timer firing during a flight
// makes the flight run once more with the latest cart when it returns.
type Engine struct {
	remote Remote
	source Source
	clock  Clock
	quiet  time.Duration
	logger *zap.Logger
	sched  *Scheduler

	mu           sync.Mutex
	state        State
	inFlight     bool
	// armed is set from Schedule until the timer callback or Flush claims
	// the run, so a fired timer that has not reached run yet still counts.
	armed        bool
	rerun        bool
	closed       bool
	done         chan struct{}
	lastSyncedAt time.Time
	lastErr      error
}

// NewEngine creates a sync engine for one cart
func NewEngine(remote Remote, source Source, opts ...Option) *Engine {
	e := &Engine{
		remote: remote,
		source: source,
		clock:  SystemClock(),
		quiet:  DefaultQuietPeriod,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sched = NewScheduler(e.clock, e.quiet)
	return e
}

// Schedule marks the cart dirty and restarts the quiet-period timer
func (e *Engine) Schedule() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.state = StateDirty
	e.armed = true
	e.mu.Unlock()

	e.sched.Schedule(func() {
		e.run(context.Background(), true)
	})
}

// Cancel drops a pending sync without touching an in-flight one
func (e *Engine) Cancel() {
	cancelled := e.sched.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.armed {
		e.armed = false
		cancelled = true
	}
	if cancelled && e.state == StateDirty && !e.inFlight {
		e.state = StateIdle
	}
}

// Flush runs a pending sync immediately and waits for any in-flight
// upsert to finish. It returns the error of the last upsert if the cart
// ended in the failed state.
func (e *Engine) Flush(ctx context.Context) error {
	e.sched.Cancel()
	e.mu.Lock()
	claimed := e.armed
	e.armed = false
	e.mu.Unlock()
	if claimed {
		e.run(ctx, false)
	}

	for {
		e.mu.Lock()
		if !e.inFlight {
			var err error
			if e.state == StateFailed {
				err = e.lastErr
			}
			e.mu.Unlock()
			return err
		}
		done := e.done
		e.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// MarkSynced records that the local cart matches the remote draft without
// an upsert, as after reconciliation.
func (e *Engine) MarkSynced() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSyncedAt = e.clock.Now()
	e.lastErr = nil
	if !e.inFlight && !e.armed {
		e.state = StateSynced
	}
}

// Reset returns the engine to idle, as when the cart is emptied
func (e *Engine) Reset() {
	e.sched.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armed = false
	if !e.inFlight {
		e.state = StateIdle
	}
	e.lastErr = nil
}

// Close stops all future scheduling. An in-flight upsert still completes.
func (e *Engine) Close() {
	e.sched.Cancel()
	e.mu.Lock()
	e.closed = true
	e.armed = false
	e.mu.Unlock()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) LastSyncedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSyncedAt
}

func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// run performs upserts until no rerun is requested. fromTimer runs only
// if the scheduled run has not been claimed by Flush, Cancel or Reset.
func (e *Engine) run(ctx context.Context, fromTimer bool) {
	e.mu.Lock()
	if fromTimer {
		if !e.armed {
			e.mu.Unlock()
			return
		}
		e.armed = false
	}
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.inFlight {
		e.rerun = true
		e.mu.Unlock()
		return
	}
	e.inFlight = true
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()

	for {
		req := e.source.SyncRequest()
		called, err := e.syncOnce(ctx, req)

		e.mu.Lock()
		again := e.rerun && !e.closed
		e.rerun = false
		e.settleLocked(called, err, again)
		if !again {
			e.inFlight = false
			close(done)
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

func (e *Engine) syncOnce(ctx context.Context, req Request) (bool, error) {
	if len(req.Items) == 0 {
		return false, nil
	}

	e.mu.Lock()
	e.state = StateSyncing
	e.mu.Unlock()

	orderID, err := e.remote.UpsertDraft(ctx, req.Customer, req.Items)
	if err != nil {
		e.logger.Warn("draft order sync failed",
			zap.String("customer", req.Customer),
			zap.Int("lines", len(req.Items)),
			zap.Error(err))
		return true, err
	}

	e.logger.Debug("draft order synced",
		zap.String("customer", req.Customer),
		zap.Int64("order_id", orderID),
		zap.Int("lines", len(req.Items)))
	e.source.ApplySync(ctx, req, orderID)
	return true, nil
}

// settleLocked computes the state after an attempt. A newer mutation
// (pending timer or rerun) keeps the cart dirty whatever the outcome.
func (e *Engine) settleLocked(called bool, err error, again bool) {
	newer := again || e.armed

	switch {
	case !called:
		if newer {
			e.state = StateDirty
		} else {
			e.state = StateIdle
		}
	case err != nil:
		e.lastErr = err
		if newer {
			e.state = StateDirty
		} else {
			e.state = StateFailed
		}
	default:
		e.lastErr = nil
		e.lastSyncedAt = e.clock.Now()
		if newer {
			e.state = StateDirty
		} else {
			e.state = StateSynced
		}
	}
}
