// Package session owns one cart for one user: the in-memory aggregate, its
// persisted copy, the debounced remote sync and reconciliation with the
// server's draft order.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/cartsync"
	"github.com/example/catering-cart/internal/contract"
	"github.com/example/catering-cart/internal/domain/cart"
	"github.com/example/catering-cart/internal/persist"
)

var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
	ErrClosed         = errors.New("session closed")
)

// Phase is the lifecycle of a cart session
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseHydrating
	PhaseReconciling
	PhaseReady
	// PhaseCleared is Ready after an explicit Clear. Reconciliation is
	// suppressed until the next AddItem.
	PhaseCleared
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseHydrating:
		return "hydrating"
	case PhaseReconciling:
		return "reconciling"
	case PhaseReady:
		return "ready"
	case PhaseCleared:
		return "cleared"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Remote is the draft-order backend as seen by a session
type Remote interface {
	cartsync.Remote
	FetchDraft(ctx context.Context, customer string) (*contract.DraftOrder, error)
	DeleteDraft(ctx context.Context, orderID int64, customer string) error
	CheckAccess(ctx context.Context, customer string) (*contract.Access, error)
}

// Authenticator reports whether the user is signed in
type Authenticator interface {
	Authenticated() bool
}

type Option func(*config)

type config struct {
	clock  cartsync.Clock
	quiet  time.Duration
	logger *zap.Logger
}

func WithClock(c cartsync.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

func WithQuietPeriod(d time.Duration) Option {
	return func(cfg *config) { cfg.quiet = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// Session is the single owner of a cart. All methods are safe for
// concurrent use.
type Session struct {
	store  *persist.Store
	remote Remote
	auth   Authenticator
	engine *cartsync.Engine
	logger *zap.Logger

	mu       sync.Mutex
	cart     *cart.Cart
	orderID  int64
	phase    Phase
	customer string
	access   *contract.Access
	// epoch changes whenever the cart is emptied out from under a pending
	// sync or reconciliation, whose results must then be discarded.
	epoch uint64
}

// New creates an unstarted session
func New(store *persist.Store, remote Remote, authn Authenticator, opts ...Option) *Session {
	cfg := config{
		clock:  cartsync.SystemClock(),
		quiet:  cartsync.DefaultQuietPeriod,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		store:  store,
		remote: remote,
		auth:   authn,
		logger: cfg.logger,
		cart:   cart.New(),
	}
	s.engine = cartsync.NewEngine(remote, s,
		cartsync.WithClock(cfg.clock),
		cartsync.WithQuietPeriod(cfg.quiet),
		cartsync.WithLogger(cfg.logger.Named("sync")),
	)
	return s
}

// Start hydrates the cart from storage, resolves access and reconciles
// with the remote draft when the local cart is empty.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseUninitialized {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.phase = PhaseHydrating
	s.mu.Unlock()

	res := s.store.Load(ctx)
	customer := s.store.LoadCustomer(ctx)

	s.mu.Lock()
	s.cart.Replace(res.Snapshot.Items)
	s.orderID = res.Snapshot.RemoteOrderID
	s.customer = customer
	if res.Snapshot.Cleared {
		s.phase = PhaseCleared
	} else {
		s.phase = PhaseReady
	}
	s.mu.Unlock()

	s.logger.Debug("cart hydrated",
		zap.Stringer("status", res.Status),
		zap.Int("lines", len(res.Snapshot.Items)),
		zap.Int("dropped", res.Dropped),
		zap.Int64("order_id", res.Snapshot.RemoteOrderID),
		zap.Bool("cleared", res.Snapshot.Cleared))

	s.refreshAccess(ctx)
	_, err := s.Reconcile(ctx)
	return err
}

// AddItem adds quantity of item, merging with an existing line. A
// quantity of zero or less adds one.
func (s *Session) AddItem(ctx context.Context, item cart.LineItem, quantity int) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.cart.Add(item, quantity); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.phase == PhaseCleared {
		s.phase = PhaseReady
	}
	s.persistLocked(ctx)
	gated := s.syncEnabledLocked()
	s.mu.Unlock()

	if gated {
		s.engine.Schedule()
	}
	return nil
}

// RemoveItem deletes the line for productID. Emptying a cart that has a
// remote draft deletes the draft before returning.
func (s *Session) RemoveItem(ctx context.Context, productID int64) (bool, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	if !s.cart.Remove(productID) {
		s.mu.Unlock()
		return false, nil
	}
	s.afterShrinkLocked(ctx)
	return true, nil
}

// SetQuantity replaces the quantity of a line. Zero or less removes it.
func (s *Session) SetQuantity(ctx context.Context, productID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	if !s.cart.SetQuantity(productID, quantity) {
		s.mu.Unlock()
		return false, nil
	}
	s.persistLocked(ctx)
	gated := s.syncEnabledLocked()
	s.mu.Unlock()

	if gated {
		s.engine.Schedule()
	}
	return true, nil
}

// afterShrinkLocked persists a removal and either schedules a sync or,
// when the cart is now empty, drops the remote draft. It releases s.mu.
func (s *Session) afterShrinkLocked(ctx context.Context) {
	if !s.cart.IsEmpty() {
		s.persistLocked(ctx)
		gated := s.syncEnabledLocked()
		s.mu.Unlock()
		if gated {
			s.engine.Schedule()
		}
		return
	}

	orderID := s.orderID
	customer := s.customer
	s.orderID = 0
	s.bumpEpochLocked()
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.engine.Reset()
	s.deleteRemote(ctx, orderID, customer)
}

// Clear empties the cart, deletes the remote draft and suppresses
// reconciliation until the next AddItem.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	orderID := s.orderID
	customer := s.customer
	s.cart.Clear()
	s.orderID = 0
	s.bumpEpochLocked()
	s.phase = PhaseCleared
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.engine.Reset()
	s.deleteRemote(ctx, orderID, customer)
	return nil
}

func (s *Session) deleteRemote(ctx context.Context, orderID int64, customer string) {
	if orderID <= 0 {
		return
	}
	if !s.auth.Authenticated() {
		s.logger.Info("not signed in, leaving remote draft in place", zap.Int64("order_id", orderID))
		return
	}
	if err := s.remote.DeleteDraft(ctx, orderID, customer); err != nil {
		s.logger.Warn("failed to delete remote draft",
			zap.Int64("order_id", orderID),
			zap.String("customer", customer),
			zap.Error(err))
		return
	}
	s.logger.Debug("remote draft deleted", zap.Int64("order_id", orderID), zap.String("customer", customer))
}

// Reconcile replaces an empty local cart with the customer's remote draft.
// It reports whether the cart was replaced. Fetch errors are logged, not
// returned.
func (s *Session) Reconcile(ctx context.Context) (bool, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseUninitialized, PhaseHydrating:
		s.mu.Unlock()
		return false, ErrNotStarted
	case PhaseClosed:
		s.mu.Unlock()
		return false, ErrClosed
	case PhaseCleared, PhaseReconciling:
		s.mu.Unlock()
		return false, nil
	}
	if !s.cart.IsEmpty() || !s.syncEnabledLocked() {
		s.mu.Unlock()
		return false, nil
	}
	s.phase = PhaseReconciling
	customer := s.customer
	epoch := s.epoch
	s.mu.Unlock()

	draft, err := s.remote.FetchDraft(ctx, customer)

	s.mu.Lock()
	if s.phase == PhaseReconciling && s.epoch == epoch {
		s.phase = PhaseReady
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("failed to fetch remote draft", zap.String("customer", customer), zap.Error(err))
		return false, nil
	}
	if draft == nil || len(draft.Lines) == 0 {
		s.mu.Unlock()
		return false, nil
	}
	if s.epoch != epoch || s.phase != PhaseReady || !s.cart.IsEmpty() {
		s.mu.Unlock()
		s.logger.Debug("discarding stale remote draft", zap.Int64("order_id", draft.OrderID))
		return false, nil
	}

	s.cart.Replace(linesToItems(draft.Lines))
	s.orderID = draft.OrderID
	s.persistLocked(ctx)
	lines := s.cart.Len()
	s.mu.Unlock()

	s.engine.MarkSynced()
	s.logger.Info("cart reconciled from remote draft",
		zap.String("customer", customer),
		zap.Int64("order_id", draft.OrderID),
		zap.Int("lines", lines))
	return true, nil
}

func linesToItems(lines []contract.DraftLine) []cart.LineItem {
	items := make([]cart.LineItem, 0, len(lines))
	for _, l := range lines {
		item := cart.LineItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			DisplayName: l.DisplayName,
			UnitPrice:   l.Price,
			Quantity:    l.Quantity,
		}
		if item.Validate() != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

// SwitchCustomer empties the cart, selects customer and reconciles with
// that customer's draft. The previous customer's draft is left on the
// server.
func (s *Session) SwitchCustomer(ctx context.Context, customer string) error {
	customer = strings.TrimSpace(customer)

	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if customer == s.customer {
		s.mu.Unlock()
		return nil
	}
	s.resetForCustomerLocked(ctx, customer)
	s.mu.Unlock()

	s.engine.Reset()
	s.refreshAccess(ctx)
	_, err := s.Reconcile(ctx)
	return err
}

func (s *Session) resetForCustomerLocked(ctx context.Context, customer string) {
	s.customer = customer
	s.cart.Clear()
	s.orderID = 0
	s.bumpEpochLocked()
	s.access = nil
	if s.phase == PhaseCleared {
		s.phase = PhaseReady
	}
	s.persistLocked(ctx)
	if err := s.store.SaveCustomer(ctx, customer); err != nil {
		s.logger.Warn("failed to persist selected customer", zap.Error(err))
	}
}

// refreshAccess asks the backend what the session may do. A stored
// customer the user cannot act for falls back to the first available one.
func (s *Session) refreshAccess(ctx context.Context) {
	if !s.auth.Authenticated() {
		s.mu.Lock()
		s.access = nil
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	customer := s.customer
	epoch := s.epoch
	s.mu.Unlock()

	access, err := s.remote.CheckAccess(ctx, customer)
	if err != nil {
		s.logger.Warn("access check failed", zap.String("customer", customer), zap.Error(err))
		return
	}

	resolved := resolveCustomer(customer, access.AvailableCustomers)
	if resolved != customer {
		access, err = s.remote.CheckAccess(ctx, resolved)
		if err != nil {
			s.logger.Warn("access check failed", zap.String("customer", resolved), zap.Error(err))
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.phase == PhaseClosed {
		return
	}
	if resolved != s.customer {
		s.logger.Info("selected customer unavailable, falling back",
			zap.String("stored", s.customer),
			zap.String("selected", resolved))
		if s.customer == "" {
			s.customer = resolved
			if err := s.store.SaveCustomer(ctx, resolved); err != nil {
				s.logger.Warn("failed to persist selected customer", zap.Error(err))
			}
		} else {
			s.resetForCustomerLocked(ctx, resolved)
		}
	}
	s.access = access
}

func resolveCustomer(current string, available []auth.Customer) string {
	if len(available) == 0 {
		return current
	}
	for _, c := range available {
		if c.ID == current {
			return current
		}
	}
	return available[0].ID
}

// Sync forces an immediate upsert of the current cart and waits for it
func (s *Session) Sync(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	gated := s.syncEnabledLocked() && !s.cart.IsEmpty()
	s.mu.Unlock()

	if !gated {
		return nil
	}
	s.engine.Schedule()
	return s.engine.Flush(ctx)
}

// Flush runs any pending sync now and waits for in-flight upserts
func (s *Session) Flush(ctx context.Context) error {
	return s.engine.Flush(ctx)
}

// Close stops scheduling. Pending syncs are dropped; call Flush first to
// keep them.
func (s *Session) Close() {
	s.engine.Close()
	s.mu.Lock()
	s.phase = PhaseClosed
	s.mu.Unlock()
}

// SyncRequest implements cartsync.Source
func (s *Session) SyncRequest() cartsync.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartsync.Request{
		Customer: s.customer,
		Items:    s.cart.Items(),
		Epoch:    s.epoch,
	}
}

// ApplySync implements cartsync.Source. A result for a cart that was
// emptied while the upsert was in flight created a draft nobody tracks,
// so that draft is deleted.
func (s *Session) ApplySync(ctx context.Context, req cartsync.Request, orderID int64) {
	s.mu.Lock()
	if req.Epoch != s.epoch || s.phase == PhaseClosed {
		orphaned := req.Customer == s.customer && s.cart.IsEmpty() && s.orderID == 0
		s.mu.Unlock()
		s.logger.Debug("discarding superseded sync result",
			zap.Int64("order_id", orderID),
			zap.Uint64("epoch", req.Epoch),
			zap.Bool("orphaned", orphaned))
		if orphaned {
			s.deleteRemote(ctx, orderID, req.Customer)
		}
		return
	}
	defer s.mu.Unlock()
	if s.orderID == orderID {
		return
	}
	s.orderID = orderID
	s.persistLocked(ctx)
}

// bumpEpochLocked starts a new cart generation. A reconciliation still
// fetching for the old one no longer holds the reconciling phase.
func (s *Session) bumpEpochLocked() {
	s.epoch++
	if s.phase == PhaseReconciling {
		s.phase = PhaseReady
	}
}

func (s *Session) checkOpenLocked() error {
	switch s.phase {
	case PhaseUninitialized, PhaseHydrating:
		return ErrNotStarted
	case PhaseClosed:
		return ErrClosed
	}
	return nil
}

func (s *Session) syncEnabledLocked() bool {
	return s.auth.Authenticated() && s.access != nil && s.access.HasAccess
}

func (s *Session) persistLocked(ctx context.Context) {
	err := s.store.Save(ctx, persist.Snapshot{
		Items:         s.cart.Items(),
		RemoteOrderID: s.orderID,
		Cleared:       s.phase == PhaseCleared,
	})
	if err != nil {
		s.logger.Warn("failed to persist cart", zap.Error(err))
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Items() []cart.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items()
}

func (s *Session) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalItems()
}

func (s *Session) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalPrice()
}

// RemoteOrderID returns the draft order id, or 0 if none is known
func (s *Session) RemoteOrderID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

func (s *Session) Customer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customer
}

// Access returns the last access check. The zero value means no access.
func (s *Session) Access() contract.Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.access == nil {
		return contract.Access{}
	}
	out := *s.access
	out.AvailableCustomers = append([]auth.Customer(nil), s.access.AvailableCustomers...)
	return out
}

func (s *Session) SyncState() cartsync.State {
	return s.engine.State()
}

func (s *Session) LastSyncedAt() time.Time {
	return s.engine.LastSyncedAt()
}

func (s *Session) LastSyncError() error {
	return s.engine.LastError()
}
