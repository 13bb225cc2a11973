package persist

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/domain/cart"
)

// Storage keys. Each is read and validated independently.
const (
	KeyItems            = "cart.items"
	KeyDraftOrderID     = "cart.draftOrderId"
	KeyLifecycle        = "cart.lifecycle"
	KeySelectedCustomer = "cart.selectedCustomer"
	KeySessionToken     = "session.token"
)

const lifecycleCleared = "cleared"

// LoadStatus tags the outcome of reading the persisted cart
type LoadStatus int

const (
	// LoadEmpty means nothing was stored
	LoadEmpty LoadStatus = iota
	// LoadValid means the stored list parsed; some entries may have been dropped
	LoadValid
	// LoadInvalid means the stored list was unreadable and has been discarded
	LoadInvalid
)

func (s LoadStatus) String() string {
	switch s {
	case LoadEmpty:
		return "empty"
	case LoadValid:
		return "valid"
	case LoadInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Snapshot is the persisted part of a cart. RemoteOrderID 0 means no
// remote draft exists. Cleared records that the cart was intentionally
// emptied and must not be repopulated from the server.
type Snapshot struct {
	Items         []cart.LineItem
	RemoteOrderID int64
	Cleared       bool
}

// LoadResult is the tagged result of Store.Load
type LoadResult struct {
	Status   LoadStatus
	Snapshot Snapshot
	Dropped  int
}

// storedItem mirrors a persisted line. Pointers distinguish a missing
// field from a zero value; optional strings are decoded leniently.
type storedItem struct {
	ProductID   *int64          `json:"productId" validate:"required,gt=0"`
	ProductName *string         `json:"productName" validate:"required"`
	DisplayName json.RawMessage `json:"displayName"`
	Image       json.RawMessage `json:"image"`
	UnitPrice   *float64        `json:"unitPrice" validate:"required,gte=0"`
	Quantity    *int            `json:"quantity" validate:"required,gt=0"`
}

// Store reads and writes the cart, the draft order id, and the selected
// customer to a Backend. Failures never propagate out of Load: a cart
// that cannot be read is an empty cart.
type Store struct {
	backend  Backend
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStore creates a store over the given backend
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:  backend,
		validate: validator.New(),
		logger:   logger,
	}
}

// Load reads the persisted cart, dropping entries that fail validation
func (s *Store) Load(ctx context.Context) LoadResult {
	res := LoadResult{Status: LoadEmpty}

	raw, ok, err := s.backend.Get(ctx, KeyItems)
	switch {
	case err != nil:
		s.logger.Warn("cart storage unavailable", zap.Error(err))
		return LoadResult{Status: LoadInvalid}
	case ok && strings.TrimSpace(raw) != "":
		items, dropped, err := s.decodeItems(raw)
		if err != nil {
			s.logger.Warn("discarding unreadable cart", zap.Error(err))
			s.discard(ctx, KeyItems)
			res.Status = LoadInvalid
		} else {
			res.Status = LoadValid
			res.Snapshot.Items = items
			res.Dropped = dropped
			if dropped > 0 {
				s.logger.Warn("dropped invalid cart entries", zap.Int("dropped", dropped))
			}
		}
	}

	res.Snapshot.RemoteOrderID = s.loadOrderID(ctx)

	if v, ok, err := s.backend.Get(ctx, KeyLifecycle); err == nil && ok {
		res.Snapshot.Cleared = v == lifecycleCleared
	}

	return res
}

func (s *Store) decodeItems(raw string) ([]cart.LineItem, int, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, 0, err
	}

	items := make([]cart.LineItem, 0, len(entries))
	dropped := 0
	for _, entry := range entries {
		item, ok := s.decodeItem(entry)
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}

	// Duplicate product ids are merged so the one-line-per-product
	// invariant holds even for hand-edited storage.
	return cart.New(items...).Items(), dropped, nil
}

func (s *Store) decodeItem(entry json.RawMessage) (cart.LineItem, bool) {
	var si storedItem
	if err := json.Unmarshal(entry, &si); err != nil {
		return cart.LineItem{}, false
	}
	if err := s.validate.Struct(si); err != nil {
		return cart.LineItem{}, false
	}
	return cart.LineItem{
		ProductID:   *si.ProductID,
		ProductName: *si.ProductName,
		DisplayName: optionalString(si.DisplayName),
		Image:       optionalString(si.Image),
		UnitPrice:   *si.UnitPrice,
		Quantity:    *si.Quantity,
	}, true
}

func optionalString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

func (s *Store) loadOrderID(ctx context.Context) int64 {
	raw, ok, err := s.backend.Get(ctx, KeyDraftOrderID)
	if err != nil || !ok {
		return 0
	}
	id, err := ParseOrderID(raw)
	if err != nil {
		s.logger.Warn("discarding invalid draft order id", zap.String("value", raw))
		s.discard(ctx, KeyDraftOrderID)
		return 0
	}
	return id
}

var ErrInvalidOrderID = errors.New("draft order id must be a positive integer")

// ParseOrderID accepts a positive base-10 integer, optionally JSON-quoted
func ParseOrderID(raw string) (int64, error) {
	v := strings.Trim(strings.TrimSpace(raw), `"`)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidOrderID
	}
	return id, nil
}

// Save writes the snapshot. A zero RemoteOrderID removes the stored id
// rather than writing a sentinel.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	items := snap.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}

	var errs []error
	errs = append(errs, s.backend.Set(ctx, KeyItems, string(data)))

	if snap.RemoteOrderID > 0 {
		errs = append(errs, s.backend.Set(ctx, KeyDraftOrderID, strconv.FormatInt(snap.RemoteOrderID, 10)))
	} else {
		errs = append(errs, s.backend.Delete(ctx, KeyDraftOrderID))
	}

	if snap.Cleared {
		errs = append(errs, s.backend.Set(ctx, KeyLifecycle, lifecycleCleared))
	} else {
		errs = append(errs, s.backend.Delete(ctx, KeyLifecycle))
	}

	return errors.Join(errs...)
}

// LoadCustomer returns the selected customer, or "" if none is stored
func (s *Store) LoadCustomer(ctx context.Context) string {
	raw, ok, err := s.backend.Get(ctx, KeySelectedCustomer)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

// SaveCustomer stores the selected customer; "" removes it
func (s *Store) SaveCustomer(ctx context.Context, customer string) error {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return s.backend.Delete(ctx, KeySelectedCustomer)
	}
	return s.backend.Set(ctx, KeySelectedCustomer, customer)
}

// LoadToken returns the stored session token, or ""
func (s *Store) LoadToken(ctx context.Context) string {
	raw, ok, err := s.backend.Get(ctx, KeySessionToken)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

// SaveToken stores the session token; "" removes it
func (s *Store) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return s.backend.Delete(ctx, KeySessionToken)
	}
	return s.backend.Set(ctx, KeySessionToken, token)
}

func (s *Store) discard(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to discard stored key", zap.String("key", key), zap.Error(err))
	}
}
