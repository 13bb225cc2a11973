package draftorder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/infrastructure/store"
)

var (
	ErrDraftNotFound    = errors.New("draft order not found")
	ErrCustomerMismatch = errors.New("draft order belongs to another customer")
	ErrEmptyDraft       = errors.New("draft order must have at least one line")
	ErrInvalidLine      = errors.New("invalid draft order line")
	ErrUnknownProduct   = errors.New("unknown product")
)

// Line is one product in a draft order
type Line struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	DisplayName string  `json:"display_name,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// LineInput is a line as submitted by a client. Names come from the catalog.
type LineInput struct {
	ProductID int64
	Quantity  int
	Price     float64
}

// DraftOrder is the server-side mirror of a customer's cart. There is at
// most one per customer.
type DraftOrder struct {
	ID        int64     `json:"id"`
	Customer  string    `json:"customer"`
	UserID    string    `json:"user_id"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *DraftOrder) Total() float64 {
	var total float64
	for _, l := range d.Lines {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, data any) error
}

type Service struct {
	drafts    store.DraftOrderRepository
	catalog   store.CatalogReader
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the draft-order service. publisher may be nil.
func NewService(drafts store.DraftOrderRepository, catalog store.CatalogReader, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		drafts:    drafts,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the customer's draft
func (s *Service) Get(ctx context.Context, customer string) (*DraftOrder, error) {
	rec, err := s.drafts.FindByCustomer(ctx, customer)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

// Upsert replaces the customer's draft lines, creating the draft if needed.
// Repeated product ids are merged.
func (s *Service) Upsert(ctx context.Context, userID, customer string, inputs []LineInput) (*DraftOrder, error) {
	merged, err := mergeInputs(inputs)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(merged))
	for _, in := range merged {
		ids = append(ids, in.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve products: %w", err)
	}

	lines := make([]store.DraftLine, 0, len(merged))
	for _, in := range merged {
		p, ok := products[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, in.ProductID)
		}
		lines = append(lines, store.DraftLine{
			ProductID:   in.ProductID,
			ProductName: p.Name,
			DisplayName: p.DisplayName,
			Price:       in.Price,
			Quantity:    in.Quantity,
		})
	}

	rec, err := s.drafts.FindByCustomer(ctx, customer)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = &store.DraftOrder{Customer: customer}
	case err != nil:
		return nil, err
	}
	rec.UserID = userID
	rec.Lines = lines

	if err := s.drafts.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save draft order: %w", err)
	}
	draft := fromRecord(rec)

	s.publish(ctx, draft.ID, EventDraftOrderUpserted, DraftOrderUpserted{
		OrderID:   draft.ID,
		Customer:  customer,
		UserID:    userID,
		Lines:     draft.Lines,
		Total:     draft.Total(),
		UpdatedAt: s.now(),
	})
	return draft, nil
}

// Delete removes the draft. The draft must belong to customer.
func (s *Service) Delete(ctx context.Context, userID string, orderID int64, customer string) error {
	rec, err := s.drafts.FindByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDraftNotFound
	}
	if err != nil {
		return err
	}
	if rec.Customer != customer {
		return ErrCustomerMismatch
	}

	if err := s.drafts.Delete(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDraftNotFound
		}
		return fmt.Errorf("failed to delete draft order: %w", err)
	}

	s.publish(ctx, orderID, EventDraftOrderDeleted, DraftOrderDeleted{
		OrderID:   orderID,
		Customer:  customer,
		UserID:    userID,
		DeletedAt: s.now(),
	})
	return nil
}

// publish is best effort; the draft is already stored
func (s *Service) publish(ctx context.Context, orderID int64, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, strconv.FormatInt(orderID, 10), eventType, data); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}

func mergeInputs(inputs []LineInput) ([]LineInput, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyDraft
	}

	byID := make(map[int64]*LineInput, len(inputs))
	order := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		if in.ProductID <= 0 || in.Quantity <= 0 || in.Price < 0 {
			return nil, fmt.Errorf("%w: product %d quantity %d price %v", ErrInvalidLine, in.ProductID, in.Quantity, in.Price)
		}
		if existing, ok := byID[in.ProductID]; ok {
			existing.Quantity += in.Quantity
			continue
		}
		cp := in
		byID[in.ProductID] = &cp
		order = append(order, in.ProductID)
	}

	out := make([]LineInput, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

func fromRecord(rec *store.DraftOrder) *DraftOrder {
	d := &DraftOrder{
		ID:        rec.ID,
		Customer:  rec.Customer,
		UserID:    rec.UserID,
		Lines:     make([]Line, 0, len(rec.Lines)),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	for _, l := range rec.Lines {
		d.Lines = append(d.Lines, Line{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			DisplayName: l.DisplayName,
			Price:       l.Price,
			Quantity:    l.Quantity,
		})
	}
	return d
}
