package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/domain/draftorder"
	"github.com/example/catering-cart/internal/infrastructure/kafka"
)

// Stats counts the events a Handler has seen
type Stats struct {
	Upserted  int
	Deleted   int
	Ignored   int
	Malformed int
}

// Handler writes an audit line for every draft-order event on the topic
// and tracks the open drafts per customer.
type Handler struct {
	logger *zap.Logger

	mu     sync.Mutex
	stats  Stats
	open   map[string]int64 // customer -> order id
	totals map[int64]float64
}

// NewHandler creates a new audit handler
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger: logger,
		open:   make(map[string]int64),
		totals: make(map[int64]float64),
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	env, err := kafka.DecodeEnvelope(value)
	if err != nil {
		h.count(func(s *Stats) { s.Malformed++ })
		return err
	}

	switch env.Type {
	case draftorder.EventDraftOrderUpserted:
		return h.handleUpserted(env)
	case draftorder.EventDraftOrderDeleted:
		return h.handleDeleted(env)
	default:
		h.count(func(s *Stats) { s.Ignored++ })
		h.logger.Debug("ignoring event", zap.String("type", env.Type), zap.String("id", env.ID))
		return nil
	}
}

func (h *Handler) handleUpserted(env kafka.Envelope) error {
	var e draftorder.DraftOrderUpserted
	if err := json.Unmarshal(env.Data, &e); err != nil {
		h.count(func(s *Stats) { s.Malformed++ })
		return fmt.Errorf("failed to decode %s event %s: %w", env.Type, env.ID, err)
	}

	quantity := 0
	for _, l := range e.Lines {
		quantity += l.Quantity
	}

	h.mu.Lock()
	h.stats.Upserted++
	previous, had := h.totals[e.OrderID]
	h.open[e.Customer] = e.OrderID
	h.totals[e.OrderID] = e.Total
	h.mu.Unlock()

	fields := []zap.Field{
		zap.String("event_id", env.ID),
		zap.Int64("order_id", e.OrderID),
		zap.String("customer", e.Customer),
		zap.String("user_id", e.UserID),
		zap.Int("lines", len(e.Lines)),
		zap.Int("quantity", quantity),
		zap.Float64("total", e.Total),
		zap.Time("updated_at", e.UpdatedAt),
	}
	if had {
		fields = append(fields, zap.Float64("previous_total", previous))
		h.logger.Info("draft order updated", fields...)
	} else {
		h.logger.Info("draft order created", fields...)
	}
	return nil
}

func (h *Handler) handleDeleted(env kafka.Envelope) error {
	var e draftorder.DraftOrderDeleted
	if err := json.Unmarshal(env.Data, &e); err != nil {
		h.count(func(s *Stats) { s.Malformed++ })
		return fmt.Errorf("failed to decode %s event %s: %w", env.Type, env.ID, err)
	}

	h.mu.Lock()
	h.stats.Deleted++
	if h.open[e.Customer] == e.OrderID {
		delete(h.open, e.Customer)
	}
	delete(h.totals, e.OrderID)
	h.mu.Unlock()

	h.logger.Info("draft order deleted",
		zap.String("event_id", env.ID),
		zap.Int64("order_id", e.OrderID),
		zap.String("customer", e.Customer),
		zap.String("user_id", e.UserID),
		zap.Time("deleted_at", e.DeletedAt))
	return nil
}

func (h *Handler) count(fn func(*Stats)) {
	h.mu.Lock()
	fn(&h.stats)
	h.mu.Unlock()
}

// Stats returns a snapshot of the counters
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// OpenDraft returns the last draft seen for customer that has not been deleted
func (h *Handler) OpenDraft(customer string) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.open[customer]
	return id, ok
}
