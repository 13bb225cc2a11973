package draftorder

import "time"

const (
	EventDraftOrderUpserted = "DraftOrderUpserted"
	EventDraftOrderDeleted  = "DraftOrderDeleted"
)

type DraftOrderUpserted struct {
	OrderID   int64     `json:"order_id"`
	Customer  string    `json:"customer"`
	UserID    string    `json:"user_id"`
	Lines     []Line    `json:"lines"`
	Total     float64   `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DraftOrderDeleted struct {
	OrderID   int64     `json:"order_id"`
	Customer  string    `json:"customer"`
	UserID    string    `json:"user_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
