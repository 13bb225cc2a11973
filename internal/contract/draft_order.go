// Package contract holds the JSON shapes exchanged between the cart
// client and the draft-order backend.
package contract

import (
	"time"

	"github.com/example/catering-cart/internal/auth"
)

// DraftLine is one line of a draft order as returned by the backend
type DraftLine struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	DisplayName string  `json:"displayName,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// DraftOrder is the server-side mirror of a customer's cart
type DraftOrder struct {
	OrderID int64       `json:"orderId"`
	Lines   []DraftLine `json:"lines"`
}

// LineInput is one line of an upsert request
type LineInput struct {
	ProductID int64   `json:"productId" validate:"gt=0"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// UpsertDraftRequest replaces the full line list of a draft order
type UpsertDraftRequest struct {
	Lines []LineInput `json:"lines" validate:"required,min=1,dive"`
}

type UpsertDraftResponse struct {
	OrderID int64 `json:"orderId"`
}

// Access describes what the current session may do for a customer
type Access struct {
	HasAccess            bool            `json:"hasAccess"`
	AvailableCustomers   []auth.Customer `json:"availableCustomers"`
	SelectedCustomerName string          `json:"selectedCustomerName"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}
