package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/catering-cart/internal/auth"
)

var ErrNotFound = errors.New("not found")

// DraftLine is a stored draft-order line
type DraftLine struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	DisplayName string  `json:"displayName,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// DraftOrder is the stored draft for one customer. ID 0 means unsaved.
type DraftOrder struct {
	ID        int64
	Customer  string
	UserID    string
	Lines     []DraftLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is a catalog entry
type Product struct {
	ID          int64
	Name        string
	DisplayName string
	Price       float64
}

// User is an account able to sign in
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Active       bool
	Customers    []auth.Customer
}

// DraftOrderRepository stores at most one draft per customer
type DraftOrderRepository interface {
	FindByCustomer(ctx context.Context, customer string) (*DraftOrder, error)
	FindByID(ctx context.Context, id int64) (*DraftOrder, error)
	// Save inserts the draft when ID is 0 and assigns its ID, otherwise
	// replaces it.
	Save(ctx context.Context, draft *DraftOrder) error
	Delete(ctx context.Context, id int64) error
}

// CatalogReader looks up products by id
type CatalogReader interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
}

// UserRepository looks up accounts
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}
