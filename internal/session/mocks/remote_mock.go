package mocks

import (
	"context"
	"sync"

	"github.com/example/catering-cart/internal/contract"
	"github.com/example/catering-cart/internal/domain/cart"
)

// MockRemote is an in-memory draft-order backend for testing
type MockRemote struct {
	mu     sync.Mutex
	drafts map[string]*contract.DraftOrder
	nextID int64

	// Access returned by CheckAccess. Nil grants access to every customer.
	AccessFn func(customer string) *contract.Access

	// For tracking calls in tests
	FetchCalls  []string
	UpsertCalls []UpsertCall
	DeleteCalls []DeleteCall
	AccessCalls []string

	FetchErr  error
	UpsertErr error
	DeleteErr error
	AccessErr error

	// Hooks run after the call is recorded and before it returns
	FetchHook  func()
	UpsertHook func()
}

// UpsertCall records parameters passed to UpsertDraft
type UpsertCall struct {
	Customer string
	Items    []cart.LineItem
}

// DeleteCall records parameters passed to DeleteDraft
type DeleteCall struct {
	OrderID  int64
	Customer string
}

// NewMockRemote creates a new MockRemote
func NewMockRemote() *MockRemote {
	return &MockRemote{
		drafts: make(map[string]*contract.DraftOrder),
		nextID: 100,
	}
}

// SeedDraft stores a draft for customer as if another device had synced it
func (m *MockRemote) SeedDraft(customer string, draft contract.DraftOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := draft
	m.drafts[customer] = &d
}

// Draft returns the stored draft for customer
func (m *MockRemote) Draft(customer string) (*contract.DraftOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[customer]
	return d, ok
}

func (m *MockRemote) FetchDraft(_ context.Context, customer string) (*contract.DraftOrder, error) {
	m.mu.Lock()
	m.FetchCalls = append(m.FetchCalls, customer)
	hook := m.FetchHook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	d, ok := m.drafts[customer]
	if !ok {
		return nil, nil
	}
	out := *d
	out.Lines = append([]contract.DraftLine(nil), d.Lines...)
	return &out, nil
}

func (m *MockRemote) UpsertDraft(_ context.Context, customer string, items []cart.LineItem) (int64, error) {
	m.mu.Lock()
	m.UpsertCalls = append(m.UpsertCalls, UpsertCall{Customer: customer, Items: items})
	hook := m.UpsertHook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return 0, m.UpsertErr
	}

	d, ok := m.drafts[customer]
	if !ok {
		m.nextID++
		d = &contract.DraftOrder{OrderID: m.nextID}
		m.drafts[customer] = d
	}
	d.Lines = d.Lines[:0]
	for _, item := range items {
		d.Lines = append(d.Lines, contract.DraftLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			DisplayName: item.DisplayName,
			Price:       item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	return d.OrderID, nil
}

func (m *MockRemote) DeleteDraft(_ context.Context, orderID int64, customer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, DeleteCall{OrderID: orderID, Customer: customer})
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if d, ok := m.drafts[customer]; ok && d.OrderID == orderID {
		delete(m.drafts, customer)
	}
	return nil
}

func (m *MockRemote) CheckAccess(_ context.Context, customer string) (*contract.Access, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AccessCalls = append(m.AccessCalls, customer)
	if m.AccessErr != nil {
		return nil, m.AccessErr
	}
	if m.AccessFn != nil {
		return m.AccessFn(customer), nil
	}
	return &contract.Access{HasAccess: true}, nil
}

// Upserts returns a copy of the recorded upsert calls
func (m *MockRemote) Upserts() []UpsertCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UpsertCall(nil), m.UpsertCalls...)
}

// Deletes returns a copy of the recorded delete calls
func (m *MockRemote) Deletes() []DeleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeleteCall(nil), m.DeleteCalls...)
}

// Fetches returns a copy of the recorded fetch calls
func (m *MockRemote) Fetches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.FetchCalls...)
}
