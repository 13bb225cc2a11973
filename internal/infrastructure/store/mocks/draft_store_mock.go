package mocks

import (
	"context"
	"sync"

	"github.com/example/catering-cart/internal/infrastructure/store"
)

// MockDraftStore records repository calls and can be told to fail.
// Successful calls are served by an in-memory store.
type MockDraftStore struct {
	mu      sync.Mutex
	backing *store.MemoryStore

	// For tracking calls in tests
	FindCalls        []string
	FindByIDCalls    []int64
	SaveCalls        []store.DraftOrder
	DeleteCalls      []int64
	GetProductsCalls [][]int64

	FindErr        error
	SaveErr        error
	DeleteErr      error
	GetProductsErr error
}

// NewMockDraftStore creates a MockDraftStore with the given catalog
func NewMockDraftStore(products ...store.Product) *MockDraftStore {
	backing := store.NewMemoryStore()
	for _, p := range products {
		backing.AddProduct(p)
	}
	return &MockDraftStore{backing: backing}
}

func (m *MockDraftStore) FindByCustomer(ctx context.Context, customer string) (*store.DraftOrder, error) {
	m.mu.Lock()
	m.FindCalls = append(m.FindCalls, customer)
	err := m.FindErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.backing.FindByCustomer(ctx, customer)
}

func (m *MockDraftStore) FindByID(ctx context.Context, id int64) (*store.DraftOrder, error) {
	m.mu.Lock()
	m.FindByIDCalls = append(m.FindByIDCalls, id)
	err := m.FindErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.backing.FindByID(ctx, id)
}

func (m *MockDraftStore) Save(ctx context.Context, draft *store.DraftOrder) error {
	m.mu.Lock()
	m.SaveCalls = append(m.SaveCalls, *draft)
	err := m.SaveErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.backing.Save(ctx, draft)
}

func (m *MockDraftStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	err := m.DeleteErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.backing.Delete(ctx, id)
}

func (m *MockDraftStore) GetProducts(ctx context.Context, ids []int64) (map[int64]store.Product, error) {
	m.mu.Lock()
	m.GetProductsCalls = append(m.GetProductsCalls, append([]int64(nil), ids...))
	err := m.GetProductsErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.backing.GetProducts(ctx, ids)
}

// Saves returns a copy of the recorded Save calls
func (m *MockDraftStore) Saves() []store.DraftOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.DraftOrder(nil), m.SaveCalls...)
}

// Reset clears recorded calls and injected errors
func (m *MockDraftStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls = nil
	m.FindByIDCalls = nil
	m.SaveCalls = nil
	m.DeleteCalls = nil
	m.GetProductsCalls = nil
	m.FindErr = nil
	m.SaveErr = nil
	m.DeleteErr = nil
	m.GetProductsErr = nil
}
