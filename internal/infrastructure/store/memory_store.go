package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/example/catering-cart/internal/auth"
)

// MemoryStore is an in-memory implementation of every repository
type MemoryStore struct {
	mu       sync.RWMutex
	drafts   map[int64]*DraftOrder
	byCust   map[string]int64
	products map[int64]Product
	users    map[string]*User
	nextID   int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:   make(map[int64]*DraftOrder),
		byCust:   make(map[string]int64),
		products: make(map[int64]Product),
		users:    make(map[string]*User),
		now:      time.Now,
	}
}

// AddProduct registers a catalog product
func (s *MemoryStore) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// AddUser registers an account
func (s *MemoryStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	cp.Customers = append([]auth.Customer(nil), u.Customers...)
	s.users[u.ID] = &cp
}

func (s *MemoryStore) FindByCustomer(_ context.Context, customer string) (*DraftOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCust[customer]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDraft(s.drafts[id]), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (*DraftOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDraft(d), nil
}

func (s *MemoryStore) Save(_ context.Context, draft *DraftOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if draft.ID == 0 {
		if existing, ok := s.byCust[draft.Customer]; ok {
			draft.ID = existing
			draft.CreatedAt = s.drafts[existing].CreatedAt
		} else {
			s.nextID++
			draft.ID = s.nextID
			draft.CreatedAt = now
		}
	} else if _, ok := s.drafts[draft.ID]; !ok {
		return ErrNotFound
	}
	draft.UpdatedAt = now

	s.drafts[draft.ID] = cloneDraft(draft)
	s.byCust[draft.Customer] = draft.ID
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.drafts, id)
	delete(s.byCust, d.Customer)
	return nil
}

func (s *MemoryStore) GetProducts(_ context.Context, ids []int64) (map[int64]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func cloneDraft(d *DraftOrder) *DraftOrder {
	cp := *d
	cp.Lines = append([]DraftLine(nil), d.Lines...)
	return &cp
}
