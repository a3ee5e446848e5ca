package finance

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when the owner has no finance record.
var ErrNotFound = errors.New("finance record not found")

// Expense is a single spending entry. Budget is the amount allocated to it.
type Expense struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Budget   float64 `json:"budget"`
	Category string  `json:"category"`
}

// Finance is the monthly money picture of a user.
type Finance struct {
	OwnerID  string    `json:"userId"`
	Income   float64   `json:"income"`
	Budget   float64   `json:"budget"`
	Expenses []Expense `json:"expenses"`
}

// Empty reports whether the record carries no usable data.
func (f Finance) Empty() bool {
	return len(f.Expenses) == 0 && f.Income == 0 && f.Budget == 0
}

// Store exposes read access to a user's finance record.
type Store interface {
	GetFinance(ctx context.Context, ownerID string) (Finance, error)
}

// MemoryStore implements Store with a map keyed by owner.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Finance
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied records.
func NewMemoryStore(items ...Finance) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Finance, len(items))}
	for _, item := range items {
		s.items[item.OwnerID] = item
	}
	return s
}

// Put replaces the owner's record.
func (s *MemoryStore) Put(f Finance) {
	s.mu.Lock()
	s.items[f.OwnerID] = f
	s.mu.Unlock()
}

// GetFinance returns a copy of the owner's record.
func (s *MemoryStore) GetFinance(_ context.Context, ownerID string) (Finance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.items[ownerID]
	if !ok {
		return Finance{}, ErrNotFound
	}
	f.Expenses = append([]Expense(nil), f.Expenses...)
	return f, nil
}
