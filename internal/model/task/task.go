package task

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Task is a calendar entry owned by a user.
type Task struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Completed bool      `json:"completed"`
}

// Store exposes read access to a user's tasks.
type Store interface {
	ListTasks(ctx context.Context, ownerID string) ([]Task, error)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Task
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied tasks.
func NewMemoryStore(items []Task) *MemoryStore {
	return &MemoryStore{items: append([]Task(nil), items...)}
}

// Add appends a task.
func (s *MemoryStore) Add(t Task) {
	s.mu.Lock()
	s.items = append(s.items, t)
	s.mu.Unlock()
}

// ListTasks returns the owner's tasks ordered by start time.
func (s *MemoryStore) ListTasks(_ context.Context, ownerID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0)
	for _, item := range s.items {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
