package note

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no note matches a lookup.
var ErrNotFound = errors.New("note not found")

// Note is a free-form text note.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store exposes read access to a user's notes.
type Store interface {
	ListRecentNotes(ctx context.Context, ownerID string, limit int) ([]Note, error)
	// FindByTitle matches title case-insensitively as a substring.
	FindByTitle(ctx context.Context, ownerID, title string) (Note, error)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Note
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied notes.
func NewMemoryStore(items []Note) *MemoryStore {
	return &MemoryStore{items: append([]Note(nil), items...)}
}

// Add appends a note.
func (s *MemoryStore) Add(n Note) {
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
}

// ListRecentNotes returns up to limit notes, most recently updated first.
func (s *MemoryStore) ListRecentNotes(_ context.Context, ownerID string, limit int) ([]Note, error) {
	s.mu.RLock()
	out := make([]Note, 0)
	for _, item := range s.items {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindByTitle looks up the most recently updated note whose title contains title.
func (s *MemoryStore) FindByTitle(ctx context.Context, ownerID, title string) (Note, error) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return Note{}, ErrNotFound
	}
	notes, _ := s.ListRecentNotes(ctx, ownerID, 0)
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), needle) {
			return n, nil
		}
	}
	return Note{}, ErrNotFound
}
