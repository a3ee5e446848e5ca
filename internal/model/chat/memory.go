package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory, suitable for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FindChat returns the record if it exists and belongs to ownerID.
func (s *MemoryStore) FindChat(_ context.Context, id, ownerID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok || record.OwnerID != ownerID {
		return Record{}, ErrChatNotFound
	}
	record.Messages = append([]StoredMessage(nil), record.Messages...)
	return record, nil
}

// UpsertChat implements Store.
func (s *MemoryStore) UpsertChat(_ context.Context, ownerID, id, title string, messages []StoredMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	messages = append([]StoredMessage(nil), messages...)

	if id == "" {
		record := Record{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Title:     title,
			Messages:  messages,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.records[record.ID] = record
		return record.ID, nil
	}

	record, ok := s.records[id]
	if !ok || record.OwnerID != ownerID {
		return "", ErrChatNotFound
	}
	record.Title = title
	record.Messages = messages
	record.UpdatedAt = now
	s.records[id] = record
	return id, nil
}

// ListChats implements Store.
func (s *MemoryStore) ListChats(_ context.Context, ownerID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0)
	for _, record := range s.records {
		if record.OwnerID == ownerID {
			out = append(out, Summary{ID: record.ID, Title: record.Title, UpdatedAt: record.UpdatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteChat implements Store.
func (s *MemoryStore) DeleteChat(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.OwnerID != ownerID {
		return ErrChatNotFound
	}
	delete(s.records, id)
	return nil
}
