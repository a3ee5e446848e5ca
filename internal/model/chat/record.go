package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrChatNotFound is returned when a record is missing or owned by someone else.
	ErrChatNotFound = errors.New("chat not found")
	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("chat record is corrupt")
)

// Persisted message type tags. Older clients wrote "bot" for assistant replies
// and some imports carry "model".
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
	MessageTypeBot       = "bot"
	MessageTypeModel     = "model"
)

// StoredMessage is the persisted speaker/text pair of a turn.
type StoredMessage struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Record is the durable form of a conversation.
type Record struct {
	ID        string          `json:"_id"`
	OwnerID   string          `json:"userId"`
	Title     string          `json:"title"`
	Messages  []StoredMessage `json:"messages"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Summary is the list view of a record.
type Summary struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists chat records. Every operation is scoped to an owner.
type Store interface {
	FindChat(ctx context.Context, id, ownerID string) (Record, error)
	// UpsertChat creates a record when id is empty and returns the assigned id.
	UpsertChat(ctx context.Context, ownerID, id, title string, messages []StoredMessage) (string, error)
	ListChats(ctx context.Context, ownerID string) ([]Summary, error)
	DeleteChat(ctx context.Context, id, ownerID string) error
}

// ToStored converts real turns into their persisted form.
func ToStored(turns []Turn) []StoredMessage {
	kept := RealTurns(turns)
	out := make([]StoredMessage, 0, len(kept))
	for i, turn := range kept {
		kind := MessageTypeUser
		if turn.Speaker == SpeakerAssistant {
			kind = MessageTypeAssistant
		}
		out = append(out, StoredMessage{ID: int64(i + 1), Type: kind, Content: turn.Text})
	}
	return out
}

// CloneStored returns an independent copy of messages.
func CloneStored(messages []StoredMessage) []StoredMessage {
	if messages == nil {
		return nil
	}
	out := make([]StoredMessage, len(messages))
	copy(out, messages)
	return out
}

// StoredTitle builds a chat title from the first non-empty user message.
func StoredTitle(messages []StoredMessage) string {
	for _, msg := range messages {
		if msg.Type != MessageTypeUser {
			continue
		}
		if text := strings.TrimSpace(msg.Content); text != "" {
			return titleFrom(text)
		}
	}
	return defaultTitle
}
