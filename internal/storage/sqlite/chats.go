package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// ChatStore implements chat.Store. Every statement is scoped by owner.
type ChatStore struct {
	db  *sql.DB
	now func() time.Time
}

// Chats returns the chat store.
func (d *DB) Chats() *ChatStore {
	return &ChatStore{db: d.db, now: time.Now}
}

// FindChat implements chat.Store.
func (s *ChatStore) FindChat(ctx context.Context, id, ownerID string) (chat.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, messages, created_at_ns, updated_at_ns FROM chats WHERE id = ? AND owner_id = ?`,
		id, ownerID)

	var (
		record           chat.Record
		raw              string
		created, updated int64
	)
	if err := row.Scan(&record.ID, &record.OwnerID, &record.Title, &raw, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Record{}, chat.ErrChatNotFound
		}
		return chat.Record{}, fmt.Errorf("query chat: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &record.Messages); err != nil {
		return chat.Record{}, fmt.Errorf("%w: decode chat %s messages: %v", chat.ErrCorruptRecord, id, err)
	}
	record.CreatedAt = fromNanos(created)
	record.UpdatedAt = fromNanos(updated)
	return record, nil
}

// UpsertChat implements chat.Store.
func (s *ChatStore) UpsertChat(ctx context.Context, ownerID, id, title string, messages []chat.StoredMessage) (string, error) {
	if messages == nil {
		messages = []chat.StoredMessage{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encode messages: %w", err)
	}
	now := s.now().UnixNano()

	if id == "" {
		id = uuid.NewString()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO chats (id, owner_id, title, messages, created_at_ns, updated_at_ns) VALUES (?, ?, ?, ?, ?, ?)`,
			id, ownerID, title, string(raw), now, now)
		if err != nil {
			return "", fmt.Errorf("insert chat: %w", err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ?, messages = ?, updated_at_ns = ? WHERE id = ? AND owner_id = ?`,
		title, string(raw), now, id, ownerID)
	if err != nil {
		return "", fmt.Errorf("update chat: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("update chat: %w", err)
	} else if n == 0 {
		return "", chat.ErrChatNotFound
	}
	return id, nil
}

// ListChats implements chat.Store.
func (s *ChatStore) ListChats(ctx context.Context, ownerID string) ([]chat.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, updated_at_ns FROM chats WHERE owner_id = ? ORDER BY updated_at_ns DESC, id ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Summary, 0)
	for rows.Next() {
		var (
			summary chat.Summary
			updated int64
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &updated); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		summary.UpdatedAt = fromNanos(updated)
		out = append(out, summary)
	}
	return out, rows.Err()
}

// DeleteChat implements chat.Store.
func (s *ChatStore) DeleteChat(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if n == 0 {
		return chat.ErrChatNotFound
	}
	return nil
}
