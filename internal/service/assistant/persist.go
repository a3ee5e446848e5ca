package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/metrics"
	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// Syncer writes conversations to the durable chat store.
type Syncer struct {
	chats     chat.Store
	ioTimeout time.Duration
	log       logrus.FieldLogger

	mu     sync.Mutex
	queues map[string]*chatQueue
	wg     sync.WaitGroup
}

// chatQueue orders background writes for one chat; it lives while writes are pending.
type chatQueue struct {
	mu      sync.Mutex
	pending int
	lastSeq int64
}

// NewSyncer returns a Syncer backed by chats.
func NewSyncer(chats chat.Store, ioTimeout time.Duration, log logrus.FieldLogger) *Syncer {
	if ioTimeout <= 0 {
		ioTimeout = defaultStoreTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Syncer{
		chats:     chats,
		ioTimeout: ioTimeout,
		log:       log.WithField("component", "persistence"),
		queues:    make(map[string]*chatQueue),
	}
}

// Sync upserts the session's messages under its owner and returns the chat id.
// An empty ChatID creates a new record.
func (s *Syncer) Sync(ctx context.Context, sess chat.Session) (string, error) {
	if s.chats == nil {
		return "", fmt.Errorf("no chat store configured")
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.ioTimeout)
	defer cancel()

	messages := sess.Messages()
	id, err := s.chats.UpsertChat(writeCtx, sess.OwnerID, sess.ChatID, chat.StoredTitle(messages), messages)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return "", fmt.Errorf("%w: chat %s", ErrNotFound, sess.ChatID)
		}
		return "", fmt.Errorf("upsert chat: %w", err)
	}
	return id, nil
}

// SyncAsync persists an existing chat in the background. Writes for the same
// chat run one at a time and a snapshot older than one already written is skipped.
func (s *Syncer) SyncAsync(sess chat.Session) {
	if sess.ChatID == "" || len(sess.Turns) == 0 {
		return
	}
	chatID := sess.ChatID
	seq := sess.Turns[len(sess.Turns)-1].Seq
	snapshot := sess.Clone()

	s.mu.Lock()
	q, ok := s.queues[chatID]
	if !ok {
		q = &chatQueue{}
		s.queues[chatID] = q
	}
	q.pending++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.done(chatID, q)

		q.mu.Lock()
		defer q.mu.Unlock()
		if seq <= q.lastSeq {
			return
		}
		if _, err := s.Sync(context.Background(), snapshot); err != nil {
			metrics.PersistFailures.Inc()
			s.log.WithError(err).WithFields(logrus.Fields{"owner": snapshot.OwnerID, "chat": chatID}).Error("failed to persist chat")
			return
		}
		q.lastSeq = seq
	}()
}

// Wait blocks until background writes have finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) done(chatID string, q *chatQueue) {
	s.mu.Lock()
	q.pending--
	if q.pending == 0 {
		delete(s.queues, chatID)
	}
	s.mu.Unlock()
}
