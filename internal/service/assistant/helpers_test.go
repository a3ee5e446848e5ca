package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
	"github.com/zhouzirui/lifesync/backend/internal/service/ai"
	"github.com/zhouzirui/lifesync/backend/internal/service/session"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type stubBriefer struct {
	text  string
	err   error
	calls int
}

func (b *stubBriefer) BuildBriefing(context.Context, string) (string, error) {
	b.calls++
	return b.text, b.err
}

// recordingChats wraps a MemoryStore and can inject failures.
type recordingChats struct {
	*chat.MemoryStore
	mu       sync.Mutex
	findErr  error
	writeErr error
	finds    int
	upserts  int
}

func newRecordingChats() *recordingChats {
	return &recordingChats{MemoryStore: chat.NewMemoryStore()}
}

func (r *recordingChats) FindChat(ctx context.Context, id, ownerID string) (chat.Record, error) {
	r.mu.Lock()
	r.finds++
	err := r.findErr
	r.mu.Unlock()
	if err != nil {
		return chat.Record{}, err
	}
	return r.MemoryStore.FindChat(ctx, id, ownerID)
}

func (r *recordingChats) UpsertChat(ctx context.Context, ownerID, id, title string, messages []chat.StoredMessage) (string, error) {
	r.mu.Lock()
	r.upserts++
	err := r.writeErr
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	return r.MemoryStore.UpsertChat(ctx, ownerID, id, title, messages)
}

func (r *recordingChats) counts() (finds, upserts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finds, r.upserts
}

type scriptedCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	calls   int
	history []chat.Turn
	cfg     ai.GenerationConfig
}

func (c *scriptedCompleter) Complete(ctx context.Context, history []chat.Turn, cfg ai.GenerationConfig) (string, error) {
	c.mu.Lock()
	c.calls++
	c.history = chat.CloneTurns(history)
	c.cfg = cfg
	block, reply, err := c.block, c.reply, c.err
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (c *scriptedCompleter) seen() (int, []chat.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.history
}

type harness struct {
	svc       *Service
	sessions  *session.MemoryStore
	chats     *recordingChats
	briefer   *stubBriefer
	completer *scriptedCompleter
}

func newHarness(cfg Config) harness {
	log := quietLog()
	h := harness{
		sessions:  session.NewMemoryStore(session.WithClock(func() time.Time { return testNow }), session.WithLogger(log)),
		chats:     newRecordingChats(),
		briefer:   &stubBriefer{text: "No tasks found.\nNo financial data found.\nNo notes found."},
		completer: &scriptedCompleter{reply: "Hi! How can I help?"},
	}
	svc, err := NewService(Deps{
		Sessions:  h.sessions,
		Chats:     h.chats,
		Briefer:   h.briefer,
		Completer: h.completer,
		Clock:     func() time.Time { return testNow },
		Log:       log,
	}, cfg)
	if err != nil {
		panic(err)
	}
	h.svc = svc
	return h
}

func storedPair(user, assistant string) []chat.StoredMessage {
	return []chat.StoredMessage{
		{ID: 1, Type: chat.MessageTypeUser, Content: user},
		{ID: 2, Type: chat.MessageTypeAssistant, Content: assistant},
	}
}

var errStoreDown = errors.New("store unavailable")
