package assistant

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
	"github.com/zhouzirui/lifesync/backend/internal/service/briefing"
)

func TestReconcileFreshBootstrap(t *testing.T) {
	h := newHarness(Config{})

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", "")

	assert.Equal(t, SourceBootstrap, got.Source)
	assert.Empty(t, got.ChatID)
	require.Len(t, got.Turns, 2)
	assert.Contains(t, got.Turns[0].Text, "No tasks found.")
	assert.Equal(t, briefing.Acknowledgement, got.Turns[1].Text)
	finds, _ := h.chats.counts()
	assert.Zero(t, finds)
}

func TestReconcileCacheHitIgnoresChatID(t *testing.T) {
	h := newHarness(Config{})
	cached := []chat.Turn{
		{Seq: 1, Speaker: chat.SpeakerUser, Text: "a"},
		{Seq: 2, Speaker: chat.SpeakerAssistant, Text: "b"},
	}
	h.sessions.Put("alice", chat.Session{ChatID: "c1", Turns: cached})

	for _, requested := range []string{"", "c1", "other"} {
		got := h.svc.reconciler.Reconcile(context.Background(), "alice", requested)
		assert.Equal(t, SourceCache, got.Source)
		assert.Equal(t, cached, got.Turns)
		assert.Equal(t, "c1", got.ChatID)
	}
	finds, _ := h.chats.counts()
	assert.Zero(t, finds)
	assert.Zero(t, h.briefer.calls)
}

func TestReconcileFromDurable(t *testing.T) {
	h := newHarness(Config{})
	id, err := h.chats.MemoryStore.UpsertChat(context.Background(), "alice", "", "t", storedPair("Hello", "Hi"))
	require.NoError(t, err)

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", id)

	assert.Equal(t, SourceDurable, got.Source)
	assert.Equal(t, id, got.ChatID)
	assert.Equal(t, []chat.Turn{
		{Seq: 1, Speaker: chat.SpeakerUser, Text: "Hello"},
		{Seq: 2, Speaker: chat.SpeakerAssistant, Text: "Hi"},
	}, got.Turns)
}

func TestReconcileShortRecordBootstraps(t *testing.T) {
	h := newHarness(Config{})
	lonely := []chat.StoredMessage{{ID: 1, Type: chat.MessageTypeUser, Content: "lonely"}}
	id, err := h.chats.MemoryStore.UpsertChat(context.Background(), "alice", "", "t", lonely)
	require.NoError(t, err)

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", id)

	assert.Equal(t, SourceBootstrap, got.Source)
	assert.Equal(t, id, got.ChatID)
	assert.Len(t, got.Turns, 2)
	assert.Equal(t, lonely, got.Prior)
	assert.Zero(t, got.PriorSeq)
}

func TestReconcileCorruptRecordStartsNewChat(t *testing.T) {
	h := newHarness(Config{})
	h.chats.findErr = fmt.Errorf("decode messages: %w", chat.ErrCorruptRecord)

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", "c9")

	assert.Equal(t, SourceBootstrap, got.Source)
	assert.Empty(t, got.ChatID)
	assert.Empty(t, got.Prior)
}

func TestReconcileMalformedHistoryCarriesRecord(t *testing.T) {
	h := newHarness(Config{})
	stored := []chat.StoredMessage{
		{ID: 1, Type: "user", Content: "a"},
		{ID: 2, Type: "user", Content: "b"},
	}
	id, err := h.chats.MemoryStore.UpsertChat(context.Background(), "alice", "", "t", stored)
	require.NoError(t, err)

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", id)

	assert.Equal(t, SourceBootstrap, got.Source)
	assert.Equal(t, id, got.ChatID)
	assert.Equal(t, stored, got.Prior)
	assert.Zero(t, got.PriorSeq)
}

func TestReconcileDurableCarriesRecord(t *testing.T) {
	h := newHarness(Config{})
	stored := []chat.StoredMessage{
		{ID: 1, Type: chat.MessageTypeBot, Content: "Welcome back"},
		{ID: 2, Type: chat.MessageTypeUser, Content: "q1"},
		{ID: 3, Type: chat.MessageTypeBot, Content: "a1"},
		{ID: 4, Type: chat.MessageTypeUser, Content: "never answered"},
	}
	id, err := h.chats.MemoryStore.UpsertChat(context.Background(), "alice", "", "t", stored)
	require.NoError(t, err)

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", id)

	assert.Equal(t, SourceDurable, got.Source)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, stored, got.Prior)
	assert.Equal(t, got.Turns[1].Seq, got.PriorSeq)
}

func TestReconcileMissingOrForeignRecordStartsNewChat(t *testing.T) {
	h := newHarness(Config{})
	id, err := h.chats.MemoryStore.UpsertChat(context.Background(), "bob", "", "t", storedPair("x", "y"))
	require.NoError(t, err)

	for _, requested := range []string{id, "does-not-exist"} {
		got := h.svc.reconciler.Reconcile(context.Background(), "alice", requested)
		assert.Equal(t, SourceBootstrap, got.Source)
		assert.Empty(t, got.ChatID)
	}

	h.chats.findErr = errStoreDown
	got := h.svc.reconciler.Reconcile(context.Background(), "alice", id)
	assert.Equal(t, SourceBootstrap, got.Source)
	assert.Empty(t, got.ChatID)
}

func TestReconcileBriefingFailureUsesGreeting(t *testing.T) {
	h := newHarness(Config{})
	h.briefer.err = context.DeadlineExceeded

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", "")

	assert.Equal(t, SourceGreeting, got.Source)
	assert.Equal(t, briefing.GreetingTurns(), got.Turns)
}

func TestReconcileInvalidCacheIsRebuilt(t *testing.T) {
	h := newHarness(Config{})
	h.sessions.Put("alice", chat.Session{ChatID: "c1"})

	got := h.svc.reconciler.Reconcile(context.Background(), "alice", "")

	assert.Equal(t, SourceBootstrap, got.Source)
}

type panickingBriefer struct{}

func (panickingBriefer) BuildBriefing(context.Context, string) (string, error) {
	panic("briefing exploded")
}

func TestReconcilePanicStartsNewChat(t *testing.T) {
	h := newHarness(Config{})
	id, err := h.chats.MemoryStore.UpsertChat(context.Background(), "alice", "", "t",
		[]chat.StoredMessage{{ID: 1, Type: chat.MessageTypeUser, Content: "lonely"}})
	require.NoError(t, err)
	r := NewReconciler(h.sessions, h.chats, panickingBriefer{}, nil, 0, quietLog())

	got := r.Reconcile(context.Background(), "alice", id)

	assert.Equal(t, SourceGreeting, got.Source)
	assert.Empty(t, got.ChatID)
	assert.Equal(t, briefing.GreetingTurns(), got.Turns)
}
