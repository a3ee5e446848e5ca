package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTurns(t *testing.T) {
	ok := []Turn{{Seq: 1, Speaker: SpeakerUser, Text: "a"}, {Seq: 2, Speaker: SpeakerAssistant, Text: "b"}}
	assert.NoError(t, ValidTurns(ok))

	assert.Error(t, ValidTurns(nil))
	assert.Error(t, ValidTurns([]Turn{{Seq: 1, Speaker: "system", Text: "x"}}))
	assert.Error(t, ValidTurns([]Turn{{Seq: 2, Speaker: SpeakerUser}, {Seq: 2, Speaker: SpeakerAssistant}}))
}

func TestAppendCopies(t *testing.T) {
	base := []Turn{{Seq: 1, Speaker: SpeakerUser, Text: "a"}}
	next := Append(base, SpeakerAssistant, "b")

	require.Len(t, next, 2)
	assert.Equal(t, int64(2), next[1].Seq)
	assert.Len(t, base, 1)

	next[0].Text = "changed"
	assert.Equal(t, "a", base[0].Text)
	assert.Equal(t, int64(1), NextSeq(nil))
}

func TestTitleFromTurns(t *testing.T) {
	cases := []struct {
		name  string
		turns []Turn
		want  string
	}{
		{"short", []Turn{{Speaker: SpeakerUser, Text: "  Plan my week  "}}, "Plan my week"},
		{"long", []Turn{{Speaker: SpeakerUser, Text: strings.Repeat("a", 40)}}, strings.Repeat("a", 30) + "..."},
		{"exactly thirty", []Turn{{Speaker: SpeakerUser, Text: strings.Repeat("b", 30)}}, strings.Repeat("b", 30)},
		{"skips synthetic", []Turn{
			{Speaker: SpeakerUser, Text: "System: briefing", Synthetic: true},
			{Speaker: SpeakerUser, Text: "Real question"},
		}, "Real question"},
		{"no user turn", []Turn{{Speaker: SpeakerAssistant, Text: "hi"}}, "New Chat"},
		{"multibyte", []Turn{{Speaker: SpeakerUser, Text: strings.Repeat("日", 31)}}, strings.Repeat("日", 30) + "..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StoredTitle(ToStored(tc.turns)))
		})
	}
}

func TestToStoredDropsSynthetic(t *testing.T) {
	turns := []Turn{
		{Seq: 1, Speaker: SpeakerUser, Text: "System: brief", Synthetic: true},
		{Seq: 2, Speaker: SpeakerAssistant, Text: "ack", Synthetic: true},
		{Seq: 3, Speaker: SpeakerUser, Text: "Hello"},
		{Seq: 4, Speaker: SpeakerAssistant, Text: "Hi"},
	}

	stored := ToStored(turns)

	assert.Equal(t, []StoredMessage{
		{ID: 1, Type: MessageTypeUser, Content: "Hello"},
		{ID: 2, Type: MessageTypeAssistant, Content: "Hi"},
	}, stored)
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := Session{
		OwnerID: "u",
		Turns:   []Turn{{Seq: 1, Speaker: SpeakerUser, Text: "a"}},
		Prior:   []StoredMessage{{ID: 1, Type: MessageTypeUser, Content: "old"}},
	}
	c := s.Clone()
	c.Turns[0].Text = "b"
	c.Prior[0].Content = "new"
	assert.Equal(t, "a", s.Turns[0].Text)
	assert.Equal(t, "old", s.Prior[0].Content)
}

func TestSessionMessagesKeepsPrior(t *testing.T) {
	prior := []StoredMessage{
		{ID: 7, Type: MessageTypeBot, Content: "Welcome"},
		{ID: 8, Type: MessageTypeUser, Content: "first"},
		{ID: 9, Type: MessageTypeUser, Content: "again"},
	}
	s := Session{
		Prior: prior,
		Turns: []Turn{
			{Seq: 1, Speaker: SpeakerUser, Text: "System: brief", Synthetic: true},
			{Seq: 2, Speaker: SpeakerAssistant, Text: "ack", Synthetic: true},
			{Seq: 3, Speaker: SpeakerUser, Text: "next"},
			{Seq: 4, Speaker: SpeakerAssistant, Text: "sure"},
		},
	}

	assert.Equal(t, []StoredMessage{
		{ID: 1, Type: MessageTypeBot, Content: "Welcome"},
		{ID: 2, Type: MessageTypeUser, Content: "first"},
		{ID: 3, Type: MessageTypeUser, Content: "again"},
		{ID: 4, Type: MessageTypeUser, Content: "next"},
		{ID: 5, Type: MessageTypeAssistant, Content: "sure"},
	}, s.Messages())
	assert.Equal(t, int64(7), prior[0].ID)
}

func TestSessionMessagesSkipsCoveredTurns(t *testing.T) {
	s := Session{
		Prior: []StoredMessage{
			{ID: 1, Type: MessageTypeUser, Content: "q1"},
			{ID: 2, Type: MessageTypeAssistant, Content: "a1"},
			{ID: 3, Type: MessageTypeUser, Content: "unanswered"},
		},
		PriorSeq: 2,
		Turns: []Turn{
			{Seq: 1, Speaker: SpeakerUser, Text: "q1"},
			{Seq: 2, Speaker: SpeakerAssistant, Text: "a1"},
			{Seq: 3, Speaker: SpeakerUser, Text: "q2"},
			{Seq: 4, Speaker: SpeakerAssistant, Text: "a2"},
		},
	}

	got := s.Messages()

	require.Len(t, got, 5)
	assert.Equal(t, "unanswered", got[2].Content)
	assert.Equal(t, "q2", got[3].Content)
	assert.Equal(t, int64(5), got[4].ID)
}

func TestStoredTitle(t *testing.T) {
	assert.Equal(t, "first", StoredTitle([]StoredMessage{
		{Type: MessageTypeBot, Content: "Welcome"},
		{Type: MessageTypeUser, Content: "  "},
		{Type: MessageTypeUser, Content: " first "},
	}))
	assert.Equal(t, strings.Repeat("x", 30)+"...", StoredTitle([]StoredMessage{{Type: MessageTypeUser, Content: strings.Repeat("x", 31)}}))
	assert.Equal(t, "New Chat", StoredTitle(nil))
}

func TestMemoryStoreOwnerScoping(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	msgs := []StoredMessage{{ID: 1, Type: MessageTypeUser, Content: "a"}}

	id, err := store.UpsertChat(ctx, "alice", "", "first", msgs)
	require.NoError(t, err)

	_, err = store.FindChat(ctx, id, "bob")
	assert.ErrorIs(t, err, ErrChatNotFound)
	_, err = store.UpsertChat(ctx, "bob", id, "stolen", msgs)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, store.DeleteChat(ctx, id, "bob"), ErrChatNotFound)

	record, err := store.FindChat(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, "first", record.Title)

	list, err := store.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	require.NoError(t, store.DeleteChat(ctx, id, "alice"))
	_, err = store.FindChat(ctx, id, "alice")
	assert.ErrorIs(t, err, ErrChatNotFound)
}
