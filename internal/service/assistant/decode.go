package assistant

import (
	"strconv"
	"strings"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// DecodeStoredMessages turns persisted messages into an ordered, alternating
// turn sequence. Leading assistant messages (the greeting older clients saved)
// and a trailing unanswered user message are dropped; anything else that does
// not fit yields a *ReconstructionError.
func DecodeStoredMessages(chatID string, messages []chat.StoredMessage) ([]chat.Turn, error) {
	turns := make([]chat.Turn, 0, len(messages))
	for i, msg := range messages {
		speaker, ok := speakerForType(msg.Type)
		if !ok {
			return nil, &ReconstructionError{ChatID: chatID, Index: i, Reason: "unknown message type " + strconv.Quote(msg.Type)}
		}
		if len(turns) == 0 && speaker == chat.SpeakerAssistant {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			return nil, &ReconstructionError{ChatID: chatID, Index: i, Reason: "empty content"}
		}
		if len(turns) > 0 && turns[len(turns)-1].Speaker == speaker {
			return nil, &ReconstructionError{ChatID: chatID, Index: i, Reason: "consecutive " + string(speaker) + " messages"}
		}
		turns = append(turns, chat.Turn{
			Seq:     int64(len(turns) + 1),
			Speaker: speaker,
			Text:    msg.Content,
		})
	}

	if n := len(turns); n > 0 && turns[n-1].Speaker == chat.SpeakerUser {
		turns = turns[:n-1]
	}
	return turns, nil
}

func speakerForType(kind string) (chat.Speaker, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case chat.MessageTypeUser:
		return chat.SpeakerUser, true
	case chat.MessageTypeAssistant, chat.MessageTypeBot, chat.MessageTypeModel:
		return chat.SpeakerAssistant, true
	default:
		return "", false
	}
}
