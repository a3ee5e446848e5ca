package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Valid reports whether the speaker is one of the known roles.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAssistant
}

// Turn is one utterance in a conversation. Synthetic marks the bootstrap
// briefing pair, which is never persisted.
type Turn struct {
	Seq       int64   `json:"seq"`
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

const (
	titleLimit   = 30
	defaultTitle = "New Chat"
)

// ValidTurns checks that turns form an ordered sequence of well-formed records.
func ValidTurns(turns []Turn) error {
	if len(turns) == 0 {
		return fmt.Errorf("empty turn sequence")
	}
	for i, turn := range turns {
		if !turn.Speaker.Valid() {
			return fmt.Errorf("turn %d: unknown speaker %q", i, turn.Speaker)
		}
		if i > 0 && turn.Seq <= turns[i-1].Seq {
			return fmt.Errorf("turn %d: sequence %d not after %d", i, turn.Seq, turns[i-1].Seq)
		}
	}
	return nil
}

// NextSeq returns the sequence id for a turn appended after turns.
func NextSeq(turns []Turn) int64 {
	if len(turns) == 0 {
		return 1
	}
	return turns[len(turns)-1].Seq + 1
}

// Append returns a copy of turns with a new turn appended.
func Append(turns []Turn, speaker Speaker, text string) []Turn {
	out := make([]Turn, len(turns), len(turns)+1)
	copy(out, turns)
	return append(out, Turn{Seq: NextSeq(turns), Speaker: speaker, Text: text})
}

// CloneTurns returns an independent copy of turns.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// RealTurns drops the synthetic briefing pair.
func RealTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Synthetic {
			continue
		}
		out = append(out, turn)
	}
	return out
}

func titleFrom(text string) string {
	if utf8.RuneCountInString(text) <= titleLimit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:titleLimit])) + "..."
}
