package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// ErrRateLimited marks a completion failure caused by quota exhaustion.
var ErrRateLimited = errors.New("completion rate limited")

// GenerationConfig carries the sampling policy for one completion.
type GenerationConfig struct {
	Temperature float32
	TopP        float32
	TopK        int
	MaxTokens   int
}

// Completer produces the next assistant turn for an ordered history whose
// last turn is the user's message.
type Completer interface {
	Complete(ctx context.Context, history []chat.Turn, cfg GenerationConfig) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, history []chat.Turn, cfg GenerationConfig) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, history []chat.Turn, cfg GenerationConfig) (string, error) {
	return f(ctx, history, cfg)
}

// IsRateLimitMessage reports whether a provider error text describes quota exhaustion.
func IsRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "429"):
		return true
	case strings.Contains(lower, "quota"):
		return true
	case strings.Contains(lower, "resource_exhausted"):
		return true
	case strings.Contains(lower, "ratelimit"), strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		return true
	}
	return false
}

// buildHistoryMessages converts turns into eino messages.
func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Speaker {
		case chat.SpeakerUser:
			history = append(history, schema.UserMessage(turn.Text))
		case chat.SpeakerAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}
