package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// GeminiCompleter talks to the Gemini developer API.
type GeminiCompleter struct {
	client *genai.Client
	model  string
	log    logrus.FieldLogger
}

// NewGeminiCompleter creates a Gemini-backed completer.
func NewGeminiCompleter(ctx context.Context, apiKey, modelName string, log logrus.FieldLogger) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash-002"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiCompleter{
		client: client,
		model:  strings.TrimPrefix(modelName, "models/"),
		log:    log.WithField("component", "gemini"),
	}, nil
}

// Complete implements Completer.
func (c *GeminiCompleter) Complete(ctx context.Context, history []chat.Turn, cfg GenerationConfig) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, buildContents(history), generateConfig(cfg))
	if err != nil {
		if isGeminiRateLimit(err) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	c.log.WithField("turns", len(history)).Debugf("generated response, length=%d", len(text))
	return text, nil
}

func buildContents(turns []chat.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := genai.RoleUser
		if turn.Speaker == chat.SpeakerAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.Role(role)))
	}
	return contents
}

func generateConfig(cfg GenerationConfig) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
		TopP:        genai.Ptr(cfg.TopP),
	}
	if cfg.TopK > 0 {
		out.TopK = genai.Ptr(float32(cfg.TopK))
	}
	if cfg.MaxTokens > 0 {
		out.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	return out
}

func isGeminiRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || strings.Contains(apiErr.Status, "RESOURCE_EXHAUSTED")
	}
	return IsRateLimitMessage(err.Error())
}
