package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// EinoCompleter runs conversations through an eino chat chain.
type EinoCompleter struct {
	chatModel model.BaseChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	log       logrus.FieldLogger
	topKOnce  sync.Once
}

// NewEinoCompleter compiles the history → model chain.
func NewEinoCompleter(ctx context.Context, chatModel model.BaseChatModel, log logrus.FieldLogger) (*EinoCompleter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("history", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &EinoCompleter{
		chatModel: chatModel,
		chain:     runnable,
		log:       log.WithField("component", "eino"),
	}, nil
}

// ChatModel returns the underlying model.
func (c *EinoCompleter) ChatModel() model.BaseChatModel {
	return c.chatModel
}

// Complete implements Completer. eino's common model options have no top-k,
// so cfg.TopK is ignored on this path; the first such call logs it.
func (c *EinoCompleter) Complete(ctx context.Context, history []chat.Turn, cfg GenerationConfig) (string, error) {
	if cfg.TopK > 0 {
		c.topKOnce.Do(func() {
			c.log.WithField("top_k", cfg.TopK).Warn("top-k is not supported by the eino chat model, ignoring")
		})
	}

	input := map[string]any{
		"history": buildHistoryMessages(history),
	}

	opts := []model.Option{
		model.WithTemperature(cfg.Temperature),
		model.WithTopP(cfg.TopP),
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(cfg.MaxTokens))
	}

	response, err := c.chain.Invoke(ctx, input, compose.WithChatModelOption(opts...))
	if err != nil {
		if IsRateLimitMessage(err.Error()) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", nil
	}

	c.log.WithField("turns", len(history)).Debugf("generated response, length=%d", len(response.Content))
	return response.Content, nil
}
