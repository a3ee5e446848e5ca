package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/metrics"
	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
	"github.com/zhouzirui/lifesync/backend/internal/model/note"
	"github.com/zhouzirui/lifesync/backend/internal/service/ai"
	"github.com/zhouzirui/lifesync/backend/internal/service/session"
)

const (
	defaultStoreTimeout      = 5 * time.Second
	defaultCompletionTimeout = 60 * time.Second
)

// DefaultGeneration is the sampling policy used when none is configured.
var DefaultGeneration = ai.GenerationConfig{
	Temperature: 0.7,
	TopP:        0.8,
	TopK:        40,
	MaxTokens:   2048,
}

// Config holds the policy knobs of the service.
type Config struct {
	Generation        ai.GenerationConfig
	CompletionTimeout time.Duration
	StoreTimeout      time.Duration
	// SerializeOwner runs turns of the same owner one at a time instead of
	// letting concurrent turns race with last-writer-wins.
	SerializeOwner bool
}

// Deps are the collaborators of the service.
type Deps struct {
	Sessions  session.Store
	Chats     chat.Store
	Notes     note.Store
	Briefer   Briefer
	Completer ai.Completer
	Clock     func() time.Time
	Log       logrus.FieldLogger
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text   string `json:"message"`
	ChatID string `json:"chatId,omitempty"`
}

// NoteSummary is the outcome of a note summarization.
type NoteSummary struct {
	NoteID  string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Service manages AI conversations: it reconciles history, runs turns and
// keeps the cache and durable store in step.
type Service struct {
	sessions   session.Store
	chats      chat.Store
	notes      note.Store
	completer  ai.Completer
	reconciler *Reconciler
	syncer     *Syncer
	locks      *session.OwnerLocks
	cfg        Config
	log        logrus.FieldLogger
}

// NewService wires the conversation manager.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if cfg.Generation == (ai.GenerationConfig{}) {
		cfg.Generation = DefaultGeneration
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = defaultCompletionTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	svc := &Service{
		sessions:   deps.Sessions,
		chats:      deps.Chats,
		notes:      deps.Notes,
		completer:  deps.Completer,
		reconciler: NewReconciler(deps.Sessions, deps.Chats, deps.Briefer, deps.Clock, cfg.StoreTimeout, log),
		syncer:     NewSyncer(deps.Chats, cfg.StoreTimeout, log),
		cfg:        cfg,
		log:        log.WithField("component", "assistant"),
	}
	if cfg.SerializeOwner {
		svc.locks = session.NewOwnerLocks()
	}
	return svc, nil
}

// HandleChatTurn runs one exchange. chatID may be empty for a new conversation.
// If ctx is cancelled before the reply is recorded the turn is discarded.
func (s *Service) HandleChatTurn(ctx context.Context, ownerID, chatID, text string) (Reply, error) {
	if ownerID == "" {
		return Reply{}, ErrOwnerRequired
	}
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyInput
	}

	if s.locks != nil {
		release, err := s.locks.Lock(ctx, ownerID)
		if err != nil {
			return Reply{}, err
		}
		defer release()
	}

	history := s.reconciler.Reconcile(ctx, ownerID, chatID)
	if err := ctx.Err(); err != nil {
		metrics.TurnsCompleted.WithLabelValues("cancelled").Inc()
		return Reply{}, err
	}

	turns := chat.Append(history.Turns, chat.SpeakerUser, text)
	reply, err := s.complete(ctx, turns)
	if err != nil {
		s.countFailure(err)
		return Reply{}, err
	}
	if err := ctx.Err(); err != nil {
		metrics.TurnsCompleted.WithLabelValues("cancelled").Inc()
		return Reply{}, err
	}
	turns = chat.Append(turns, chat.SpeakerAssistant, reply)

	updated := chat.Session{
		OwnerID:  ownerID,
		ChatID:   history.ChatID,
		Turns:    turns,
		Prior:    history.Prior,
		PriorSeq: history.PriorSeq,
	}
	if updated.ChatID == "" {
		// New conversations are created inline so the caller learns the id.
		id, err := s.syncer.Sync(context.WithoutCancel(ctx), updated)
		if err != nil {
			metrics.PersistFailures.Inc()
			s.log.WithError(err).WithField("owner", ownerID).Error("failed to create chat record")
		} else {
			updated.ChatID = id
		}
		s.sessions.Put(ownerID, updated)
	} else {
		s.sessions.Put(ownerID, updated)
		s.syncer.SyncAsync(updated)
	}

	metrics.TurnsCompleted.WithLabelValues("ok").Inc()
	s.log.WithFields(logrus.Fields{
		"owner":  ownerID,
		"chat":   updated.ChatID,
		"source": history.Source,
		"turns":  len(turns),
	}).Debug("chat turn completed")

	return Reply{Text: reply, ChatID: updated.ChatID}, nil
}

// complete invokes the completion capability and maps its failures.
func (s *Service) complete(ctx context.Context, turns []chat.Turn) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()

	started := time.Now()
	text, err := s.completer.Complete(callCtx, turns, s.cfg.Generation)
	metrics.CompletionDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case errors.Is(err, ai.ErrRateLimited):
			return "", fmt.Errorf("%w: %v", ErrUpstreamRateLimit, err)
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return "", fmt.Errorf("%w: timed out after %s", ErrUpstream, s.cfg.CompletionTimeout)
		default:
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (s *Service) countFailure(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		metrics.TurnsCompleted.WithLabelValues("cancelled").Inc()
	case errors.Is(err, ErrUpstreamRateLimit):
		metrics.TurnsCompleted.WithLabelValues("rate_limited").Inc()
	default:
		metrics.TurnsCompleted.WithLabelValues("error").Inc()
	}
	s.log.WithError(err).Warn("chat turn failed")
}

// NewSession drops the owner's cached conversation.
func (s *Service) NewSession(ownerID string) {
	s.sessions.Evict(ownerID)
}

// DeleteChatRecord removes a chat owned by ownerID.
func (s *Service) DeleteChatRecord(ctx context.Context, id, ownerID string) error {
	if s.chats == nil {
		return fmt.Errorf("no chat store configured")
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if err := s.chats.DeleteChat(writeCtx, id, ownerID); err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return fmt.Errorf("%w: chat %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete chat: %w", err)
	}

	if cached, ok := s.sessions.Get(ownerID); ok && cached.ChatID == id {
		s.sessions.Evict(ownerID)
	}
	return nil
}

// ListChats returns the owner's chats, most recently updated first.
func (s *Service) ListChats(ctx context.Context, ownerID string) ([]chat.Summary, error) {
	if s.chats == nil {
		return nil, fmt.Errorf("no chat store configured")
	}
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.chats.ListChats(readCtx, ownerID)
}

// GetChat returns one of the owner's chats.
func (s *Service) GetChat(ctx context.Context, id, ownerID string) (chat.Record, error) {
	if s.chats == nil {
		return chat.Record{}, fmt.Errorf("no chat store configured")
	}
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	record, err := s.chats.FindChat(readCtx, id, ownerID)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return chat.Record{}, fmt.Errorf("%w: chat %s", ErrNotFound, id)
		}
		return chat.Record{}, err
	}
	return record, nil
}

// SummarizeNote asks the model for a summary of the note whose title matches noteName.
func (s *Service) SummarizeNote(ctx context.Context, ownerID, noteName, instructions string) (NoteSummary, error) {
	if strings.TrimSpace(noteName) == "" {
		return NoteSummary{}, ErrEmptyInput
	}
	if s.notes == nil {
		return NoteSummary{}, fmt.Errorf("%w: note %q", ErrNotFound, noteName)
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	found, err := s.notes.FindByTitle(readCtx, ownerID, noteName)
	cancel()
	if err != nil {
		if errors.Is(err, note.ErrNotFound) {
			return NoteSummary{}, fmt.Errorf("%w: note %q", ErrNotFound, noteName)
		}
		return NoteSummary{}, fmt.Errorf("find note: %w", err)
	}

	prompt := fmt.Sprintf("Please summarize the following note titled %q:\n\n%s", found.Title, found.Content)
	if extra := strings.TrimSpace(instructions); extra != "" {
		prompt += "\n\nAdditional instructions: " + extra
	}

	summary, err := s.complete(ctx, []chat.Turn{{Seq: 1, Speaker: chat.SpeakerUser, Text: prompt}})
	if err != nil {
		return NoteSummary{}, err
	}
	return NoteSummary{NoteID: found.ID, Title: found.Title, Summary: summary}, nil
}

// Wait blocks until background persistence has finished.
func (s *Service) Wait() {
	s.syncer.Wait()
}
