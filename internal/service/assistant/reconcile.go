package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/metrics"
	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
	"github.com/zhouzirui/lifesync/backend/internal/service/briefing"
	"github.com/zhouzirui/lifesync/backend/internal/service/session"
)

// Briefer builds the context briefing for a fresh session.
type Briefer interface {
	BuildBriefing(ctx context.Context, ownerID string) (string, error)
}

// Reconciliation sources.
const (
	SourceCache     = "cache"
	SourceDurable   = "durable"
	SourceBootstrap = "bootstrap"
	SourceGreeting  = "greeting"
)

// History is a ready-to-use conversation and the chat it belongs to.
// ChatID is empty when the conversation has not been persisted yet. Prior and
// PriorSeq carry the stored record forward so a rewrite never drops it.
type History struct {
	Turns    []chat.Turn
	ChatID   string
	Source   string
	Prior    []chat.StoredMessage
	PriorSeq int64
}

// Reconciler produces the history a new turn is appended to.
type Reconciler struct {
	sessions  session.Store
	chats     chat.Store
	briefer   Briefer
	now       func() time.Time
	ioTimeout time.Duration
	log       logrus.FieldLogger
}

// NewReconciler wires the cache, the durable store and the briefing source.
func NewReconciler(sessions session.Store, chats chat.Store, briefer Briefer, now func() time.Time, ioTimeout time.Duration, log logrus.FieldLogger) *Reconciler {
	if now == nil {
		now = time.Now
	}
	if ioTimeout <= 0 {
		ioTimeout = defaultStoreTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{
		sessions:  sessions,
		chats:     chats,
		briefer:   briefer,
		now:       now,
		ioTimeout: ioTimeout,
		log:       log.WithField("component", "reconciler"),
	}
}

// Reconcile never fails: every problem degrades to a bootstrapped history.
// A cached session wins regardless of chatID since the cache holds one live
// conversation per owner.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID, chatID string) (h History) {
	defer func() {
		if rec := recover(); rec != nil {
			// The stored record was not read, so it must not be rewritten.
			r.log.WithField("owner", ownerID).Errorf("reconcile panicked, using greeting in a new chat: %v", rec)
			h = History{Turns: briefing.GreetingTurns(), Source: SourceGreeting}
		}
		metrics.ReconcileSource.WithLabelValues(h.Source).Inc()
	}()

	if cached, ok := r.sessions.Get(ownerID); ok {
		if err := chat.ValidTurns(cached.Turns); err == nil {
			metrics.SessionCacheHits.Inc()
			if chatID != "" && cached.ChatID != "" && cached.ChatID != chatID {
				r.log.WithFields(logrus.Fields{
					"owner":     ownerID,
					"requested": chatID,
					"cached":    cached.ChatID,
				}).Warn("serving cached session for a different chat")
			}
			id := cached.ChatID
			if id == "" {
				id = chatID
			}
			return History{Turns: cached.Turns, ChatID: id, Source: SourceCache, Prior: cached.Prior, PriorSeq: cached.PriorSeq}
		}
		r.log.WithField("owner", ownerID).Info("cached session is invalid, rebuilding")
	}
	metrics.SessionCacheMisses.Inc()

	if chatID == "" {
		return r.bootstrap(ctx, ownerID, "")
	}

	record, turns, err := r.fromDurable(ctx, ownerID, chatID)
	if err != nil {
		var recErr *ReconstructionError
		if errors.As(err, &recErr) {
			r.log.WithError(err).WithField("owner", ownerID).Warn("persisted history unusable, bootstrapping")
			return r.bootstrap(ctx, ownerID, chatID).carry(record.Messages, 0)
		}
		// A corrupt or unreachable record is left untouched.
		r.log.WithError(err).WithField("owner", ownerID).Warn("chat record unavailable, starting a new chat")
		return r.bootstrap(ctx, ownerID, "")
	}
	if len(turns) < 2 {
		return r.bootstrap(ctx, ownerID, chatID).carry(record.Messages, 0)
	}
	durable := History{Turns: turns, ChatID: chatID, Source: SourceDurable}
	return durable.carry(record.Messages, turns[len(turns)-1].Seq)
}

func (r *Reconciler) fromDurable(ctx context.Context, ownerID, chatID string) (chat.Record, []chat.Turn, error) {
	if r.chats == nil {
		return chat.Record{}, nil, fmt.Errorf("no chat store configured")
	}
	readCtx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()

	record, err := r.chats.FindChat(readCtx, chatID, ownerID)
	if err != nil {
		return chat.Record{}, nil, fmt.Errorf("find chat %s: %w", chatID, err)
	}
	if record.OwnerID != "" && record.OwnerID != ownerID {
		return chat.Record{}, nil, fmt.Errorf("find chat %s: %w", chatID, chat.ErrChatNotFound)
	}
	turns, err := DecodeStoredMessages(chatID, record.Messages)
	return record, turns, err
}

func (r *Reconciler) bootstrap(ctx context.Context, ownerID, chatID string) History {
	if r.briefer == nil {
		return History{Turns: briefing.GreetingTurns(), ChatID: chatID, Source: SourceGreeting}
	}
	text, err := r.briefer.BuildBriefing(ctx, ownerID)
	if err != nil {
		r.log.WithError(err).WithField("owner", ownerID).Warn("briefing unavailable, using greeting")
		return History{Turns: briefing.GreetingTurns(), ChatID: chatID, Source: SourceGreeting}
	}
	return History{Turns: briefing.BootstrapTurns(text, r.now()), ChatID: chatID, Source: SourceBootstrap}
}

func (h History) carry(prior []chat.StoredMessage, seq int64) History {
	h.Prior = chat.CloneStored(prior)
	h.PriorSeq = seq
	return h
}
