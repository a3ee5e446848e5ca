package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/metrics"
	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// Store caches one live session per owner.
type Store interface {
	Get(ownerID string) (chat.Session, bool)
	// Put replaces the owner's session wholesale and stamps LastTouched.
	Put(ownerID string, session chat.Session)
	Evict(ownerID string)
	// Sweep removes idle and structurally invalid sessions and returns how many were removed.
	Sweep(idleThreshold time.Duration) int
}

// Option customises a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// WithValidator overrides the structural check used by Sweep.
func WithValidator(validate func([]chat.Turn) error) Option {
	return func(s *MemoryStore) { s.validate = validate }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *MemoryStore) {
		if log != nil {
			s.log = log
		}
	}
}

// MemoryStore is a volatile Store safe for concurrent use. Sessions are
// copied on the way in and out so callers never share its state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	now      func() time.Time
	validate func([]chat.Turn) error
	log      logrus.FieldLogger
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]chat.Session),
		now:      time.Now,
		validate: chat.ValidTurns,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "session-store")
	return s
}

// Get returns a copy of the owner's session.
func (s *MemoryStore) Get(ownerID string) (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[ownerID]
	if !ok {
		return chat.Session{}, false
	}
	return session.Clone(), true
}

// Put implements Store.
func (s *MemoryStore) Put(ownerID string, session chat.Session) {
	stored := session.Clone()
	stored.OwnerID = ownerID
	stored.LastTouched = s.now()

	s.mu.Lock()
	s.sessions[ownerID] = stored
	metrics.SessionCacheSize.Set(float64(len(s.sessions)))
	s.mu.Unlock()
}

// Evict implements Store.
func (s *MemoryStore) Evict(ownerID string) {
	s.mu.Lock()
	if _, ok := s.sessions[ownerID]; ok {
		delete(s.sessions, ownerID)
		metrics.SessionEvictions.WithLabelValues("reset").Inc()
	}
	metrics.SessionCacheSize.Set(float64(len(s.sessions)))
	s.mu.Unlock()
}

// Len returns the number of cached sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep implements Store. An entry is idle only when it is strictly older than
// idleThreshold.
func (s *MemoryStore) Sweep(idleThreshold time.Duration) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ownerID, session := range s.sessions {
		reason, err := s.inspect(session, now, idleThreshold)
		if err != nil {
			s.log.WithError(err).WithField("owner", ownerID).Warn("removing session that failed inspection")
			reason = "corrupt"
		}
		if reason == "" {
			continue
		}
		delete(s.sessions, ownerID)
		metrics.SessionEvictions.WithLabelValues(reason).Inc()
		removed++
	}
	metrics.SessionCacheSize.Set(float64(len(s.sessions)))

	if removed > 0 {
		s.log.WithField("removed", removed).Info("swept session cache")
	}
	return removed
}

// inspect returns the eviction reason for one entry, or "" to keep it.
func (s *MemoryStore) inspect(session chat.Session, now time.Time, idle time.Duration) (reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic inspecting session: %v", r)
		}
	}()

	if session.LastTouched.IsZero() || now.Sub(session.LastTouched) > idle {
		return "idle", nil
	}
	if verr := s.validate(session.Turns); verr != nil {
		s.log.WithField("owner", session.OwnerID).Infof("removing invalid session history: %v", verr)
		return "corrupt", nil
	}
	return "", nil
}
