package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically evicts idle and corrupt sessions. It is started by the
// host process and stopped on shutdown.
type Sweeper struct {
	store    Store
	interval time.Duration
	idle     time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper; it does nothing until Start is called.
func NewSweeper(store Store, interval, idle time.Duration, log logrus.FieldLogger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		idle:     idle,
		log:      log.WithField("component", "session-sweeper"),
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)

	s.log.WithField("interval", s.interval).WithField("idle", s.idle).Info("session sweeper started")
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("session sweeper stopped")
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce() (removed int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("session sweep panicked: %v", r)
			removed = 0
		}
	}()
	return s.store.Sweep(s.idle)
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}
