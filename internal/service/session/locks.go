package session

import (
	"context"
	"sync"
)

// OwnerLocks serializes work per owner. Entries are dropped once unused.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	sem  chan struct{}
	refs int
}

// NewOwnerLocks returns an empty lock table.
func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{locks: make(map[string]*ownerLock)}
}

// Lock blocks until the owner's lock is held or ctx is done. The returned
// release func is safe to call more than once.
func (l *OwnerLocks) Lock(ctx context.Context, ownerID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[ownerID]
	if !ok {
		lock = &ownerLock{sem: make(chan struct{}, 1)}
		l.locks[ownerID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(ownerID, lock)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.sem
			l.release(ownerID, lock)
		})
	}, nil
}

func (l *OwnerLocks) release(ownerID string, lock *ownerLock) {
	l.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, ownerID)
	}
	l.mu.Unlock()
}

func (l *OwnerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
