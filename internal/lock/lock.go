// Package lock guards a draft against concurrent deploys. Holding the lock for a
// draft means one submission for it is in flight.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrSubmissionInFlight = errors.New("a submission for this draft is already in progress")

// Locker hands out one in-flight token per key. Release is idempotent.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	// Held reports whether a token for key is currently out.
	Held(ctx context.Context, key string) (bool, error)
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker keeps tokens in process. Suitable for a single instance.
func NewMemoryLocker() Locker {
	return &memoryLocker{held: make(map[string]struct{})}
}

func (l *memoryLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrSubmissionInFlight
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

func (l *memoryLocker) Held(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok, nil
}
