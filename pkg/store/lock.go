package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KeyedLocker hands out exclusive in-process locks per key. A waiter gives up
// when its context ends or the timeout passes.
type KeyedLocker struct {
	timeout time.Duration

	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewKeyedLocker constructs a locker. A non-positive timeout waits for the
// context only.
func NewKeyedLocker(timeout time.Duration) *KeyedLocker {
	return &KeyedLocker{timeout: timeout, held: make(map[string]chan struct{})}
}

// Lock acquires key and returns its release func.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	var expired <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			released := make(chan struct{})
			l.held[key] = released
			l.mu.Unlock()
			return func() { l.release(key, released) }, nil
		}
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, &BusyError{Err: fmt.Errorf("lock %s: %w", key, ctx.Err())}
		case <-expired:
			return nil, &BusyError{Err: fmt.Errorf("lock %s: timed out after %s", key, l.timeout)}
		}
	}
}

func (l *KeyedLocker) release(key string, ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == ch {
		delete(l.held, key)
		close(ch)
	}
}
