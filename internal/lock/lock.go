// Package lock provides named, TTL-bounded locks so only one ingestion run
// writes to a collection at a time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Locker acquires and releases named locks.
type Locker interface {
	// Acquire takes the lock for ttl. It returns false if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	// Release frees the lock if this holder owns it. Releasing an unheld lock is a no-op.
	Release(ctx context.Context, name string) error
}

// Extender is implemented by lockers whose TTL the holder can renew.
type Extender interface {
	Extend(ctx context.Context, name string, ttl time.Duration) error
}

// ErrNotHeld is returned by Extend when the lock expired or belongs to someone else.
var ErrNotHeld = errors.New("lock not held")

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire takes name unless it is held and unexpired. ttl <= 0 never expires.
func (l *Local) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if exp, ok := l.held[name]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	l.held[name] = exp
	return true, nil
}

// Release frees name.
func (l *Local) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// Extend pushes the expiry of a held, unexpired lock to now+ttl.
func (l *Local) Extend(_ context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	exp, ok := l.held[name]
	if !ok || (!exp.IsZero() && !now.Before(exp)) {
		return ErrNotHeld
	}
	if ttl > 0 {
		l.held[name] = now.Add(ttl)
	}
	return nil
}
