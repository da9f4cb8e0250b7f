package cluster

import (
	"context"
	"sync"
)

// KeyedLocks is a set of mutexes addressed by string key. Waiters on the same
// key are granted the lock in the order they requested it. The zero value is
// ready to use.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	held    bool
	waiters []chan struct{}
}

// Lock blocks until the lock for key is acquired or ctx is done, in which
// case ErrLockingTimedOut is returned.
func (k *KeyedLocks) Lock(ctx context.Context, key string) error {
	k.mu.Lock()

	if k.locks == nil {
		k.locks = map[string]*keyedLock{}
	}

	l, exists := k.locks[key]
	if !exists {
		l = &keyedLock{}
		k.locks[key] = l
	}

	if !l.held {
		l.held = true
		k.mu.Unlock()
		return nil
	}

	// Enqueue our claim. Unlock hands the lock off by closing the channel.
	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	k.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	k.mu.Lock()
	for i, w := range l.waiters {
		if w == ready {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			k.mu.Unlock()
			return ErrLockingTimedOut
		}
	}
	k.mu.Unlock()

	// The lock was handed to us while the context expired; pass it on.
	k.Unlock(key)

	return ErrLockingTimedOut
}

// Unlock releases the lock for key, handing it to the longest waiting claim
// if there is one.
func (k *KeyedLocks) Unlock(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, exists := k.locks[key]
	if !exists || !l.held {
		return ErrNotLocked
	}

	if len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(next)
		return nil
	}

	delete(k.locks, key)

	return nil
}

// Held returns the number of keys currently locked.
func (k *KeyedLocks) Held() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.locks)
}

// Key returns a Lock bound to a single key.
func (k *KeyedLocks) Key(key string) Lock {
	return keyLock{locks: k, key: key}
}

type keyLock struct {
	locks *KeyedLocks
	key   string
}

func (l keyLock) Lock(ctx context.Context) error {
	return l.locks.Lock(ctx, l.key)
}

func (l keyLock) Unlock(context.Context) error {
	return l.locks.Unlock(l.key)
}
