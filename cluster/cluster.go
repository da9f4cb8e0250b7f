// package cluster specifies locking primitives for coordinating mutations of
// shared cluster state.
package cluster

import (
	"context"
	"errors"
)

var (
	// ErrLockingTimedOut is returned when a lock couldn't be acquired by the
	// context deadline.
	ErrLockingTimedOut = errors.New("attempt to acquire lock timed out")
	// ErrNotLocked is returned when releasing a lock that isn't held.
	ErrNotLocked = errors.New("lock is not held")
)

// Lock defines a locking service.
type Lock interface {
	// Lock and Unlock are simple, coarse grain locks based on a pre-defined
	// lock key. The key is an implementation detail that isn't negotiated
	// through this interface. A context is accepted for setting wait bounds.
	Lock(context.Context) error
	Unlock(context.Context) error
}
