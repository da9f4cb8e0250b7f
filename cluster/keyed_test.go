package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocks(t *testing.T) {
	var kl KeyedLocks
	ctx := context.Background()

	require.Nil(t, kl.Lock(ctx, "orders"))
	// Distinct keys don't contend.
	require.Nil(t, kl.Lock(ctx, "payments"))
	assert.Equal(t, 2, kl.Held())

	// This lock should time out.
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, ErrLockingTimedOut, kl.Lock(tctx, "orders"))

	require.Nil(t, kl.Unlock("orders"))
	require.Nil(t, kl.Unlock("payments"))
	assert.Equal(t, 0, kl.Held())

	assert.Equal(t, ErrNotLocked, kl.Unlock("orders"))
}

func TestKeyedLocksFIFO(t *testing.T) {
	var kl KeyedLocks
	ctx := context.Background()

	require.Nil(t, kl.Lock(ctx, "orders"))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.Nil(t, kl.Lock(ctx, "orders"))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			require.Nil(t, kl.Unlock("orders"))
		}(i)

		// Wait for the claim to be enqueued before starting the next.
		require.Eventually(t, func() bool {
			kl.mu.Lock()
			defer kl.mu.Unlock()
			return len(kl.locks["orders"].waiters) == i+1
		}, time.Second, time.Millisecond)
	}

	require.Nil(t, kl.Unlock("orders"))
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, kl.Held())
}

func TestKeyLock(t *testing.T) {
	var kl KeyedLocks
	var l Lock = kl.Key("orders")
	ctx := context.Background()

	require.Nil(t, l.Lock(ctx))
	assert.Equal(t, 1, kl.Held())
	require.Nil(t, l.Unlock(ctx))
	assert.Equal(t, 0, kl.Held())
}
