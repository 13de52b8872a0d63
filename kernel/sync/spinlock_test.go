package sync

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinlockMutualExclusion(t *testing.T) {
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl      Spinlock
		wg      sync.WaitGroup
		counter int
	)

	const workers, rounds = 8, 500

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				sl.Acquire()
				counter++
				sl.Release()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, workers*rounds, counter)
}

func TestSpinlockTryToAcquire(t *testing.T) {
	var sl Spinlock

	require.True(t, sl.TryToAcquire())
	require.False(t, sl.TryToAcquire(), "lock is already held")

	sl.Release()
	require.True(t, sl.TryToAcquire())

	// releasing a free lock is a no-op
	sl.Release()
	sl.Release()
	require.True(t, sl.TryToAcquire())
}

func TestSpinlockYieldsWhileSpinning(t *testing.T) {
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)

	var (
		sl     Spinlock
		yields int32
	)

	sl.Acquire()
	yieldFn = func() {
		// hand the lock over after a few yields
		if atomic.AddInt32(&yields, 1) == 3 {
			sl.Release()
		}
	}

	archAcquireSpinlock(&sl.state, 4)
	require.Equal(t, int32(3), atomic.LoadInt32(&yields))
	require.False(t, sl.TryToAcquire())
}
