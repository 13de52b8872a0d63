// Package sync provides the spinlock guarding the memory manager state that is
// shared by all cores.
package sync

import "sync/atomic"

// yieldFn is invoked while spinning. It stays nil until the scheduler
// installs a real yield.
var yieldFn func()

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	archAcquireSpinlock(&l.state, 1)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// archAcquireSpinlock spins on state until it can be swapped from 0 to 1,
// calling yieldFn every attemptsBeforeYielding failed attempts.
func archAcquireSpinlock(state *uint32, attemptsBeforeYielding uint32) {
	for attempts := uint32(0); !atomic.CompareAndSwapUint32(state, 0, 1); {
		if attempts++; attempts < attemptsBeforeYielding {
			continue
		}

		attempts = 0
		if yieldFn != nil {
			yieldFn()
		}
	}
}
