package indexer

import "sync/atomic"

// IndexLock is a non-blocking build guard: a second build fails fast with
// ErrBuildInProgress instead of queueing behind the first.
type IndexLock struct {
	state atomic.Int32 // 0 = idle, 1 = building
}

// TryAcquire reports whether the caller now holds the lock.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a build currently holds the lock.
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
