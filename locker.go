package tcmalloc

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// spinLock is a test-and-set spin lock with a Gosched yield on contention.
// spec.md §5 calls the per-class central-cache lock "a test-and-set spin
// with yield on failure ... appropriate because the critical sections are
// short and the expected contention low" — exactly this primitive.
type spinLock struct {
	held int32
}

func (l *spinLock) Lock() {
	for !atomic.CompareAndSwapInt32(&l.held, 0, 1) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	if !atomic.CompareAndSwapInt32(&l.held, 1, 0) {
		panic("tcmalloc: unlock of unlocked spin lock")
	}
}

var _ sync.Locker = (*spinLock)(nil)
