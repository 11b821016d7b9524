package inbox

import (
	"sync"
	"sync/atomic"
)

// TypingLock admits at most one reply cycle at a time.
type TypingLock struct {
	held atomic.Bool
}

// Token is proof of holding the lock. Release is safe to call more than once.
type Token struct {
	lock *TypingLock
	once sync.Once
}

// TryAcquire never blocks: when the lock is held it returns false and the
// caller drops its work.
func (l *TypingLock) TryAcquire() (*Token, bool) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false
	}
	return &Token{lock: l}, true
}

func (l *TypingLock) Held() bool { return l.held.Load() }

func (t *Token) Release() {
	t.once.Do(func() { t.lock.held.Store(false) })
}
