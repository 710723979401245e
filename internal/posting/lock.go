package posting

import (
    "context"
    "sync"
)

// Locker serializes postings per key. The returned release func must be
// called exactly once.
type Locker interface {
    Lock(ctx context.Context, key string) (release func(), err error)
}

// KeyedLocker is an in-process Locker backed by one mutex per key. Entries are
// reference counted and dropped once nobody holds or waits on them.
type KeyedLocker struct {
    mu    sync.Mutex
    locks map[string]*keyedLock
}

type keyedLock struct {
    ch   chan struct{}
    refs int
}

func NewKeyedLocker() *KeyedLocker {
    return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
    l.mu.Lock()
    kl, ok := l.locks[key]
    if !ok {
        kl = &keyedLock{ch: make(chan struct{}, 1)}
        l.locks[key] = kl
    }
    kl.refs++
    l.mu.Unlock()

    select {
    case kl.ch <- struct{}{}:
    case <-ctx.Done():
        l.unref(key, kl)
        return nil, ctx.Err()
    }

    var once sync.Once
    return func() {
        once.Do(func() {
            <-kl.ch
            l.unref(key, kl)
        })
    }, nil
}

func (l *KeyedLocker) unref(key string, kl *keyedLock) {
    l.mu.Lock()
    defer l.mu.Unlock()
    kl.refs--
    if kl.refs == 0 {
        delete(l.locks, key)
    }
}

// size is the number of live keys; used by tests.
func (l *KeyedLocker) size() int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return len(l.locks)
}

func accountLockKey(accountID string) string {
    return "account:" + accountID
}
