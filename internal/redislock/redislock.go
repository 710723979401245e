// Package redislock implements posting.Locker on top of redsync so that several
// replicas of the service serialize postings on the same account.
package redislock

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/go-redsync/redsync/v4"
    "github.com/go-redsync/redsync/v4/redis/goredis/v9"
    goredislib "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

var ErrEmptyKey = errors.New("redislock: empty lock key")

type Options struct {
    // Expiry bounds how long a crashed holder can keep an account locked.
    Expiry     time.Duration
    Tries      int
    RetryDelay time.Duration
    Prefix     string
}

func DefaultOptions() Options {
    return Options{
        Expiry:     10 * time.Second,
        Tries:      64,
        RetryDelay: 100 * time.Millisecond,
        Prefix:     "bankpost:lock:",
    }
}

type Locker struct {
    rs     *redsync.Redsync
    opts   Options
    logger *zap.Logger
}

func New(client goredislib.UniversalClient, opts Options, logger *zap.Logger) *Locker {
    if logger == nil {
        logger = zap.NewNop()
    }
    return &Locker{
        rs:     redsync.New(goredis.NewPool(client)),
        opts:   opts,
        logger: logger,
    }
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
    if strings.TrimSpace(key) == "" {
        return nil, ErrEmptyKey
    }
    name := l.opts.Prefix + key
    mutex := l.rs.NewMutex(
        name,
        redsync.WithExpiry(l.opts.Expiry),
        redsync.WithTries(l.opts.Tries),
        redsync.WithRetryDelay(l.opts.RetryDelay),
    )

    if err := mutex.LockContext(ctx); err != nil {
        return nil, fmt.Errorf("acquire lock %s: %w", name, err)
    }

    var once sync.Once
    return func() {
        once.Do(func() { l.unlock(mutex, name) })
    }, nil
}

// unlock runs detached from the posting's context, which may already be done.
func (l *Locker) unlock(mutex *redsync.Mutex, name string) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
        l.logger.Warn("release lock failed",
            zap.String("lock_key", name),
            zap.Bool("unlock_ok", ok),
            zap.Error(err))
    }
}
