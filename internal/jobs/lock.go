package jobs

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Locker guards a job so only one instance runs it at a time.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

type redsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

func NewRedsyncLocker(client redis.UniversalClient, expiry time.Duration) Locker {
	pool := goredis.NewPool(client)
	return &redsyncLocker{rs: redsync.New(pool), expiry: expiry}
}

func (l *redsyncLocker) Lock(ctx context.Context, name string) (func(), error) {
	mutex := l.rs.NewMutex("lock:job:"+name, redsync.WithExpiry(l.expiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		//nolint:errcheck
		mutex.UnlockContext(context.WithoutCancel(ctx))
	}, nil
}
