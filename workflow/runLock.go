package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/bsm/redislock"
)

// LockCoordinator serializes run-level mutations through one coarse
// TTL-bound lock per (shop, date) slot. redislock performs the holder-token
// compare-and-swap on refresh/release, so a lock taken over after TTL expiry
// cannot be released by the previous holder.
//
// Callers acquire once per logical mutation and must release on every exit
// path; TTL expiry is the recovery mechanism for a crashed holder.
type LockCoordinator struct {
	ttl time.Duration
}

// RunLock is one held claim. Release is safe to defer; a lost lock makes
// Refresh/Release return ErrLockBusy-compatible errors which callers log
// but do not act on (the mutation already committed or aborted).
type RunLock struct {
	lock *redislock.Lock
}

func NewLockCoordinator() *LockCoordinator {
	return &LockCoordinator{ttl: config.RunLockTTL()}
}

// Acquire claims the run lock for the slot. Returns ErrLockBusy when another
// holder is active; the caller surfaces that without retrying. The lock
// client is resolved per call: the coordinator may be built before the Redis
// connection is established.
func (c *LockCoordinator) Acquire(ctx context.Context, shopId int, date string) (*RunLock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, utils.NewDependencyError("redis", errors.New("lock client not initialized"))
	}
	key := utils.RunLockKey(shopId, date)
	lock, err := locker.Obtain(ctx, key, c.ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, utils.ErrLockBusy
		}
		return nil, utils.NewDependencyError("redis", err)
	}
	return &RunLock{lock: lock}, nil
}

// Refresh extends the claim by a full TTL. Only needed when a single
// operation outlives the TTL (bulk step imports).
func (c *LockCoordinator) Refresh(ctx context.Context, l *RunLock) error {
	if l == nil || l.lock == nil {
		return errors.New("no lock held")
	}
	if err := l.lock.Refresh(ctx, c.ttl, nil); err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return utils.ErrLockBusy
		}
		return utils.NewDependencyError("redis", err)
	}
	return nil
}

// Release frees the claim if still held. Expired locks release as a no-op.
func (c *LockCoordinator) Release(ctx context.Context, l *RunLock) error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Release(ctx); err != nil {
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return utils.NewDependencyError("redis", err)
	}
	return nil
}

// IsHeld reports whether the slot lock currently exists, without claiming it.
// Tick loops use this to skip runs under active mutation.
func (c *LockCoordinator) IsHeld(ctx context.Context, shopId int, date string) (bool, error) {
	rdb := config.GetRedisDB()
	if rdb == nil {
		return false, nil
	}
	n, err := rdb.Exists(ctx, utils.RunLockKey(shopId, date)).Result()
	if err != nil {
		return false, utils.NewDependencyError("redis", err)
	}
	return n > 0, nil
}
