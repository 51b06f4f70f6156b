// db/lock.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
)

// LockHandle is proof of exclusive possession of the mutation right over
// one target's state. The token ties release to the acquiring run; the TTL
// is a stuck-holder safety net, not a substitute for explicit release.
type LockHandle struct {
	Key   string
	Token string
	TTL   time.Duration
}

const acquirePollInterval = 250 * time.Millisecond

// releaseScript deletes the lock key only while this handle still owns it,
// an atomic compare-and-delete. Releasing a lock whose TTL already fired
// and was re-acquired by another run must not evict that run's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// RedisLocker implements distributed mutual exclusion over the state lock
// keys using SET NX with a TTL.
type RedisLocker struct{}

func NewRedisLocker() RedisLocker {
	return RedisLocker{}
}

// Acquire blocks with a bounded wait for the lock key. When the wait
// expires the caller gets a retryable contention error; it must never
// proceed without the lock.
func (RedisLocker) Acquire(ctx context.Context, key string, ttl, maxWait time.Duration) (*LockHandle, error) {
	handle := &LockHandle{Key: key, Token: uuid.NewString(), TTL: ttl}
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := RedisClient.SetNX(ctx, key, handle.Token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock acquisition failed: %w", err)
		}
		if ok {
			logger.Debug("State lock acquired", zap.String("key", key))
			return handle, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %q", gk_errors.ErrLockContention, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}
}

// Release returns the lock. It is safe to call on every exit path; a handle
// whose TTL already expired releases as a no-op.
func (RedisLocker) Release(ctx context.Context, handle *LockHandle) error {
	if handle == nil {
		return nil
	}
	released, err := releaseScript.Run(ctx, RedisClient, []string{handle.Key}, handle.Token).Int()
	if err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	if released == 0 {
		logger.Warn("State lock was no longer held at release",
			zap.String("key", handle.Key))
	} else {
		logger.Debug("State lock released", zap.String("key", handle.Key))
	}
	return nil
}
