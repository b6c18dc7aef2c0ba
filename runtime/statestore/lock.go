package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL     = 30 * time.Second
	defaultLockWait    = 10 * time.Second
	lockRetryInterval  = 25 * time.Millisecond
	lockReleaseTimeout = 2 * time.Second
)

// Locker serialises turns of one conversation across every process sharing
// the store. The returned unlock must be called exactly once.
type Locker interface {
	LockConversation(ctx context.Context, id string) (unlock func(), err error)
}

// ErrLockTimeout is returned when a conversation lock could not be acquired in time.
var ErrLockTimeout = errors.New("conversation is locked by another turn")

// releaseLock deletes the lock only if it still carries our token, so a holder
// whose lease expired cannot release its successor's lock.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WithLockTTL sets the lease of a conversation lock. A crashed holder blocks
// the conversation for at most this long. Default: 30s.
func WithLockTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithLockWait bounds how long LockConversation waits. Default: 10s.
func WithLockWait(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// LockConversation implements Locker with SET NX PX and a random token.
func (s *RedisStore) LockConversation(ctx context.Context, id string) (func(), error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	key := s.lockKey(id)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := s.client.SetNX(waitCtx, key, token, s.lockTTL).Result()
		switch {
		case ok:
			return s.unlocker(ctx, key, token), nil
		case err != nil && waitCtx.Err() == nil:
			return nil, fmt.Errorf("redis lock failed: %w", err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, id)
		case <-ticker.C:
		}
	}
}

func (s *RedisStore) unlocker(ctx context.Context, key, token string) func() {
	return func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		_ = releaseLock.Run(relCtx, s.client, []string{key}, token).Err()
	}
}

func (s *RedisStore) lockKey(id string) string {
	return fmt.Sprintf("%s:lock:%s", s.prefix, id)
}
