package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxUpdateRetries bounds optimistic retries of UpdateProfile.
const maxUpdateRetries = 5

// RedisStore provides a Redis-backed implementation of Store and ProfileStore.
// It uses JSON serialization and supports automatic TTL-based cleanup of
// conversation state. Profiles do not expire unless WithProfileTTL is set.
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	profileTTL time.Duration
	prefix     string
	lockTTL    time.Duration
	lockWait   time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for conversation states.
// Default is 24 hours. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithProfileTTL sets the time-to-live for user profiles. Default is no expiration.
func WithProfileTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.profileTTL = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys.
// Default is "botservice".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed state store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(24 * time.Hour),
//	    WithPrefix("sippi"),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client:   client,
		ttl:      defaultTTLHours * time.Hour,
		prefix:   "botservice",
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load retrieves a conversation state by ID from Redis.
func (s *RedisStore) Load(ctx context.Context, id string) (*ConversationState, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// Save persists a conversation state to Redis with TTL.
// Uses a pipeline to batch the SET and the user index update into a single round-trip.
func (s *RedisStore) Save(ctx context.Context, state *ConversationState) error {
	if state == nil {
		return ErrInvalidState
	}
	if state.ID == "" {
		return ErrInvalidID
	}

	state.LastAccessedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.conversationKey(state.ID), data, s.ttl)
	if state.UserID != "" {
		indexKey := s.userIndexKey(state.UserID)
		pipe.SAdd(ctx, indexKey, state.ID)
		if s.ttl > 0 {
			pipe.Expire(ctx, indexKey, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Delete removes a conversation state from Redis.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	state, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	delCmd := pipe.Del(ctx, s.conversationKey(id))
	if state.UserID != "" {
		pipe.SRem(ctx, s.userIndexKey(state.UserID), id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	if delCmd.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// UserConversations returns the conversation IDs saved for a user.
func (s *RedisStore) UserConversations(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	return ids, nil
}

// GetProfile implements ProfileStore.
func (s *RedisStore) GetProfile(ctx context.Context, key string, def UserProfile) (UserProfile, error) {
	if key == "" {
		return def, ErrInvalidID
	}
	p, found, err := readProfile(ctx, s.client, s.profileKey(key))
	if err != nil || !found {
		return def, err
	}
	return p, nil
}

// SetProfile implements ProfileStore.
func (s *RedisStore) SetProfile(ctx context.Context, key string, p UserProfile) error {
	if key == "" {
		return ErrInvalidID
	}
	p.UpdatedAt = time.Now()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.client.Set(ctx, s.profileKey(key), data, s.profileTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// UpdateProfile implements ProfileStore with WATCH/MULTI optimistic locking.
// A write that keeps losing the race returns ErrConflict.
func (s *RedisStore) UpdateProfile(ctx context.Context, key string, fn UpdateFunc) (UserProfile, error) {
	if key == "" {
		return UserProfile{}, ErrInvalidID
	}
	redisKey := s.profileKey(key)

	var updated UserProfile
	txf := func(tx *redis.Tx) error {
		current, _, err := readProfile(ctx, tx, redisKey)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		next.UpdatedAt = time.Now()
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, data, s.profileTTL)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return UserProfile{}, err
		}
	}
	return UserProfile{}, fmt.Errorf("%w: key %q", ErrConflict, key)
}

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// readProfile loads a profile, reporting whether one was stored.
func readProfile(ctx context.Context, c stringGetter, key string) (UserProfile, bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return UserProfile{}, false, nil
		}
		return UserProfile{}, false, fmt.Errorf("redis get failed: %w", err)
	}
	var p UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return UserProfile{}, false, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return p, true, nil
}

func (s *RedisStore) conversationKey(id string) string {
	return fmt.Sprintf("%s:conversation:%s", s.prefix, id)
}

func (s *RedisStore) userIndexKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:conversations", s.prefix, userID)
}

func (s *RedisStore) profileKey(key string) string {
	return fmt.Sprintf("%s:profile:%s", s.prefix, key)
}
