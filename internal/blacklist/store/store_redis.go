package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "blacklist:token:"

// RedisStore keeps each blacklisted token as a key whose TTL is its remaining
// lifetime. Redis evicts expired tokens itself, so Purge has nothing to do.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock replaces time.Now when computing key TTLs.
func WithRedisClock(clock func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewRedisStore constructs a store over client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Upsert(ctx context.Context, tokenIDs []string, expiresOn *time.Time) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, tokenID := range tokenIDs {
		key := blacklistKeyPrefix + tokenID
		switch {
		case expiresOn == nil:
			// SET without expiry also clears any previous TTL.
			pipe.Set(ctx, key, "1", 0)
		default:
			ttl := expiresOn.Sub(s.clock())
			if ttl <= 0 {
				pipe.Del(ctx, key)
				continue
			}
			pipe.Set(ctx, key, "1", ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("blacklist tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) FindActive(ctx context.Context, tokenIDs []string, _ time.Time) ([]string, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		keys[i] = blacklistKeyPrefix + tokenID
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query blacklisted tokens: %w", err)
	}
	var out []string
	for i, v := range values {
		if v != nil {
			out = append(out, tokenIDs[i])
		}
	}
	return out, nil
}

// Claim relies on SET NX; an expired key has already been evicted.
func (s *RedisStore) Claim(ctx context.Context, tokenID string, expiresOn *time.Time, _ time.Time) (bool, error) {
	var ttl time.Duration
	if expiresOn != nil {
		ttl = expiresOn.Sub(s.clock())
		if ttl <= 0 {
			return false, nil
		}
	}
	ok, err := s.client.SetNX(ctx, blacklistKeyPrefix+tokenID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim token: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}
