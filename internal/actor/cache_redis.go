package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "warden/pkg/domain"
)

const actorKeyPrefix = "actor:"

// RedisCache shares resolved actors across instances as JSON values with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a cache storing JSON actors with ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, ids []id.ActorID) (map[id.ActorID]Actor, error) {
	out := make(map[id.ActorID]Actor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, actorID := range ids {
		keys[i] = actorKeyPrefix + actorID.String()
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read cached actors: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a Actor
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			// Treat undecodable entries as misses; the next Set overwrites them.
			continue
		}
		out[ids[i]] = a
	}
	return out, nil
}

func (c *RedisCache) Set(ctx context.Context, actors ...Actor) error {
	if len(actors) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, a := range actors {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode actor %s: %w", a.ID, err)
		}
		pipe.Set(ctx, actorKeyPrefix+a.ID.String(), raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache actors: %w", err)
	}
	return nil
}

func (c *RedisCache) Remove(ctx context.Context, actorID id.ActorID) error {
	if err := c.client.Del(ctx, actorKeyPrefix+actorID.String()).Err(); err != nil {
		return fmt.Errorf("evict actor %s: %w", actorID, err)
	}
	return nil
}
