// Package authentication records last-authentication timestamps outside the
// event streams, for deployments where raising an event on every successful
// authentication is too costly.
package authentication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mode selects how successful authentications are persisted.
type Mode string

const (
	// ModeEvent raises an event on the authenticated aggregate.
	ModeEvent Mode = "event"
	// ModeSilent writes the timestamp to a Recorder only.
	ModeSilent Mode = "silent"
)

// Recorder stores the last authentication time per key (a stream id).
type Recorder interface {
	Record(ctx context.Context, key string, at time.Time) error
	LastAuthenticated(ctx context.Context, keys ...string) (map[string]time.Time, error)
}

const recorderHash = "authentication:last"

// RedisRecorder keeps every timestamp as a field of one Redis hash.
type RedisRecorder struct {
	client *redis.Client
}

func NewRedisRecorder(client *redis.Client) *RedisRecorder {
	return &RedisRecorder{client: client}
}

func (r *RedisRecorder) Record(ctx context.Context, key string, at time.Time) error {
	if err := r.client.HSet(ctx, recorderHash, key, at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("record authentication of %s: %w", key, err)
	}
	return nil
}

func (r *RedisRecorder) LastAuthenticated(ctx context.Context, keys ...string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := r.client.HMGet(ctx, recorderHash, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read authentication timestamps: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		out[keys[i]] = at
	}
	return out, nil
}

// MemoryRecorder is a process-local Recorder.
type MemoryRecorder struct {
	mu  sync.RWMutex
	ats map[string]time.Time
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{ats: make(map[string]time.Time)}
}

func (r *MemoryRecorder) Record(_ context.Context, key string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ats[key] = at.UTC()
	return nil
}

func (r *MemoryRecorder) LastAuthenticated(_ context.Context, keys ...string) (map[string]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]time.Time, len(keys))
	for _, k := range keys {
		if at, ok := r.ats[k]; ok {
			out[k] = at
		}
	}
	return out, nil
}
