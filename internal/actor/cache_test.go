package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "warden/pkg/domain"
)

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute, WithCacheClock(func() time.Time { return now }))

	require.NoError(t, cache.Set(ctx, Actor{ID: "a", DisplayName: "A"}))
	got, err := cache.Get(ctx, []id.ActorID{"a"})
	require.NoError(t, err)
	assert.Equal(t, "A", got["a"].DisplayName)

	now = now.Add(time.Minute)
	got, err = cache.Get(ctx, []id.ActorID{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = cache.Set(ctx, Actor{ID: "shared", DisplayName: "x"})
		}()
		go func() {
			defer wg.Done()
			_, _ = cache.Get(ctx, []id.ActorID{"shared"})
		}()
	}
	wg.Wait()

	got, err := cache.Get(ctx, []id.ActorID{"shared"})
	require.NoError(t, err)
	assert.Equal(t, "x", got["shared"].DisplayName)
}

func TestMaterialize(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryCache(time.Minute), NewInMemoryReader(Actor{ID: "alice", DisplayName: "Alice"}))

	a := NewAudit(2, id.SystemActorID, time.Now(), "alice", time.Now())
	b := NewAudit(1, "alice", time.Now(), "ghost", time.Now())
	require.NoError(t, svc.Materialize(ctx, &a, &b))

	assert.Equal(t, System(), a.CreatedBy)
	assert.Equal(t, "Alice", a.UpdatedBy.DisplayName)
	assert.Equal(t, "Alice", b.CreatedBy.DisplayName)
	assert.True(t, b.UpdatedBy.IsDeleted)
}

func TestMultiReader(t *testing.T) {
	users := NewInMemoryReader(Actor{Type: id.ActorTypeUser, ID: "u1", DisplayName: "User"})
	keys := NewInMemoryReader(Actor{Type: id.ActorTypeAPIKey, ID: "k1", DisplayName: "Key"})

	found, err := MultiReader{users, keys}.FindActors(context.Background(), []id.ActorID{"u1", "k1", "missing"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, id.ActorID("u1"), found[0].ID)
	assert.Equal(t, id.ActorID("k1"), found[1].ID)
}
