package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "warden/pkg/domain"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.True(t, ActorID(ctx).IsSystem())
	assert.True(t, RealmID(ctx).IsNil())
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestRoundTrip(t *testing.T) {
	realm := id.NewRealmID()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ctx := WithActorID(context.Background(), id.ActorID("actor-1"))
	ctx = WithRealmID(ctx, realm)
	ctx = WithTime(ctx, fixed)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientMetadata(ctx, "10.0.0.1", "curl/8.0")

	assert.Equal(t, id.ActorID("actor-1"), ActorID(ctx))
	assert.Equal(t, realm, RealmID(ctx))
	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
}
