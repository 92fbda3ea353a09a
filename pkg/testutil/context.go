// Package testutil provides fixtures shared by service tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"warden/internal/actor"
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	"warden/pkg/requestcontext"
)

// MasterKey is a fixed 32-byte encryption key for tests.
var MasterKey = []byte("0123456789abcdef0123456789abcdef")

// Context returns a request context acting as actorID at now.
func Context(actorID id.ActorID, now time.Time) context.Context {
	ctx := requestcontext.WithActorID(context.Background(), actorID)
	return requestcontext.WithTime(ctx, now)
}

// Clock is a settable clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Encryption returns a manager keyed with MasterKey.
func Encryption(t testing.TB) *encryption.Manager {
	t.Helper()
	m, err := encryption.NewManager(MasterKey)
	require.NoError(t, err)
	return m
}

// Passwords returns a registry with every strategy, PBKDF2 tuned down for speed.
func Passwords(t testing.TB) *password.Registry {
	t.Helper()
	cfg := password.DefaultConfig()
	cfg.PBKDF2.Iterations = 1000
	cfg.PBKDF2.SaltLength = 16
	cfg.Bcrypt = 4
	cfg.Argon2id.Time = 1
	cfg.Argon2id.MemoryKiB = 1024
	registry, err := password.NewRegistryFromConfig(cfg)
	require.NoError(t, err)
	return registry
}

// Actors returns an actor service over an in-memory cache and reader.
func Actors(actors ...actor.Actor) (*actor.Service, *actor.InMemoryReader) {
	reader := actor.NewInMemoryReader(actors...)
	return actor.NewService(actor.NewMemoryCache(time.Minute), reader), reader
}

// Repository returns a repository over a fresh in-memory store with the
// events registered by register.
func Repository(register ...func(*eventsourcing.Codec)) (*eventsourcing.Repository, *eventsourcing.InMemoryStore) {
	codec := eventsourcing.NewCodec()
	for _, r := range register {
		r(codec)
	}
	store := eventsourcing.NewInMemoryStore()
	return eventsourcing.NewRepository(store, codec), store
}
