package blacklist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"warden/internal/blacklist/store"
)

// ServiceSuite runs the same behaviour against every store whose time can be
// controlled in-process.
type ServiceSuite struct {
	suite.Suite
	newStore func(clock func() time.Time) (Store, func(time.Duration))

	ctx     context.Context
	now     time.Time
	service *Service
	advance func(time.Duration)
}

func TestServiceSuite_InMemory(t *testing.T) {
	suite.Run(t, &ServiceSuite{newStore: func(func() time.Time) (Store, func(time.Duration)) {
		return store.NewInMemoryStore(), func(time.Duration) {}
	}})
}

func TestServiceSuite_Redis(t *testing.T) {
	suite.Run(t, &ServiceSuite{newStore: func(clock func() time.Time) (Store, func(time.Duration)) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return store.NewRedisStore(client, store.WithRedisClock(clock)), mr.FastForward
	}})
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	st, fastForward := s.newStore(clock)
	s.service = New(st, WithClock(clock))
	s.advance = func(d time.Duration) {
		s.now = s.now.Add(d)
		fastForward(d)
	}
}

func (s *ServiceSuite) blacklisted(ids ...string) map[string]struct{} {
	set, err := s.service.GetBlacklisted(s.ctx, ids)
	s.Require().NoError(err)
	return set
}

func (s *ServiceSuite) TestBlacklist() {
	s.Run("permanent and future expiries are revoked", func() {
		exp := s.now.Add(time.Hour)
		s.Require().NoError(s.service.Blacklist(s.ctx, []string{"forever"}, nil))
		s.Require().NoError(s.service.Blacklist(s.ctx, []string{"hour"}, &exp))

		set := s.blacklisted("forever", "hour", "unknown")
		s.Contains(set, "forever")
		s.Contains(set, "hour")
		s.NotContains(set, "unknown")
	})

	s.Run("ids are trimmed and deduplicated", func() {
		s.Require().NoError(s.service.Blacklist(s.ctx, []string{"  spaced ", "spaced", ""}, nil))
		s.Contains(s.blacklisted("spaced"), "spaced")

		ok, err := s.service.IsBlacklisted(s.ctx, " spaced ")
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("blank ids are never revoked", func() {
		ok, err := s.service.IsBlacklisted(s.ctx, "  ")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("empty input is a no-op", func() {
		s.Require().NoError(s.service.Blacklist(s.ctx, nil, nil))
		s.Empty(s.blacklisted())
	})

	s.Run("last writer wins on expiry", func() {
		short := s.now.Add(time.Minute)
		s.Require().NoError(s.service.Blacklist(s.ctx, []string{"rewritten"}, nil))
		s.Require().NoError(s.service.Blacklist(s.ctx, []string{"rewritten"}, &short))

		s.advance(2 * time.Minute)
		s.NotContains(s.blacklisted("rewritten"), "rewritten")
	})
}

func (s *ServiceSuite) TestConsume() {
	exp := s.now.Add(time.Minute)

	first, err := s.service.Consume(s.ctx, " jti-c ", &exp)
	s.Require().NoError(err)
	s.True(first)
	s.Contains(s.blacklisted("jti-c"), "jti-c")

	second, err := s.service.Consume(s.ctx, "jti-c", &exp)
	s.Require().NoError(err)
	s.False(second, "an active id cannot be consumed twice")

	s.Require().NoError(s.service.Blacklist(s.ctx, []string{"revoked"}, nil))
	ok, err := s.service.Consume(s.ctx, "revoked", &exp)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.service.Consume(s.ctx, "", &exp)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ServiceSuite) TestConsume_Concurrent() {
	exp := s.now.Add(time.Minute)
	const callers = 16
	var (
		wg      sync.WaitGroup
		claimed atomic.Int32
		start   = make(chan struct{})
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, err := s.service.Consume(s.ctx, "shared", &exp); err == nil && ok {
				claimed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	s.Equal(int32(1), claimed.Load())
}

func (s *ServiceSuite) TestExpiry() {
	exp := s.now.Add(10 * time.Minute)
	s.Require().NoError(s.service.Blacklist(s.ctx, []string{"jti-1"}, &exp))

	s.advance(9 * time.Minute)
	s.Contains(s.blacklisted("jti-1"), "jti-1")

	s.advance(time.Minute)
	s.NotContains(s.blacklisted("jti-1"), "jti-1", "expiry equal to now is no longer revoked")

	past := s.now.Add(-time.Second)
	s.Require().NoError(s.service.Blacklist(s.ctx, []string{"already-expired"}, &past))
	s.NotContains(s.blacklisted("already-expired"), "already-expired")
}

func TestPurge_InMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := New(store.NewInMemoryStore(), WithClock(func() time.Time { return now }))

	expired := now.Add(-time.Minute)
	boundary := now
	future := now.Add(time.Minute)
	require.NoError(t, svc.Blacklist(ctx, []string{"expired"}, &expired))
	require.NoError(t, svc.Blacklist(ctx, []string{"boundary"}, &boundary))
	require.NoError(t, svc.Blacklist(ctx, []string{"future"}, &future))
	require.NoError(t, svc.Blacklist(ctx, []string{"forever"}, nil))

	n, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	set, err := svc.GetBlacklisted(ctx, []string{"expired", "boundary", "future", "forever"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"future": {}, "forever": {}}, set)
}

type failingStore struct{ *store.InMemoryStore }

func (*failingStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is down")
}

func TestPurgeWorker(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		w := NewPurgeWorker(New(store.NewInMemoryStore()), 5*time.Millisecond)

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		time.Sleep(20 * time.Millisecond)
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("purge failures do not stop the worker", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		st := &failingStore{InMemoryStore: store.NewInMemoryStore()}
		w := NewPurgeWorker(New(st), 5*time.Millisecond)
		require.ErrorIs(t, w.Run(ctx), context.DeadlineExceeded)
	})
}
