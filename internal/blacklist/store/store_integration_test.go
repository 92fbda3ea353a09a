//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/blacklist/store"
	txcontext "warden/pkg/platform/tx"
	"warden/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "blacklisted_tokens"))
	s.now = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *PostgresStoreSuite) active(ids ...string) []string {
	out, err := s.store.FindActive(context.Background(), ids, s.now)
	s.Require().NoError(err)
	sort.Strings(out)
	return out
}

func (s *PostgresStoreSuite) TestUpsertAndFind() {
	ctx := context.Background()
	future := s.now.Add(time.Hour)
	past := s.now.Add(-time.Hour)

	s.Require().NoError(s.store.Upsert(ctx, []string{"a", "b"}, &future))
	s.Require().NoError(s.store.Upsert(ctx, []string{"c"}, nil))
	s.Require().NoError(s.store.Upsert(ctx, []string{"d"}, &past))

	s.Equal([]string{"a", "b", "c"}, s.active("a", "b", "c", "d", "e"))

	// Last writer wins.
	s.Require().NoError(s.store.Upsert(ctx, []string{"c"}, &past))
	s.Equal([]string{"a", "b"}, s.active("a", "b", "c"))
}

func (s *PostgresStoreSuite) TestPurge() {
	ctx := context.Background()
	past := s.now.Add(-time.Minute)
	future := s.now.Add(time.Minute)
	s.Require().NoError(s.store.Upsert(ctx, []string{"old-1", "old-2"}, &past))
	s.Require().NoError(s.store.Upsert(ctx, []string{"new"}, &future))
	s.Require().NoError(s.store.Upsert(ctx, []string{"forever"}, nil))

	n, err := s.store.Purge(ctx, s.now)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	var remaining int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM blacklisted_tokens`).Scan(&remaining))
	s.Equal(2, remaining)
}

func (s *PostgresStoreSuite) TestClaim() {
	ctx := context.Background()
	future := s.now.Add(time.Hour)
	past := s.now.Add(-time.Hour)

	ok, err := s.store.Claim(ctx, "fresh", &future, s.now)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Claim(ctx, "fresh", &future, s.now)
	s.Require().NoError(err)
	s.False(ok, "active rows are not overwritten")

	s.Require().NoError(s.store.Upsert(ctx, []string{"stale"}, &past))
	ok, err = s.store.Claim(ctx, "stale", &future, s.now)
	s.Require().NoError(err)
	s.True(ok, "expired rows are reclaimed")

	s.Require().NoError(s.store.Upsert(ctx, []string{"forever"}, nil))
	ok, err = s.store.Claim(ctx, "forever", &future, s.now)
	s.Require().NoError(err)
	s.False(ok)

	s.Equal([]string{"forever", "fresh", "stale"}, s.active("fresh", "stale", "forever"))
}

func (s *PostgresStoreSuite) TestUpsertJoinsAmbientTransaction() {
	ctx := context.Background()
	tx, err := s.postgres.DB.BeginTx(ctx, &sql.TxOptions{})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Upsert(txcontext.WithTx(ctx, tx), []string{"rolled-back"}, nil))
	s.Require().NoError(tx.Rollback())

	s.Empty(s.active("rolled-back"))
}

func (s *PostgresStoreSuite) TestRunCommitsOrRollsBack() {
	ctx := context.Background()

	s.Require().NoError(txcontext.Run(ctx, s.postgres.DB, func(ctx context.Context) error {
		return s.store.Upsert(ctx, []string{"committed"}, nil)
	}))

	boom := errors.New("boom")
	err := txcontext.Run(ctx, s.postgres.DB, func(ctx context.Context) error {
		s.Require().NoError(s.store.Upsert(ctx, []string{"discarded"}, nil))
		return boom
	})
	s.ErrorIs(err, boom)

	s.Equal([]string{"committed"}, s.active("committed", "discarded"))
}

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedisStore(s.redis.Client.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.Flush(context.Background()))
}

func (s *RedisStoreSuite) TestPermanentClearsPreviousTTL() {
	ctx := context.Background()
	soon := time.Now().Add(time.Second)
	s.Require().NoError(s.store.Upsert(ctx, []string{"jti"}, &soon))
	s.Require().NoError(s.store.Upsert(ctx, []string{"jti"}, nil))

	ttl, err := s.redis.Client.TTL(ctx, "blacklist:token:jti").Result()
	s.Require().NoError(err)
	s.Equal(time.Duration(-1), ttl)

	out, err := s.store.FindActive(ctx, []string{"jti", "other"}, time.Now())
	s.Require().NoError(err)
	s.Equal([]string{"jti"}, out)
}
