//go:build integration

package eventsourcing_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"warden/internal/eventsourcing"
	"warden/internal/eventsourcing/relay"
	"warden/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *eventsourcing.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = eventsourcing.NewPostgresStore(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "events", "relay_checkpoints"))
}

func records(from, n int64) []eventsourcing.Record {
	out := make([]eventsourcing.Record, n)
	for i := range out {
		out[i] = eventsourcing.Record{
			Version:    from + int64(i),
			EventType:  "test.happened",
			ActorID:    "actor",
			OccurredOn: time.Now().UTC(),
			Data:       []byte(`{"n":1}`),
		}
	}
	return out
}

func (s *PostgresStoreSuite) TestAppendAndLoad() {
	ctx := context.Background()
	id := eventsourcing.NewStreamID("test", uuid.NewString())

	s.Require().NoError(s.store.Append(ctx, eventsourcing.Stream{ID: id, ExpectedVersion: 0, Records: records(1, 3)}))

	all, err := s.store.Load(ctx, id, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(id, all[0].StreamID)
	s.JSONEq(`{"n":1}`, string(all[0].Data))

	tail, err := s.store.Load(ctx, id, 2)
	s.Require().NoError(err)
	s.Require().Len(tail, 1)
	s.Equal(int64(3), tail[0].Version)
}

func (s *PostgresStoreSuite) TestStaleExpectedVersion() {
	ctx := context.Background()
	id := eventsourcing.NewStreamID("test", uuid.NewString())
	s.Require().NoError(s.store.Append(ctx, eventsourcing.Stream{ID: id, ExpectedVersion: 0, Records: records(1, 1)}))

	err := s.store.Append(ctx, eventsourcing.Stream{ID: id, ExpectedVersion: 0, Records: records(1, 1)})
	s.Require().ErrorIs(err, eventsourcing.ErrConcurrencyConflict)
}

// TestConcurrentAppend verifies that concurrent appends at the same expected
// version result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentAppend() {
	ctx := context.Background()
	id := eventsourcing.NewStreamID("test", uuid.NewString())
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Append(ctx, eventsourcing.Stream{ID: id, ExpectedVersion: 0, Records: records(1, 1)})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, eventsourcing.ErrConcurrencyConflict):
				conflictCount.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestMultiStreamAppendIsAtomic() {
	ctx := context.Background()
	a := eventsourcing.NewStreamID("test", uuid.NewString())
	b := eventsourcing.NewStreamID("test", uuid.NewString())
	s.Require().NoError(s.store.Append(ctx, eventsourcing.Stream{ID: b, ExpectedVersion: 0, Records: records(1, 1)}))

	err := s.store.Append(ctx,
		eventsourcing.Stream{ID: a, ExpectedVersion: 0, Records: records(1, 2)},
		eventsourcing.Stream{ID: b, ExpectedVersion: 0, Records: records(1, 1)},
	)
	s.Require().ErrorIs(err, eventsourcing.ErrConcurrencyConflict)

	loaded, err := s.store.Load(ctx, a, 0)
	s.Require().NoError(err)
	s.Empty(loaded)
}

func (s *PostgresStoreSuite) TestReadAllAndCheckpoint() {
	ctx := context.Background()
	id := eventsourcing.NewStreamID("test", uuid.NewString())
	s.Require().NoError(s.store.Append(ctx, eventsourcing.Stream{ID: id, ExpectedVersion: 0, Records: records(1, 4)}))

	page, err := s.store.ReadAll(ctx, 0, 3)
	s.Require().NoError(err)
	s.Require().Len(page, 3)
	s.Less(page[0].Position, page[1].Position)

	checkpoints := relay.NewPostgresCheckpoints(s.postgres.Pool)
	pos, err := checkpoints.Get(ctx, "projections")
	s.Require().NoError(err)
	s.Zero(pos)

	s.Require().NoError(checkpoints.Set(ctx, "projections", page[2].Position))
	s.Require().NoError(checkpoints.Set(ctx, "projections", page[0].Position))
	pos, err = checkpoints.Get(ctx, "projections")
	s.Require().NoError(err)
	s.Equal(page[2].Position, pos, "checkpoints never move backwards")
}
