package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStore persists events in the events table (see migrations). The
// (stream_id, version) unique constraint is the optimistic concurrency guard:
// two writers loaded at the same version cannot both insert version+1.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs an event store over the events table.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context, streamID StreamID, afterVersion int64) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT position, stream_id, version, event_type, actor_id, occurred_on, data
		FROM events
		WHERE stream_id = $1 AND version > $2
		ORDER BY version`, string(streamID), afterVersion)
	if err != nil {
		return nil, fmt.Errorf("load stream %s: %w", streamID, err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("load stream %s: %w", streamID, err)
	}
	return records, nil
}

func (s *PostgresStore) Append(ctx context.Context, streams ...Stream) error {
	if len(streams) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, st := range streams {
		var current int64
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = $1`,
			string(st.ID)).Scan(&current)
		if err != nil {
			return fmt.Errorf("read version of %s: %w", st.ID, err)
		}
		if current != st.ExpectedVersion {
			return fmt.Errorf("append %s: expected version %d, stream at %d: %w",
				st.ID, st.ExpectedVersion, current, ErrConcurrencyConflict)
		}
	}

	batch := &pgx.Batch{}
	for _, st := range streams {
		for _, rec := range st.Records {
			batch.Queue(`
				INSERT INTO events (stream_id, stream_kind, version, event_type, actor_id, occurred_on, data)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				string(st.ID), st.ID.Kind(), rec.Version, rec.EventType, rec.ActorID, rec.OccurredOn, rec.Data)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return translateAppendError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateAppendError(err)
	}
	return nil
}

func (s *PostgresStore) ReadAll(ctx context.Context, afterPosition int64, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT position, stream_id, version, event_type, actor_id, occurred_on, data
		FROM events
		WHERE position > $1
		ORDER BY position
		LIMIT $2`, afterPosition, limit)
	if err != nil {
		return nil, fmt.Errorf("read events after %d: %w", afterPosition, err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("read events after %d: %w", afterPosition, err)
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var (
		rec      Record
		streamID string
	)
	err := row.Scan(&rec.Position, &streamID, &rec.Version, &rec.EventType, &rec.ActorID, &rec.OccurredOn, &rec.Data)
	rec.StreamID = StreamID(streamID)
	return rec, err
}

func translateAppendError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("append events: %s: %w", pgErr.ConstraintName, ErrConcurrencyConflict)
	}
	return fmt.Errorf("append events: %w", err)
}
