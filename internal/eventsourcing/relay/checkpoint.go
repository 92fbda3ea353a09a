package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckpointStore persists the last global log position a relay has published.
type CheckpointStore interface {
	Get(ctx context.Context, name string) (int64, error)
	Set(ctx context.Context, name string, position int64) error
}

type InMemoryCheckpoints struct {
	mu        sync.Mutex
	positions map[string]int64
}

// NewInMemoryCheckpoints constructs an empty checkpoint store.
func NewInMemoryCheckpoints() *InMemoryCheckpoints {
	return &InMemoryCheckpoints{positions: make(map[string]int64)}
}

func (s *InMemoryCheckpoints) Get(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[name], nil
}

func (s *InMemoryCheckpoints) Set(_ context.Context, name string, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[name] = position
	return nil
}

// PostgresCheckpoints stores checkpoints in the relay_checkpoints table.
type PostgresCheckpoints struct {
	pool *pgxpool.Pool
}

// NewPostgresCheckpoints constructs a checkpoint store over relay_checkpoints.
func NewPostgresCheckpoints(pool *pgxpool.Pool) *PostgresCheckpoints {
	return &PostgresCheckpoints{pool: pool}
}

func (s *PostgresCheckpoints) Get(ctx context.Context, name string) (int64, error) {
	var position int64
	err := s.pool.QueryRow(ctx,
		`SELECT position FROM relay_checkpoints WHERE name = $1`, name,
	).Scan(&position)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read relay checkpoint %s: %w", name, err)
	}
	return position, nil
}

func (s *PostgresCheckpoints) Set(ctx context.Context, name string, position int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO relay_checkpoints (name, position, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET position = GREATEST(relay_checkpoints.position, EXCLUDED.position),
		    updated_at = EXCLUDED.updated_at
	`, name, position)
	if err != nil {
		return fmt.Errorf("write relay checkpoint %s: %w", name, err)
	}
	return nil
}
