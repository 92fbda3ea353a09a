package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	txcontext "warden/pkg/platform/tx"
)

// PostgresStore persists blacklisted tokens in the blacklisted_tokens table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a store over the blacklisted_tokens table.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts or refreshes every token in one round trip; the last writer's
// expiry wins.
func (s *PostgresStore) Upsert(ctx context.Context, tokenIDs []string, expiresOn *time.Time) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	var exp sql.NullTime
	if expiresOn != nil {
		exp = sql.NullTime{Time: expiresOn.UTC(), Valid: true}
	}
	query := `
		INSERT INTO blacklisted_tokens (token_id, expires_on)
		SELECT unnest($1::text[]), $2
		ON CONFLICT (token_id) DO UPDATE SET
			expires_on = EXCLUDED.expires_on
	`
	if _, err := txcontext.Use(ctx, s.db).ExecContext(ctx, query, pq.Array(tokenIDs), exp); err != nil {
		return fmt.Errorf("blacklist tokens: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActive(ctx context.Context, tokenIDs []string, now time.Time) ([]string, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, `
		SELECT token_id FROM blacklisted_tokens
		WHERE token_id = ANY($1)
		  AND (expires_on IS NULL OR expires_on > $2)
	`, pq.Array(tokenIDs), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("query blacklisted tokens: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tokenID string
		if err := rows.Scan(&tokenID); err != nil {
			return nil, fmt.Errorf("scan blacklisted token: %w", err)
		}
		out = append(out, tokenID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklisted tokens: %w", err)
	}
	return out, nil
}

// Claim inserts tokenID in one statement. A conflicting row is only
// overwritten when it has expired, so concurrent claims affect one row at most.
func (s *PostgresStore) Claim(ctx context.Context, tokenID string, expiresOn *time.Time, now time.Time) (bool, error) {
	var exp sql.NullTime
	if expiresOn != nil {
		exp = sql.NullTime{Time: expiresOn.UTC(), Valid: true}
	}
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO blacklisted_tokens (token_id, expires_on)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO UPDATE SET
			expires_on = EXCLUDED.expires_on
		WHERE blacklisted_tokens.expires_on IS NOT NULL
		  AND blacklisted_tokens.expires_on <= $3
	`, tokenID, exp, now.UTC())
	if err != nil {
		return false, fmt.Errorf("claim token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim token: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx,
		`DELETE FROM blacklisted_tokens WHERE expires_on IS NOT NULL AND expires_on <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge blacklisted tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge blacklisted tokens: %w", err)
	}
	return n, nil
}
