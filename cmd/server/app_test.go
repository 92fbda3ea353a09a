package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/platform/config"
	"warden/internal/token"
	dErrors "warden/pkg/domain-errors"
)

// newApp registers process-wide metrics, so the whole in-memory wiring is
// exercised by a single test.
func TestNewApp_InMemoryWiring(t *testing.T) {
	t.Setenv("WARDEN_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	t.Setenv("WARDEN_POSTGRES_DSN", "")
	t.Setenv("WARDEN_REDIS_URL", "")
	t.Setenv("WARDEN_KAFKA_BROKERS", "")
	t.Setenv("WARDEN_AUTH_EVENTS", "event")
	t.Setenv("WARDEN_PASSWORD_PBKDF2_ITERATIONS", "1000")
	t.Setenv("WARDEN_PASSWORD_BCRYPT_COST", "4")
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(a.close)

	assert.Empty(t, a.healthChecks, "no backing services configured")
	assert.Len(t, a.workers, 1, "only the blacklist purge worker runs without kafka")

	initialized, err := a.Configuration.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, initialized)

	issued, err := a.Tokens.Create(ctx, nil, token.CreateInput{Subject: "ops"})
	require.NoError(t, err)
	claims, err := a.Tokens.Validate(ctx, nil, token.ValidateInput{Token: issued.Token, Consume: true})
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	_, err = a.Tokens.Validate(ctx, nil, token.ValidateInput{Token: issued.Token})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "consumed token is blacklisted: %v", err)
}

func TestPasswordConfig(t *testing.T) {
	p := passwordConfig(config.Password{
		Strategy:         "ARGON2ID",
		PBKDF2PRF:        "HMACSHA512",
		PBKDF2Iterations: 10,
		PBKDF2SaltLength: 8,
		BcryptCost:       5,
		Argon2Time:       2,
		Argon2MemoryKiB:  2048,
		Argon2Threads:    1,
		Argon2SaltLength: 16,
		Argon2KeyLength:  32,
	})
	assert.Equal(t, "ARGON2ID", p.Current)
	assert.Equal(t, "HMACSHA512", string(p.PBKDF2.PRF))
	assert.Equal(t, 5, p.Bcrypt)
	assert.Equal(t, uint32(2048), p.Argon2id.MemoryKiB)
}
