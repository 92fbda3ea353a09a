package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/authentication"
)

func validKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WARDEN_ENCRYPTION_KEY", validKey())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, authentication.ModeEvent, cfg.Identities.AuthEvents)
	assert.Equal(t, 15*time.Minute, cfg.Actor.CacheTTL)
	assert.Equal(t, "PBKDF2", cfg.Password.Strategy)
	assert.Equal(t, 600000, cfg.Password.PBKDF2Iterations)
	assert.Equal(t, "warden.events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WARDEN_ENCRYPTION_KEY", validKey())
	t.Setenv("WARDEN_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("WARDEN_AUTH_EVENTS", "silent")
	t.Setenv("WARDEN_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WARDEN_BLACKLIST_PURGE_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, authentication.ModeSilent, cfg.Identities.AuthEvents)
	assert.Equal(t, 30*time.Second, cfg.Blacklist.PurgeInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing key", map[string]string{}, "WARDEN_ENCRYPTION_KEY is required"},
		{"short key", map[string]string{"WARDEN_ENCRYPTION_KEY": base64.StdEncoding.EncodeToString([]byte("short"))}, "at least 32 bytes"},
		{"bad auth mode", map[string]string{"WARDEN_ENCRYPTION_KEY": validKey(), "WARDEN_AUTH_EVENTS": "sometimes"}, "WARDEN_AUTH_EVENTS"},
		{"silent without redis", map[string]string{"WARDEN_ENCRYPTION_KEY": validKey(), "WARDEN_AUTH_EVENTS": "silent"}, "requires WARDEN_REDIS_URL"},
		{"bad duration", map[string]string{"WARDEN_ENCRYPTION_KEY": validKey(), "WARDEN_ACTOR_CACHE_TTL": "soon"}, "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WARDEN_ENCRYPTION_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
