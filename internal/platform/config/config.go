// Package config loads process configuration from the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"warden/internal/authentication"
)

// Config is the full process configuration.
type Config struct {
	Server     Server     `envPrefix:"WARDEN_"`
	Postgres   Postgres   `envPrefix:"WARDEN_POSTGRES_"`
	Redis      Redis      `envPrefix:"WARDEN_REDIS_"`
	Kafka      Kafka      `envPrefix:"WARDEN_KAFKA_"`
	Security   Security   `envPrefix:"WARDEN_"`
	Password   Password   `envPrefix:"WARDEN_PASSWORD_"`
	Actor      Actor      `envPrefix:"WARDEN_ACTOR_"`
	Blacklist  Blacklist  `envPrefix:"WARDEN_BLACKLIST_"`
	Relay      Relay      `envPrefix:"WARDEN_RELAY_"`
	Identities Identities `envPrefix:"WARDEN_"`
}

// Server captures process level settings.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Postgres struct {
	DSN             string        `env:"DSN"`
	MaxConns        int32         `env:"MAX_CONNS" envDefault:"20"`
	MaxConnIdleTime time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"5m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"true"`
}

// Redis is optional; an empty URL disables the Redis-backed stores.
type Redis struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka is optional; no brokers disables the event relay.
type Kafka struct {
	Brokers    []string `env:"BROKERS" envSeparator:","`
	Topic      string   `env:"TOPIC" envDefault:"warden.events"`
	Partitions int32    `env:"PARTITIONS" envDefault:"6"`
	Replicas   int16    `env:"REPLICAS" envDefault:"1"`
	ClientID   string   `env:"CLIENT_ID" envDefault:"warden"`
}

type Security struct {
	EncryptionKey string        `env:"ENCRYPTION_KEY"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"warden"`
	JWTDefaultTTL time.Duration `env:"JWT_DEFAULT_TTL" envDefault:"15m"`
}

type Password struct {
	Strategy         string `env:"STRATEGY" envDefault:"PBKDF2"`
	PBKDF2PRF        string `env:"PBKDF2_PRF" envDefault:"HMACSHA256"`
	PBKDF2Iterations int    `env:"PBKDF2_ITERATIONS" envDefault:"600000"`
	PBKDF2SaltLength int    `env:"PBKDF2_SALT_LENGTH" envDefault:"32"`
	PBKDF2HashLength int    `env:"PBKDF2_HASH_LENGTH" envDefault:"0"`
	BcryptCost       int    `env:"BCRYPT_COST" envDefault:"12"`
	Argon2Time       uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2MemoryKiB  uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Threads    uint8  `env:"ARGON2_THREADS" envDefault:"2"`
	Argon2SaltLength int    `env:"ARGON2_SALT_LENGTH" envDefault:"16"`
	Argon2KeyLength  uint32 `env:"ARGON2_KEY_LENGTH" envDefault:"32"`
}

type Actor struct {
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"15m"`
}

type Blacklist struct {
	PurgeInterval time.Duration `env:"PURGE_INTERVAL" envDefault:"1h"`
}

type Relay struct {
	Name       string        `env:"NAME" envDefault:"kafka"`
	Interval   time.Duration `env:"INTERVAL" envDefault:"1s"`
	BatchSize  int           `env:"BATCH_SIZE" envDefault:"500"`
	GapTimeout time.Duration `env:"GAP_TIMEOUT" envDefault:"10s"`
}

type Identities struct {
	AuthEvents            authentication.Mode `env:"AUTH_EVENTS" envDefault:"event"`
	ConfigurationCacheTTL time.Duration       `env:"CONFIGURATION_CACHE_TTL" envDefault:"1m"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Security.EncryptionKey == "" {
		errs = append(errs, errors.New("WARDEN_ENCRYPTION_KEY is required"))
	} else if key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey); err != nil {
		errs = append(errs, fmt.Errorf("WARDEN_ENCRYPTION_KEY must be base64: %w", err))
	} else if len(key) < 32 {
		errs = append(errs, fmt.Errorf("WARDEN_ENCRYPTION_KEY must decode to at least 32 bytes, got %d", len(key)))
	}
	switch c.Identities.AuthEvents {
	case authentication.ModeEvent, authentication.ModeSilent:
	default:
		errs = append(errs, fmt.Errorf("WARDEN_AUTH_EVENTS must be %q or %q, got %q",
			authentication.ModeEvent, authentication.ModeSilent, c.Identities.AuthEvents))
	}
	if c.Identities.AuthEvents == authentication.ModeSilent && c.Redis.URL == "" {
		errs = append(errs, errors.New("WARDEN_AUTH_EVENTS=silent requires WARDEN_REDIS_URL"))
	}
	if c.Actor.CacheTTL <= 0 {
		errs = append(errs, errors.New("WARDEN_ACTOR_CACHE_TTL must be positive"))
	}
	if c.Identities.ConfigurationCacheTTL <= 0 {
		errs = append(errs, errors.New("WARDEN_CONFIGURATION_CACHE_TTL must be positive"))
	}
	if c.Blacklist.PurgeInterval <= 0 {
		errs = append(errs, errors.New("WARDEN_BLACKLIST_PURGE_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}
