package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/actor"
	apikeymodels "warden/internal/apikey/models"
	apikeyservice "warden/internal/apikey/service"
	apikeystore "warden/internal/apikey/store"
	"warden/internal/authentication"
	"warden/internal/blacklist"
	blackliststore "warden/internal/blacklist/store"
	configmodels "warden/internal/configuration/models"
	configservice "warden/internal/configuration/service"
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	"warden/internal/eventsourcing/relay"
	otpmodels "warden/internal/otp/models"
	otpservice "warden/internal/otp/service"
	otpstore "warden/internal/otp/store"
	"warden/internal/password"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/kafka"
	"warden/internal/platform/postgres"
	"warden/internal/platform/redis"
	"warden/internal/projection"
	realmmodels "warden/internal/realm/models"
	realmservice "warden/internal/realm/service"
	realmstore "warden/internal/realm/store"
	sessionmodels "warden/internal/session/models"
	sessionservice "warden/internal/session/service"
	sessionstore "warden/internal/session/store"
	"warden/internal/token"
	usermodels "warden/internal/user/models"
	userservice "warden/internal/user/service"
	userstore "warden/internal/user/store"
)

// app holds the wired services and the resources the process owns.
type app struct {
	Configuration *configservice.Service
	Realms        *realmservice.Service
	Users         *userservice.Service
	APIKeys       *apikeyservice.Service
	Sessions      *sessionservice.Service
	OTPs          *otpservice.Service
	Tokens        *token.Service

	healthChecks map[string]httpserver.HealthCheck
	workers      []func(ctx context.Context) error
	closers      []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close resource", "error", err)
		}
	}
}

type infrastructure struct {
	db     *postgres.Databases
	cache  *redis.Client
	broker *kgo.Client
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{healthChecks: map[string]httpserver.HealthCheck{}}
	if err := a.wire(ctx, cfg, log); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := a.connect(ctx, cfg)
	if err != nil {
		return err
	}

	enc, err := encryption.NewManagerFromBase64(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	passwords, err := password.NewRegistryFromConfig(passwordConfig(cfg.Password))
	if err != nil {
		return fmt.Errorf("password strategies: %w", err)
	}

	codec := eventsourcing.NewCodec()
	configmodels.RegisterEvents(codec)
	realmmodels.RegisterEvents(codec)
	usermodels.RegisterEvents(codec)
	apikeymodels.RegisterEvents(codec)
	sessionmodels.RegisterEvents(codec)
	otpmodels.RegisterEvents(codec)

	var events eventsourcing.EventStore
	if infra.db != nil {
		events = eventsourcing.NewPostgresStore(infra.db.Pool)
	} else {
		log.Warn("postgres not configured, events are kept in memory")
		events = eventsourcing.NewInMemoryStore()
	}
	repo := eventsourcing.NewRepository(events, codec,
		eventsourcing.WithLogger(log),
		eventsourcing.WithMetrics(eventsourcing.NewMetrics()),
	)

	realmViews := realmstore.NewInMemory()
	userViews := userstore.NewInMemory()
	apiKeyViews := apikeystore.NewInMemory()
	sessionViews := sessionstore.NewInMemory()
	otpViews := otpstore.NewInMemory()

	var actorCache actor.Cache
	if infra.cache != nil {
		actorCache = actor.NewRedisCache(infra.cache.Client, cfg.Actor.CacheTTL)
	} else {
		actorCache = actor.NewMemoryCache(cfg.Actor.CacheTTL)
	}
	actors := actor.NewService(actorCache, actor.MultiReader{userViews, apiKeyViews},
		actor.WithLogger(log),
		actor.WithMetrics(actor.NewMetrics()),
	)

	a.Configuration = configservice.New(repo, enc, actors, passwords,
		configservice.WithLogger(log),
		configservice.WithCacheTTL(cfg.Identities.ConfigurationCacheTTL),
	)
	if err := a.bootstrap(ctx, log); err != nil {
		return err
	}
	a.Realms = realmservice.New(repo, realmViews, enc, actors, passwords,
		realmservice.WithLogger(log),
		realmservice.WithProjector(realmViews),
		realmservice.WithConfiguration(a.Configuration),
	)
	a.Users = userservice.New(repo, userViews, a.Realms, passwords, actors,
		userservice.WithLogger(log),
		userservice.WithProjector(userViews),
	)
	apiKeyOpts := []apikeyservice.Option{
		apikeyservice.WithLogger(log),
		apikeyservice.WithProjector(apiKeyViews),
	}
	if cfg.Identities.AuthEvents == authentication.ModeSilent {
		apiKeyOpts = append(apiKeyOpts, apikeyservice.WithSilentAuthentication(newRecorder(infra)))
	}
	a.APIKeys = apikeyservice.New(repo, apiKeyViews, passwords, actors, apiKeyOpts...)
	a.Sessions = sessionservice.New(repo, sessionViews, a.Users, passwords, actors,
		sessionservice.WithLogger(log),
		sessionservice.WithProjector(sessionViews),
	)
	a.OTPs = otpservice.New(repo, otpViews, passwords, actors,
		otpservice.WithLogger(log),
		otpservice.WithProjector(otpViews),
	)

	revoked := blacklist.New(newBlacklistStore(infra),
		blacklist.WithLogger(log),
		blacklist.WithMetrics(blacklist.NewMetrics()),
	)
	a.workers = append(a.workers, blacklist.NewPurgeWorker(revoked, cfg.Blacklist.PurgeInterval).Run)
	a.Tokens = token.New(a.Realms, revoked,
		token.WithLogger(log),
		token.WithIssuer(cfg.Security.JWTIssuer),
		token.WithDefaultLifetime(cfg.Security.JWTDefaultTTL),
	)

	rebuilder := projection.NewRebuilder(events, []projection.Binding{
		projection.For(realmmodels.Kind, repo, func() *realmmodels.Realm { return &realmmodels.Realm{} }, realmViews.Project),
		projection.For(usermodels.Kind, repo, func() *usermodels.User { return &usermodels.User{} }, userViews.Project),
		projection.For(apikeymodels.Kind, repo, func() *apikeymodels.APIKey { return &apikeymodels.APIKey{} }, apiKeyViews.Project),
		projection.For(sessionmodels.Kind, repo, func() *sessionmodels.Session { return &sessionmodels.Session{} }, sessionViews.Project),
		projection.For(otpmodels.Kind, repo, func() *otpmodels.OneTimePassword { return &otpmodels.OneTimePassword{} }, otpViews.Project),
	}, projection.WithLogger(log))
	projected, err := rebuilder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild read models: %w", err)
	}
	log.Info("read models rebuilt", "aggregates", projected)

	if infra.broker != nil {
		if err := a.startRelay(ctx, cfg, log, infra, events); err != nil {
			return err
		}
	}
	return nil
}

// connect opens the optional backing services. A missing DSN, URL or broker
// list leaves the matching field nil.
func (a *app) connect(ctx context.Context, cfg config.Config) (infrastructure, error) {
	var infra infrastructure

	if cfg.Postgres.DSN != "" {
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(cfg.Postgres.DSN); err != nil {
				return infra, fmt.Errorf("migrate: %w", err)
			}
		}
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return infra, fmt.Errorf("postgres: %w", err)
		}
		infra.db = db
		a.closers = append(a.closers, db.Close)
		a.healthChecks["postgres"] = db.Health
	}

	cache, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return infra, fmt.Errorf("redis: %w", err)
	}
	if cache != nil {
		infra.cache = cache
		a.closers = append(a.closers, cache.Close)
		if err := cache.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return infra, fmt.Errorf("redis metrics: %w", err)
		}
		a.healthChecks["redis"] = cache.Health
	}

	broker, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return infra, fmt.Errorf("kafka: %w", err)
	}
	if broker != nil {
		infra.broker = broker
		a.closers = append(a.closers, func() error { broker.Close(); return nil })
		a.healthChecks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, broker) }
	}
	return infra, nil
}

// bootstrap initializes the configuration singleton on first start.
func (a *app) bootstrap(ctx context.Context, log *slog.Logger) error {
	initialized, err := a.Configuration.IsInitialized(ctx)
	if err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}
	if initialized {
		return nil
	}
	if _, err := a.Configuration.Initialize(ctx, configservice.InitializeInput{}); err != nil {
		return fmt.Errorf("initialize configuration: %w", err)
	}
	log.Info("configuration initialized")
	return nil
}

func (a *app) startRelay(ctx context.Context, cfg config.Config, log *slog.Logger, infra infrastructure, events eventsourcing.EventStore) error {
	if err := kafka.EnsureTopic(ctx, infra.broker, cfg.Kafka); err != nil {
		return fmt.Errorf("ensure topic: %w", err)
	}
	var checkpoints relay.CheckpointStore
	if infra.db != nil {
		checkpoints = relay.NewPostgresCheckpoints(infra.db.Pool)
	} else {
		checkpoints = relay.NewInMemoryCheckpoints()
	}
	worker := relay.NewWorker(cfg.Relay.Name, events, relay.NewKafkaPublisher(infra.broker, cfg.Kafka.Topic), checkpoints,
		relay.WithLogger(log),
		relay.WithMetrics(relay.NewMetrics()),
		relay.WithInterval(cfg.Relay.Interval),
		relay.WithBatchSize(cfg.Relay.BatchSize),
		relay.WithGapTimeout(cfg.Relay.GapTimeout),
		relay.WithCircuitBreaker(relay.NewCircuitBreaker(5, cfg.Relay.GapTimeout)),
	)
	a.workers = append(a.workers, func(ctx context.Context) error {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("relay %s: %w", cfg.Relay.Name, err)
		}
		return nil
	})
	return nil
}

func newBlacklistStore(infra infrastructure) blacklist.Store {
	switch {
	case infra.cache != nil:
		return blackliststore.NewRedisStore(infra.cache.Client)
	case infra.db != nil:
		return blackliststore.NewPostgresStore(infra.db.DB)
	default:
		return blackliststore.NewInMemoryStore()
	}
}

func newRecorder(infra infrastructure) authentication.Recorder {
	if infra.cache != nil {
		return authentication.NewRedisRecorder(infra.cache.Client)
	}
	return authentication.NewMemoryRecorder()
}

func passwordConfig(p config.Password) password.Config {
	return password.Config{
		Current: p.Strategy,
		PBKDF2: password.PBKDF2Settings{
			PRF:        password.PRF(p.PBKDF2PRF),
			Iterations: p.PBKDF2Iterations,
			SaltLength: p.PBKDF2SaltLength,
			HashLength: p.PBKDF2HashLength,
		},
		Bcrypt: p.BcryptCost,
		Argon2id: password.Argon2idSettings{
			Time:       p.Argon2Time,
			MemoryKiB:  p.Argon2MemoryKiB,
			Threads:    p.Argon2Threads,
			SaltLength: p.Argon2SaltLength,
			KeyLength:  p.Argon2KeyLength,
		},
	}
}
