// Package service initializes, updates and serves the global configuration.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"warden/internal/actor"
	"warden/internal/configuration/models"
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
	"warden/pkg/validate"
)

const (
	secretLength    = 32
	saveAttempts    = 3
	defaultCacheTTL = time.Minute
)

// snapshot is an immutable copy of the configuration served from cache.
type snapshot struct {
	view     models.View
	settings id.RealmSettings
	secret   encryption.EncryptedString
	loadedAt time.Time
}

// Service owns the configuration stream. Reads are served from a cached
// snapshot replaced after every successful save; concurrent cold reads share
// one load.
type Service struct {
	repo       *eventsourcing.Repository
	encryption *encryption.Manager
	actors     *actor.Service
	passwords  *password.Registry
	logger     *slog.Logger
	clock      func() time.Time
	ttl        time.Duration

	cache atomic.Pointer[snapshot]
	group singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCacheTTL bounds how long a snapshot is served before it is reloaded,
// so changes saved by other instances become visible.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(repo *eventsourcing.Repository, encryption *encryption.Manager, actors *actor.Service, passwords *password.Registry, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		encryption: encryption,
		actors:     actors,
		passwords:  passwords,
		logger:     slog.Default(),
		clock:      time.Now,
		ttl:        defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeInput seeds the configuration. A nil Secret generates one.
type InitializeInput struct {
	Secret *string
}

// UpdateInput describes a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Secret             *string
	UniqueNameSettings *id.UniqueNameSettings
	PasswordSettings   *id.PasswordSettings
	RequireUniqueEmail *bool
	LoggingSettings    *models.LoggingSettings
}

// Initialize creates the configuration. It fails with a conflict when the
// configuration already exists.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (*models.View, error) {
	secret, err := s.encryptSecret(in.Secret)
	if err != nil {
		return nil, err
	}
	c, err := models.Initialize(secret, requestcontext.ActorID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "configuration is already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save configuration")
	}
	s.logger.InfoContext(ctx, "configuration initialized")
	return s.refresh(ctx, c)
}

// IsInitialized reports whether the configuration stream exists.
func (s *Service) IsInitialized(ctx context.Context) (bool, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap != nil, nil
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	var c *models.Configuration
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if c, err = s.load(ctx); err != nil {
			return err
		}
		var v validate.Errors
		if in.Secret != nil {
			secret, err := s.encryptSecret(in.Secret)
			if err != nil {
				return err
			}
			v.Merge("secret", c.SetSecret(secret))
		}
		if in.UniqueNameSettings != nil {
			c.SetUniqueNameSettings(*in.UniqueNameSettings)
		}
		if in.PasswordSettings != nil {
			if !s.passwords.Supports(in.PasswordSettings.HashingStrategy) {
				v.Add("password_settings.hashing_strategy", "unknown_strategy", "hashing strategy is not registered")
			}
			v.Merge("password_settings", c.SetPasswordSettings(*in.PasswordSettings))
		}
		if in.RequireUniqueEmail != nil {
			c.SetRequireUniqueEmail(*in.RequireUniqueEmail)
		}
		if in.LoggingSettings != nil {
			v.Merge("logging_settings", c.SetLoggingSettings(*in.LoggingSettings))
		}
		if err := v.Err(); err != nil {
			return err
		}
		if err := c.Update(actorID, now); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, c); err != nil {
			return wrapConfigurationErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, c)
}

// Read returns the configuration, or nil when it is not initialized.
func (s *Service) Read(ctx context.Context) (*models.View, error) {
	snap, err := s.snapshot(ctx)
	if err != nil || snap == nil {
		return nil, err
	}
	v := snap.view
	if err := s.actors.Materialize(ctx, &v.Audit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return &v, nil
}

// Settings returns the default realm policy, or built-in defaults before
// initialization.
func (s *Service) Settings(ctx context.Context) (id.RealmSettings, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return id.RealmSettings{}, err
	}
	if snap == nil {
		return id.RealmSettings{
			UniqueNameSettings: id.DefaultUniqueNameSettings(),
			PasswordSettings:   id.DefaultPasswordSettings(),
			RequireUniqueEmail: true,
		}, nil
	}
	return snap.settings, nil
}

// Secret decrypts the secret of the default realm.
func (s *Service) Secret(ctx context.Context) (string, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", dErrors.New(dErrors.CodeNotFound, "configuration is not initialized")
	}
	secret, err := s.encryption.Decrypt(snap.secret, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to decrypt configuration secret")
	}
	return secret, nil
}

// Invalidate drops the cached snapshot.
func (s *Service) Invalidate() {
	s.cache.Store(nil)
}

func (s *Service) snapshot(ctx context.Context) (*snapshot, error) {
	if snap := s.cache.Load(); snap != nil && s.clock().Sub(snap.loadedAt) < s.ttl {
		return snap, nil
	}
	v, err, _ := s.group.Do("configuration", func() (any, error) {
		// The flight is shared; one caller's cancellation must not fail the rest.
		c, err := s.load(context.WithoutCancel(ctx))
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return (*snapshot)(nil), nil
			}
			return nil, err
		}
		return s.store(c), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (s *Service) store(c *models.Configuration) *snapshot {
	snap := &snapshot{
		view:     *models.NewView(c),
		settings: c.Settings(),
		secret:   c.Secret(),
		loadedAt: s.clock(),
	}
	s.cache.Store(snap)
	return snap
}

func (s *Service) refresh(ctx context.Context, c *models.Configuration) (*models.View, error) {
	snap := s.store(c)
	v := snap.view
	if err := s.actors.Materialize(ctx, &v.Audit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return &v, nil
}

func (s *Service) load(ctx context.Context) (*models.Configuration, error) {
	c := &models.Configuration{}
	if err := s.repo.Load(ctx, c, models.StreamID); err != nil {
		return nil, wrapConfigurationErr(err)
	}
	return c, nil
}

func (s *Service) encryptSecret(secret *string) (encryption.EncryptedString, error) {
	var plaintext string
	if secret != nil {
		plaintext = strings.TrimSpace(*secret)
		if plaintext == "" {
			return "", dErrors.Validation(dErrors.FieldError{Field: "secret", Code: "required", Message: "is required"})
		}
	} else {
		generated, err := password.GenerateBase64(secretLength)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate configuration secret")
		}
		plaintext = generated
	}
	encrypted, err := s.encryption.Encrypt(plaintext, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt configuration secret")
	}
	return encrypted, nil
}

func wrapConfigurationErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "configuration is not initialized")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "configuration was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "configuration store failure")
	}
}
