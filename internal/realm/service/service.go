// Package service orchestrates realm commands and reads.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"warden/internal/actor"
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	"warden/internal/query"
	"warden/internal/realm/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
	"warden/pkg/validate"
)

const (
	// secretLength is the number of random bytes of generated realm secrets.
	secretLength = 32
	saveAttempts = 3
)

// Queries reads realm views. Missing realms read as nil, nil.
type Queries interface {
	ReadByID(ctx context.Context, realmID id.RealmID) (*models.View, error)
	ReadBySlug(ctx context.Context, uniqueSlug string) (*models.View, error)
	Search(ctx context.Context, payload query.SearchPayload) (query.Page[models.View], error)
}

// Projector updates the read side after a successful save.
type Projector interface {
	Project(ctx context.Context, r *models.Realm) error
}

// Configuration supplies the policy and secret of the default realm.
type Configuration interface {
	Settings(ctx context.Context) (id.RealmSettings, error)
	Secret(ctx context.Context) (string, error)
}

// Service manages realms.
type Service struct {
	repo          *eventsourcing.Repository
	queries       Queries
	encryption    *encryption.Manager
	actors        *actor.Service
	passwords     *password.Registry
	configuration Configuration
	projector     Projector
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithProjector(p Projector) Option {
	return func(s *Service) {
		s.projector = p
	}
}

func WithConfiguration(c Configuration) Option {
	return func(s *Service) {
		s.configuration = c
	}
}

func New(
	repo *eventsourcing.Repository,
	queries Queries,
	encryption *encryption.Manager,
	actors *actor.Service,
	passwords *password.Registry,
	opts ...Option,
) *Service {
	s := &Service{
		repo:       repo,
		queries:    queries,
		encryption: encryption,
		actors:     actors,
		passwords:  passwords,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new realm. A nil Secret generates one.
type CreateInput struct {
	UniqueSlug              string
	Secret                  *string
	DisplayName             *string
	Description             *string
	URL                     *string
	UniqueNameSettings      *id.UniqueNameSettings
	PasswordSettings        *id.PasswordSettings
	RequireUniqueEmail      *bool
	RequireConfirmedAccount *bool
	CustomAttributes        map[string]string
}

// UpdateInput describes a partial realm update. Nil fields are left unchanged.
type UpdateInput struct {
	UniqueSlug              *string
	Secret                  *string
	DisplayName             *eventsourcing.Change[string]
	Description             *eventsourcing.Change[string]
	URL                     *eventsourcing.Change[string]
	UniqueNameSettings      *id.UniqueNameSettings
	PasswordSettings        *id.PasswordSettings
	RequireUniqueEmail      *bool
	RequireConfirmedAccount *bool
	CustomAttributes        eventsourcing.AttributeChanges
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	slug := strings.TrimSpace(in.UniqueSlug)
	if err := s.ensureSlugAvailable(ctx, slug, nil); err != nil {
		return nil, err
	}

	realmID := id.NewRealmID()
	secret, err := s.encryptSecret(realmID, in.Secret)
	if err != nil {
		return nil, err
	}
	r, err := models.New(realmID, slug, secret, actorID, now)
	if err != nil {
		return nil, err
	}
	err = s.stage(r, UpdateInput{
		DisplayName:             changeOf(in.DisplayName),
		Description:             changeOf(in.Description),
		URL:                     changeOf(in.URL),
		UniqueNameSettings:      in.UniqueNameSettings,
		PasswordSettings:        in.PasswordSettings,
		RequireUniqueEmail:      in.RequireUniqueEmail,
		RequireConfirmedAccount: in.RequireConfirmedAccount,
		CustomAttributes:        attributeChanges(in.CustomAttributes),
	})
	if err != nil {
		return nil, err
	}
	if err := r.Update(actorID, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "realm created", "realm_id", realmID.String(), "unique_slug", slug)
	return s.view(ctx, r)
}

func (s *Service) Update(ctx context.Context, realmID id.RealmID, in UpdateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	var r *models.Realm
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if r, err = s.load(ctx, realmID); err != nil {
			return err
		}
		if in.UniqueSlug != nil {
			slug := strings.TrimSpace(*in.UniqueSlug)
			if err := s.ensureSlugAvailable(ctx, slug, &realmID); err != nil {
				return err
			}
			if err := r.SetUniqueSlug(slug, actorID, now); err != nil {
				return err
			}
		}
		if in.Secret != nil {
			secret, err := s.encryptSecret(realmID, in.Secret)
			if err != nil {
				return err
			}
			if err := r.SetSecret(secret); err != nil {
				return err
			}
		}
		if err := s.stage(r, in); err != nil {
			return err
		}
		if err := r.Update(actorID, now); err != nil {
			return err
		}
		return s.save(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, r)
}

// Delete deletes a realm and returns its final view. Deleting a deleted realm
// returns not found.
func (s *Service) Delete(ctx context.Context, realmID id.RealmID) (*models.View, error) {
	var r *models.Realm
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if r, err = s.load(ctx, realmID); err != nil {
			return err
		}
		if err := r.Delete(requestcontext.ActorID(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.save(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "realm deleted", "realm_id", realmID.String())
	return s.view(ctx, r)
}

// Read finds a realm by id, by slug, or both. When both are given and
// designate different realms the lookup is ambiguous.
func (s *Service) Read(ctx context.Context, realmID *id.RealmID, uniqueSlug *string) (*models.View, error) {
	var byID, bySlug *models.View
	var err error
	if realmID != nil {
		if byID, err = s.queries.ReadByID(ctx, *realmID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read realm")
		}
	}
	if uniqueSlug != nil {
		if bySlug, err = s.queries.ReadBySlug(ctx, strings.TrimSpace(*uniqueSlug)); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read realm")
		}
	}
	v, err := query.ResolveUnique(byID, bySlug, func(a, b *models.View) bool { return a.ID == b.ID })
	if err != nil || v == nil {
		return nil, err
	}
	if err := s.actors.Materialize(ctx, &v.Audit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return v, nil
}

func (s *Service) Search(ctx context.Context, payload query.SearchPayload) (query.Page[models.View], error) {
	page, err := s.queries.Search(ctx, payload)
	if err != nil {
		return query.Page[models.View]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search realms")
	}
	audits := make([]*actor.Audit, len(page.Items))
	for i := range page.Items {
		audits[i] = &page.Items[i].Audit
	}
	if err := s.actors.Materialize(ctx, audits...); err != nil {
		return query.Page[models.View]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return page, nil
}

// RevealSecret decrypts the secret of a realm.
func (s *Service) RevealSecret(ctx context.Context, realmID id.RealmID) (string, error) {
	r, err := s.load(ctx, realmID)
	if err != nil {
		return "", err
	}
	secret, err := s.encryption.Decrypt(r.Secret(), realmID.Ptr())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to decrypt realm secret")
	}
	return secret, nil
}

// RotateSecret replaces the secret of a realm and returns the new plaintext.
// A nil secret generates one.
func (s *Service) RotateSecret(ctx context.Context, realmID id.RealmID, secret *string) (string, error) {
	plaintext, err := plaintextSecret(secret)
	if err != nil {
		return "", err
	}
	if _, err := s.Update(ctx, realmID, UpdateInput{Secret: &plaintext}); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "realm secret rotated", "realm_id", realmID.String())
	return plaintext, nil
}

// Secret returns the signing secret of a realm, or the configuration secret
// for the default realm.
func (s *Service) Secret(ctx context.Context, realmID *id.RealmID) (string, error) {
	if realmID == nil {
		if s.configuration == nil {
			return "", dErrors.New(dErrors.CodeInternal, "configuration is not available")
		}
		return s.configuration.Secret(ctx)
	}
	return s.RevealSecret(ctx, *realmID)
}

// ResolveSettings returns the policy users of realmID are held to.
func (s *Service) ResolveSettings(ctx context.Context, realmID *id.RealmID) (id.RealmSettings, error) {
	if realmID == nil {
		if s.configuration == nil {
			return id.RealmSettings{
				UniqueNameSettings: id.DefaultUniqueNameSettings(),
				PasswordSettings:   id.DefaultPasswordSettings(),
			}, nil
		}
		return s.configuration.Settings(ctx)
	}
	r, err := s.load(ctx, *realmID)
	if err != nil {
		return id.RealmSettings{}, err
	}
	return r.Settings(), nil
}

func (s *Service) stage(r *models.Realm, in UpdateInput) error {
	var v validate.Errors
	if in.DisplayName != nil {
		v.Merge("display_name", r.SetDisplayName(in.DisplayName.Value))
	}
	if in.Description != nil {
		v.Merge("description", r.SetDescription(in.Description.Value))
	}
	if in.URL != nil {
		v.Merge("url", r.SetURL(in.URL.Value))
	}
	if in.UniqueNameSettings != nil {
		r.SetUniqueNameSettings(*in.UniqueNameSettings)
	}
	if in.PasswordSettings != nil {
		if !s.passwords.Supports(in.PasswordSettings.HashingStrategy) {
			v.Add("password_settings.hashing_strategy", "unknown_strategy", "hashing strategy is not registered")
		}
		v.Merge("password_settings", r.SetPasswordSettings(*in.PasswordSettings))
	}
	if in.RequireUniqueEmail != nil {
		r.SetRequireUniqueEmail(*in.RequireUniqueEmail)
	}
	if in.RequireConfirmedAccount != nil {
		r.SetRequireConfirmedAccount(*in.RequireConfirmedAccount)
	}
	for key, value := range in.CustomAttributes {
		if value == nil {
			r.RemoveCustomAttribute(key)
			continue
		}
		v.Merge("custom_attributes", r.SetCustomAttribute(key, *value))
	}
	return v.Err()
}

func (s *Service) ensureSlugAvailable(ctx context.Context, slug string, self *id.RealmID) error {
	existing, err := s.queries.ReadBySlug(ctx, slug)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unique slug")
	}
	if existing != nil && (self == nil || existing.ID != *self) {
		return dErrors.New(dErrors.CodeConflict, "unique slug is already used")
	}
	return nil
}

func (s *Service) encryptSecret(realmID id.RealmID, secret *string) (encryption.EncryptedString, error) {
	plaintext, err := plaintextSecret(secret)
	if err != nil {
		return "", err
	}
	encrypted, err := s.encryption.Encrypt(plaintext, realmID.Ptr())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt realm secret")
	}
	return encrypted, nil
}

func plaintextSecret(secret *string) (string, error) {
	if secret != nil {
		v := strings.TrimSpace(*secret)
		if v == "" {
			return "", dErrors.Validation(dErrors.FieldError{Field: "secret", Code: "required", Message: "is required"})
		}
		return v, nil
	}
	generated, err := password.GenerateBase64(secretLength)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate realm secret")
	}
	return generated, nil
}

func (s *Service) load(ctx context.Context, realmID id.RealmID) (*models.Realm, error) {
	r := &models.Realm{}
	if err := s.repo.Load(ctx, r, models.StreamID(realmID)); err != nil {
		return nil, wrapRealmErr(err)
	}
	if r.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "realm not found")
	}
	return r, nil
}

func (s *Service) save(ctx context.Context, r *models.Realm) error {
	if err := s.repo.Save(ctx, r); err != nil {
		return wrapRealmErr(err)
	}
	if s.projector != nil {
		if err := s.projector.Project(ctx, r); err != nil {
			s.logger.ErrorContext(ctx, "failed to project realm", "error", err, "stream_id", r.ID().String())
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, r *models.Realm) (*models.View, error) {
	v := models.NewView(r)
	if err := s.actors.Materialize(ctx, &v.Audit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return v, nil
}

func wrapRealmErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "realm not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "realm was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "realm store failure")
	}
}

func changeOf(v *string) *eventsourcing.Change[string] {
	if v == nil {
		return nil
	}
	return eventsourcing.Set(*v)
}

func attributeChanges(attrs map[string]string) eventsourcing.AttributeChanges {
	if len(attrs) == 0 {
		return nil
	}
	out := make(eventsourcing.AttributeChanges, len(attrs))
	for k, v := range attrs {
		out[k] = &v
	}
	return out
}
