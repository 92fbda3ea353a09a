// Package service orchestrates API key commands, reads and authentication.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/actor"
	"warden/internal/apikey/models"
	"warden/internal/authentication"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	"warden/internal/query"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
	"warden/pkg/validate"
)

const (
	saveAttempts = 3
	secretLength = 32
)

// Queries reads API key views. Missing keys read as nil, nil.
type Queries interface {
	ReadByID(ctx context.Context, keyID id.APIKeyID) (*models.View, error)
	Search(ctx context.Context, realmID *id.RealmID, payload query.SearchPayload) (query.Page[models.View], error)
}

// Projector updates the read side after a successful save.
type Projector interface {
	Project(ctx context.Context, k *models.APIKey) error
}

// Service manages API keys.
type Service struct {
	repo      *eventsourcing.Repository
	queries   Queries
	passwords *password.Registry
	actors    *actor.Service
	projector Projector
	mode      authentication.Mode
	recorder  authentication.Recorder
	logger    *slog.Logger
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

// WithSilentAuthentication records successful authentications in recorder
// instead of raising an event on the key.
func WithSilentAuthentication(recorder authentication.Recorder) Option {
	return func(s *Service) {
		s.mode = authentication.ModeSilent
		s.recorder = recorder
	}
}

func New(repo *eventsourcing.Repository, queries Queries, passwords *password.Registry, actors *actor.Service, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		queries:   queries,
		passwords: passwords,
		actors:    actors,
		mode:      authentication.ModeEvent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new API key.
type CreateInput struct {
	DisplayName      string
	Description      *string
	ExpiresOn        *time.Time
	Roles            []string
	CustomAttributes map[string]string
}

// UpdateInput describes a partial API key update. Nil fields are left unchanged.
type UpdateInput struct {
	DisplayName      *string
	Description      *eventsourcing.Change[string]
	ExpiresOn        *time.Time
	AddRoles         []string
	RemoveRoles      []string
	CustomAttributes eventsourcing.AttributeChanges
}

// Create issues a key and returns its view with the plaintext credential in
// XAPIKey. The credential cannot be read again.
func (s *Service) Create(ctx context.Context, realmID *id.RealmID, in CreateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	secret, err := password.GenerateBase64(secretLength)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret")
	}
	hashed, err := s.passwords.Hash(secret)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret")
	}
	keyID := id.NewAPIKeyID(derefRealm(realmID))
	k, err := models.New(keyID, in.DisplayName, hashed, actorID, now)
	if err != nil {
		return nil, err
	}
	var v validate.Errors
	k.SetDescription(in.Description)
	if in.ExpiresOn != nil {
		v.Merge("expires_on", k.SetExpiration(*in.ExpiresOn, now))
	}
	for key, value := range in.CustomAttributes {
		v.Merge("custom_attributes", k.SetCustomAttribute(key, value))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := k.Update(actorID, now); err != nil {
		return nil, err
	}
	for _, role := range in.Roles {
		if err := k.AddRole(role, actorID, now); err != nil {
			return nil, err
		}
	}
	if err := s.save(ctx, k); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "api key created", "api_key_id", keyID.String())
	view, err := s.view(ctx, k)
	if err != nil {
		return nil, err
	}
	view.XAPIKey = models.FormatCredential(keyID, secret)
	return view, nil
}

func (s *Service) Update(ctx context.Context, keyID id.APIKeyID, in UpdateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	var k *models.APIKey
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if k, err = s.load(ctx, keyID); err != nil {
			return err
		}
		var v validate.Errors
		if in.DisplayName != nil {
			v.Merge("display_name", k.SetDisplayName(*in.DisplayName))
		}
		if in.Description != nil {
			k.SetDescription(in.Description.Value)
		}
		if in.ExpiresOn != nil {
			v.Merge("expires_on", k.SetExpiration(*in.ExpiresOn, now))
		}
		for key, value := range in.CustomAttributes {
			if value == nil {
				k.RemoveCustomAttribute(key)
				continue
			}
			v.Merge("custom_attributes", k.SetCustomAttribute(key, *value))
		}
		if err := v.Err(); err != nil {
			return err
		}
		if err := k.Update(actorID, now); err != nil {
			return err
		}
		for _, role := range in.AddRoles {
			if err := k.AddRole(role, actorID, now); err != nil {
				return err
			}
		}
		for _, role := range in.RemoveRoles {
			if err := k.RemoveRole(role, actorID, now); err != nil {
				return err
			}
		}
		return s.save(ctx, k)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, k)
}

func (s *Service) Delete(ctx context.Context, keyID id.APIKeyID) (*models.View, error) {
	var k *models.APIKey
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if k, err = s.load(ctx, keyID); err != nil {
			return err
		}
		if err := k.Delete(requestcontext.ActorID(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.save(ctx, k)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "api key deleted", "api_key_id", keyID.String())
	return s.view(ctx, k)
}

// Authenticate verifies an X-API-Key credential and records the success.
// Every failure other than an expired key reads as invalid credentials.
func (s *Service) Authenticate(ctx context.Context, credential string) (*models.View, error) {
	now := requestcontext.Now(ctx)
	keyID, secret, err := models.ParseCredential(credential)
	if err != nil {
		return nil, err
	}
	var k *models.APIKey
	err = eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if k, err = s.load(ctx, keyID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
			}
			return err
		}
		if err := k.Authenticate(secret, s.passwords, now); err != nil {
			return err
		}
		if s.mode == authentication.ModeSilent {
			return nil
		}
		if err := k.RecordAuthentication(now); err != nil {
			return err
		}
		return s.save(ctx, k)
	})
	if err != nil {
		s.logger.InfoContext(ctx, "api key authentication failed", "api_key_id", keyID.String(), "code", dErrors.CodeOf(err))
		return nil, err
	}
	if s.mode == authentication.ModeSilent {
		if err := s.recorder.Record(ctx, k.ID().String(), now); err != nil {
			s.logger.WarnContext(ctx, "failed to record authentication", "error", err, "api_key_id", keyID.String())
		}
	}
	v, err := s.view(ctx, k)
	if err != nil {
		return nil, err
	}
	v.MergeAuthenticatedOn(now)
	return v, nil
}

func (s *Service) Read(ctx context.Context, keyID id.APIKeyID) (*models.View, error) {
	v, err := s.queries.ReadByID(ctx, keyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read api key")
	}
	if v == nil {
		return nil, nil
	}
	if err := s.materialize(ctx, []*models.View{v}); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Search(ctx context.Context, realmID *id.RealmID, payload query.SearchPayload) (query.Page[models.View], error) {
	page, err := s.queries.Search(ctx, realmID, payload)
	if err != nil {
		return query.Page[models.View]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search api keys")
	}
	views := make([]*models.View, len(page.Items))
	for i := range page.Items {
		views[i] = &page.Items[i]
	}
	if err := s.materialize(ctx, views); err != nil {
		return query.Page[models.View]{}, err
	}
	return page, nil
}

func (s *Service) load(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	k := &models.APIKey{}
	if err := s.repo.Load(ctx, k, models.StreamID(keyID)); err != nil {
		return nil, wrapAPIKeyErr(err)
	}
	if k.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "api key not found")
	}
	return k, nil
}

func (s *Service) save(ctx context.Context, k *models.APIKey) error {
	if err := s.repo.Save(ctx, k); err != nil {
		return wrapAPIKeyErr(err)
	}
	if s.projector != nil {
		if err := s.projector.Project(ctx, k); err != nil {
			s.logger.ErrorContext(ctx, "failed to project api key", "error", err, "stream_id", k.ID().String())
		}
	}
	a := models.NewView(k).Actor()
	a.IsDeleted = k.IsDeleted()
	if err := s.actors.SetActor(ctx, a); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh actor cache", "error", err, "actor_id", a.ID.String())
	}
	return nil
}

func (s *Service) view(ctx context.Context, k *models.APIKey) (*models.View, error) {
	v := models.NewView(k)
	if err := s.materialize(ctx, []*models.View{v}); err != nil {
		return nil, err
	}
	return v, nil
}

// materialize resolves audit actors and, in silent mode, merges recorded
// authentication times.
func (s *Service) materialize(ctx context.Context, views []*models.View) error {
	audits := make([]*actor.Audit, len(views))
	for i, v := range views {
		audits[i] = &v.Audit
	}
	if err := s.actors.Materialize(ctx, audits...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	if s.recorder == nil || len(views) == 0 {
		return nil
	}
	keys := make([]string, len(views))
	for i, v := range views {
		keys[i] = models.StreamID(v.ID).String()
	}
	recorded, err := s.recorder.LastAuthenticated(ctx, keys...)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read authentication timestamps", "error", err)
		return nil
	}
	for i, v := range views {
		v.MergeAuthenticatedOn(recorded[keys[i]])
	}
	return nil
}

func derefRealm(realmID *id.RealmID) id.RealmID {
	if realmID == nil {
		return id.RealmID{}
	}
	return *realmID
}

func wrapAPIKeyErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "api key not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "api key was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "api key store failure")
	}
}
