// Package service orchestrates user commands and reads.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"warden/internal/actor"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	"warden/internal/query"
	"warden/internal/user/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
	"warden/pkg/validate"
)

const saveAttempts = 3

// Queries reads user views. Missing users read as nil, nil.
type Queries interface {
	ReadByID(ctx context.Context, userID id.UserID) (*models.View, error)
	ReadByUniqueName(ctx context.Context, realmID *id.RealmID, uniqueName string) (*models.View, error)
	ReadByEmail(ctx context.Context, realmID *id.RealmID, address string) ([]models.View, error)
	Search(ctx context.Context, realmID *id.RealmID, payload query.SearchPayload) (query.Page[models.View], error)
}

// Projector updates the read side after a successful save.
type Projector interface {
	Project(ctx context.Context, u *models.User) error
}

// Realms resolves the policy a realm holds its users to.
type Realms interface {
	ResolveSettings(ctx context.Context, realmID *id.RealmID) (id.RealmSettings, error)
}

// Service manages users.
type Service struct {
	repo      *eventsourcing.Repository
	queries   Queries
	realms    Realms
	passwords *password.Registry
	actors    *actor.Service
	projector Projector
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

func New(repo *eventsourcing.Repository, queries Queries, realms Realms, passwords *password.Registry, actors *actor.Service, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		queries:   queries,
		realms:    realms,
		passwords: passwords,
		actors:    actors,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new user.
type CreateInput struct {
	UniqueName       string
	Password         *string
	IsDisabled       bool
	Email            *string
	IsEmailVerified  bool
	Profile          models.Profile
	Roles            []string
	CustomAttributes map[string]string
}

// UpdateInput describes a partial user update. Nil fields are left unchanged.
type UpdateInput struct {
	UniqueName       *string
	Password         *string
	IsDisabled       *bool
	Email            *eventsourcing.Change[string]
	IsEmailVerified  bool
	Profile          models.Profile
	AddRoles         []string
	RemoveRoles      []string
	CustomAttributes eventsourcing.AttributeChanges
}

func (s *Service) Create(ctx context.Context, realmID *id.RealmID, in CreateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	settings, err := s.realms.ResolveSettings(ctx, realmID)
	if err != nil {
		return nil, err
	}
	uniqueName := strings.TrimSpace(in.UniqueName)
	if err := s.ensureUniqueNameAvailable(ctx, realmID, uniqueName, nil); err != nil {
		return nil, err
	}

	userID := id.NewUserID(derefRealm(realmID))
	u, err := models.New(userID, uniqueName, settings.UniqueNameSettings, actorID, now)
	if err != nil {
		return nil, err
	}
	if in.Password != nil {
		if err := s.setPassword(u, *in.Password, settings, actorID, now); err != nil {
			return nil, err
		}
	}
	var v validate.Errors
	v.Merge("profile", u.StageProfile(in.Profile, now))
	if in.Email != nil {
		if err := s.ensureEmailAvailable(ctx, realmID, settings, *in.Email, nil); err != nil {
			return nil, err
		}
		v.Merge("email", u.SetEmail(in.Email, in.IsEmailVerified))
	}
	for key, value := range in.CustomAttributes {
		v.Merge("custom_attributes", u.SetCustomAttribute(key, value))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := u.Update(actorID, now); err != nil {
		return nil, err
	}
	for _, role := range in.Roles {
		if err := u.AddRole(role, actorID, now); err != nil {
			return nil, err
		}
	}
	if in.IsDisabled {
		if err := u.Disable(actorID, now); err != nil {
			return nil, err
		}
	}
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created", "user_id", userID.String())
	return s.view(ctx, u)
}

func (s *Service) Update(ctx context.Context, userID id.UserID, in UpdateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	realmID := userID.RealmID()
	settings, err := s.realms.ResolveSettings(ctx, realmID)
	if err != nil {
		return nil, err
	}
	var u *models.User
	err = eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if u, err = s.Load(ctx, userID); err != nil {
			return err
		}
		if in.UniqueName != nil {
			name := strings.TrimSpace(*in.UniqueName)
			if err := s.ensureUniqueNameAvailable(ctx, realmID, name, &userID); err != nil {
				return err
			}
			if err := u.SetUniqueName(name, settings.UniqueNameSettings, actorID, now); err != nil {
				return err
			}
		}
		if in.Password != nil {
			if err := s.setPassword(u, *in.Password, settings, actorID, now); err != nil {
				return err
			}
		}
		var v validate.Errors
		v.Merge("profile", u.StageProfile(in.Profile, now))
		if in.Email != nil {
			if in.Email.Value != nil {
				if err := s.ensureEmailAvailable(ctx, realmID, settings, *in.Email.Value, &userID); err != nil {
					return err
				}
			}
			v.Merge("email", u.SetEmail(in.Email.Value, in.IsEmailVerified))
		}
		for key, value := range in.CustomAttributes {
			if value == nil {
				u.RemoveCustomAttribute(key)
				continue
			}
			v.Merge("custom_attributes", u.SetCustomAttribute(key, *value))
		}
		if err := v.Err(); err != nil {
			return err
		}
		if err := u.Update(actorID, now); err != nil {
			return err
		}
		for _, role := range in.AddRoles {
			if err := u.AddRole(role, actorID, now); err != nil {
				return err
			}
		}
		for _, role := range in.RemoveRoles {
			if err := u.RemoveRole(role, actorID, now); err != nil {
				return err
			}
		}
		if in.IsDisabled != nil {
			toggle := u.Enable
			if *in.IsDisabled {
				toggle = u.Disable
			}
			if err := toggle(actorID, now); err != nil {
				return err
			}
		}
		return s.save(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, u)
}

// ChangePassword replaces the password of the user after checking current.
func (s *Service) ChangePassword(ctx context.Context, userID id.UserID, current, next string) (*models.View, error) {
	return s.replacePassword(ctx, userID, next, func(u *models.User, pw password.Password, actorID id.ActorID, now time.Time) error {
		return u.ChangePassword(current, pw, s.passwords, actorID, now)
	})
}

// ResetPassword replaces the password at the end of a recovery flow.
func (s *Service) ResetPassword(ctx context.Context, userID id.UserID, next string) (*models.View, error) {
	return s.replacePassword(ctx, userID, next, func(u *models.User, pw password.Password, actorID id.ActorID, now time.Time) error {
		return u.ResetPassword(pw, actorID, now)
	})
}

// Authenticate checks credentials of a user of realmID. Unknown names fail
// with the same error as wrong passwords.
func (s *Service) Authenticate(ctx context.Context, realmID *id.RealmID, uniqueName, candidate string) (*models.User, error) {
	found, err := s.queries.ReadByUniqueName(ctx, realmID, uniqueName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read user")
	}
	if found == nil {
		return nil, models.InvalidCredentialsError()
	}
	u, err := s.Load(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	if err := u.Authenticate(candidate, s.passwords); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, userID id.UserID) (*models.View, error) {
	var u *models.User
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if u, err = s.Load(ctx, userID); err != nil {
			return err
		}
		if err := u.Delete(requestcontext.ActorID(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.save(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", userID.String())
	return s.view(ctx, u)
}

// Read finds a user of realmID by id, by unique name, or both.
func (s *Service) Read(ctx context.Context, realmID *id.RealmID, userID *id.UserID, uniqueName *string) (*models.View, error) {
	var byID, byName *models.View
	var err error
	if userID != nil {
		if byID, err = s.queries.ReadByID(ctx, *userID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read user")
		}
	}
	if uniqueName != nil {
		if byName, err = s.queries.ReadByUniqueName(ctx, realmID, *uniqueName); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read user")
		}
	}
	v, err := query.ResolveUnique(byID, byName, func(a, b *models.View) bool { return a.ID == b.ID })
	if err != nil || v == nil {
		return nil, err
	}
	if err := s.materialize(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Search(ctx context.Context, realmID *id.RealmID, payload query.SearchPayload) (query.Page[models.View], error) {
	page, err := s.queries.Search(ctx, realmID, payload)
	if err != nil {
		return query.Page[models.View]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search users")
	}
	views := make([]*models.View, len(page.Items))
	for i := range page.Items {
		views[i] = &page.Items[i]
	}
	if err := s.materialize(ctx, views...); err != nil {
		return query.Page[models.View]{}, err
	}
	return page, nil
}

// Load replays a live user.
func (s *Service) Load(ctx context.Context, userID id.UserID) (*models.User, error) {
	u := &models.User{}
	if err := s.repo.Load(ctx, u, models.StreamID(userID)); err != nil {
		return nil, wrapUserErr(err)
	}
	if u.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return u, nil
}

// Refresh updates the read side and the actor cache after u was saved,
// possibly together with other aggregates.
func (s *Service) Refresh(ctx context.Context, u *models.User) {
	if s.projector != nil {
		if err := s.projector.Project(ctx, u); err != nil {
			s.logger.ErrorContext(ctx, "failed to project user", "error", err, "stream_id", u.ID().String())
		}
	}
	a := models.NewView(u).Actor()
	a.IsDeleted = u.IsDeleted()
	if err := s.actors.SetActor(ctx, a); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh actor cache", "error", err, "actor_id", a.ID.String())
	}
}

func (s *Service) save(ctx context.Context, u *models.User) error {
	if err := s.repo.Save(ctx, u); err != nil {
		return wrapUserErr(err)
	}
	s.Refresh(ctx, u)
	return nil
}

func (s *Service) view(ctx context.Context, u *models.User) (*models.View, error) {
	v := models.NewView(u)
	if err := s.materialize(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// materialize resolves the actors of every view with one lookup.
func (s *Service) materialize(ctx context.Context, views ...*models.View) error {
	audits := make([]*actor.Audit, len(views))
	var links []actor.Link
	for i, v := range views {
		audits[i] = &v.Audit
		if actorID, ok := v.PasswordChangedByID(); ok {
			links = append(links, actor.Link{ID: actorID, Target: &v.PasswordChangedBy})
		}
	}
	if err := s.actors.MaterializeLinks(ctx, audits, links); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return nil
}

func (s *Service) replacePassword(ctx context.Context, userID id.UserID, next string,
	apply func(u *models.User, pw password.Password, actorID id.ActorID, now time.Time) error,
) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	settings, err := s.realms.ResolveSettings(ctx, userID.RealmID())
	if err != nil {
		return nil, err
	}
	pw, err := s.hash(next, settings)
	if err != nil {
		return nil, err
	}
	var u *models.User
	err = eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if u, err = s.Load(ctx, userID); err != nil {
			return err
		}
		if err := apply(u, pw, actorID, now); err != nil {
			return err
		}
		return s.save(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, u)
}

func (s *Service) setPassword(u *models.User, plaintext string, settings id.RealmSettings, actorID id.ActorID, now time.Time) error {
	pw, err := s.hash(plaintext, settings)
	if err != nil {
		return err
	}
	return u.SetPassword(pw, actorID, now)
}

func (s *Service) hash(plaintext string, settings id.RealmSettings) (password.Password, error) {
	if err := password.Validate("password", plaintext, settings.PasswordSettings); err != nil {
		return nil, err
	}
	pw, err := s.passwords.HashWith(settings.PasswordSettings.HashingStrategy, plaintext)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnknownPasswordStrategy) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return pw, nil
}

func (s *Service) ensureUniqueNameAvailable(ctx context.Context, realmID *id.RealmID, uniqueName string, self *id.UserID) error {
	existing, err := s.queries.ReadByUniqueName(ctx, realmID, uniqueName)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unique name")
	}
	if existing != nil && (self == nil || existing.ID != *self) {
		return dErrors.New(dErrors.CodeConflict, "unique name is already used")
	}
	return nil
}

func (s *Service) ensureEmailAvailable(ctx context.Context, realmID *id.RealmID, settings id.RealmSettings, address string, self *id.UserID) error {
	if !settings.RequireUniqueEmail {
		return nil
	}
	normalized, err := models.NormalizeEmail(address)
	if err != nil {
		return err
	}
	existing, err := s.queries.ReadByEmail(ctx, realmID, normalized)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	for _, v := range existing {
		if self == nil || v.ID != *self {
			return dErrors.New(dErrors.CodeConflict, "email address is already used")
		}
	}
	return nil
}

func derefRealm(realmID *id.RealmID) id.RealmID {
	if realmID == nil {
		return id.RealmID{}
	}
	return *realmID
}

func wrapUserErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "user was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "user store failure")
	}
}
