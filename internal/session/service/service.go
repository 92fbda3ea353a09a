// Package service orchestrates sign-in, renewal and sign-out of sessions.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/actor"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	"warden/internal/query"
	"warden/internal/session/models"
	usermodels "warden/internal/user/models"
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

// Queries reads session views. Missing sessions read as nil, nil.
type Queries interface {
	ReadByID(ctx context.Context, sessionID id.SessionID) (*models.View, error)
	Search(ctx context.Context, realmID *id.RealmID, payload models.SearchPayload) (query.Page[models.View], error)
}

// Projector updates the read side after a successful save.
type Projector interface {
	Project(ctx context.Context, s *models.Session) error
}

// Users loads and authenticates the users sessions are opened for.
type Users interface {
	Authenticate(ctx context.Context, realmID *id.RealmID, uniqueName, candidate string) (*usermodels.User, error)
	Load(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	Refresh(ctx context.Context, u *usermodels.User)
}

// Service manages sessions.
type Service struct {
	repo      *eventsourcing.Repository
	queries   Queries
	users     Users
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

func New(repo *eventsourcing.Repository, queries Queries, users Users, passwords *password.Registry, actors *actor.Service, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		queries:   queries,
		users:     users,
		passwords: passwords,
		actors:    actors,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignInInput carries user credentials.
type SignInInput struct {
	UniqueName       string
	Password         string
	IsPersistent     bool
	CustomAttributes map[string]string
}

// CreateInput opens a session for a user authenticated elsewhere.
type CreateInput struct {
	UserID           id.UserID
	IsPersistent     bool
	CustomAttributes map[string]string
}

// RenewInput exchanges a refresh token for a new one.
type RenewInput struct {
	RefreshToken     string
	CustomAttributes map[string]string
}

// SignIn authenticates a user of realmID and opens a session on its behalf.
// The user's SignedIn event and the new session are saved together.
func (s *Service) SignIn(ctx context.Context, realmID *id.RealmID, in SignInInput) (*models.View, error) {
	var view *models.View
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		u, err := s.users.Authenticate(ctx, realmID, in.UniqueName, in.Password)
		if err != nil {
			return err
		}
		view, err = s.open(ctx, u, in.IsPersistent, in.CustomAttributes, u.ActorID())
		return err
	})
	if err != nil {
		s.logger.InfoContext(ctx, "sign-in failed", "code", dErrors.CodeOf(err))
		return nil, err
	}
	return view, nil
}

// Create opens a session without checking credentials, acting as the caller.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.View, error) {
	var view *models.View
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		u, err := s.users.Load(ctx, in.UserID)
		if err != nil {
			return err
		}
		view, err = s.open(ctx, u, in.IsPersistent, in.CustomAttributes, requestcontext.ActorID(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Renew rotates the secret of a persistent session and returns the new
// refresh token. Unknown sessions fail as invalid credentials.
func (s *Service) Renew(ctx context.Context, in RenewInput) (*models.View, error) {
	now := requestcontext.Now(ctx)
	sessionID, current, err := models.ParseRefreshToken(in.RefreshToken)
	if err != nil {
		return nil, err
	}
	var sess *models.Session
	var secret string
	err = eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if sess, err = s.load(ctx, sessionID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
			}
			return err
		}
		u, err := s.users.Load(ctx, sess.UserID())
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
			}
			return err
		}
		if u.IsDisabled() {
			return dErrors.New(dErrors.CodeUnauthorized, "user is disabled")
		}
		var next password.Password
		if secret, next, err = s.generateSecret(); err != nil {
			return err
		}
		actorID := u.ActorID()
		if err := sess.Renew(current, next, s.passwords, actorID, now); err != nil {
			return err
		}
		if err := stageAttributes(sess, in.CustomAttributes); err != nil {
			return err
		}
		if err := sess.Update(actorID, now); err != nil {
			return err
		}
		return s.save(ctx, sess)
	})
	if err != nil {
		s.logger.InfoContext(ctx, "session renewal failed", "session_id", sessionID.String(), "code", dErrors.CodeOf(err))
		return nil, err
	}
	v, err := s.view(ctx, sess)
	if err != nil {
		return nil, err
	}
	v.RefreshToken = models.FormatRefreshToken(sessionID, secret)
	return v, nil
}

// SignOut ends one session.
func (s *Service) SignOut(ctx context.Context, sessionID id.SessionID) (*models.View, error) {
	return s.mutate(ctx, sessionID, func(sess *models.Session, actorID id.ActorID, now time.Time) error {
		return sess.SignOut(actorID, now)
	})
}

// SignOutUser ends every active session of userID.
func (s *Service) SignOutUser(ctx context.Context, userID id.UserID) ([]models.View, error) {
	active := true
	page, err := s.queries.Search(ctx, userID.RealmID(), models.SearchPayload{UserID: &userID, IsActive: &active})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search sessions")
	}
	out := make([]models.View, 0, len(page.Items))
	for _, item := range page.Items {
		v, err := s.SignOut(ctx, item.ID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *v)
	}
	s.logger.InfoContext(ctx, "user signed out", "user_id", userID.String(), "sessions", len(out))
	return out, nil
}

func (s *Service) Delete(ctx context.Context, sessionID id.SessionID) (*models.View, error) {
	return s.mutate(ctx, sessionID, func(sess *models.Session, actorID id.ActorID, now time.Time) error {
		return sess.Delete(actorID, now)
	})
}

func (s *Service) Read(ctx context.Context, sessionID id.SessionID) (*models.View, error) {
	v, err := s.queries.ReadByID(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read session")
	}
	if v == nil {
		return nil, nil
	}
	if err := s.materialize(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Search(ctx context.Context, realmID *id.RealmID, payload models.SearchPayload) (query.Page[models.View], error) {
	page, err := s.queries.Search(ctx, realmID, payload)
	if err != nil {
		return query.Page[models.View]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search sessions")
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

func (s *Service) open(ctx context.Context, u *usermodels.User, persistent bool, attrs map[string]string, actorID id.ActorID) (*models.View, error) {
	now := requestcontext.Now(ctx)
	var secret string
	var hashed password.Password
	if persistent {
		var err error
		if secret, hashed, err = s.generateSecret(); err != nil {
			return nil, err
		}
	}
	sessionID := id.NewSessionID(derefRealm(u.UserID().RealmID()))
	sess, err := models.New(sessionID, u.UserID(), hashed, actorID, now)
	if err != nil {
		return nil, err
	}
	client := models.ClientAttributes(requestcontext.ClientIP(ctx), requestcontext.UserAgent(ctx))
	if err := stageAttributes(sess, client); err != nil {
		return nil, err
	}
	if err := stageAttributes(sess, attrs); err != nil {
		return nil, err
	}
	if err := sess.Update(actorID, now); err != nil {
		return nil, err
	}
	if err := u.SignIn(nil, s.passwords, actorID, now); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, u, sess); err != nil {
		return nil, wrapSessionErr(err)
	}
	s.users.Refresh(ctx, u)
	s.project(ctx, sess)
	s.logger.InfoContext(ctx, "session opened", "session_id", sessionID.String(), "user_id", u.UserID().String())

	v, err := s.view(ctx, sess)
	if err != nil {
		return nil, err
	}
	if persistent {
		v.RefreshToken = models.FormatRefreshToken(sessionID, secret)
	}
	return v, nil
}

func (s *Service) mutate(ctx context.Context, sessionID id.SessionID, fn func(sess *models.Session, actorID id.ActorID, now time.Time) error) (*models.View, error) {
	var sess *models.Session
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if sess, err = s.load(ctx, sessionID); err != nil {
			return err
		}
		if err := fn(sess, requestcontext.ActorID(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.save(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, sess)
}

func (s *Service) generateSecret() (string, password.Password, error) {
	secret, err := password.GenerateBase64(secretLength)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret")
	}
	hashed, err := s.passwords.Hash(secret)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret")
	}
	return secret, hashed, nil
}

func (s *Service) load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	sess := &models.Session{}
	if err := s.repo.Load(ctx, sess, models.StreamID(sessionID)); err != nil {
		return nil, wrapSessionErr(err)
	}
	if sess.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *models.Session) error {
	if err := s.repo.Save(ctx, sess); err != nil {
		return wrapSessionErr(err)
	}
	s.project(ctx, sess)
	return nil
}

func (s *Service) project(ctx context.Context, sess *models.Session) {
	if s.projector == nil {
		return
	}
	if err := s.projector.Project(ctx, sess); err != nil {
		s.logger.ErrorContext(ctx, "failed to project session", "error", err, "stream_id", sess.ID().String())
	}
}

func (s *Service) view(ctx context.Context, sess *models.Session) (*models.View, error) {
	v := models.NewView(sess)
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
		if actorID, ok := v.SignedOutByID(); ok {
			links = append(links, actor.Link{ID: actorID, Target: &v.SignedOutBy})
		}
	}
	if err := s.actors.MaterializeLinks(ctx, audits, links); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return nil
}

func stageAttributes(sess *models.Session, attrs map[string]string) error {
	var v validate.Errors
	for key, value := range attrs {
		v.Merge("custom_attributes", sess.SetCustomAttribute(key, value))
	}
	return v.Err()
}

func derefRealm(realmID *id.RealmID) id.RealmID {
	if realmID == nil {
		return id.RealmID{}
	}
	return *realmID
}

func wrapSessionErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "session was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "session store failure")
	}
}
