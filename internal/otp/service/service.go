// Package service orchestrates one-time password creation and validation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/actor"
	"warden/internal/eventsourcing"
	"warden/internal/otp/models"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
	"warden/pkg/validate"
)

const (
	saveAttempts = 3
	maxLength    = 256
)

// Queries reads one-time password views. Missing ones read as nil, nil.
type Queries interface {
	ReadByID(ctx context.Context, otpID id.OneTimePasswordID) (*models.View, error)
}

// Projector updates the read side after a successful save.
type Projector interface {
	Project(ctx context.Context, o *models.OneTimePassword) error
}

// Service manages one-time passwords.
type Service struct {
	repo      *eventsourcing.Repository
	queries   Queries
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

func New(repo *eventsourcing.Repository, queries Queries, passwords *password.Registry, actors *actor.Service, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		queries:   queries,
		passwords: passwords,
		actors:    actors,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes the password to generate.
type CreateInput struct {
	Characters       string
	Length           int
	ExpiresOn        *time.Time
	MaximumAttempts  *int
	CustomAttributes map[string]string
}

// ValidateInput carries a candidate and attributes recorded on success.
type ValidateInput struct {
	Password         string
	CustomAttributes map[string]string
}

// Create generates a one-time password and returns its view with the
// plaintext in Password. The plaintext cannot be read again.
func (s *Service) Create(ctx context.Context, realmID *id.RealmID, in CreateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	var v validate.Errors
	if v.Required("characters", in.Characters) {
		v.MaxLength("characters", in.Characters, maxLength)
	}
	if in.Length < 1 || in.Length > maxLength {
		v.Add("length", "out_of_range", "must be between 1 and 256")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	plaintext, err := password.GenerateString(in.Characters, in.Length)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate one-time password")
	}
	hashed, err := s.passwords.Hash(plaintext)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash one-time password")
	}
	otpID := id.NewOneTimePasswordID(derefRealm(realmID))
	o, err := models.New(otpID, hashed, in.ExpiresOn, in.MaximumAttempts, actorID, now)
	if err != nil {
		return nil, err
	}
	if err := stageAttributes(o, in.CustomAttributes); err != nil {
		return nil, err
	}
	if err := o.Update(actorID, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, o); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "one-time password created", "otp_id", otpID.String())
	view, err := s.view(ctx, o)
	if err != nil {
		return nil, err
	}
	view.Password = plaintext
	return view, nil
}

// Validate checks a candidate. A failed attempt is saved before the
// invalid-credentials error is returned.
func (s *Service) Validate(ctx context.Context, otpID id.OneTimePasswordID, in ValidateInput) (*models.View, error) {
	actorID, now := requestcontext.ActorID(ctx), requestcontext.Now(ctx)
	var o *models.OneTimePassword
	var outcome error
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if o, err = s.load(ctx, otpID); err != nil {
			return err
		}
		outcome = o.Validate(in.Password, s.passwords, actorID, now)
		switch {
		case outcome == nil:
			if err := stageAttributes(o, in.CustomAttributes); err != nil {
				return err
			}
			if err := o.Update(actorID, now); err != nil {
				return err
			}
		case !dErrors.HasCode(outcome, dErrors.CodeInvalidCredentials):
			return outcome
		}
		return s.save(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		s.logger.InfoContext(ctx, "one-time password validation failed", "otp_id", otpID.String(), "attempts", o.AttemptCount())
		return nil, outcome
	}
	return s.view(ctx, o)
}

func (s *Service) Delete(ctx context.Context, otpID id.OneTimePasswordID) (*models.View, error) {
	var o *models.OneTimePassword
	err := eventsourcing.Retry(ctx, saveAttempts, func(ctx context.Context) error {
		var err error
		if o, err = s.load(ctx, otpID); err != nil {
			return err
		}
		if err := o.Delete(requestcontext.ActorID(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.save(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, o)
}

func (s *Service) Read(ctx context.Context, otpID id.OneTimePasswordID) (*models.View, error) {
	v, err := s.queries.ReadByID(ctx, otpID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read one-time password")
	}
	if v == nil {
		return nil, nil
	}
	if err := s.actors.Materialize(ctx, &v.Audit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return v, nil
}

func (s *Service) load(ctx context.Context, otpID id.OneTimePasswordID) (*models.OneTimePassword, error) {
	o := &models.OneTimePassword{}
	if err := s.repo.Load(ctx, o, models.StreamID(otpID)); err != nil {
		return nil, wrapOTPErr(err)
	}
	if o.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "one-time password not found")
	}
	return o, nil
}

func (s *Service) save(ctx context.Context, o *models.OneTimePassword) error {
	if err := s.repo.Save(ctx, o); err != nil {
		return wrapOTPErr(err)
	}
	if s.projector != nil {
		if err := s.projector.Project(ctx, o); err != nil {
			s.logger.ErrorContext(ctx, "failed to project one-time password", "error", err, "stream_id", o.ID().String())
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, o *models.OneTimePassword) (*models.View, error) {
	v := models.NewView(o)
	if err := s.actors.Materialize(ctx, &v.Audit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actors")
	}
	return v, nil
}

func stageAttributes(o *models.OneTimePassword, attrs map[string]string) error {
	var v validate.Errors
	for key, value := range attrs {
		v.Merge("custom_attributes", o.SetCustomAttribute(key, value))
	}
	return v.Err()
}

func derefRealm(realmID *id.RealmID) id.RealmID {
	if realmID == nil {
		return id.RealmID{}
	}
	return *realmID
}

func wrapOTPErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "one-time password not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "one-time password was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "one-time password store failure")
	}
}
