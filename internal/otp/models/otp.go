// Package models holds the one-time password aggregate and its events.
package models

import (
	"time"

	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/validate"
)

const Kind = "one_time_password"

func StreamID(otpID id.OneTimePasswordID) eventsourcing.StreamID {
	return eventsourcing.NewStreamID(Kind, otpID.String())
}

// OneTimePassword is a short-lived secret validated at most once.
//
// Invariants:
//   - the attempt count only grows, by one per validation that reached the
//     password check
//   - validation succeeds at most once
//   - once expired, exhausted or validated, Validate fails without raising
//   - once deleted no further change is accepted
type OneTimePassword struct {
	eventsourcing.Root

	otpID                  id.OneTimePasswordID
	password               string
	expiresOn              *time.Time
	maximumAttempts        *int
	attemptCount           int
	hasValidationSucceeded bool
	customAttributes       map[string]string

	pending OneTimePasswordUpdated
}

// New creates a one-time password holding the hash of the generated value.
func New(otpID id.OneTimePasswordID, pw password.Password, expiresOn *time.Time, maximumAttempts *int, actorID id.ActorID, now time.Time) (*OneTimePassword, error) {
	var v validate.Errors
	if expiresOn != nil {
		at := expiresOn.UTC()
		if !at.After(now) {
			v.Add("expires_on", "in_past", "must be in the future")
		}
		expiresOn = &at
	}
	if maximumAttempts != nil && *maximumAttempts < 1 {
		v.Add("maximum_attempts", "out_of_range", "must be at least 1")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	o := &OneTimePassword{Root: eventsourcing.NewRoot(StreamID(otpID))}
	e := &OneTimePasswordCreated{Password: pw.Encode(), ExpiresOn: expiresOn, MaximumAttempts: maximumAttempts}
	if err := o.Raise(o, e, actorID, now); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OneTimePassword) OneTimePasswordID() id.OneTimePasswordID { return o.otpID }
func (o *OneTimePassword) ExpiresOn() *time.Time                   { return o.expiresOn }
func (o *OneTimePassword) MaximumAttempts() *int                   { return o.maximumAttempts }
func (o *OneTimePassword) AttemptCount() int                       { return o.attemptCount }
func (o *OneTimePassword) HasValidationSucceeded() bool            { return o.hasValidationSucceeded }
func (o *OneTimePassword) CustomAttributes() map[string]string {
	return eventsourcing.CopyAttributes(o.customAttributes)
}

func (o *OneTimePassword) IsExpired(now time.Time) bool {
	return o.expiresOn != nil && !o.expiresOn.After(now)
}

// Validate checks candidate. Already validated, expired and exhausted
// passwords fail without raising anything. Otherwise the attempt is recorded
// and a mismatch fails with invalid credentials after raising
// ValidationFailed, so callers must save before returning the error.
func (o *OneTimePassword) Validate(candidate string, decoder password.Decoder, actorID id.ActorID, now time.Time) error {
	if o.IsDeleted() {
		return eventsourcing.AggregateDeletedError(o.ID())
	}
	if o.hasValidationSucceeded {
		return AlreadyValidatedError(o.otpID)
	}
	if o.IsExpired(now) {
		return ExpiredError(o.otpID)
	}
	if o.maximumAttempts != nil && o.attemptCount >= *o.maximumAttempts {
		return MaximumAttemptsReachedError(o.otpID, o.attemptCount)
	}
	pw, err := decoder.Decode(o.password)
	if err != nil {
		return err
	}
	if !pw.IsMatch(candidate) {
		if err := o.Raise(o, &OneTimePasswordValidationFailed{}, actorID, now); err != nil {
			return err
		}
		return dErrors.New(dErrors.CodeInvalidCredentials, "invalid one-time password")
	}
	return o.Raise(o, &OneTimePasswordValidationSucceeded{}, actorID, now)
}

func (o *OneTimePassword) SetCustomAttribute(key, value string) error {
	if err := eventsourcing.ValidateAttribute(key, &value); err != nil {
		return err
	}
	o.pending.CustomAttributes = o.pending.CustomAttributes.Stage(o.customAttributes, key, &value)
	return nil
}

func (o *OneTimePassword) RemoveCustomAttribute(key string) {
	o.pending.CustomAttributes = o.pending.CustomAttributes.Stage(o.customAttributes, key, nil)
}

func (o *OneTimePassword) Update(actorID id.ActorID, now time.Time) error {
	if len(o.pending.CustomAttributes) == 0 {
		return nil
	}
	e := o.pending
	if err := o.Raise(o, &e, actorID, now); err != nil {
		return err
	}
	o.pending = OneTimePasswordUpdated{}
	return nil
}

func (o *OneTimePassword) Delete(actorID id.ActorID, now time.Time) error {
	if o.IsDeleted() {
		return nil
	}
	return o.Raise(o, &OneTimePasswordDeleted{}, actorID, now)
}

func (o *OneTimePassword) Apply(env eventsourcing.Envelope) error {
	e, ok := env.Event.(Event)
	if !ok {
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	switch e := e.(type) {
	case *OneTimePasswordCreated:
		otpID, err := id.ParseOneTimePasswordID(env.StreamID.Key())
		if err != nil {
			return err
		}
		o.otpID = otpID
		o.password = e.Password
		o.expiresOn = e.ExpiresOn
		o.maximumAttempts = e.MaximumAttempts
	case *OneTimePasswordValidationFailed:
		o.attemptCount++
	case *OneTimePasswordValidationSucceeded:
		o.attemptCount++
		o.hasValidationSucceeded = true
	case *OneTimePasswordUpdated:
		o.customAttributes = e.CustomAttributes.ApplyTo(o.customAttributes)
	case *OneTimePasswordDeleted:
	default:
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	return nil
}
