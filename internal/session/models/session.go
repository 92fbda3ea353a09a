// Package models holds the session aggregate and its events.
package models

import (
	"time"

	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

const Kind = "session"

func StreamID(sessionID id.SessionID) eventsourcing.StreamID {
	return eventsourcing.NewStreamID(Kind, sessionID.String())
}

// Session is a signed-in period of a user.
//
// Invariants:
//   - a session belongs to exactly one user of its realm
//   - only persistent sessions hold a refresh secret and can be renewed
//   - a signed-out session stays signed out
//   - once deleted no further change is accepted
type Session struct {
	eventsourcing.Root

	sessionID        id.SessionID
	userID           id.UserID
	secret           *string
	isPersistent     bool
	signedOutBy      *id.ActorID
	signedOutOn      *time.Time
	customAttributes map[string]string

	pending SessionUpdated
}

// New opens a session of userID. A non-nil secret makes it persistent.
func New(sessionID id.SessionID, userID id.UserID, secret password.Password, actorID id.ActorID, now time.Time) (*Session, error) {
	if !sameRealm(sessionID.RealmID(), userID.RealmID()) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session and user belong to different realms")
	}
	e := &SessionCreated{UserID: userID.String()}
	if secret != nil {
		encoded := secret.Encode()
		e.Secret = &encoded
		e.IsPersistent = true
	}
	s := &Session{Root: eventsourcing.NewRoot(StreamID(sessionID))}
	if err := s.Raise(s, e, actorID, now); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) SessionID() id.SessionID  { return s.sessionID }
func (s *Session) UserID() id.UserID        { return s.userID }
func (s *Session) IsPersistent() bool       { return s.isPersistent }
func (s *Session) IsActive() bool           { return s.signedOutOn == nil }
func (s *Session) SignedOutBy() *id.ActorID { return s.signedOutBy }
func (s *Session) SignedOutOn() *time.Time  { return s.signedOutOn }
func (s *Session) CustomAttributes() map[string]string {
	return eventsourcing.CopyAttributes(s.customAttributes)
}

// Renew checks current against the refresh secret and rotates it to next.
func (s *Session) Renew(current string, next password.Password, decoder password.Decoder, actorID id.ActorID, now time.Time) error {
	if s.IsDeleted() {
		return eventsourcing.AggregateDeletedError(s.ID())
	}
	if !s.IsActive() {
		return dErrors.New(dErrors.CodeUnauthorized, "session is signed out")
	}
	if !s.isPersistent || s.secret == nil {
		return dErrors.New(dErrors.CodeInvalidCredentials, "session is not persistent")
	}
	pw, err := decoder.Decode(*s.secret)
	if err != nil {
		return err
	}
	if !pw.IsMatch(current) {
		return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
	}
	return s.Raise(s, &SessionRenewed{Secret: next.Encode()}, actorID, now)
}

// SignOut ends the session. Signing out twice changes nothing.
func (s *Session) SignOut(actorID id.ActorID, now time.Time) error {
	if !s.IsActive() {
		return nil
	}
	return s.Raise(s, &SessionSignedOut{}, actorID, now)
}

func (s *Session) SetCustomAttribute(key, value string) error {
	if err := eventsourcing.ValidateAttribute(key, &value); err != nil {
		return err
	}
	s.pending.CustomAttributes = s.pending.CustomAttributes.Stage(s.customAttributes, key, &value)
	return nil
}

func (s *Session) RemoveCustomAttribute(key string) {
	s.pending.CustomAttributes = s.pending.CustomAttributes.Stage(s.customAttributes, key, nil)
}

// Update raises the staged attribute changes as one SessionUpdated event.
func (s *Session) Update(actorID id.ActorID, now time.Time) error {
	if len(s.pending.CustomAttributes) == 0 {
		return nil
	}
	e := s.pending
	if err := s.Raise(s, &e, actorID, now); err != nil {
		return err
	}
	s.pending = SessionUpdated{}
	return nil
}

func (s *Session) Delete(actorID id.ActorID, now time.Time) error {
	if s.IsDeleted() {
		return nil
	}
	return s.Raise(s, &SessionDeleted{}, actorID, now)
}

func (s *Session) Apply(env eventsourcing.Envelope) error {
	e, ok := env.Event.(Event)
	if !ok {
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	switch e := e.(type) {
	case *SessionCreated:
		sessionID, err := id.ParseSessionID(env.StreamID.Key())
		if err != nil {
			return err
		}
		userID, err := id.ParseUserID(e.UserID)
		if err != nil {
			return err
		}
		s.sessionID = sessionID
		s.userID = userID
		s.secret = e.Secret
		s.isPersistent = e.IsPersistent
	case *SessionRenewed:
		secret := e.Secret
		s.secret = &secret
	case *SessionUpdated:
		s.customAttributes = e.CustomAttributes.ApplyTo(s.customAttributes)
	case *SessionSignedOut:
		by, on := env.ActorID, env.OccurredOn
		s.signedOutBy = &by
		s.signedOutOn = &on
	case *SessionDeleted:
	default:
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	return nil
}

func sameRealm(a, b *id.RealmID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
