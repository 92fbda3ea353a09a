package models

import (
	"warden/internal/eventsourcing"
)

// Event is the sealed set of session events.
type Event interface {
	eventsourcing.Event
	isSessionEvent()
}

// SessionCreated opens a session of UserID. Secret is the encoded hash of the
// refresh secret and is only set on persistent sessions.
type SessionCreated struct {
	UserID       string  `json:"user_id"`
	Secret       *string `json:"secret,omitempty"`
	IsPersistent bool    `json:"is_persistent"`
}

// SessionRenewed rotates the refresh secret.
type SessionRenewed struct {
	Secret string `json:"secret"`
}

type SessionUpdated struct {
	CustomAttributes eventsourcing.AttributeChanges `json:"custom_attributes,omitempty"`
}

type SessionSignedOut struct{}

type SessionDeleted struct{}

func (*SessionCreated) EventType() string   { return "session.created" }
func (*SessionRenewed) EventType() string   { return "session.renewed" }
func (*SessionUpdated) EventType() string   { return "session.updated" }
func (*SessionSignedOut) EventType() string { return "session.signed_out" }
func (*SessionDeleted) EventType() string   { return "session.deleted" }

func (*SessionDeleted) DeletesAggregate() {}

func (*SessionCreated) isSessionEvent()   {}
func (*SessionRenewed) isSessionEvent()   {}
func (*SessionUpdated) isSessionEvent()   {}
func (*SessionSignedOut) isSessionEvent() {}
func (*SessionDeleted) isSessionEvent()   {}

// RegisterEvents adds the session events to codec.
func RegisterEvents(codec *eventsourcing.Codec) {
	codec.Register(
		func() eventsourcing.Event { return &SessionCreated{} },
		func() eventsourcing.Event { return &SessionRenewed{} },
		func() eventsourcing.Event { return &SessionUpdated{} },
		func() eventsourcing.Event { return &SessionSignedOut{} },
		func() eventsourcing.Event { return &SessionDeleted{} },
	)
}
