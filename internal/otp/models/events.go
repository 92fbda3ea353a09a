package models

import (
	"time"

	"warden/internal/eventsourcing"
)

// Event is the sealed set of one-time password events.
type Event interface {
	eventsourcing.Event
	isOneTimePasswordEvent()
}

// OneTimePasswordCreated carries the encoded hash of the generated password.
type OneTimePasswordCreated struct {
	Password        string     `json:"password"`
	ExpiresOn       *time.Time `json:"expires_on,omitempty"`
	MaximumAttempts *int       `json:"maximum_attempts,omitempty"`
}

type OneTimePasswordValidationFailed struct{}

type OneTimePasswordValidationSucceeded struct{}

type OneTimePasswordUpdated struct {
	CustomAttributes eventsourcing.AttributeChanges `json:"custom_attributes,omitempty"`
}

type OneTimePasswordDeleted struct{}

func (*OneTimePasswordCreated) EventType() string { return "one_time_password.created" }
func (*OneTimePasswordValidationFailed) EventType() string {
	return "one_time_password.validation_failed"
}
func (*OneTimePasswordValidationSucceeded) EventType() string {
	return "one_time_password.validation_succeeded"
}
func (*OneTimePasswordUpdated) EventType() string { return "one_time_password.updated" }
func (*OneTimePasswordDeleted) EventType() string { return "one_time_password.deleted" }

func (*OneTimePasswordDeleted) DeletesAggregate() {}

func (*OneTimePasswordCreated) isOneTimePasswordEvent()             {}
func (*OneTimePasswordValidationFailed) isOneTimePasswordEvent()    {}
func (*OneTimePasswordValidationSucceeded) isOneTimePasswordEvent() {}
func (*OneTimePasswordUpdated) isOneTimePasswordEvent()             {}
func (*OneTimePasswordDeleted) isOneTimePasswordEvent()             {}

// RegisterEvents adds the one-time password events to codec.
func RegisterEvents(codec *eventsourcing.Codec) {
	codec.Register(
		func() eventsourcing.Event { return &OneTimePasswordCreated{} },
		func() eventsourcing.Event { return &OneTimePasswordValidationFailed{} },
		func() eventsourcing.Event { return &OneTimePasswordValidationSucceeded{} },
		func() eventsourcing.Event { return &OneTimePasswordUpdated{} },
		func() eventsourcing.Event { return &OneTimePasswordDeleted{} },
	)
}
