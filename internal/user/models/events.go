package models

import (
	"time"

	"warden/internal/eventsourcing"
)

// Event is the sealed set of user events.
type Event interface {
	eventsourcing.Event
	isUserEvent()
}

type UserCreated struct {
	UniqueName string `json:"unique_name"`
}

type UserUniqueNameChanged struct {
	UniqueName string `json:"unique_name"`
}

// UserPasswordChanged is raised when the user (or an administrator) sets a
// password. Password is the encoded hash.
type UserPasswordChanged struct {
	Password string `json:"password"`
}

// UserPasswordReset is raised when a password is replaced through a recovery flow.
type UserPasswordReset struct {
	Password string `json:"password"`
}

// UserUpdated carries only the fields that changed.
type UserUpdated struct {
	FirstName        *eventsourcing.Change[string]    `json:"first_name,omitempty"`
	MiddleName       *eventsourcing.Change[string]    `json:"middle_name,omitempty"`
	LastName         *eventsourcing.Change[string]    `json:"last_name,omitempty"`
	Nickname         *eventsourcing.Change[string]    `json:"nickname,omitempty"`
	Birthdate        *eventsourcing.Change[time.Time] `json:"birthdate,omitempty"`
	Gender           *eventsourcing.Change[string]    `json:"gender,omitempty"`
	Locale           *eventsourcing.Change[string]    `json:"locale,omitempty"`
	TimeZone         *eventsourcing.Change[string]    `json:"time_zone,omitempty"`
	Picture          *eventsourcing.Change[string]    `json:"picture,omitempty"`
	Profile          *eventsourcing.Change[string]    `json:"profile,omitempty"`
	Website          *eventsourcing.Change[string]    `json:"website,omitempty"`
	Email            *eventsourcing.Change[Email]     `json:"email,omitempty"`
	CustomAttributes eventsourcing.AttributeChanges   `json:"custom_attributes,omitempty"`
}

type UserDisabled struct{}

type UserEnabled struct{}

type UserSignedIn struct{}

type UserRoleAdded struct {
	RoleID string `json:"role_id"`
}

type UserRoleRemoved struct {
	RoleID string `json:"role_id"`
}

type UserDeleted struct{}

func (*UserCreated) EventType() string           { return "user.created" }
func (*UserUniqueNameChanged) EventType() string { return "user.unique_name_changed" }
func (*UserPasswordChanged) EventType() string   { return "user.password_changed" }
func (*UserPasswordReset) EventType() string     { return "user.password_reset" }
func (*UserUpdated) EventType() string           { return "user.updated" }
func (*UserDisabled) EventType() string          { return "user.disabled" }
func (*UserEnabled) EventType() string           { return "user.enabled" }
func (*UserSignedIn) EventType() string          { return "user.signed_in" }
func (*UserRoleAdded) EventType() string         { return "user.role_added" }
func (*UserRoleRemoved) EventType() string       { return "user.role_removed" }
func (*UserDeleted) EventType() string           { return "user.deleted" }

func (*UserDeleted) DeletesAggregate() {}

func (*UserCreated) isUserEvent()           {}
func (*UserUniqueNameChanged) isUserEvent() {}
func (*UserPasswordChanged) isUserEvent()   {}
func (*UserPasswordReset) isUserEvent()     {}
func (*UserUpdated) isUserEvent()           {}
func (*UserDisabled) isUserEvent()          {}
func (*UserEnabled) isUserEvent()           {}
func (*UserSignedIn) isUserEvent()          {}
func (*UserRoleAdded) isUserEvent()         {}
func (*UserRoleRemoved) isUserEvent()       {}
func (*UserDeleted) isUserEvent()           {}

func (e *UserUpdated) isEmpty() bool {
	return e.FirstName == nil && e.MiddleName == nil && e.LastName == nil && e.Nickname == nil &&
		e.Birthdate == nil && e.Gender == nil && e.Locale == nil && e.TimeZone == nil &&
		e.Picture == nil && e.Profile == nil && e.Website == nil && e.Email == nil &&
		len(e.CustomAttributes) == 0
}

// RegisterEvents adds the user events to codec.
func RegisterEvents(codec *eventsourcing.Codec) {
	codec.Register(
		func() eventsourcing.Event { return &UserCreated{} },
		func() eventsourcing.Event { return &UserUniqueNameChanged{} },
		func() eventsourcing.Event { return &UserPasswordChanged{} },
		func() eventsourcing.Event { return &UserPasswordReset{} },
		func() eventsourcing.Event { return &UserUpdated{} },
		func() eventsourcing.Event { return &UserDisabled{} },
		func() eventsourcing.Event { return &UserEnabled{} },
		func() eventsourcing.Event { return &UserSignedIn{} },
		func() eventsourcing.Event { return &UserRoleAdded{} },
		func() eventsourcing.Event { return &UserRoleRemoved{} },
		func() eventsourcing.Event { return &UserDeleted{} },
	)
}
