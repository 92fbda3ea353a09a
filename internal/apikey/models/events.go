package models

import (
	"time"

	"warden/internal/eventsourcing"
)

// Event is the sealed set of API key events.
type Event interface {
	eventsourcing.Event
	isAPIKeyEvent()
}

type APIKeyCreated struct {
	DisplayName string `json:"display_name"`
	// Secret is the encoded hash of the key secret.
	Secret string `json:"secret"`
}

// APIKeyUpdated carries only the fields that changed. ExpiresOn can only be
// set or moved later, so it has no clearing form.
type APIKeyUpdated struct {
	DisplayName      *string                        `json:"display_name,omitempty"`
	Description      *eventsourcing.Change[string]  `json:"description,omitempty"`
	ExpiresOn        *time.Time                     `json:"expires_on,omitempty"`
	CustomAttributes eventsourcing.AttributeChanges `json:"custom_attributes,omitempty"`
}

type APIKeyRoleAdded struct {
	RoleID string `json:"role_id"`
}

type APIKeyRoleRemoved struct {
	RoleID string `json:"role_id"`
}

type APIKeyAuthenticated struct{}

type APIKeyDeleted struct{}

func (*APIKeyCreated) EventType() string       { return "api_key.created" }
func (*APIKeyUpdated) EventType() string       { return "api_key.updated" }
func (*APIKeyRoleAdded) EventType() string     { return "api_key.role_added" }
func (*APIKeyRoleRemoved) EventType() string   { return "api_key.role_removed" }
func (*APIKeyAuthenticated) EventType() string { return "api_key.authenticated" }
func (*APIKeyDeleted) EventType() string       { return "api_key.deleted" }

func (*APIKeyDeleted) DeletesAggregate() {}

func (*APIKeyCreated) isAPIKeyEvent()       {}
func (*APIKeyUpdated) isAPIKeyEvent()       {}
func (*APIKeyRoleAdded) isAPIKeyEvent()     {}
func (*APIKeyRoleRemoved) isAPIKeyEvent()   {}
func (*APIKeyAuthenticated) isAPIKeyEvent() {}
func (*APIKeyDeleted) isAPIKeyEvent()       {}

func (e *APIKeyUpdated) isEmpty() bool {
	return e.DisplayName == nil && e.Description == nil && e.ExpiresOn == nil && len(e.CustomAttributes) == 0
}

// RegisterEvents adds the API key events to codec.
func RegisterEvents(codec *eventsourcing.Codec) {
	codec.Register(
		func() eventsourcing.Event { return &APIKeyCreated{} },
		func() eventsourcing.Event { return &APIKeyUpdated{} },
		func() eventsourcing.Event { return &APIKeyRoleAdded{} },
		func() eventsourcing.Event { return &APIKeyRoleRemoved{} },
		func() eventsourcing.Event { return &APIKeyAuthenticated{} },
		func() eventsourcing.Event { return &APIKeyDeleted{} },
	)
}
