package models

import (
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	id "warden/pkg/domain"
)

// Event is the sealed set of realm events.
type Event interface {
	eventsourcing.Event
	isRealmEvent()
}

type RealmCreated struct {
	UniqueSlug string                     `json:"unique_slug"`
	Secret     encryption.EncryptedString `json:"secret"`
}

type RealmUniqueSlugChanged struct {
	UniqueSlug string `json:"unique_slug"`
}

// RealmUpdated carries only the fields that changed.
type RealmUpdated struct {
	DisplayName             *eventsourcing.Change[string]  `json:"display_name,omitempty"`
	Description             *eventsourcing.Change[string]  `json:"description,omitempty"`
	Secret                  *encryption.EncryptedString    `json:"secret,omitempty"`
	URL                     *eventsourcing.Change[string]  `json:"url,omitempty"`
	UniqueNameSettings      *id.UniqueNameSettings         `json:"unique_name_settings,omitempty"`
	PasswordSettings        *id.PasswordSettings           `json:"password_settings,omitempty"`
	RequireUniqueEmail      *bool                          `json:"require_unique_email,omitempty"`
	RequireConfirmedAccount *bool                          `json:"require_confirmed_account,omitempty"`
	CustomAttributes        eventsourcing.AttributeChanges `json:"custom_attributes,omitempty"`
}

type RealmDeleted struct{}

func (*RealmCreated) EventType() string           { return "realm.created" }
func (*RealmUniqueSlugChanged) EventType() string { return "realm.unique_slug_changed" }
func (*RealmUpdated) EventType() string           { return "realm.updated" }
func (*RealmDeleted) EventType() string           { return "realm.deleted" }

func (*RealmDeleted) DeletesAggregate() {}

func (*RealmCreated) isRealmEvent()           {}
func (*RealmUniqueSlugChanged) isRealmEvent() {}
func (*RealmUpdated) isRealmEvent()           {}
func (*RealmDeleted) isRealmEvent()           {}

func (e *RealmUpdated) isEmpty() bool {
	return e.DisplayName == nil && e.Description == nil && e.Secret == nil && e.URL == nil &&
		e.UniqueNameSettings == nil && e.PasswordSettings == nil && e.RequireUniqueEmail == nil &&
		e.RequireConfirmedAccount == nil && len(e.CustomAttributes) == 0
}

// RegisterEvents adds the realm events to codec.
func RegisterEvents(codec *eventsourcing.Codec) {
	codec.Register(
		func() eventsourcing.Event { return &RealmCreated{} },
		func() eventsourcing.Event { return &RealmUniqueSlugChanged{} },
		func() eventsourcing.Event { return &RealmUpdated{} },
		func() eventsourcing.Event { return &RealmDeleted{} },
	)
}
