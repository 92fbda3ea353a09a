// Package models holds the realm aggregate and its events.
package models

import (
	"time"

	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/validate"
)

// Kind is the stream kind of realms.
const Kind = "realm"

// StreamID returns the stream of a realm.
func StreamID(realmID id.RealmID) eventsourcing.StreamID {
	return eventsourcing.NewStreamID(Kind, realmID.String())
}

// Realm is a tenant: users, API keys and sessions live inside exactly one realm.
//
// Invariants:
//   - UniqueSlug is 1-255 lowercase letters, digits and hyphens
//   - Secret is always present and encrypted with the realm's own key
//   - PasswordSettings satisfy password.ValidateSettings
//   - once deleted no further change is accepted
type Realm struct {
	eventsourcing.Root

	realmID                 id.RealmID
	uniqueSlug              string
	displayName             *string
	description             *string
	secret                  encryption.EncryptedString
	url                     *string
	uniqueNameSettings      id.UniqueNameSettings
	passwordSettings        id.PasswordSettings
	requireUniqueEmail      bool
	requireConfirmedAccount bool
	customAttributes        map[string]string

	pending RealmUpdated
}

// New creates a realm. secret must already be encrypted with the key of realmID.
func New(realmID id.RealmID, uniqueSlug string, secret encryption.EncryptedString, actorID id.ActorID, now time.Time) (*Realm, error) {
	var v validate.Errors
	v.Slug("unique_slug", uniqueSlug)
	if secret == "" {
		v.Add("secret", "required", "is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	r := &Realm{Root: eventsourcing.NewRoot(StreamID(realmID))}
	if err := r.Raise(r, &RealmCreated{UniqueSlug: uniqueSlug, Secret: secret}, actorID, now); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Realm) RealmID() id.RealmID                       { return r.realmID }
func (r *Realm) UniqueSlug() string                        { return r.uniqueSlug }
func (r *Realm) DisplayName() *string                      { return r.displayName }
func (r *Realm) Description() *string                      { return r.description }
func (r *Realm) Secret() encryption.EncryptedString        { return r.secret }
func (r *Realm) URL() *string                              { return r.url }
func (r *Realm) UniqueNameSettings() id.UniqueNameSettings { return r.uniqueNameSettings }
func (r *Realm) PasswordSettings() id.PasswordSettings     { return r.passwordSettings }
func (r *Realm) RequireUniqueEmail() bool                  { return r.requireUniqueEmail }
func (r *Realm) RequireConfirmedAccount() bool             { return r.requireConfirmedAccount }
func (r *Realm) CustomAttributes() map[string]string {
	return eventsourcing.CopyAttributes(r.customAttributes)
}
func (r *Realm) CustomAttribute(key string) (string, bool) {
	v, ok := r.customAttributes[key]
	return v, ok
}

// SetUniqueSlug raises UniqueSlugChanged when slug differs from the current one.
func (r *Realm) SetUniqueSlug(uniqueSlug string, actorID id.ActorID, now time.Time) error {
	if err := r.ensureAlive(); err != nil {
		return err
	}
	var v validate.Errors
	v.Slug("unique_slug", uniqueSlug)
	if err := v.Err(); err != nil {
		return err
	}
	if uniqueSlug == r.uniqueSlug {
		return nil
	}
	return r.Raise(r, &RealmUniqueSlugChanged{UniqueSlug: uniqueSlug}, actorID, now)
}

func (r *Realm) SetDisplayName(displayName *string) error {
	displayName = trim(displayName)
	var v validate.Errors
	v.Text("display_name", displayName)
	if err := v.Err(); err != nil {
		return err
	}
	if !equal(r.displayName, displayName) {
		r.pending.DisplayName = eventsourcing.SetOrClear(displayName)
	}
	return nil
}

func (r *Realm) SetDescription(description *string) error {
	description = trim(description)
	if !equal(r.description, description) {
		r.pending.Description = eventsourcing.SetOrClear(description)
	}
	return nil
}

func (r *Realm) SetURL(url *string) error {
	url = trim(url)
	var v validate.Errors
	v.URL("url", url)
	if err := v.Err(); err != nil {
		return err
	}
	if !equal(r.url, url) {
		r.pending.URL = eventsourcing.SetOrClear(url)
	}
	return nil
}

// SetSecret stages a new encrypted secret.
func (r *Realm) SetSecret(secret encryption.EncryptedString) error {
	if secret == "" {
		return dErrors.Validation(dErrors.FieldError{Field: "secret", Code: "required", Message: "is required"})
	}
	if secret != r.secret {
		r.pending.Secret = &secret
	}
	return nil
}

func (r *Realm) SetUniqueNameSettings(settings id.UniqueNameSettings) {
	if !equal(settings.AllowedCharacters, r.uniqueNameSettings.AllowedCharacters) {
		r.pending.UniqueNameSettings = &settings
	}
}

func (r *Realm) SetPasswordSettings(settings id.PasswordSettings) error {
	if err := password.ValidateSettings("password_settings", settings); err != nil {
		return err
	}
	if settings != r.passwordSettings {
		r.pending.PasswordSettings = &settings
	}
	return nil
}

func (r *Realm) SetRequireUniqueEmail(require bool) {
	if require != r.requireUniqueEmail {
		r.pending.RequireUniqueEmail = &require
	}
}

func (r *Realm) SetRequireConfirmedAccount(require bool) {
	if require != r.requireConfirmedAccount {
		r.pending.RequireConfirmedAccount = &require
	}
}

func (r *Realm) SetCustomAttribute(key, value string) error {
	if err := eventsourcing.ValidateAttribute(key, &value); err != nil {
		return err
	}
	r.pending.CustomAttributes = r.pending.CustomAttributes.Stage(r.customAttributes, key, &value)
	return nil
}

func (r *Realm) RemoveCustomAttribute(key string) {
	r.pending.CustomAttributes = r.pending.CustomAttributes.Stage(r.customAttributes, key, nil)
}

// Update raises the staged changes as one RealmUpdated event. Nothing is
// raised when nothing changed.
func (r *Realm) Update(actorID id.ActorID, now time.Time) error {
	if r.pending.isEmpty() {
		return nil
	}
	e := r.pending
	if err := r.Raise(r, &e, actorID, now); err != nil {
		return err
	}
	r.pending = RealmUpdated{}
	return nil
}

// Delete raises RealmDeleted. Deleting a deleted realm is a no-op.
func (r *Realm) Delete(actorID id.ActorID, now time.Time) error {
	if r.IsDeleted() {
		return nil
	}
	return r.Raise(r, &RealmDeleted{}, actorID, now)
}

func (r *Realm) ensureAlive() error {
	if r.IsDeleted() {
		return eventsourcing.AggregateDeletedError(r.ID())
	}
	return nil
}

func (r *Realm) Apply(env eventsourcing.Envelope) error {
	e, ok := env.Event.(Event)
	if !ok {
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	switch e := e.(type) {
	case *RealmCreated:
		realmID, err := id.ParseRealmID(env.StreamID.Key())
		if err != nil {
			return err
		}
		r.realmID = realmID
		r.uniqueSlug = e.UniqueSlug
		r.secret = e.Secret
		r.uniqueNameSettings = id.DefaultUniqueNameSettings()
		r.passwordSettings = id.DefaultPasswordSettings()
	case *RealmUniqueSlugChanged:
		r.uniqueSlug = e.UniqueSlug
	case *RealmUpdated:
		e.DisplayName.ApplyTo(&r.displayName)
		e.Description.ApplyTo(&r.description)
		e.URL.ApplyTo(&r.url)
		if e.Secret != nil {
			r.secret = *e.Secret
		}
		if e.UniqueNameSettings != nil {
			r.uniqueNameSettings = *e.UniqueNameSettings
		}
		if e.PasswordSettings != nil {
			r.passwordSettings = *e.PasswordSettings
		}
		if e.RequireUniqueEmail != nil {
			r.requireUniqueEmail = *e.RequireUniqueEmail
		}
		if e.RequireConfirmedAccount != nil {
			r.requireConfirmedAccount = *e.RequireConfirmedAccount
		}
		r.customAttributes = e.CustomAttributes.ApplyTo(r.customAttributes)
	case *RealmDeleted:
	default:
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	return nil
}
