// Package models holds the API key aggregate and its events.
package models

import (
	"sort"
	"strings"
	"time"

	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/validate"
)

const Kind = "api_key"

func StreamID(keyID id.APIKeyID) eventsourcing.StreamID {
	return eventsourcing.NewStreamID(Kind, keyID.String())
}

// APIKey is a long-lived machine credential of a realm.
//
// Invariants:
//   - DisplayName is non-blank and at most 255 characters
//   - Secret is an encoded hash, never the plaintext
//   - ExpiresOn only moves later and is never set in the past
//   - an expired key cannot authenticate
//   - once deleted no further change is accepted
type APIKey struct {
	eventsourcing.Root

	keyID            id.APIKeyID
	displayName      string
	description      *string
	secret           string
	expiresOn        *time.Time
	authenticatedOn  *time.Time
	roles            map[string]struct{}
	customAttributes map[string]string

	pending APIKeyUpdated
}

// New creates an API key holding the hash of its secret.
func New(keyID id.APIKeyID, displayName string, secret password.Password, actorID id.ActorID, now time.Time) (*APIKey, error) {
	displayName = strings.TrimSpace(displayName)
	var v validate.Errors
	if v.Required("display_name", displayName) {
		v.MaxLength("display_name", displayName, validate.MaxLength)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	k := &APIKey{Root: eventsourcing.NewRoot(StreamID(keyID))}
	if err := k.Raise(k, &APIKeyCreated{DisplayName: displayName, Secret: secret.Encode()}, actorID, now); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *APIKey) KeyID() id.APIKeyID          { return k.keyID }
func (k *APIKey) ActorID() id.ActorID         { return id.ActorIDFromAPIKey(k.keyID) }
func (k *APIKey) DisplayName() string         { return k.displayName }
func (k *APIKey) Description() *string        { return k.description }
func (k *APIKey) ExpiresOn() *time.Time       { return k.expiresOn }
func (k *APIKey) AuthenticatedOn() *time.Time { return k.authenticatedOn }
func (k *APIKey) CustomAttributes() map[string]string {
	return eventsourcing.CopyAttributes(k.customAttributes)
}

// Roles returns the role ids in lexical order.
func (k *APIKey) Roles() []string {
	out := make([]string, 0, len(k.roles))
	for r := range k.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (k *APIKey) HasRole(roleID string) bool {
	_, ok := k.roles[roleID]
	return ok
}

// IsExpired reports whether the key expired at or before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.expiresOn != nil && !k.expiresOn.After(now)
}

func (k *APIKey) SetDisplayName(displayName string) error {
	displayName = strings.TrimSpace(displayName)
	var v validate.Errors
	if v.Required("display_name", displayName) {
		v.MaxLength("display_name", displayName, validate.MaxLength)
	}
	if err := v.Err(); err != nil {
		return err
	}
	if displayName != k.displayName {
		k.pending.DisplayName = &displayName
	}
	return nil
}

func (k *APIKey) SetDescription(description *string) {
	if description != nil {
		if v := strings.TrimSpace(*description); v != "" {
			description = &v
		} else {
			description = nil
		}
	}
	same := description == nil && k.description == nil ||
		description != nil && k.description != nil && *description == *k.description
	if !same {
		k.pending.Description = eventsourcing.SetOrClear(description)
	}
}

// SetExpiration sets or extends the expiration. It cannot be moved earlier
// nor set at or before now.
func (k *APIKey) SetExpiration(expiresOn time.Time, now time.Time) error {
	expiresOn = expiresOn.UTC()
	if !expiresOn.After(now) {
		return dErrors.Validation(dErrors.FieldError{Field: "expires_on", Code: "in_past", Message: "must be in the future"})
	}
	if k.expiresOn != nil && expiresOn.Before(*k.expiresOn) {
		return dErrors.Validation(dErrors.FieldError{Field: "expires_on", Code: "cannot_shorten", Message: "expiration can only be extended"})
	}
	if k.expiresOn == nil || !expiresOn.Equal(*k.expiresOn) {
		k.pending.ExpiresOn = &expiresOn
	}
	return nil
}

func (k *APIKey) SetCustomAttribute(key, value string) error {
	if err := eventsourcing.ValidateAttribute(key, &value); err != nil {
		return err
	}
	k.pending.CustomAttributes = k.pending.CustomAttributes.Stage(k.customAttributes, key, &value)
	return nil
}

func (k *APIKey) RemoveCustomAttribute(key string) {
	k.pending.CustomAttributes = k.pending.CustomAttributes.Stage(k.customAttributes, key, nil)
}

// Update raises the staged changes as one APIKeyUpdated event.
func (k *APIKey) Update(actorID id.ActorID, now time.Time) error {
	if k.pending.isEmpty() {
		return nil
	}
	e := k.pending
	if err := k.Raise(k, &e, actorID, now); err != nil {
		return err
	}
	k.pending = APIKeyUpdated{}
	return nil
}

func (k *APIKey) AddRole(roleID string, actorID id.ActorID, now time.Time) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return dErrors.Validation(dErrors.FieldError{Field: "role_id", Code: "required", Message: "is required"})
	}
	if k.HasRole(roleID) {
		return nil
	}
	return k.Raise(k, &APIKeyRoleAdded{RoleID: roleID}, actorID, now)
}

func (k *APIKey) RemoveRole(roleID string, actorID id.ActorID, now time.Time) error {
	if !k.HasRole(roleID) {
		return nil
	}
	return k.Raise(k, &APIKeyRoleRemoved{RoleID: roleID}, actorID, now)
}

// Authenticate fails with unauthorized when the key expired and with invalid
// credentials when secret does not match. It changes nothing.
func (k *APIKey) Authenticate(secret string, decoder password.Decoder, now time.Time) error {
	if k.IsDeleted() {
		return eventsourcing.AggregateDeletedError(k.ID())
	}
	if k.IsExpired(now) {
		return dErrors.New(dErrors.CodeUnauthorized, "api key is expired")
	}
	pw, err := decoder.Decode(k.secret)
	if err != nil {
		return err
	}
	if !pw.IsMatch(secret) {
		return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
	}
	return nil
}

// RecordAuthentication raises Authenticated.
func (k *APIKey) RecordAuthentication(now time.Time) error {
	return k.Raise(k, &APIKeyAuthenticated{}, k.ActorID(), now)
}

func (k *APIKey) Delete(actorID id.ActorID, now time.Time) error {
	if k.IsDeleted() {
		return nil
	}
	return k.Raise(k, &APIKeyDeleted{}, actorID, now)
}

func (k *APIKey) Apply(env eventsourcing.Envelope) error {
	e, ok := env.Event.(Event)
	if !ok {
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	switch e := e.(type) {
	case *APIKeyCreated:
		keyID, err := id.ParseAPIKeyID(env.StreamID.Key())
		if err != nil {
			return err
		}
		k.keyID = keyID
		k.displayName = e.DisplayName
		k.secret = e.Secret
	case *APIKeyUpdated:
		if e.DisplayName != nil {
			k.displayName = *e.DisplayName
		}
		e.Description.ApplyTo(&k.description)
		if e.ExpiresOn != nil {
			at := *e.ExpiresOn
			k.expiresOn = &at
		}
		k.customAttributes = e.CustomAttributes.ApplyTo(k.customAttributes)
	case *APIKeyRoleAdded:
		if k.roles == nil {
			k.roles = make(map[string]struct{})
		}
		k.roles[e.RoleID] = struct{}{}
	case *APIKeyRoleRemoved:
		delete(k.roles, e.RoleID)
	case *APIKeyAuthenticated:
		at := env.OccurredOn
		k.authenticatedOn = &at
	case *APIKeyDeleted:
	default:
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	return nil
}
